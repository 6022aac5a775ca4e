package orch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Orbit/internal/app"
	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/engine/memory"
	"github.com/dkeye/Orbit/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	frames []protocol.Envelope
}

func (r *recorder) TrySend(f core.Frame) error {
	env, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, env)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) events(eventType string) []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Envelope
	for _, f := range r.frames {
		if f.Type == eventType {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

type harness struct {
	t      *testing.T
	orch   *Orchestrator
	engine *memory.Engine
	conns  map[domain.ConnID]*recorder
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	engine := memory.NewEngine()
	pool := app.NewMediaPool(engine, nil)
	require.NoError(t, pool.Initialize(context.Background(), 2))
	t.Cleanup(pool.Close)
	o := New(app.NewRegistry(nil), app.NewRoomManager(pool), pool, app.NewJoinRateLimiter(100, time.Minute), opts)
	return &harness{t: t, orch: o, engine: engine, conns: make(map[domain.ConnID]*recorder)}
}

func (h *harness) connect(id domain.ConnID, user *domain.User, chats ...string) *recorder {
	rec := &recorder{}
	h.conns[id] = rec
	h.orch.Registry.Bind(id, rec, nil)
	h.orch.OnConnect(id, user, chats)
	return rec
}

func (h *harness) join(conn domain.ConnID, room, peer string) {
	h.t.Helper()
	require.NoError(h.t, h.orch.JoinCallRoom(context.Background(), conn, protocol.JoinCallRoomRequest{RoomID: room, PeerID: peer}))
}

func (h *harness) transport(conn domain.ConnID, consumer bool) string {
	h.t.Helper()
	ctx := context.Background()
	resp, err := h.orch.CreateTransport(ctx, conn, protocol.CreateTransportRequest{Consumer: consumer})
	require.NoError(h.t, err)
	_, err = h.orch.ConnectTransport(ctx, conn, protocol.ConnectTransportRequest{
		TransportID: resp.ID,
		DtlsParameters: domain.DtlsParameters{
			Role:         "client",
			Fingerprints: []domain.DtlsFingerprint{{Algorithm: "sha-256", Value: "01:02"}},
		},
	})
	require.NoError(h.t, err)
	return resp.ID
}

func (h *harness) produce(conn domain.ConnID, transportID string, kind domain.MediaKind) string {
	h.t.Helper()
	codec := domain.RtpCodecParameters{MimeType: "video/VP8", PayloadType: 101, ClockRate: 90000}
	if kind == domain.MediaKindAudio {
		codec = domain.RtpCodecParameters{MimeType: "audio/opus", PayloadType: 100, ClockRate: 48000, Channels: 2}
	}
	resp, err := h.orch.Produce(context.Background(), conn, protocol.ProduceRequest{
		TransportID:   transportID,
		Kind:          string(kind),
		RtpParameters: domain.RtpParameters{Codecs: []domain.RtpCodecParameters{codec}},
	})
	require.NoError(h.t, err)
	return resp.ID
}

func decode[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestJoinThenProduceAnnounces(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	a := h.connect("ca", &domain.User{ID: "alice"})
	b := h.connect("cb", &domain.User{ID: "bob"})

	h.join("ca", "g1", "p1")
	joinedA := a.events(protocol.EventCallRoomJoined)
	require.Len(t, joinedA, 1)
	assert.Empty(t, decode[protocol.CallRoomJoined](t, joinedA[0]).Peers)

	h.join("cb", "g1", "p2")
	joinedB := b.events(protocol.EventCallRoomJoined)
	require.Len(t, joinedB, 1)
	payload := decode[protocol.CallRoomJoined](t, joinedB[0])
	require.Len(t, payload.Peers, 1)
	assert.Equal(t, domain.PeerID("p1"), payload.Peers[0].PeerID)
	assert.Empty(t, payload.Peers[0].Producers)
	assert.NotNil(t, payload.Peers[0].Producers, "producers serialize as an empty array")
	assert.Len(t, payload.RtpCapabilities.Codecs, 2)

	newPeer := a.events(protocol.EventNewPeerInCall)
	require.Len(t, newPeer, 1)
	assert.Equal(t, domain.PeerID("p2"), decode[protocol.NewPeerInCall](t, newPeer[0]).PeerID)
	assert.Empty(t, b.events(protocol.EventNewPeerInCall))

	send := h.transport("ca", false)
	prodID := h.produce("ca", send, domain.MediaKindVideo)

	announced := b.events(protocol.EventNewProducer)
	require.Len(t, announced, 1)
	np := decode[protocol.NewProducer](t, announced[0])
	assert.Equal(t, domain.PeerID("p1"), np.PeerID)
	assert.Equal(t, prodID, np.ProducerID)
	assert.Equal(t, domain.MediaKindVideo, np.Kind)
	assert.Empty(t, a.events(protocol.EventNewProducer))
}

func TestLeaveKeepsRoomUntilEmpty(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	b := h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")

	require.NoError(t, h.orch.LeaveCallRoom(context.Background(), "ca", protocol.LeaveCallRoomRequest{RoomID: "g1", PeerID: "p1"}))
	left := b.events(protocol.EventPeerLeftCall)
	require.Len(t, left, 1)
	assert.Equal(t, domain.PeerID("p1"), decode[protocol.PeerLeftCall](t, left[0]).PeerID)
	_, ok := h.orch.Rooms.Room("g1")
	assert.True(t, ok)

	err := h.orch.LeaveCallRoom(context.Background(), "ca", protocol.LeaveCallRoomRequest{RoomID: "g1", PeerID: "p1"})
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)

	require.NoError(t, h.orch.LeaveCallRoom(context.Background(), "cb", protocol.LeaveCallRoomRequest{RoomID: "g1", PeerID: "p2"}))
	_, ok = h.orch.Rooms.Room("g1")
	assert.False(t, ok)
}

func TestLeaveRejectsForeignPeer(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")

	err := h.orch.LeaveCallRoom(context.Background(), "cb", protocol.LeaveCallRoomRequest{RoomID: "g1", PeerID: "p1"})
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
	snap, _ := h.orch.Rooms.Snapshot("g1")
	assert.Len(t, snap, 2)
}

func TestDisconnectTearsDownSoleOccupant(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("c3", &domain.User{ID: "carol"})
	h.join("c3", "g2", "p3")
	h.transport("c3", false)

	h.orch.OnDisconnect("c3")
	_, ok := h.orch.Rooms.Room("g2")
	assert.False(t, ok)

	h.orch.OnDisconnect("c3")

	routers := h.engine.Routers()
	require.Len(t, routers, 1)
	assert.Equal(t, 1, routers[0].CloseCount())
	assert.Equal(t, 0, h.orch.Rooms.Len())
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	b := h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")

	h.orch.OnDisconnect("ca")
	h.orch.OnDisconnect("ca")
	assert.Len(t, b.events(protocol.EventPeerLeftCall), 1)
}

func TestConsumeIncompatibleCreatesNothing(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")
	prodID := h.produce("ca", h.transport("ca", false), domain.MediaKindVideo)
	recvID := h.transport("cb", true)

	audioOnly := domain.RtpCapabilities{Codecs: []domain.RtpCodecCapability{
		{Kind: domain.MediaKindAudio, MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
	}}
	_, err := h.orch.Consume(context.Background(), "cb", protocol.ConsumeRequest{
		TransportID: recvID, ProducerID: prodID, RtpCapabilities: audioOnly,
	})
	require.ErrorIs(t, err, domain.ErrIncompatible)
	assert.Equal(t, "cannot consume", domain.PublicMessage(err))

	room, ok := h.orch.Rooms.Room("g1")
	require.True(t, ok)
	mt, ok := room.Router.(*memory.Router).Transport(recvID)
	require.True(t, ok)
	assert.Empty(t, mt.Consumers())
}

func TestConsumerPausedUntilResume(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")
	sendID := h.transport("ca", false)
	prodID := h.produce("ca", sendID, domain.MediaKindAudio)
	recvID := h.transport("cb", true)

	room, _ := h.orch.Rooms.Room("g1")
	resp, err := h.orch.Consume(context.Background(), "cb", protocol.ConsumeRequest{
		LegacyTransportID: recvID, ProducerID: prodID, RtpCapabilities: room.Router.RtpCapabilities(),
	})
	require.NoError(t, err)
	assert.Equal(t, prodID, resp.ProducerID)
	assert.Equal(t, domain.MediaKindAudio, resp.Kind)

	ids := map[string]bool{sendID: true, prodID: true, recvID: true, resp.ID: true}
	assert.Len(t, ids, 4, "engine ids are distinct")

	peer, ok := h.orch.Rooms.PeerByConn("cb")
	require.True(t, ok)
	mc, ok := peer.Consumer(resp.ID)
	require.True(t, ok)
	cons := mc.(*memory.Consumer)
	assert.True(t, cons.Paused())
	assert.False(t, cons.MediaFlowing())

	out, err := h.orch.ResumeConsumer(context.Background(), "cb", protocol.ResumeConsumerRequest{ConsumerID: resp.ID})
	require.NoError(t, err)
	assert.True(t, out.Resumed)
	assert.True(t, cons.MediaFlowing())

	_, err = h.orch.ResumeConsumer(context.Background(), "cb", protocol.ResumeConsumerRequest{ConsumerID: "nope"})
	assert.ErrorIs(t, err, domain.ErrConsumerNotFound)
}

func TestOperationsBeforeJoin(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	ctx := context.Background()

	_, err := h.orch.CreateTransport(ctx, "ca", protocol.CreateTransportRequest{RoomID: "g1"})
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
	_, err = h.orch.Produce(ctx, "ca", protocol.ProduceRequest{TransportID: "x", Kind: "video"})
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)

	h.join("ca", "g1", "p1")
	_, err = h.orch.ConnectTransport(ctx, "ca", protocol.ConnectTransportRequest{TransportID: "missing"})
	assert.ErrorIs(t, err, domain.ErrTransportNotFound)
	_, err = h.orch.CreateTransport(ctx, "ca", protocol.CreateTransportRequest{RoomID: "other"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = h.orch.Produce(ctx, "ca", protocol.ProduceRequest{TransportID: "x", Kind: "screen"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	_, err = h.orch.Consume(ctx, "ca", protocol.ConsumeRequest{TransportID: "x", ProducerID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrProducerNotFound)
}

func TestCreateTransportReportsBitrates(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true, MaxIncomingBitrate: 1500000, InitialOutgoingBitrate: 1000000})
	h.connect("ca", nil)
	h.join("ca", "g1", "p1")

	resp, err := h.orch.CreateTransport(context.Background(), "ca", protocol.CreateTransportRequest{RoomID: "g1", Consumer: true})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.IceCandidates)
	assert.Equal(t, 1500000, resp.MaxIncomingBitrate)
	assert.Equal(t, 1000000, resp.InitialAvailableOutgoingBitrate)
}

func TestCallStartingOnRoomCreation(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	a := h.connect("ca", &domain.User{ID: "alice"}, "g1")
	watcher := h.connect("cw", &domain.User{ID: "walt"}, "g1")
	h.connect("cb", &domain.User{ID: "bob"}, "g1")

	err := h.orch.JoinCallRoom(context.Background(), "ca", protocol.JoinCallRoomRequest{
		RoomID: "g1", PeerID: "p1", Group: json.RawMessage(`{"_id":"g1","name":"team"}`),
	})
	require.NoError(t, err)
	starting := watcher.events(protocol.EventCallStarting)
	require.Len(t, starting, 1)
	assert.JSONEq(t, `{"_id":"g1","name":"team"}`, string(decode[protocol.CallStarting](t, starting[0]).Group))
	assert.Empty(t, a.events(protocol.EventCallStarting))

	h.join("cb", "g1", "p2")
	assert.Len(t, watcher.events(protocol.EventCallStarting), 1)
	assert.Empty(t, watcher.events(protocol.EventNewPeerInCall), "chat members outside the call get no call events")
}

func TestCallStartingDefaultsToRoomID(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", &domain.User{ID: "alice"}, "g7")
	watcher := h.connect("cw", &domain.User{ID: "walt"}, "g7")

	h.join("ca", "g7", "p1")
	starting := watcher.events(protocol.EventCallStarting)
	require.Len(t, starting, 1)
	assert.JSONEq(t, `"g7"`, string(decode[protocol.CallStarting](t, starting[0]).Group))
}

func TestJoinAuthorization(t *testing.T) {
	t.Run("anonymous rejected", func(t *testing.T) {
		h := newHarness(t, Options{AllowAnonymous: false})
		h.connect("ca", nil)
		err := h.orch.JoinCallRoom(context.Background(), "ca", protocol.JoinCallRoomRequest{RoomID: "g1", PeerID: "p1"})
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		assert.Equal(t, 0, h.orch.Rooms.Len())
	})
	t.Run("membership required", func(t *testing.T) {
		h := newHarness(t, Options{RequireMembership: true})
		h.connect("ca", &domain.User{ID: "alice"}, "g1")
		err := h.orch.JoinCallRoom(context.Background(), "ca", protocol.JoinCallRoomRequest{RoomID: "g2", PeerID: "p1"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		h.join("ca", "g1", "p1")
	})
	t.Run("bad ids", func(t *testing.T) {
		h := newHarness(t, Options{AllowAnonymous: true})
		h.connect("ca", nil)
		err := h.orch.JoinCallRoom(context.Background(), "ca", protocol.JoinCallRoomRequest{RoomID: " ", PeerID: "p1"})
		assert.ErrorIs(t, err, domain.ErrBadRequest)
		err = h.orch.JoinCallRoom(context.Background(), "ca", protocol.JoinCallRoomRequest{RoomID: "g1"})
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	})
	t.Run("rate limited", func(t *testing.T) {
		h := newHarness(t, Options{AllowAnonymous: true})
		h.orch.Limiter = app.NewJoinRateLimiter(1, time.Minute)
		h.connect("ca", nil)
		h.join("ca", "g1", "p1")
		err := h.orch.JoinCallRoom(context.Background(), "ca", protocol.JoinCallRoomRequest{RoomID: "g2", PeerID: "p1"})
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})
}

func TestPeerIDTakeover(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("c1", nil)
	b := h.connect("cb", nil)
	h.connect("c2", nil)
	h.join("c1", "g1", "p1")
	h.join("cb", "g1", "p2")

	h.join("c2", "g1", "p1")
	left := b.events(protocol.EventPeerLeftCall)
	require.Len(t, left, 1)
	assert.Equal(t, domain.PeerID("p1"), decode[protocol.PeerLeftCall](t, left[0]).PeerID)

	_, ok := h.orch.Rooms.PeerByConn("c1")
	assert.False(t, ok)
	assert.False(t, h.orch.Registry.InGroup("c1", app.CallGroup("g1")))

	h.orch.OnDisconnect("c1")
	snap, _ := h.orch.Rooms.Snapshot("g1")
	assert.Len(t, snap, 2, "the stale connection closing must not remove the new owner")
}

func TestSecondJoinLeavesFirstRoom(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	b := h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")

	h.join("ca", "g2", "p1")
	assert.Len(t, b.events(protocol.EventPeerLeftCall), 1)
	who := h.orch.WhoAmI("ca")
	assert.Equal(t, domain.RoomID("g2"), who.RoomID)
	assert.Equal(t, []domain.RoomInfo{{ID: "g1", PeerCount: 1}, {ID: "g2", PeerCount: 1}}, h.orch.Rooms.List())
}

func TestRejoinSameRoomIsNoop(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	a := h.connect("ca", nil)
	h.join("ca", "g1", "p1")
	h.join("ca", "g1", "p1")
	assert.Len(t, a.events(protocol.EventCallRoomJoined), 2)
	assert.Len(t, h.engine.Routers(), 1)
}

func TestPresence(t *testing.T) {
	h := newHarness(t, Options{})
	bob := h.connect("cb", &domain.User{ID: "bob"}, "g1")
	h.connect("ca1", &domain.User{ID: "alice"}, "g1")
	h.connect("ca2", &domain.User{ID: "alice"}, "g1")

	online := bob.events(protocol.EventPresence)
	require.Len(t, online, 1, "only the first connection of a user announces")
	assert.Equal(t, protocol.Presence{UserID: "alice", Online: true}, decode[protocol.Presence](t, online[0]))

	bob.reset()
	h.orch.OnDisconnect("ca1")
	assert.Empty(t, bob.events(protocol.EventPresence))
	h.orch.OnDisconnect("ca2")
	offline := bob.events(protocol.EventPresence)
	require.Len(t, offline, 1)
	assert.False(t, decode[protocol.Presence](t, offline[0]).Online)
}

func TestRouterCapabilitiesAndWhoAmI(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", &domain.User{ID: "alice"})

	_, err := h.orch.RouterCapabilities("ca", protocol.RouterCapabilitiesRequest{})
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
	_, err = h.orch.RouterCapabilities("ca", protocol.RouterCapabilitiesRequest{RoomID: "g1"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	h.join("ca", "g1", "p1")
	caps, err := h.orch.RouterCapabilities("ca", protocol.RouterCapabilitiesRequest{})
	require.NoError(t, err)
	assert.Len(t, caps.RtpCapabilities.Codecs, 2)

	assert.Equal(t, protocol.WhoAmI{ConnID: "ca", UserID: "alice", RoomID: "g1", PeerID: "p1"}, h.orch.WhoAmI("ca"))
}

func TestDepartedProducerConsumersAreDropped(t *testing.T) {
	h := newHarness(t, Options{AllowAnonymous: true})
	h.connect("ca", nil)
	h.connect("cb", nil)
	h.join("ca", "g1", "p1")
	h.join("cb", "g1", "p2")
	prodID := h.produce("ca", h.transport("ca", false), domain.MediaKindVideo)
	recvID := h.transport("cb", true)

	room, _ := h.orch.Rooms.Room("g1")
	resp, err := h.orch.Consume(context.Background(), "cb", protocol.ConsumeRequest{
		TransportID: recvID, ProducerID: prodID, RtpCapabilities: room.Router.RtpCapabilities(),
	})
	require.NoError(t, err)

	h.orch.OnDisconnect("ca")

	peer, ok := h.orch.Rooms.PeerByConn("cb")
	require.True(t, ok)
	_, tracked := peer.Consumer(resp.ID)
	assert.False(t, tracked)

	_, err = h.orch.ResumeConsumer(context.Background(), "cb", protocol.ResumeConsumerRequest{ConsumerID: resp.ID})
	assert.ErrorIs(t, err, domain.ErrConsumerNotFound)
	assert.Equal(t, "consumer not found", domain.PublicMessage(err))
}
