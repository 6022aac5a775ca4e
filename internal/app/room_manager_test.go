package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/engine/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRooms(t *testing.T, workers int) (*RoomManager, *memory.Engine) {
	t.Helper()
	engine := memory.NewEngine()
	pool := NewMediaPool(engine, nil)
	require.NoError(t, pool.Initialize(context.Background(), workers))
	t.Cleanup(pool.Close)
	return NewRoomManager(pool), engine
}

func join(t *testing.T, m *RoomManager, room, peer, conn string) JoinResult {
	t.Helper()
	res, err := m.Join(context.Background(), JoinRequest{
		RoomID: domain.RoomID(room),
		PeerID: domain.PeerID(peer),
		ConnID: domain.ConnID(conn),
	})
	require.NoError(t, err)
	return res
}

func TestConcurrentJoinCreatesOneRouter(t *testing.T) {
	m, engine := newRooms(t, 2)

	const n = 32
	var wg sync.WaitGroup
	created := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Join(context.Background(), JoinRequest{
				RoomID: "g1",
				PeerID: domain.PeerID(fmt.Sprintf("p%d", i)),
				ConnID: domain.ConnID(fmt.Sprintf("c%d", i)),
			})
			if assert.NoError(t, err) {
				created <- res.Created
			}
		}(i)
	}
	wg.Wait()
	close(created)

	creators := 0
	for c := range created {
		if c {
			creators++
		}
	}
	assert.Equal(t, 1, creators)
	assert.Len(t, engine.Routers(), 1)

	snap, ok := m.Snapshot("g1")
	require.True(t, ok)
	assert.Len(t, snap, n)
}

func TestConcurrentGetOrCreate(t *testing.T) {
	m, engine := newRooms(t, 1)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.GetOrCreate(context.Background(), "g1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, engine.Routers(), 1)
}

func TestLastPeerClosesRoomOnce(t *testing.T) {
	m, engine := newRooms(t, 1)
	join(t, m, "g1", "p1", "c1")
	second := join(t, m, "g1", "p2", "c2")
	require.Len(t, second.Others, 1)
	assert.Equal(t, domain.PeerID("p1"), second.Others[0].PeerID)
	assert.Empty(t, second.Others[0].Producers)

	peer, closed := m.RemovePeer("g1", "p1")
	require.NotNil(t, peer)
	assert.False(t, closed)
	_, ok := m.Room("g1")
	assert.True(t, ok)

	peer, closed = m.RemoveByConn("c2")
	require.NotNil(t, peer)
	assert.True(t, closed)
	_, ok = m.Room("g1")
	assert.False(t, ok)

	peer, closed = m.RemoveByConn("c2")
	assert.Nil(t, peer)
	assert.False(t, closed)
	peer, _ = m.RemovePeer("g1", "p2")
	assert.Nil(t, peer)

	routers := engine.Routers()
	require.Len(t, routers, 1)
	assert.Equal(t, 1, routers[0].CloseCount())
}

func TestJoinTakesOverStalePeer(t *testing.T) {
	m, _ := newRooms(t, 1)
	first := join(t, m, "g1", "p1", "c1")
	second := join(t, m, "g1", "p1", "c2")

	require.NotNil(t, second.Replaced)
	assert.Same(t, first.Peer, second.Replaced)
	assert.Equal(t, PeerLeft, first.Peer.State())
	assert.Empty(t, second.Others)

	_, ok := m.PeerByConn("c1")
	assert.False(t, ok)
	p, ok := m.PeerByConn("c2")
	require.True(t, ok)
	assert.Same(t, second.Peer, p)
	assert.Equal(t, []domain.RoomInfo{{ID: "g1", PeerCount: 1}}, m.List())
}

func TestAddPeerUnknownRoom(t *testing.T) {
	m, _ := newRooms(t, 1)
	err := m.AddPeer("nope", NewPeer(PeerOptions{ID: "p1", ConnID: "c1", RoomID: "nope"}))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, ok := m.PeerByConn("c1")
	assert.False(t, ok)
}

func TestCloseRoomClosesPeers(t *testing.T) {
	m, engine := newRooms(t, 1)
	room, created, err := m.GetOrCreate(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, created)

	p := NewPeer(PeerOptions{ID: "p1", ConnID: "c1", RoomID: "g1", Router: room.Router})
	require.NoError(t, m.AddPeer("g1", p))
	assert.Len(t, m.OtherPeers("g1", "p2"), 1)
	assert.Empty(t, m.OtherPeers("g1", "p1"))

	m.CloseRoom("g1")
	assert.Equal(t, PeerLeft, p.State())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, engine.Routers()[0].CloseCount())
}

func TestLeavingPeerDropsRemoteConsumers(t *testing.T) {
	ctx := context.Background()
	m, _ := newRooms(t, 1)
	first := join(t, m, "g1", "p1", "c1")
	a := first.Peer
	b := join(t, m, "g1", "p2", "c2").Peer
	c := join(t, m, "g1", "p3", "c3").Peer

	send, err := a.CreateTransport(ctx, domain.DirectionSend)
	require.NoError(t, err)
	prod, err := a.Produce(ctx, send.ID(), domain.MediaKindVideo, videoParams())
	require.NoError(t, err)
	cProd, err := c.CreateTransport(ctx, domain.DirectionSend)
	require.NoError(t, err)
	keep, err := c.Produce(ctx, cProd.ID(), domain.MediaKindVideo, videoParams())
	require.NoError(t, err)

	recv, err := b.CreateTransport(ctx, domain.DirectionRecv)
	require.NoError(t, err)
	caps := first.Room.Router.RtpCapabilities()
	gone, err := b.Consume(ctx, recv.ID(), prod.ID(), caps)
	require.NoError(t, err)
	kept, err := b.Consume(ctx, recv.ID(), keep.ID(), caps)
	require.NoError(t, err)

	_, closed := m.RemoveByConn("c1")
	assert.False(t, closed)

	_, ok := b.Consumer(gone.ID())
	assert.False(t, ok)
	_, ok = b.Consumer(kept.ID())
	assert.True(t, ok)
	assert.ErrorIs(t, b.ResumeConsumer(ctx, gone.ID()), domain.ErrConsumerNotFound)
	require.NoError(t, b.ResumeConsumer(ctx, kept.ID()))
}

func TestTakeoverDropsRemoteConsumers(t *testing.T) {
	ctx := context.Background()
	m, _ := newRooms(t, 1)
	first := join(t, m, "g1", "p1", "c1")
	a := first.Peer
	b := join(t, m, "g1", "p2", "c2").Peer

	send, err := a.CreateTransport(ctx, domain.DirectionSend)
	require.NoError(t, err)
	prod, err := a.Produce(ctx, send.ID(), domain.MediaKindVideo, videoParams())
	require.NoError(t, err)
	recv, err := b.CreateTransport(ctx, domain.DirectionRecv)
	require.NoError(t, err)
	cons, err := b.Consume(ctx, recv.ID(), prod.ID(), first.Room.Router.RtpCapabilities())
	require.NoError(t, err)

	join(t, m, "g1", "p1", "c9")

	_, ok := b.Consumer(cons.ID())
	assert.False(t, ok)
}
