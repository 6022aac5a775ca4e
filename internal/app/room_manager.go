package app

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Room is a call room: one routing context and the peers inside it.
// Its peer map is guarded by the owning RoomManager.
type Room struct {
	ID     domain.RoomID
	Router core.MediaRouter
	peers  map[domain.PeerID]*Peer
}

type peerRef struct {
	room domain.RoomID
	peer *Peer
}

// RoomManager is the room registry. All mutations run under one lock, which
// also covers routing context creation so a room id never gets two routers.
type RoomManager struct {
	mu     sync.RWMutex
	pool   *MediaPool
	rooms  map[domain.RoomID]*Room
	byConn map[domain.ConnID]peerRef
}

func NewRoomManager(pool *MediaPool) *RoomManager {
	return &RoomManager{
		pool:   pool,
		rooms:  make(map[domain.RoomID]*Room),
		byConn: make(map[domain.ConnID]peerRef),
	}
}

// GetOrCreate returns the room, creating it and its routing context when absent.
func (m *RoomManager) GetOrCreate(ctx context.Context, id domain.RoomID) (*Room, bool, error) {
	m.mu.RLock()
	if r, ok := m.rooms[id]; ok {
		m.mu.RUnlock()
		return r, false, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(ctx, id)
}

func (m *RoomManager) getOrCreateLocked(ctx context.Context, id domain.RoomID) (*Room, bool, error) {
	if r, ok := m.rooms[id]; ok {
		return r, false, nil
	}
	router, err := m.pool.CreateRoutingContext(ctx, id)
	if err != nil {
		return nil, false, err
	}
	r := &Room{ID: id, Router: router, peers: make(map[domain.PeerID]*Peer)}
	m.rooms[id] = r
	metrics.CallRoomsCurrent.Inc()
	metrics.CallRoomsTotal.Inc()
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return r, true, nil
}

func (m *RoomManager) Room(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// JoinRequest describes a peer entering a call room.
type JoinRequest struct {
	RoomID           domain.RoomID
	PeerID           domain.PeerID
	ConnID           domain.ConnID
	User             *domain.User
	EnforceDirection bool
}

type JoinResult struct {
	Room    *Room
	Peer    *Peer
	Created bool
	// Replaced is a stale peer with the same id that was torn down.
	Replaced *Peer
	// Others are the peers already present, snapshotted at join time.
	Others []domain.PeerSnapshot
}

// Join gets or creates the room and registers a new peer in it as one step.
func (m *RoomManager) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, created, err := m.getOrCreateLocked(ctx, req.RoomID)
	if err != nil {
		return JoinResult{}, err
	}
	res := JoinResult{Room: room, Created: created}

	if stale, ok := room.peers[req.PeerID]; ok {
		m.evictLocked(room, stale)
		res.Replaced = stale
		log.Warn().Str("module", "app.rooms").Str("room", string(room.ID)).Str("peer", string(stale.ID)).
			Str("conn", string(stale.ConnID)).Msg("peer id taken over by a new connection")
	}

	peer := NewPeer(PeerOptions{
		ID:               req.PeerID,
		ConnID:           req.ConnID,
		RoomID:           room.ID,
		User:             req.User,
		Router:           room.Router,
		EnforceDirection: req.EnforceDirection,
	})
	res.Others = snapshotLocked(room, "")
	m.attachLocked(room, peer)
	res.Peer = peer
	return res, nil
}

// AddPeer inserts a peer into an existing room. Unknown rooms are only logged.
func (m *RoomManager) AddPeer(id domain.RoomID, peer *Peer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		log.Warn().Str("module", "app.rooms").Str("room", string(id)).Str("peer", string(peer.ID)).Msg("add peer to unknown room")
		return domain.ErrRoomNotFound
	}
	if stale, ok := room.peers[peer.ID]; ok {
		if stale == peer {
			return nil
		}
		m.evictLocked(room, stale)
	}
	m.attachLocked(room, peer)
	return nil
}

func (m *RoomManager) attachLocked(room *Room, peer *Peer) {
	room.peers[peer.ID] = peer
	m.byConn[peer.ConnID] = peerRef{room: room.ID, peer: peer}
	metrics.CallPeersCurrent.Inc()
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("peer", string(peer.ID)).
		Str("conn", string(peer.ConnID)).Int("peers", len(room.peers)).Msg("peer joined")
}

func (m *RoomManager) detachLocked(room *Room, peer *Peer) {
	delete(room.peers, peer.ID)
	if ref, ok := m.byConn[peer.ConnID]; ok && ref.peer == peer {
		delete(m.byConn, peer.ConnID)
	}
	metrics.CallPeersCurrent.Dec()
}

// RemovePeer closes the peer and drops it from its room. The room is closed
// when it becomes empty. It returns the removed peer, or nil when it was
// already gone.
func (m *RoomManager) RemovePeer(id domain.RoomID, peerID domain.PeerID) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, false
	}
	peer, ok := room.peers[peerID]
	if !ok {
		return nil, false
	}
	return peer, m.removeLocked(room, peer)
}

// RemoveByConn removes whatever peer the connection holds.
func (m *RoomManager) RemoveByConn(conn domain.ConnID) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.byConn[conn]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[ref.room]
	if !ok || room.peers[ref.peer.ID] != ref.peer {
		delete(m.byConn, conn)
		return nil, false
	}
	return ref.peer, m.removeLocked(room, ref.peer)
}

// evictLocked closes the peer and drops, from everyone left in the room, the
// consumers that were fed by its producers.
func (m *RoomManager) evictLocked(room *Room, peer *Peer) {
	producers := peer.ProducerIDs()
	m.detachLocked(room, peer)
	peer.Close()
	for _, other := range room.peers {
		other.DropConsumersOf(producers)
	}
}

func (m *RoomManager) removeLocked(room *Room, peer *Peer) bool {
	m.evictLocked(room, peer)
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("peer", string(peer.ID)).
		Int("peers", len(room.peers)).Msg("peer left")
	if len(room.peers) == 0 {
		m.closeRoomLocked(room)
		return true
	}
	return false
}

// CloseRoom tears down every remaining peer and the routing context.
func (m *RoomManager) CloseRoom(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok {
		m.closeRoomLocked(room)
	}
}

func (m *RoomManager) closeRoomLocked(room *Room) {
	for _, p := range room.peers {
		m.detachLocked(room, p)
		p.Close()
	}
	m.pool.CloseRoutingContext(room.ID)
	delete(m.rooms, room.ID)
	metrics.CallRoomsCurrent.Dec()
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room closed")
}

// OtherPeers lists the room's peers except the given one.
func (m *RoomManager) OtherPeers(id domain.RoomID, except domain.PeerID) []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil
	}
	out := make([]*Peer, 0, len(room.peers))
	for pid, p := range room.peers {
		if pid != except {
			out = append(out, p)
		}
	}
	return out
}

func (m *RoomManager) PeerByConn(conn domain.ConnID) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.byConn[conn]
	if !ok {
		return nil, false
	}
	return ref.peer, true
}

// HasProducer reports whether any peer of the room owns producerID.
func (m *RoomManager) HasProducer(id domain.RoomID, producerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return false
	}
	for _, p := range room.peers {
		if p.HasProducer(producerID) {
			return true
		}
	}
	return false
}

// Snapshot describes every peer of the room.
func (m *RoomManager) Snapshot(id domain.RoomID) ([]domain.PeerSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, false
	}
	return snapshotLocked(room, ""), true
}

func snapshotLocked(room *Room, except domain.PeerID) []domain.PeerSnapshot {
	out := make([]domain.PeerSnapshot, 0, len(room.peers))
	for pid, p := range room.peers {
		if pid == except {
			continue
		}
		out = append(out, p.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

func (m *RoomManager) List() []domain.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, domain.RoomInfo{ID: id, PeerCount: len(r.peers)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *RoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CloseAll closes every room. Used on shutdown.
func (m *RoomManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range m.rooms {
		m.closeRoomLocked(room)
	}
}
