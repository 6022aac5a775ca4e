package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/metrics"
	"github.com/rs/zerolog/log"
)

type PeerState int

const (
	PeerJoined PeerState = iota
	PeerTransportReady
	PeerLeft
)

func (s PeerState) String() string {
	switch s {
	case PeerJoined:
		return "joined"
	case PeerTransportReady:
		return "transport-ready"
	case PeerLeft:
		return "left"
	}
	return "unknown"
}

// Transport is a media transport owned by a peer, tagged with the direction
// it was requested for.
type Transport struct {
	core.MediaTransport
	Direction domain.Direction
}

// Peer is one call participant. Its maps are only mutated by the owning
// connection but may be read by teardown running on another goroutine.
type Peer struct {
	ID     domain.PeerID
	ConnID domain.ConnID
	RoomID domain.RoomID
	User   *domain.User

	router           core.MediaRouter
	enforceDirection bool

	mu         sync.RWMutex
	state      PeerState
	transports map[string]*Transport
	producers  map[string]core.MediaProducer
	consumers  map[string]core.MediaConsumer
}

type PeerOptions struct {
	ID               domain.PeerID
	ConnID           domain.ConnID
	RoomID           domain.RoomID
	User             *domain.User
	Router           core.MediaRouter
	EnforceDirection bool
}

func NewPeer(opts PeerOptions) *Peer {
	return &Peer{
		ID:               opts.ID,
		ConnID:           opts.ConnID,
		RoomID:           opts.RoomID,
		User:             opts.User,
		router:           opts.Router,
		enforceDirection: opts.EnforceDirection,
		state:            PeerJoined,
		transports:       make(map[string]*Transport),
		producers:        make(map[string]core.MediaProducer),
		consumers:        make(map[string]core.MediaConsumer),
	}
}

func (p *Peer) State() PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// engineErr keeps domain errors readable and tags everything else as an engine failure.
func engineErr(op string, err error) error {
	for _, known := range []error{
		domain.ErrNotFound, domain.ErrIncompatible, domain.ErrBadRequest,
		domain.ErrWrongDirection, domain.ErrPeerLeft, domain.ErrEngineFailure,
	} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrEngineFailure, err)
}

func (p *Peer) CreateTransport(ctx context.Context, dir domain.Direction) (*Transport, error) {
	if p.State() == PeerLeft {
		return nil, domain.ErrPeerLeft
	}
	mt, err := p.router.CreateWebRtcTransport(ctx, core.TransportOptions{Direction: dir})
	if err != nil {
		return nil, engineErr("create transport", err)
	}
	t := &Transport{MediaTransport: mt, Direction: dir}

	p.mu.Lock()
	if p.state == PeerLeft {
		p.mu.Unlock()
		mt.Close()
		return nil, domain.ErrPeerLeft
	}
	p.transports[mt.ID()] = t
	p.state = PeerTransportReady
	p.mu.Unlock()

	metrics.TransportsCurrent.Inc()
	log.Info().Str("module", "app.peer").Str("room", string(p.RoomID)).Str("peer", string(p.ID)).
		Str("transport", mt.ID()).Str("direction", string(dir)).Msg("transport created")
	return t, nil
}

func (p *Peer) transport(id string) (*Transport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == PeerLeft {
		return nil, domain.ErrPeerLeft
	}
	t, ok := p.transports[id]
	if !ok {
		return nil, domain.ErrTransportNotFound
	}
	return t, nil
}

func (p *Peer) ConnectTransport(ctx context.Context, transportID string, params core.ConnectParams) error {
	t, err := p.transport(transportID)
	if err != nil {
		return err
	}
	if err := t.Connect(ctx, params); err != nil {
		return engineErr("connect transport", err)
	}
	log.Info().Str("module", "app.peer").Str("peer", string(p.ID)).Str("transport", transportID).Msg("transport connected")
	return nil
}

func (p *Peer) Produce(ctx context.Context, transportID string, kind domain.MediaKind, params domain.RtpParameters) (core.MediaProducer, error) {
	t, err := p.transport(transportID)
	if err != nil {
		return nil, err
	}
	if p.enforceDirection && t.Direction != domain.DirectionSend {
		return nil, domain.ErrWrongDirection
	}
	prod, err := t.Produce(ctx, kind, params)
	if err != nil {
		return nil, engineErr("produce", err)
	}

	p.mu.Lock()
	if p.state == PeerLeft {
		p.mu.Unlock()
		prod.Close()
		return nil, domain.ErrPeerLeft
	}
	p.producers[prod.ID()] = prod
	p.mu.Unlock()

	log.Info().Str("module", "app.peer").Str("room", string(p.RoomID)).Str("peer", string(p.ID)).
		Str("producer", prod.ID()).Str("kind", string(kind)).Msg("producer created")
	return prod, nil
}

// Consume creates a paused consumer of producerID. Capabilities the router
// cannot serve fail with ErrIncompatible and leave no consumer behind.
func (p *Peer) Consume(ctx context.Context, transportID, producerID string, caps domain.RtpCapabilities) (core.MediaConsumer, error) {
	t, err := p.transport(transportID)
	if err != nil {
		return nil, err
	}
	if p.enforceDirection && t.Direction != domain.DirectionRecv {
		return nil, domain.ErrWrongDirection
	}
	if !p.router.CanConsume(producerID, caps) {
		return nil, fmt.Errorf("consume %s: %w", producerID, domain.ErrIncompatible)
	}
	cons, err := t.Consume(ctx, producerID, caps, true)
	if err != nil {
		return nil, engineErr("consume", err)
	}

	p.mu.Lock()
	if p.state == PeerLeft {
		p.mu.Unlock()
		cons.Close()
		return nil, domain.ErrPeerLeft
	}
	p.consumers[cons.ID()] = cons
	p.mu.Unlock()

	log.Info().Str("module", "app.peer").Str("peer", string(p.ID)).Str("consumer", cons.ID()).
		Str("producer", producerID).Msg("consumer created")
	return cons, nil
}

func (p *Peer) ResumeConsumer(ctx context.Context, consumerID string) error {
	p.mu.RLock()
	cons, ok := p.consumers[consumerID]
	left := p.state == PeerLeft
	p.mu.RUnlock()
	if left {
		return domain.ErrPeerLeft
	}
	if !ok {
		return domain.ErrConsumerNotFound
	}
	if c, ok := cons.(interface{ Closed() bool }); ok && c.Closed() {
		p.mu.Lock()
		delete(p.consumers, consumerID)
		p.mu.Unlock()
		return domain.ErrConsumerNotFound
	}
	if err := cons.Resume(ctx); err != nil {
		return engineErr("resume consumer", err)
	}
	return nil
}

// Consumer is exposed for inspection.
func (p *Peer) Consumer(id string) (core.MediaConsumer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.consumers[id]
	return c, ok
}

func (p *Peer) HasProducer(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.producers[id]
	return ok
}

// Producers returns the public view of the peer's current producers.
func (p *Peer) Producers() []domain.ProducerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.ProducerInfo, 0, len(p.producers))
	for id, prod := range p.producers {
		out = append(out, domain.ProducerInfo{ID: id, Kind: prod.Kind()})
	}
	return out
}

func (p *Peer) ProducerIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.producers))
	for id := range p.producers {
		out = append(out, id)
	}
	return out
}

// DropConsumersOf forgets and closes the consumers fed by the given
// producers. It returns the ids of the dropped consumers.
func (p *Peer) DropConsumersOf(producerIDs []string) []string {
	if len(producerIDs) == 0 {
		return nil
	}
	gone := make(map[string]struct{}, len(producerIDs))
	for _, id := range producerIDs {
		gone[id] = struct{}{}
	}

	p.mu.Lock()
	var dropped []core.MediaConsumer
	for id, c := range p.consumers {
		if _, ok := gone[c.ProducerID()]; ok {
			dropped = append(dropped, c)
			delete(p.consumers, id)
		}
	}
	p.mu.Unlock()

	ids := make([]string, 0, len(dropped))
	for _, c := range dropped {
		c.Close()
		ids = append(ids, c.ID())
	}
	if len(ids) > 0 {
		log.Debug().Str("module", "app.peer").Str("peer", string(p.ID)).Strs("consumers", ids).Msg("dropped consumers of closed producers")
	}
	return ids
}

func (p *Peer) Snapshot() domain.PeerSnapshot {
	return domain.PeerSnapshot{PeerID: p.ID, Producers: p.Producers()}
}

// Close releases every transport and moves the peer to Left. Only the first
// call does any work; it reports whether it did.
func (p *Peer) Close() bool {
	p.mu.Lock()
	if p.state == PeerLeft {
		p.mu.Unlock()
		return false
	}
	p.state = PeerLeft
	transports := p.transports
	p.transports = make(map[string]*Transport)
	p.producers = make(map[string]core.MediaProducer)
	p.consumers = make(map[string]core.MediaConsumer)
	p.mu.Unlock()

	for _, t := range transports {
		t.Close()
		metrics.TransportsCurrent.Dec()
	}
	log.Info().Str("module", "app.peer").Str("room", string(p.RoomID)).Str("peer", string(p.ID)).
		Int("transports", len(transports)).Msg("peer closed")
	return true
}
