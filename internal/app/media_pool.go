package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrPoolInitialized = errors.New("media pool already initialized")
var ErrPoolEmpty = errors.New("media pool has no workers")

type routingContext struct {
	router core.MediaRouter
	worker core.MediaWorker
}

// MediaPool owns the media workers and the routing context of every room.
type MediaPool struct {
	engine  core.MediaEngine
	onDeath func(workerID int, err error)

	mu      sync.Mutex
	workers []core.MediaWorker
	next    int
	routers map[domain.RoomID]routingContext
}

func NewMediaPool(engine core.MediaEngine, onDeath func(workerID int, err error)) *MediaPool {
	return &MediaPool{
		engine:  engine,
		onDeath: onDeath,
		routers: make(map[domain.RoomID]routingContext),
	}
}

// Initialize spawns count workers one after another. Any failure is returned
// and the workers spawned so far are closed.
func (p *MediaPool) Initialize(ctx context.Context, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) > 0 {
		return ErrPoolInitialized
	}
	if count < 1 {
		return fmt.Errorf("media pool: invalid worker count %d", count)
	}
	workers := make([]core.MediaWorker, 0, count)
	for i := 0; i < count; i++ {
		w, err := p.engine.NewWorker(ctx, i)
		if err != nil {
			for _, started := range workers {
				started.Close()
			}
			return fmt.Errorf("media pool: start worker %d: %w", i, err)
		}
		workers = append(workers, w)
		log.Info().Str("module", "app.pool").Int("worker", w.ID()).Msg("media worker started")
	}
	p.workers = workers
	metrics.MediaWorkers.Set(float64(len(workers)))
	for _, w := range workers {
		go p.watch(w)
	}
	return nil
}

func (p *MediaPool) watch(w core.MediaWorker) {
	err, ok := <-w.Died()
	if !ok {
		return
	}
	metrics.MediaWorkers.Dec()
	log.Error().Str("module", "app.pool").Int("worker", w.ID()).Err(err).Msg("media worker died")
	if p.onDeath != nil {
		p.onDeath(w.ID(), err)
	}
}

// CreateRoutingContext creates a router for roomID on the next worker in
// round-robin order. An existing mapping for roomID is overwritten.
func (p *MediaPool) CreateRoutingContext(ctx context.Context, roomID domain.RoomID) (core.MediaRouter, error) {
	p.mu.Lock()
	if len(p.workers) == 0 {
		p.mu.Unlock()
		return nil, ErrPoolEmpty
	}
	w := p.workers[p.next]
	p.next = (p.next + 1) % len(p.workers)
	p.mu.Unlock()

	router, err := w.CreateRouter(ctx, domain.RouterCodecs())
	if err != nil {
		return nil, fmt.Errorf("create router for room %s: %w: %w", roomID, domain.ErrEngineFailure, err)
	}

	p.mu.Lock()
	prev, had := p.routers[roomID]
	p.routers[roomID] = routingContext{router: router, worker: w}
	p.mu.Unlock()
	if had {
		log.Warn().Str("module", "app.pool").Str("room", string(roomID)).Msg("routing context overwritten")
		metrics.RoutersCurrent.WithLabelValues(strconv.Itoa(prev.worker.ID())).Dec()
	}
	metrics.RoutersCurrent.WithLabelValues(strconv.Itoa(w.ID())).Inc()
	log.Info().Str("module", "app.pool").Str("room", string(roomID)).Str("router", router.ID()).Int("worker", w.ID()).Msg("routing context created")
	return router, nil
}

func (p *MediaPool) RoutingContext(roomID domain.RoomID) (core.MediaRouter, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rc, ok := p.routers[roomID]
	return rc.router, ok
}

// CloseRoutingContext closes and forgets the room's router. Unknown rooms are a no-op.
func (p *MediaPool) CloseRoutingContext(roomID domain.RoomID) {
	p.mu.Lock()
	rc, ok := p.routers[roomID]
	delete(p.routers, roomID)
	p.mu.Unlock()
	if !ok {
		return
	}
	rc.router.Close()
	metrics.RoutersCurrent.WithLabelValues(strconv.Itoa(rc.worker.ID())).Dec()
	log.Info().Str("module", "app.pool").Str("room", string(roomID)).Msg("routing context closed")
}

func (p *MediaPool) Capabilities(roomID domain.RoomID) (domain.RtpCapabilities, error) {
	router, ok := p.RoutingContext(roomID)
	if !ok {
		return domain.RtpCapabilities{}, domain.ErrRoomNotFound
	}
	return router.RtpCapabilities(), nil
}

// WorkerLoad reports the number of routing contexts hosted by each worker.
func (p *MediaPool) WorkerLoad() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	load := make(map[int]int, len(p.workers))
	for _, w := range p.workers {
		load[w.ID()] = 0
	}
	for _, rc := range p.routers {
		load[rc.worker.ID()]++
	}
	return load
}

// Close closes every router, then every worker.
func (p *MediaPool) Close() {
	p.mu.Lock()
	routers := p.routers
	workers := p.workers
	p.routers = make(map[domain.RoomID]routingContext)
	p.workers = nil
	p.mu.Unlock()

	for _, rc := range routers {
		rc.router.Close()
	}
	for _, w := range workers {
		w.Close()
	}
	metrics.MediaWorkers.Set(0)
}
