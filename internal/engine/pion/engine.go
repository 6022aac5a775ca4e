// Package pion is the production media engine. Every WebRTC transport is an
// ORTC stack (ICE gatherer, ICE transport, DTLS transport) so the signaling
// layer can speak the mediasoup-client style protocol without SDP.
package pion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

var ErrWorkerClosed = errors.New("pion engine: worker closed")

type Config struct {
	MinPort     uint16
	MaxPort     uint16
	ListenIP    string
	AnnouncedIP string
	ICEServers  []string
	// GatherTimeout bounds candidate gathering of a new transport.
	GatherTimeout time.Duration
	// MaxConcurrentSetups bounds parallel transport setups per worker.
	MaxConcurrentSetups int64
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = 5 * time.Second
	}
	if cfg.MaxConcurrentSetups <= 0 {
		cfg.MaxConcurrentSetups = 16
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) NewWorker(_ context.Context, id int) (core.MediaWorker, error) {
	if e.cfg.MinPort > e.cfg.MaxPort {
		return nil, fmt.Errorf("pion engine: port range %d-%d", e.cfg.MinPort, e.cfg.MaxPort)
	}
	if e.cfg.ListenIP != "" && net.ParseIP(e.cfg.ListenIP) == nil {
		return nil, fmt.Errorf("pion engine: bad listen ip %q", e.cfg.ListenIP)
	}
	w := &Worker{
		id:      id,
		cfg:     e.cfg,
		died:    make(chan error, 1),
		setups:  semaphore.NewWeighted(e.cfg.MaxConcurrentSetups),
		routers: make(map[string]*Router),
	}
	log.Info().Str("module", "engine.pion").Int("worker", id).
		Uint16("min_port", e.cfg.MinPort).Uint16("max_port", e.cfg.MaxPort).Msg("worker ready")
	return w, nil
}

// Worker owns a set of routers. A panic in any of its media goroutines is
// fatal to the worker and reported on Died.
type Worker struct {
	id     int
	cfg    Config
	died   chan error
	once   sync.Once
	setups *semaphore.Weighted

	mu      sync.Mutex
	closed  bool
	routers map[string]*Router
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) Died() <-chan error { return w.died }

func (w *Worker) CreateRouter(_ context.Context, codecs []domain.RtpCodecCapability) (core.MediaRouter, error) {
	var r *Router
	err := w.guard("create router", func() error {
		var err error
		r, err = newRouter(w, codecs)
		return err
	})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		r.Close()
		return nil, ErrWorkerClosed
	}
	w.routers[r.id] = r
	return r, nil
}

// guard runs fn and turns a panic into a worker death.
func (w *Worker) guard(op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: %w: panic: %v", op, domain.ErrEngineFailure, rec)
			w.fail(err)
		}
	}()
	return fn()
}

// spawn runs fn on its own goroutine under guard.
func (w *Worker) spawn(op string, fn func()) {
	go func() {
		_ = w.guard(op, func() error {
			fn()
			return nil
		})
	}()
}

func (w *Worker) fail(err error) {
	w.once.Do(func() {
		log.Error().Str("module", "engine.pion").Int("worker", w.id).Err(err).Msg("worker failed")
		w.died <- err
		close(w.died)
		go w.shutdown()
	})
}

func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.died)
		w.shutdown()
	})
}

func (w *Worker) shutdown() {
	w.mu.Lock()
	w.closed = true
	routers := w.routers
	w.routers = make(map[string]*Router)
	w.mu.Unlock()
	for _, r := range routers {
		r.Close()
	}
	log.Info().Str("module", "engine.pion").Int("worker", w.id).Int("routers", len(routers)).Msg("worker closed")
}

func (w *Worker) forget(id string) {
	w.mu.Lock()
	delete(w.routers, id)
	w.mu.Unlock()
}
