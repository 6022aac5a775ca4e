// Package memory is an in-process media engine. It keeps the full
// router/transport/producer/consumer bookkeeping of a real SFU and simulates
// media flow with a flag, which is enough for signaling-only deployments and
// for tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("memory engine: closed")

type Engine struct {
	mu      sync.Mutex
	workers []*Worker
	// FailWorker makes NewWorker fail for the given worker id.
	FailWorker map[int]error
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) NewWorker(_ context.Context, id int) (core.MediaWorker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.FailWorker[id]; err != nil {
		return nil, err
	}
	w := &Worker{
		id:      id,
		died:    make(chan error, 1),
		routers: make(map[string]*Router),
	}
	e.workers = append(e.workers, w)
	log.Debug().Str("module", "engine.memory").Int("worker", id).Msg("worker started")
	return w, nil
}

func (e *Engine) Workers() []*Worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Worker(nil), e.workers...)
}

// Routers lists every router ever created, closed ones included.
func (e *Engine) Routers() []*Router {
	var out []*Router
	for _, w := range e.Workers() {
		out = append(out, w.AllRouters()...)
	}
	return out
}

type Worker struct {
	id   int
	died chan error
	once sync.Once

	mu      sync.Mutex
	closed  bool
	routers map[string]*Router
	all     []*Router
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) Died() <-chan error { return w.died }

func (w *Worker) CreateRouter(_ context.Context, codecs []domain.RtpCodecCapability) (core.MediaRouter, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if len(codecs) == 0 {
		return nil, fmt.Errorf("memory engine: router without codecs")
	}
	r := &Router{
		id:         uuid.NewString(),
		worker:     w,
		caps:       domain.RtpCapabilities{Codecs: append([]domain.RtpCodecCapability(nil), codecs...)},
		transports: make(map[string]*Transport),
		producers:  make(map[string]*Producer),
	}
	w.routers[r.id] = r
	w.all = append(w.all, r)
	return r, nil
}

// AllRouters lists the routers this worker created, closed ones included.
func (w *Worker) AllRouters() []*Router {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Router(nil), w.all...)
}

// Kill simulates a fatal worker failure.
func (w *Worker) Kill(err error) {
	w.once.Do(func() {
		w.died <- err
		close(w.died)
		w.shutdown()
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
}

func (w *Worker) forget(id string) {
	w.mu.Lock()
	delete(w.routers, id)
	w.mu.Unlock()
}
