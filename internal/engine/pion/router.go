package pion

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Router struct {
	id     string
	worker *Worker
	caps   domain.RtpCapabilities
	api    *webrtc.API

	mu         sync.Mutex
	closed     bool
	transports map[string]*Transport
	producers  map[string]*Producer
}

func newRouter(w *Worker, codecs []domain.RtpCodecCapability) (*Router, error) {
	if len(codecs) == 0 {
		return nil, fmt.Errorf("pion engine: router without codecs")
	}
	m := &webrtc.MediaEngine{}
	for _, c := range codecs {
		if err := m.RegisterCodec(toCodecParameters(c), codecType(c.Kind)); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
	}

	s := webrtc.SettingEngine{}
	if w.cfg.MinPort > 0 && w.cfg.MaxPort > 0 {
		if err := s.SetEphemeralUDPPortRange(w.cfg.MinPort, w.cfg.MaxPort); err != nil {
			return nil, fmt.Errorf("set port range: %w", err)
		}
	}
	if w.cfg.AnnouncedIP != "" {
		s.SetNAT1To1IPs([]string{w.cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}
	if ip := net.ParseIP(w.cfg.ListenIP); ip != nil && !ip.IsUnspecified() {
		s.SetIPFilter(func(candidate net.IP) bool { return candidate.Equal(ip) })
	}

	return &Router{
		id:         uuid.NewString(),
		worker:     w,
		caps:       domain.RtpCapabilities{Codecs: append([]domain.RtpCodecCapability(nil), codecs...)},
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)),
		transports: make(map[string]*Transport),
		producers:  make(map[string]*Producer),
	}, nil
}

func (r *Router) ID() string { return r.id }

func (r *Router) RtpCapabilities() domain.RtpCapabilities { return r.caps }

func (r *Router) codecFor(kind domain.MediaKind, mime string) (domain.RtpCodecCapability, bool) {
	for _, c := range r.caps.Codecs {
		if c.Kind == kind && strings.EqualFold(c.MimeType, mime) {
			return c, true
		}
	}
	return domain.RtpCodecCapability{}, false
}

func (r *Router) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	r.mu.Lock()
	prod, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok || prod.closed.Load() {
		return false
	}
	_, ok = caps.Match(prod.kind, prod.codec.MimeType, prod.codec.ClockRate, prod.codec.Channels)
	return ok
}

func (r *Router) CreateWebRtcTransport(ctx context.Context, opts core.TransportOptions) (core.MediaTransport, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrWorkerClosed
	}

	if err := r.worker.setups.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.worker.setups.Release(1)

	var t *Transport
	err := r.worker.guard("create transport", func() error {
		var err error
		t, err = newTransport(ctx, r, opts.Direction)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		t.Close()
		return nil, ErrWorkerClosed
	}
	r.transports[t.id] = t
	return t, nil
}

func (r *Router) addProducer(p *Producer) {
	r.mu.Lock()
	r.producers[p.id] = p
	r.mu.Unlock()
}

func (r *Router) producer(id string) (*Producer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *Router) removeProducer(id string) {
	r.mu.Lock()
	delete(r.producers, id)
	r.mu.Unlock()
}

func (r *Router) removeTransport(id string) {
	r.mu.Lock()
	delete(r.transports, id)
	r.mu.Unlock()
}

func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	transports := r.transports
	r.transports = make(map[string]*Transport)
	r.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
	r.worker.forget(r.id)
	log.Info().Str("module", "engine.pion").Str("router", r.id).Int("transports", len(transports)).Msg("router closed")
}
