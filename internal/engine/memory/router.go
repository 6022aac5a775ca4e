package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
)

type Router struct {
	id         string
	worker     *Worker
	caps       domain.RtpCapabilities
	closeCount atomic.Int32

	mu         sync.Mutex
	closed     bool
	transports map[string]*Transport
	producers  map[string]*Producer
}

func (r *Router) ID() string { return r.id }

func (r *Router) RtpCapabilities() domain.RtpCapabilities { return r.caps }

// CloseCount reports how many times Close was called.
func (r *Router) CloseCount() int { return int(r.closeCount.Load()) }

func (r *Router) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CanConsume reports whether caps contain the router codec the producer sends.
func (r *Router) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	r.mu.Lock()
	prod, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok || prod.Closed() {
		return false
	}
	_, ok = caps.Match(prod.kind, prod.codec.MimeType, prod.codec.ClockRate, prod.codec.Channels)
	return ok
}

func (r *Router) CreateWebRtcTransport(_ context.Context, opts core.TransportOptions) (core.MediaTransport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	t := &Transport{
		id:        uuid.NewString(),
		router:    r,
		direction: opts.Direction,
		info:      fakeTransportInfo(),
		producers: make(map[string]*Producer),
		consumers: make(map[string]*Consumer),
	}
	t.info.ID = t.id
	r.transports[t.id] = t
	return t, nil
}

// Transport looks a transport up by id.
func (r *Router) Transport(id string) (*Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transports[id]
	return t, ok
}

func (r *Router) codecFor(kind domain.MediaKind, mime string) (domain.RtpCodecCapability, bool) {
	for _, c := range r.caps.Codecs {
		if c.Kind == kind && strings.EqualFold(c.MimeType, mime) {
			return c, true
		}
	}
	return domain.RtpCodecCapability{}, false
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
	r.closeCount.Add(1)
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
}

func fakeTransportInfo() core.TransportInfo {
	return core.TransportInfo{
		IceParameters: domain.IceParameters{
			UsernameFragment: uuid.NewString()[:8],
			Password:         strings.ReplaceAll(uuid.NewString(), "-", ""),
			IceLite:          true,
		},
		IceCandidates: []domain.IceCandidate{{
			Foundation: "udpcandidate",
			Priority:   1076302079,
			IP:         "127.0.0.1",
			Address:    "127.0.0.1",
			Protocol:   "udp",
			Port:       40000,
			Type:       "host",
		}},
		DtlsParameters: domain.DtlsParameters{
			Role: "auto",
			Fingerprints: []domain.DtlsFingerprint{{
				Algorithm: "sha-256",
				Value:     strings.ToUpper(strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""))[:64],
			}},
		},
	}
}
