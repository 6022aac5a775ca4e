package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
)

type Transport struct {
	id        string
	router    *Router
	direction domain.Direction
	info      core.TransportInfo
	mids      atomic.Int32

	mu        sync.Mutex
	connected bool
	closed    bool
	producers map[string]*Producer
	consumers map[string]*Consumer
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Info() core.TransportInfo { return t.info }

func (t *Transport) Direction() domain.Direction { return t.direction }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Connect(_ context.Context, params core.ConnectParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.connected {
		return fmt.Errorf("memory engine: transport %s already connected", t.id)
	}
	if len(params.DtlsParameters.Fingerprints) == 0 {
		return fmt.Errorf("%w: dtlsParameters without fingerprints", domain.ErrBadRequest)
	}
	t.connected = true
	return nil
}

func (t *Transport) Produce(_ context.Context, kind domain.MediaKind, params domain.RtpParameters) (core.MediaProducer, error) {
	if len(params.Codecs) == 0 {
		return nil, fmt.Errorf("%w: rtpParameters without codecs", domain.ErrBadRequest)
	}
	codec, ok := t.router.codecFor(kind, params.Codecs[0].MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported %s codec %s", domain.ErrBadRequest, kind, params.Codecs[0].MimeType)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	p := &Producer{id: uuid.NewString(), kind: kind, codec: codec, transport: t}
	t.producers[p.id] = p
	t.mu.Unlock()

	t.router.addProducer(p)
	return p, nil
}

// Consume pairs a consumer with a producer of the same router.
func (t *Transport) Consume(_ context.Context, producerID string, _ domain.RtpCapabilities, paused bool) (core.MediaConsumer, error) {
	prod, ok := t.router.producer(producerID)
	if !ok || prod.Closed() {
		return nil, domain.ErrProducerNotFound
	}

	c := &Consumer{
		id:        uuid.NewString(),
		producer:  prod,
		transport: t,
		params: domain.RtpParameters{
			Mid: strconv.Itoa(int(t.mids.Add(1) - 1)),
			Codecs: []domain.RtpCodecParameters{{
				MimeType:     prod.codec.MimeType,
				PayloadType:  prod.codec.PreferredPayloadType,
				ClockRate:    prod.codec.ClockRate,
				Channels:     prod.codec.Channels,
				Parameters:   prod.codec.Parameters,
				RtcpFeedback: prod.codec.RtcpFeedback,
			}},
			Encodings: []domain.RtpEncodingParameters{{Ssrc: rand.Uint32()}},
		},
	}
	c.paused.Store(paused)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.consumers[c.id] = c
	t.mu.Unlock()

	prod.addConsumer(c)
	return c, nil
}

// Consumers lists the live consumers of the transport.
func (t *Transport) Consumers() []*Consumer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Consumer, 0, len(t.consumers))
	for _, c := range t.consumers {
		out = append(out, c)
	}
	return out
}

func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	t.producers = make(map[string]*Producer)
	t.consumers = make(map[string]*Consumer)
	t.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
	for _, c := range consumers {
		c.Close()
	}
	t.router.removeTransport(t.id)
}

type Producer struct {
	id        string
	kind      domain.MediaKind
	codec     domain.RtpCodecCapability
	transport *Transport
	closed    atomic.Bool

	mu        sync.Mutex
	consumers []*Consumer
}

func (p *Producer) ID() string { return p.id }

func (p *Producer) Kind() domain.MediaKind { return p.kind }

func (p *Producer) Closed() bool { return p.closed.Load() }

func (p *Producer) addConsumer(c *Consumer) {
	p.mu.Lock()
	p.consumers = append(p.consumers, c)
	p.mu.Unlock()
}

// Close also closes every consumer paired with the producer.
func (p *Producer) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	consumers := p.consumers
	p.consumers = nil
	p.mu.Unlock()
	for _, c := range consumers {
		c.Close()
	}
	p.transport.router.removeProducer(p.id)
}

type Consumer struct {
	id        string
	producer  *Producer
	transport *Transport
	params    domain.RtpParameters
	paused    atomic.Bool
	closed    atomic.Bool
}

func (c *Consumer) ID() string { return c.id }

func (c *Consumer) ProducerID() string { return c.producer.id }

func (c *Consumer) Kind() domain.MediaKind { return c.producer.kind }

func (c *Consumer) RtpParameters() domain.RtpParameters { return c.params }

func (c *Consumer) Paused() bool { return c.paused.Load() }

func (c *Consumer) Closed() bool { return c.closed.Load() }

func (c *Consumer) Resume(context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.paused.Store(false)
	return nil
}

// MediaFlowing simulates forwarding: media flows once the consumer is resumed
// and as long as both ends are alive.
func (c *Consumer) MediaFlowing() bool {
	return !c.paused.Load() && !c.closed.Load() && !c.producer.Closed()
}

func (c *Consumer) Close() {
	c.closed.Store(true)
}
