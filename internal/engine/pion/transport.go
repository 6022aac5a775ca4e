package pion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var errTransportClosed = errors.New("pion engine: transport closed")

type Transport struct {
	id        string
	router    *Router
	direction domain.Direction
	info      core.TransportInfo

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	// ready closes once ICE and DTLS are up; done closes on Close.
	ready     chan struct{}
	done      chan struct{}
	connected atomic.Bool
	mids      atomic.Int32

	mu        sync.Mutex
	closed    bool
	producers map[string]*Producer
	consumers map[string]*Consumer
}

func newTransport(ctx context.Context, r *Router, dir domain.Direction) (*Transport, error) {
	servers := make([]webrtc.ICEServer, 0, 1)
	if len(r.worker.cfg.ICEServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: r.worker.cfg.ICEServers})
	}
	gatherer, err := r.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("ice gatherer: %w", err)
	}
	ice := r.api.NewICETransport(gatherer)
	dtls, err := r.api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("dtls transport: %w", err)
	}

	t := &Transport{
		id:        uuid.NewString(),
		router:    r,
		direction: dir,
		gatherer:  gatherer,
		ice:       ice,
		dtls:      dtls,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		producers: make(map[string]*Producer),
		consumers: make(map[string]*Consumer),
	}
	if err := t.gather(ctx); err != nil {
		t.Close()
		return nil, err
	}
	log.Info().Str("module", "engine.pion").Str("router", r.id).Str("transport", t.id).
		Int("candidates", len(t.info.IceCandidates)).Msg("transport created")
	return t, nil
}

func (t *Transport) gather(ctx context.Context) error {
	finished := make(chan struct{})
	var once sync.Once
	t.gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(finished) })
		}
	})
	if err := t.gatherer.Gather(); err != nil {
		return fmt.Errorf("gather: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.router.worker.cfg.GatherTimeout)
	defer cancel()
	select {
	case <-finished:
	case <-ctx.Done():
		return fmt.Errorf("gather: %w", ctx.Err())
	}

	cands, err := t.gatherer.GetLocalCandidates()
	if err != nil {
		return fmt.Errorf("local candidates: %w", err)
	}
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return fmt.Errorf("local ice parameters: %w", err)
	}
	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		return fmt.Errorf("local dtls parameters: %w", err)
	}
	t.info = core.TransportInfo{
		ID:             t.id,
		IceParameters:  fromICEParameters(iceParams),
		IceCandidates:  fromICECandidates(cands),
		DtlsParameters: fromDTLSParameters(dtlsParams),
	}
	return nil
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Info() core.TransportInfo { return t.info }

// Connect starts ICE as the controlled side and then DTLS in the background.
// Media set up on the transport waits for both to finish.
func (t *Transport) Connect(_ context.Context, params core.ConnectParams) error {
	if params.IceParameters == nil {
		return domain.ErrIceParametersRequired
	}
	if len(params.DtlsParameters.Fingerprints) == 0 {
		return fmt.Errorf("%w: dtlsParameters without fingerprints", domain.ErrBadRequest)
	}
	if t.isClosed() {
		return errTransportClosed
	}
	if !t.connected.CompareAndSwap(false, true) {
		return fmt.Errorf("pion engine: transport %s already connected", t.id)
	}

	iceParams := toICEParameters(*params.IceParameters)
	dtlsParams := toDTLSParameters(params.DtlsParameters)
	t.router.worker.spawn("connect transport", func() {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(nil, iceParams, &role); err != nil {
			log.Warn().Str("module", "engine.pion").Str("transport", t.id).Err(err).Msg("ice start failed")
			return
		}
		if err := t.dtls.Start(dtlsParams); err != nil {
			log.Warn().Str("module", "engine.pion").Str("transport", t.id).Err(err).Msg("dtls start failed")
			return
		}
		close(t.ready)
		log.Info().Str("module", "engine.pion").Str("transport", t.id).Msg("transport connected")
	})
	return nil
}

// awaitReady reports false when the transport closed first.
func (t *Transport) awaitReady() bool {
	select {
	case <-t.ready:
		return true
	case <-t.done:
		return false
	}
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) nextMid() string {
	return strconv.Itoa(int(t.mids.Add(1) - 1))
}

func (t *Transport) writeRTCP(pkts []rtcp.Packet) error {
	_, err := t.dtls.WriteRTCP(pkts)
	return err
}

func (t *Transport) Produce(_ context.Context, kind domain.MediaKind, params domain.RtpParameters) (core.MediaProducer, error) {
	if len(params.Codecs) == 0 || len(params.Encodings) == 0 || params.Encodings[0].Ssrc == 0 {
		return nil, fmt.Errorf("%w: rtpParameters need a codec and an ssrc encoding", domain.ErrBadRequest)
	}
	codec, ok := t.router.codecFor(kind, params.Codecs[0].MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported %s codec %s", domain.ErrBadRequest, kind, params.Codecs[0].MimeType)
	}
	p, err := newProducer(t, kind, codec, params)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		p.Close()
		return nil, errTransportClosed
	}
	t.producers[p.id] = p
	t.mu.Unlock()

	t.router.addProducer(p)
	p.start()
	return p, nil
}

func (t *Transport) Consume(_ context.Context, producerID string, _ domain.RtpCapabilities, paused bool) (core.MediaConsumer, error) {
	prod, ok := t.router.producer(producerID)
	if !ok || prod.closed.Load() {
		return nil, domain.ErrProducerNotFound
	}
	c, err := newConsumer(t, prod, paused)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		c.Close()
		return nil, errTransportClosed
	}
	t.consumers[c.id] = c
	t.mu.Unlock()

	prod.relay.AddOutTrack(c.id, c.out)
	c.start()
	return c, nil
}

func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.done)
	producers := t.producers
	consumers := t.consumers
	t.producers = make(map[string]*Producer)
	t.consumers = make(map[string]*Consumer)
	t.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
	for _, p := range producers {
		p.Close()
	}
	if err := t.dtls.Stop(); err != nil {
		log.Debug().Str("module", "engine.pion").Str("transport", t.id).Err(err).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		log.Debug().Str("module", "engine.pion").Str("transport", t.id).Err(err).Msg("ice stop")
	}
	if err := t.gatherer.Close(); err != nil {
		log.Debug().Str("module", "engine.pion").Str("transport", t.id).Err(err).Msg("gatherer close")
	}
	t.router.removeTransport(t.id)
	log.Info().Str("module", "engine.pion").Str("transport", t.id).Msg("transport closed")
}
