package pion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Producer struct {
	id        string
	kind      domain.MediaKind
	codec     domain.RtpCodecCapability
	transport *Transport
	ssrc      uint32
	pt        uint8

	receiver *webrtc.RTPReceiver
	relay    *Relay
	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool

	mu        sync.Mutex
	consumers []*Consumer
}

func newProducer(t *Transport, kind domain.MediaKind, codec domain.RtpCodecCapability, params domain.RtpParameters) (*Producer, error) {
	receiver, err := t.router.api.NewRTPReceiver(codecType(kind), t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp receiver: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Producer{
		id:        uuid.NewString(),
		kind:      kind,
		codec:     codec,
		transport: t,
		ssrc:      params.Encodings[0].Ssrc,
		pt:        params.Codecs[0].PayloadType,
		receiver:  receiver,
		relay:     NewRelay(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (r remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	return pkt, err
}

func (p *Producer) start() {
	p.transport.router.worker.spawn("producer relay", func() {
		if !p.transport.awaitReady() {
			return
		}
		err := p.receiver.Receive(webrtc.RTPReceiveParameters{
			Encodings: []webrtc.RTPDecodingParameters{{
				RTPCodingParameters: webrtc.RTPCodingParameters{
					SSRC:        webrtc.SSRC(p.ssrc),
					PayloadType: webrtc.PayloadType(p.pt),
				},
			}},
		})
		if err != nil {
			log.Warn().Str("module", "engine.pion").Str("producer", p.id).Err(err).Msg("rtp receive failed")
			return
		}
		logger := log.With().Str("module", "engine.pion").Str("producer", p.id).Logger()
		logger.Info().Uint32("ssrc", p.ssrc).Msg("producer receiving")
		p.RequestKeyframe()
		p.relay.Run(p.ctx, remoteTrack{track: p.receiver.Track()}, logger)
	})
}

func (p *Producer) ID() string { return p.id }

func (p *Producer) Kind() domain.MediaKind { return p.kind }

// RequestKeyframe asks the sending client for a fresh video keyframe.
func (p *Producer) RequestKeyframe() {
	if p.kind != domain.MediaKindVideo || p.closed.Load() {
		return
	}
	err := p.transport.writeRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: p.ssrc}})
	if err != nil {
		log.Debug().Str("module", "engine.pion").Str("producer", p.id).Err(err).Msg("pli write failed")
	}
}

func (p *Producer) addConsumer(c *Consumer) {
	p.mu.Lock()
	p.consumers = append(p.consumers, c)
	p.mu.Unlock()
}

// Close stops receiving and closes every consumer of the producer.
func (p *Producer) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	if err := p.receiver.Stop(); err != nil {
		log.Debug().Str("module", "engine.pion").Str("producer", p.id).Err(err).Msg("receiver stop")
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
