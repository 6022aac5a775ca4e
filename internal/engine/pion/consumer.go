package pion

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/Orbit/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Consumer struct {
	id        string
	producer  *Producer
	transport *Transport
	sender    *webrtc.RTPSender
	out       *OutTrack
	params    domain.RtpParameters
	closed    atomic.Bool
}

func newConsumer(t *Transport, prod *Producer, paused bool) (*Consumer, error) {
	id := uuid.NewString()
	codec := toCodecParameters(prod.codec)
	track, err := webrtc.NewTrackLocalStaticRTP(codec.RTPCodecCapability, id, prod.id)
	if err != nil {
		return nil, fmt.Errorf("local track: %w", err)
	}
	sender, err := t.router.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp sender: %w", err)
	}

	c := &Consumer{
		id:        id,
		producer:  prod,
		transport: t,
		sender:    sender,
		out:       NewOutTrack(track),
	}
	if paused {
		c.out.MarkPaused()
	}
	var ssrc uint32
	if enc := sender.GetParameters().Encodings; len(enc) > 0 {
		ssrc = uint32(enc[0].SSRC)
	}
	c.params = domain.RtpParameters{
		Mid: t.nextMid(),
		Codecs: []domain.RtpCodecParameters{{
			MimeType:     prod.codec.MimeType,
			PayloadType:  prod.codec.PreferredPayloadType,
			ClockRate:    prod.codec.ClockRate,
			Channels:     prod.codec.Channels,
			Parameters:   prod.codec.Parameters,
			RtcpFeedback: prod.codec.RtcpFeedback,
		}},
		Encodings: []domain.RtpEncodingParameters{{Ssrc: ssrc}},
	}
	prod.addConsumer(c)
	return c, nil
}

func (c *Consumer) start() {
	c.transport.router.worker.spawn("consumer send", func() {
		if !c.transport.awaitReady() {
			return
		}
		if err := c.sender.Send(c.sender.GetParameters()); err != nil {
			log.Warn().Str("module", "engine.pion").Str("consumer", c.id).Err(err).Msg("rtp send failed")
			return
		}
		c.readRTCP()
	})
}

// readRTCP forwards keyframe requests of the receiving client to the producer.
func (c *Consumer) readRTCP() {
	for {
		pkts, _, err := c.sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				c.producer.RequestKeyframe()
			}
		}
	}
}

func (c *Consumer) ID() string { return c.id }

func (c *Consumer) ProducerID() string { return c.producer.id }

func (c *Consumer) Kind() domain.MediaKind { return c.producer.kind }

func (c *Consumer) RtpParameters() domain.RtpParameters { return c.params }

func (c *Consumer) Paused() bool { return c.out.State() == TrackStatePaused }

func (c *Consumer) Closed() bool { return c.closed.Load() }

func (c *Consumer) Resume(context.Context) error {
	if c.closed.Load() {
		return errTransportClosed
	}
	c.out.MarkOk()
	c.producer.RequestKeyframe()
	return nil
}

func (c *Consumer) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.out.MarkDelete()
	if err := c.sender.Stop(); err != nil {
		log.Debug().Str("module", "engine.pion").Str("consumer", c.id).Err(err).Msg("sender stop")
	}
}
