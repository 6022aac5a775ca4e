package signal

import (
	"context"
	"fmt"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/metrics"
	"github.com/dkeye/Orbit/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSignal(ctx context.Context, connID domain.ConnID, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("bad message")
		metrics.SignalingErrorsTotal.WithLabelValues("decode").Inc()
		ctl.Orch.EmitError(connID, fmt.Errorf("%w: %v", domain.ErrBadRequest, err))
		return
	}
	metrics.SignalingEventsTotal.WithLabelValues(eventLabel(env.Type)).Inc()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(connID)).Str("event", env.Type).
				Interface("panic", r).Msg("handler panic")
			ctl.reply(connID, env, nil, fmt.Errorf("%w: %v", domain.ErrEngineFailure, r))
		}
	}()

	switch env.Type {
	case protocol.EventPing:
		ctl.send(connID, protocol.EventPong, nil)
	case protocol.EventWhoAmI:
		ctl.reply(connID, env, ctl.Orch.WhoAmI(connID), nil)
	case protocol.EventJoinCallRoom:
		var req protocol.JoinCallRoomRequest
		ctl.event(connID, env, &req, func() error { return ctl.Orch.JoinCallRoom(ctx, connID, req) })
	case protocol.EventLeaveCallRoom:
		var req protocol.LeaveCallRoomRequest
		ctl.event(connID, env, &req, func() error { return ctl.Orch.LeaveCallRoom(ctx, connID, req) })
	case protocol.EventGetRouterRtpCapabilities:
		request(ctl, connID, env, func(req protocol.RouterCapabilitiesRequest) (protocol.RouterCapabilitiesResponse, error) {
			return ctl.Orch.RouterCapabilities(connID, req)
		})
	case protocol.EventCreateWebRtcTransport:
		request(ctl, connID, env, func(req protocol.CreateTransportRequest) (protocol.CreateTransportResponse, error) {
			return ctl.Orch.CreateTransport(ctx, connID, req)
		})
	case protocol.EventConnectTransport:
		request(ctl, connID, env, func(req protocol.ConnectTransportRequest) (protocol.ConnectTransportResponse, error) {
			return ctl.Orch.ConnectTransport(ctx, connID, req)
		})
	case protocol.EventProduce:
		request(ctl, connID, env, func(req protocol.ProduceRequest) (protocol.ProduceResponse, error) {
			return ctl.Orch.Produce(ctx, connID, req)
		})
	case protocol.EventConsume:
		request(ctl, connID, env, func(req protocol.ConsumeRequest) (protocol.ConsumeResponse, error) {
			return ctl.Orch.Consume(ctx, connID, req)
		})
	case protocol.EventResumeConsumer:
		request(ctl, connID, env, func(req protocol.ResumeConsumerRequest) (protocol.ResumeConsumerResponse, error) {
			return ctl.Orch.ResumeConsumer(ctx, connID, req)
		})
	default:
		log.Warn().Str("module", "signal").Str("conn", string(connID)).Str("event", env.Type).Msg("unknown event")
		ctl.reply(connID, env, nil, fmt.Errorf("%w: unknown event %q", domain.ErrBadRequest, env.Type))
	}
}

// request decodes the payload, runs fn and answers the sender.
func request[Req, Resp any](ctl *SignalWSController, connID domain.ConnID, env protocol.Envelope, fn func(Req) (Resp, error)) {
	var req Req
	if err := env.DecodeData(&req); err != nil {
		ctl.reply(connID, env, nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err))
		return
	}
	resp, err := fn(req)
	if err != nil {
		ctl.reply(connID, env, nil, err)
		return
	}
	ctl.reply(connID, env, resp, nil)
}

// event handles requests whose results are delivered as pushed events.
// Only failures are answered directly.
func (ctl *SignalWSController) event(connID domain.ConnID, env protocol.Envelope, req any, fn func() error) {
	if err := env.DecodeData(req); err != nil {
		ctl.reply(connID, env, nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err))
		return
	}
	err := fn()
	if env.Ack != 0 {
		ctl.reply(connID, env, struct{}{}, err)
		return
	}
	if err != nil {
		ctl.fail(connID, env.Type, err)
		ctl.Orch.EmitError(connID, err)
	}
}

// reply answers through the ack channel when the client asked for one, and
// otherwise as a callError or a same-named event.
func (ctl *SignalWSController) reply(connID domain.ConnID, env protocol.Envelope, resp any, err error) {
	if err != nil {
		ctl.fail(connID, env.Type, err)
		if env.Ack == 0 {
			ctl.Orch.EmitError(connID, err)
			return
		}
		resp = protocol.ErrorResponse{Error: domain.PublicMessage(err)}
	}
	if env.Ack == 0 {
		ctl.send(connID, env.Type, resp)
		return
	}
	frame, encErr := protocol.EncodeAck(env.Ack, resp)
	if encErr != nil {
		log.Error().Err(encErr).Str("module", "signal").Str("event", env.Type).Msg("encode ack")
		return
	}
	ctl.deliver(connID, env.Type, frame)
}

func (ctl *SignalWSController) send(connID domain.ConnID, event string, v any) {
	frame, err := protocol.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("encode event")
		return
	}
	ctl.deliver(connID, event, frame)
}

func (ctl *SignalWSController) deliver(connID domain.ConnID, event string, frame []byte) {
	if err := ctl.Orch.Registry.SendTo(connID, core.Frame(frame)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Str("event", event).Msg("reply dropped")
	}
}

var knownEvents = map[string]bool{
	protocol.EventJoinCallRoom:             true,
	protocol.EventCreateWebRtcTransport:    true,
	protocol.EventConnectTransport:         true,
	protocol.EventProduce:                  true,
	protocol.EventConsume:                  true,
	protocol.EventResumeConsumer:           true,
	protocol.EventLeaveCallRoom:            true,
	protocol.EventGetRouterRtpCapabilities: true,
	protocol.EventPing:                     true,
	protocol.EventWhoAmI:                   true,
}

// eventLabel keeps client-chosen names out of metric labels.
func eventLabel(event string) string {
	if knownEvents[event] {
		return event
	}
	return "unknown"
}

func (ctl *SignalWSController) fail(connID domain.ConnID, event string, err error) {
	metrics.SignalingErrorsTotal.WithLabelValues(eventLabel(event)).Inc()
	log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Str("event", event).Msg("request failed")
}
