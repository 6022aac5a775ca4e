package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Orbit/internal/app"
	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/protocol"
)

func (o *Orchestrator) peerOf(conn domain.ConnID) (*app.Peer, error) {
	peer, ok := o.Rooms.PeerByConn(conn)
	if !ok {
		return nil, domain.ErrPeerNotFound
	}
	return peer, nil
}

func (o *Orchestrator) CreateTransport(ctx context.Context, conn domain.ConnID, req protocol.CreateTransportRequest) (protocol.CreateTransportResponse, error) {
	peer, err := o.peerOf(conn)
	if err != nil {
		return protocol.CreateTransportResponse{}, err
	}
	if req.RoomID != "" && domain.RoomID(req.RoomID) != peer.RoomID {
		return protocol.CreateTransportResponse{}, domain.ErrRoomNotFound
	}
	t, err := peer.CreateTransport(ctx, domain.DirectionFor(req.Consumer))
	if err != nil {
		return protocol.CreateTransportResponse{}, err
	}
	info := t.Info()
	return protocol.CreateTransportResponse{
		ID:                              info.ID,
		IceParameters:                   info.IceParameters,
		IceCandidates:                   info.IceCandidates,
		DtlsParameters:                  info.DtlsParameters,
		MaxIncomingBitrate:              o.Opts.MaxIncomingBitrate,
		InitialAvailableOutgoingBitrate: o.Opts.InitialOutgoingBitrate,
	}, nil
}

func (o *Orchestrator) ConnectTransport(ctx context.Context, conn domain.ConnID, req protocol.ConnectTransportRequest) (protocol.ConnectTransportResponse, error) {
	peer, err := o.peerOf(conn)
	if err != nil {
		return protocol.ConnectTransportResponse{}, err
	}
	err = peer.ConnectTransport(ctx, req.TransportID, core.ConnectParams{
		DtlsParameters: req.DtlsParameters,
		IceParameters:  req.IceParameters,
	})
	if err != nil {
		return protocol.ConnectTransportResponse{}, err
	}
	return protocol.ConnectTransportResponse{Connected: true}, nil
}

// Produce publishes a stream and announces it to the rest of the room.
func (o *Orchestrator) Produce(ctx context.Context, conn domain.ConnID, req protocol.ProduceRequest) (protocol.ProduceResponse, error) {
	peer, err := o.peerOf(conn)
	if err != nil {
		return protocol.ProduceResponse{}, err
	}
	kind, err := domain.ParseMediaKind(req.Kind)
	if err != nil {
		return protocol.ProduceResponse{}, err
	}
	prod, err := peer.Produce(ctx, req.TransportID, kind, req.RtpParameters)
	if err != nil {
		return protocol.ProduceResponse{}, err
	}
	o.broadcast(app.CallGroup(peer.RoomID), conn, protocol.EventNewProducer, protocol.NewProducer{
		PeerID:     peer.ID,
		ProducerID: prod.ID(),
		Kind:       kind,
	})
	return protocol.ProduceResponse{ID: prod.ID()}, nil
}

func (o *Orchestrator) Consume(ctx context.Context, conn domain.ConnID, req protocol.ConsumeRequest) (protocol.ConsumeResponse, error) {
	peer, err := o.peerOf(conn)
	if err != nil {
		return protocol.ConsumeResponse{}, err
	}
	if req.ProducerID == "" {
		return protocol.ConsumeResponse{}, fmt.Errorf("%w: producerId required", domain.ErrBadRequest)
	}
	if !o.Rooms.HasProducer(peer.RoomID, req.ProducerID) {
		return protocol.ConsumeResponse{}, domain.ErrProducerNotFound
	}
	cons, err := peer.Consume(ctx, req.Transport(), req.ProducerID, req.RtpCapabilities)
	if err != nil {
		return protocol.ConsumeResponse{}, err
	}
	return protocol.ConsumeResponse{
		ID:            cons.ID(),
		ProducerID:    cons.ProducerID(),
		Kind:          cons.Kind(),
		RtpParameters: cons.RtpParameters(),
	}, nil
}

func (o *Orchestrator) ResumeConsumer(ctx context.Context, conn domain.ConnID, req protocol.ResumeConsumerRequest) (protocol.ResumeConsumerResponse, error) {
	peer, err := o.peerOf(conn)
	if err != nil {
		return protocol.ResumeConsumerResponse{}, err
	}
	if err := peer.ResumeConsumer(ctx, req.ConsumerID); err != nil {
		return protocol.ResumeConsumerResponse{}, err
	}
	return protocol.ResumeConsumerResponse{Resumed: true}, nil
}

// RouterCapabilities answers for the connection's own room when no room id is given.
func (o *Orchestrator) RouterCapabilities(conn domain.ConnID, req protocol.RouterCapabilitiesRequest) (protocol.RouterCapabilitiesResponse, error) {
	roomID := domain.RoomID(req.RoomID)
	if roomID == "" {
		peer, err := o.peerOf(conn)
		if err != nil {
			return protocol.RouterCapabilitiesResponse{}, err
		}
		roomID = peer.RoomID
	}
	caps, err := o.Pool.Capabilities(roomID)
	if err != nil {
		return protocol.RouterCapabilitiesResponse{}, err
	}
	return protocol.RouterCapabilitiesResponse{RtpCapabilities: caps}, nil
}
