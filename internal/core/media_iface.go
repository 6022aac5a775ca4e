package core

import (
	"context"

	"github.com/dkeye/Orbit/internal/domain"
)

//go:generate mockgen -destination=mocks/media_mock.go -package=mocks . MediaWorker,MediaRouter,MediaTransport

// MediaEngine spawns workers. There is exactly one engine kind per process.
type MediaEngine interface {
	NewWorker(ctx context.Context, id int) (MediaWorker, error)
}

// MediaWorker hosts independent routing contexts.
type MediaWorker interface {
	ID() int
	CreateRouter(ctx context.Context, codecs []domain.RtpCodecCapability) (MediaRouter, error)
	// Died delivers the fatal error once the worker stops serving.
	Died() <-chan error
	Close()
}

// MediaRouter is a routing context: it groups the transports of one call room.
type MediaRouter interface {
	ID() string
	RtpCapabilities() domain.RtpCapabilities
	// CanConsume reports whether caps can receive the given producer.
	CanConsume(producerID string, caps domain.RtpCapabilities) bool
	CreateWebRtcTransport(ctx context.Context, opts TransportOptions) (MediaTransport, error)
	Close()
}

type TransportOptions struct {
	Direction domain.Direction
}

// TransportInfo is what the client needs to build its side of a transport.
type TransportInfo struct {
	ID             string
	IceParameters  domain.IceParameters
	IceCandidates  []domain.IceCandidate
	DtlsParameters domain.DtlsParameters
}

type ConnectParams struct {
	DtlsParameters domain.DtlsParameters
	// IceParameters of the remote side; engines that run full ICE need them.
	IceParameters *domain.IceParameters
}

type MediaTransport interface {
	ID() string
	Info() TransportInfo
	Connect(ctx context.Context, params ConnectParams) error
	Produce(ctx context.Context, kind domain.MediaKind, params domain.RtpParameters) (MediaProducer, error)
	Consume(ctx context.Context, producerID string, caps domain.RtpCapabilities, paused bool) (MediaConsumer, error)
	// Close releases the transport and every producer and consumer on it.
	Close()
}

type MediaProducer interface {
	ID() string
	Kind() domain.MediaKind
	Close()
}

type MediaConsumer interface {
	ID() string
	ProducerID() string
	Kind() domain.MediaKind
	RtpParameters() domain.RtpParameters
	Paused() bool
	Resume(ctx context.Context) error
	Close()
}
