package protocol

import (
	"encoding/json"

	"github.com/dkeye/Orbit/internal/domain"
)

type JoinCallRoomRequest struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	// Group is the chat group descriptor, echoed verbatim in call-starting.
	Group json.RawMessage `json:"group,omitempty"`
}

type CreateTransportRequest struct {
	RoomID   string `json:"roomId"`
	Consumer bool   `json:"consumer"`
}

type CreateTransportResponse struct {
	ID                              string                `json:"id"`
	IceParameters                   domain.IceParameters  `json:"iceParameters"`
	IceCandidates                   []domain.IceCandidate `json:"iceCandidates"`
	DtlsParameters                  domain.DtlsParameters `json:"dtlsParameters"`
	MaxIncomingBitrate              int                   `json:"maxIncomingBitrate,omitempty"`
	InitialAvailableOutgoingBitrate int                   `json:"initialAvailableOutgoingBitrate,omitempty"`
}

type ConnectTransportRequest struct {
	TransportID    string                `json:"transportId"`
	DtlsParameters domain.DtlsParameters `json:"dtlsParameters"`
	IceParameters  *domain.IceParameters `json:"iceParameters,omitempty"`
}

type ConnectTransportResponse struct {
	Connected bool `json:"connected"`
}

type ProduceRequest struct {
	TransportID   string               `json:"transportId"`
	Kind          string               `json:"kind"`
	RtpParameters domain.RtpParameters `json:"rtpParameters"`
}

type ProduceResponse struct {
	ID string `json:"id"`
}

type ConsumeRequest struct {
	TransportID string `json:"transportId"`
	// Older clients send the misspelled key.
	LegacyTransportID string                 `json:"trasportId,omitempty"`
	ProducerID        string                 `json:"producerId"`
	RtpCapabilities   domain.RtpCapabilities `json:"rtpCapabilities"`
}

func (r ConsumeRequest) Transport() string {
	if r.TransportID != "" {
		return r.TransportID
	}
	return r.LegacyTransportID
}

type ConsumeResponse struct {
	ID            string               `json:"id"`
	ProducerID    string               `json:"producerId"`
	Kind          domain.MediaKind     `json:"kind"`
	RtpParameters domain.RtpParameters `json:"rtpParameters"`
}

type ResumeConsumerRequest struct {
	ConsumerID string `json:"consumerId"`
}

type ResumeConsumerResponse struct {
	Resumed bool `json:"resumed"`
}

type LeaveCallRoomRequest struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

type RouterCapabilitiesRequest struct {
	RoomID string `json:"roomId"`
}

type RouterCapabilitiesResponse struct {
	RtpCapabilities domain.RtpCapabilities `json:"rtpCapabilities"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CallRoomJoined struct {
	RoomID          domain.RoomID          `json:"roomId"`
	RtpCapabilities domain.RtpCapabilities `json:"rtpCapabilities"`
	Peers           []domain.PeerSnapshot  `json:"peers"`
}

type NewPeerInCall struct {
	PeerID domain.PeerID `json:"peerId"`
}

type NewProducer struct {
	PeerID     domain.PeerID    `json:"peerId"`
	ProducerID string           `json:"producerId"`
	Kind       domain.MediaKind `json:"kind"`
}

type PeerLeftCall struct {
	PeerID domain.PeerID `json:"peerId"`
}

type CallStarting struct {
	Group json.RawMessage `json:"group"`
}

type CallError struct {
	Message string `json:"message"`
}

type Presence struct {
	UserID domain.UserID `json:"userId"`
	Online bool          `json:"online"`
}

type WhoAmI struct {
	ConnID domain.ConnID `json:"connId"`
	UserID domain.UserID `json:"userId,omitempty"`
	RoomID domain.RoomID `json:"roomId,omitempty"`
	PeerID domain.PeerID `json:"peerId,omitempty"`
}
