// Package protocol defines the signaling wire format: a JSON envelope carrying
// the event name, an optional acknowledgement id and the event payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound events.
const (
	EventJoinCallRoom             = "joinCallRoom"
	EventCreateWebRtcTransport    = "createWebRtcTransport"
	EventConnectTransport         = "connectTransport"
	EventProduce                  = "produce"
	EventConsume                  = "consume"
	EventResumeConsumer           = "resumeConsumer"
	EventLeaveCallRoom            = "leaveCallRoom"
	EventGetRouterRtpCapabilities = "getRouterRtpCapabilities"
	EventPing                     = "ping"
	EventWhoAmI                   = "whoami"
)

// Outbound events.
const (
	EventAck            = "ack"
	EventCallRoomJoined = "callRoomJoined"
	EventNewPeerInCall  = "newPeerInCall"
	EventNewProducer    = "newProducer"
	EventPeerLeftCall   = "peerLeftCall"
	EventCallStarting   = "call-starting"
	EventCallError      = "callError"
	EventPresence       = "presence"
	EventPong           = "pong"
)

// Envelope frames every message in both directions.
// Ack is zero when the sender does not expect an acknowledgement.
type Envelope struct {
	Type string          `json:"type"`
	Ack  uint64          `json:"ack,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// DecodeData unmarshals the payload; an absent payload leaves v untouched.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Encode builds an outbound event frame.
func Encode(eventType string, v any) ([]byte, error) {
	return encode(eventType, 0, v)
}

// EncodeAck builds the acknowledgement frame for a request.
func EncodeAck(ack uint64, v any) ([]byte, error) {
	return encode(EventAck, ack, v)
}

func encode(eventType string, ack uint64, v any) ([]byte, error) {
	env := Envelope{Type: eventType, Ack: ack}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", eventType, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
