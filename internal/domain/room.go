package domain

import (
	"errors"
	"strings"
)

type (
	RoomID string
	PeerID string
	ConnID string
)

const (
	MaxRoomIDLen = 64
	MaxPeerIDLen = 64
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDTooLong = errors.New("peer id too long")
)

func NewRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrRoomIDEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(raw), nil
}

func NewPeerID(raw string) (PeerID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrPeerIDEmpty
	}
	if len(raw) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return PeerID(raw), nil
}

// ProducerInfo is the public view of a producer announced to other peers.
type ProducerInfo struct {
	ID   string    `json:"id"`
	Kind MediaKind `json:"kind"`
}

// PeerSnapshot describes an existing call participant to a newcomer.
type PeerSnapshot struct {
	PeerID    PeerID         `json:"peerId"`
	Producers []ProducerInfo `json:"producers"`
}

// RoomInfo is a read-only summary for APIs.
type RoomInfo struct {
	ID        RoomID `json:"roomId"`
	PeerCount int    `json:"peers"`
}
