package pion

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStatePaused
	TrackStateDelete
)

// RTPWriter is the local side a relay forwards into.
type RTPWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// OutTrack is one consumer's outgoing leg of a relay.
type OutTrack struct {
	Track RTPWriter
	state atomic.Int32
}

func NewOutTrack(track RTPWriter) *OutTrack {
	return &OutTrack{Track: track}
}

func (ot *OutTrack) State() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.CompareAndSwap(int32(TrackStatePaused), int32(TrackStateOk))
}

func (ot *OutTrack) MarkPaused() {
	ot.state.CompareAndSwap(int32(TrackStateOk), int32(TrackStatePaused))
}

// MarkDelete is terminal.
func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
