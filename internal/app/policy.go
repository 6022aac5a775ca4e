package app

import "github.com/dkeye/Orbit/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	Disconnect
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(conn domain.ConnID) BackpressureAction
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.ConnID) BackpressureAction { return DropFrame }

type DisconnectPolicy struct{}

func (DisconnectPolicy) OnBackPressure(domain.ConnID) BackpressureAction { return Disconnect }

// PolicyFor maps the slow_consumer config value to a policy.
func PolicyFor(name string) Policy {
	if name == "disconnect" {
		return DisconnectPolicy{}
	}
	return DropPolicy{}
}
