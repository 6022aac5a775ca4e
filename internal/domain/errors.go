package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrIncompatible    = errors.New("incompatible capabilities")
	ErrEngineFailure   = errors.New("media engine failure")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
	ErrBadRequest      = errors.New("bad request")
	ErrPeerLeft        = errors.New("peer left")
	ErrWrongDirection  = errors.New("wrong transport direction")
)

var (
	ErrRoomNotFound      = fmt.Errorf("room %w", ErrNotFound)
	ErrPeerNotFound      = fmt.Errorf("peer %w", ErrNotFound)
	ErrTransportNotFound = fmt.Errorf("transport %w", ErrNotFound)
	ErrProducerNotFound  = fmt.Errorf("producer %w", ErrNotFound)
	ErrConsumerNotFound  = fmt.Errorf("consumer %w", ErrNotFound)
)

// ErrIceParametersRequired is returned by engines that cannot start ICE
// without the remote ufrag and password.
var ErrIceParametersRequired = fmt.Errorf("%w: iceParameters required", ErrBadRequest)

var notFoundKinds = []error{
	ErrRoomNotFound,
	ErrPeerNotFound,
	ErrTransportNotFound,
	ErrProducerNotFound,
	ErrConsumerNotFound,
}

// PublicMessage maps an error to a short string that is safe to put on the wire.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIncompatible):
		return "cannot consume"
	case errors.Is(err, ErrNotFound):
		for _, k := range notFoundKinds {
			if errors.Is(err, k) {
				return k.Error()
			}
		}
		return "not found"
	case errors.Is(err, ErrPeerLeft):
		return "peer left the call"
	case errors.Is(err, ErrWrongDirection):
		return "wrong transport direction"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "not a member of this group"
	case errors.Is(err, ErrRateLimited):
		return "too many requests"
	case errors.Is(err, ErrIceParametersRequired):
		return "iceParameters required"
	case errors.Is(err, ErrBadRequest):
		return "bad request"
	case errors.Is(err, ErrEngineFailure):
		return "media engine failure"
	}
	return "internal error"
}
