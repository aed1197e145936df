package domain

import (
	"context"
	"errors"
)

var (
	// ErrUnknownTimestep means the requested index has no descriptor.
	ErrUnknownTimestep = errors.New("unknown timestep")
	// ErrNetworkFailure covers transport errors and non-success statuses.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedPayload means the fetched bytes are not a full grid.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidRequest is a request that cannot be answered as posed.
	ErrInvalidRequest = errors.New("invalid request")
)

// FallbackReason labels why a response is empty.
type FallbackReason string

const (
	ReasonNone            FallbackReason = ""
	ReasonUnknownTimestep FallbackReason = "unknown_timestep"
	ReasonNetwork         FallbackReason = "network_failure"
	ReasonTimeout         FallbackReason = "timeout"
	ReasonMalformed       FallbackReason = "malformed_payload"
	ReasonInvalid         FallbackReason = "invalid_request"
	ReasonInternal        FallbackReason = "internal"
)

// ReasonFor classifies an error from the load or extract path.
func ReasonFor(err error) FallbackReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrUnknownTimestep):
		return ReasonUnknownTimestep
	case errors.Is(err, ErrMalformedPayload):
		return ReasonMalformed
	case errors.Is(err, ErrInvalidRequest):
		return ReasonInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrNetworkFailure), errors.Is(err, context.Canceled):
		return ReasonNetwork
	default:
		return ReasonInternal
	}
}
