package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrProtocol     = errors.New("unrecognized response")

	ErrNoBaseURL = fmt.Errorf("%w: remote address not configured", ErrUnavailable)
)

// RemoteError is a well-formed response that reports failure.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
	}
	return "remote error: " + e.Message
}
