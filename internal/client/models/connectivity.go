package models

import "time"

type ConnectivityState int

const (
	StateUnknown ConnectivityState = iota
	StateOnline
	StateOffline
)

func (s ConnectivityState) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ConnectivitySnapshot is one evaluation of the connectivity state machine.
// It is recomputed, never persisted.
type ConnectivitySnapshot struct {
	State             ConnectivityState
	NetworkAvailable  bool
	RemoteReachable   bool
	InternetReachable bool
	TokenValid        bool
	OnlineAllowed     bool
	EvaluatedAt       time.Time
}

// IsConnected reports whether some endpoint answered.
func (s ConnectivitySnapshot) IsConnected() bool {
	return s.NetworkAvailable && (s.RemoteReachable || s.InternetReachable)
}

// UseRemoteServices reports whether callers should talk to the remote API.
func (s ConnectivitySnapshot) UseRemoteServices() bool {
	return s.State == StateOnline
}
