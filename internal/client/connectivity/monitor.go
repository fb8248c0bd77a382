// Package connectivity decides whether the client should work against the
// remote API or the local cache.
//
// A single goroutine (Monitor.Run) owns the state. The ticker, network
// change events and on-demand refreshes all enqueue an evaluation request
// instead of touching the state themselves.
package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

var ErrAlreadyRunning = errors.New("connectivity monitor already running")

const (
	DefaultInterval     = 30 * time.Second
	DefaultDebounce     = 2 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// NetworkDetector reports whether any network transport is up.
type NetworkDetector interface {
	Available(ctx context.Context) bool
}

// Prober checks that an endpoint answers.
type Prober interface {
	Ping(ctx context.Context) error
}

// SessionSource exposes the current session, if any.
type SessionSource interface {
	Current() *models.SessionCredential
}

// TokenCache exposes the token cached in the local configuration record.
type TokenCache interface {
	CachedToken(ctx context.Context) (string, time.Time, error)
}

// Notifier is told about transitions between online and offline.
type Notifier interface {
	ConnectionRestored(ctx context.Context, snap models.ConnectivitySnapshot)
	WentOffline(ctx context.Context, snap models.ConnectivitySnapshot)
}

type Options struct {
	Network  NetworkDetector
	Remote   Prober
	Internet Prober
	Session  SessionSource
	Tokens   TokenCache
	Notifier Notifier

	Interval     time.Duration
	Debounce     time.Duration
	ProbeTimeout time.Duration
	// Cooldown is the minimum time between two notifications.
	Cooldown time.Duration

	Clock  timex.Clock
	Logger logging.Logger
}

type Monitor struct {
	opts Options
	log  logging.Logger

	requests chan chan models.ConnectivitySnapshot
	network  chan struct{}
	running  atomic.Bool
	snap     atomic.Pointer[models.ConnectivitySnapshot]

	// owned by the Run goroutine
	prev         models.ConnectivityState
	lastNotified models.ConnectivityState
	lastNotifyAt time.Time
}

func NewMonitor(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Clock == nil {
		opts.Clock = timex.RealClock{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	m := &Monitor{
		opts:     opts,
		log:      log.With("component", "connectivity"),
		requests: make(chan chan models.ConnectivitySnapshot),
		network:  make(chan struct{}, 1),
	}
	m.snap.Store(&models.ConnectivitySnapshot{State: models.StateUnknown})
	return m
}

// Snapshot returns the latest published evaluation.
func (m *Monitor) Snapshot() models.ConnectivitySnapshot {
	return *m.snap.Load()
}

// Refresh asks the running monitor for a fresh evaluation and waits for it.
// When ctx ends first the last published snapshot is returned with the
// context error.
func (m *Monitor) Refresh(ctx context.Context) (models.ConnectivitySnapshot, error) {
	reply := make(chan models.ConnectivitySnapshot, 1)
	select {
	case m.requests <- reply:
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

// NetworkChanged records a system network change. Bursts are collapsed
// into one evaluation after the debounce delay.
func (m *Monitor) NetworkChanged() {
	select {
	case m.network <- struct{}{}:
	default:
	}
}

// Run evaluates once, then on every trigger until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.evaluate(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	debounce := time.NewTimer(m.opts.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.evaluate(ctx)
		case reply := <-m.requests:
			reply <- m.evaluate(ctx)
		case <-m.network:
			debounce.Reset(m.opts.Debounce)
		case <-debounce.C:
			m.evaluate(ctx)
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context) models.ConnectivitySnapshot {
	snap := m.probe(ctx)
	m.snap.Store(&snap)
	m.transition(ctx, snap)
	return snap
}

// probe runs the evaluation steps in order and stops at the first one that
// rules out online mode.
func (m *Monitor) probe(ctx context.Context) models.ConnectivitySnapshot {
	now := m.opts.Clock.Now()
	snap := models.ConnectivitySnapshot{State: models.StateOffline, EvaluatedAt: now}

	snap.NetworkAvailable = m.opts.Network == nil || m.opts.Network.Available(ctx)
	if !snap.NetworkAvailable {
		return snap
	}

	snap.RemoteReachable = m.ping(ctx, m.opts.Remote)
	if !snap.RemoteReachable {
		snap.InternetReachable = m.ping(ctx, m.opts.Internet)
	}
	if !snap.IsConnected() {
		return snap
	}

	snap.TokenValid, snap.OnlineAllowed = m.tokenState(ctx, now)
	if snap.TokenValid && snap.OnlineAllowed {
		snap.State = models.StateOnline
	}
	return snap
}

func (m *Monitor) ping(ctx context.Context, p Prober) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
		return false
	}
	return true
}

// tokenState prefers the live session. Without one, the cached token
// decides validity and online mode is permitted.
func (m *Monitor) tokenState(ctx context.Context, now time.Time) (valid, allowed bool) {
	if m.opts.Session != nil {
		if cur := m.opts.Session.Current(); cur != nil {
			return cur.TokenValid(now), cur.OnlineAllowed
		}
	}
	if m.opts.Tokens == nil {
		return false, true
	}

	token, exp, err := m.opts.Tokens.CachedToken(ctx)
	if err != nil {
		m.log.Warn(ctx, "failed to read cached token", "error", err)
		return false, true
	}
	if token == "" {
		return false, true
	}
	if exp.IsZero() {
		exp, _ = session.TokenExpiry(token)
	}
	return exp.IsZero() || now.Before(exp), true
}

// transition logs state changes and notifies when the state differs from
// the last notified one. A change suppressed by the cooldown is delivered
// by a later evaluation if the state still holds.
func (m *Monitor) transition(ctx context.Context, snap models.ConnectivitySnapshot) {
	prev := m.prev
	m.prev = snap.State
	if prev != snap.State {
		m.log.Info(ctx, "connectivity changed", "from", prev.String(), "to", snap.State.String(),
			"network", snap.NetworkAvailable, "remote", snap.RemoteReachable, "token_valid", snap.TokenValid)
	}

	if prev == models.StateUnknown {
		m.lastNotified = snap.State
		return
	}
	if m.opts.Notifier == nil || m.lastNotified == snap.State {
		return
	}
	now := snap.EvaluatedAt
	if !m.lastNotifyAt.IsZero() && now.Sub(m.lastNotifyAt) < m.opts.Cooldown {
		if prev != snap.State {
			m.log.Debug(ctx, "notification suppressed by cooldown", "state", snap.State.String())
		}
		return
	}

	m.lastNotified = snap.State
	m.lastNotifyAt = now
	switch snap.State {
	case models.StateOnline:
		m.opts.Notifier.ConnectionRestored(ctx, snap)
	case models.StateOffline:
		m.opts.Notifier.WentOffline(ctx, snap)
	}
}
