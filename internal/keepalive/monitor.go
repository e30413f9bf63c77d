// Package keepalive pings every store on a fixed interval to keep connections
// warm and publishes the outcome. Ping failures are recorded and logged, never
// escalated.
package keepalive

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/7930navid/posts-server/internal/middleware"
	"github.com/7930navid/posts-server/internal/observability"
)

// DefaultInterval is the ping period when none is configured.
const DefaultInterval = 6 * time.Hour

const defaultTimeout = 5 * time.Second

// State is the outcome of the last ping of a store.
type State string

const (
	StateUnknown   State = "unknown"
	StateHealthy   State = "healthy"
	StateUnhealthy State = "unhealthy"
)

// Target is one store to ping.
type Target struct {
	Index int
	Name  string
	Ping  func(ctx context.Context) error
}

// Status tracks the health of a single store.
type Status struct {
	Store            int       `json:"store"`
	Name             string    `json:"name"`
	State            State     `json:"state"`
	LastCheck        time.Time `json:"last_check"`
	LastHealthy      time.Time `json:"last_healthy"`
	ConsecutiveFails int       `json:"consecutive_fails"`
	LastError        string    `json:"last_error,omitempty"`
}

// Ticker is the part of *time.Ticker the monitor uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTicker replaces time.NewTicker.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(m *Monitor) { m.newTicker = newTicker }
}

// WithTimeout bounds each ping.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// Monitor periodically pings a fixed set of stores.
// Safe for concurrent use.
type Monitor struct {
	targets   []Target
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
	newTicker func(time.Duration) Ticker

	mu       sync.RWMutex
	statuses map[int]*Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor returns a monitor for targets. Every store starts unknown.
func NewMonitor(targets []Target, interval time.Duration, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		targets:   targets,
		interval:  interval,
		timeout:   defaultTimeout,
		now:       time.Now,
		newTicker: func(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} },
		statuses:  make(map[int]*Status, len(targets)),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, t := range targets {
		m.statuses[t.Index] = &Status{Store: t.Index, Name: t.Name, State: StateUnknown}
	}
	return m
}

// Start runs one round immediately, then one per interval, in a background
// goroutine until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	ticker := m.newTicker(m.interval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()

		middleware.Logger.Info("Store keep-alive started", slog.Duration("interval", m.interval), slog.Int("stores", len(m.targets)))
		m.CheckNow(ctx)

		for {
			select {
			case <-ticker.C():
				m.CheckNow(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the background loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// CheckNow pings every store once and returns the resulting statuses.
func (m *Monitor) CheckNow(ctx context.Context) []Status {
	for _, t := range m.targets {
		m.check(ctx, t)
	}
	return m.Statuses()
}

func (m *Monitor) check(ctx context.Context, t Target) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := t.Ping(pingCtx)
	cancel()

	now := m.now()

	m.mu.Lock()
	st := m.statuses[t.Index]
	st.LastCheck = now
	if err == nil {
		st.State = StateHealthy
		st.LastHealthy = now
		st.ConsecutiveFails = 0
		st.LastError = ""
	} else {
		st.State = StateUnhealthy
		st.ConsecutiveFails++
		st.LastError = err.Error()
	}
	fails := st.ConsecutiveFails
	m.mu.Unlock()

	observability.SetStoreUp(t.Index, t.Name, err == nil)

	if err != nil {
		middleware.Logger.WarnContext(ctx, "Store keep-alive ping failed",
			slog.Int("store", t.Index),
			slog.String("name", t.Name),
			slog.Int("consecutive_fails", fails),
			slog.String("error", err.Error()),
		)
		return
	}
	middleware.Logger.DebugContext(ctx, "Store keep-alive ping ok", slog.Int("store", t.Index))
}

// Statuses returns a snapshot ordered by store index.
func (m *Monitor) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Store < out[j].Store })
	return out
}

// Healthy reports whether every store answered its last ping.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, st := range m.statuses {
		if st.State != StateHealthy {
			return false
		}
	}
	return true
}
