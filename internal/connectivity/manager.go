package connectivity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/logging"
)

const (
	// DefaultMaxAttempts is the number of association retries after the first attempt.
	DefaultMaxAttempts = 3

	// DefaultTimeout bounds how long Connect waits for a terminal state.
	DefaultTimeout = 30 * time.Second
)

// Config holds the retry policy.
type Config struct {
	// MaxAttempts is how many times a Disconnected event re-issues association
	// before the attempt fails.
	MaxAttempts int

	// Timeout bounds the wait in Connect. Zero waits until a terminal event
	// or context cancellation.
	Timeout time.Duration
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Timeout:     DefaultTimeout,
	}
}

// Manager drives a Stack through one connection attempt at a time.
//
// Connect blocks the caller while HandleEvent, called from the stack's own
// goroutine, advances the state machine:
//
//	Idle --Connect--> Connecting --AddressAcquired--> Connected
//	Connecting --Disconnected (retries < max)--> Connecting
//	Connecting --Disconnected (retries == max)--> Failed
type Manager struct {
	stack Stack
	cfg   Config
	log   *zap.Logger

	mu      sync.Mutex
	creds   credstore.Credentials
	state   State
	retries int
	err     error
	done    chan struct{} // closed when the current attempt reaches a terminal state
}

// NewManager creates a manager in the Idle state.
func NewManager(stack Stack, cfg Config) *Manager {
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	return &Manager{
		stack: stack,
		cfg:   cfg,
		log:   logging.Named("connectivity"),
		state: StateIdle,
	}
}

// Configure sets the credentials used by the next Connect.
func (m *Manager) Configure(creds credstore.Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
}

// Connect initializes the stack, starts the station interface and blocks until
// the attempt is Connected or Failed, the configured timeout elapses, or ctx
// is done.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnecting {
		m.mu.Unlock()
		return ErrConnectInProgress
	}
	creds := m.creds
	from := m.state
	done := make(chan struct{})
	m.state = StateConnecting
	m.retries = 0
	m.err = nil
	m.done = done
	m.mu.Unlock()

	logging.LogTransition(from.String(), StateConnecting.String(), 0, "connect")
	m.log.Info("Connecting to access point", zap.String("ssid", creds.SSID))

	if err := m.stack.Init(); err != nil {
		return m.abort(done, fmt.Errorf("%w: init: %w", ErrInitFailure, err))
	}

	unsubscribe, err := m.stack.Subscribe(m)
	if err != nil {
		return m.abort(done, fmt.Errorf("%w: subscribe: %w", ErrInitFailure, err))
	}
	defer unsubscribe()

	if err := m.stack.Configure(creds); err != nil {
		return m.abort(done, fmt.Errorf("%w: configure: %w", ErrInitFailure, err))
	}
	if err := m.stack.Start(); err != nil {
		return m.abort(done, fmt.Errorf("%w: start: %w", ErrInitFailure, err))
	}

	var timeout <-chan time.Time
	if m.cfg.Timeout > 0 {
		timer := time.NewTimer(m.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
	case <-timeout:
		m.abort(done, ErrTimeout)
	case <-ctx.Done():
		m.abort(done, ctx.Err())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateConnected {
		m.log.Info("Connected to access point", zap.String("ssid", creds.SSID))
		return nil
	}
	return m.err
}

// abort fails the attempt identified by done unless it already finished, and
// returns the error the attempt ended with.
func (m *Manager) abort(done chan struct{}, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == done && m.state == StateConnecting {
		m.finishLocked(StateFailed, err, err.Error())
	}
	if m.state == StateConnected {
		return nil
	}
	return m.err
}

// finishLocked moves the current attempt to a terminal state and wakes the
// caller blocked in Connect. m.mu must be held.
func (m *Manager) finishLocked(state State, err error, cause string) {
	logging.LogTransition(m.state.String(), state.String(), m.retries, cause)
	m.state = state
	m.err = err
	close(m.done)
}

// HandleEvent advances the state machine. Events that arrive while the
// manager is not Connecting are ignored.
func (m *Manager) HandleEvent(ev Event) {
	associate := false

	m.mu.Lock()
	if m.state != StateConnecting {
		state := m.state
		m.mu.Unlock()
		m.log.Debug("Ignoring event", zap.Stringer("event", ev.Kind), zap.Stringer("state", state))
		return
	}

	switch ev.Kind {
	case EventStackStarted:
		m.log.Debug("Station started, requesting association")
		associate = true

	case EventDisconnected:
		m.log.Info("Failed to connect to the access point",
			zap.Int("attempt", m.retries),
			zap.Int("reason", ev.Reason),
		)
		if m.retries < m.cfg.MaxAttempts {
			m.retries++
			associate = true
			m.log.Warn("Retrying association",
				zap.Int("retry", m.retries),
				zap.Int("max_attempts", m.cfg.MaxAttempts),
			)
		} else {
			m.finishLocked(StateFailed, ErrRetriesExhausted, "retries exhausted")
		}

	case EventAddressAcquired:
		m.log.Info("Got IP address", zap.Stringer("ip", ev.Address))
		m.retries = 0
		m.finishLocked(StateConnected, nil, "address acquired")

	default:
		m.log.Warn("Unknown network event", zap.Int("kind", int(ev.Kind)))
	}
	m.mu.Unlock()

	if !associate {
		return
	}
	if err := m.stack.Associate(); err != nil {
		m.log.Warn("Association request failed", zap.Error(err))
		m.HandleEvent(Event{Kind: EventDisconnected, Reason: ReasonAssociateFailed})
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Retries returns the retry counter of the current attempt.
func (m *Manager) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Snapshot returns a copy of the manager's state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:   m.state,
		Retries: m.retries,
		SSID:    m.creds.SSID,
		Err:     m.err,
	}
}
