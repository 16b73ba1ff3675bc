// Package transport owns the realtime delivery path for the active
// conversation: one push channel plus a polling fallback, reconciled by the
// caller through the same idempotent merge path, so it never matters which
// of the two delivered an update first.
package transport

import (
	"time"

	"github.com/duochat/duochat/internal/logger"
)

// State is the connection state for the active conversation's channel.
type State int

const (
	// StateDisconnected means no channel and no timers are live.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the push channel is delivering frames.
	StateConnected
	// StateReconnecting means the channel dropped and a retry is scheduled.
	StateReconnecting
	// StatePollingOnly means the channel is given up for this selection and
	// only the polling ticker delivers updates.
	StatePollingOnly
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StatePollingOnly:
		return "polling"
	default:
		return "unknown"
	}
}

// Config tunes the reconnect/backoff machine.
type Config struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PollInterval         time.Duration
}

// DefaultConfig mirrors the backend's tuning: 5s between attempts, 5
// attempts, 2s polling.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		PollInterval:         2 * time.Second,
	}
}

// Plan is what the driver must do after a transition: open a channel, start
// or stop the polling ticker, arm a reconnect timer, surface a notice. The
// manager itself performs no I/O and arms no timers.
type Plan struct {
	Dial            bool
	StartPolling    bool
	StopPolling     bool
	ReconnectIn     time.Duration
	CancelReconnect bool
	Notice          string
}

// DegradedNotice is the single user-visible message emitted when the
// reconnect budget is exhausted.
const DegradedNotice = "Realtime connection unavailable. Falling back to periodic updates."

// Manager is the reconnect/backoff state machine for exactly one active
// conversation. Every outstanding asynchronous completion (dial result,
// reconnect timer, socket close, inbound frame) is tagged with the
// generation current when it was started; completions carrying a stale
// generation are discarded, which makes teardown idempotent and reselection
// race-free.
type Manager struct {
	cfg      Config
	state    State
	convID   int64
	gen      uint64
	attempts int
	polling  bool
	conn     *Conn
	noticed  bool
}

// NewManager returns a manager in StateDisconnected.
func NewManager(cfg Config) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultConfig().MaxReconnectAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Manager{cfg: cfg}
}

// State returns the current connection state.
func (m *Manager) State() State { return m.state }

// Gen returns the current selection generation. Asynchronous work started
// now must carry this value back into the Handle* methods.
func (m *Manager) Gen() uint64 { return m.gen }

// ConversationID returns the conversation this transport serves, 0 if none.
func (m *Manager) ConversationID() int64 { return m.convID }

// Polling reports whether the polling ticker should be running.
func (m *Manager) Polling() bool { return m.polling }

// PollInterval returns the polling period.
func (m *Manager) PollInterval() time.Duration { return m.cfg.PollInterval }

// Current reports whether a generation tag is still live.
func (m *Manager) Current(gen uint64) bool { return gen == m.gen }

// Conn returns the live channel, nil unless StateConnected.
func (m *Manager) Conn() *Conn { return m.conn }

// Select tears down whatever served the previous conversation and starts a
// channel for the new one. Teardown is idempotent: closing an absent channel
// and cancelling unset timers are no-ops.
func (m *Manager) Select(conversationID int64) Plan {
	m.closeConn()
	m.gen++
	m.convID = conversationID
	m.attempts = 0
	m.noticed = false
	m.polling = false
	m.state = StateConnecting
	logger.Debug("transport: select conversation %d (gen %d)", conversationID, m.gen)
	return Plan{Dial: true, CancelReconnect: true, StopPolling: true}
}

// Teardown drops the channel and every timer: conversation deselected or the
// view went hidden. Safe to call in any state.
func (m *Manager) Teardown() Plan {
	m.closeConn()
	m.gen++
	m.convID = 0
	m.attempts = 0
	m.noticed = false
	m.polling = false
	m.state = StateDisconnected
	logger.Debug("transport: teardown (gen %d)", m.gen)
	return Plan{CancelReconnect: true, StopPolling: true}
}

// Suspend is Teardown that remembers the conversation so Resume can pick it
// back up, used when the view becomes hidden.
func (m *Manager) Suspend() Plan {
	convID := m.convID
	plan := m.Teardown()
	m.convID = convID
	return plan
}

// Resume re-attempts the channel for the remembered conversation after an
// explicit trigger (view visible again). This is the only path out of
// StatePollingOnly besides reselection; the retry budget starts fresh.
func (m *Manager) Resume() Plan {
	if m.convID == 0 {
		return Plan{}
	}
	return m.Select(m.convID)
}

// HandleDialResult records the outcome of a channel open. A stale generation
// means the selection changed while the dial was in flight; the orphaned
// connection is closed and nothing else happens.
func (m *Manager) HandleDialResult(gen uint64, conn *Conn, err error) Plan {
	if !m.Current(gen) {
		logger.Debug("transport: dropping stale dial result (gen %d, current %d)", gen, m.gen)
		if conn != nil {
			conn.Close()
		}
		return Plan{}
	}

	if err != nil {
		logger.Debug("transport: dial failed for conversation %d: %v", m.convID, err)
		return m.channelLost(abnormalClosure)
	}

	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.polling = false
	logger.Debug("transport: channel open for conversation %d", m.convID)
	return Plan{CancelReconnect: true, StopPolling: true}
}

// HandleClosed records a channel closure. Deliberate local teardowns carry a
// stale generation and are ignored; everything else degrades per the close
// code.
func (m *Manager) HandleClosed(gen uint64, code int) Plan {
	if !m.Current(gen) {
		return Plan{}
	}
	m.conn = nil
	logger.Debug("transport: channel closed for conversation %d (code %d)", m.convID, code)
	return m.channelLost(code)
}

// HandleReconnectTimer fires one scheduled reconnect attempt.
func (m *Manager) HandleReconnectTimer(gen uint64) Plan {
	if !m.Current(gen) || m.state != StateReconnecting {
		return Plan{}
	}
	m.state = StateConnecting
	logger.Debug("transport: reconnect attempt %d/%d for conversation %d",
		m.attempts, m.cfg.MaxReconnectAttempts, m.convID)
	return Plan{Dial: true}
}

// channelLost applies the shared degrade path: polling starts immediately as
// the liveness safety net, then either one reconnect is scheduled or the
// machine settles into polling-only. The driver runs one ticker chain per
// StartPolling, so only the first loss in a selection requests one.
func (m *Manager) channelLost(code int) Plan {
	plan := Plan{StartPolling: !m.polling}
	m.polling = true

	if unrecoverableClose(code) {
		m.state = StatePollingOnly
		logger.Debug("transport: close code %d is unrecoverable, polling only", code)
		return plan
	}

	m.attempts++
	if m.attempts > m.cfg.MaxReconnectAttempts {
		m.state = StatePollingOnly
		if !m.noticed {
			m.noticed = true
			plan.Notice = DegradedNotice
		}
		return plan
	}

	m.state = StateReconnecting
	plan.ReconnectIn = m.cfg.ReconnectDelay
	return plan
}

func (m *Manager) closeConn() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}
