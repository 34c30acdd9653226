// Package stream owns the single live connection to the trade feed. It keeps
// the connection alive across failures with a bounded reconnect loop, decodes
// inbound frames into typed trade events and fans them out to subscribers.
package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solpulse/pulse/internal/model"
)

// Connection states of the manager's session state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultMaxAttempts    = 5
)

// Config holds connection settings for the feed.
type Config struct {
	// URL is the websocket endpoint of the trade feed.
	URL string

	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration

	// MaxAttempts bounds automatic reconnects per session. Once exceeded
	// the manager stays terminated until an explicit Connect call.
	MaxAttempts int
}

// TradeHandler receives decoded trade events in feed order.
type TradeHandler func(model.Trade)

// StatusHandler receives connectivity transitions.
type StatusHandler func(connected bool)

type subscriber struct {
	id uuid.UUID
	fn TradeHandler
}

type statusSub struct {
	id uuid.UUID
	fn StatusHandler
}

// Manager is the connection manager. It owns the connection handle, the
// subscriber lists and the pending-command slot exclusively; subscribers
// never reach into its state. Construct with NewManager, one per feed.
type Manager struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	gen         uint64
	attempts    int
	pending     *model.PairSelection
	subscribers []subscriber
	statusSubs  []statusSub
}

// NewManager creates a manager for the given feed endpoint. The dialer is
// injected so tests can run independent instances against fake transports.
func NewManager(cfg Config, dialer Dialer, logger *slog.Logger) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		logger: logger,
		state:  StateIdle,
	}
}

// Connect opens a new connection session. It is a logged no-op when a
// session is already connecting or open.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		state := m.state
		m.mu.Unlock()
		m.logger.Info("connect ignored, session already active", "state", state)
		return
	}
	m.state = StateConnecting
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.logger.Info("connecting to trade feed", "url", m.cfg.URL)
	go m.run(gen)
}

// run drives one connection session: dial, flush the pending command, read
// until failure, then retry on the fixed delay up to the attempt bound.
// A session is superseded when the generation changes under it.
func (m *Manager) run(gen uint64) {
	for {
		conn, err := m.dialer.Dial(m.cfg.URL)

		m.mu.Lock()
		if m.gen != gen || m.state == StateTerminated {
			m.mu.Unlock()
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			m.mu.Unlock()
			m.logger.Error("feed connect failed", "url", m.cfg.URL, "error", err)
			if !m.backoff(gen) {
				return
			}
			continue
		}

		m.conn = conn
		m.state = StateOpen
		m.attempts = 0
		pending := m.pending
		m.pending = nil
		m.mu.Unlock()

		m.logger.Info("connected to trade feed", "url", m.cfg.URL)

		// Flush the held selection synchronously on the Open transition so
		// it cannot race the handshake.
		if pending != nil {
			if werr := conn.WriteJSON(pending); werr != nil {
				m.logger.Error("failed to flush pending pair selection",
					"pair", pending.Pair, "error", werr)
			} else {
				m.logger.Info("flushed pending pair selection", "pair", pending.Pair)
			}
		}
		m.notifyStatus(true)

		rerr := m.readLoop(conn)

		m.mu.Lock()
		superseded := m.gen != gen || m.state == StateTerminated
		if !superseded {
			m.state = StateReconnecting
			m.conn = nil
		}
		m.mu.Unlock()
		conn.Close()
		if superseded {
			return
		}

		m.logger.Warn("feed connection lost", "error", rerr)
		m.notifyStatus(false)
		if !m.backoff(gen) {
			return
		}
	}
}

// backoff waits the fixed reconnect delay and consumes one attempt. It
// returns false when the budget is exhausted or the session was superseded.
func (m *Manager) backoff(gen uint64) bool {
	m.mu.Lock()
	if m.gen != gen || m.state == StateTerminated {
		m.mu.Unlock()
		return false
	}
	m.attempts++
	if m.attempts > m.cfg.MaxAttempts {
		m.state = StateTerminated
		m.mu.Unlock()
		m.logger.Error("reconnect attempts exhausted, session terminated",
			"attempts", m.cfg.MaxAttempts)
		return false
	}
	attempt := m.attempts
	m.mu.Unlock()

	m.logger.Info("reconnecting to feed",
		"attempt", attempt,
		"maxAttempts", m.cfg.MaxAttempts,
		"delay", m.cfg.ReconnectDelay)
	time.Sleep(m.cfg.ReconnectDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state == StateTerminated {
		return false
	}
	m.state = StateConnecting
	return true
}

// readLoop decodes frames until the connection fails. Malformed frames are
// dropped and logged; they never affect connection state.
func (m *Manager) readLoop(conn Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		trade, err := model.DecodeTrade(data)
		if err != nil {
			m.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		m.dispatch(trade)
	}
}

// dispatch delivers one trade to all subscribers, synchronously and in
// insertion order. A handler that unsubscribes mid-callback still completes
// the in-flight call.
func (m *Manager) dispatch(t model.Trade) {
	m.mu.Lock()
	subs := make([]subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(t)
	}
}

// Subscribe registers a trade-event handler and returns its unsubscribe
// capability. Unsubscribing removes the handler before the next dispatch
// round. The parameter is the plain function type so consumers can depend
// on the manager through their own narrow interfaces.
func (m *Manager) Subscribe(fn func(model.Trade)) (unsubscribe func()) {
	id := uuid.New()
	m.mu.Lock()
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subscribers {
			if s.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// OnConnectionChange registers a connectivity listener with the same
// unsubscribe contract as Subscribe.
func (m *Manager) OnConnectionChange(fn func(connected bool)) (unsubscribe func()) {
	id := uuid.New()
	m.mu.Lock()
	m.statusSubs = append(m.statusSubs, statusSub{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.statusSubs {
			if s.id == id {
				m.statusSubs = append(m.statusSubs[:i], m.statusSubs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) notifyStatus(connected bool) {
	m.mu.Lock()
	subs := make([]statusSub, len(m.statusSubs))
	copy(subs, m.statusSubs)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(connected)
	}
}

// SendPairSelection sends the pair-selection command immediately when the
// connection is open. Otherwise the command is held as the single most
// recent pending command and flushed once on the next Open transition.
func (m *Manager) SendPairSelection(pair string) error {
	cmd := model.NewPairSelection(pair)

	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		m.pending = &cmd
		m.mu.Unlock()
		m.logger.Info("pair selection held until connection opens", "pair", pair)
		return nil
	}
	conn := m.conn
	m.mu.Unlock()

	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("failed to send pair selection for %s: %w", pair, err)
	}
	m.logger.Info("sent pair selection", "pair", pair)
	return nil
}

// Disconnect terminates the session, closes the live connection and clears
// all trade subscribers. Connectivity listeners survive so callers can
// observe the terminal disconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	alreadyDown := m.state == StateTerminated || m.state == StateIdle
	m.state = StateTerminated
	m.gen++
	conn := m.conn
	m.conn = nil
	m.pending = nil
	m.subscribers = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !alreadyDown {
		m.notifyStatus(false)
	}
	m.logger.Info("disconnected from trade feed")
}

// IsConnected reports whether the connection is currently open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOpen
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
