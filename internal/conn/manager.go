// Package conn owns the persistent bidirectional channel to the clinic
// backend. At most one live channel exists per process; the guard flag is
// set synchronously before any dial starts, so two near-simultaneous
// Connect calls collapse into one.
package conn

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/metrics"
	"github.com/drheny/cab-sub000/internal/notify"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

// Handler receives one raw frame from the channel. It is called from the
// single reader goroutine, so deliveries are serialized.
type Handler func(data []byte)

// Manager maintains the channel lifecycle: establishment, keep-alive,
// clean/unclean close detection and the single-shot reconnect policy.
type Manager struct {
	logger   zerolog.Logger
	notifier notify.Notifier
	handler  Handler
	endpoint string
	dialer   *websocket.Dialer

	reconnectDelay time.Duration

	mu             sync.Mutex
	guard          bool // connecting or open; checked synchronously in Connect
	state          notify.ConnState
	ws             *websocket.Conn
	gen            int  // connection generation, ignores stale reader exits
	everConnected  bool // one successful open this process lifetime
	everAttempted  bool
	closedByUser   bool
	reconnectTimer *time.Timer
	pingStop       chan struct{}
}

// NewManager creates a Manager delivering frames to handler. endpoint
// must be a ws:// or wss:// URL (see ResolveEndpoint).
func NewManager(logger zerolog.Logger, notifier notify.Notifier, endpoint string, reconnectDelay time.Duration, handler Handler) *Manager {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &Manager{
		logger:         logger.With().Str("component", "conn").Logger(),
		notifier:       notifier,
		handler:        handler,
		endpoint:       endpoint,
		reconnectDelay: reconnectDelay,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:          notify.StateClosed,
	}
}

// ResolveEndpoint derives the channel URL from the backend origin. An
// absolute http(s) origin maps to the matching ws(s) scheme; a relative
// origin is resolved against ownOrigin (the host application's origin).
func ResolveEndpoint(origin, path, ownOrigin string) (string, error) {
	base := origin
	u, err := url.Parse(base)
	if err != nil || !u.IsAbs() {
		base = ownOrigin
		u, err = url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid origin %q: %w", origin, err)
		}
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a channel scheme
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// State returns the current lifecycle state.
func (m *Manager) State() notify.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOpen reports whether the channel is currently open.
func (m *Manager) IsOpen() bool {
	return m.State() == notify.StateOpen
}

// Connect opens the channel. It is a no-op when a channel is already
// connecting or open. The dial itself runs asynchronously; the guard is
// taken before Connect returns.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.guard {
		m.mu.Unlock()
		return
	}
	m.guard = true
	m.closedByUser = false
	m.state = notify.StateConnecting
	m.gen++
	gen := m.gen
	firstAttempt := !m.everAttempted
	m.everAttempted = true
	m.mu.Unlock()

	metrics.ConnectAttempts.Inc()
	m.notifier.ConnectionStatus(notify.StateConnecting)

	go m.dial(gen, firstAttempt)
}

// Disconnect performs a deliberate local shutdown. The close is marked
// clean, so no reconnect is scheduled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closedByUser = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	ws := m.ws
	if ws != nil {
		m.state = notify.StateClosing
	}
	m.mu.Unlock()

	if ws != nil {
		m.notifier.ConnectionStatus(notify.StateClosing)
		deadline := time.Now().Add(writeTimeout)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = ws.Close()
	}

	m.mu.Lock()
	m.guard = false
	m.state = notify.StateClosed
	m.ws = nil
	m.stopPingLocked()
	m.mu.Unlock()
	m.notifier.ConnectionStatus(notify.StateClosed)
}

func (m *Manager) dial(gen int, firstAttempt bool) {
	ws, _, err := m.dialer.Dial(m.endpoint, nil)
	if err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.guard = false
			m.state = notify.StateClosed
		}
		m.mu.Unlock()

		m.logger.Warn().Err(err).Str("endpoint", m.endpoint).Msg("channel connect failed")
		m.notifier.ConnectionStatus(notify.StateClosed)
		// Only the very first attempt alarms the user; background
		// reconnects stay quiet through transient blips.
		if firstAttempt {
			m.notifier.Toast(notify.Error, "messaging synchronization unavailable")
		}
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.closedByUser {
		m.mu.Unlock()
		ws.Close()
		return
	}
	m.ws = ws
	m.state = notify.StateOpen
	firstOpen := !m.everConnected
	m.everConnected = true
	m.startPingLocked(ws)
	m.mu.Unlock()

	m.logger.Info().Str("endpoint", m.endpoint).Msg("channel open")
	m.notifier.ConnectionStatus(notify.StateOpen)
	if firstOpen {
		m.notifier.Toast(notify.Success, "messaging synchronization active")
	}

	m.readLoop(gen, ws)
}

func (m *Manager) readLoop(gen int, ws *websocket.Conn) {
	ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongTimeout))
		if m.handler != nil {
			m.handler(data)
		}
	}
}

func (m *Manager) handleClose(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	clean := m.closedByUser
	m.guard = false
	m.state = notify.StateClosed
	m.ws = nil
	m.stopPingLocked()
	shouldReconnect := !clean && m.everConnected
	if shouldReconnect {
		if m.reconnectTimer != nil {
			m.reconnectTimer.Stop()
		}
		m.reconnectTimer = time.AfterFunc(m.reconnectDelay, func() {
			metrics.Reconnects.Inc()
			m.Connect()
		})
	}
	m.mu.Unlock()

	if clean {
		return
	}

	m.logger.Warn().Err(err).Msg("channel closed")
	m.notifier.ConnectionStatus(notify.StateClosed)
}

// startPingLocked begins the keep-alive ticker for ws. Caller holds mu.
func (m *Manager) startPingLocked(ws *websocket.Conn) {
	stop := make(chan struct{})
	m.pingStop = stop
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(writeTimeout)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopPingLocked halts the keep-alive ticker. Caller holds mu.
func (m *Manager) stopPingLocked() {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
}
