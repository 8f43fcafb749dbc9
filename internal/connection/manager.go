// Package connection owns the single persistent socket to the companion
// server: connect/reconnect state machine, outbound serialization and
// republishing of inbound messages as notifications.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/loop"
	"github.com/1ureka/matchlink/internal/metrics"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

// NormalClosure is the only close code that does not trigger a reconnect.
const NormalClosure = websocket.CloseNormalClosure

const (
	dialTimeout       = 15 * time.Second
	connectionLostMsg = "Connection to the server was lost. Reconnecting shortly."
)

// ErrNotConnected is returned by Send while the socket is down. The message
// is not queued; a connect attempt is started instead.
var ErrNotConnected = errors.New("connection: not connected")

var logger = util.Component("connection")

// State is the connection state machine.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// CredentialSource supplies the persisted identity used for auto-login.
type CredentialSource interface {
	Load() (state.Credentials, bool, error)
}

// Runtime is the event loop the manager runs on.
type Runtime interface {
	loop.Executor
	loop.Scheduler
}

// Options configures a Manager.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	Dialer         Dialer
	Runtime        Runtime
	// Scheduler overrides Runtime for the reconnect timer (tests).
	Scheduler   loop.Scheduler
	Bus         *event.Bus
	Credentials CredentialSource
	Metrics     *metrics.Metrics
}

// Manager is the ConnectionManager. All methods must be called on the loop.
type Manager struct {
	url     string
	delay   time.Duration
	dialer  Dialer
	exec    loop.Executor
	sched   loop.Scheduler
	bus     *event.Bus
	creds   CredentialSource
	metrics *metrics.Metrics

	state   State
	gen     string // identifies the current socket; stale callbacks are dropped
	conn    Conn
	closing bool // Close() was called on the current socket

	writeMu sync.Mutex

	pending   [][]byte
	reconnect loop.Timer
}

// New creates a disconnected Manager.
func New(opts Options) *Manager {
	sched := opts.Scheduler
	if sched == nil {
		sched = opts.Runtime
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WSDialer{}
	}
	return &Manager{
		url:     opts.URL,
		delay:   opts.ReconnectDelay,
		dialer:  dialer,
		exec:    opts.Runtime,
		sched:   sched,
		bus:     opts.Bus,
		creds:   opts.Credentials,
		metrics: opts.Metrics,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	logger.Debug("state %s → %s", m.state, s)
	m.state = s
	m.metrics.ConnectionState(int(s))
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Connect opens the socket unless one is already open or opening. Any
// pending reconnect timer is cancelled.
func (m *Manager) Connect() {
	if m.state == Connecting || m.state == Connected {
		return
	}
	m.stopReconnect()
	m.setState(Connecting)

	gen := uuid.NewString()
	m.gen = gen
	logger.Info("connecting to %s", m.url)

	go m.dial(gen)
}

func (m *Manager) dial(gen string) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := m.dialer.Dial(ctx, m.url)
	m.exec.Post(func() {
		if err != nil {
			m.handleDialError(gen, err)
			return
		}
		m.handleOpen(gen, conn)
	})
}

// Close performs an intentional normal closure. No reconnect follows.
func (m *Manager) Close() error {
	m.stopReconnect()
	m.dropPending("connection closed")

	if m.conn == nil {
		// A dial may still be in flight; orphan it.
		m.gen = ""
		m.setState(Disconnected)
		return nil
	}

	m.closing = true
	m.writeMu.Lock()
	werr := m.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	m.writeMu.Unlock()
	return errors.Join(werr, m.conn.Close())
}

func (m *Manager) handleDialError(gen string, err error) {
	if gen != m.gen {
		return
	}
	logger.Error("dial failed: %v", err)
	m.handleClose(gen, websocket.CloseAbnormalClosure)
}

func (m *Manager) handleOpen(gen string, conn Conn) {
	if gen != m.gen {
		conn.Close()
		return
	}

	m.conn = conn
	m.closing = false
	m.setState(Connected)
	logger.Info("connected")

	go m.readLoop(gen, conn)

	m.bus.Emit(event.ConnectionOpened, nil)
	m.autoLogin()

	pending := m.pending
	m.pending = nil
	for _, data := range pending {
		if err := m.write(data); err != nil {
			logger.Error("deferred send failed: %v", err)
		}
	}
}

func (m *Manager) autoLogin() {
	if m.creds == nil {
		m.bus.Emit(event.Logout, nil)
		return
	}
	creds, ok, err := m.creds.Load()
	if err != nil {
		logger.Warn("failed to load stored credentials: %v", err)
	}
	if !ok || creds.UserID == "" {
		m.bus.Emit(event.Logout, nil)
		return
	}

	data, err := protocol.Encode(protocol.NewAutoLogin(creds.UserID, creds.Username))
	if err != nil {
		logger.Error("%v", err)
		return
	}
	if err := m.write(data); err != nil {
		logger.Error("auto_login send failed: %v", err)
	}
}

func (m *Manager) readLoop(gen string, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := closeCode(err)
			m.exec.Post(func() {
				if code != NormalClosure && !m.closing {
					logger.Error("socket error: %v", err)
				}
				m.handleClose(gen, code)
			})
			return
		}
		m.exec.Post(func() { m.handleMessage(gen, data) })
	}
}

func (m *Manager) handleClose(gen string, code int) {
	if gen != m.gen {
		return
	}
	if m.state == Disconnected || m.state == Reconnecting {
		// Repeated close for a socket that is already gone.
		return
	}

	intentional := m.closing
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = nil
	m.closing = false
	m.dropPending("socket closed before open")
	m.setState(Disconnected)
	logger.Info("disconnected (code %d)", code)

	m.bus.Emit(event.ConnectionClosed, event.Closed{Code: code})

	if code == NormalClosure || intentional {
		return
	}

	m.bus.Emit(event.Logout, event.SessionLost{Text: connectionLostMsg})
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if m.reconnect != nil {
		return
	}
	m.setState(Reconnecting)
	m.metrics.ReconnectScheduled()
	logger.Info("reconnecting in %s", m.delay)

	var t loop.Timer
	t = m.sched.AfterFunc(m.delay, func() {
		if m.reconnect != t {
			return
		}
		m.reconnect = nil
		m.setState(Disconnected)
		m.Connect()
	})
	m.reconnect = t
}

func (m *Manager) stopReconnect() {
	if m.reconnect == nil {
		return
	}
	m.reconnect.Stop()
	m.reconnect = nil
}

func (m *Manager) dropPending(reason string) {
	if len(m.pending) == 0 {
		return
	}
	logger.Warn("dropping %d deferred message(s): %s", len(m.pending), reason)
	m.pending = nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// Send transmits msg. While connecting, the message is deferred until the
// socket opens; each call is delivered once, in call order. While
// disconnected, a connect is started and ErrNotConnected returned.
func (m *Manager) Send(msg any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	switch m.state {
	case Connected:
		return m.write(data)
	case Connecting:
		m.pending = append(m.pending, data)
		return nil
	default:
		m.Connect()
		return ErrNotConnected
	}
}

func (m *Manager) write(data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	m.metrics.MessageSent(len(data))
	return nil
}

func (m *Manager) handleMessage(gen string, data []byte) {
	if gen != m.gen {
		return
	}
	env, err := protocol.Decode(data)
	if err != nil {
		m.metrics.MalformedFrame()
		logger.Warn("dropping malformed message: %v", err)
		return
	}
	m.metrics.MessageReceived(len(data))
	logger.Debug("← %s", env.Type)
	m.bus.Publish(event.Notification{Name: env.Type, Payload: env})
}
