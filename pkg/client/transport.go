package client

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wellbeat/healthsync/pkg/event"
)

// State is the transport's connection state. Transitions are driven by the
// transport goroutine only.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// ReconnectPolicy controls how the transport retries after losing its
// connection. It is plain data so tests can exercise reconnection without a
// real network.
type ReconnectPolicy struct {
	// MaxAttempts bounds consecutive failed dials. Zero means retry forever.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of the computed delay randomized away, 0 to 1.
	Jitter float64
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		Jitter:    0.2,
	}
}

// Delay returns the backoff before the given zero-based retry attempt.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) - spread/2 + rand.Float64()*spread)
	}

	return delay
}

// UpdateHandler consumes one dispatched health update.
type UpdateHandler func(update event.HealthUpdate)

type Config struct {
	// URL is the websocket endpoint, e.g. ws://host/ws.
	URL string
	// Token is the bearer token presented during the handshake.
	Token  string
	UserId string
	// DemoMode marks a client with no backend identity. A demo transport
	// never connects and every real-time feature stays inert.
	DemoMode bool
	Policy   ReconnectPolicy
	Logger   *logrus.Logger
	Dialer   *websocket.Dialer
}

type eventHandler struct {
	id int
	fn UpdateHandler
}

type stateHandler struct {
	id int
	fn func(State)
}

// Transport maintains the single persistent connection to the server. On
// every successful connect it immediately joins the user's room, then pumps
// incoming updates to registered handlers. Reconnection is automatic and
// governed by the configured policy.
type Transport struct {
	cfg    Config
	log    *logrus.Logger
	dialer *websocket.Dialer

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	nextId    int
	handlers  map[string][]*eventHandler
	stateSubs []*stateHandler
	started   bool

	stop     chan struct{}
	stopOnce sync.Once
}

// Wire envelopes, mirroring the server's message format.

type clientEnvelope struct {
	Join      *joinMessage      `json:"join,omitempty"`
	Emergency *emergencyMessage `json:"emergency,omitempty"`
	Telemetry *telemetryMessage `json:"telemetry,omitempty"`
}

type joinMessage struct {
	UserId string `json:"user_id"`
}

type emergencyMessage struct {
	Data json.RawMessage `json:"data,omitempty"`
}

type telemetryMessage struct {
	Type event.UpdateType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

type serverEnvelope struct {
	Response *responseMessage    `json:"response,omitempty"`
	Update   *event.HealthUpdate `json:"update,omitempty"`
}

type responseMessage struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func NewTransport(cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	if cfg.Policy == (ReconnectPolicy{}) {
		cfg.Policy = DefaultReconnectPolicy()
	}

	return &Transport{
		cfg:      cfg,
		log:      logger,
		dialer:   dialer,
		state:    StateDisconnected,
		handlers: make(map[string][]*eventHandler),
		stop:     make(chan struct{}),
	}
}

// Start launches the connection loop. For a demo-mode user this is a no-op:
// no session is ever established.
func (t *Transport) Start() {
	if t.cfg.DemoMode {
		t.log.Debug("demo mode, transport stays inert")
		return
	}

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go t.run()
}

func (t *Transport) run() {
	attempt := 0
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		t.setState(StateConnecting)

		conn, err := t.dial()
		if err != nil {
			t.setState(StateDisconnected)
			t.log.Debugf("dial failed: %v", err)

			attempt++
			if t.cfg.Policy.MaxAttempts > 0 && attempt >= t.cfg.Policy.MaxAttempts {
				t.log.Warnf("giving up after %d failed connection attempts", attempt)
				return
			}

			select {
			case <-time.After(t.cfg.Policy.Delay(attempt - 1)):
			case <-t.stop:
				return
			}
			continue
		}

		attempt = 0
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		// join the room before announcing connected so the server can
		// address this connection as soon as handlers observe the state
		if err := t.writeEnvelope(clientEnvelope{Join: &joinMessage{UserId: t.cfg.UserId}}); err != nil {
			t.log.Errorf("join: %v", err)
			t.dropConn(conn)
			continue
		}

		t.setState(StateConnected)
		t.readLoop(conn)

		t.dropConn(conn)

		select {
		case <-t.stop:
			return
		default:
		}
	}
}

// dropConn closes conn, forgets it, and reports the disconnected transition.
// Runs on every teardown of a live connection, including a failed join, so
// state observers always see a full connect cycle and no emit can reach a
// dead connection.
func (t *Transport) dropConn(conn *websocket.Conn) {
	conn.Close()

	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()

	t.setState(StateDisconnected)
}

func (t *Transport) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	conn, _, err := t.dialer.Dial(t.cfg.URL, header)
	return conn, err
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		var env serverEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Errorf("ws: read: %v", err)
			}
			return
		}

		if env.Update != nil {
			t.dispatch(*env.Update)
		}
	}
}

func (t *Transport) dispatch(update event.HealthUpdate) {
	t.mu.Lock()
	registered := t.handlers[update.Type.String()]
	handlers := make([]*eventHandler, len(registered))
	copy(handlers, registered)
	t.mu.Unlock()

	for _, h := range handlers {
		h.fn(update)
	}
}

// On registers a handler for one update type. Handlers run in registration
// order on the transport goroutine. The returned subscription unregisters it.
func (t *Transport) On(updateType event.UpdateType, fn UpdateHandler) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextId++
	h := &eventHandler{id: t.nextId, fn: fn}
	name := updateType.String()
	t.handlers[name] = append(t.handlers[name], h)

	return newSubscription(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		hs := t.handlers[name]
		for i, cur := range hs {
			if cur.id == h.id {
				t.handlers[name] = append(hs[:i], hs[i+1:]...)
				return
			}
		}
	})
}

// OnStateChange registers a handler invoked on every state transition.
func (t *Transport) OnStateChange(fn func(State)) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextId++
	h := &stateHandler{id: t.nextId, fn: fn}
	t.stateSubs = append(t.stateSubs, h)

	return newSubscription(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, cur := range t.stateSubs {
			if cur.id == h.id {
				t.stateSubs = append(t.stateSubs[:i], t.stateSubs[i+1:]...)
				return
			}
		}
	})
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	subs := make([]*stateHandler, len(t.stateSubs))
	copy(subs, t.stateSubs)
	t.mu.Unlock()

	for _, h := range subs {
		h.fn(s)
	}
}

// EmitTelemetry sends a low-value health signal. Best effort: when not
// connected the message is silently dropped.
func (t *Transport) EmitTelemetry(updateType event.UpdateType, data json.RawMessage) error {
	return t.writeEnvelope(clientEnvelope{Telemetry: &telemetryMessage{Type: updateType, Data: data}})
}

// EmitEmergency sends an emergency support request over the socket.
func (t *Transport) EmitEmergency(data json.RawMessage) error {
	return t.writeEnvelope(clientEnvelope{Emergency: &emergencyMessage{Data: data}})
}

func (t *Transport) writeEnvelope(env clientEnvelope) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		// not connected: drop, delivery is not guaranteed at this layer
		return nil
	}

	return conn.WriteJSON(env)
}

// Close tears the transport down permanently.
func (t *Transport) Close() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
