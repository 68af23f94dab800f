package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
)

// Client speaks the Gateway session protocol over one persistent WebSocket.
//
// A Client is safe for concurrent use. Connect callers share a single
// in-flight attempt, Call may run from any number of goroutines, and every
// inbound frame is handled strictly in arrival order by the connection's
// frame loop.
type Client struct {
	cfg Config
	log zerolog.Logger

	pending *pendingCalls
	events  *dispatcher

	// writeMu serializes socket writes; gorilla connections allow only one
	// concurrent writer.
	writeMu sync.Mutex

	mu               sync.Mutex
	state            SessionState
	conn             *websocket.Conn
	attempt          *connectAttempt
	autoReconnect    bool
	reconnectTimer   *time.Timer
	reconnectAttempt int
	rng              *rand.Rand
}

// New validates cfg, applies defaults, and returns a disconnected client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	observability.RegisterMetrics()
	return &Client{
		cfg:           cfg,
		log:           logger.With().Str("component", "gateway").Str("endpoint", cfg.URL).Logger(),
		pending:       newPendingCalls(),
		events:        newDispatcher(),
		autoReconnect: cfg.AutoReconnect,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// connectAttempt is the shared future concurrent Connect callers await.
type connectAttempt struct {
	started time.Time
	done    chan struct{}
	err     error
	once    sync.Once

	// timer enforces the connect deadline; guarded by Client.mu until the
	// attempt is published.
	timer *time.Timer
	// handshakeStarted is guarded by Client.mu. At most one handshake runs
	// per attempt no matter how many challenges the server sends.
	handshakeStarted bool
}

func (a *connectAttempt) settle(err error) {
	a.once.Do(func() {
		a.err = err
		if a.timer != nil {
			a.timer.Stop()
		}
		close(a.done)
	})
}

func (a *connectAttempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect establishes an authenticated session. Already authenticated is a
// no-op; while an attempt is in flight every caller awaits that same
// attempt. Cancelling ctx abandons the wait only, never the shared attempt,
// which still settles under its own deadline.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateAuthenticated && c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if a := c.attempt; a != nil {
		c.mu.Unlock()
		return a.wait(ctx)
	}
	c.stopReconnectLocked()
	stale := c.conn
	c.conn = nil
	a := c.beginAttemptLocked()
	c.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}
	go c.dialAndServe(a)
	return a.wait(ctx)
}

// beginAttemptLocked arms the shared attempt and its deadline. The timer is
// created before the attempt is published so later readers see it.
func (c *Client) beginAttemptLocked() *connectAttempt {
	a := &connectAttempt{
		started: time.Now(),
		done:    make(chan struct{}),
	}
	a.timer = time.AfterFunc(c.cfg.ConnectTimeout, func() { c.connectDeadline(a) })
	c.attempt = a
	c.setStateLocked(StateConnecting)
	return a
}

func (c *Client) setStateLocked(s SessionState) {
	c.state = s
	observability.SetSessionState(int(s))
}

// dialTarget appends the credential as a connection-time query parameter.
func (c *Client) dialTarget() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialAndServe owns the socket for its whole life: dial, register, then run
// the frame loop until the transport dies.
func (c *Client) dialAndServe(a *connectAttempt) {
	target, err := c.dialTarget()
	if err != nil {
		c.failDial(a, err)
		return
	}
	dialCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, target, nil)
	cancel()
	if err != nil {
		c.failDial(a, fmt.Errorf("%w: %v", ErrConnectFailed, err))
		return
	}

	c.mu.Lock()
	if c.attempt != a {
		// Attempt was torn down while dialing.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.setStateLocked(StateSocketOpen)
	c.mu.Unlock()

	c.log.Debug().Msg("gateway socket open, awaiting challenge")
	c.serveConn(conn)
}

func (c *Client) failDial(a *connectAttempt, err error) {
	c.mu.Lock()
	if c.attempt == a {
		c.attempt = nil
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()

	a.settle(err)
	c.log.Warn().Err(err).Msg("gateway dial failed")
	observability.RecordConnect("dial_error", time.Since(a.started))
}

// connectDeadline fires when an attempt outlives ConnectTimeout. It tears
// down whatever the attempt built and fails every waiter.
func (c *Client) connectDeadline(a *connectAttempt) {
	c.mu.Lock()
	if c.attempt != a {
		c.mu.Unlock()
		return
	}
	c.attempt = nil
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	a.settle(ErrConnectTimeout)
	c.finishSocket(conn)
	c.log.Warn().Dur("timeout", c.cfg.ConnectTimeout).Msg("gateway connect deadline exceeded")
	observability.RecordConnect("timeout", time.Since(a.started))
}

// serveConn runs the reader pump and the frame loop. A dedicated goroutine
// reads the socket and feeds a channel; this loop consumes it, so frames are
// handled one at a time in arrival order.
func (c *Client) serveConn(conn *websocket.Conn) {
	frames := make(chan []byte, 32)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				close(frames)
				return
			}
			frames <- data
		}
	}()

	for data := range frames {
		c.handleFrame(conn, data)
	}
	c.socketClosed(conn, <-readErr)
}

func (c *Client) handleFrame(conn *websocket.Conn, data []byte) {
	in, err := protocol.Decode(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("malformed frame dropped")
		observability.RecordAnomaly("malformed_frame")
		return
	}
	switch in.Kind {
	case protocol.KindResponse:
		c.resolvePending(in)
	case protocol.KindEvent:
		if in.Event == protocol.EventChallenge {
			c.onChallenge(conn)
			return
		}
		c.emit(Notification{Name: in.Event, Payload: in.Payload})
	case protocol.KindNotification:
		// A method frame may carry an id; only an id that collides with an
		// in-flight request disqualifies it as an unsolicited notification.
		if in.ID != "" && c.pending.has(in.ID) {
			c.log.Warn().Str("id", in.ID).Str("method", in.Method).Msg("method frame reusing in-flight id dropped")
			observability.RecordAnomaly("conflicting_frame_id")
			return
		}
		c.emit(Notification{Name: in.Method, Payload: in.Params})
	default:
		c.log.Warn().Msg("unhandled frame dropped")
		observability.RecordAnomaly("unknown_frame")
	}
}

func (c *Client) emit(n Notification) {
	observability.RecordEvent(n.Name)
	c.events.dispatch(n)
}

func (c *Client) resolvePending(in protocol.Inbound) {
	pc, ok := c.pending.take(in.ID)
	if !ok {
		c.log.Warn().Str("id", in.ID).Msg("response for unknown id dropped")
		observability.RecordAnomaly("unknown_response_id")
		return
	}
	if in.OK {
		observability.RecordCall(pc.method, "ok", time.Since(pc.started))
		pc.deliver(callResult{payload: in.Payload})
		return
	}
	observability.RecordCall(pc.method, "error", time.Since(pc.started))
	pc.deliver(callResult{err: serverErrorFrom(in.Err)})
}

// onChallenge reacts to the server's challenge event. The first challenge of
// an attempt starts the handshake; anything else is a protocol anomaly.
func (c *Client) onChallenge(conn *websocket.Conn) {
	c.mu.Lock()
	a := c.attempt
	if a == nil || c.conn != conn {
		c.mu.Unlock()
		c.log.Warn().Msg("challenge outside connect attempt dropped")
		observability.RecordAnomaly("unexpected_challenge")
		return
	}
	if a.handshakeStarted {
		c.mu.Unlock()
		c.log.Warn().Msg("duplicate challenge dropped")
		observability.RecordAnomaly("duplicate_challenge")
		return
	}
	a.handshakeStarted = true
	c.mu.Unlock()

	go c.runHandshake(a, conn)
}

// runHandshake presents protocol range, client identity, and credential,
// then settles the attempt on the server's verdict.
func (c *Client) runHandshake(a *connectAttempt, conn *websocket.Conn) {
	params := protocol.ConnectParams{
		MinProtocol: protocol.ProtocolVersion,
		MaxProtocol: protocol.ProtocolVersion,
		Client:      c.cfg.Client,
		Auth:        protocol.AuthParams{Token: c.cfg.Token},
	}
	payload, err := c.roundTrip(context.Background(), conn, protocol.MethodConnect, params, c.cfg.ConnectTimeout)
	if err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) {
			err = fmt.Errorf("%w: %s", ErrAuthenticationFailed, srvErr.Message)
		}
		c.failHandshake(a, conn, err)
		return
	}
	c.completeHandshake(a, conn, payload)
}

func (c *Client) completeHandshake(a *connectAttempt, conn *websocket.Conn, hello json.RawMessage) {
	c.mu.Lock()
	if c.attempt != a || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.attempt = nil
	c.reconnectAttempt = 0
	c.setStateLocked(StateAuthenticated)
	c.mu.Unlock()

	a.settle(nil)
	c.log.Info().Msg("gateway session authenticated")
	observability.RecordConnect("ok", time.Since(a.started))
	c.emit(Notification{Name: NotifyConnected, Payload: hello})
}

func (c *Client) failHandshake(a *connectAttempt, conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.attempt != a {
		c.mu.Unlock()
		return
	}
	c.attempt = nil
	if c.conn == conn {
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	a.settle(err)
	c.finishSocket(conn)
	c.log.Warn().Err(err).Msg("gateway handshake failed")
	outcome := "error"
	if errors.Is(err, ErrAuthenticationFailed) {
		outcome = "auth_rejected"
	}
	observability.RecordConnect(outcome, time.Since(a.started))
}

// socketClosed is the single exit path of a frame loop. Anything still
// referencing an older socket is ignored via pointer identity.
func (c *Client) socketClosed(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	prior := c.state
	a := c.attempt
	c.attempt = nil
	c.setStateLocked(StateDisconnected)
	if prior == StateAuthenticated && c.autoReconnect {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	if a != nil {
		a.settle(fmt.Errorf("%w: %v", ErrConnectFailed, cause))
	}
	c.finishSocket(conn)
	c.log.Warn().Err(cause).Str("prior_state", prior.String()).Msg("gateway socket closed")
	observability.RecordDisconnect(prior.String())
}

// finishSocket closes conn, rejects that socket's in-flight calls, and emits
// the disconnected notification. Callers detach conn from the client first.
// The drain is scoped to conn; calls issued on a replacement socket in the
// meantime stay pending.
func (c *Client) finishSocket(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
	if n := c.pending.drain(conn, ErrConnectionLost); n > 0 {
		c.log.Warn().Int("rejected", n).Msg("pending calls rejected on socket loss")
	}
	c.events.dispatch(Notification{Name: NotifyDisconnected})
}

// Call invokes one Gateway method and waits for the response, the per-call
// timeout, or ctx cancellation. Calls are independent; slow responses never
// delay other calls. Without an authenticated session it fails immediately
// and performs no socket I/O.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if strings.TrimSpace(method) == "" {
		return nil, protocol.ErrMissingMethod
	}
	c.mu.Lock()
	if c.state != StateAuthenticated || c.conn == nil {
		c.mu.Unlock()
		observability.RecordCall(method, "not_connected", 0)
		return nil, ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	return c.roundTrip(ctx, conn, method, params, c.cfg.CallTimeout)
}

// roundTrip sends one correlated request on conn and waits for its outcome.
// The handshake uses it on a not-yet-authenticated socket; Call guards state
// before delegating here.
func (c *Client) roundTrip(ctx context.Context, conn *websocket.Conn, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	pc := &pendingCall{
		method:  method,
		started: time.Now(),
		conn:    conn,
		done:    make(chan callResult, 1),
	}
	for {
		pc.id = uuid.NewString()
		if c.pending.add(pc) {
			break
		}
	}

	data, err := protocol.EncodeRequest(pc.id, method, params)
	if err != nil {
		c.pending.take(pc.id)
		return nil, err
	}
	if err := c.writeFrame(conn, data); err != nil {
		c.pending.take(pc.id)
		observability.RecordCall(method, "write_error", time.Since(pc.started))
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	// Armed after the write so a response that beats us here finds the
	// entry already resolved and no timer is created.
	c.pending.arm(pc.id, timeout, func() { c.expirePending(pc.id) })

	select {
	case res := <-pc.done:
		return res.payload, res.err
	case <-ctx.Done():
		if _, ok := c.pending.take(pc.id); ok {
			observability.RecordCall(method, "canceled", time.Since(pc.started))
			return nil, ctx.Err()
		}
		// Lost the race: a result is already on the way.
		res := <-pc.done
		return res.payload, res.err
	}
}

func (c *Client) expirePending(id string) {
	pc, ok := c.pending.take(id)
	if !ok {
		return
	}
	c.log.Warn().Str("id", id).Str("method", pc.method).Msg("gateway request timed out")
	observability.RecordCall(pc.method, "timeout", time.Since(pc.started))
	pc.deliver(callResult{err: fmt.Errorf("%w: %s", ErrRequestTimeout, pc.method)})
}

func (c *Client) writeFrame(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Disconnect tears the session down and forces the reconnect policy off.
// Safe to call in any state, including repeatedly; a later Connect starts
// fresh with reconnect still disabled until SetAutoReconnect re-enables it.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.autoReconnect = false
	c.stopReconnectLocked()
	a := c.attempt
	c.attempt = nil
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if a != nil {
		a.settle(ErrConnectionLost)
	}
	c.finishSocket(conn)
	if a != nil || conn != nil {
		c.log.Info().Msg("gateway client disconnected")
	}
}

// SetAutoReconnect toggles the reconnect policy at runtime. Disabling
// cancels any scheduled attempt immediately.
func (c *Client) SetAutoReconnect(enabled bool) {
	c.mu.Lock()
	c.autoReconnect = enabled
	if !enabled {
		c.stopReconnectLocked()
	}
	c.mu.Unlock()
}

func (c *Client) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// scheduleReconnectLocked arms at most one pending reconnect timer.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	c.reconnectAttempt++
	delay := c.cfg.Reconnect.Delay(c.reconnectAttempt, c.rng)
	c.reconnectTimer = time.AfterFunc(delay, c.retryConnect)
	c.log.Info().Dur("delay", delay).Int("attempt", c.reconnectAttempt).Msg("gateway reconnect scheduled")
	observability.RecordReconnectScheduled()
}

// retryConnect runs a scheduled reconnect attempt and keeps rescheduling on
// failure until the policy is disabled or an attempt succeeds.
func (c *Client) retryConnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if !c.autoReconnect || c.conn != nil || c.attempt != nil {
		c.mu.Unlock()
		return
	}
	a := c.beginAttemptLocked()
	c.mu.Unlock()

	go c.dialAndServe(a)
	if err := a.wait(context.Background()); err != nil {
		c.mu.Lock()
		if c.autoReconnect && c.conn == nil && c.attempt == nil {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
	}
}

// On subscribes h to notifications named event. The returned func cancels
// the subscription.
func (c *Client) On(event string, h Handler) func() {
	return c.events.subscribe(event, h)
}

// OnAny subscribes h to every notification.
func (c *Client) OnAny(h Handler) func() {
	return c.events.subscribeAll(h)
}

// State returns the current session state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports an authenticated session over a live socket.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAuthenticated && c.conn != nil
}

// PendingCalls returns the number of in-flight requests.
func (c *Client) PendingCalls() int {
	return c.pending.size()
}

// Endpoint returns the configured Gateway URL.
func (c *Client) Endpoint() string {
	return c.cfg.URL
}
