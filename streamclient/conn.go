package streamclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MailerSuite/Final-sub009/auth"
	"github.com/MailerSuite/Final-sub009/errors"
	"github.com/MailerSuite/Final-sub009/health"
	"github.com/MailerSuite/Final-sub009/metric"
	"github.com/MailerSuite/Final-sub009/pkg/buffer"
)

// connectionIDHeader identifies each handshake to the server.
const connectionIDHeader = "X-Request-ID"

// Conn is a self-healing WebSocket subscription. It dials in the
// background, delivers parsed JSON frames to Handlers.OnMessage, and after
// any close other than a normal closure (1000) reconnects after a fixed
// delay until the attempt budget is spent.
type Conn struct {
	url      string
	path     string
	name     string
	opts     *options
	handlers Handlers
	dialer   *websocket.Dialer
	logger   *slog.Logger
	metrics  *metric.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	attempts int
	ws       *websocket.Conn
	timer    *time.Timer
	closing  bool
	lastErr  error
	paused   bool
	pending  *buffer.Ring[Event]
	seq      uint64

	// deliverMu orders live delivery against the flush in Resume.
	deliverMu sync.Mutex
	writeMu   sync.Mutex
}

// Connect starts a subscription to rawURL (ws:// or wss://) and returns
// immediately in StateConnecting. Cancelling ctx is equivalent to Close.
func Connect(ctx context.Context, rawURL string, handlers Handlers, opts ...Option) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "streamclient", "Connect", "parse stream URL "+rawURL)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.name == "" {
		o.name = u.Host + u.Path
	}

	c := &Conn{
		url:      rawURL,
		path:     u.Path,
		name:     o.name,
		opts:     o,
		handlers: handlers,
		logger:   o.logger.With("component", "streamclient", "stream", o.name),
		done:     make(chan struct{}),
		state:    StateConnecting,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.handshakeTimeout,
			TLSClientConfig:  o.tlsConfig,
		},
	}
	if o.registry != nil {
		c.metrics = o.registry.CoreMetrics()
	}

	ringOpts := []buffer.Option[Event]{
		buffer.WithDropCallback(func(ev Event) {
			c.logger.Warn("Pause buffer full, dropped oldest event", "seq", ev.Seq)
			if c.metrics != nil {
				c.metrics.RecordStreamDrop(c.name, "overflow")
			}
		}),
	}
	if o.registry != nil {
		c.pending, err = buffer.NewRing[Event](o.pauseBuffer,
			append(ringOpts, buffer.WithMetrics[Event](o.registry, "pause:"+o.name))...)
		if err != nil && !errors.IsTransient(err) {
			return nil, errors.Wrap(err, "streamclient", "Connect", "create pause buffer")
		}
		if err != nil {
			// Another connection already exports a buffer under this name.
			c.logger.Warn("Pause buffer metrics disabled", "error", err)
		}
	}
	if c.pending == nil {
		c.pending, err = buffer.NewRing[Event](o.pauseBuffer, ringOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "streamclient", "Connect", "create pause buffer")
		}
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.recordState(StateConnecting)

	go c.run()
	go func() {
		select {
		case <-c.ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	return c, nil
}

// run owns the dial, read and reconnect cycle.
func (c *Conn) run() {
	defer close(c.done)
	defer c.pending.Close()
	defer c.cancel()

	for {
		ws, err := c.dial()
		if err != nil {
			if c.isClosing() {
				c.transition(StateClosed)
				return
			}
			c.fail(err)
		} else {
			code, reason, readErr := c.serve(ws)
			c.callOnClose(code, reason)

			if c.isClosing() {
				c.transition(StateClosed)
				return
			}
			if code == websocket.CloseNormalClosure {
				c.logger.Info("Stream closed by server", "code", code, "reason", reason)
				c.transition(StateClosed)
				return
			}
			c.fail(errors.WrapTransient(readErr, "streamclient", "run", fmt.Sprintf("read frame (close code %d)", code)))
		}

		if !c.waitReconnect() {
			return
		}
	}
}

func (c *Conn) dial() (*websocket.Conn, error) {
	header := c.opts.header.Clone()
	connID := uuid.NewString()
	header.Set(connectionIDHeader, connID)
	if c.opts.tokens != nil {
		token, ok, err := c.opts.tokens.Token(c.ctx)
		if err != nil {
			c.logger.Warn("Token lookup failed, connecting without credentials", "error", err)
		} else if ok {
			header.Set("Authorization", auth.BearerHeader(token))
		}
	}

	ws, resp, err := c.dialer.DialContext(c.ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = &errors.HTTPError{Method: http.MethodGet, Path: c.path, StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, errors.WrapFatal(err, "streamclient", "dial", "handshake")
			}
		}
		return nil, errors.WrapTransient(err, "streamclient", "dial", "handshake")
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		ws.Close()
		return nil, errors.ErrStreamClosed
	}
	c.ws = ws
	c.attempts = 0
	c.lastErr = nil
	c.mu.Unlock()

	c.transition(StateOpen)
	c.logger.Info("Stream connected", "conn_id", connID)
	if c.handlers.OnOpen != nil {
		c.handlers.OnOpen()
	}
	return ws, nil
}

// serve reads frames until the connection ends and reports the close code.
// Transport failures without a close frame report 1006.
func (c *Conn) serve(ws *websocket.Conn) (int, string, error) {
	defer func() {
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
	}()

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code, ce.Text, err
			}
			return websocket.CloseAbnormalClosure, "", err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.handleFrame(data)
	}
}

func (c *Conn) handleFrame(data []byte) {
	if !json.Valid(data) {
		c.logger.Debug("Dropped malformed frame", "bytes", len(data))
		if c.metrics != nil {
			c.metrics.RecordStreamDrop(c.name, "malformed")
		}
		return
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.seq++
	ev := Event{Seq: c.seq, Data: json.RawMessage(data), ReceivedAt: time.Now()}
	paused := c.paused
	c.mu.Unlock()

	if paused {
		c.pending.Write(ev)
		c.recordMessage("buffered")
		return
	}
	c.recordMessage("delivered")
	if c.handlers.OnMessage != nil {
		c.handlers.OnMessage(ev)
	}
}

// fail records err and reports it to OnError.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Warn("Stream connection failed", "error", err)
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

// waitReconnect moves to Reconnecting and sleeps the fixed delay, or moves
// to Exhausted when the budget is spent. It returns false when the run loop
// must stop.
func (c *Conn) waitReconnect() bool {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		c.transition(StateClosed)
		return false
	}
	if c.attempts >= c.opts.maxReconnects {
		attempts := c.attempts
		c.lastErr = errors.WrapFatal(errors.ErrReconnectExhausted, "streamclient", "reconnect",
			fmt.Sprintf("reconnect after %d attempts", attempts))
		err := c.lastErr
		c.mu.Unlock()

		c.transition(StateExhausted)
		c.logger.Error("Giving up on stream", "attempts", attempts)
		if c.handlers.OnError != nil {
			c.handlers.OnError(err)
		}
		return false
	}
	c.attempts++
	attempt := c.attempts
	timer := time.NewTimer(c.opts.reconnectDelay)
	c.timer = timer
	c.mu.Unlock()

	c.transition(StateReconnecting)
	if c.metrics != nil {
		c.metrics.RecordStreamReconnect(c.name)
	}
	c.logger.Info("Reconnecting", "attempt", attempt, "max", c.opts.maxReconnects, "delay", c.opts.reconnectDelay)

	select {
	case <-timer.C:
	case <-c.ctx.Done():
		timer.Stop()
		c.transition(StateClosed)
		return false
	}

	c.mu.Lock()
	c.timer = nil
	closing := c.closing
	c.mu.Unlock()
	if closing {
		c.transition(StateClosed)
		return false
	}
	c.transition(StateConnecting)
	return true
}

// Close ends the subscription: a pending reconnect is cancelled and an open
// socket is closed with code 1000. Close does not wait; use Done.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ws := c.ws
	c.mu.Unlock()

	c.cancel()

	if ws == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	// The read loop exits when the peer echoes the close frame; force it
	// if the peer does not.
	time.AfterFunc(closeGrace, func() { ws.Close() })
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return errors.Wrap(err, "streamclient", "Close", "send close frame")
	}
	return nil
}

// Send writes v as a JSON text frame.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	ws, state := c.ws, c.state
	c.mu.Unlock()
	if ws == nil || state != StateOpen {
		return errors.Wrap(errors.ErrNotConnected, "streamclient", "Send", "write frame in state "+state.String())
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.WrapTransient(err, "streamclient", "Send", "set write deadline")
	}
	if err := ws.WriteJSON(v); err != nil {
		return errors.WrapTransient(err, "streamclient", "Send", "write frame")
	}
	return nil
}

// Pause buffers inbound events instead of delivering them.
func (c *Conn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume delivers every buffered event in arrival order, then resumes live
// delivery. It must not be called from OnMessage.
func (c *Conn) Resume() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()

	for _, ev := range c.pending.Drain() {
		c.recordMessage("delivered")
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(ev)
		}
	}
}

// Paused reports whether events are being buffered.
func (c *Conn) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Buffered returns the number of events waiting for Resume.
func (c *Conn) Buffered() int {
	return c.pending.Len()
}

// Dropped returns how many buffered events were lost to overflow.
func (c *Conn) Dropped() int64 {
	return c.pending.Stats().Drops()
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectAttempts returns reconnects since the last successful open.
func (c *Conn) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Err returns the most recent failure, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Done is closed once the connection reaches Closed or Exhausted.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Name identifies the connection in logs and metrics.
func (c *Conn) Name() string {
	return c.name
}

// Health reports the connection state as a health.Status.
func (c *Conn) Health() health.Status {
	c.mu.Lock()
	state, attempts, lastErr := c.state, c.attempts, c.lastErr
	c.mu.Unlock()

	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return health.FromStreamState(c.name, state.String(), attempts, msg)
}

func (c *Conn) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Conn) transition(to State) {
	c.mu.Lock()
	from := c.state
	if from == to || from.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	c.recordState(to)
	c.logger.Debug("Stream state changed", "from", from.String(), "to", to.String())
	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(from, to)
	}
}

func (c *Conn) callOnClose(code int, reason string) {
	if c.handlers.OnClose != nil {
		c.handlers.OnClose(code, reason)
	}
}

func (c *Conn) recordState(s State) {
	if c.metrics != nil {
		c.metrics.RecordStreamState(c.name, int(s))
	}
}

func (c *Conn) recordMessage(disposition string) {
	if c.metrics != nil {
		c.metrics.RecordStreamMessage(c.name, disposition)
	}
}
