// Package gateway implements the daemon side of the coordinator link: a
// single persistent WebSocket with an authentication handshake,
// heartbeat-based dead-peer detection, exponential-backoff reconnection,
// and an outbound queue that survives disconnection.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NoPKT/agentim/pkg/protocol"
)

// Defaults. Heartbeat values match the coordinator's expectations.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 10 * time.Second
	DefaultBackoffBase  = time.Second
	DefaultBackoffMax   = 30 * time.Second
	DefaultMaxAttempts  = 50
	DefaultQueueCap     = 500
	DefaultDialTimeout  = 10 * time.Second

	writeTimeout = 10 * time.Second
)

// TokenRefresher is invoked before each reconnection retry. It returns
// the token to use for the next attempt. An empty token with a nil error
// means the session is truly expired: reconnection stops terminally. A
// non-nil error is treated as transient; the previous token is reused
// and the retry proceeds anyway.
type TokenRefresher func(ctx context.Context) (string, error)

// InboundHandler receives validated application frames (agent:work,
// agent:stop). Control frames never reach it.
type InboundHandler func(frame protocol.Frame)

// Options configures a Client. Zero values take the package defaults.
type Options struct {
	// URL is the coordinator's WebSocket endpoint.
	URL string

	PingInterval time.Duration
	PongTimeout  time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	MaxAttempts  int
	QueueCap     int
	DialTimeout  time.Duration

	// SendRate paces outbound frames (frames/sec); <= 0 disables pacing.
	SendRate  float64
	SendBurst int

	// Refresher, when set, is consulted before every reconnection retry.
	Refresher TokenRefresher

	// Dialer overrides the default websocket dialer (tests).
	Dialer *websocket.Dialer
}

func (o *Options) normalize() {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = DefaultPongTimeout
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.QueueCap <= 0 {
		o.QueueCap = DefaultQueueCap
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
}

// Client owns one transport channel at a time. All state mutation happens
// under c.mu inside the client's own handlers; the public entry points
// are safe to call from any goroutine without external locking.
type Client struct {
	opts    Options
	dialer  *websocket.Dialer
	limiter *sendLimiter
	hub     *eventHub

	mu              sync.Mutex
	conn            *websocket.Conn
	status          Status
	token           string
	hasToken        bool
	authed          bool
	wasConnected    bool
	shouldReconnect bool
	connecting      bool // dial or auth handshake in flight
	attempts        int
	gen             uint64 // bumped when a connection epoch ends; stale timers check it
	queue           *pendingQueue
	reconnectTimer  *time.Timer
	pongTimer       *time.Timer
	inbound         InboundHandler

	// writeMu serializes writes to the socket (gorilla allows one writer).
	writeMu sync.Mutex
}

// New creates a client. It does not connect.
func New(opts Options) *Client {
	opts.normalize()
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	}
	return &Client{
		opts:    opts,
		dialer:  dialer,
		limiter: newSendLimiter(opts.SendRate, opts.SendBurst),
		hub:     newEventHub(),
		status:  StatusDisconnected,
		queue:   newPendingQueue(opts.QueueCap),
	}
}

// OnInbound registers the handler for application frames.
func (c *Client) OnInbound(fn InboundHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = fn
}

// OnStatusChange subscribes to connection status transitions. Each change
// is delivered exactly once; repeated identical values are not re-emitted.
func (c *Client) OnStatusChange(fn func(Status)) (unsubscribe func()) {
	return c.hub.subscribeStatus(fn)
}

// OnReconnect subscribes to reconnect-occurred events: authentication
// successes that recover a previously connected session.
func (c *Client) OnReconnect(fn func()) (unsubscribe func()) {
	return c.hub.subscribeReconnect(fn)
}

// OnQueueOverflow subscribes to outbound-queue overflow notifications.
func (c *Client) OnQueueOverflow(fn func()) (unsubscribe func()) {
	return c.hub.subscribeOverflow(fn)
}

// OnValidationError subscribes to inbound frame validation failures.
func (c *Client) OnValidationError(fn func(error)) (unsubscribe func()) {
	return c.hub.subscribeValidation(fn)
}

// Connect opens the channel and authenticates with token. Idempotent
// while an attempt is already in flight: a concurrent call only updates
// the stored token (freshest token wins for the pending handshake).
func (c *Client) Connect(token string) {
	c.mu.Lock()
	c.token = token
	c.hasToken = true
	c.shouldReconnect = true
	if c.connecting || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.setStatusLocked(StatusConnecting)
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// SetToken updates the stored bearer token. A token set after Connect but
// before the channel opens is the one used for the handshake.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.hasToken = true
}

// Reconnect manually resets the backoff and reconnects with the stored
// token. A no-op if no token has ever been set.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if !c.hasToken {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	c.shouldReconnect = true
	c.stopReconnectTimerLocked()
	if c.connecting || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.setStatusLocked(StatusConnecting)
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// Disconnect closes the channel and stops all reconnection. The pending
// outbound queue is cleared and every scheduled timer is cancelled before
// this returns: a cancelled timer can never reopen the channel.
// Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.shouldReconnect = false
	c.connecting = false
	c.authed = false
	c.stopReconnectTimerLocked()
	c.stopPongTimerLocked()
	c.queue.clear()
	conn := c.conn
	c.conn = nil
	c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Connected reports whether the transport is open and authenticated.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.authed
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// QueueLen returns the number of pending outbound frames.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Send transmits a frame immediately when connected. While disconnected,
// auth and ping frames are discarded (they are meaningless once stale);
// everything else is queued up to capacity. On overflow the frame is
// dropped and a queue-overflow notification is raised.
func (c *Client) Send(frame protocol.Frame) {
	data, err := protocol.Encode(frame)
	if err != nil {
		slog.Error("marshal frame failed", "kind", frame.FrameKind(), "error", err)
		return
	}

	c.mu.Lock()
	if c.conn != nil && c.authed {
		conn := c.conn
		c.mu.Unlock()
		c.writeRaw(conn, data)
		return
	}

	switch frame.FrameKind() {
	case protocol.KindAuth, protocol.KindPing:
		c.mu.Unlock()
		return
	}
	if !c.queue.push(data) {
		c.mu.Unlock()
		slog.Warn("outbound queue full, dropping frame", "kind", frame.FrameKind())
		c.hub.emitOverflow()
		return
	}
	c.mu.Unlock()
}

// SetOnline feeds network-availability signals to the client. An online
// signal resets the backoff and reconnects immediately if not already
// connected; an offline signal proactively closes an open channel so the
// reconnect path takes over instead of waiting for a read timeout.
func (c *Client) SetOnline(online bool) {
	if online {
		c.mu.Lock()
		c.attempts = 0
		if !c.shouldReconnect || c.connecting || c.conn != nil {
			c.mu.Unlock()
			return
		}
		c.stopReconnectTimerLocked()
		c.connecting = true
		c.setStatusLocked(StatusConnecting)
		gen := c.gen
		c.mu.Unlock()
		go c.dial(gen)
		return
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		slog.Info("network offline, closing channel")
		conn.Close() // read loop observes the close and schedules reconnect
	}
}

// --- connection lifecycle ---

func (c *Client) dial(gen uint64) {
	conn, _, err := c.dialer.Dial(c.opts.URL, nil)

	c.mu.Lock()
	if gen != c.gen || !c.shouldReconnect {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		slog.Warn("dial failed", "url", c.opts.URL, "error", err)
		c.connecting = false
		c.setStatusLocked(StatusReconnecting)
		c.scheduleRetryLocked()
		c.mu.Unlock()
		return
	}
	c.conn = conn
	token := c.token // freshest token wins
	c.mu.Unlock()

	go c.readLoop(conn, gen)

	data, _ := protocol.Encode(protocol.NewAuth(token))
	c.writeRaw(conn, data)
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen)
			return
		}
		c.handleFrame(gen, data)
	}
}

func (c *Client) handleFrame(gen uint64, data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		slog.Warn("dropping invalid frame", "error", err)
		c.hub.emitValidation(err)
		return
	}

	switch f := frame.(type) {
	case *protocol.AuthResultFrame:
		c.handleAuthResult(gen, f)
	case *protocol.PongFrame:
		c.mu.Lock()
		if gen == c.gen {
			c.stopPongTimerLocked()
		}
		c.mu.Unlock()
	case *protocol.WorkFrame, *protocol.StopFrame:
		c.mu.Lock()
		handler := c.inbound
		c.mu.Unlock()
		if handler != nil {
			handler(frame)
		}
	default:
		// known kind, wrong direction
		slog.Debug("ignoring unexpected frame", "kind", frame.FrameKind())
	}
}

func (c *Client) handleAuthResult(gen uint64, f *protocol.AuthResultFrame) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.connecting = false

	if !f.OK {
		slog.Warn("authentication rejected", "error", f.Error)
		c.gen++ // this epoch is over; the read loop's close is already handled
		conn := c.conn
		c.conn = nil
		c.authed = false
		c.stopPongTimerLocked()
		if c.opts.Refresher != nil && c.shouldReconnect {
			c.setStatusLocked(StatusReconnecting)
			c.scheduleRetryLocked()
		} else {
			c.shouldReconnect = false
			c.setStatusLocked(StatusDisconnected)
		}
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	c.authed = true
	c.attempts = 0
	recovered := c.wasConnected
	c.wasConnected = true
	conn := c.conn
	queued := c.queue.drain()
	c.setStatusLocked(StatusConnected)
	go c.heartbeat(conn, gen)
	c.mu.Unlock()

	slog.Info("authenticated", "recovered", recovered, "flushing", len(queued))
	if recovered {
		c.hub.emitReconnect()
	}
	// flush oldest first before any further application traffic
	for _, data := range queued {
		c.writeRaw(conn, data)
	}
}

// handleClose runs when the read loop ends. Epochs already ended by
// Disconnect or an auth failure are ignored via the generation check.
func (c *Client) handleClose(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.stopPongTimerLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.authed = false
	c.connecting = false

	if !c.shouldReconnect {
		c.setStatusLocked(StatusDisconnected)
		c.mu.Unlock()
		return
	}
	slog.Warn("channel closed unexpectedly, reconnecting")
	c.setStatusLocked(StatusReconnecting)
	c.scheduleRetryLocked()
	c.mu.Unlock()
}

// scheduleRetryLocked schedules the next reconnection attempt with
// exponential backoff. Once the attempt cap is reached no further retry
// is scheduled and the status becomes disconnected terminally; the token
// is retained so a manual Reconnect can still succeed. Must be called
// with c.mu held.
func (c *Client) scheduleRetryLocked() {
	if c.attempts >= c.opts.MaxAttempts {
		slog.Error("reconnect attempts exhausted", "attempts", c.attempts)
		c.setStatusLocked(StatusDisconnected)
		return
	}
	delay := backoff(c.opts.BackoffBase, c.opts.BackoffMax, c.attempts)
	c.attempts++
	gen := c.gen
	c.stopReconnectTimerLocked()
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.retry(gen)
	})
	slog.Debug("reconnect scheduled", "attempt", c.attempts, "delay", delay)
}

// retry runs in the reconnect timer goroutine: refresh the token if a
// refresher is configured, then redial.
func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.shouldReconnect || c.connecting || c.conn != nil {
		c.mu.Unlock()
		return
	}
	refresher := c.opts.Refresher
	c.mu.Unlock()

	if refresher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		token, err := refresher(ctx)
		cancel()
		switch {
		case err != nil:
			// transient refresh failure: reuse the previous token
			slog.Warn("token refresh failed, reusing previous token", "error", err)
		case token == "":
			// session truly expired
			slog.Error("session expired, stopping reconnection")
			c.mu.Lock()
			if gen == c.gen {
				c.shouldReconnect = false
				c.setStatusLocked(StatusDisconnected)
			}
			c.mu.Unlock()
			return
		default:
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.token = token
			c.hasToken = true
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	if gen != c.gen || !c.shouldReconnect || c.connecting || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	c.dial(gen)
}

// --- heartbeat ---

// heartbeat pings the coordinator every PingInterval. Each ping arms a
// pong deadline; if it expires the peer is dead and the channel is
// force-closed, which hands control to the reconnect path. A pong
// cancels the pending deadline.
func (c *Client) heartbeat(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if gen != c.gen || !c.authed {
			c.mu.Unlock()
			return
		}
		c.stopPongTimerLocked()
		c.pongTimer = time.AfterFunc(c.opts.PongTimeout, func() {
			c.pongExpired(gen)
		})
		c.mu.Unlock()

		data, _ := protocol.Encode(protocol.NewPing(time.Now().UnixMilli()))
		c.writeRaw(conn, data)
	}
}

func (c *Client) pongExpired(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	slog.Warn("pong timeout, closing dead channel")
	conn.Close() // read loop observes the close and reconnects
}

// --- plumbing ---

func (c *Client) writeRaw(conn *websocket.Conn, data []byte) {
	if err := c.limiter.wait(context.Background()); err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("write failed", "error", err)
	}
}

// setStatusLocked updates the status and notifies subscribers once per
// actual change. Must be called with c.mu held.
func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.hub.emitStatus(s)
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) stopPongTimerLocked() {
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
}

// backoff computes min(base * 2^attempt, max).
func backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return max
	}
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}
