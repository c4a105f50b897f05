package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickship/tickship/internal/kipc"
	"github.com/tickship/tickship/internal/metrics"
	"github.com/tickship/tickship/internal/ports"
	"github.com/tickship/tickship/pkg/log"
)

// DefaultRetryInterval is the fixed pause between reconnect attempts.
// Tickerplant downtime is operationally rare and bounded (restart cycles), so
// a fixed interval is simpler than backoff and responsive enough.
const DefaultRetryInterval = 60 * time.Second

// ConnState is the reconnecting client's connection state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// String returns a human-readable representation of the state.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ClientConfig configures the reconnecting client.
type ClientConfig struct {
	// RetryInterval between reconnect attempts. Zero selects
	// DefaultRetryInterval.
	RetryInterval time.Duration

	// Startup builds the synthetic event published first on every
	// successful connect. Optional.
	Startup func() kipc.Value
}

// Client wraps a single tickerplant connection with reconnect handling. It
// favors bounded memory and freshness over durability: while a retry timer
// is pending, events are dropped with a logged warning, never queued, and an
// event whose send fails is not replayed. All state is serialized through
// one mutex so concurrent callers can never interleave frames on the socket.
type Client struct {
	dial   ports.TickDialer
	cfg    ClientConfig
	logger log.Logger

	mu           sync.Mutex
	state        ConnState
	conn         ports.TickConn
	retryPending bool
	retryTimer   *time.Timer
	connected    bool // ever connected, distinguishes reconnects

	// closing is set outside mu so shutdown can abort an in-flight send
	// by closing the socket out of band.
	closing atomic.Bool
	live    atomic.Pointer[connHolder]
}

type connHolder struct {
	conn ports.TickConn
}

// NewClient creates a client in the Disconnected state. No connection is
// attempted until the first Publish.
func NewClient(dial ports.TickDialer, cfg ClientConfig, logger log.Logger) *Client {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Client{
		dial:   dial,
		cfg:    cfg,
		logger: logger,
		state:  Disconnected,
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Publish delivers one call value, fire-and-forget. When disconnected it
// connects inline unless a retry timer is pending, in which case the event
// is dropped. Errors never propagate: every failure becomes a state
// transition and a logged diagnostic.
func (c *Client) Publish(v kipc.Value) {
	if c.closing.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		if c.retryPending {
			c.logger.Warn("tickerplant unreachable, dropping event",
				log.Duration("retry_interval", c.cfg.RetryInterval),
			)
			metrics.EventsDropped.WithLabelValues(metrics.ReasonRetryPending).Inc()
			return
		}
		if !c.connectLocked() {
			metrics.EventsDropped.WithLabelValues(metrics.ReasonConnectFailed).Inc()
			return
		}
	}
	c.sendLocked(v)
}

// Close tears the client down: the retry timer is cancelled, any in-flight
// socket operation is aborted by closing the socket, and errors raised
// during shutdown are discarded silently.
func (c *Client) Close() {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	if h := c.live.Load(); h != nil {
		_ = h.conn.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.retryPending = false
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = Disconnected
}

// connectLocked dials and hands the startup event to the fresh connection.
// On failure the state returns to Disconnected and the retry timer is armed.
func (c *Client) connectLocked() bool {
	c.state = Connecting
	metrics.ConnectAttempts.Inc()
	conn, err := c.dial()
	if err != nil {
		if !c.closing.Load() {
			c.logger.Error("tickerplant connect failed",
				log.Err(err),
				log.Duration("retry_interval", c.cfg.RetryInterval),
			)
		}
		c.state = Disconnected
		c.armRetryLocked()
		return false
	}

	c.conn = conn
	c.live.Store(&connHolder{conn: conn})
	c.state = Connected
	if c.connected {
		metrics.Reconnects.Inc()
		c.logger.Info("reconnected to tickerplant")
	} else {
		c.connected = true
		c.logger.Info("connected to tickerplant")
	}

	if c.cfg.Startup != nil {
		if !c.sendLocked(c.cfg.Startup()) {
			return false
		}
	}
	return true
}

// sendLocked writes one async message. On failure the handle is discarded,
// the state moves to Disconnected, and the retry timer is armed; the event
// is not retried.
func (c *Client) sendLocked(v kipc.Value) bool {
	err := c.conn.SendAsync(v)
	if err == nil {
		metrics.EventsPublished.Inc()
		return true
	}

	if !c.closing.Load() {
		metrics.SendErrors.Inc()
		metrics.EventsDropped.WithLabelValues(metrics.ReasonSendFailed).Inc()
		c.logger.Error("tickerplant send failed, scheduling reconnect",
			log.Err(err),
			log.Duration("retry_interval", c.cfg.RetryInterval),
		)
	}
	_ = c.conn.Close()
	c.conn = nil
	c.live.Store(nil)
	c.state = Disconnected
	c.armRetryLocked()
	return false
}

func (c *Client) armRetryLocked() {
	if c.closing.Load() || c.retryPending {
		return
	}
	c.retryPending = true
	c.retryTimer = time.AfterFunc(c.cfg.RetryInterval, c.retry)
}

// retry fires on the timer: it clears the pending flag and attempts a fresh
// connect. The shared mutex guarantees it never overlaps an in-progress
// connect or send.
func (c *Client) retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing.Load() {
		return
	}
	c.retryPending = false
	c.retryTimer = nil
	if c.state == Disconnected {
		c.connectLocked()
	}
}
