package kipc

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/tickship/tickship/internal/domain"
)

// maxCapability is the highest protocol capability level this client
// proposes. Level 3 covers everything the publisher emits; the server may
// negotiate down and the connection commits to the lower of the two.
const maxCapability = 3

// Config holds the settings for one tickerplant connection.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	// DialTimeout bounds the TCP connect only. Zero means no timeout;
	// reads and writes are never bounded.
	DialTimeout time.Duration

	// MaxFrameBytes bounds inbound frames. Zero selects
	// DefaultMaxFrameBytes.
	MaxFrameBytes uint32

	// Compress enables IPC compression for outbound messages above the
	// threshold when the peer is not on the loopback interface.
	Compress bool
}

// Conn owns exactly one socket and the capability negotiated for its
// lifetime. It is created by Dial, destroyed on any I/O error, and must not
// be shared across concurrent callers: at most one in-flight send at a time.
type Conn struct {
	sock       net.Conn
	capability byte
	maxFrame   uint32
	zip        bool
	loopback   bool
	dead       bool
	closed     bool
}

// Dial connects to the tickerplant and performs the one-time handshake: the
// credential string, the proposed capability byte, and a null terminator,
// answered by a single capability byte. A server that closes the socket
// before replying rejects the handshake; historically this is how a
// tickerplant signals bad credentials or capability mismatch.
func Dial(cfg Config) (*Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	d := net.Dialer{Timeout: cfg.DialTimeout}
	sock, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrConnectFailed, addr, err)
	}
	if tc, ok := sock.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
	}
	return handshake(sock, cfg)
}

// handshake completes the capability exchange on an established socket.
func handshake(sock net.Conn, cfg Config) (*Conn, error) {
	creds := cfg.User
	if cfg.Password != "" {
		creds = cfg.User + ":" + cfg.Password
	}
	hello := append([]byte(creds), maxCapability, 0)
	if _, err := sock.Write(hello); err != nil {
		sock.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrHandshakeRejected, err)
	}
	reply := make([]byte, 1)
	if _, err := io.ReadFull(sock, reply); err != nil {
		sock.Close()
		return nil, fmt.Errorf("%w: server closed before capability reply: %v",
			domain.ErrHandshakeRejected, err)
	}
	capability := reply[0]
	if capability > maxCapability {
		capability = maxCapability
	}

	maxFrame := cfg.MaxFrameBytes
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Conn{
		sock:       sock,
		capability: capability,
		maxFrame:   maxFrame,
		zip:        cfg.Compress,
		loopback:   isLoopback(sock),
	}, nil
}

func isLoopback(sock net.Conn) bool {
	if addr, ok := sock.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.IsLoopback()
	}
	return false
}

// Capability returns the negotiated capability byte.
func (c *Conn) Capability() byte { return c.capability }

// SendAsync encodes, frames, and writes a fire-and-forget message. The
// publish path uses this exclusively so the event pipeline never blocks on a
// server round-trip.
func (c *Conn) SendAsync(v Value) error {
	_, err := c.Send(v, MsgAsync)
	return err
}

// SendSync writes a request and blocks for the server's response value.
func (c *Conn) SendSync(v Value) (Value, error) {
	return c.Send(v, MsgSync)
}

// Send transmits one message of the given kind. On any write error the
// handle is dead and the error wraps domain.ErrSendFailed. For MsgSync only,
// Send reads one framed response and decodes it; async messages arriving
// while waiting are discarded.
func (c *Conn) Send(v Value, kind MsgKind) (Value, error) {
	if c.dead || c.closed {
		return nil, domain.ErrConnClosed
	}

	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	msg := Frame(payload, kind)
	if c.zip && !c.loopback {
		if zipped, ok := compressMessage(msg); ok {
			msg = zipped
		}
	}

	for off := 0; off < len(msg); {
		n, werr := c.sock.Write(msg[off:])
		if werr != nil {
			c.dead = true
			c.sock.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrSendFailed, werr)
		}
		off += n
	}

	if kind != MsgSync {
		return nil, nil
	}
	for {
		k, resp, err := c.readMessage()
		if err != nil {
			return nil, err
		}
		if k == MsgResponse {
			return resp, nil
		}
	}
}

// readMessage reads one framed message from the socket and decodes its
// payload. Decode failures are fatal to the request, not to the connection;
// I/O and frame-size failures kill the handle.
func (c *Conn) readMessage() (MsgKind, Value, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(c.sock, header); err != nil {
		c.dead = true
		c.sock.Close()
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrReceiveFailed, err)
	}
	h, err := ParseHeader(header, c.maxFrame)
	if err != nil {
		c.dead = true
		c.sock.Close()
		return 0, nil, err
	}
	body := make([]byte, h.PayloadLen())
	if _, err := io.ReadFull(c.sock, body); err != nil {
		c.dead = true
		c.sock.Close()
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrReceiveFailed, err)
	}
	if h.Compressed {
		body, err = uncompressBody(body, h.LittleEndian)
		if err != nil {
			return 0, nil, err
		}
	}
	v, _, err := Decode(body, h.LittleEndian)
	if err != nil {
		return 0, nil, err
	}
	return h.Kind, v, nil
}

// Close releases the socket. Safe to call repeatedly and on a dead handle.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
