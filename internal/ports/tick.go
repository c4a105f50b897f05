package ports

import "github.com/tickship/tickship/internal/kipc"

// TickConn is one live, handshaken connection to the tickerplant. A conn is
// single-writer: at most one in-flight send at any time.
type TickConn interface {
	// SendAsync transmits a fire-and-forget message. On error the handle
	// is dead and must be discarded.
	SendAsync(v kipc.Value) error

	// Close releases the socket; idempotent.
	Close() error
}

// TickDialer opens a fresh connection, performing the protocol handshake.
type TickDialer func() (TickConn, error)
