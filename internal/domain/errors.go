package domain

import "errors"

// Protocol and lifecycle errors. These are returned by the public API and can
// be checked with errors.Is; call sites wrap them with fmt.Errorf and %w to
// carry the underlying cause.
var (
	// ErrConnectFailed is returned when the TCP connection to the
	// tickerplant cannot be established.
	ErrConnectFailed = errors.New("tickship: connect failed")

	// ErrHandshakeRejected is returned when the server closes the socket
	// before replying to the credential/capability exchange. This is how a
	// tickerplant signals authentication or capability mismatch.
	ErrHandshakeRejected = errors.New("tickship: handshake rejected")

	// ErrSendFailed is returned when writing a message to the socket fails.
	// The connection handle is dead after this error.
	ErrSendFailed = errors.New("tickship: send failed")

	// ErrReceiveFailed is returned when reading a response fails.
	ErrReceiveFailed = errors.New("tickship: receive failed")

	// ErrMalformedValue is returned when a payload cannot be decoded:
	// truncated data, an unrecognized type tag, or a dictionary whose key
	// and value lists differ in length.
	ErrMalformedValue = errors.New("tickship: malformed value")

	// ErrIncompleteFrame is returned when fewer bytes are available than a
	// frame header declares. The caller should read more data.
	ErrIncompleteFrame = errors.New("tickship: incomplete frame")

	// ErrFrameTooLarge is returned when a frame header declares a length
	// beyond the configured maximum. The caller must abort the connection.
	ErrFrameTooLarge = errors.New("tickship: frame too large")

	// ErrRemote is returned when the server answers a sync request with an
	// error response instead of a result.
	ErrRemote = errors.New("tickship: remote error")

	// ErrConnClosed is returned when an operation is attempted on a handle
	// that has already been closed or marked dead.
	ErrConnClosed = errors.New("tickship: connection closed")

	// ErrAlreadyRunning is returned when Start() is called on a running bridge.
	ErrAlreadyRunning = errors.New("tickship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped bridge.
	ErrNotRunning = errors.New("tickship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("tickship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("tickship: invalid configuration")
)
