package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tickship/tickship/internal/domain"
	"github.com/tickship/tickship/internal/kipc"
	"github.com/tickship/tickship/internal/ports"
	"github.com/tickship/tickship/pkg/log"
)

// fakeConn records sent values and can be programmed to fail.
type fakeConn struct {
	mu     sync.Mutex
	sent   []kipc.Value
	fail   bool
	closed bool
}

func (f *fakeConn) SendAsync(v kipc.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.ErrSendFailed
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) Sent() []kipc.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kipc.Value{}, f.sent...)
}

// fakeDialer hands out fakeConns and counts attempts.
type fakeDialer struct {
	mu       sync.Mutex
	attempts int
	failNext bool
	conns    []*fakeConn
}

func (f *fakeDialer) dial() (*fakeConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failNext {
		return nil, domain.ErrConnectFailed
	}
	c := &fakeConn{}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeDialer) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeDialer) Conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeDialer) SetFailNext(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = fail
}

func newTestClient(d *fakeDialer, retry time.Duration) *Client {
	return NewClient(
		func() (ports.TickConn, error) { return d.dial() },
		ClientConfig{
			RetryInterval: retry,
			Startup: func() kipc.Value {
				return kipc.Symbol("startup")
			},
		},
		log.NewNoopLogger(),
	)
}

func TestClient_LazyConnect(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(d, time.Hour)
	defer c.Close()

	if c.State() != Disconnected {
		t.Fatalf("initial state = %v, want Disconnected", c.State())
	}
	if d.Attempts() != 0 {
		t.Fatalf("dialed %d times before first publish", d.Attempts())
	}

	c.Publish(kipc.Symbol("ev1"))

	if c.State() != Connected {
		t.Errorf("state = %v, want Connected", c.State())
	}
	if d.Attempts() != 1 {
		t.Errorf("dialed %d times, want 1", d.Attempts())
	}
	sent := d.Conn(0).Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0] != kipc.Symbol("startup") {
		t.Errorf("first message = %v, want the startup event", sent[0])
	}
	if sent[1] != kipc.Symbol("ev1") {
		t.Errorf("second message = %v, want ev1", sent[1])
	}
}

func TestClient_DropWhileRetryPending(t *testing.T) {
	d := &fakeDialer{failNext: true}
	c := newTestClient(d, time.Hour)
	defer c.Close()

	c.Publish(kipc.Symbol("ev1"))
	if c.State() != Disconnected {
		t.Fatalf("state = %v, want Disconnected", c.State())
	}
	if d.Attempts() != 1 {
		t.Fatalf("dialed %d times, want 1", d.Attempts())
	}

	// While the retry timer is armed, further events are dropped without
	// any dial.
	c.Publish(kipc.Symbol("ev2"))
	c.Publish(kipc.Symbol("ev3"))
	if d.Attempts() != 1 {
		t.Errorf("dialed %d times, want still 1", d.Attempts())
	}
}

func TestClient_RetryReconnects(t *testing.T) {
	d := &fakeDialer{failNext: true}
	c := newTestClient(d, 20*time.Millisecond)
	defer c.Close()

	c.Publish(kipc.Symbol("lost"))
	d.SetFailNext(false)

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != Connected {
		if time.Now().After(deadline) {
			t.Fatal("client never reconnected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The retry connects but does not replay the lost event; only the
	// startup event goes out.
	sent := d.Conn(0).Sent()
	if len(sent) != 1 || sent[0] != kipc.Symbol("startup") {
		t.Errorf("sent after reconnect = %v, want only the startup event", sent)
	}
}

func TestClient_SendFailureSchedulesReconnect(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(d, time.Hour)
	defer c.Close()

	c.Publish(kipc.Symbol("ev1"))
	conn := d.Conn(0)

	conn.mu.Lock()
	conn.fail = true
	conn.mu.Unlock()

	c.Publish(kipc.Symbol("ev2"))
	if c.State() != Disconnected {
		t.Errorf("state = %v, want Disconnected", c.State())
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("failed connection was not closed")
	}

	// The failed event is gone; the pending retry swallows the next one too.
	c.Publish(kipc.Symbol("ev3"))
	if d.Attempts() != 1 {
		t.Errorf("dialed %d times, want 1", d.Attempts())
	}
}

func TestClient_StartupFailureDropsCallerEvent(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(
		func() (ports.TickConn, error) {
			conn, err := d.dial()
			if err != nil {
				return nil, err
			}
			conn.fail = true
			return conn, nil
		},
		ClientConfig{RetryInterval: time.Hour, Startup: func() kipc.Value {
			return kipc.Symbol("startup")
		}},
		log.NewNoopLogger(),
	)
	defer c.Close()

	c.Publish(kipc.Symbol("ev1"))
	if c.State() != Disconnected {
		t.Errorf("state = %v, want Disconnected", c.State())
	}
	if got := d.Conn(0).Sent(); len(got) != 0 {
		t.Errorf("sent = %v, want nothing", got)
	}
}

func TestClient_Close(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(d, time.Hour)

	c.Publish(kipc.Symbol("ev1"))
	c.Close()

	conn := d.Conn(0)
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("Close() did not close the connection")
	}
	if c.State() != Disconnected {
		t.Errorf("state = %v, want Disconnected", c.State())
	}

	// Publishing after Close is a silent no-op.
	c.Publish(kipc.Symbol("ev2"))
	if d.Attempts() != 1 {
		t.Errorf("dialed %d times after close, want 1", d.Attempts())
	}
	c.Close()
}

func TestClient_DefaultRetryInterval(t *testing.T) {
	c := NewClient(func() (ports.TickConn, error) {
		return nil, errors.New("unused")
	}, ClientConfig{}, log.NewNoopLogger())
	defer c.Close()

	if c.cfg.RetryInterval != DefaultRetryInterval {
		t.Errorf("RetryInterval = %v, want %v", c.cfg.RetryInterval, DefaultRetryInterval)
	}
}

func TestConnState_String(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{Disconnected, "Disconnected"},
		{Connecting, "Connecting"},
		{Connected, "Connected"},
		{ConnState(9), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
