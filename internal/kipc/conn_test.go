package kipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/tickship/tickship/internal/domain"
)

// fakeTicker is an in-process tickerplant endpoint. The handler runs once per
// accepted connection on its own goroutine.
func fakeTicker(t *testing.T, handler func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			sock, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(sock)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

// acceptHandshake consumes the client hello and returns the credential string
// and proposed capability. The hello is the credentials, one capability byte,
// and a null terminator.
func acceptHandshake(sock net.Conn) (string, byte, error) {
	var hello []byte
	one := make([]byte, 1)
	for {
		if _, err := sock.Read(one); err != nil {
			return "", 0, err
		}
		if one[0] == 0 {
			break
		}
		hello = append(hello, one[0])
	}
	if len(hello) == 0 {
		return "", 0, io.ErrUnexpectedEOF
	}
	return string(hello[:len(hello)-1]), hello[len(hello)-1], nil
}

// readFrame reads one complete framed message off the socket.
func readFrame(sock net.Conn) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(sock, header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[4:8])
	msg := make([]byte, length)
	copy(msg, header)
	if _, err := io.ReadFull(sock, msg[HeaderSize:]); err != nil {
		return nil, err
	}
	return msg, nil
}

func dialTest(t *testing.T, host string, port int) *Conn {
	t.Helper()
	c, err := Dial(Config{Host: host, Port: port, User: "u", Password: "p", DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDial_Handshake(t *testing.T) {
	helloCh := make(chan string, 1)
	capCh := make(chan byte, 1)
	host, port := fakeTicker(t, func(sock net.Conn) {
		creds, capability, err := acceptHandshake(sock)
		if err != nil {
			return
		}
		helloCh <- creds
		capCh <- capability
		sock.Write([]byte{3})
	})

	c := dialTest(t, host, port)
	if got := <-helloCh; got != "u:p" {
		t.Errorf("credentials = %q, want u:p", got)
	}
	if got := <-capCh; got != 3 {
		t.Errorf("proposed capability = %d, want 3", got)
	}
	if c.Capability() != 3 {
		t.Errorf("Capability() = %d, want 3", c.Capability())
	}
}

func TestDial_CapabilityClamped(t *testing.T) {
	tests := []struct {
		reply byte
		want  byte
	}{
		{5, 3}, // server offers more than we speak
		{1, 1}, // server negotiates down
	}

	for _, tt := range tests {
		reply := tt.reply
		host, port := fakeTicker(t, func(sock net.Conn) {
			if _, _, err := acceptHandshake(sock); err != nil {
				return
			}
			sock.Write([]byte{reply})
		})
		c := dialTest(t, host, port)
		if c.Capability() != tt.want {
			t.Errorf("reply %d: Capability() = %d, want %d", tt.reply, c.Capability(), tt.want)
		}
	}
}

func TestDial_HandshakeRejected(t *testing.T) {
	host, port := fakeTicker(t, func(sock net.Conn) {
		// A tickerplant rejects by closing before the capability reply.
		sock.Close()
	})

	_, err := Dial(Config{Host: host, Port: port, DialTimeout: 2 * time.Second})
	if !errors.Is(err, domain.ErrHandshakeRejected) {
		t.Fatalf("Dial() error = %v, want ErrHandshakeRejected", err)
	}
}

func TestDial_ConnectFailed(t *testing.T) {
	// Grab a free port and release it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial(Config{Host: "127.0.0.1", Port: port, DialTimeout: time.Second})
	if !errors.Is(err, domain.ErrConnectFailed) {
		t.Fatalf("Dial() error = %v, want ErrConnectFailed", err)
	}
}

func TestConn_SendAsync(t *testing.T) {
	frameCh := make(chan []byte, 1)
	host, port := fakeTicker(t, func(sock net.Conn) {
		if _, _, err := acceptHandshake(sock); err != nil {
			return
		}
		sock.Write([]byte{3})
		msg, err := readFrame(sock)
		if err != nil {
			return
		}
		frameCh <- msg
	})

	c := dialTest(t, host, port)
	if err := c.SendAsync(Symbol("upd")); err != nil {
		t.Fatalf("SendAsync() error = %v", err)
	}

	select {
	case msg := <-frameCh:
		payload, _ := Encode(Symbol("upd"))
		want := Frame(payload, MsgAsync)
		if !bytes.Equal(msg, want) {
			t.Errorf("wire bytes = % x, want % x", msg, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestConn_SendSync(t *testing.T) {
	host, port := fakeTicker(t, func(sock net.Conn) {
		if _, _, err := acceptHandshake(sock); err != nil {
			return
		}
		sock.Write([]byte{3})
		if _, err := readFrame(sock); err != nil {
			return
		}
		// An unrelated async message arrives first; the client must skip it
		// and return the response that follows.
		noise, _ := Encode(Symbol("noise"))
		sock.Write(Frame(noise, MsgAsync))
		result, _ := Encode(Long(42))
		sock.Write(Frame(result, MsgResponse))
	})

	c := dialTest(t, host, port)
	got, err := c.SendSync(List{Symbol("count"), Symbol("hass_event")})
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if got != Long(42) {
		t.Errorf("SendSync() = %#v, want Long(42)", got)
	}
}

func TestConn_SendSyncRemoteError(t *testing.T) {
	host, port := fakeTicker(t, func(sock net.Conn) {
		if _, _, err := acceptHandshake(sock); err != nil {
			return
		}
		sock.Write([]byte{3})
		if _, err := readFrame(sock); err != nil {
			return
		}
		sock.Write(Frame([]byte{0x80, 't', 'y', 'p', 'e', 0x00}, MsgResponse))
	})

	c := dialTest(t, host, port)
	_, err := c.SendSync(Symbol("bad"))
	if !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("SendSync() error = %v, want ErrRemote", err)
	}
}

func TestConn_DeadAfterReceiveError(t *testing.T) {
	host, port := fakeTicker(t, func(sock net.Conn) {
		if _, _, err := acceptHandshake(sock); err != nil {
			return
		}
		sock.Write([]byte{3})
		if _, err := readFrame(sock); err != nil {
			return
		}
		// Drop the connection instead of responding.
		sock.Close()
	})

	c := dialTest(t, host, port)
	if _, err := c.SendSync(Symbol("q")); !errors.Is(err, domain.ErrReceiveFailed) {
		t.Fatalf("SendSync() error = %v, want ErrReceiveFailed", err)
	}
	if err := c.SendAsync(Symbol("q")); !errors.Is(err, domain.ErrConnClosed) {
		t.Errorf("send on dead handle: error = %v, want ErrConnClosed", err)
	}
}

func TestConn_Close(t *testing.T) {
	host, port := fakeTicker(t, func(sock net.Conn) {
		if _, _, err := acceptHandshake(sock); err != nil {
			return
		}
		sock.Write([]byte{3})
		io.Copy(io.Discard, sock)
	})

	c := dialTest(t, host, port)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.SendAsync(Symbol("x")); !errors.Is(err, domain.ErrConnClosed) {
		t.Errorf("send after close: error = %v, want ErrConnClosed", err)
	}
}
