package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

const upgradeRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: server.example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

const upgradeResponse = "HTTP/1.1 101 Switching Protocols\r\n" +
	"Connection: Upgrade\r\n" +
	"Upgrade: websocket\r\n" +
	"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n" +
	"\r\n"

func TestUpgrade(t *testing.T) {
	for _, test := range []struct {
		name     string
		upgrader Upgrader
		request  string
		hs       Handshake
		response string
		err      error
	}{
		{
			name:     "lenient",
			request:  upgradeRequest,
			hs:       Handshake{URI: "/chat"},
			response: upgradeResponse,
		},
		{
			name:     "strict",
			upgrader: Upgrader{Strict: true},
			request:  upgradeRequest,
			hs:       Handshake{URI: "/chat"},
			response: upgradeResponse,
		},
		{
			name:     "lenient-key-only",
			request:  "GET / HTTP/1.0\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n",
			hs:       Handshake{URI: "/"},
			response: upgradeResponse,
		},
		{
			name:     "missing-key",
			request:  "GET /chat HTTP/1.1\r\nHost: server.example.com\r\n\r\n",
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeMissingKey,
		},
		{
			name:     "empty-key",
			request:  "GET /chat HTTP/1.1\r\nSec-WebSocket-Key: \r\n\r\n",
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeMissingKey,
		},
		{
			name:     "strict-bad-method",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "GET", "POST", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeBadMethod,
		},
		{
			name:     "strict-bad-protocol",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "HTTP/1.1", "HTTP/1.0", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeBadProtocol,
		},
		{
			name:     "strict-no-host",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "Host: server.example.com\r\n", "", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeBadHost,
		},
		{
			name:     "strict-bad-upgrade",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "Upgrade: websocket", "Upgrade: h2c", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeBadUpgrade,
		},
		{
			name:     "strict-bad-connection",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "Connection: Upgrade", "Connection: close", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeBadConnection,
		},
		{
			name:     "strict-bad-key",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "dGhlIHNhbXBsZSBub25jZQ==", "short", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      ErrHandshakeBadSecKey,
		},
		{
			name:     "strict-bad-version",
			upgrader: Upgrader{Strict: true},
			request:  strings.Replace(upgradeRequest, "Version: 13", "Version: 8", 1),
			response: "HTTP/1.1 426 Upgrade Required\r\n",
			err:      ErrHandshakeBadSecVersion,
		},
		{
			name:     "on-header-error",
			upgrader: Upgrader{OnHeader: rejectHeader("X-Forbidden")},
			request:  strings.Replace(upgradeRequest, "\r\n\r\n", "\r\nX-Forbidden: 1\r\n\r\n", 1),
			response: "HTTP/1.1 400 Bad Request\r\n",
			err:      errForbidden,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			rw := &stubConn{r: bytes.NewReader([]byte(test.request))}
			conn := Server(rw, Config{Upgrader: test.upgrader})

			hs, err := conn.Handshake(context.Background())
			if err != test.err {
				t.Fatalf("Handshake() error = %v; want %v", err, test.err)
			}
			if test.err == nil && hs != test.hs {
				t.Errorf("Handshake() = %+v; want %+v", hs, test.hs)
			}
			act := rw.w.String()
			if test.err == nil && act != test.response {
				t.Errorf("response =\n%q\nwant\n%q", act, test.response)
			}
			if test.err != nil && !strings.HasPrefix(act, test.response) {
				t.Errorf("response =\n%q\nwant prefix\n%q", act, test.response)
			}

			expState := StateOpen
			if test.err != nil {
				expState = StateClosed
			}
			if s := conn.State(); s != expState {
				t.Errorf("State() = %s; want %s", s, expState)
			}
			if rw.closed != (test.err != nil) {
				t.Errorf("transport closed = %t; want %t", rw.closed, test.err != nil)
			}
		})
	}
}

var errForbidden = errors.New("forbidden header")

func rejectHeader(name string) func(k, v []byte) error {
	return func(k, v []byte) error {
		if string(k) == name {
			return errForbidden
		}
		return nil
	}
}

func TestUpgradeMissingKeyIsProtocolError(t *testing.T) {
	rw := &stubConn{r: strings.NewReader("GET / HTTP/1.1\r\n\r\n")}
	_, err := Server(rw, Config{}).Handshake(context.Background())

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Handshake() error = %v; want *ProtocolError", err)
	}
	if pe.Reason != "missing key" {
		t.Fatalf("Reason = %q; want %q", pe.Reason, "missing key")
	}
}

func TestUpgradeVersionHeader(t *testing.T) {
	rw := &stubConn{r: strings.NewReader(strings.Replace(upgradeRequest, "Version: 13", "Version: 8", 1))}
	Server(rw, Config{Upgrader: Upgrader{Strict: true}}).Handshake(context.Background())
	if !strings.Contains(rw.w.String(), "\r\nSec-WebSocket-Version: 13\r\n") {
		t.Fatalf("426 response has no version header:\n%s", rw.w.String())
	}
}

func TestUpgradeProtocol(t *testing.T) {
	req := strings.Replace(upgradeRequest, "\r\n\r\n", "\r\nSec-WebSocket-Protocol: superchat, chat\r\n\r\n", 1)
	rw := &stubConn{r: strings.NewReader(req)}
	conn := Server(rw, Config{Upgrader: Upgrader{
		Protocol: SelectFromSlice([]string{"chat"}),
	}})
	hs, err := conn.Handshake(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if hs.Protocol != "chat" {
		t.Fatalf("Protocol = %q; want %q", hs.Protocol, "chat")
	}
	if !strings.Contains(rw.w.String(), "\r\nSec-WebSocket-Protocol: chat\r\n") {
		t.Fatalf("response has no protocol header:\n%s", rw.w.String())
	}
}

func TestUpgradeSplitRequest(t *testing.T) {
	rw := &stubConn{r: iotest.OneByteReader(strings.NewReader(upgradeRequest))}
	if _, err := Server(rw, Config{}).Handshake(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rw.w.String() != upgradeResponse {
		t.Fatalf("unexpected response:\n%q", rw.w.String())
	}
}

func TestUpgradePipelinedFrame(t *testing.T) {
	frame := MustCompileFrame(MaskFrameWith(NewTextFrame("early"), [4]byte{1, 2, 3, 4}))
	rw := &stubConn{r: bytes.NewReader(cat([]byte(upgradeRequest), frame))}
	conn := Server(rw, Config{})
	if _, err := conn.Handshake(context.Background()); err != nil {
		t.Fatal(err)
	}
	m, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if m.OpCode != OpText || m.Text() != "early" {
		t.Fatalf("ReadMessage() = %v %q", m.OpCode, m.Payload)
	}
}

func TestUpgradeHeadTooLarge(t *testing.T) {
	req := strings.Replace(upgradeRequest, "\r\n\r\n", "\r\nX-Big: "+strings.Repeat("x", 200)+"\r\n\r\n", 1)
	rw := &stubConn{r: strings.NewReader(req)}
	conn := Server(rw, Config{Upgrader: Upgrader{MaxHeadSize: 128}})
	if _, err := conn.Handshake(context.Background()); err != ErrHandshakeHeadTooLarge {
		t.Fatalf("Handshake() error = %v; want %v", err, ErrHandshakeHeadTooLarge)
	}
	if conn.State() != StateClosed {
		t.Fatalf("State() = %s; want closed", conn.State())
	}
}

// brokenWriteConn reads from Reader and fails every write.
type brokenWriteConn struct {
	io.Reader
}

func (brokenWriteConn) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func checkWriteError(t *testing.T, err error) {
	t.Helper()
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v; want *TransportError", err)
	}
	if !errors.Is(err, io.ErrClosedPipe) || !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("error %v does not match io.ErrClosedPipe and ErrConnectionClosed", err)
	}
	if !strings.Contains(err.Error(), "write: ") {
		t.Fatalf("error %q has no write context", err)
	}
}

func TestUpgradeWriteError(t *testing.T) {
	conn := Server(brokenWriteConn{strings.NewReader(upgradeRequest)}, Config{})
	_, err := conn.Handshake(context.Background())
	checkWriteError(t, err)
	if conn.State() != StateClosed {
		t.Fatalf("State() = %s; want closed", conn.State())
	}
}

func TestHandshakeTwice(t *testing.T) {
	rw := &stubConn{r: strings.NewReader(upgradeRequest)}
	conn := Server(rw, Config{})
	if _, err := conn.Handshake(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Handshake(context.Background()); err != ErrHandshakeDone {
		t.Fatalf("second Handshake() error = %v; want %v", err, ErrHandshakeDone)
	}
}

func TestHandshakeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rw := &stubConn{r: strings.NewReader(upgradeRequest)}
	conn := Server(rw, Config{})
	if _, err := conn.Handshake(ctx); err != context.Canceled {
		t.Fatalf("Handshake() error = %v; want %v", err, context.Canceled)
	}
	if conn.State() != StateClosed {
		t.Fatalf("State() = %s; want closed", conn.State())
	}
}
