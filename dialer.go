package ws

import (
	"context"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/httphead"
	"github.com/gobwas/pool/pbufio"
	"github.com/pkg/errors"
)

// Constants used by Dialer.
const (
	DefaultClientWriteBufferSize = 512
)

// Errors used by the websocket client.
var (
	ErrHandshakeBadStatusProtocol = protocolError("response http version is not 1.1")
	ErrHandshakeBadSecAccept      = protocolError("missing or bad \"Sec-WebSocket-Accept\" header")
	ErrHandshakeBadSubProtocol    = protocolError("unexpected protocol in \"Sec-WebSocket-Protocol\" header")
	ErrHandshakeBadExtensions     = protocolError("unexpected extensions in \"Sec-WebSocket-Extensions\" header")
	ErrMalformedResponse          = protocolError("malformed http response")
	ErrSchemeUnsupported          = protocolError("unsupported url scheme")
)

// StatusError contains an unexpected status-line code from the server.
type StatusError int

func (s StatusError) Error() string {
	return "ws: unexpected HTTP response status: " + strconv.Itoa(int(s))
}

// Dialer contains options for the client side of the handshake.
type Dialer struct {
	// Host is the value of "Host" request header.
	// Dial() sets it from the url.
	Host string

	// URI is the request target. If empty, "/" is used.
	URI string

	// Protocols is the list of subprotocols that the client wants to speak,
	// ordered by preference.
	Protocols []string

	// Header is written into the request after the required headers.
	Header HeaderWriter

	// OnHeader is the callback that will be called for every response header
	// that is not used during WebSocket handshake procedure. Returned error
	// aborts the handshake.
	OnHeader func(key, value []byte) error

	// Timeout is the maximum amount of time a Dial() will wait for a connect
	// and an handshake to complete.
	//
	// The default is no timeout.
	Timeout time.Duration

	// NetDial is the function that is used to get plain tcp connection.
	// If it is not nil, then it is used instead of net.Dialer.
	NetDial func(ctx context.Context, network, addr string) (net.Conn, error)

	// MaxHeadSize limits size of response head.
	// If zero, DefaultMaxHeadSize is used.
	MaxHeadSize int
}

// handshake writes upgrade request into w and reads the response head from
// br. Frames sent by the server right after the response stay in br.
func (d Dialer) handshake(br *Buffer, w io.Writer) (hs Handshake, err error) {
	const (
		headerSeenUpgrade = 1 << iota
		headerSeenConnection
		headerSeenSecAccept

		headerSeenAll = 0 |
			headerSeenUpgrade |
			headerSeenConnection |
			headerSeenSecAccept
	)

	uri := d.URI
	if uri == "" {
		uri = "/"
	}
	hs.URI = uri
	nonce := newNonce()

	bw := pbufio.GetWriter(w, DefaultClientWriteBufferSize)
	defer pbufio.PutWriter(bw)

	httpWriteUpgradeRequest(bw, d.Host, uri, nonce, d.Protocols, d.Header)
	if err = bw.Flush(); err != nil {
		return hs, &TransportError{Err: errors.Wrap(err, "write")}
	}

	head, err := br.ReadHead(d.MaxHeadSize)
	if err != nil {
		return hs, err
	}

	// Read HTTP status line like "HTTP/1.1 101 Switching Protocols".
	sl, rest := headLine(head)
	resp, ok := httphead.ParseResponseLine(sl)
	if !ok {
		return hs, ErrMalformedResponse
	}
	// Even if RFC says "1.1 or higher" without mentioning the part of the
	// version, we apply it only to minor part.
	if resp.Version.Major != 1 || resp.Version.Minor < 1 {
		return hs, ErrHandshakeBadStatusProtocol
	}
	if resp.Status != 101 {
		return hs, StatusError(resp.Status)
	}

	var headerSeen byte
	valid := scanHeaders(rest, func(k, v []byte) {
		if err != nil {
			return
		}
		switch {
		case headerIs(k, headerUpgrade):
			headerSeen |= headerSeenUpgrade
			if !hasToken(v, specHeaderValueUpgrade) {
				err = ErrHandshakeBadUpgrade
			}

		case headerIs(k, headerConnection):
			headerSeen |= headerSeenConnection
			if !hasToken(v, tokenUpgradeLower) {
				err = ErrHandshakeBadConnection
			}

		case headerIs(k, headerSecAccept):
			headerSeen |= headerSeenSecAccept
			if !checkAccept(v, nonce) {
				err = ErrHandshakeBadSecAccept
			}

		case headerIs(k, headerSecProtocol):
			// RFC6455 1.3:
			//   "The server selects one or none of the acceptable protocols
			//   and echoes that value in its handshake to indicate that it has
			//   selected that protocol."
			for _, want := range d.Protocols {
				if string(v) == want {
					hs.Protocol = want
					break
				}
			}
			if hs.Protocol == "" {
				err = ErrHandshakeBadSubProtocol
			}

		case headerIs(k, headerSecExtensions):
			// None were requested.
			if len(v) > 0 {
				err = ErrHandshakeBadExtensions
			}

		default:
			if onHeader := d.OnHeader; onHeader != nil {
				err = onHeader(k, v)
			}
		}
	})
	if err != nil {
		return hs, err
	}
	if !valid {
		return hs, ErrMalformedResponse
	}
	if headerSeen != headerSeenAll {
		switch {
		case headerSeen&headerSeenUpgrade == 0:
			err = ErrHandshakeBadUpgrade
		case headerSeen&headerSeenConnection == 0:
			err = ErrHandshakeBadConnection
		default:
			err = ErrHandshakeBadSecAccept
		}
	}
	return hs, err
}

// Dial connects to the url host and upgrades connection to WebSocket.
// Only "ws" scheme is supported.
func Dial(ctx context.Context, urlstr string, c Config) (*Conn, Handshake, error) {
	u, err := url.ParseRequestURI(urlstr)
	if err != nil {
		return nil, Handshake{}, err
	}
	if u.Scheme != "ws" {
		return nil, Handshake{}, ErrSchemeUnsupported
	}
	d := &c.Dialer
	if t := d.Timeout; t != 0 {
		deadline := time.Now().Add(t)
		if dl, ok := ctx.Deadline(); !ok || deadline.Before(dl) {
			subctx, cancel := context.WithDeadline(ctx, deadline)
			defer cancel()
			ctx = subctx
		}
	}

	dial := d.NetDial
	if dial == nil {
		var nd net.Dialer
		dial = nd.DialContext
	}
	conn, err := dial(ctx, "tcp", hostport(u.Host, ":80"))
	if err != nil {
		return nil, Handshake{}, err
	}

	d.Host = u.Host
	d.URI = u.RequestURI()

	ws := Client(conn, c)
	hs, err := ws.Handshake(ctx)
	if err != nil {
		return nil, hs, err
	}
	return ws, hs, nil
}

func hostport(host string, defaultPort string) string {
	var (
		colon   = strings.LastIndexByte(host, ':')
		bracket = strings.IndexByte(host, ']')
	)
	if colon > bracket {
		return host
	}
	return host + defaultPort
}
