package ws

import (
	"bufio"
	"io"
	"net/http"

	"github.com/gobwas/httphead"
	"github.com/gobwas/pool/pbufio"
	"github.com/pkg/errors"
)

// Errors used by the server side handshake.
var (
	ErrHandshakeMissingKey    = protocolError("missing key")
	ErrHandshakeBadSecKey     = protocolError("bad \"Sec-WebSocket-Key\" header")
	ErrHandshakeBadMethod     = protocolError("request method is not GET")
	ErrHandshakeBadProtocol   = protocolError("http version is lower than 1.1")
	ErrHandshakeBadHost       = protocolError("missing \"Host\" header")
	ErrHandshakeBadUpgrade    = protocolError("missing or bad \"Upgrade\" header")
	ErrHandshakeBadConnection = protocolError("missing or bad \"Connection\" header")
	ErrHandshakeBadSecVersion = protocolError("missing or bad \"Sec-WebSocket-Version\" header")
	ErrHandshakeHeadTooLarge  = protocolError("http head size limit exceeded")
	ErrMalformedRequest       = protocolError("malformed http request")
)

// Handshake represents handshake result.
type Handshake struct {
	// Protocol is the subprotocol selected during handshake.
	Protocol string

	// URI is the request target received by server or sent by client.
	URI string
}

// Upgrader contains options for the server side of the handshake.
// Zero value accepts any request that carries "Sec-WebSocket-Key".
type Upgrader struct {
	// Strict enables RFC6455 section 4.2.1 checks of the request: method,
	// http version, "Host", "Upgrade", "Connection", "Sec-WebSocket-Version"
	// headers and the key length.
	Strict bool

	// Protocol is the select function that is used to select subprotocol
	// from list requested by client. If this field is set, then the first
	// matched protocol is sent to a client as negotiated.
	Protocol func(string) bool

	// OnHeader is a callback that will be called for every header that is
	// not used during WebSocket handshake procedure.
	//
	// Returned error aborts the handshake with 400 status.
	OnHeader func(key, value []byte) error

	// Header is written into the successful response after the required
	// headers.
	Header HeaderWriter

	// MaxHeadSize limits size of request head.
	// If zero, DefaultMaxHeadSize is used.
	MaxHeadSize int
}

// handshake reads request head from br and writes response into w.
func (u Upgrader) handshake(br *Buffer, w io.Writer) (hs Handshake, err error) {
	// headerSeen constants helps to report whether or not some header was
	// seen during reading request bytes.
	const (
		headerSeenHost = 1 << iota
		headerSeenUpgrade
		headerSeenConnection
		headerSeenSecVersion
		headerSeenSecKey

		headerSeenAll = 0 |
			headerSeenHost |
			headerSeenUpgrade |
			headerSeenConnection |
			headerSeenSecVersion |
			headerSeenSecKey
	)

	head, err := br.ReadHead(u.MaxHeadSize)
	if err != nil {
		return hs, err
	}

	bw := pbufio.GetWriter(w, 512)
	defer pbufio.PutWriter(bw)

	var (
		// Use BadRequest as default error status code.
		code = http.StatusBadRequest
		errh HeaderWriter
	)
	fail := func(e error) (Handshake, error) {
		httpWriteResponseError(bw, e, code, errh)
		bw.Flush()
		return hs, e
	}

	rl, rest := headLine(head)
	req, ok := httphead.ParseRequestLine(rl)
	hs.URI = string(req.URI)
	if u.Strict {
		switch {
		case !ok:
			return fail(ErrMalformedRequest)
		case string(req.Method) != http.MethodGet:
			return fail(ErrHandshakeBadMethod)
		case req.Version.Major < 1 || (req.Version.Major == 1 && req.Version.Minor < 1):
			return fail(ErrHandshakeBadProtocol)
		}
	}

	var (
		headerSeen byte
		nonce      []byte
	)
	valid := scanHeaders(rest, func(k, v []byte) {
		switch {
		case headerIs(k, headerSecKey):
			if len(v) == 0 {
				break
			}
			headerSeen |= headerSeenSecKey
			nonce = v
			if err == nil && u.Strict && len(v) != nonceSize {
				err = ErrHandshakeBadSecKey
			}

		case headerIs(k, headerHost):
			headerSeen |= headerSeenHost
			if err == nil && u.Strict && len(v) == 0 {
				err = ErrHandshakeBadHost
			}

		case headerIs(k, headerUpgrade):
			headerSeen |= headerSeenUpgrade
			if err == nil && u.Strict && !hasToken(v, specHeaderValueUpgrade) {
				err = ErrHandshakeBadUpgrade
			}

		case headerIs(k, headerConnection):
			headerSeen |= headerSeenConnection
			if err == nil && u.Strict && !hasToken(v, tokenUpgradeLower) {
				err = ErrHandshakeBadConnection
			}

		case headerIs(k, headerSecVersion):
			headerSeen |= headerSeenSecVersion
			if err == nil && u.Strict && string(v) != string(specHeaderValueSecVersion) {
				err = ErrHandshakeBadSecVersion
				code = http.StatusUpgradeRequired
				errh = headerWriterSecVersion
			}

		case headerIs(k, headerSecProtocol):
			if check := u.Protocol; err == nil && check != nil && hs.Protocol == "" {
				p, ok := selectProtocol(v, check)
				if !ok {
					err = ErrMalformedRequest
				}
				hs.Protocol = p
			}

		case headerIs(k, headerSecExtensions):
			// No extensions are supported; the header is ignored so the
			// client falls back to plain frames.

		default:
			if onHeader := u.OnHeader; err == nil && onHeader != nil {
				err = onHeader(k, v)
			}
		}
	})
	if err == nil && !valid && u.Strict {
		err = ErrMalformedRequest
	}
	if err == nil && headerSeen&headerSeenSecKey == 0 {
		err = ErrHandshakeMissingKey
	}
	if err == nil && u.Strict && headerSeen != headerSeenAll {
		switch {
		case headerSeen&headerSeenHost == 0:
			err = ErrHandshakeBadHost
		case headerSeen&headerSeenUpgrade == 0:
			err = ErrHandshakeBadUpgrade
		case headerSeen&headerSeenConnection == 0:
			err = ErrHandshakeBadConnection
		case headerSeen&headerSeenSecVersion == 0:
			err = ErrHandshakeBadSecVersion
			code = http.StatusUpgradeRequired
			errh = headerWriterSecVersion
		}
	}
	if err != nil {
		return fail(err)
	}

	var accept [acceptSize]byte
	putAccept(accept[:], nonce)
	httpWriteUpgrade(bw, accept[:], hs.Protocol, u.Header)
	if err = bw.Flush(); err != nil {
		return hs, &TransportError{Err: errors.Wrap(err, "write")}
	}

	return hs, nil
}

func headerWriterSecVersion(bw *bufio.Writer) {
	httpWriteHeader(bw, headerSecVersion, string(specHeaderValueSecVersion))
}

// SelectFromSlice creates accept function that could be used as
// Protocol select function for Upgrader.
func SelectFromSlice(accept []string) func(string) bool {
	if len(accept) > 16 {
		mp := make(map[string]struct{}, len(accept))
		for _, p := range accept {
			mp[p] = struct{}{}
		}
		return func(p string) bool {
			_, ok := mp[p]
			return ok
		}
	}
	return func(p string) bool {
		for _, ok := range accept {
			if p == ok {
				return true
			}
		}
		return false
	}
}
