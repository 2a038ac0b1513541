package ws

import (
	"bufio"
	"bytes"
	"net/http"
	"strconv"

	"github.com/gobwas/httphead"
)

const (
	headerHost          = "Host"
	headerUpgrade       = "Upgrade"
	headerConnection    = "Connection"
	headerSecVersion    = "Sec-WebSocket-Version"
	headerSecProtocol   = "Sec-WebSocket-Protocol"
	headerSecExtensions = "Sec-WebSocket-Extensions"
	headerSecKey        = "Sec-WebSocket-Key"
	headerSecAccept     = "Sec-WebSocket-Accept"
)

const (
	textErrorContent = "Content-Type: text/plain; charset=utf-8\r\nX-Content-Type-Options: nosniff\r\n"
	textUpgrade      = "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n"
	crlf             = "\r\n"
	colonAndSpace    = ": "
)

var (
	specHeaderValueUpgrade    = []byte("websocket")
	specHeaderValueConnection = []byte("Upgrade")
	specHeaderValueSecVersion = []byte("13")
	tokenUpgradeLower         = []byte("upgrade")
)

// HeaderWriter writes additional response or request headers into bw.
// Each header must be terminated with CRLF.
type HeaderWriter func(bw *bufio.Writer)

// headLine cuts the first line off the head. Both CRLF and bare LF are
// accepted as line terminators.
func headLine(head []byte) (line, rest []byte) {
	i := bytes.IndexByte(head, '\n')
	if i == -1 {
		return head, nil
	}
	line, rest = head[:i], head[i+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, rest
}

// scanHeaders calls fn for every header line of the head, which must start
// right after the start line. It stops on the blank line. It returns false if
// some line is not a valid header line.
func scanHeaders(head []byte, fn func(k, v []byte)) bool {
	ok := true
	for len(head) > 0 {
		var line []byte
		line, head = headLine(head)
		if len(line) == 0 {
			break
		}
		k, v, valid := httphead.ParseHeaderLine(line)
		if !valid {
			ok = false
			continue
		}
		fn(k, v)
	}
	return ok
}

func headerIs(k []byte, name string) bool {
	return string(k) == name || bytes.EqualFold(k, []byte(name))
}

// hasToken reports whether comma separated header value v contains token.
func hasToken(v, token []byte) (has bool) {
	httphead.ScanTokens(v, func(t []byte) bool {
		has = bytes.EqualFold(t, token)
		return !has
	})
	return has
}

// selectProtocol returns the first token of v accepted by check.
func selectProtocol(v []byte, check func(string) bool) (selected string, ok bool) {
	ok = httphead.ScanTokens(v, func(t []byte) bool {
		if check(string(t)) {
			selected = string(t)
			return false
		}
		return true
	})
	return selected, ok || selected != ""
}

func httpWriteHeader(bw *bufio.Writer, key, value string) {
	bw.WriteString(key)
	bw.WriteString(colonAndSpace)
	bw.WriteString(value)
	bw.WriteString(crlf)
}

// httpWriteUpgrade writes the successful server response. Without protocol and
// extra headers the response is exactly the four lines required for upgrade.
func httpWriteUpgrade(bw *bufio.Writer, accept []byte, protocol string, hw HeaderWriter) {
	bw.WriteString(textUpgrade)
	bw.WriteString(headerSecAccept)
	bw.WriteString(colonAndSpace)
	bw.Write(accept)
	bw.WriteString(crlf)
	if protocol != "" {
		httpWriteHeader(bw, headerSecProtocol, protocol)
	}
	if hw != nil {
		hw(bw)
	}
	bw.WriteString(crlf)
}

func httpWriteResponseError(bw *bufio.Writer, err error, code int, hw HeaderWriter) {
	bw.WriteString("HTTP/1.1 ")
	bw.WriteString(strconv.Itoa(code))
	bw.WriteByte(' ')
	bw.WriteString(http.StatusText(code))
	bw.WriteString(crlf)
	bw.WriteString(textErrorContent)
	if hw != nil {
		hw(bw)
	}
	body := err.Error()
	httpWriteHeader(bw, "Content-Length", strconv.Itoa(len(body)+1))
	bw.WriteString(crlf)
	bw.WriteString(body)
	bw.WriteByte('\n')
}

func httpWriteUpgradeRequest(bw *bufio.Writer, host, uri, nonce string, protocols []string, hw HeaderWriter) {
	bw.WriteString("GET ")
	bw.WriteString(uri)
	bw.WriteString(" HTTP/1.1\r\n")
	httpWriteHeader(bw, headerHost, host)
	httpWriteHeader(bw, headerUpgrade, string(specHeaderValueUpgrade))
	httpWriteHeader(bw, headerConnection, string(specHeaderValueConnection))
	httpWriteHeader(bw, headerSecVersion, string(specHeaderValueSecVersion))
	httpWriteHeader(bw, headerSecKey, nonce)
	for i, p := range protocols {
		if i == 0 {
			bw.WriteString(headerSecProtocol)
			bw.WriteString(colonAndSpace)
		} else {
			bw.WriteString(", ")
		}
		bw.WriteString(p)
		if i == len(protocols)-1 {
			bw.WriteString(crlf)
		}
	}
	if hw != nil {
		hw(bw)
	}
	bw.WriteString(crlf)
}
