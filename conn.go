package ws

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
	"unicode/utf8"
)

// ConnState represents lifecycle state of a connection.
type ConnState uint8

// Connection states. Transitions only go forward.
const (
	StateHandshaking ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Errors used by Conn.
var (
	ErrHandshakeRequired = errors.New("ws: handshake is not complete")
	ErrHandshakeDone     = errors.New("ws: handshake is already done")
	ErrCloseSent         = errors.New("ws: close frame already sent")
)

// Config contains options of a connection.
type Config struct {
	// Upgrader is used by server side connections.
	Upgrader Upgrader

	// Dialer is used by client side connections.
	Dialer Dialer

	// ReadBufferSize is the size of a single transport read.
	// If zero, DefaultReadBufferSize is used.
	ReadBufferSize int

	// MaxFrameSize limits payload of a single received frame.
	// If zero, MaxMessageSize is used.
	MaxFrameSize int64

	// MaxMessageSize limits size of a received message after reassembly.
	// Zero means no limit.
	MaxMessageSize int64

	// AcceptAnyMask disables the check of the masking bit of received frames.
	// By default server requires masked frames and client requires unmasked
	// ones.
	AcceptAnyMask bool

	// OnPing is called with payload of every received ping, after the pong
	// reply is written.
	OnPing func(p []byte)

	// OnPong is called with payload of every received pong.
	OnPong func(p []byte)

	// OnClose is called when peer's close frame is received.
	OnClose func(code StatusCode, reason string)
}

// Conn is a websocket connection over a duplex byte stream.
//
// Reading methods must be called from a single goroutine. Writing methods
// are safe for concurrent use: frames are written whole, in the order they
// were submitted.
type Conn struct {
	rw   io.ReadWriter
	side Side
	cfg  Config
	br   *Buffer
	out  *outbox

	mu        sync.Mutex
	state     ConnState
	closeSent bool
	released  bool

	// Owned by the reader.
	frag *fragment
}

// Server creates server side connection in the handshaking state.
func Server(rw io.ReadWriter, c Config) *Conn {
	return newConn(rw, SideServer, c)
}

// Client creates client side connection in the handshaking state.
func Client(rw io.ReadWriter, c Config) *Conn {
	return newConn(rw, SideClient, c)
}

func newConn(rw io.ReadWriter, side Side, c Config) *Conn {
	br := NewBuffer(rw)
	br.ReadSize = c.ReadBufferSize
	br.MaxFrameSize = c.MaxFrameSize
	if br.MaxFrameSize == 0 {
		br.MaxFrameSize = c.MaxMessageSize
	}
	return &Conn{
		rw:    rw,
		side:  side,
		cfg:   c,
		br:    br,
		out:   newOutbox(rw),
		state: StateHandshaking,
	}
}

// Side returns side which the connection represents.
func (c *Conn) Side() Side { return c.side }

// State returns current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handshake runs server or client side of the opening handshake. On success
// connection becomes open. Any failure is fatal: connection becomes closed
// and the transport is released.
//
// If the transport has SetDeadline method, ctx cancelation interrupts the
// handshake i/o.
func (c *Conn) Handshake(ctx context.Context) (hs Handshake, err error) {
	if c.State() != StateHandshaking {
		return hs, ErrHandshakeDone
	}
	err = withContext(ctx, c.rw, func() error {
		if c.side == SideServer {
			hs, err = c.cfg.Upgrader.handshake(c.br, c.rw)
		} else {
			hs, err = c.cfg.Dialer.handshake(c.br, c.rw)
		}
		return err
	})
	c.mu.Lock()
	if err != nil {
		c.releaseLocked()
	} else {
		c.state = StateOpen
	}
	c.mu.Unlock()
	return hs, err
}

// ReadMessage returns next data message. It takes care of fragmented
// messages and control frames: ping is answered with pong, close is
// answered with close. After peer's close frame is received ReadMessage
// returns *CloseError; all further calls fail with ErrConnectionClosed.
//
// Protocol violations close the connection with an appropriate status code
// and are returned as *ProtocolError or *EncodingError.
func (c *Conn) ReadMessage() (Message, error) {
	for {
		switch c.State() {
		case StateHandshaking:
			return Message{}, ErrHandshakeRequired
		case StateClosed:
			return Message{}, ErrConnectionClosed
		}
		f, err := c.br.ReadFrame()
		if err != nil {
			return Message{}, c.fail(err)
		}
		m, ok, err := c.dispatch(f)
		if err != nil {
			return Message{}, err
		}
		if ok {
			return m, nil
		}
	}
}

// dispatch applies f to the connection state. It returns ok true if f
// completes a data message.
func (c *Conn) dispatch(f Frame) (m Message, ok bool, err error) {
	if !c.cfg.AcceptAnyMask {
		if err = CheckMask(f, c.side); err != nil {
			return m, false, c.fail(err)
		}
	}

	switch f.OpCode {
	case OpPing:
		if err = c.write(NewPongFrame(f.Payload)); err != nil && !errors.Is(err, ErrCloseSent) {
			return m, false, c.fail(err)
		}
		if fn := c.cfg.OnPing; fn != nil {
			fn(f.Payload)
		}
		return m, false, nil

	case OpPong:
		if fn := c.cfg.OnPong; fn != nil {
			fn(f.Payload)
		}
		return m, false, nil

	case OpClose:
		return m, false, c.handleClose(f.Payload)

	case OpText, OpBinary:
		if c.frag != nil {
			return m, false, c.fail(ErrProtocolContinuationExpected)
		}
		if f.Fin {
			return c.complete(f.OpCode, f.Payload)
		}
		c.frag = &fragment{op: f.OpCode, buf: f.Payload}
		return m, false, c.checkSize(len(f.Payload))

	case OpContinuation:
		if c.frag == nil {
			return m, false, c.fail(ErrProtocolContinuationUnexpected)
		}
		c.frag.buf = append(c.frag.buf, f.Payload...)
		if err = c.checkSize(len(c.frag.buf)); err != nil {
			return m, false, err
		}
		if !f.Fin {
			return m, false, nil
		}
		frag := c.frag
		c.frag = nil
		return c.complete(frag.op, frag.buf)
	}

	// Unreachable while the codec rejects unknown op codes.
	return m, false, c.fail(ErrProtocolUnknownOpCode)
}

func (c *Conn) checkSize(n int) error {
	if limit := c.cfg.MaxMessageSize; limit > 0 && int64(n) > limit {
		return c.fail(ErrMessageTooBig)
	}
	return nil
}

func (c *Conn) complete(op OpCode, p []byte) (Message, bool, error) {
	if err := c.checkSize(len(p)); err != nil {
		return Message{}, false, err
	}
	if op == OpText && !utf8.Valid(p) {
		return Message{}, false, c.fail(ErrInvalidUTF8)
	}
	return Message{OpCode: op, Payload: p}, true, nil
}

// handleClose processes peer's close frame payload.
func (c *Conn) handleClose(p []byte) error {
	if len(p) == 1 {
		return c.fail(ErrProtocolCloseBodyTruncated)
	}
	code, reason := ParseCloseFrameData(p)
	if err := CheckCloseFrameData(code, reason); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.state = StateClosing
	echo := !c.closeSent
	c.closeSent = true
	c.mu.Unlock()

	if fn := c.cfg.OnClose; fn != nil {
		fn(code, reason)
	}

	var err error
	if echo {
		// RFC6455#5.5.1:
		// If an endpoint receives a Close frame and did not previously
		// send a Close frame, the endpoint MUST send a Close frame in
		// response. (When sending a Close frame in response, the endpoint
		// typically echos the status code it received.)
		err = c.out.wait(c.enqueue(NewCloseFrame(code, "")))
	}
	c.release()

	if err != nil {
		return err
	}
	if code.Empty() {
		// If this Close control frame contains no status code, _The
		// WebSocket Connection Close Code_ is considered to be 1005.
		code = StatusNoStatusRcvd
	}
	return &CloseError{Code: code, Reason: reason}
}

// fail terminates the connection because of err. Protocol and encoding
// violations are reported to the peer with a close frame first.
func (c *Conn) fail(err error) error {
	var code StatusCode
	var (
		pe *ProtocolError
		ee *EncodingError
	)
	switch {
	case err == ErrMessageTooBig:
		code = StatusMessageTooBig
	case errors.As(err, &ee):
		code = StatusInvalidFramePayloadData
	case errors.As(err, &pe):
		code = StatusProtocolError
	}

	c.mu.Lock()
	var it *pending
	if code != 0 && !c.closeSent && c.state == StateOpen {
		c.closeSent = true
		it = c.enqueue(NewCloseFrame(code, ""))
	}
	c.mu.Unlock()

	if it != nil {
		// Best effort: the connection is being dropped anyway.
		_ = c.out.wait(it)
	}
	c.release()
	return err
}

// WriteMessage writes data message with given operation code and payload in
// a single frame.
func (c *Conn) WriteMessage(op OpCode, p []byte) error {
	if !op.IsData() || op == OpContinuation {
		return ErrProtocolUnknownOpCode
	}
	return c.write(NewFrame(op, true, p))
}

// WriteText is the same as WriteMessage with OpText.
func (c *Conn) WriteText(s string) error {
	return c.write(NewTextFrame(s))
}

// WriteBinary is the same as WriteMessage with OpBinary.
func (c *Conn) WriteBinary(p []byte) error {
	return c.write(NewBinaryFrame(p))
}

// WriteFragments writes one message split into len(parts) frames. No other
// data frame is written between the fragments.
func (c *Conn) WriteFragments(op OpCode, parts ...[]byte) error {
	if !op.IsData() || op == OpContinuation {
		return ErrProtocolUnknownOpCode
	}
	if len(parts) == 0 {
		parts = [][]byte{nil}
	}
	frames := make([]Frame, len(parts))
	for i, p := range parts {
		fop := op
		if i > 0 {
			fop = OpContinuation
		}
		frames[i] = NewFrame(fop, i == len(parts)-1, p)
	}
	return c.write(frames...)
}

// Ping writes ping frame with p as payload.
func (c *Conn) Ping(p []byte) error {
	return c.write(NewPingFrame(p))
}

// Pong writes unsolicited pong frame with p as payload.
func (c *Conn) Pong(p []byte) error {
	return c.write(NewPongFrame(p))
}

// Close starts the closing handshake: close frame is written and connection
// becomes closing. Caller should continue to read until ReadMessage returns
// an error, which happens when peer answers with its own close frame.
//
// Close on not yet open connection releases the transport immediately.
func (c *Conn) Close(code StatusCode, reason string) error {
	f := NewCloseFrame(code, reason)
	if err := checkOutgoing(f); err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	case c.state == StateHandshaking:
		c.releaseLocked()
		c.mu.Unlock()
		return nil
	case c.closeSent:
		c.mu.Unlock()
		return ErrCloseSent
	}
	c.state = StateClosing
	c.closeSent = true
	it := c.enqueue(f)
	c.mu.Unlock()

	if err := c.out.wait(it); err != nil {
		c.release()
		return err
	}
	return nil
}

// CloseNow releases the transport without closing handshake.
func (c *Conn) CloseNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrConnectionClosed
	}
	return c.releaseLocked()
}

func (c *Conn) write(fs ...Frame) error {
	c.mu.Lock()
	switch {
	case c.state == StateHandshaking:
		c.mu.Unlock()
		return ErrHandshakeRequired
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	case c.closeSent:
		c.mu.Unlock()
		return ErrCloseSent
	}
	items := make([]*pending, 0, len(fs))
	for _, f := range fs {
		if err := checkOutgoing(f); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	for _, f := range fs {
		items = append(items, c.enqueue(f))
	}
	c.mu.Unlock()

	var err error
	for _, it := range items {
		if e := c.out.wait(it); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// enqueue encodes f for this side and puts it into the outbox. Callers hold
// c.mu when the order relative to the close frame matters. f must be valid.
func (c *Conn) enqueue(f Frame) *pending {
	if c.side == SideClient {
		f = MaskFrame(f)
	}
	bts, _ := EncodeFrame(f)
	return c.out.enqueue(bts)
}

func (c *Conn) release() {
	c.mu.Lock()
	c.releaseLocked()
	c.mu.Unlock()
}

func (c *Conn) releaseLocked() (err error) {
	c.state = StateClosed
	if c.released {
		return nil
	}
	c.released = true
	if closer, ok := c.rw.(io.Closer); ok {
		err = closer.Close()
	}
	return err
}

type deadliner interface {
	SetDeadline(time.Time) error
}

var (
	// noDeadline is just zero value for readability.
	noDeadline = time.Time{}
	// aLongTimeAgo is a non-zero time, far in the past, used for immediate
	// cancelation of i/o.
	aLongTimeAgo = time.Unix(42, 0)
)

// withContext runs fn interrupting transport i/o when ctx is done.
func withContext(ctx context.Context, rw io.ReadWriter, fn func() error) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	d, ok := rw.(deadliner)
	if !ok || ctx.Done() == nil {
		return fn()
	}
	// The deadline is set only by the interrupter so that any i/o timeout
	// is reported as the context error.

	var (
		done      = make(chan struct{})
		interrupt = make(chan error, 1)
	)
	go func() {
		select {
		case <-done:
			interrupt <- nil
		case <-ctx.Done():
			// Cancel i/o immediately.
			d.SetDeadline(aLongTimeAgo)
			interrupt <- ctx.Err()
		}
	}()

	err = fn()
	close(done)
	if ctxErr := <-interrupt; ctxErr != nil {
		// Deadline error caused by us is reported as context error.
		err = ctxErr
	}
	d.SetDeadline(noDeadline)
	return err
}
