/*
Package ws implements the WebSocket protocol (RFC 6455) on top of a raw
duplex byte stream.

The package is layered. Frame codec functions convert between frames and
wire bytes with no i/o at all:

	bts, err := ws.EncodeFrame(ws.NewTextFrame("hello"))

	f, n, err := ws.DecodeFrame(p)
	switch {
	case err != nil:
		// p does not start with a valid frame.
	case n == 0:
		// Need more bytes.
	default:
		// f is complete and occupies p[:n].
	}

Buffer accumulates bytes read from a transport and cuts complete frames from
them, no matter how the peer's bytes were split or merged by the network:

	br := ws.NewBuffer(conn)
	for {
		f, err := br.ReadFrame()
		...
	}

Conn runs the opening handshake and the per-connection state machine:
control frames are answered, fragmented messages are reassembled, the
closing handshake is performed.

	ln, err := net.Listen("tcp", ":8080")
	if err != nil {
		// handle error
	}
	conn, err := ln.Accept()
	if err != nil {
		// handle error
	}
	c := ws.Server(conn, ws.Config{})
	if _, err := c.Handshake(ctx); err != nil {
		// handle error
	}
	for {
		m, err := c.ReadMessage()
		if err != nil {
			// errors.Is(err, ws.ErrConnectionClosed) when peer has gone.
			return
		}
		c.WriteMessage(m.OpCode, m.Payload)
	}

Received frames are checked for the masking bit required by RFC 6455: a
server accepts only masked frames and a client only unmasked ones. Set
Config.AcceptAnyMask to accept both.
*/
package ws
