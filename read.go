package ws

import (
	"bytes"
	"io"
)

const (
	// PlatformSizeLimit is the max int value for current platform.
	PlatformSizeLimit = int64(^(uint(0)) >> 1)

	// maxPreallocSize bounds the payload buffer allocated up front from the
	// declared length. Larger payloads grow as bytes arrive.
	maxPreallocSize = 1 << 16
)

// header holds the decoded fixed part of a frame: everything except payload.
type header struct {
	fin    bool
	rsv    byte
	op     OpCode
	masked bool
	mask   [4]byte
	length int64
}

// decodeHeader parses frame header at the cursor position. It returns ok
// false if the cursor does not hold enough bytes for the whole header.
func decodeHeader(c *cursor) (h header, ok bool, err error) {
	b0, ok := c.readByte()
	if !ok {
		return h, false, nil
	}
	b1, ok := c.readByte()
	if !ok {
		return h, false, nil
	}

	h.fin = b0&bit0 != 0
	h.rsv = (b0 & 0x70) >> 4
	if h.op, err = ParseOpCode(b0); err != nil {
		return h, false, err
	}
	if h.rsv != 0 {
		return h, false, ErrProtocolNonZeroRsv
	}
	if h.op.IsControl() && !h.fin {
		return h, false, ErrProtocolControlNotFinal
	}

	h.masked = b1&bit0 != 0
	switch length := b1 & 0x7f; {
	case length < 126:
		h.length = int64(length)

	case length == 126:
		v, ok := c.uint16()
		if !ok {
			return h, false, nil
		}
		if v < 126 {
			return h, false, ErrProtocolLengthNotMinimal
		}
		h.length = int64(v)

	default:
		v, ok := c.uint64()
		if !ok {
			return h, false, nil
		}
		if v&(1<<63) != 0 {
			return h, false, ErrProtocolLengthMSB
		}
		if v <= len16 {
			return h, false, ErrProtocolLengthNotMinimal
		}
		if v > uint64(PlatformSizeLimit) {
			return h, false, ErrProtocolLengthOverflow
		}
		h.length = int64(v)
	}
	if h.op.IsControl() && h.length > MaxControlFramePayloadSize {
		return h, false, ErrProtocolControlPayloadOverflow
	}

	if h.masked {
		if h.mask, ok = c.mask(); !ok {
			return h, false, nil
		}
	}

	return h, true, nil
}

func (h header) frame(payload []byte) Frame {
	return Frame{
		Fin:     h.fin,
		Rsv:     h.rsv,
		OpCode:  h.op,
		Masked:  h.masked,
		Mask:    h.mask,
		Payload: payload,
	}
}

// DecodeFrame tries to decode one frame from the beginning of p.
//
// It returns n > 0 with the decoded frame when p holds a complete frame; n is
// the number of bytes the frame occupies. It returns n == 0 with nil error
// when p holds only a prefix of a frame, so the call may be repeated with more
// bytes appended. A non-nil error means p does not start with a valid frame.
//
// DecodeFrame never modifies p and never retains it: the returned payload is
// an unmasked copy.
func DecodeFrame(p []byte) (f Frame, n int, err error) {
	return decodeFrame(p, 0)
}

// decodeFrame is DecodeFrame with an optional limit on payload length. The
// limit is checked right after the header so an oversized frame is rejected
// before its payload arrives.
func decodeFrame(p []byte, limit int64) (f Frame, n int, err error) {
	c := cursor{p: p}
	h, ok, err := decodeHeader(&c)
	if err != nil || !ok {
		return f, 0, err
	}
	if limit > 0 && h.length > limit {
		return f, 0, ErrMessageTooBig
	}
	raw, ok := c.next(int(h.length))
	if !ok {
		return f, 0, nil
	}

	payload := make([]byte, len(raw))
	copy(payload, raw)
	if h.masked {
		Cipher(payload, h.mask, 0)
	}

	return h.frame(payload), c.pos, nil
}

// ReadFrame reads a frame from r, blocking until it is complete.
// Returned payload is unmasked.
//
// Payload memory grows with the bytes actually received, so a stream that
// ends before the declared length fails with io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (Frame, error) {
	return ReadFrameLimit(r, 0)
}

// ReadFrameLimit is like ReadFrame but returns ErrMessageTooBig if declared
// payload length exceeds limit. Zero limit means no limit.
func ReadFrameLimit(r io.Reader, limit int64) (f Frame, err error) {
	// Largest header: 2 bytes + 8 bytes of length + 4 bytes of mask.
	var bts [MaxHeaderSize]byte

	if _, err = io.ReadFull(r, bts[:2]); err != nil {
		return
	}
	size := 2
	switch bts[1] & 0x7f {
	case 126:
		size += 2
	case 127:
		size += 8
	}
	if bts[1]&bit0 != 0 {
		size += 4
	}
	if size > 2 {
		if _, err = io.ReadFull(r, bts[2:size]); err != nil {
			return
		}
	}

	c := cursor{p: bts[:size]}
	h, _, err := decodeHeader(&c)
	if err != nil {
		return
	}

	if limit > 0 && h.length > limit {
		return f, ErrMessageTooBig
	}
	payload, err := readPayload(r, h.length)
	if err != nil {
		return
	}
	if h.masked {
		Cipher(payload, h.mask, 0)
	}

	return h.frame(payload), nil
}

func readPayload(r io.Reader, n int64) ([]byte, error) {
	if n <= maxPreallocSize {
		p := make([]byte, n)
		if _, err := io.ReadFull(r, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	var buf bytes.Buffer
	buf.Grow(maxPreallocSize)
	m, err := io.CopyN(&buf, r, n)
	if m < n && err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
