package ws

import "encoding/binary"

// cursor is a bounded read position over an immutable byte slice. Every
// multi-byte read reports whether enough bytes were available; on false the
// position is left untouched.
type cursor struct {
	p   []byte
	pos int
}

func (c *cursor) remaining() int {
	return len(c.p) - c.pos
}

func (c *cursor) readByte() (b byte, ok bool) {
	if c.remaining() < 1 {
		return 0, false
	}
	b = c.p[c.pos]
	c.pos++
	return b, true
}

func (c *cursor) uint16() (v uint16, ok bool) {
	if c.remaining() < 2 {
		return 0, false
	}
	v = binary.BigEndian.Uint16(c.p[c.pos:])
	c.pos += 2
	return v, true
}

func (c *cursor) uint64() (v uint64, ok bool) {
	if c.remaining() < 8 {
		return 0, false
	}
	v = binary.BigEndian.Uint64(c.p[c.pos:])
	c.pos += 8
	return v, true
}

func (c *cursor) mask() (m [4]byte, ok bool) {
	if c.remaining() < 4 {
		return m, false
	}
	copy(m[:], c.p[c.pos:])
	c.pos += 4
	return m, true
}

// next returns the following n bytes without copying.
func (c *cursor) next(n int) (p []byte, ok bool) {
	if n < 0 || c.remaining() < n {
		return nil, false
	}
	p = c.p[c.pos : c.pos+n]
	c.pos += n
	return p, true
}
