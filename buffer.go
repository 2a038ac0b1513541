package ws

import (
	"bytes"
	"io"

	"github.com/gobwas/pool/pbytes"
	"github.com/pkg/errors"
)

// Constants used by Buffer.
const (
	DefaultReadBufferSize = 4096
	DefaultMaxHeadSize    = 8192
)

var headTerminator = []byte("\r\n\r\n")

// Buffer accumulates bytes read from the transport and cuts complete frames
// (or the HTTP head during handshake) from them. Bytes following a cut stay
// buffered for the next call, so frames pipelined in one read or split over
// many reads are handled alike.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	src io.Reader
	buf []byte
	off int
	err error

	// ReadSize is the size of a single transport read.
	// If zero, DefaultReadBufferSize is used.
	ReadSize int

	// MaxFrameSize limits declared payload length of a single frame.
	// Zero means no limit.
	MaxFrameSize int64
}

// NewBuffer creates Buffer reading from src.
func NewBuffer(src io.Reader) *Buffer {
	return &Buffer{src: src}
}

// Buffered returns the number of bytes read from the transport but not yet
// consumed.
func (b *Buffer) Buffered() int {
	return len(b.buf) - b.off
}

// Bytes returns unconsumed bytes. The slice is valid until the next call to
// a Buffer method.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.off:]
}

// Feed appends p to the buffer as if it was read from the transport.
func (b *Buffer) Feed(p []byte) {
	b.compact()
	b.buf = append(b.buf, p...)
}

// ReadFrame returns next complete frame, reading from the transport as many
// times as needed. Decoding errors are returned as is; transport errors are
// returned as *TransportError.
func (b *Buffer) ReadFrame() (Frame, error) {
	for {
		f, n, err := decodeFrame(b.buf[b.off:], b.MaxFrameSize)
		if err != nil {
			return f, err
		}
		if n > 0 {
			b.discard(n)
			return f, nil
		}
		if err = b.fill(); err != nil {
			return f, err
		}
	}
}

// ReadHead returns HTTP head bytes including the terminating blank line.
// Bytes after the head are kept buffered. If the head does not fit in limit
// bytes ErrHandshakeHeadTooLarge is returned.
func (b *Buffer) ReadHead(limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxHeadSize
	}
	var scanned int
	for {
		p := b.buf[b.off:]
		// Terminator may straddle the previous scan boundary.
		from := scanned - len(headTerminator) + 1
		if from < 0 {
			from = 0
		}
		if i := bytes.Index(p[from:], headTerminator); i != -1 {
			n := from + i + len(headTerminator)
			if n > limit {
				return nil, ErrHandshakeHeadTooLarge
			}
			head := make([]byte, n)
			copy(head, p)
			b.discard(n)
			return head, nil
		}
		if len(p) >= limit {
			return nil, ErrHandshakeHeadTooLarge
		}
		scanned = len(p)
		if err := b.fill(); err != nil {
			return nil, err
		}
	}
}

func (b *Buffer) discard(n int) {
	b.off += n
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
	}
}

// compact moves unconsumed bytes to the beginning of the buffer.
func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.off:])
	b.buf = b.buf[:n]
	b.off = 0
}

// fill makes one read from the transport. A read that brings no bytes means
// that the peer is gone.
func (b *Buffer) fill() error {
	if b.err != nil {
		return b.err
	}

	size := b.ReadSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	chunk := pbytes.GetLen(size)
	defer pbytes.Put(chunk)

	n, err := b.src.Read(chunk)
	if n > 0 {
		b.Feed(chunk[:n])
	}
	if err == nil && n == 0 {
		err = io.EOF
	}
	if err != nil {
		// Keep the error for the next call: bytes already received are
		// decoded first.
		b.err = &TransportError{Err: errors.Wrap(err, "read")}
		if n > 0 {
			return nil
		}
		return b.err
	}
	return nil
}
