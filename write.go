package ws

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	bit0 = 0x80

	len7  = 125
	len16 = 1<<16 - 1
)

// Header sizes.
const (
	MinHeaderSize = 2
	MaxHeaderSize = 14
)

// HeaderSize returns number of bytes that are needed to encode the header of
// given frame.
func HeaderSize(f Frame) (n int) {
	switch l := len(f.Payload); {
	case l <= len7:
		n = 2
	case l <= len16:
		n = 4
	default:
		n = 10
	}
	if f.Masked {
		n += 4
	}
	return n
}

func checkOutgoing(f Frame) error {
	if _, err := ParseOpCode(byte(f.OpCode)); err != nil || f.OpCode > 0x0f {
		return ErrProtocolUnknownOpCode
	}
	if f.OpCode.IsControl() {
		if len(f.Payload) > MaxControlFramePayloadSize {
			return ErrProtocolControlPayloadOverflow
		}
		if !f.Fin {
			return ErrProtocolControlNotFinal
		}
	}
	return nil
}

// AppendFrame appends wire representation of f to dst and returns the
// extended slice. Payload of f is not modified even if f is masked.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	if err := checkOutgoing(f); err != nil {
		return dst, err
	}

	var b0 byte
	if f.Fin {
		b0 |= bit0
	}
	b0 |= (f.Rsv & 0x07) << 4
	b0 |= byte(f.OpCode)

	var b1 byte
	if f.Masked {
		b1 |= bit0
	}

	var ext [8]byte
	switch l := len(f.Payload); {
	case l <= len7:
		dst = append(dst, b0, b1|byte(l))

	case l <= len16:
		binary.BigEndian.PutUint16(ext[:], uint16(l))
		dst = append(dst, b0, b1|126)
		dst = append(dst, ext[:2]...)

	default:
		binary.BigEndian.PutUint64(ext[:], uint64(l))
		dst = append(dst, b0, b1|127)
		dst = append(dst, ext[:]...)
	}

	if !f.Masked {
		return append(dst, f.Payload...), nil
	}
	dst = append(dst, f.Mask[:]...)
	start := len(dst)
	dst = append(dst, f.Payload...)
	Cipher(dst[start:], f.Mask, 0)

	return dst, nil
}

// EncodeFrame returns byte representation of given frame.
func EncodeFrame(f Frame) ([]byte, error) {
	return AppendFrame(make([]byte, 0, HeaderSize(f)+len(f.Payload)), f)
}

// WriteFrame writes frame binary representation into w.
func WriteFrame(w io.Writer, f Frame) error {
	bts, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	_, err = w.Write(bts)
	return err
}

// CompileFrame returns byte representation of given frame.
// In terms of memory consumption it is useful to precompile static frames
// which are often used.
func CompileFrame(f Frame) (bts []byte, err error) {
	buf := bytes.NewBuffer(make([]byte, 0, 16))
	err = WriteFrame(buf, f)
	bts = buf.Bytes()
	return
}

// MustCompileFrame is like CompileFrame but panics if frame can not be
// encoded.
func MustCompileFrame(f Frame) []byte {
	bts, err := CompileFrame(f)
	if err != nil {
		panic(err)
	}
	return bts
}
