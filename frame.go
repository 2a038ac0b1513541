package ws

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
)

// Constants defined by specification.
const (
	// All control frames MUST have a payload length of 125 bytes or less and
	// MUST NOT be fragmented.
	MaxControlFramePayloadSize = 125
)

// OpCode represents operation code.
type OpCode byte

// Operation codes defined by specification.
// See https://tools.ietf.org/html/rfc6455#section-5.2
const (
	OpContinuation OpCode = 0x0
	OpText         OpCode = 0x1
	OpBinary       OpCode = 0x2
	OpClose        OpCode = 0x8
	OpPing         OpCode = 0x9
	OpPong         OpCode = 0xa
)

// ParseOpCode maps the low four bits of b to a known operation code.
// Reserved values are never coerced to a known one; ErrProtocolUnknownOpCode
// is returned instead.
func ParseOpCode(b byte) (OpCode, error) {
	switch c := OpCode(b & 0x0f); c {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return c, nil
	}
	return 0, ErrProtocolUnknownOpCode
}

// IsControl checks whether the c is control operation code.
// See https://tools.ietf.org/html/rfc6455#section-5.5
func (c OpCode) IsControl() bool {
	// RFC6455: Control frames are identified by opcodes where
	// the most significant bit of the opcode is 1.
	//
	// Note that OpCode is only 4 bit length.
	return c&0x8 != 0
}

// IsData checks whether the c is data operation code.
// See https://tools.ietf.org/html/rfc6455#section-5.6
func (c OpCode) IsData() bool {
	return c&0x8 == 0
}

// IsReserved checks whether the c is reserved operation code.
// See https://tools.ietf.org/html/rfc6455#section-5.2
func (c OpCode) IsReserved() bool {
	// RFC6455:
	// %x3-7 are reserved for further non-control frames
	// %xB-F are reserved for further control frames
	return (0x3 <= c && c <= 0x7) || (0xb <= c && c <= 0xf)
}

func (c OpCode) String() string {
	switch c {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	}
	return "opcode(0x" + strconv.FormatUint(uint64(c), 16) + ")"
}

// StatusCode represents the encoded reason for closure of websocket connection.
//
// See https://tools.ietf.org/html/rfc6455#section-7.4
type StatusCode uint16

// StatusCodeRange describes range of StatusCode values.
type StatusCodeRange struct {
	Min, Max StatusCode
}

// Status code ranges defined by specification.
// See https://tools.ietf.org/html/rfc6455#section-7.4.2
var (
	StatusRangeNotInUse    = StatusCodeRange{0, 999}
	StatusRangeProtocol    = StatusCodeRange{1000, 2999}
	StatusRangeApplication = StatusCodeRange{3000, 3999}
	StatusRangePrivate     = StatusCodeRange{4000, 4999}
)

// Status codes defined by specification.
// See https://tools.ietf.org/html/rfc6455#section-7.4.1
const (
	StatusNormalClosure           StatusCode = 1000
	StatusGoingAway               StatusCode = 1001
	StatusProtocolError           StatusCode = 1002
	StatusUnsupportedData         StatusCode = 1003
	StatusNoMeaningYet            StatusCode = 1004
	StatusNoStatusRcvd            StatusCode = 1005
	StatusAbnormalClosure         StatusCode = 1006
	StatusInvalidFramePayloadData StatusCode = 1007
	StatusPolicyViolation         StatusCode = 1008
	StatusMessageTooBig           StatusCode = 1009
	StatusMandatoryExt            StatusCode = 1010
	StatusInternalServerError     StatusCode = 1011
	StatusTLSHandshake            StatusCode = 1015
)

// In reports whether the code is defined in given range.
func (s StatusCode) In(r StatusCodeRange) bool {
	return r.Min <= s && s <= r.Max
}

// Empty reports whether the code is empty.
func (s StatusCode) Empty() bool {
	return s == 0
}

// IsProtocolDefined reports whether the code is already defined by protocol
// specification.
func (s StatusCode) IsProtocolDefined() bool {
	switch s {
	case StatusNormalClosure,
		StatusGoingAway,
		StatusProtocolError,
		StatusUnsupportedData,
		StatusInvalidFramePayloadData,
		StatusPolicyViolation,
		StatusMessageTooBig,
		StatusMandatoryExt,
		StatusInternalServerError,
		StatusNoStatusRcvd,
		StatusAbnormalClosure,
		StatusTLSHandshake:
		return true
	}
	return false
}

// IsProtocolReserved reports whether the code must never be sent in a Close
// frame.
func (s StatusCode) IsProtocolReserved() bool {
	// [RFC6455]: {1005,1006,1015} is a reserved value and MUST NOT be set as
	// a status code in a Close control frame by an endpoint.
	switch s {
	case StatusNoStatusRcvd, StatusAbnormalClosure, StatusTLSHandshake:
		return true
	}
	return false
}

// Frame represents websocket frame.
// See https://tools.ietf.org/html/rfc6455#section-5.2
//
// The payload length written to the wire is always len(Payload).
type Frame struct {
	Fin    bool
	Rsv    byte
	OpCode OpCode
	Masked bool
	Mask   [4]byte

	// Payload holds unmasked bytes. Encoding applies the mask on a copy.
	Payload []byte
}

// NewFrame creates frame with given operation code,
// flag of completeness and payload bytes.
func NewFrame(op OpCode, fin bool, p []byte) Frame {
	return Frame{
		Fin:     fin,
		OpCode:  op,
		Payload: p,
	}
}

// NewTextFrame creates text frame with s as payload.
func NewTextFrame(s string) Frame {
	return NewFrame(OpText, true, []byte(s))
}

// NewBinaryFrame creates binary frame with p as payload.
// Note that p is left as is in the returned frame without copying.
func NewBinaryFrame(p []byte) Frame {
	return NewFrame(OpBinary, true, p)
}

// NewPingFrame creates ping frame with p as payload.
func NewPingFrame(p []byte) Frame {
	return NewFrame(OpPing, true, p)
}

// NewPongFrame creates pong frame with p as payload.
func NewPongFrame(p []byte) Frame {
	return NewFrame(OpPong, true, p)
}

// NewCloseFrame creates close frame with given closure code and reason.
// Empty code produces a close frame without payload.
// Note that it crops reason to fit the limit of control frames payload.
func NewCloseFrame(code StatusCode, reason string) Frame {
	if code.Empty() {
		return NewFrame(OpClose, true, nil)
	}
	return NewFrame(OpClose, true, NewCloseFrameData(code, reason))
}

// NewCloseFrameData makes byte representation of code and reason.
// Returned slice is at most 125 bytes length.
func NewCloseFrameData(code StatusCode, reason string) []byte {
	n := 2 + len(reason)
	if n > MaxControlFramePayloadSize {
		n = MaxControlFramePayloadSize
	}
	p := make([]byte, n)
	binary.BigEndian.PutUint16(p, uint16(code))
	copy(p[2:], reason)
	return p
}

// ParseCloseFrameData parses close frame status code and closure reason if any
// provided. If there is no status code in the payload the empty status code is
// returned with empty reason.
func ParseCloseFrameData(payload []byte) (code StatusCode, reason string) {
	if len(payload) < 2 {
		return
	}
	code = StatusCode(binary.BigEndian.Uint16(payload))
	reason = string(payload[2:])
	return
}

// MaskFrame masks frame with a fresh random mask.
func MaskFrame(f Frame) Frame {
	return MaskFrameWith(f, NewMask())
}

// MaskFrameWith sets the Masked flag and the mask key. Payload stays unmasked
// in memory; the cipher is applied while encoding.
func MaskFrameWith(f Frame, mask [4]byte) Frame {
	f.Masked = true
	f.Mask = mask
	return f
}

// NewMask creates new random mask.
func NewMask() (ret [4]byte) {
	if _, err := rand.Read(ret[:]); err != nil {
		panic("ws: rand read error: " + err.Error())
	}
	return
}
