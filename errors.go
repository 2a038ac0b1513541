package ws

import (
	"errors"
	"strconv"
)

// ProtocolError describes a violation of the protocol detected while parsing
// handshake headers or websocket frames. Any ProtocolError is fatal for the
// connection.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "ws: protocol error: " + e.Reason
}

// EncodingError describes a message payload that does not match its declared
// type, such as a text message that is not valid UTF-8.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "ws: encoding error: " + e.Reason
}

func protocolError(reason string) error {
	return &ProtocolError{Reason: reason}
}

// ErrConnectionClosed is matched (with errors.Is) by every error that means the
// connection can no longer be used: transport failures, peer EOF and completed
// close handshakes.
var ErrConnectionClosed = errors.New("ws: connection closed")

// Errors used by the frame codec.
var (
	ErrProtocolUnknownOpCode          = protocolError("unknown op code")
	ErrProtocolNonZeroRsv             = protocolError("non-zero rsv bits with no extension negotiated")
	ErrProtocolControlPayloadOverflow = protocolError("control frame payload limit exceeded")
	ErrProtocolControlNotFinal        = protocolError("control frame is not final")
	ErrProtocolLengthMSB              = protocolError("the most significant bit of 64-bit length must be 0")
	ErrProtocolLengthNotMinimal       = protocolError("extended payload length is not minimally encoded")
	ErrProtocolLengthOverflow         = protocolError("payload length exceeds platform limit")
	ErrMessageTooBig                  = protocolError("message size limit exceeded")
)

// Errors used by the connection state machine.
var (
	ErrProtocolMaskRequired           = protocolError("frames from client to server must be masked")
	ErrProtocolMaskUnexpected         = protocolError("frames from server to client must be not masked")
	ErrProtocolContinuationExpected   = protocolError("unexpected non-continuation data frame")
	ErrProtocolContinuationUnexpected = protocolError("continuation frame without fragment start")
	ErrProtocolStatusCodeNotInUse     = protocolError("status code is not in use")
	ErrProtocolStatusCodeReserved     = protocolError("status code must not be sent on the wire")
	ErrProtocolStatusCodeUnknown      = protocolError("status code is not defined by RFC6455")
	ErrProtocolCloseBodyTruncated     = protocolError("close frame payload of one byte")

	ErrInvalidUTF8 = &EncodingError{Reason: "invalid utf8 sequence in text payload"}
)

// TransportError wraps a failure of the underlying byte stream. It always
// matches ErrConnectionClosed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "ws: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Cause returns the underlying error, for github.com/pkg/errors.Cause.
func (e *TransportError) Cause() error { return e.Err }

// Is reports whether target is ErrConnectionClosed.
func (e *TransportError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// CloseError is returned when the peer has closed the connection with
// appropriate code and a textual reason. It matches ErrConnectionClosed.
type CloseError struct {
	Code   StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	return "ws: closed: " + strconv.FormatUint(uint64(e.Code), 10) + " " + e.Reason
}

// Is reports whether target is ErrConnectionClosed.
func (e *CloseError) Is(target error) bool {
	return target == ErrConnectionClosed
}
