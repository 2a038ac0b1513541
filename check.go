package ws

import "unicode/utf8"

// Side tells which end of a connection the caller represents. It decides the
// masking direction of outgoing frames and the masking check of incoming ones.
type Side uint8

const (
	// SideServer means that endpoint (caller) is a server.
	SideServer Side = iota + 1
	// SideClient means that endpoint (caller) is a client.
	SideClient
)

func (s Side) String() string {
	switch s {
	case SideServer:
		return "server"
	case SideClient:
		return "client"
	}
	return "unknown"
}

// CheckMask checks f to carry the masking bit expected for frames received
// by side s.
func CheckMask(f Frame, s Side) error {
	// [RFC6455]: The server MUST close the connection upon receiving a frame
	// that is not masked. A client MUST close a connection if it detects a
	// masked frame.
	switch {
	case s == SideServer && !f.Masked:
		return ErrProtocolMaskRequired
	case s == SideClient && f.Masked:
		return ErrProtocolMaskUnexpected
	}
	return nil
}

// CheckCloseFrameData checks received close information to be valid RFC6455
// compatible close info.
//
// Empty code is valid: it means the peer sent close frame without payload.
func CheckCloseFrameData(code StatusCode, reason string) error {
	switch {
	case code.Empty():
		return nil

	case code.In(StatusRangeNotInUse):
		return ErrProtocolStatusCodeNotInUse

	case code.IsProtocolReserved():
		return ErrProtocolStatusCodeReserved

	case code.In(StatusRangeProtocol) && !code.IsProtocolDefined():
		return ErrProtocolStatusCodeUnknown

	case !code.In(StatusRangeProtocol) &&
		!code.In(StatusRangeApplication) &&
		!code.In(StatusRangePrivate):
		return ErrProtocolStatusCodeUnknown

	case !utf8.ValidString(reason):
		return ErrInvalidUTF8

	default:
		return nil
	}
}
