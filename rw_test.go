package ws

import (
	"bytes"
	"fmt"
	"strings"
)

type RWTestCase struct {
	label string
	Data  []byte
	Frame Frame
	Err   error
}

type RWBenchCase struct {
	label string
	frame Frame
}

var RWBenchCases = []RWBenchCase{
	{
		"no-mask",
		NewTextFrame("hello, world!"),
	},
	{
		"mask",
		MaskFrameWith(NewTextFrame("hello, world!"), [4]byte{1, 2, 3, 4}),
	},
	{
		"mask-u16",
		MaskFrameWith(NewBinaryFrame(make([]byte, len16)), [4]byte{1, 2, 3, 4}),
	},
	{
		"mask-u64",
		MaskFrameWith(NewBinaryFrame(make([]byte, len16+1)), [4]byte{1, 2, 3, 4}),
	},
}

// RWTestCases are valid frames: they must be decoded from Data and encoded
// into Data.
var RWTestCases = []RWTestCase{
	{
		label: "text",
		Data: cat(
			bits("1 000 0001 0 0000011"),
			//    _ ___ ____ _ _______
			//    |  |   |   |    |
			//   Fin |   |  Mask Length
			//      Rsv  |
			//       TextFrame
			[]byte("abc"),
		),
		Frame: NewTextFrame("abc"),
	},
	{
		label: "text-masked",
		Data: bits("1 000 0001 1 0000011 00000001 10001000 00000000 11111111 01100000 11101010 01100011"),
		//          _ ___ ____ _ _______ ___________________________________ __________________________
		//          |  |   |   |    |                     |                              |
		//         Fin |   |  Mask Length             Mask value                 Masked "abc"
		//            Rsv  |
		//             TextFrame
		Frame: MaskFrameWith(NewTextFrame("abc"), [4]byte{0x01, 0x88, 0x00, 0xff}),
	},
	{
		label: "binary-u16",
		Data: cat(
			bits("0 000 0010 0 1111110 00000000 01111110"),
			//    _ ___ ____ _ _______ _________________
			//    |  |   |   |    |            |
			//   Fin |   |  Mask Length   Length value
			//      Rsv  |
			//       BinaryFrame
			make([]byte, 126),
		),
		Frame: NewFrame(OpBinary, false, make([]byte, 126)),
	},
	{
		label: "binary-u64",
		Data: cat(
			bits("1 000 0010 0 1111111 00000000 00000000 00000000 00000000 00000000 00000001 00000000 00000000"),
			make([]byte, 1<<16),
		),
		Frame: NewBinaryFrame(make([]byte, 1<<16)),
	},
	{
		label: "continuation",
		Data:  cat(bits("1 000 0000 0 0000010"), []byte("yz")),
		Frame: NewFrame(OpContinuation, true, []byte("yz")),
	},
	{
		label: "pong-empty",
		Data:  bits("1 000 1010 0 0000000"),
		Frame: NewPongFrame([]byte{}),
	},
	{
		label: "close",
		Data:  bits("1 000 1000 0 0000010 00000011 11101000"),
		Frame: NewCloseFrame(StatusNormalClosure, ""),
	},
}

// RWErrorCases are frames which must be rejected by decoder.
var RWErrorCases = []RWTestCase{
	{
		label: "reserved-opcode",
		Data:  bits("1 000 0011 0 0000000"),
		Err:   ErrProtocolUnknownOpCode,
	},
	{
		label: "reserved-control-opcode",
		Data:  bits("1 000 1011 0 0000000"),
		Err:   ErrProtocolUnknownOpCode,
	},
	{
		label: "rsv",
		Data:  bits("1 100 0001 0 0000000"),
		Err:   ErrProtocolNonZeroRsv,
	},
	{
		label: "control-not-final",
		Data:  bits("0 000 1001 0 0000000"),
		Err:   ErrProtocolControlNotFinal,
	},
	{
		label: "control-overflow",
		Data:  bits("1 000 1001 0 1111110 00000000 01111110"),
		Err:   ErrProtocolControlPayloadOverflow,
	},
	{
		label: "length-msb",
		Data:  bits("1 000 0010 0 1111111 10000000 00000000 00000000 00000000 00000000 00000000 00000000 00000000"),
		//                                _______________________________________________________________________
		//                                                                   |
		//                                                              Length value
		Err: ErrProtocolLengthMSB,
	},
	{
		label: "length-u16-not-minimal",
		Data:  bits("1 000 0010 0 1111110 00000000 00000101"),
		Err:   ErrProtocolLengthNotMinimal,
	},
	{
		label: "length-u64-not-minimal",
		Data:  bits("1 000 0010 0 1111111 00000000 00000000 00000000 00000000 00000000 00000000 00000000 00000101"),
		Err:   ErrProtocolLengthNotMinimal,
	},
}

func bits(s string) []byte {
	s = strings.ReplaceAll(s, " ", "")
	bts := make([]byte, len(s)/8)

	for i, j := 0, 0; i < len(s); i, j = i+8, j+1 {
		fmt.Sscanf(s[i:], "%08b", &bts[j])
	}

	return bts
}

func cat(ps ...[]byte) []byte {
	return bytes.Join(ps, nil)
}

func frameEqual(a, b Frame) bool {
	return a.Fin == b.Fin &&
		a.Rsv == b.Rsv &&
		a.OpCode == b.OpCode &&
		a.Masked == b.Masked &&
		a.Mask == b.Mask &&
		bytes.Equal(a.Payload, b.Payload)
}

func frameString(f Frame) string {
	p := f.Payload
	if len(p) > 16 {
		return fmt.Sprintf(
			"{Fin:%t Rsv:%d OpCode:%s Masked:%t Mask:%v Payload(%d):%q...}",
			f.Fin, f.Rsv, f.OpCode, f.Masked, f.Mask, len(p), p[:16],
		)
	}
	return fmt.Sprintf(
		"{Fin:%t Rsv:%d OpCode:%s Masked:%t Mask:%v Payload:%q}",
		f.Fin, f.Rsv, f.OpCode, f.Masked, f.Mask, p,
	)
}
