package ws

// Message represents a message from peer, that could be presented in one or
// more frames. That is, it contains payload of all message fragments and
// operation code of initial frame for this message.
type Message struct {
	OpCode  OpCode
	Payload []byte
}

// Text returns payload as string.
func (m Message) Text() string {
	return string(m.Payload)
}

// fragment accumulates payload of a fragmented message.
type fragment struct {
	op  OpCode
	buf []byte
}
