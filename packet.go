package mqttsn

import "io"

// Packet is the interface that all MQTT-SN messages implement.
// MQTT-SN v1.2 spec: Section 5
type Packet interface {
	// Type returns the message type.
	Type() MsgType

	// Encode writes the message, header included, to the writer.
	// Returns the number of bytes written.
	Encode(w io.Writer) (int, error)

	// Decode reads the message body from the reader.
	// The header should already be decoded.
	// Returns the number of bytes read.
	Decode(r io.Reader, header Header) (int, error)

	// Validate validates the message contents.
	Validate() error
}

// PacketWithMsgID is implemented by messages that carry a message identifier.
type PacketWithMsgID interface {
	Packet

	// MessageID returns the message identifier.
	MessageID() uint16
}

// AckPacket is implemented by acknowledgments that carry a return code.
type AckPacket interface {
	Packet

	// Code returns the return code of the acknowledgment.
	Code() ReturnCode
}
