package mqttsn

import "io"

// NoDuration is the DISCONNECT duration sentinel for a plain disconnect.
// It is encoded by omitting the duration field.
const NoDuration = -1

// DisconnectPacket represents an MQTT-SN DISCONNECT message.
// A non-negative Duration asks the gateway for a sleep of that many seconds.
// MQTT-SN v1.2 spec: Section 5.4.21
type DisconnectPacket struct {
	Duration int32
}

// Type returns the message type.
func (p *DisconnectPacket) Type() MsgType { return MsgTypeDisconnect }

// Encode writes the message to the writer.
func (p *DisconnectPacket) Encode(w io.Writer) (int, error) {
	if p.Duration < 0 {
		return writeMessage(w, p.Type(), nil)
	}

	var b bodyWriter
	b.putUint16(uint16(p.Duration))
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *DisconnectPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeDisconnect {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}
	if len(body) == 0 {
		p.Duration = NoDuration
		return n, nil
	}

	br := bodyReader{data: body}
	p.Duration = int32(br.readUint16())
	return n, br.done()
}

// Validate validates the message contents.
func (p *DisconnectPacket) Validate() error {
	if p.Duration > 0xFFFF {
		return ErrFieldTooLong
	}
	return nil
}

// IsSleep returns true when the message carries a sleep duration.
func (p *DisconnectPacket) IsSleep() bool {
	return p.Duration >= 0
}
