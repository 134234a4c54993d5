package mqttsn

import "io"

// PingreqPacket represents an MQTT-SN PINGREQ message.
// A sleeping client includes its client id to collect buffered messages.
// MQTT-SN v1.2 spec: Section 5.4.19
type PingreqPacket struct {
	ClientID string
}

// Type returns the message type.
func (p *PingreqPacket) Type() MsgType { return MsgTypePingreq }

// Encode writes the message to the writer.
func (p *PingreqPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), []byte(p.ClientID))
}

// Decode reads the message body from the reader.
func (p *PingreqPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypePingreq {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}
	p.ClientID = string(body)
	return n, nil
}

// Validate validates the message contents.
func (p *PingreqPacket) Validate() error {
	if len(p.ClientID) > MaxClientIDLength {
		return ErrInvalidClientID
	}
	return nil
}

// PingrespPacket represents an MQTT-SN PINGRESP message.
// MQTT-SN v1.2 spec: Section 5.4.20
type PingrespPacket struct{}

// Type returns the message type.
func (p *PingrespPacket) Type() MsgType { return MsgTypePingresp }

// Encode writes the message to the writer.
func (p *PingrespPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), nil)
}

// Decode reads the message body from the reader.
func (p *PingrespPacket) Decode(r io.Reader, header Header) (int, error) {
	return decodeEmpty(r, header, MsgTypePingresp)
}

// Validate validates the message contents.
func (p *PingrespPacket) Validate() error { return nil }
