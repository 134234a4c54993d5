package mqttsn

import "io"

const (
	// ProtocolID is the only protocol id defined by MQTT-SN v1.2.
	ProtocolID = 0x01

	// MaxClientIDLength is the maximum length of a client identifier.
	MaxClientIDLength = 23
)

// ConnectPacket represents an MQTT-SN CONNECT message.
// MQTT-SN v1.2 spec: Section 5.4.5
type ConnectPacket struct {
	Will         bool
	CleanSession bool
	// Duration is the keep-alive interval in seconds.
	Duration uint16
	ClientID string
}

// Type returns the message type.
func (p *ConnectPacket) Type() MsgType { return MsgTypeConnect }

// Encode writes the message to the writer.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	flags := Flags{Will: p.Will, CleanSession: p.CleanSession}

	var b bodyWriter
	b.putByte(flags.Encode())
	b.putByte(ProtocolID)
	b.putUint16(p.Duration)
	b.putString(p.ClientID)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *ConnectPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeConnect {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	flags := decodeFlags(br.readByte())
	protocolID := br.readByte()
	p.Duration = br.readUint16()
	p.ClientID = string(br.rest())
	if err := br.done(); err != nil {
		return n, err
	}
	if protocolID != ProtocolID {
		return n, ErrProtocolIDInvalid
	}

	p.Will = flags.Will
	p.CleanSession = flags.CleanSession
	return n, nil
}

// Validate validates the message contents.
func (p *ConnectPacket) Validate() error {
	if len(p.ClientID) == 0 || len(p.ClientID) > MaxClientIDLength {
		return ErrInvalidClientID
	}
	return nil
}

// ConnackPacket represents an MQTT-SN CONNACK message.
// MQTT-SN v1.2 spec: Section 5.4.6
type ConnackPacket struct {
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *ConnackPacket) Type() MsgType { return MsgTypeConnack }

// Code returns the return code.
func (p *ConnackPacket) Code() ReturnCode { return p.ReturnCode }

// Encode writes the message to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), []byte{byte(p.ReturnCode)})
}

// Decode reads the message body from the reader.
func (p *ConnackPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeConnack {
		return 0, ErrInvalidMsgType
	}
	return decodeReturnCode(r, header, &p.ReturnCode)
}

// Validate validates the message contents.
func (p *ConnackPacket) Validate() error {
	return nil
}

// decodeReturnCode decodes a body consisting of a single return code octet.
func decodeReturnCode(r io.Reader, header Header, code *ReturnCode) (int, error) {
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	*code = ReturnCode(br.readByte())
	return n, br.done()
}
