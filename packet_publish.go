package mqttsn

import "io"

// PublishPacket represents an MQTT-SN PUBLISH message.
// MQTT-SN v1.2 spec: Section 5.4.12
type PublishPacket struct {
	DUP         bool
	QoS         QoS
	Retain      bool
	TopicIDType TopicIDType
	TopicID     uint16
	// MsgID is zero for QoS 0 and -1.
	MsgID uint16
	Data  []byte
}

// Type returns the message type.
func (p *PublishPacket) Type() MsgType { return MsgTypePublish }

// MessageID returns the message identifier.
func (p *PublishPacket) MessageID() uint16 { return p.MsgID }

// Encode writes the message to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	flags := Flags{
		DUP:         p.DUP,
		QoS:         p.QoS,
		Retain:      p.Retain,
		TopicIDType: p.TopicIDType,
	}

	var b bodyWriter
	b.putByte(flags.Encode())
	b.putUint16(p.TopicID)
	b.putUint16(p.MsgID)
	b.putBytes(p.Data)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *PublishPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypePublish {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	flags := decodeFlags(br.readByte())
	p.DUP = flags.DUP
	p.QoS = flags.QoS
	p.Retain = flags.Retain
	p.TopicIDType = flags.TopicIDType
	p.TopicID = br.readUint16()
	p.MsgID = br.readUint16()
	p.Data = br.rest()
	return n, br.done()
}

// Validate validates the message contents.
func (p *PublishPacket) Validate() error {
	if p.TopicIDType > TopicIDTypeShort {
		return ErrInvalidTopicType
	}
	if p.QoS == QoS1 || p.QoS == QoS2 {
		if p.MsgID == 0 {
			return ErrMsgIDRequired
		}
	}
	return nil
}

// PubackPacket represents an MQTT-SN PUBACK message.
// MQTT-SN v1.2 spec: Section 5.4.13
type PubackPacket struct {
	TopicID    uint16
	MsgID      uint16
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *PubackPacket) Type() MsgType { return MsgTypePuback }

// MessageID returns the message identifier.
func (p *PubackPacket) MessageID() uint16 { return p.MsgID }

// Code returns the return code.
func (p *PubackPacket) Code() ReturnCode { return p.ReturnCode }

// Encode writes the message to the writer.
func (p *PubackPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), encodeTopicAck(p.TopicID, p.MsgID, p.ReturnCode))
}

// Decode reads the message body from the reader.
func (p *PubackPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypePuback {
		return 0, ErrInvalidMsgType
	}
	return decodeTopicAck(r, header, &p.TopicID, &p.MsgID, &p.ReturnCode)
}

// Validate validates the message contents.
func (p *PubackPacket) Validate() error { return nil }
