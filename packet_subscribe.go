package mqttsn

import "io"

// SubscribePacket represents an MQTT-SN SUBSCRIBE message.
// It is also used for UNSUBSCRIBE, which shares the same layout.
// With TopicIDTypeNormal the topic is carried by name, otherwise by id
// (predefined) or as a two-character short name.
// MQTT-SN v1.2 spec: Sections 5.4.15 and 5.4.17
type SubscribePacket struct {
	// Unsubscribe selects the UNSUBSCRIBE message type.
	Unsubscribe bool
	DUP         bool
	QoS         QoS
	TopicIDType TopicIDType
	MsgID       uint16
	TopicName   string
	TopicID     uint16
}

// Type returns the message type.
func (p *SubscribePacket) Type() MsgType {
	if p.Unsubscribe {
		return MsgTypeUnsubscribe
	}
	return MsgTypeSubscribe
}

// MessageID returns the message identifier.
func (p *SubscribePacket) MessageID() uint16 { return p.MsgID }

// Encode writes the message to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	flags := Flags{DUP: p.DUP, TopicIDType: p.TopicIDType}
	if !p.Unsubscribe {
		flags.QoS = p.QoS
	}

	var b bodyWriter
	b.putByte(flags.Encode())
	b.putUint16(p.MsgID)
	switch p.TopicIDType {
	case TopicIDTypeNormal, TopicIDTypeShort:
		b.putString(p.TopicName)
	default:
		b.putUint16(p.TopicID)
	}
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *SubscribePacket) Decode(r io.Reader, header Header) (int, error) {
	switch header.MsgType {
	case MsgTypeSubscribe:
		p.Unsubscribe = false
	case MsgTypeUnsubscribe:
		p.Unsubscribe = true
	default:
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
	p.TopicIDType = flags.TopicIDType
	p.MsgID = br.readUint16()
	switch p.TopicIDType {
	case TopicIDTypeNormal, TopicIDTypeShort:
		p.TopicName = string(br.rest())
	case TopicIDTypePredefined:
		p.TopicID = br.readUint16()
	default:
		return n, ErrInvalidTopicType
	}
	return n, br.done()
}

// Validate validates the message contents.
func (p *SubscribePacket) Validate() error {
	if p.MsgID == 0 {
		return ErrMsgIDRequired
	}
	switch p.TopicIDType {
	case TopicIDTypeNormal:
		if p.TopicName == "" {
			return ErrInvalidTopic
		}
	case TopicIDTypeShort:
		if len(p.TopicName) != 2 {
			return ErrInvalidTopic
		}
	case TopicIDTypePredefined:
		if p.TopicID == 0 {
			return ErrInvalidTopic
		}
	default:
		return ErrInvalidTopicType
	}
	if p.QoS > QoS2 && !p.Unsubscribe {
		return ErrInvalidQoS
	}
	return nil
}

// SubackPacket represents an MQTT-SN SUBACK message.
// MQTT-SN v1.2 spec: Section 5.4.16
type SubackPacket struct {
	// QoS is the granted QoS level.
	QoS        QoS
	TopicID    uint16
	MsgID      uint16
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *SubackPacket) Type() MsgType { return MsgTypeSuback }

// MessageID returns the message identifier.
func (p *SubackPacket) MessageID() uint16 { return p.MsgID }

// Code returns the return code.
func (p *SubackPacket) Code() ReturnCode { return p.ReturnCode }

// Encode writes the message to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	var b bodyWriter
	b.putByte(Flags{QoS: p.QoS}.Encode())
	b.putBytes(encodeTopicAck(p.TopicID, p.MsgID, p.ReturnCode))
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *SubackPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeSuback {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	p.QoS = decodeFlags(br.readByte()).QoS
	p.TopicID = br.readUint16()
	p.MsgID = br.readUint16()
	p.ReturnCode = ReturnCode(br.readByte())
	return n, br.done()
}

// Validate validates the message contents.
func (p *SubackPacket) Validate() error { return nil }

// UnsubackPacket represents an MQTT-SN UNSUBACK message.
// MQTT-SN v1.2 spec: Section 5.4.18
type UnsubackPacket struct {
	MsgID uint16
}

// Type returns the message type.
func (p *UnsubackPacket) Type() MsgType { return MsgTypeUnsuback }

// MessageID returns the message identifier.
func (p *UnsubackPacket) MessageID() uint16 { return p.MsgID }

// Encode writes the message to the writer.
func (p *UnsubackPacket) Encode(w io.Writer) (int, error) {
	var b bodyWriter
	b.putUint16(p.MsgID)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *UnsubackPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeUnsuback {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	p.MsgID = br.readUint16()
	return n, br.done()
}

// Validate validates the message contents.
func (p *UnsubackPacket) Validate() error { return nil }
