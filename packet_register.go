package mqttsn

import "io"

// RegisterPacket represents an MQTT-SN REGISTER message.
// Sent by the client with TopicID 0, and by the gateway to announce a topic id.
// MQTT-SN v1.2 spec: Section 5.4.10
type RegisterPacket struct {
	TopicID   uint16
	MsgID     uint16
	TopicName string
}

// Type returns the message type.
func (p *RegisterPacket) Type() MsgType { return MsgTypeRegister }

// MessageID returns the message identifier.
func (p *RegisterPacket) MessageID() uint16 { return p.MsgID }

// Encode writes the message to the writer.
func (p *RegisterPacket) Encode(w io.Writer) (int, error) {
	var b bodyWriter
	b.putUint16(p.TopicID)
	b.putUint16(p.MsgID)
	b.putString(p.TopicName)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *RegisterPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeRegister {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	p.TopicID = br.readUint16()
	p.MsgID = br.readUint16()
	p.TopicName = string(br.rest())
	return n, br.done()
}

// Validate validates the message contents.
func (p *RegisterPacket) Validate() error {
	if p.TopicName == "" {
		return ErrInvalidTopic
	}
	return nil
}

// RegackPacket represents an MQTT-SN REGACK message.
// MQTT-SN v1.2 spec: Section 5.4.11
type RegackPacket struct {
	TopicID    uint16
	MsgID      uint16
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *RegackPacket) Type() MsgType { return MsgTypeRegack }

// MessageID returns the message identifier.
func (p *RegackPacket) MessageID() uint16 { return p.MsgID }

// Code returns the return code.
func (p *RegackPacket) Code() ReturnCode { return p.ReturnCode }

// Encode writes the message to the writer.
func (p *RegackPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), encodeTopicAck(p.TopicID, p.MsgID, p.ReturnCode))
}

// Decode reads the message body from the reader.
func (p *RegackPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeRegack {
		return 0, ErrInvalidMsgType
	}
	return decodeTopicAck(r, header, &p.TopicID, &p.MsgID, &p.ReturnCode)
}

// Validate validates the message contents.
func (p *RegackPacket) Validate() error { return nil }

// encodeTopicAck builds the body shared by REGACK and PUBACK.
func encodeTopicAck(topicID, msgID uint16, code ReturnCode) []byte {
	var b bodyWriter
	b.putUint16(topicID)
	b.putUint16(msgID)
	b.putByte(byte(code))
	return b.buf
}

// decodeTopicAck reads the body shared by REGACK and PUBACK.
func decodeTopicAck(r io.Reader, header Header, topicID, msgID *uint16, code *ReturnCode) (int, error) {
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	*topicID = br.readUint16()
	*msgID = br.readUint16()
	*code = ReturnCode(br.readByte())
	return n, br.done()
}
