package mqttsn

import "io"

const (
	// MaxWillTopicLength is the maximum length of a will topic kept by the client.
	MaxWillTopicLength = 32

	// MaxWillMessageLength is the maximum length of a will message kept by the client.
	MaxWillMessageLength = 32
)

// WillTopicReqPacket represents an MQTT-SN WILLTOPICREQ message.
// MQTT-SN v1.2 spec: Section 5.4.7
type WillTopicReqPacket struct{}

// Type returns the message type.
func (p *WillTopicReqPacket) Type() MsgType { return MsgTypeWillTopicReq }

// Encode writes the message to the writer.
func (p *WillTopicReqPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), nil)
}

// Decode reads the message body from the reader.
func (p *WillTopicReqPacket) Decode(r io.Reader, header Header) (int, error) {
	return decodeEmpty(r, header, MsgTypeWillTopicReq)
}

// Validate validates the message contents.
func (p *WillTopicReqPacket) Validate() error { return nil }

// WillMsgReqPacket represents an MQTT-SN WILLMSGREQ message.
// MQTT-SN v1.2 spec: Section 5.4.9
type WillMsgReqPacket struct{}

// Type returns the message type.
func (p *WillMsgReqPacket) Type() MsgType { return MsgTypeWillMsgReq }

// Encode writes the message to the writer.
func (p *WillMsgReqPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), nil)
}

// Decode reads the message body from the reader.
func (p *WillMsgReqPacket) Decode(r io.Reader, header Header) (int, error) {
	return decodeEmpty(r, header, MsgTypeWillMsgReq)
}

// Validate validates the message contents.
func (p *WillMsgReqPacket) Validate() error { return nil }

// WillTopicPacket represents an MQTT-SN WILLTOPIC message.
// It is also used for WILLTOPICUPD, which shares the same layout.
// An empty topic encodes no flags octet and deletes the will.
// MQTT-SN v1.2 spec: Sections 5.4.8 and 5.4.22
type WillTopicPacket struct {
	// Update selects the WILLTOPICUPD message type.
	Update bool
	QoS    QoS
	Retain bool
	Topic  string
}

// Type returns the message type.
func (p *WillTopicPacket) Type() MsgType {
	if p.Update {
		return MsgTypeWillTopicUpd
	}
	return MsgTypeWillTopic
}

// Encode writes the message to the writer.
func (p *WillTopicPacket) Encode(w io.Writer) (int, error) {
	if p.Topic == "" {
		return writeMessage(w, p.Type(), nil)
	}

	var b bodyWriter
	b.putByte(Flags{QoS: p.QoS, Retain: p.Retain}.Encode())
	b.putString(p.Topic)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *WillTopicPacket) Decode(r io.Reader, header Header) (int, error) {
	switch header.MsgType {
	case MsgTypeWillTopic:
		p.Update = false
	case MsgTypeWillTopicUpd:
		p.Update = true
	default:
		return 0, ErrInvalidMsgType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}
	if len(body) == 0 {
		p.Topic = ""
		return n, nil
	}

	br := bodyReader{data: body}
	flags := decodeFlags(br.readByte())
	p.QoS = flags.QoS
	p.Retain = flags.Retain
	p.Topic = string(br.rest())
	return n, br.done()
}

// Validate validates the message contents.
func (p *WillTopicPacket) Validate() error {
	if p.QoS > QoS2 {
		return ErrInvalidQoS
	}
	return nil
}

// WillMsgPacket represents an MQTT-SN WILLMSG message.
// It is also used for WILLMSGUPD, which shares the same layout.
// MQTT-SN v1.2 spec: Sections 5.4.10 and 5.4.24
type WillMsgPacket struct {
	// Update selects the WILLMSGUPD message type.
	Update  bool
	Message []byte
}

// Type returns the message type.
func (p *WillMsgPacket) Type() MsgType {
	if p.Update {
		return MsgTypeWillMsgUpd
	}
	return MsgTypeWillMsg
}

// Encode writes the message to the writer.
func (p *WillMsgPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), p.Message)
}

// Decode reads the message body from the reader.
func (p *WillMsgPacket) Decode(r io.Reader, header Header) (int, error) {
	switch header.MsgType {
	case MsgTypeWillMsg:
		p.Update = false
	case MsgTypeWillMsgUpd:
		p.Update = true
	default:
		return 0, ErrInvalidMsgType
	}

	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}
	p.Message = body
	return n, nil
}

// Validate validates the message contents.
func (p *WillMsgPacket) Validate() error { return nil }

// WillRespPacket represents an MQTT-SN WILLTOPICRESP or WILLMSGRESP message.
// MQTT-SN v1.2 spec: Sections 5.4.23 and 5.4.25
type WillRespPacket struct {
	// Message selects WILLMSGRESP instead of WILLTOPICRESP.
	Message    bool
	ReturnCode ReturnCode
}

// Type returns the message type.
func (p *WillRespPacket) Type() MsgType {
	if p.Message {
		return MsgTypeWillMsgResp
	}
	return MsgTypeWillTopicResp
}

// Code returns the return code.
func (p *WillRespPacket) Code() ReturnCode { return p.ReturnCode }

// Encode writes the message to the writer.
func (p *WillRespPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), []byte{byte(p.ReturnCode)})
}

// Decode reads the message body from the reader.
func (p *WillRespPacket) Decode(r io.Reader, header Header) (int, error) {
	switch header.MsgType {
	case MsgTypeWillTopicResp:
		p.Message = false
	case MsgTypeWillMsgResp:
		p.Message = true
	default:
		return 0, ErrInvalidMsgType
	}
	return decodeReturnCode(r, header, &p.ReturnCode)
}

// Validate validates the message contents.
func (p *WillRespPacket) Validate() error { return nil }

// decodeEmpty checks a message that carries no body.
func decodeEmpty(r io.Reader, header Header, want MsgType) (int, error) {
	if header.MsgType != want {
		return 0, ErrInvalidMsgType
	}
	if header.BodyLength() != 0 {
		return 0, ErrTrailingBytes
	}
	return 0, nil
}
