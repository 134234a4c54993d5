package mqttsn

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidMsgType = errors.New("mqttsn: message type does not match packet")
	ErrUnknownMsgType = errors.New("mqttsn: unknown message type")
	ErrEmptyEncoding  = errors.New("mqttsn: message encoded to zero length")
)

// newPacket returns an empty packet for the message type.
func newPacket(t MsgType) (Packet, error) {
	switch t {
	case MsgTypeAdvertise:
		return &AdvertisePacket{}, nil
	case MsgTypeSearchGW:
		return &SearchGWPacket{}, nil
	case MsgTypeGWInfo:
		return &GWInfoPacket{}, nil
	case MsgTypeConnect:
		return &ConnectPacket{}, nil
	case MsgTypeConnack:
		return &ConnackPacket{}, nil
	case MsgTypeWillTopicReq:
		return &WillTopicReqPacket{}, nil
	case MsgTypeWillTopic, MsgTypeWillTopicUpd:
		return &WillTopicPacket{}, nil
	case MsgTypeWillMsgReq:
		return &WillMsgReqPacket{}, nil
	case MsgTypeWillMsg, MsgTypeWillMsgUpd:
		return &WillMsgPacket{}, nil
	case MsgTypeRegister:
		return &RegisterPacket{}, nil
	case MsgTypeRegack:
		return &RegackPacket{}, nil
	case MsgTypePublish:
		return &PublishPacket{}, nil
	case MsgTypePuback:
		return &PubackPacket{}, nil
	case MsgTypeSubscribe, MsgTypeUnsubscribe:
		return &SubscribePacket{}, nil
	case MsgTypeSuback:
		return &SubackPacket{}, nil
	case MsgTypeUnsuback:
		return &UnsubackPacket{}, nil
	case MsgTypePingreq:
		return &PingreqPacket{}, nil
	case MsgTypePingresp:
		return &PingrespPacket{}, nil
	case MsgTypeDisconnect:
		return &DisconnectPacket{}, nil
	case MsgTypeWillTopicResp, MsgTypeWillMsgResp:
		return &WillRespPacket{}, nil
	default:
		return nil, ErrUnknownMsgType
	}
}

// ReadPacket decodes a single MQTT-SN message from a datagram.
// The declared length must match the datagram length exactly.
func ReadPacket(data []byte) (Packet, error) {
	reader := readerFor(data)
	defer datagramReaders.put(reader)

	var header Header
	n, err := header.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	if header.Length != len(data) || header.Length < n {
		return nil, fmt.Errorf("%w: declared length %d, datagram length %d", ErrMalformedPacket, header.Length, len(data))
	}

	packet, err := newPacket(header.MsgType)
	if err != nil {
		return nil, fmt.Errorf("%w: 0x%02x", err, byte(header.MsgType))
	}

	if _, err := packet.Decode(reader, header); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPacket, header.MsgType, err)
	}

	return packet, nil
}

// WritePacket validates the packet and writes it to the writer.
func WritePacket(w io.Writer, packet Packet) (int, error) {
	if err := packet.Validate(); err != nil {
		return 0, err
	}
	return packet.Encode(w)
}

// EncodePacket validates the packet and returns its wire form in a freshly
// allocated buffer owned by the caller.
func EncodePacket(packet Packet) ([]byte, error) {
	buf := encodeBuffers.get()
	defer encodeBuffers.put(buf)

	n, err := WritePacket(buf, packet)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyEncoding
	}

	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// bytesReader wraps a byte slice for io.Reader interface.
type bytesReader struct {
	data []byte
	pos  int
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// bytesBuffer is a simple buffer for encoding.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bytesBuffer) Bytes() []byte {
	return b.data
}
