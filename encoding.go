package mqttsn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encoding errors.
var (
	ErrMalformedPacket   = errors.New("malformed packet")
	ErrInvalidQoS        = errors.New("invalid QoS level")
	ErrInvalidTopicType  = errors.New("invalid topic id type")
	ErrFieldTooLong      = errors.New("field exceeds maximum length")
	ErrTrailingBytes     = errors.New("trailing bytes after message body")
	ErrUnexpectedLength  = errors.New("message body shorter than declared")
	ErrProtocolIDInvalid = errors.New("invalid protocol id")
)

// QoS is the MQTT-SN quality of service level carried in the flags octet.
type QoS byte

const (
	// QoS0 is at-most-once delivery.
	QoS0 QoS = 0
	// QoS1 is at-least-once delivery.
	QoS1 QoS = 1
	// QoS2 is exactly-once delivery. Decoded but never sent by this client.
	QoS2 QoS = 2
	// QoSMinus1 is the connectionless publish level (flag value 0b11).
	QoSMinus1 QoS = 3
)

// TopicIDType identifies how the topic field of a message is interpreted.
type TopicIDType byte

const (
	// TopicIDTypeNormal is a registered topic id, or a topic name in SUBSCRIBE/UNSUBSCRIBE.
	TopicIDTypeNormal TopicIDType = 0x00
	// TopicIDTypePredefined is a topic id agreed with the gateway in advance.
	TopicIDTypePredefined TopicIDType = 0x01
	// TopicIDTypeShort is a two-character topic name.
	TopicIDTypeShort TopicIDType = 0x02
)

// String returns the string representation of the topic id type.
func (t TopicIDType) String() string {
	switch t {
	case TopicIDTypeNormal:
		return "normal"
	case TopicIDTypePredefined:
		return "predefined"
	case TopicIDTypeShort:
		return "short"
	default:
		return "reserved"
	}
}

const (
	flagDUP          = 0x80
	flagQoSMask      = 0x60
	flagQoSShift     = 5
	flagRetain       = 0x10
	flagWill         = 0x08
	flagCleanSession = 0x04
	flagTopicIDMask  = 0x03
)

// Flags is the decoded MQTT-SN flags octet.
// MQTT-SN v1.2 spec: Section 5.3.4
type Flags struct {
	DUP          bool
	QoS          QoS
	Retain       bool
	Will         bool
	CleanSession bool
	TopicIDType  TopicIDType
}

// Encode packs the flags into a single octet.
func (f Flags) Encode() byte {
	var b byte
	if f.DUP {
		b |= flagDUP
	}
	b |= (byte(f.QoS) << flagQoSShift) & flagQoSMask
	if f.Retain {
		b |= flagRetain
	}
	if f.Will {
		b |= flagWill
	}
	if f.CleanSession {
		b |= flagCleanSession
	}
	b |= byte(f.TopicIDType) & flagTopicIDMask
	return b
}

// decodeFlags unpacks a flags octet.
func decodeFlags(b byte) Flags {
	return Flags{
		DUP:          b&flagDUP != 0,
		QoS:          QoS((b & flagQoSMask) >> flagQoSShift),
		Retain:       b&flagRetain != 0,
		Will:         b&flagWill != 0,
		CleanSession: b&flagCleanSession != 0,
		TopicIDType:  TopicIDType(b & flagTopicIDMask),
	}
}

// bodyWriter accumulates a message body.
type bodyWriter struct {
	buf []byte
}

func (b *bodyWriter) putByte(v byte) {
	b.buf = append(b.buf, v)
}

func (b *bodyWriter) putUint16(v uint16) {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
}

func (b *bodyWriter) putBytes(v []byte) {
	b.buf = append(b.buf, v...)
}

func (b *bodyWriter) putString(v string) {
	b.buf = append(b.buf, v...)
}

// writeMessage writes header and body for the message type.
func writeMessage(w io.Writer, t MsgType, body []byte) (int, error) {
	if len(body)+extendedHeaderSize > maxMessageLength {
		return 0, ErrLengthTooLarge
	}

	header := newHeader(t, len(body))
	n, err := header.Encode(w)
	if err != nil {
		return n, err
	}
	if len(body) == 0 {
		return n, nil
	}

	n2, err := w.Write(body)
	return n + n2, err
}

// readBody reads exactly the body announced by the header.
func readBody(r io.Reader, header Header) ([]byte, int, error) {
	bodyLen := header.BodyLength()
	if bodyLen < 0 {
		return nil, 0, ErrInvalidLength
	}
	if bodyLen == 0 {
		return nil, 0, nil
	}

	body := make([]byte, bodyLen)
	n, err := io.ReadFull(r, body)
	if err != nil {
		return nil, n, fmt.Errorf("%w: %w", ErrUnexpectedLength, err)
	}
	return body, n, nil
}

// bodyReader walks a decoded message body.
type bodyReader struct {
	data []byte
	pos  int
	err  error
}

func (r *bodyReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.data)-r.pos < n {
		r.err = ErrMalformedPacket
		return false
	}
	return true
}

func (r *bodyReader) readByte() byte {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *bodyReader) readUint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

// rest returns a copy of all remaining octets.
func (r *bodyReader) rest() []byte {
	if r.err != nil || r.pos >= len(r.data) {
		return nil
	}
	out := make([]byte, len(r.data)-r.pos)
	copy(out, r.data[r.pos:])
	r.pos = len(r.data)
	return out
}

func (r *bodyReader) remaining() int {
	return len(r.data) - r.pos
}

// done reports the first decoding error, or ErrTrailingBytes when octets remain.
func (r *bodyReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.data) {
		return ErrTrailingBytes
	}
	return nil
}
