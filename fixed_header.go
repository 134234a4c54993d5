package mqttsn

import (
	"encoding/binary"
	"errors"
	"io"
)

// MsgType represents an MQTT-SN message type.
type MsgType byte

// MQTT-SN message types.
// MQTT-SN v1.2 spec: Section 5.2.2
const (
	MsgTypeAdvertise     MsgType = 0x00
	MsgTypeSearchGW      MsgType = 0x01
	MsgTypeGWInfo        MsgType = 0x02
	MsgTypeConnect       MsgType = 0x04
	MsgTypeConnack       MsgType = 0x05
	MsgTypeWillTopicReq  MsgType = 0x06
	MsgTypeWillTopic     MsgType = 0x07
	MsgTypeWillMsgReq    MsgType = 0x08
	MsgTypeWillMsg       MsgType = 0x09
	MsgTypeRegister      MsgType = 0x0a
	MsgTypeRegack        MsgType = 0x0b
	MsgTypePublish       MsgType = 0x0c
	MsgTypePuback        MsgType = 0x0d
	MsgTypePubcomp       MsgType = 0x0e
	MsgTypePubrec        MsgType = 0x0f
	MsgTypePubrel        MsgType = 0x10
	MsgTypeSubscribe     MsgType = 0x12
	MsgTypeSuback        MsgType = 0x13
	MsgTypeUnsubscribe   MsgType = 0x14
	MsgTypeUnsuback      MsgType = 0x15
	MsgTypePingreq       MsgType = 0x16
	MsgTypePingresp      MsgType = 0x17
	MsgTypeDisconnect    MsgType = 0x18
	MsgTypeWillTopicUpd  MsgType = 0x1a
	MsgTypeWillTopicResp MsgType = 0x1b
	MsgTypeWillMsgUpd    MsgType = 0x1c
	MsgTypeWillMsgResp   MsgType = 0x1d
)

var msgTypeNames = map[MsgType]string{
	MsgTypeAdvertise:     "ADVERTISE",
	MsgTypeSearchGW:      "SEARCHGW",
	MsgTypeGWInfo:        "GWINFO",
	MsgTypeConnect:       "CONNECT",
	MsgTypeConnack:       "CONNACK",
	MsgTypeWillTopicReq:  "WILLTOPICREQ",
	MsgTypeWillTopic:     "WILLTOPIC",
	MsgTypeWillMsgReq:    "WILLMSGREQ",
	MsgTypeWillMsg:       "WILLMSG",
	MsgTypeRegister:      "REGISTER",
	MsgTypeRegack:        "REGACK",
	MsgTypePublish:       "PUBLISH",
	MsgTypePuback:        "PUBACK",
	MsgTypePubcomp:       "PUBCOMP",
	MsgTypePubrec:        "PUBREC",
	MsgTypePubrel:        "PUBREL",
	MsgTypeSubscribe:     "SUBSCRIBE",
	MsgTypeSuback:        "SUBACK",
	MsgTypeUnsubscribe:   "UNSUBSCRIBE",
	MsgTypeUnsuback:      "UNSUBACK",
	MsgTypePingreq:       "PINGREQ",
	MsgTypePingresp:      "PINGRESP",
	MsgTypeDisconnect:    "DISCONNECT",
	MsgTypeWillTopicUpd:  "WILLTOPICUPD",
	MsgTypeWillTopicResp: "WILLTOPICRESP",
	MsgTypeWillMsgUpd:    "WILLMSGUPD",
	MsgTypeWillMsgResp:   "WILLMSGRESP",
}

// String returns the string representation of the message type.
func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid returns true if the message type is defined by MQTT-SN v1.2.
func (t MsgType) Valid() bool {
	_, ok := msgTypeNames[t]
	return ok
}

// Header errors.
var (
	ErrInvalidLength  = errors.New("invalid message length")
	ErrLengthTooLarge = errors.New("message length exceeds 65535 bytes")
)

const (
	// extendedLengthMarker in the first octet announces a three-octet length field.
	extendedLengthMarker = 0x01

	shortHeaderSize    = 2
	extendedHeaderSize = 4

	maxMessageLength = 65535
)

// Header is the MQTT-SN message header: total length and message type.
// MQTT-SN v1.2 spec: Section 5.2
type Header struct {
	// Length is the total message length including the header itself.
	Length  int
	MsgType MsgType

	// Extended is set when the three-octet length form is used.
	Extended bool
}

// Size returns the encoded size of the header.
func (h *Header) Size() int {
	if h.Extended {
		return extendedHeaderSize
	}
	return shortHeaderSize
}

// BodyLength returns the number of octets following the header.
func (h *Header) BodyLength() int {
	return h.Length - h.Size()
}

// headerSize returns the header size for a message with the given body length.
func headerSize(bodyLen int) int {
	if bodyLen+shortHeaderSize < 256 {
		return shortHeaderSize
	}
	return extendedHeaderSize
}

// newHeader builds the header for a message type with the given body length.
func newHeader(t MsgType, bodyLen int) Header {
	size := headerSize(bodyLen)
	return Header{
		Length:   bodyLen + size,
		MsgType:  t,
		Extended: size == extendedHeaderSize,
	}
}

// Encode writes the header to the writer.
// Returns the number of bytes written.
func (h *Header) Encode(w io.Writer) (int, error) {
	if h.Length > maxMessageLength {
		return 0, ErrLengthTooLarge
	}

	if !h.Extended {
		if h.Length < shortHeaderSize || h.Length > 255 {
			return 0, ErrInvalidLength
		}
		return w.Write([]byte{byte(h.Length), byte(h.MsgType)})
	}

	if h.Length < extendedHeaderSize {
		return 0, ErrInvalidLength
	}

	var buf [extendedHeaderSize]byte
	buf[0] = extendedLengthMarker
	binary.BigEndian.PutUint16(buf[1:3], uint16(h.Length))
	buf[3] = byte(h.MsgType)
	return w.Write(buf[:])
}

// Decode reads the header from the reader.
// Returns the number of bytes read.
func (h *Header) Decode(r io.Reader) (int, error) {
	var first [1]byte
	n, err := io.ReadFull(r, first[:])
	if err != nil {
		return n, err
	}

	if first[0] != extendedLengthMarker {
		if first[0] < shortHeaderSize {
			return n, ErrInvalidLength
		}
		h.Length = int(first[0])
		h.Extended = false

		var typ [1]byte
		n2, err := io.ReadFull(r, typ[:])
		n += n2
		if err != nil {
			return n, err
		}
		h.MsgType = MsgType(typ[0])
		return n, nil
	}

	var rest [3]byte
	n2, err := io.ReadFull(r, rest[:])
	n += n2
	if err != nil {
		return n, err
	}

	h.Length = int(binary.BigEndian.Uint16(rest[0:2]))
	if h.Length < extendedHeaderSize {
		return n, ErrInvalidLength
	}
	h.MsgType = MsgType(rest[2])
	h.Extended = true
	return n, nil
}

// PeekMsgType returns the message type of a raw datagram without decoding it.
// The type octet sits at offset 1, or at offset 3 when the extended length form is used.
func PeekMsgType(data []byte) (MsgType, error) {
	offset := 1
	if len(data) > 0 && data[0] == extendedLengthMarker {
		offset = 3
	}
	if len(data) <= offset {
		return 0, ErrInvalidLength
	}
	return MsgType(data[offset]), nil
}
