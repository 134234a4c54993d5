package mqttsn

import "io"

// AdvertisePacket represents an MQTT-SN ADVERTISE message.
// MQTT-SN v1.2 spec: Section 5.4.2
type AdvertisePacket struct {
	GatewayID uint8
	// Duration is the interval in seconds until the next ADVERTISE.
	Duration uint16
}

// Type returns the message type.
func (p *AdvertisePacket) Type() MsgType { return MsgTypeAdvertise }

// Encode writes the message to the writer.
func (p *AdvertisePacket) Encode(w io.Writer) (int, error) {
	var b bodyWriter
	b.putByte(p.GatewayID)
	b.putUint16(p.Duration)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *AdvertisePacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeAdvertise {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	p.GatewayID = br.readByte()
	p.Duration = br.readUint16()
	return n, br.done()
}

// Validate validates the message contents.
func (p *AdvertisePacket) Validate() error {
	return nil
}

// SearchGWPacket represents an MQTT-SN SEARCHGW message.
// MQTT-SN v1.2 spec: Section 5.4.3
type SearchGWPacket struct {
	// Radius is the broadcast radius (hops) of the search.
	Radius uint8
}

// Type returns the message type.
func (p *SearchGWPacket) Type() MsgType { return MsgTypeSearchGW }

// Encode writes the message to the writer.
func (p *SearchGWPacket) Encode(w io.Writer) (int, error) {
	return writeMessage(w, p.Type(), []byte{p.Radius})
}

// Decode reads the message body from the reader.
func (p *SearchGWPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeSearchGW {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	p.Radius = br.readByte()
	return n, br.done()
}

// Validate validates the message contents.
func (p *SearchGWPacket) Validate() error {
	return nil
}

// GWInfoPacket represents an MQTT-SN GWINFO message.
// MQTT-SN v1.2 spec: Section 5.4.4
type GWInfoPacket struct {
	GatewayID uint8
	// GatewayAddress is only present when the GWINFO is sent by another client.
	GatewayAddress []byte
}

// Type returns the message type.
func (p *GWInfoPacket) Type() MsgType { return MsgTypeGWInfo }

// Encode writes the message to the writer.
func (p *GWInfoPacket) Encode(w io.Writer) (int, error) {
	var b bodyWriter
	b.putByte(p.GatewayID)
	b.putBytes(p.GatewayAddress)
	return writeMessage(w, p.Type(), b.buf)
}

// Decode reads the message body from the reader.
func (p *GWInfoPacket) Decode(r io.Reader, header Header) (int, error) {
	if header.MsgType != MsgTypeGWInfo {
		return 0, ErrInvalidMsgType
	}
	body, n, err := readBody(r, header)
	if err != nil {
		return n, err
	}

	br := bodyReader{data: body}
	p.GatewayID = br.readByte()
	p.GatewayAddress = br.rest()
	return n, br.done()
}

// Validate validates the message contents.
func (p *GWInfoPacket) Validate() error {
	return nil
}
