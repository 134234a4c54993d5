package mqttsn

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketInterfaces(t *testing.T) {
	var _ PacketWithMsgID = &RegisterPacket{}
	var _ PacketWithMsgID = &PublishPacket{}
	var _ PacketWithMsgID = &SubscribePacket{}
	var _ PacketWithMsgID = &UnsubackPacket{}

	var _ AckPacket = &ConnackPacket{}
	var _ AckPacket = &RegackPacket{}
	var _ AckPacket = &PubackPacket{}
	var _ AckPacket = &SubackPacket{}
	var _ AckPacket = &WillRespPacket{}

	assert.Equal(t, ReturnCongestion, (&PubackPacket{ReturnCode: ReturnCongestion}).Code())
	assert.Equal(t, uint16(9), (&SubscribePacket{MsgID: 9}).MessageID())
}

func TestConnectPacketValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, (&ConnectPacket{ClientID: "sensor"}).Validate())
		assert.NoError(t, (&ConnectPacket{ClientID: strings.Repeat("a", MaxClientIDLength)}).Validate())
	})

	t.Run("empty client id", func(t *testing.T) {
		assert.ErrorIs(t, (&ConnectPacket{}).Validate(), ErrInvalidClientID)
	})

	t.Run("client id too long", func(t *testing.T) {
		p := &ConnectPacket{ClientID: strings.Repeat("a", MaxClientIDLength+1)}
		assert.ErrorIs(t, p.Validate(), ErrInvalidClientID)
	})
}

func TestPublishPacketValidate(t *testing.T) {
	tests := []struct {
		name    string
		packet  PublishPacket
		wantErr error
	}{
		{name: "qos0 without msg id", packet: PublishPacket{QoS: QoS0, TopicID: 1}},
		{name: "qos minus one", packet: PublishPacket{QoS: QoSMinus1, TopicIDType: TopicIDTypePredefined, TopicID: 1}},
		{name: "qos1 with msg id", packet: PublishPacket{QoS: QoS1, TopicID: 1, MsgID: 1}},
		{name: "qos1 without msg id", packet: PublishPacket{QoS: QoS1, TopicID: 1}, wantErr: ErrMsgIDRequired},
		{name: "qos2 without msg id", packet: PublishPacket{QoS: QoS2, TopicID: 1}, wantErr: ErrMsgIDRequired},
		{name: "reserved topic type", packet: PublishPacket{TopicIDType: 3}, wantErr: ErrInvalidTopicType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.packet.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPublishPacketFlags(t *testing.T) {
	p := &PublishPacket{
		DUP:         true,
		QoS:         QoS1,
		Retain:      true,
		TopicIDType: TopicIDTypeShort,
		TopicID:     uint16('a')<<8 | uint16('b'),
		MsgID:       3,
	}

	data, err := EncodePacket(p)
	require.NoError(t, err)
	assert.Equal(t, byte(0xb2), data[2])

	got, err := ReadPacket(data)
	require.NoError(t, err)
	assert.Equal(t, p.TopicID, got.(*PublishPacket).TopicID)
	assert.Nil(t, got.(*PublishPacket).Data)
}

func TestSubscribePacketValidate(t *testing.T) {
	tests := []struct {
		name    string
		packet  SubscribePacket
		wantErr error
	}{
		{name: "by name", packet: SubscribePacket{MsgID: 1, TopicName: "a/#"}},
		{name: "short", packet: SubscribePacket{MsgID: 1, TopicIDType: TopicIDTypeShort, TopicName: "ab"}},
		{name: "predefined", packet: SubscribePacket{MsgID: 1, TopicIDType: TopicIDTypePredefined, TopicID: 4}},
		{name: "no msg id", packet: SubscribePacket{TopicName: "a"}, wantErr: ErrMsgIDRequired},
		{name: "empty name", packet: SubscribePacket{MsgID: 1}, wantErr: ErrInvalidTopic},
		{name: "short name wrong length", packet: SubscribePacket{MsgID: 1, TopicIDType: TopicIDTypeShort, TopicName: "abc"}, wantErr: ErrInvalidTopic},
		{name: "predefined zero", packet: SubscribePacket{MsgID: 1, TopicIDType: TopicIDTypePredefined}, wantErr: ErrInvalidTopic},
		{name: "reserved type", packet: SubscribePacket{MsgID: 1, TopicIDType: 3}, wantErr: ErrInvalidTopicType},
		{name: "qos minus one", packet: SubscribePacket{MsgID: 1, TopicName: "a", QoS: QoSMinus1}, wantErr: ErrInvalidQoS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.packet.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUnsubscribeOmitsQoS(t *testing.T) {
	p := &SubscribePacket{Unsubscribe: true, QoS: QoS1, MsgID: 1, TopicName: "a/b"}

	data, err := EncodePacket(p)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeUnsubscribe, MsgType(data[1]))
	assert.Equal(t, byte(0x00), data[2])
}

func TestRegisterPacketValidate(t *testing.T) {
	assert.NoError(t, (&RegisterPacket{MsgID: 1, TopicName: "a"}).Validate())
	assert.ErrorIs(t, (&RegisterPacket{MsgID: 1}).Validate(), ErrInvalidTopic)
}

func TestGWInfoPacketAddress(t *testing.T) {
	addr := bytes.Repeat([]byte{0xfd}, 16)
	p := &GWInfoPacket{GatewayID: 2, GatewayAddress: addr}

	data, err := EncodePacket(p)
	require.NoError(t, err)
	assert.Len(t, data, 19)

	got, err := ReadPacket(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestWillTopicPacketValidate(t *testing.T) {
	assert.NoError(t, (&WillTopicPacket{Topic: "w", QoS: QoS1}).Validate())
	assert.ErrorIs(t, (&WillTopicPacket{Topic: "w", QoS: QoSMinus1}).Validate(), ErrInvalidQoS)
}

func TestWillPacketTypes(t *testing.T) {
	assert.Equal(t, MsgTypeWillTopic, (&WillTopicPacket{}).Type())
	assert.Equal(t, MsgTypeWillTopicUpd, (&WillTopicPacket{Update: true}).Type())
	assert.Equal(t, MsgTypeWillMsg, (&WillMsgPacket{}).Type())
	assert.Equal(t, MsgTypeWillMsgUpd, (&WillMsgPacket{Update: true}).Type())
	assert.Equal(t, MsgTypeWillTopicResp, (&WillRespPacket{}).Type())
	assert.Equal(t, MsgTypeWillMsgResp, (&WillRespPacket{Message: true}).Type())
}

func TestDisconnectPacket(t *testing.T) {
	t.Run("plain disconnect", func(t *testing.T) {
		p := &DisconnectPacket{Duration: NoDuration}
		assert.False(t, p.IsSleep())
		assert.NoError(t, p.Validate())
	})

	t.Run("sleep", func(t *testing.T) {
		p := &DisconnectPacket{Duration: 0}
		assert.True(t, p.IsSleep())
	})

	t.Run("duration too large", func(t *testing.T) {
		p := &DisconnectPacket{Duration: 0x10000}
		assert.ErrorIs(t, p.Validate(), ErrFieldTooLong)
	})
}

func TestPingreqPacketValidate(t *testing.T) {
	assert.NoError(t, (&PingreqPacket{}).Validate())
	assert.NoError(t, (&PingreqPacket{ClientID: "c"}).Validate())
	assert.ErrorIs(t, (&PingreqPacket{ClientID: strings.Repeat("x", 24)}).Validate(), ErrInvalidClientID)
}

func TestDecodeRejectsWrongHeaderType(t *testing.T) {
	header := Header{Length: 3, MsgType: MsgTypeConnack}
	packets := []Packet{
		&AdvertisePacket{}, &SearchGWPacket{}, &GWInfoPacket{}, &ConnectPacket{},
		&WillTopicReqPacket{}, &WillMsgReqPacket{}, &WillTopicPacket{}, &WillMsgPacket{},
		&WillRespPacket{}, &RegisterPacket{}, &RegackPacket{}, &PublishPacket{},
		&PubackPacket{}, &SubscribePacket{}, &SubackPacket{}, &UnsubackPacket{},
		&PingreqPacket{}, &PingrespPacket{}, &DisconnectPacket{},
	}

	for _, p := range packets {
		t.Run(p.Type().String(), func(t *testing.T) {
			_, err := p.Decode(bytes.NewReader([]byte{0x00}), header)
			assert.ErrorIs(t, err, ErrInvalidMsgType)
		})
	}
}

func TestReturnCode(t *testing.T) {
	tests := []struct {
		code     ReturnCode
		name     string
		valid    bool
		accepted bool
	}{
		{ReturnAccepted, "accepted", true, true},
		{ReturnCongestion, "rejected: congestion", true, false},
		{ReturnInvalidTopicID, "rejected: invalid topic id", true, false},
		{ReturnNotSupported, "rejected: not supported", true, false},
		{ReturnCode(0x04), "reserved", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.code.String())
			assert.Equal(t, tt.valid, tt.code.Valid())
			assert.Equal(t, tt.accepted, tt.code.IsAccepted())
		})
	}
}
