package mqttsn

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnginePublish(t *testing.T) {
	t.Run("qos1 acknowledged once", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		id, err := h.engine.Publish(7, []byte{1, 2, 3}, QoS1)
		require.NoError(t, err)
		assert.Equal(t, uint16(1), id)
		assert.Equal(t, 1, h.engine.InFlight())
		assert.Equal(t, []byte{0x0a, 0x0c, 0x20, 0x00, 0x07, 0x00, 0x01, 0x01, 0x02, 0x03}, h.transport.last().data)

		events, err := h.deliver(&PubackPacket{TopicID: 7, MsgID: id, ReturnCode: ReturnAccepted})
		require.NoError(t, err)
		assert.Equal(t, []Event{PublishedEvent{MsgID: 1, TopicID: 7}}, events)
		assert.Equal(t, 0, h.engine.InFlight())

		hist := h.metrics.GetHistogram(MetricAckLatency, MetricLabels{LabelMsgType: MsgTypePublish.String()})
		require.NotNil(t, hist)
		assert.Equal(t, uint64(1), hist.Count())

		// a repeated PUBACK matches nothing
		events, err = h.deliver(&PubackPacket{TopicID: 7, MsgID: id, ReturnCode: ReturnAccepted})
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, float64(1), h.metrics.GetCounter(MetricPacketsDropped, MetricLabels{LabelReason: dropReasonNoMatch}).Value())
	})

	t.Run("qos0 is sent once without an id", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		id, err := h.engine.Publish(7, []byte("x"), QoS0)
		require.NoError(t, err)
		assert.Zero(t, id)
		assert.Equal(t, 0, h.engine.InFlight())
		require.Len(t, h.transport.sent, 1)
		assert.Equal(t, []byte{0x08, 0x0c, 0x00, 0x00, 0x07, 0x00, 0x00, 'x'}, h.transport.last().data)
	})

	t.Run("congestion ends the exchange", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		id, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)

		events, err := h.deliver(&PubackPacket{TopicID: 7, MsgID: id, ReturnCode: ReturnCongestion})
		require.NoError(t, err)
		require.Len(t, events, 1)

		ev, ok := events[0].(*TimeoutEvent)
		require.True(t, ok)
		assert.ErrorIs(t, ev, ErrRejectedCongestion)
		assert.Equal(t, MsgTypePublish, ev.MsgType)
		assert.Equal(t, id, ev.MsgID)
		assert.Equal(t, 0, h.engine.InFlight())
		assert.Equal(t, StateConnected, h.engine.State())
	})

	t.Run("invalid topic id is a protocol violation", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		id, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)

		events, err := h.deliver(&PubackPacket{TopicID: 7, MsgID: id, ReturnCode: ReturnInvalidTopicID})
		assert.Empty(t, events)

		var pv *ProtocolViolationError
		require.ErrorAs(t, err, &pv)
		assert.Equal(t, MsgTypePuback, pv.MsgType)
		assert.Equal(t, id, pv.MsgID)
		assert.Equal(t, ReturnInvalidTopicID, pv.ReturnCode)
		assert.Equal(t, 1, h.engine.InFlight())
	})

	t.Run("retransmits until the budget runs out", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		id, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)

		assert.Empty(t, h.fire())
		assert.Empty(t, h.fire())
		events := h.fire()
		require.Len(t, events, 1)

		ev := events[0].(*TimeoutEvent)
		assert.ErrorIs(t, ev, ErrRetransmissionTimeout)
		assert.Equal(t, id, ev.MsgID)
		assert.Equal(t, 3, h.transport.count(MsgTypePublish))
		assert.Equal(t, StateConnected, h.engine.State())
		assert.Equal(t, 0, h.engine.InFlight())
	})

	t.Run("allowed while asleep", func(t *testing.T) {
		h := newHarness(t)
		h.connect()
		require.NoError(t, h.engine.Sleep(30))
		_, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
		require.NoError(t, err)
		require.Equal(t, StateAsleep, h.engine.State())

		_, err = h.engine.Publish(7, []byte{1}, QoS0)
		assert.NoError(t, err)
	})
}

func TestEnginePublishErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Publish(7, []byte{1}, QoS1)
	assert.ErrorIs(t, err, ErrInvalidState)

	h.connect()

	tests := []struct {
		name    string
		topicID uint16
		payload []byte
		qos     QoS
		wantErr error
	}{
		{name: "zero topic id", topicID: 0, payload: []byte{1}, qos: QoS1, wantErr: ErrInvalidArgument},
		{name: "empty payload", topicID: 7, payload: nil, qos: QoS1, wantErr: ErrInvalidArgument},
		{name: "oversized payload", topicID: 7, payload: bytes.Repeat([]byte{1}, maxPayloadLength+1), qos: QoS0, wantErr: ErrInvalidArgument},
		{name: "qos2", topicID: 7, payload: []byte{1}, qos: QoS2, wantErr: ErrInvalidQoS},
		{name: "qos minus one", topicID: 7, payload: []byte{1}, qos: QoSMinus1, wantErr: ErrInvalidQoS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Publish(tt.topicID, tt.payload, tt.qos)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, h.transport.sent)
}

func TestEngineQueueFull(t *testing.T) {
	h := newHarness(t)
	h.connect()

	for range DefaultQueueCapacity {
		_, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)
	}

	_, err := h.engine.Publish(7, []byte{1}, QoS1)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, DefaultQueueCapacity, h.engine.InFlight())
	assert.Len(t, h.transport.sent, DefaultQueueCapacity)
}

func TestEngineConnectKeepsSessionOnFailure(t *testing.T) {
	h := newHarness(t)
	h.connect()
	require.NoError(t, h.engine.Sleep(30))
	_, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
	require.NoError(t, err)
	require.Equal(t, StateAsleep, h.engine.State())

	for range DefaultQueueCapacity {
		_, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)
	}
	h.transport.sent = nil

	other := RemoteFromAddrPort(netip.MustParseAddrPort("[fd00::9]:47193"))
	err = h.engine.Connect(other, 9, DefaultConnectOptions("c2"))
	require.ErrorIs(t, err, ErrQueueFull)

	assert.Equal(t, StateAsleep, h.engine.State())
	assert.Equal(t, "c1", h.engine.ClientID())
	gateway, id := h.engine.Gateway()
	assert.Equal(t, testGateway, gateway)
	assert.Equal(t, uint8(1), id)
	assert.Empty(t, h.transport.sent)

	// the pending publishes still go to the original gateway
	assert.Empty(t, h.fire())
	require.NotEmpty(t, h.transport.sent)
	assert.Equal(t, testGateway, h.transport.last().remote)
	assert.Equal(t, MsgTypePublish, mustPeek(t, h.transport.last().data))
}

func mustPeek(t *testing.T, data []byte) MsgType {
	t.Helper()

	mt, err := PeekMsgType(data)
	require.NoError(t, err)
	return mt
}

func TestEngineMessageIDs(t *testing.T) {
	h := newHarness(t)
	h.connect()

	var ids []uint16
	for _, name := range []string{"a", "b", "c"} {
		id, err := h.engine.Register(name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []uint16{1, 2, 3}, ids)

	// the id matched on the ack is the one assigned at enqueue
	events, err := h.deliver(&RegackPacket{TopicID: 20, MsgID: 2, ReturnCode: ReturnAccepted})
	require.NoError(t, err)
	assert.Equal(t, []Event{RegisteredEvent{MsgID: 2, TopicID: 20, TopicName: "b"}}, events)

	id, err := h.engine.Publish(20, []byte{1}, QoS1)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), id)

	t.Run("wraps skipping zero", func(t *testing.T) {
		h := newHarness(t)
		h.connect()
		h.engine.msgIDs.next = 0xffff

		id, err := h.engine.Register("a")
		require.NoError(t, err)
		assert.Equal(t, uint16(1), id)
	})
}

func TestEngineRegister(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Register("a/b")
	assert.ErrorIs(t, err, ErrInvalidState)

	h.connect()

	_, err = h.engine.Register("")
	assert.ErrorIs(t, err, ErrInvalidTopic)

	id, err := h.engine.Register("a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0x0a, 0x00, 0x00, 0x00, 0x01, 'a', '/', 'b'}, h.transport.last().data)

	events, err := h.deliver(&RegackPacket{TopicID: 5, MsgID: id, ReturnCode: ReturnAccepted})
	require.NoError(t, err)
	assert.Equal(t, []Event{RegisteredEvent{MsgID: id, TopicID: 5, TopicName: "a/b"}}, events)
	assert.Equal(t, 0, h.engine.InFlight())
}

func TestEngineSubscribe(t *testing.T) {
	h := newHarness(t)
	h.connect()

	id, err := h.engine.Subscribe(TopicName("a/b"), QoS1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
	assert.Equal(t, []byte{0x08, 0x12, 0x20, 0x00, 0x01, 'a', '/', 'b'}, h.transport.last().data)

	events, err := h.deliver(&SubackPacket{QoS: QoS1, TopicID: 5, MsgID: id, ReturnCode: ReturnAccepted})
	require.NoError(t, err)
	assert.Equal(t, []Event{SubscribedEvent{MsgID: id, TopicID: 5, GrantedQoS: QoS1, Topic: TopicName("a/b")}}, events)

	id, err = h.engine.Unsubscribe(TopicName("a/b"))
	require.NoError(t, err)
	assert.Equal(t, uint16(2), id)
	assert.Equal(t, MsgTypeUnsubscribe, MsgType(h.transport.last().data[1]))

	events, err = h.deliver(&UnsubackPacket{MsgID: id})
	require.NoError(t, err)
	assert.Equal(t, []Event{UnsubscribedEvent{MsgID: id, Topic: TopicName("a/b")}}, events)
	assert.Equal(t, 0, h.engine.InFlight())

	t.Run("predefined and short topics", func(t *testing.T) {
		id, err := h.engine.Subscribe(PredefinedTopic(9), QoS0)
		require.NoError(t, err)
		assert.Equal(t, encoded(t, &SubscribePacket{TopicIDType: TopicIDTypePredefined, MsgID: id, TopicID: 9}), h.transport.last().data)

		id, err = h.engine.Subscribe(TopicName("ab"), QoS0)
		require.NoError(t, err)
		assert.Equal(t, encoded(t, &SubscribePacket{TopicIDType: TopicIDTypeShort, MsgID: id, TopicName: "ab"}), h.transport.last().data)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := h.engine.Subscribe(TopicName("a"), QoS2)
		assert.ErrorIs(t, err, ErrInvalidQoS)

		_, err = h.engine.Subscribe(Topic{}, QoS0)
		assert.ErrorIs(t, err, ErrInvalidTopic)

		_, err = h.engine.Unsubscribe(Topic{Name: "a", ID: 1})
		assert.ErrorIs(t, err, ErrInvalidTopic)
	})

	t.Run("ack of the wrong request type is dropped", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		id, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)

		events, err := h.deliver(&SubackPacket{TopicID: 7, MsgID: id, ReturnCode: ReturnAccepted})
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, 1, h.engine.InFlight())
	})
}

func TestEngineWillUpdates(t *testing.T) {
	h := newHarness(t)
	h.connect()

	require.NoError(t, h.engine.WillTopicUpdate("new/will"))
	assert.Equal(t, encoded(t, &WillTopicPacket{Update: true, Topic: "new/will"}), h.transport.last().data)
	assert.ErrorIs(t, h.engine.WillTopicUpdate("other"), ErrDuplicateKey)

	events, err := h.deliver(&WillRespPacket{ReturnCode: ReturnAccepted})
	require.NoError(t, err)
	assert.Equal(t, []Event{WillTopicUpdatedEvent{}}, events)
	assert.Equal(t, "new/will", h.engine.willTopic)

	require.NoError(t, h.engine.WillMessageUpdate([]byte("gone")))
	assert.Equal(t, encoded(t, &WillMsgPacket{Update: true, Message: []byte("gone")}), h.transport.last().data)

	events, err = h.deliver(&WillRespPacket{Message: true, ReturnCode: ReturnAccepted})
	require.NoError(t, err)
	assert.Equal(t, []Event{WillMessageUpdatedEvent{}}, events)
	assert.Equal(t, []byte("gone"), h.engine.willMessage)

	t.Run("rejected update keeps the state", func(t *testing.T) {
		require.NoError(t, h.engine.WillMessageUpdate([]byte("x")))

		events, err := h.deliver(&WillRespPacket{Message: true, ReturnCode: ReturnCongestion})
		require.NoError(t, err)
		require.Len(t, events, 1)

		ev := events[0].(*TimeoutEvent)
		assert.ErrorIs(t, ev, ErrRejectedCongestion)
		assert.Equal(t, MsgTypeWillMsgUpd, ev.MsgType)
		assert.Equal(t, StateConnected, h.engine.State())
		assert.Equal(t, []byte("gone"), h.engine.willMessage)
	})

	t.Run("unanswered update keeps the state", func(t *testing.T) {
		require.NoError(t, h.engine.WillTopicUpdate("t"))

		var events []Event
		for range DefaultRetransmissionCount + 1 {
			events = append(events, h.fire()...)
		}
		require.Len(t, events, 1)
		assert.Equal(t, MsgTypeWillTopicUpd, events[0].(*TimeoutEvent).MsgType)
		assert.Equal(t, StateConnected, h.engine.State())
	})

	t.Run("invalid arguments", func(t *testing.T) {
		assert.ErrorIs(t, h.engine.WillTopicUpdate(""), ErrInvalidArgument)
		assert.ErrorIs(t, h.engine.WillMessageUpdate(bytes.Repeat([]byte{1}, MaxWillMessageLength+1)), ErrInvalidArgument)
	})
}

func TestEngineSleep(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.engine.Sleep(30), ErrInvalidState)
	h.connect()
	assert.ErrorIs(t, h.engine.Sleep(0), ErrInvalidArgument)

	require.NoError(t, h.engine.Sleep(30))
	assert.Equal(t, StateWaitingForSleep, h.engine.State())
	// padded by (2+1) * 8 s
	assert.Equal(t, []byte{0x04, 0x18, 0x00, 0x36}, h.transport.last().data)
	assert.False(t, h.platform.armed)

	events, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
	require.NoError(t, err)
	assert.Equal(t, []Event{SleepPermitEvent{}}, events)
	assert.Equal(t, StateAsleep, h.engine.State())
	assert.Equal(t, uint32(30000), h.platform.delay)

	// wake up to ping the gateway
	events = h.fire()
	assert.Equal(t, []Event{SleepStopEvent{}}, events)
	assert.Equal(t, StateAwake, h.engine.State())
	assert.Equal(t, []byte{0x04, 0x16, 'c', '1'}, h.transport.last().data)

	events, err = h.deliver(&PingrespPacket{})
	require.NoError(t, err)
	assert.Equal(t, []Event{SleepPermitEvent{}}, events)
	assert.Equal(t, StateAsleep, h.engine.State())
	assert.Equal(t, uint32(30000), h.platform.delay)

	t.Run("connect from asleep", func(t *testing.T) {
		require.NoError(t, h.engine.Connect(testGateway, 1, DefaultConnectOptions("c1")))
		assert.Equal(t, StateEstablishingConnection, h.engine.State())
		assert.False(t, h.engine.keepAlive.active)
		assert.Equal(t, uint32(DefaultRetransmissionInterval), h.platform.delay)
	})
}

func TestEngineSleepWithoutPingresp(t *testing.T) {
	h := newHarness(t)
	h.connect()
	require.NoError(t, h.engine.Sleep(30))
	_, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
	require.NoError(t, err)

	assert.Equal(t, []Event{SleepStopEvent{}}, h.fire())
	assert.Empty(t, h.fire())
	assert.Empty(t, h.fire())
	assert.Equal(t, StateAwake, h.engine.State())

	events := h.fire()
	require.Len(t, events, 1)
	ev := events[0].(*TimeoutEvent)
	assert.ErrorIs(t, ev, ErrRetransmissionTimeout)
	assert.Equal(t, MsgTypePingreq, ev.MsgType)
	assert.Equal(t, StateDisconnected, h.engine.State())
	assert.Equal(t, DefaultRetransmissionCount+1, h.transport.count(MsgTypePingreq))
}

func TestEngineDisconnect(t *testing.T) {
	t.Run("confirmed by the gateway", func(t *testing.T) {
		h := newHarness(t)
		assert.ErrorIs(t, h.engine.Disconnect(), ErrInvalidState)
		h.connect()

		require.NoError(t, h.engine.Disconnect())
		assert.Equal(t, StateWaitingForDisconnect, h.engine.State())
		assert.Equal(t, []byte{0x02, 0x18}, h.transport.last().data)
		assert.False(t, h.platform.armed)

		events, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
		require.NoError(t, err)
		assert.Equal(t, []Event{DisconnectPermitEvent{}}, events)
		assert.Equal(t, StateDisconnected, h.engine.State())
	})

	t.Run("from awake ends the session at once", func(t *testing.T) {
		h := newHarness(t)
		h.connect()
		require.NoError(t, h.engine.Sleep(30))
		_, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
		require.NoError(t, err)
		h.fire()
		require.Equal(t, StateAwake, h.engine.State())

		require.NoError(t, h.engine.Disconnect())
		assert.Equal(t, StateDisconnected, h.engine.State())
		assert.False(t, h.engine.keepAlive.active)
		assert.False(t, h.platform.armed)
	})

	t.Run("closed by the gateway", func(t *testing.T) {
		h := newHarness(t)
		h.connect()
		_, err := h.engine.Publish(7, []byte{1}, QoS1)
		require.NoError(t, err)

		events, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
		require.NoError(t, err)
		assert.Equal(t, []Event{DisconnectedEvent{}}, events)
		assert.Equal(t, StateDisconnected, h.engine.State())
		assert.Equal(t, 0, h.engine.InFlight())
		assert.False(t, h.platform.armed)
	})
}
