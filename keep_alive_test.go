package mqttsn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepAliveSlot(t *testing.T) {
	var k keepAlive
	k.start([]byte{0x02, 0x16}, 60000, 1000, 3)

	assert.True(t, k.active)
	assert.Equal(t, uint32(61000), k.deadline)
	assert.Equal(t, uint8(3), k.retries)

	k.retries = 0
	k.awaitingResponse = true
	k.rearm(70000, 3)
	assert.Equal(t, uint32(130000), k.deadline)
	assert.Equal(t, uint8(3), k.retries)
	assert.False(t, k.awaitingResponse)

	k.stop()
	assert.Equal(t, keepAlive{}, k)
}

func TestEngineKeepAlive(t *testing.T) {
	h := newHarness(t)
	h.connect()
	pingreq := []byte{0x04, 0x16, 'c', '1'}

	assert.Empty(t, h.fire())
	assert.Equal(t, uint32(60000), h.platform.now)
	assert.Equal(t, pingreq, h.transport.last().data)
	assert.Equal(t, uint32(DefaultRetransmissionInterval), h.platform.delay)

	events, err := h.deliver(&PingrespPacket{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, StateConnected, h.engine.State())
	assert.Equal(t, uint32(60000), h.platform.delay)

	t.Run("gives up after the retry budget", func(t *testing.T) {
		h.transport.sent = nil

		for range DefaultRetransmissionCount + 1 {
			assert.Empty(t, h.fire())
		}
		assert.Equal(t, DefaultRetransmissionCount+1, h.transport.count(MsgTypePingreq))

		events := h.fire()
		require.Len(t, events, 1)
		ev, ok := events[0].(*TimeoutEvent)
		require.True(t, ok)
		assert.ErrorIs(t, ev, ErrRetransmissionTimeout)
		assert.Equal(t, MsgTypePingreq, ev.MsgType)

		assert.Equal(t, StateDisconnected, h.engine.State())
		assert.Equal(t, 0, h.engine.InFlight())
		assert.False(t, h.platform.armed)
		assert.False(t, h.engine.keepAlive.active)
	})
}

func TestEngineRepeatedPingresp(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		h := newHarness(t)
		h.connect()

		assert.Empty(t, h.fire())
		events, err := h.deliver(&PingrespPacket{})
		require.NoError(t, err)
		assert.Empty(t, events)
		require.Equal(t, uint32(120000), h.engine.keepAlive.deadline)

		h.platform.now += 1000
		events, err = h.deliver(&PingrespPacket{})
		require.NoError(t, err)
		assert.Empty(t, events)

		assert.Equal(t, uint32(120000), h.engine.keepAlive.deadline)
		assert.Equal(t, h.engine.keepAliveRetries(), h.engine.keepAlive.retries)
		assert.False(t, h.engine.keepAlive.awaitingResponse)
		assert.Equal(t, StateConnected, h.engine.State())
		assert.Equal(t, float64(1), h.metrics.GetCounter(MetricPacketsDropped, MetricLabels{LabelReason: dropReasonUnexpected}).Value())
	})

	t.Run("awake", func(t *testing.T) {
		h := newHarness(t)
		h.connect()
		require.NoError(t, h.engine.Sleep(30))
		_, err := h.deliver(&DisconnectPacket{Duration: NoDuration})
		require.NoError(t, err)
		require.Equal(t, []Event{SleepStopEvent{}}, h.fire())

		events, err := h.deliver(&PingrespPacket{})
		require.NoError(t, err)
		assert.Equal(t, []Event{SleepPermitEvent{}}, events)
		deadline := h.engine.keepAlive.deadline

		h.platform.now += 1000
		events, err = h.deliver(&PingrespPacket{})
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, deadline, h.engine.keepAlive.deadline)
		assert.Equal(t, StateAsleep, h.engine.State())
	})
}

func TestEngineKeepAliveWithTraffic(t *testing.T) {
	h := newHarness(t)
	h.connect()

	// retransmissions run alongside the keep-alive deadline
	h.platform.now = 59000
	_, err := h.engine.Publish(7, []byte{1}, QoS1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), h.platform.delay)

	assert.Empty(t, h.fire())
	assert.Equal(t, 1, h.transport.count(MsgTypePingreq))
	assert.Equal(t, uint32(7000), h.platform.delay)

	assert.Empty(t, h.fire())
	assert.Equal(t, 2, h.transport.count(MsgTypePublish))
}

func TestEngineKeepAliveCustomDuration(t *testing.T) {
	h := newHarness(t)

	opts := DefaultConnectOptions("c1")
	opts.AliveDuration = 10
	require.NoError(t, h.engine.Connect(testGateway, 1, opts))
	_, err := h.deliver(&ConnackPacket{ReturnCode: ReturnAccepted})
	require.NoError(t, err)

	assert.Equal(t, uint32(10000), h.platform.delay)
}
