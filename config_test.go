package mqttsn

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testConfigYAML = `
client_id: sensor-7
keep_alive: 120
clean_session: false
will:
  topic: status/sensor-7
  message: offline
gateway:
  address: "[fd00::1]:47193"
  id: 3
udp:
  address: "[::]:0"
  hop_limit: 2
  rate_limit: 10
  burst: 4
retransmission:
  interval_ms: 5000
  count: 0
search_gateway:
  timeout_s: 10
  radius: 2
queue_capacity: 8
event_buffer: 16
log:
  level: debug
  format: json
`

func TestParseConfig(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		c, err := ParseConfig([]byte(testConfigYAML))
		require.NoError(t, err)

		assert.Equal(t, "sensor-7", c.ClientID)
		assert.Equal(t, uint16(120), c.KeepAlive)
		require.NotNil(t, c.CleanSession)
		assert.False(t, *c.CleanSession)
		require.NotNil(t, c.Will)
		assert.Equal(t, "status/sensor-7", c.Will.Topic)
		assert.Equal(t, uint8(3), c.Gateway.ID)
		assert.Equal(t, 2, c.UDP.HopLimit)
		assert.Equal(t, uint32(5000), c.Retransmission.IntervalMS)
		require.NotNil(t, c.Retransmission.Count)
		assert.Equal(t, uint8(0), *c.Retransmission.Count)
		assert.Equal(t, 10*time.Second, c.SearchTimeout())
		assert.Equal(t, "json", c.Log.Format)
	})

	t.Run("json", func(t *testing.T) {
		c, err := ParseConfig([]byte(`{"client_id": "c1", "keep_alive": 30, "gateway": {"address": "127.0.0.1:47193", "id": 1}}`))
		require.NoError(t, err)

		assert.Equal(t, "c1", c.ClientID)
		assert.Equal(t, uint16(30), c.KeepAlive)
		assert.Nil(t, c.CleanSession)
		assert.Nil(t, c.Will)
		assert.Equal(t, 5*time.Second, c.SearchTimeout())
	})

	t.Run("empty", func(t *testing.T) {
		c, err := ParseConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, &Config{}, c)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseConfig([]byte("client_id: [unterminated"))
		assert.ErrorIs(t, err, ErrInvalidConfig)

		_, err = ParseConfig([]byte(`{"keep_alive": "soon"}`))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "long client id", config: Config{ClientID: "abcdefghijklmnopqrstuvwx"}},
		{name: "empty will topic", config: Config{Will: &WillConfig{Message: "bye"}}},
		{name: "empty will message", config: Config{Will: &WillConfig{Topic: "a/b"}}},
		{name: "negative queue capacity", config: Config{QueueCapacity: -1}},
		{name: "negative rate limit", config: Config{UDP: UDPConfig{RateLimit: -1}}},
		{name: "unknown log format", config: Config{Log: LogConfig{Format: "xml"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.config.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("valid", func(t *testing.T) {
		c := Config{ClientID: "c1", Will: &WillConfig{Topic: "a/b", Message: "bye"}, Log: LogConfig{Format: "TEXT"}}
		assert.NoError(t, c.Validate())
	})
}

func TestConfigGatewayRemote(t *testing.T) {
	c := Config{Gateway: GatewayConfig{Address: "[fd00::1]:47193"}}
	r, err := c.GatewayRemote()
	require.NoError(t, err)
	assert.Equal(t, testGateway, r)

	_, err = (&Config{}).GatewayRemote()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigOptions(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		c, err := ParseConfig([]byte(testConfigYAML))
		require.NoError(t, err)

		opts, err := c.Options()
		require.NoError(t, err)
		o := applyOptions(opts...)

		assert.Equal(t, "sensor-7", o.clientID)
		assert.Equal(t, uint16(120), o.keepAlive)
		assert.False(t, o.cleanSession)
		assert.Equal(t, "status/sensor-7", o.willTopic)
		assert.Equal(t, []byte("offline"), o.willMessage)
		assert.Equal(t, "[::]:0", o.udpOptions.Address)
		assert.Equal(t, rate.Limit(10), o.udpOptions.RateLimit)
		assert.Equal(t, 4, o.udpOptions.Burst)
		assert.Equal(t, 5*time.Second, o.retransmitInterval)
		assert.Equal(t, uint8(0), o.retransmitCount)
		assert.Equal(t, time.Duration(DefaultSearchGatewayMaxJitter)*time.Millisecond, o.searchJitter)
		assert.Equal(t, uint8(2), o.searchRadius)
		assert.Equal(t, 8, o.queueCapacity)
		assert.Equal(t, 16, o.eventBuffer)
		assert.IsType(t, &SlogLogger{}, o.logger)
	})

	t.Run("empty config keeps defaults", func(t *testing.T) {
		opts, err := (&Config{}).Options()
		require.NoError(t, err)
		o := applyOptions(opts...)
		d := applyOptions()

		assert.Equal(t, d.keepAlive, o.keepAlive)
		assert.True(t, o.cleanSession)
		assert.Equal(t, d.retransmitInterval, o.retransmitInterval)
		assert.Equal(t, d.retransmitCount, o.retransmitCount)
		assert.Equal(t, d.queueCapacity, o.queueCapacity)
		assert.IsType(t, &NoOpLogger{}, o.logger)
	})

	t.Run("unknown interface", func(t *testing.T) {
		c := Config{UDP: UDPConfig{Interface: "mqttsn-does-not-exist0"}}
		_, err := c.Options()
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestConfigNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		c := Config{Log: LogConfig{Level: "warn", Format: "json"}}
		logger := c.NewLogger(&buf)

		logger.Info("dropped", nil)
		assert.Zero(t, buf.Len())

		logger.Warn("queue full", LogFields{LogFieldMsgType: "PUBLISH"})

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "queue full", entry["msg"])
		assert.Equal(t, "PUBLISH", entry[LogFieldMsgType])
		assert.Equal(t, LogLevelWarn, logger.Level())
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := (&Config{}).NewLogger(&buf)

		logger.Info("connected", nil)
		assert.Contains(t, buf.String(), "msg=connected")
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqttsn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sensor-7", c.ClientID)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
