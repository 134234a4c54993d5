package mqttsn

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the client options. It decodes from YAML or JSON.
type Config struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	KeepAlive    uint16 `yaml:"keep_alive" json:"keep_alive"`
	CleanSession *bool  `yaml:"clean_session" json:"clean_session"`

	Will           *WillConfig          `yaml:"will" json:"will"`
	Gateway        GatewayConfig        `yaml:"gateway" json:"gateway"`
	UDP            UDPConfig            `yaml:"udp" json:"udp"`
	Retransmission RetransmissionConfig `yaml:"retransmission" json:"retransmission"`
	SearchGateway  SearchGatewayConfig  `yaml:"search_gateway" json:"search_gateway"`
	QueueCapacity  int                  `yaml:"queue_capacity" json:"queue_capacity"`
	EventBuffer    int                  `yaml:"event_buffer" json:"event_buffer"`
	Log            LogConfig            `yaml:"log" json:"log"`
}

// WillConfig holds the will topic and message.
type WillConfig struct {
	Topic   string `yaml:"topic" json:"topic"`
	Message string `yaml:"message" json:"message"`
}

// GatewayConfig names a gateway to connect to without discovery.
type GatewayConfig struct {
	Address string `yaml:"address" json:"address"`
	ID      uint8  `yaml:"id" json:"id"`
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	Address            string  `yaml:"address" json:"address"`
	HopLimit           int     `yaml:"hop_limit" json:"hop_limit"`
	Loopback           bool    `yaml:"loopback" json:"loopback"`
	JoinBroadcastGroup bool    `yaml:"join_broadcast_group" json:"join_broadcast_group"`
	Interface          string  `yaml:"interface" json:"interface"`
	RateLimit          float64 `yaml:"rate_limit" json:"rate_limit"`
	Burst              int     `yaml:"burst" json:"burst"`
}

// RetransmissionConfig sets the retransmission interval in milliseconds and
// the number of retransmissions.
type RetransmissionConfig struct {
	IntervalMS uint32 `yaml:"interval_ms" json:"interval_ms"`
	Count      *uint8 `yaml:"count" json:"count"`
}

// SearchGatewayConfig configures gateway discovery.
type SearchGatewayConfig struct {
	TimeoutS    uint32 `yaml:"timeout_s" json:"timeout_s"`
	MaxJitterMS uint32 `yaml:"max_jitter_ms" json:"max_jitter_ms"`
	Radius      uint8  `yaml:"radius" json:"radius"`
}

// LogConfig selects the log level and format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LoadConfig reads a YAML or JSON config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig decodes a config. Input starting with '{' is treated as JSON.
func ParseConfig(b []byte) (*Config, error) {
	c := new(Config)
	if len(b) == 0 {
		return c, nil
	}

	var err error
	if strings.HasPrefix(strings.TrimSpace(string(b)), "{") {
		err = json.Unmarshal(b, c)
	} else {
		err = yaml.Unmarshal(b, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail later in NewClient.
func (c *Config) Validate() error {
	if len(c.ClientID) > MaxClientIDLength {
		return fmt.Errorf("%w: client_id longer than %d bytes", ErrInvalidConfig, MaxClientIDLength)
	}
	if c.Will != nil {
		if err := validateWillTopic(c.Will.Topic); err != nil {
			return fmt.Errorf("%w: will topic: %w", ErrInvalidConfig, err)
		}
		if err := validateWillMessage([]byte(c.Will.Message)); err != nil {
			return fmt.Errorf("%w: will message: %w", ErrInvalidConfig, err)
		}
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue_capacity must not be negative", ErrInvalidConfig)
	}
	if c.UDP.RateLimit < 0 {
		return fmt.Errorf("%w: udp rate_limit must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// GatewayRemote resolves the configured gateway address.
func (c *Config) GatewayRemote() (Remote, error) {
	if c.Gateway.Address == "" {
		return Remote{}, fmt.Errorf("%w: no gateway address", ErrInvalidConfig)
	}
	return ResolveRemote(c.Gateway.Address)
}

// SearchTimeout returns the discovery timeout, defaulting to 5 seconds.
func (c *Config) SearchTimeout() time.Duration {
	if c.SearchGateway.TimeoutS == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.SearchGateway.TimeoutS) * time.Second
}

// NewLogger builds a slog-backed Logger writing to w.
func (c *Config) NewLogger(w io.Writer) Logger {
	level := ParseLogLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: slogLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(c.Log.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return NewSlogLogger(slog.New(handler), level)
}

// Options converts the config into client options. Unset fields keep the
// client defaults.
func (c *Config) Options() ([]Option, error) {
	var opts []Option

	if c.ClientID != "" {
		opts = append(opts, WithClientID(c.ClientID))
	}
	if c.KeepAlive > 0 {
		opts = append(opts, WithKeepAlive(c.KeepAlive))
	}
	if c.CleanSession != nil {
		opts = append(opts, WithCleanSession(*c.CleanSession))
	}
	if c.Will != nil && c.Will.Topic != "" {
		opts = append(opts, WithWill(c.Will.Topic, []byte(c.Will.Message)))
	}

	udp := UDPOptions{
		Address:            c.UDP.Address,
		HopLimit:           c.UDP.HopLimit,
		Loopback:           c.UDP.Loopback,
		JoinBroadcastGroup: c.UDP.JoinBroadcastGroup,
		RateLimit:          rate.Limit(c.UDP.RateLimit),
		Burst:              c.UDP.Burst,
	}
	if c.UDP.Interface != "" {
		ifi, err := net.InterfaceByName(c.UDP.Interface)
		if err != nil {
			return nil, fmt.Errorf("%w: interface %q: %w", ErrInvalidConfig, c.UDP.Interface, err)
		}
		udp.Interface = ifi
	}
	opts = append(opts, WithUDPOptions(udp))

	if c.Retransmission.IntervalMS > 0 || c.Retransmission.Count != nil {
		interval := time.Duration(DefaultRetransmissionInterval) * time.Millisecond
		if c.Retransmission.IntervalMS > 0 {
			interval = time.Duration(c.Retransmission.IntervalMS) * time.Millisecond
		}
		count := uint8(DefaultRetransmissionCount)
		if c.Retransmission.Count != nil {
			count = *c.Retransmission.Count
		}
		opts = append(opts, WithRetransmission(interval, count))
	}

	if c.SearchGateway.MaxJitterMS > 0 || c.SearchGateway.Radius > 0 {
		jitter := time.Duration(DefaultSearchGatewayMaxJitter) * time.Millisecond
		if c.SearchGateway.MaxJitterMS > 0 {
			jitter = time.Duration(c.SearchGateway.MaxJitterMS) * time.Millisecond
		}
		radius := uint8(DefaultSearchGatewayRadius)
		if c.SearchGateway.Radius > 0 {
			radius = c.SearchGateway.Radius
		}
		opts = append(opts, WithSearchGateway(jitter, radius))
	}

	if c.QueueCapacity > 0 {
		opts = append(opts, WithQueueCapacity(c.QueueCapacity))
	}
	if c.EventBuffer > 0 {
		opts = append(opts, WithEventBuffer(c.EventBuffer))
	}
	if c.Log.Level != "" {
		opts = append(opts, WithLogger(c.NewLogger(os.Stderr)))
	}

	return opts, nil
}
