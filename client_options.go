package mqttsn

import (
	"time"
)

// EventHandler receives engine events. It runs on the client's dispatch
// goroutine and may call back into the client.
type EventHandler func(c *Client, ev Event)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// Session settings
	clientID     string
	keepAlive    uint16
	cleanSession bool
	willTopic    string
	willMessage  []byte

	// Transport
	transport  Transport
	udpOptions UDPOptions
	broadcast  Remote

	// Protocol timing
	retransmitInterval time.Duration
	retransmitCount    uint8
	queueCapacity      int
	searchJitter       time.Duration
	searchRadius       uint8

	// Observability
	logger  Logger
	metrics Metrics

	// Event delivery
	onEvent     EventHandler
	eventBuffer int
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		keepAlive:          DefaultKeepAlive,
		cleanSession:       true,
		retransmitInterval: DefaultRetransmissionInterval * time.Millisecond,
		retransmitCount:    DefaultRetransmissionCount,
		queueCapacity:      DefaultQueueCapacity,
		searchJitter:       DefaultSearchGatewayMaxJitter * time.Millisecond,
		searchRadius:       DefaultSearchGatewayRadius,
		eventBuffer:        64,
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithClientID sets the client identifier. It must be 1 to 23 bytes.
// A random identifier is generated when none is set.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithKeepAlive sets the keep-alive interval in seconds.
func WithKeepAlive(seconds uint16) Option {
	return func(o *clientOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanSession sets the clean session flag of CONNECT.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithWill sets the will topic and message sent when the gateway asks for them.
func WithWill(topic string, message []byte) Option {
	return func(o *clientOptions) {
		o.willTopic = topic
		o.willMessage = message
	}
}

// WithTransport sets a custom transport. The client takes ownership and
// closes it on Close.
func WithTransport(t Transport) Option {
	return func(o *clientOptions) {
		o.transport = t
	}
}

// WithUDPOptions configures the default UDP transport.
func WithUDPOptions(opts UDPOptions) Option {
	return func(o *clientOptions) {
		o.udpOptions = opts
	}
}

// WithBroadcast sets the SEARCHGW destination.
func WithBroadcast(remote Remote) Option {
	return func(o *clientOptions) {
		o.broadcast = remote
	}
}

// WithRetransmission sets the retransmission interval and count.
func WithRetransmission(interval time.Duration, count uint8) Option {
	return func(o *clientOptions) {
		o.retransmitInterval = interval
		o.retransmitCount = count
	}
}

// WithQueueCapacity sets the number of messages that may await acknowledgment.
func WithQueueCapacity(n int) Option {
	return func(o *clientOptions) {
		o.queueCapacity = n
	}
}

// WithSearchGateway sets the SEARCHGW jitter bound and broadcast radius.
func WithSearchGateway(maxJitter time.Duration, radius uint8) Option {
	return func(o *clientOptions) {
		o.searchJitter = maxJitter
		o.searchRadius = radius
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// OnEvent sets the event handler.
func OnEvent(handler EventHandler) Option {
	return func(o *clientOptions) {
		o.onEvent = handler
	}
}

// WithEventBuffer sets how many events may wait for the handler. Events
// beyond that are dropped and counted.
func WithEventBuffer(n int) Option {
	return func(o *clientOptions) {
		o.eventBuffer = n
	}
}

// applyOptions applies options to defaults.
func applyOptions(opts ...Option) *clientOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NewNoOpLogger()
	}
	if o.metrics == nil {
		o.metrics = &NoOpMetrics{}
	}
	if o.eventBuffer <= 0 {
		o.eventBuffer = 1
	}
	return o
}

// connectOptions builds the CONNECT parameters.
func (o *clientOptions) connectOptions() ConnectOptions {
	opts := ConnectOptions{
		ClientID:      o.clientID,
		AliveDuration: o.keepAlive,
		CleanSession:  o.cleanSession,
	}
	if o.willTopic != "" {
		opts.WillFlag = true
		opts.WillTopic = o.willTopic
		opts.WillMessage = o.willMessage
	}
	return opts
}

// engineConfig builds the engine configuration for a transport and platform.
func (o *clientOptions) engineConfig(t Transport, p Platform) EngineConfig {
	return EngineConfig{
		Transport:              t,
		Platform:               p,
		Port:                   t.LocalPort(),
		Broadcast:              o.broadcast,
		Logger:                 o.logger,
		Metrics:                o.metrics,
		QueueCapacity:          o.queueCapacity,
		RetransmissionInterval: uint32(o.retransmitInterval / time.Millisecond),
		RetransmissionCount:    &o.retransmitCount,
		SearchGatewayMaxJitter: uint32(o.searchJitter / time.Millisecond),
		SearchGatewayRadius:    o.searchRadius,
	}
}
