package mqttsn

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// Client is a concurrency-safe MQTT-SN client. It owns the transport, the
// platform timer and an Engine, runs a read loop, and hands events to the
// OnEvent handler in order.
type Client struct {
	options   *clientOptions
	transport Transport
	platform  *SystemPlatform
	metrics   *ClientMetrics

	// mu serializes every engine entry point.
	mu     sync.Mutex
	engine *Engine

	events       chan Event
	closed       atomic.Bool
	done         chan struct{}
	readDone     chan struct{}
	dispatchDone chan struct{}
}

// NewClient creates a client. Without WithTransport it listens on UDP port
// 47193. The client starts Disconnected; call SearchGateway or Connect.
func NewClient(opts ...Option) (*Client, error) {
	options := applyOptions(opts...)

	if options.clientID == "" {
		options.clientID = generateClientID()
	}
	if len(options.clientID) > MaxClientIDLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClientID, options.clientID)
	}

	transport := options.transport
	if transport == nil {
		udpOpts := options.udpOptions
		if udpOpts.HopLimit == 0 {
			udpOpts.HopLimit = int(options.searchRadius)
		}
		udp, err := ListenUDP(udpOpts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		transport = udp
	}

	c := &Client{
		options:      options,
		transport:    transport,
		metrics:      NewClientMetrics(options.metrics),
		events:       make(chan Event, options.eventBuffer),
		done:         make(chan struct{}),
		readDone:     make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	c.platform = NewSystemPlatform(c.onTimer)

	engine, err := NewEngine(options.engineConfig(transport, c.platform))
	if err != nil {
		transport.Close()
		return nil, err
	}
	c.engine = engine

	go c.readLoop()
	go c.dispatchLoop()

	return c, nil
}

// generateClientID generates a random 20-character client ID.
func generateClientID() string {
	return xid.New().String()
}

// ClientID returns the client identifier.
func (c *Client) ClientID() string {
	return c.options.clientID
}

// LocalPort returns the port the transport is bound to.
func (c *Client) LocalPort() uint16 {
	return c.transport.LocalPort()
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.engine.State()
}

// IsConnected returns true if the client holds an active session.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected && !c.closed.Load()
}

// InFlight returns the number of messages awaiting acknowledgment.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.engine.InFlight()
}

// FoundGateway returns the first gateway that answered the last search.
func (c *Client) FoundGateway() (Remote, uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.engine.FoundGateway()
}

// SearchGateway broadcasts SEARCHGW and waits up to timeout for GWINFO.
// Results arrive as GatewayFoundEvent and SearchGatewayTimeoutEvent.
func (c *Client) SearchGateway(timeout time.Duration) error {
	if timeout < time.Second || timeout/time.Second > MaxSearchGatewayTimeout {
		return fmt.Errorf("%w: search timeout must be 1 s to %d s", ErrInvalidArgument, MaxSearchGatewayTimeout)
	}
	seconds := uint32(timeout / time.Second)
	return c.do(func(e *Engine) error {
		return e.SearchGateway(seconds)
	})
}

// Connect sends CONNECT to the gateway using the configured session options.
func (c *Client) Connect(gateway Remote, gatewayID uint8) error {
	opts := c.options.connectOptions()
	return c.do(func(e *Engine) error {
		return e.Connect(gateway, gatewayID, opts)
	})
}

// Disconnect asks the gateway to end the session.
func (c *Client) Disconnect() error {
	return c.do(func(e *Engine) error {
		return e.Disconnect()
	})
}

// Sleep asks the gateway to let the client sleep for d, rounded down to seconds.
func (c *Client) Sleep(d time.Duration) error {
	seconds := d / time.Second
	if seconds <= 0 || seconds > 0xffff {
		return fmt.Errorf("%w: sleep duration out of range", ErrInvalidArgument)
	}
	return c.do(func(e *Engine) error {
		return e.Sleep(uint16(seconds))
	})
}

// Register asks the gateway for a topic id and returns the message id.
func (c *Client) Register(topicName string) (uint16, error) {
	var msgID uint16
	err := c.do(func(e *Engine) error {
		var err error
		msgID, err = e.Register(topicName)
		return err
	})
	return msgID, err
}

// Publish sends payload to a registered topic id and returns the message id.
func (c *Client) Publish(topicID uint16, payload []byte, qos QoS) (uint16, error) {
	var msgID uint16
	err := c.do(func(e *Engine) error {
		var err error
		msgID, err = e.Publish(topicID, payload, qos)
		return err
	})
	return msgID, err
}

// Subscribe subscribes to a topic and returns the message id.
func (c *Client) Subscribe(topic Topic, qos QoS) (uint16, error) {
	var msgID uint16
	err := c.do(func(e *Engine) error {
		var err error
		msgID, err = e.Subscribe(topic, qos)
		return err
	})
	return msgID, err
}

// Unsubscribe unsubscribes from a topic and returns the message id.
func (c *Client) Unsubscribe(topic Topic) (uint16, error) {
	var msgID uint16
	err := c.do(func(e *Engine) error {
		var err error
		msgID, err = e.Unsubscribe(topic)
		return err
	})
	return msgID, err
}

// WillTopicUpdate replaces the will topic stored by the gateway.
func (c *Client) WillTopicUpdate(topic string) error {
	return c.do(func(e *Engine) error {
		return e.WillTopicUpdate(topic)
	})
}

// WillMessageUpdate replaces the will message stored by the gateway.
func (c *Client) WillMessageUpdate(msg []byte) error {
	return c.do(func(e *Engine) error {
		return e.WillMessageUpdate(msg)
	})
}

// Close uninitializes the engine, stops the timer and closes the transport.
// Pending events that were not yet dispatched are discarded.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	c.engine.Uninit()
	c.mu.Unlock()

	c.platform.DisarmTimer()
	close(c.done)
	err := c.transport.Close()

	// Wait for the loops to finish
	for _, ch := range []chan struct{}{c.readDone, c.dispatchDone} {
		select {
		case <-ch:
		case <-time.After(time.Second):
		}
	}

	return err
}

// do runs fn under the engine lock.
func (c *Client) do(fn func(e *Engine) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrClientClosed
	}
	return fn(c.engine)
}

// onTimer is the platform timer callback.
func (c *Client) onTimer() {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.emit(c.engine.HandleTimeout())
	c.mu.Unlock()
}

// readLoop feeds inbound datagrams to the engine.
func (c *Client) readLoop() {
	defer close(c.readDone)

	buf := make([]byte, maxMessageLength)
	port := c.transport.LocalPort()
	var retry time.Duration

	for {
		n, remote, err := c.transport.ReadFrom(buf)
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			retry = nextReadRetryDelay(retry)
			c.options.logger.Error("transport read failed", LogFields{
				LogFieldError: err.Error(),
				"retry_in":    retry.String(),
			})

			timer := time.NewTimer(retry)
			select {
			case <-c.done:
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}
		retry = 0

		c.mu.Lock()
		if c.closed.Load() {
			c.mu.Unlock()
			return
		}
		events, err := c.engine.Deliver(port, remote, buf[:n])
		c.emit(events)
		c.mu.Unlock()

		if err != nil {
			c.options.logger.Error("failed to process datagram", LogFields{
				LogFieldRemoteAddr: remote.String(),
				LogFieldError:      err.Error(),
			})
		}
	}
}

const (
	minReadRetryDelay = 10 * time.Millisecond
	maxReadRetryDelay = time.Second
)

// nextReadRetryDelay doubles the pause after a failed read, up to maxReadRetryDelay.
func nextReadRetryDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return minReadRetryDelay
	}
	return min(prev*2, maxReadRetryDelay)
}

// emit queues events for the handler without blocking. Callers hold mu so
// events keep the order in which the engine produced them.
func (c *Client) emit(events []Event) {
	for _, ev := range events {
		select {
		case c.events <- ev:
		default:
			c.metrics.EventDropped()
			c.options.logger.Warn("event buffer full, dropping event", LogFields{"event": ev.Kind().String()})
		}
	}
}

// dispatchLoop delivers events to the handler in order.
func (c *Client) dispatchLoop() {
	defer close(c.dispatchDone)

	for {
		select {
		case ev := <-c.events:
			if c.options.onEvent != nil {
				c.options.onEvent(c, ev)
			}
		case <-c.done:
			return
		}
	}
}
