package mqttsn

import (
	"fmt"
	"time"
)

// Protocol defaults.
const (
	// DefaultRetransmissionInterval is the time in milliseconds between transmissions of an unacknowledged message.
	DefaultRetransmissionInterval = 8000

	// DefaultRetransmissionCount is the number of retransmissions after the first transmission.
	DefaultRetransmissionCount = 2

	// DefaultSearchGatewayMaxJitter bounds the random delay before SEARCHGW, in milliseconds.
	DefaultSearchGatewayMaxJitter = 2000

	// DefaultSearchGatewayRadius is the broadcast radius carried by SEARCHGW.
	DefaultSearchGatewayRadius = 1

	// DefaultKeepAlive is the default keep-alive duration in seconds.
	DefaultKeepAlive = 60

	// DefaultSleepDuration is the default sleep duration in seconds.
	DefaultSleepDuration = 30
)

// EngineConfig holds the collaborators and tunables of an Engine.
type EngineConfig struct {
	// Transport sends datagrams. Required.
	Transport PacketSender
	// Platform supplies time, the timer and randomness. Required.
	Platform Platform
	// Port is the local port inbound datagrams must be addressed to.
	Port uint16
	// Broadcast is the SEARCHGW destination. Defaults to BroadcastRemote(DefaultPort).
	Broadcast Remote

	Logger  Logger
	Metrics Metrics

	QueueCapacity          int
	RetransmissionInterval uint32
	// RetransmissionCount is the number of resends after the first
	// transmission. Nil uses DefaultRetransmissionCount; zero disables resends.
	RetransmissionCount    *uint8
	SearchGatewayMaxJitter uint32
	SearchGatewayRadius    uint8
}

// Engine is an MQTT-SN client session. It is single-threaded and
// run-to-completion: callers must not invoke it concurrently or re-enter it
// while an operation is in progress. Client provides the locking wrapper.
type Engine struct {
	transport PacketSender
	platform  Platform
	port      uint16
	broadcast Remote
	logger    Logger
	metrics   *ClientMetrics

	retransmitInterval uint32
	retransmitCount    uint8
	searchJitter       uint32
	searchRadius       uint8

	state         State
	clientID      string
	aliveDuration uint16
	cleanSession  bool
	willFlag      bool
	willTopic     string
	willMessage   []byte
	gatewayID     uint8
	gateway       Remote

	// pendingWillMessage replaces willMessage once WILLMSGUPD is accepted.
	pendingWillMessage []byte

	msgIDs    msgIDGenerator
	queue     *PacketQueue
	keepAlive keepAlive
	discovery gatewayDiscovery
}

// NewEngine creates an engine in the Disconnected state.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Transport == nil || cfg.Platform == nil {
		return nil, fmt.Errorf("%w: transport and platform are required", ErrInvalidArgument)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Broadcast.IsZero() {
		cfg.Broadcast = BroadcastRemote(DefaultPort)
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNoOpLogger()
	}
	if cfg.RetransmissionInterval == 0 {
		cfg.RetransmissionInterval = DefaultRetransmissionInterval
	}
	retransmitCount := uint8(DefaultRetransmissionCount)
	if cfg.RetransmissionCount != nil {
		retransmitCount = *cfg.RetransmissionCount
	}
	if cfg.SearchGatewayMaxJitter == 0 {
		cfg.SearchGatewayMaxJitter = DefaultSearchGatewayMaxJitter
	}
	if cfg.SearchGatewayRadius == 0 {
		cfg.SearchGatewayRadius = DefaultSearchGatewayRadius
	}

	e := &Engine{
		transport:          cfg.Transport,
		platform:           cfg.Platform,
		port:               cfg.Port,
		broadcast:          cfg.Broadcast,
		logger:             cfg.Logger,
		metrics:            NewClientMetrics(cfg.Metrics),
		retransmitInterval: cfg.RetransmissionInterval,
		retransmitCount:    retransmitCount,
		searchJitter:       cfg.SearchGatewayMaxJitter,
		searchRadius:       cfg.SearchGatewayRadius,
		queue:              NewPacketQueue(cfg.QueueCapacity),
	}
	e.apply(evInit)

	return e, nil
}

// State returns the connection state.
func (e *Engine) State() State {
	return e.state
}

// ClientID returns the client id of the current or last session.
func (e *Engine) ClientID() string {
	return e.clientID
}

// Gateway returns the gateway of the current or last session.
func (e *Engine) Gateway() (Remote, uint8) {
	return e.gateway, e.gatewayID
}

// InFlight returns the number of messages awaiting acknowledgment.
func (e *Engine) InFlight() int {
	return e.queue.Len()
}

// DiscoveryPending reports whether a gateway search is running.
func (e *Engine) DiscoveryPending() bool {
	return e.discovery.pending
}

// Uninit ends any session, releases queued packets and stops the timer.
// The engine rejects every operation afterwards.
func (e *Engine) Uninit() {
	if e.state == StateUninitialized {
		return
	}
	e.endSession()
	e.platform.DisarmTimer()
	e.apply(evUninit)
}

func (e *Engine) apply(ev stateEvent) {
	prev := e.state
	e.state = transition(e.state, ev)
	if prev != e.state {
		e.logger.Debug("state changed", LogFields{
			"from":        prev.String(),
			LogFieldState: e.state.String(),
			"event":       ev.String(),
		})
	}
}

// endSession drops everything tied to the gateway session.
func (e *Engine) endSession() {
	e.queue.Clear()
	e.metrics.QueueDepth(0)
	e.keepAlive.stop()
	e.discovery.reset()
}

// deadlines collects every pending deadline for the scheduler.
func (e *Engine) deadlines() []uint32 {
	ds := make([]uint32, 0, e.queue.Len()+2)
	if d, ok := e.discovery.nextDeadline(); ok {
		ds = append(ds, d)
	}
	for _, p := range e.queue.entries {
		ds = append(ds, p.Deadline)
	}
	if e.keepAlive.active && e.state.keepsAlive() {
		ds = append(ds, e.keepAlive.deadline)
	}
	return ds
}

// reschedule arms the platform timer for the earliest deadline, or disarms it.
func (e *Engine) reschedule() error {
	delay, ok := nextTimeout(e.platform.Now(), e.deadlines())
	if !ok {
		e.platform.DisarmTimer()
		return nil
	}

	e.platform.DisarmTimer()
	if err := e.platform.ArmTimer(delay); err != nil {
		e.logger.Error("failed to arm timer", LogFields{LogFieldError: err.Error()})
		return fmt.Errorf("%w: arm timer: %w", ErrPlatform, err)
	}
	return nil
}

// HandleTimeout runs every handler whose deadline has elapsed and re-arms the
// timer. It is called when the platform timer fires.
func (e *Engine) HandleTimeout() []Event {
	if e.state == StateUninitialized {
		return nil
	}

	var events []Event
	now := e.platform.Now()

	events = append(events, e.discoveryTimeout(now)...)
	events = append(events, e.retransmitElapsed(now)...)

	if e.keepAlive.active && e.state.keepsAlive() && deadlineElapsed(now, e.keepAlive.deadline) {
		events = append(events, e.keepAliveTimeout(now)...)
	}

	if err := e.reschedule(); err != nil {
		e.logger.Error("failed to reschedule after timeout", LogFields{LogFieldError: err.Error()})
		if e.discovery.pending {
			e.discovery.pending = false
			events = append(events, SearchGatewayTimeoutEvent{Result: SearchGatewayPlatformFailed})
		}
	}
	return events
}

// retransmitElapsed makes one retransmission attempt for every elapsed entry.
func (e *Engine) retransmitElapsed(now uint32) []Event {
	var events []Event

	for _, p := range e.queue.Entries() {
		if !deadlineElapsed(now, p.Deadline) {
			continue
		}

		if p.Retries == 0 {
			if ev := e.expire(p); ev != nil {
				events = append(events, ev)
			}
			continue
		}

		p.Retries--
		p.Deadline = deadlineAfter(now, e.retransmitInterval)
		e.metrics.Retransmission(p.MsgType)
		if err := e.transport.Send(e.gateway, p.Data); err != nil {
			e.logger.Warn("retransmission failed", LogFields{
				LogFieldMsgType: p.MsgType.String(),
				LogFieldMsgID:   p.Key.MsgID,
				LogFieldError:   err.Error(),
			})
			continue
		}
		e.metrics.PacketSent(p.MsgType, len(p.Data))
		e.logger.Debug("retransmitted", LogFields{
			LogFieldMsgType: p.MsgType.String(),
			LogFieldMsgID:   p.Key.MsgID,
			LogFieldRetries: p.Retries,
		})
	}

	return events
}

// expire removes an entry whose retry budget ran out.
func (e *Engine) expire(p *QueuedPacket) Event {
	if err := e.queue.Dequeue(p.Key); err != nil {
		return nil
	}
	e.metrics.QueueDepth(e.queue.Len())
	e.metrics.Timeout(p.MsgType)

	e.logger.Warn("no acknowledgment received", LogFields{
		LogFieldMsgType: p.MsgType.String(),
		LogFieldMsgID:   p.Key.MsgID,
	})

	if p.MsgType == MsgTypeConnect && e.state == StateEstablishingConnection {
		e.apply(evConnectTimeout)
	}

	return NewTimeoutEvent(ErrRetransmissionTimeout, p.MsgType, p.Key.MsgID)
}

// keepAliveTimeout sends a PINGREQ or ends the session when the budget is spent.
func (e *Engine) keepAliveTimeout(now uint32) []Event {
	if e.keepAlive.retries == 0 {
		e.metrics.Timeout(MsgTypePingreq)
		e.logger.Warn("gateway stopped answering PINGREQ", LogFields{LogFieldState: e.state.String()})
		e.apply(evPingreqTimeout)
		e.endSession()
		return []Event{NewTimeoutEvent(ErrRetransmissionTimeout, MsgTypePingreq, 0)}
	}

	var events []Event
	wasAsleep := e.state == StateAsleep
	e.apply(evPingreqSent)
	if wasAsleep {
		events = append(events, SleepStopEvent{})
	}

	e.keepAlive.retries--
	e.keepAlive.awaitingResponse = true
	e.keepAlive.deadline = deadlineAfter(now, e.retransmitInterval)

	if err := e.transport.Send(e.gateway, e.keepAlive.pingreq); err != nil {
		e.logger.Warn("failed to send PINGREQ", LogFields{LogFieldError: err.Error()})
		return events
	}
	e.metrics.PacketSent(MsgTypePingreq, len(e.keepAlive.pingreq))

	return events
}

// ackLatency reports the round trip of an acknowledged entry.
func (e *Engine) ackLatency(p *QueuedPacket) {
	elapsed := e.platform.Now() - p.SentAt
	e.metrics.AckLatency(p.MsgType, time.Duration(elapsed)*time.Millisecond)
}
