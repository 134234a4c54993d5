package mqttsn

import (
	"fmt"
	"slices"
)

// maxPayloadLength is the largest PUBLISH payload that fits one message.
const maxPayloadLength = maxMessageLength - extendedHeaderSize - 5

// ConnectOptions are the session parameters carried by CONNECT.
type ConnectOptions struct {
	// ClientID identifies the client to the gateway, 1 to 23 bytes.
	ClientID string
	// AliveDuration is the keep-alive interval in seconds.
	AliveDuration uint16
	CleanSession  bool

	// WillFlag asks the gateway to prompt for WillTopic and WillMessage.
	WillFlag    bool
	WillTopic   string
	WillMessage []byte
}

// DefaultConnectOptions returns options with the default keep-alive and a clean session.
func DefaultConnectOptions(clientID string) ConnectOptions {
	return ConnectOptions{
		ClientID:      clientID,
		AliveDuration: DefaultKeepAlive,
		CleanSession:  true,
	}
}

func (o *ConnectOptions) validate() error {
	if len(o.ClientID) == 0 || len(o.ClientID) > MaxClientIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidClientID, o.ClientID)
	}
	if o.AliveDuration == 0 {
		return fmt.Errorf("%w: keep-alive duration must be positive", ErrInvalidArgument)
	}
	if o.WillFlag {
		if err := validateWillTopic(o.WillTopic); err != nil {
			return err
		}
		if err := validateWillMessage(o.WillMessage); err != nil {
			return err
		}
	}
	return nil
}

func validateWillTopic(topic string) error {
	if len(topic) == 0 || len(topic) > MaxWillTopicLength {
		return fmt.Errorf("%w: will topic must be 1 to %d bytes", ErrInvalidArgument, MaxWillTopicLength)
	}
	return nil
}

func validateWillMessage(msg []byte) error {
	if len(msg) == 0 || len(msg) > MaxWillMessageLength {
		return fmt.Errorf("%w: will message must be 1 to %d bytes", ErrInvalidArgument, MaxWillMessageLength)
	}
	return nil
}

// requireState fails unless the engine is in one of the allowed states.
func (e *Engine) requireState(op string, allowed ...State) error {
	if e.state == StateUninitialized {
		return ErrNotInitialized
	}
	if !slices.Contains(allowed, e.state) {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, e.state)
	}
	return nil
}

// send encodes a message and hands it to the transport without queueing it.
func (e *Engine) send(remote Remote, p Packet) error {
	data, err := EncodePacket(p)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.Type(), err)
	}

	if err := e.transport.Send(remote, data); err != nil {
		e.logger.Warn("send failed", LogFields{
			LogFieldMsgType:    p.Type().String(),
			LogFieldRemoteAddr: remote.String(),
			LogFieldError:      err.Error(),
		})
		return fmt.Errorf("%w: send %s: %w", ErrTransport, p.Type(), err)
	}

	e.metrics.PacketSent(p.Type(), len(data))
	e.logger.Debug("sent", LogFields{
		LogFieldMsgType:    p.Type().String(),
		LogFieldRemoteAddr: remote.String(),
		LogFieldBytes:      len(data),
	})
	return nil
}

// sendQueued transmits a message that expects an acknowledgment and keeps it
// for retransmission. On any failure the new entry is removed again.
func (e *Engine) sendQueued(p Packet, key QueueKey, topic Topic) error {
	data, err := EncodePacket(p)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.Type(), err)
	}

	now := e.platform.Now()
	entry := &QueuedPacket{
		Data:     data,
		MsgType:  p.Type(),
		Key:      key,
		Retries:  e.retransmitCount,
		Deadline: deadlineAfter(now, e.retransmitInterval),
		SentAt:   now,
		Topic:    topic,
	}
	if err := e.queue.Enqueue(entry); err != nil {
		return fmt.Errorf("queue %s: %w", p.Type(), err)
	}

	if err := e.transport.Send(e.gateway, data); err != nil {
		_ = e.queue.Dequeue(key)
		e.logger.Warn("send failed", LogFields{
			LogFieldMsgType: p.Type().String(),
			LogFieldMsgID:   key.MsgID,
			LogFieldError:   err.Error(),
		})
		return fmt.Errorf("%w: send %s: %w", ErrTransport, p.Type(), err)
	}
	e.metrics.PacketSent(p.Type(), len(data))

	if err := e.reschedule(); err != nil {
		_ = e.queue.Dequeue(key)
		return err
	}

	e.metrics.QueueDepth(e.queue.Len())
	e.logger.Debug("sent", LogFields{
		LogFieldMsgType: p.Type().String(),
		LogFieldMsgID:   key.MsgID,
		LogFieldBytes:   len(data),
	})
	return nil
}

// Connect sends CONNECT to the gateway. The outcome arrives as a
// ConnectedEvent, or a TimeoutEvent for MsgTypeConnect.
func (e *Engine) Connect(gateway Remote, gatewayID uint8, opts ConnectOptions) error {
	if err := e.requireState("connect", StateDisconnected, StateAsleep, StateAwake); err != nil {
		return err
	}
	if gateway.IsZero() || gatewayID == 0 {
		return fmt.Errorf("%w: gateway address and id are required", ErrInvalidArgument)
	}
	if err := opts.validate(); err != nil {
		return err
	}

	p := &ConnectPacket{
		Will:         opts.WillFlag,
		CleanSession: opts.CleanSession,
		Duration:     opts.AliveDuration,
		ClientID:     opts.ClientID,
	}

	// sendQueued addresses e.gateway; the previous session survives a failure.
	prevGateway := e.gateway
	e.gateway = gateway
	if err := e.sendQueued(p, KeyByMsgType(MsgTypeConnect), Topic{}); err != nil {
		e.gateway = prevGateway
		return err
	}

	e.gatewayID = gatewayID
	e.clientID = opts.ClientID
	e.aliveDuration = opts.AliveDuration
	e.cleanSession = opts.CleanSession
	e.willFlag = opts.WillFlag
	e.willTopic = ""
	e.willMessage = nil
	if opts.WillFlag {
		e.willTopic = opts.WillTopic
		e.willMessage = slices.Clone(opts.WillMessage)
	}

	e.keepAlive.stop()
	e.apply(evConnectSent)
	// The CONNECT deadline is already armed; this only drops a stale keep-alive.
	_ = e.reschedule()
	e.logger.Info("connecting", LogFields{
		LogFieldClientID:   e.clientID,
		LogFieldRemoteAddr: gateway.String(),
	})
	return nil
}

// Disconnect asks the gateway to end the session. A DisconnectPermitEvent
// follows when the gateway confirms.
func (e *Engine) Disconnect() error {
	if err := e.requireState("disconnect", StateConnected, StateAwake); err != nil {
		return err
	}

	if err := e.send(e.gateway, &DisconnectPacket{Duration: NoDuration}); err != nil {
		return err
	}

	e.apply(evDisconnectRequestSent)
	if e.state == StateDisconnected {
		e.endSession()
	}
	return e.reschedule()
}

// Sleep asks the gateway to buffer messages for durationSeconds while the
// client sleeps. A SleepPermitEvent follows when the gateway agrees.
func (e *Engine) Sleep(durationSeconds uint16) error {
	if err := e.requireState("sleep", StateConnected); err != nil {
		return err
	}
	if durationSeconds == 0 {
		return fmt.Errorf("%w: sleep duration must be positive", ErrInvalidArgument)
	}

	// Padded by the PINGREQ retry window.
	padding := (uint32(e.retransmitCount) + 1) * e.retransmitInterval / 1000
	p := &DisconnectPacket{Duration: int32(uint32(durationSeconds) + padding)}
	if err := e.send(e.gateway, p); err != nil {
		return err
	}

	e.apply(evSleepRequestSent)
	e.keepAlive.duration = uint32(durationSeconds) * 1000
	return e.reschedule()
}

// Register asks the gateway for a topic id. The id arrives with a
// RegisteredEvent carrying the returned message id.
func (e *Engine) Register(topicName string) (uint16, error) {
	if err := e.requireState("register", StateConnected); err != nil {
		return 0, err
	}
	topic := TopicName(topicName)
	if err := topic.Validate(); err != nil {
		return 0, err
	}

	msgID := e.msgIDs.allocate(e.queue)
	p := &RegisterPacket{MsgID: msgID, TopicName: topicName}
	if err := e.sendQueued(p, KeyByMsgID(msgID), topic); err != nil {
		return 0, err
	}
	return msgID, nil
}

// Publish sends payload to a registered topic id. QoS 0 messages are sent
// once and return message id 0. QoS 1 messages are retransmitted until a
// PUBACK arrives.
func (e *Engine) Publish(topicID uint16, payload []byte, qos QoS) (uint16, error) {
	if err := e.requireState("publish", StateConnected, StateAsleep); err != nil {
		return 0, err
	}
	if topicID == 0 {
		return 0, fmt.Errorf("%w: topic id must be non-zero", ErrInvalidArgument)
	}
	if len(payload) == 0 || len(payload) > maxPayloadLength {
		return 0, fmt.Errorf("%w: payload must be 1 to %d bytes", ErrInvalidArgument, maxPayloadLength)
	}

	p := &PublishPacket{
		QoS:         qos,
		TopicIDType: TopicIDTypeNormal,
		TopicID:     topicID,
		Data:        payload,
	}

	switch qos {
	case QoS0:
		return 0, e.send(e.gateway, p)
	case QoS1:
		p.MsgID = e.msgIDs.allocate(e.queue)
		if err := e.sendQueued(p, KeyByMsgID(p.MsgID), Topic{ID: topicID}); err != nil {
			return 0, err
		}
		return p.MsgID, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
}

// Subscribe subscribes to a topic name, short topic name or predefined id.
func (e *Engine) Subscribe(topic Topic, qos QoS) (uint16, error) {
	if err := e.requireState("subscribe", StateConnected); err != nil {
		return 0, err
	}
	if err := topic.Validate(); err != nil {
		return 0, err
	}
	if qos != QoS0 && qos != QoS1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}

	msgID := e.msgIDs.allocate(e.queue)
	if err := e.sendQueued(topic.subscribePacket(msgID, qos, false), KeyByMsgID(msgID), topic); err != nil {
		return 0, err
	}
	return msgID, nil
}

// Unsubscribe removes a subscription made with Subscribe.
func (e *Engine) Unsubscribe(topic Topic) (uint16, error) {
	if err := e.requireState("unsubscribe", StateConnected); err != nil {
		return 0, err
	}
	if err := topic.Validate(); err != nil {
		return 0, err
	}

	msgID := e.msgIDs.allocate(e.queue)
	if err := e.sendQueued(topic.subscribePacket(msgID, QoS0, true), KeyByMsgID(msgID), topic); err != nil {
		return 0, err
	}
	return msgID, nil
}

// WillTopicUpdate replaces the will topic stored by the gateway.
func (e *Engine) WillTopicUpdate(topic string) error {
	if err := e.requireState("will topic update", StateConnected); err != nil {
		return err
	}
	if err := validateWillTopic(topic); err != nil {
		return err
	}

	p := &WillTopicPacket{Update: true, QoS: QoS0, Topic: topic}
	return e.sendQueued(p, KeyByMsgType(MsgTypeWillTopicUpd), TopicName(topic))
}

// WillMessageUpdate replaces the will message stored by the gateway.
func (e *Engine) WillMessageUpdate(msg []byte) error {
	if err := e.requireState("will message update", StateConnected); err != nil {
		return err
	}
	if err := validateWillMessage(msg); err != nil {
		return err
	}

	p := &WillMsgPacket{Update: true, Message: slices.Clone(msg)}
	if err := e.sendQueued(p, KeyByMsgType(MsgTypeWillMsgUpd), Topic{}); err != nil {
		return err
	}
	e.pendingWillMessage = p.Message
	return nil
}

func (e *Engine) sendSearchGW() error {
	return e.send(e.broadcast, &SearchGWPacket{Radius: e.searchRadius})
}

func (e *Engine) sendWillTopic() error {
	return e.send(e.gateway, &WillTopicPacket{QoS: QoS0, Topic: e.willTopic})
}

func (e *Engine) sendWillMsg() error {
	return e.send(e.gateway, &WillMsgPacket{Message: e.willMessage})
}

func (e *Engine) sendRegack(topicID, msgID uint16) error {
	return e.send(e.gateway, &RegackPacket{TopicID: topicID, MsgID: msgID, ReturnCode: ReturnAccepted})
}

func (e *Engine) sendPuback(topicID, msgID uint16) error {
	return e.send(e.gateway, &PubackPacket{TopicID: topicID, MsgID: msgID, ReturnCode: ReturnAccepted})
}
