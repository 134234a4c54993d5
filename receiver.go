package mqttsn

import (
	"fmt"
	"net/netip"
)

// msgTypeUnknown labels datagrams dropped before the type is known.
const msgTypeUnknown MsgType = 0xff

// Deliver processes one inbound datagram received on localPort from remote.
// Malformed datagrams and messages that are not expected in the current
// state are dropped without an error. The returned error is set only for
// acknowledgments the client cannot act on.
func (e *Engine) Deliver(localPort uint16, remote Remote, data []byte) ([]Event, error) {
	if localPort != e.port {
		e.drop(dropReasonPort, msgTypeUnknown, remote, nil)
		return nil, nil
	}
	if e.state == StateUninitialized {
		e.drop(dropReasonState, msgTypeUnknown, remote, nil)
		return nil, nil
	}

	msgType, err := PeekMsgType(data)
	if err != nil {
		e.drop(dropReasonMalformed, msgTypeUnknown, remote, err)
		return nil, nil
	}
	packet, err := ReadPacket(data)
	if err != nil {
		e.drop(dropReasonMalformed, msgType, remote, err)
		return nil, nil
	}
	e.metrics.PacketReceived(msgType, len(data))

	events, err := e.dispatch(remote, packet)

	if rerr := e.reschedule(); rerr != nil {
		e.logger.Error("failed to reschedule after receive", LogFields{LogFieldError: rerr.Error()})
	}
	return events, err
}

func (e *Engine) dispatch(remote Remote, packet Packet) ([]Event, error) {
	switch p := packet.(type) {
	case *AdvertisePacket:
		e.logger.Debug("ignoring ADVERTISE", LogFields{"gateway_id": p.GatewayID, LogFieldRemoteAddr: remote.String()})
		return nil, nil
	case *GWInfoPacket:
		return e.handleGWInfo(remote, p), nil
	case *ConnackPacket:
		return e.handleConnack(p)
	case *WillTopicReqPacket:
		return nil, e.handleWillRequest(MsgTypeWillTopicReq, e.sendWillTopic)
	case *WillMsgReqPacket:
		return nil, e.handleWillRequest(MsgTypeWillMsgReq, e.sendWillMsg)
	case *RegisterPacket:
		return e.handleRegister(p), nil
	case *RegackPacket:
		return e.handleRegack(p)
	case *PublishPacket:
		return e.handlePublish(p), nil
	case *PubackPacket:
		return e.handlePuback(p)
	case *SubackPacket:
		return e.handleSuback(p)
	case *UnsubackPacket:
		return e.handleUnsuback(p)
	case *PingrespPacket:
		return e.handlePingresp(), nil
	case *DisconnectPacket:
		return e.handleDisconnect(), nil
	case *WillRespPacket:
		return e.handleWillResp(p)
	default:
		e.drop(dropReasonUnexpected, packet.Type(), remote, nil)
		return nil, nil
	}
}

func (e *Engine) drop(reason string, t MsgType, remote Remote, err error) {
	e.metrics.PacketDropped(reason)

	fields := LogFields{
		"reason":           reason,
		LogFieldMsgType:    t.String(),
		LogFieldRemoteAddr: remote.String(),
		LogFieldState:      e.state.String(),
	}
	if err != nil {
		fields[LogFieldError] = err.Error()
		e.logger.Warn("dropping datagram", fields)
		return
	}
	e.logger.Debug("dropping datagram", fields)
}

func (e *Engine) handleGWInfo(remote Remote, p *GWInfoPacket) []Event {
	if !e.discovery.pending {
		e.drop(dropReasonUnexpected, MsgTypeGWInfo, remote, nil)
		return nil
	}

	// A GWINFO relayed by another client carries the gateway address.
	gateway := remote
	if addr, ok := netip.AddrFromSlice(p.GatewayAddress); ok {
		gateway = RemoteFromAddrPort(netip.AddrPortFrom(addr, remote.Port))
	}

	e.discovery.record(p.GatewayID, gateway)
	e.logger.Info("gateway found", LogFields{"gateway_id": p.GatewayID, LogFieldRemoteAddr: gateway.String()})
	return []Event{GatewayFoundEvent{GatewayID: p.GatewayID, Remote: gateway}}
}

func (e *Engine) handleConnack(p *ConnackPacket) ([]Event, error) {
	if e.state != StateEstablishingConnection {
		return nil, fmt.Errorf("%w: CONNACK in state %s", ErrUnexpectedPacket, e.state)
	}

	key := KeyByMsgType(MsgTypeConnect)
	switch p.ReturnCode {
	case ReturnAccepted:
		pingreq, err := EncodePacket(&PingreqPacket{ClientID: e.clientID})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", MsgTypePingreq, err)
		}
		if entry := e.queue.Get(key); entry != nil {
			e.ackLatency(entry)
			_ = e.queue.Dequeue(key)
			e.metrics.QueueDepth(e.queue.Len())
		}

		e.keepAlive.start(pingreq, uint32(e.aliveDuration)*1000, e.platform.Now(), e.keepAliveRetries())
		e.apply(evConnackReceived)
		e.logger.Info("connected", LogFields{LogFieldClientID: e.clientID, LogFieldRemoteAddr: e.gateway.String()})
		return []Event{ConnectedEvent{}}, nil

	case ReturnCongestion:
		_ = e.queue.Dequeue(key)
		e.metrics.QueueDepth(e.queue.Len())
		e.metrics.Timeout(MsgTypeConnect)
		e.apply(evConnectTimeout)
		e.logger.Warn("connection rejected", LogFields{LogFieldReturnCode: p.ReturnCode.String()})
		return []Event{NewTimeoutEvent(ErrRejectedCongestion, MsgTypeConnect, 0)}, nil

	default:
		return nil, NewProtocolViolationError(MsgTypeConnack, 0, p.ReturnCode)
	}
}

// keepAliveRetries is the PINGREQ budget: the first transmission plus the
// regular retransmissions.
func (e *Engine) keepAliveRetries() uint8 {
	return e.retransmitCount + 1
}

func (e *Engine) handleWillRequest(t MsgType, answer func() error) error {
	if e.state != StateEstablishingConnection {
		e.drop(dropReasonUnexpected, t, e.gateway, nil)
		return nil
	}
	return answer()
}

func (e *Engine) handleRegister(p *RegisterPacket) []Event {
	if !e.state.inSession() {
		e.drop(dropReasonState, MsgTypeRegister, e.gateway, nil)
		return nil
	}

	if err := e.sendRegack(p.TopicID, p.MsgID); err != nil {
		e.logger.Warn("failed to acknowledge REGISTER", LogFields{LogFieldMsgID: p.MsgID, LogFieldError: err.Error()})
	}
	return []Event{RegisterReceivedEvent{MsgID: p.MsgID, TopicID: p.TopicID, TopicName: p.TopicName}}
}

func (e *Engine) handlePublish(p *PublishPacket) []Event {
	if !e.state.inSession() {
		e.drop(dropReasonState, MsgTypePublish, e.gateway, nil)
		return nil
	}

	if p.QoS == QoS1 || p.QoS == QoS2 {
		if err := e.sendPuback(p.TopicID, p.MsgID); err != nil {
			e.logger.Warn("failed to acknowledge PUBLISH", LogFields{LogFieldMsgID: p.MsgID, LogFieldError: err.Error()})
		}
	}

	return []Event{ReceivedEvent{
		TopicID:     p.TopicID,
		TopicIDType: p.TopicIDType,
		MsgID:       p.MsgID,
		QoS:         p.QoS,
		Retain:      p.Retain,
		Payload:     p.Data,
	}}
}

// resolveAck matches an acknowledgment against the queue. It returns the
// acknowledged entry on acceptance, a TimeoutEvent on congestion, or an
// error for any other return code. All three are nil when the ack is dropped.
func (e *Engine) resolveAck(ackType, requestType MsgType, key QueueKey, code ReturnCode) (*QueuedPacket, Event, error) {
	if !e.state.inSession() {
		e.drop(dropReasonState, ackType, e.gateway, nil)
		return nil, nil, nil
	}

	entry := e.queue.Get(key)
	if entry == nil || entry.MsgType != requestType {
		e.drop(dropReasonNoMatch, ackType, e.gateway, nil)
		return nil, nil, nil
	}

	switch code {
	case ReturnAccepted:
		e.ackLatency(entry)
		_ = e.queue.Dequeue(key)
		e.metrics.QueueDepth(e.queue.Len())
		return entry, nil, nil

	case ReturnCongestion:
		_ = e.queue.Dequeue(key)
		e.metrics.QueueDepth(e.queue.Len())
		e.metrics.Timeout(requestType)
		e.logger.Warn("request rejected", LogFields{
			LogFieldMsgType:    requestType.String(),
			LogFieldMsgID:      key.MsgID,
			LogFieldReturnCode: code.String(),
		})
		return nil, NewTimeoutEvent(ErrRejectedCongestion, requestType, key.MsgID), nil

	default:
		return nil, nil, NewProtocolViolationError(ackType, key.MsgID, code)
	}
}

// ackEvents turns a resolveAck result into the receive result.
func ackEvents(entry *QueuedPacket, rejected Event, err error, accepted func(*QueuedPacket) Event) ([]Event, error) {
	switch {
	case err != nil:
		return nil, err
	case rejected != nil:
		return []Event{rejected}, nil
	case entry != nil:
		return []Event{accepted(entry)}, nil
	default:
		return nil, nil
	}
}

func (e *Engine) handleRegack(p *RegackPacket) ([]Event, error) {
	entry, rejected, err := e.resolveAck(MsgTypeRegack, MsgTypeRegister, KeyByMsgID(p.MsgID), p.ReturnCode)
	return ackEvents(entry, rejected, err, func(entry *QueuedPacket) Event {
		return RegisteredEvent{MsgID: p.MsgID, TopicID: p.TopicID, TopicName: entry.Topic.Name}
	})
}

func (e *Engine) handlePuback(p *PubackPacket) ([]Event, error) {
	entry, rejected, err := e.resolveAck(MsgTypePuback, MsgTypePublish, KeyByMsgID(p.MsgID), p.ReturnCode)
	return ackEvents(entry, rejected, err, func(*QueuedPacket) Event {
		return PublishedEvent{MsgID: p.MsgID, TopicID: p.TopicID}
	})
}

func (e *Engine) handleSuback(p *SubackPacket) ([]Event, error) {
	entry, rejected, err := e.resolveAck(MsgTypeSuback, MsgTypeSubscribe, KeyByMsgID(p.MsgID), p.ReturnCode)
	return ackEvents(entry, rejected, err, func(entry *QueuedPacket) Event {
		return SubscribedEvent{MsgID: p.MsgID, TopicID: p.TopicID, GrantedQoS: p.QoS, Topic: entry.Topic}
	})
}

func (e *Engine) handleUnsuback(p *UnsubackPacket) ([]Event, error) {
	entry, rejected, err := e.resolveAck(MsgTypeUnsuback, MsgTypeUnsubscribe, KeyByMsgID(p.MsgID), ReturnAccepted)
	return ackEvents(entry, rejected, err, func(entry *QueuedPacket) Event {
		return UnsubscribedEvent{MsgID: p.MsgID, Topic: entry.Topic}
	})
}

func (e *Engine) handleWillResp(p *WillRespPacket) ([]Event, error) {
	if p.Message {
		entry, rejected, err := e.resolveAck(MsgTypeWillMsgResp, MsgTypeWillMsgUpd, KeyByMsgType(MsgTypeWillMsgUpd), p.ReturnCode)
		return ackEvents(entry, rejected, err, func(*QueuedPacket) Event {
			e.willMessage = e.pendingWillMessage
			e.pendingWillMessage = nil
			return WillMessageUpdatedEvent{}
		})
	}

	entry, rejected, err := e.resolveAck(MsgTypeWillTopicResp, MsgTypeWillTopicUpd, KeyByMsgType(MsgTypeWillTopicUpd), p.ReturnCode)
	return ackEvents(entry, rejected, err, func(entry *QueuedPacket) Event {
		e.willTopic = entry.Topic.Name
		return WillTopicUpdatedEvent{}
	})
}

func (e *Engine) handlePingresp() []Event {
	if !e.keepAlive.awaitingResponse || (e.state != StateConnected && e.state != StateAwake) {
		e.drop(dropReasonUnexpected, MsgTypePingresp, e.gateway, nil)
		return nil
	}

	e.keepAlive.rearm(e.platform.Now(), e.keepAliveRetries())
	e.apply(evPingrespReceived)
	if e.state == StateAsleep {
		return []Event{SleepPermitEvent{}}
	}
	return nil
}

func (e *Engine) handleDisconnect() []Event {
	switch e.state {
	case StateWaitingForDisconnect:
		e.apply(evDisconnectPermissionReceived)
		e.endSession()
		e.logger.Info("disconnected", LogFields{LogFieldClientID: e.clientID})
		return []Event{DisconnectPermitEvent{}}

	case StateWaitingForSleep:
		e.apply(evSleepPermissionReceived)
		e.keepAlive.rearm(e.platform.Now(), e.keepAliveRetries())
		e.logger.Info("asleep", LogFields{LogFieldClientID: e.clientID})
		return []Event{SleepPermitEvent{}}

	case StateEstablishingConnection, StateConnected, StateAsleep, StateAwake:
		e.apply(evDisconnectReceived)
		e.endSession()
		e.logger.Warn("gateway closed the session", LogFields{LogFieldClientID: e.clientID})
		return []Event{DisconnectedEvent{}}

	default:
		e.drop(dropReasonState, MsgTypeDisconnect, e.gateway, nil)
		return nil
	}
}
