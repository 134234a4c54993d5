package mqttsn

import "fmt"

// EventKind identifies the concrete type of an Event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventDisconnectPermit
	EventGatewayFound
	EventPublished
	EventReceived
	EventRegistered
	EventRegisterReceived
	EventSearchGatewayTimeout
	EventSleepPermit
	EventSleepStop
	EventSubscribed
	EventUnsubscribed
	EventWillTopicUpdated
	EventWillMessageUpdated
	EventTimeout
)

var eventKindNames = [...]string{
	EventConnected:            "connected",
	EventDisconnected:         "disconnected",
	EventDisconnectPermit:     "disconnect permit",
	EventGatewayFound:         "gateway found",
	EventPublished:            "published",
	EventReceived:             "received",
	EventRegistered:           "registered",
	EventRegisterReceived:     "register received",
	EventSearchGatewayTimeout: "search gateway timeout",
	EventSleepPermit:          "sleep permit",
	EventSleepStop:            "sleep stop",
	EventSubscribed:           "subscribed",
	EventUnsubscribed:         "unsubscribed",
	EventWillTopicUpdated:     "will topic updated",
	EventWillMessageUpdated:   "will message updated",
	EventTimeout:              "timeout",
}

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// Event is a client-visible outcome of a receive or timer step.
// The set of implementations is closed; switch on the concrete type.
type Event interface {
	Kind() EventKind
	isEvent()
}

// ConnectedEvent is raised when the gateway accepted CONNECT.
type ConnectedEvent struct{}

// DisconnectedEvent is raised when the gateway terminated the session.
type DisconnectedEvent struct{}

// DisconnectPermitEvent is raised when the gateway confirmed a requested disconnect.
type DisconnectPermitEvent struct{}

// GatewayFoundEvent is raised for every GWINFO received while a search is pending.
type GatewayFoundEvent struct {
	GatewayID uint8
	Remote    Remote
}

// PublishedEvent is raised when a QoS 1 PUBLISH was acknowledged.
type PublishedEvent struct {
	MsgID   uint16
	TopicID uint16
}

// ReceivedEvent is raised for every inbound PUBLISH.
type ReceivedEvent struct {
	TopicID     uint16
	TopicIDType TopicIDType
	MsgID       uint16
	QoS         QoS
	Retain      bool
	Payload     []byte
}

// RegisteredEvent is raised when the gateway assigned a topic id to a REGISTER.
type RegisteredEvent struct {
	MsgID     uint16
	TopicID   uint16
	TopicName string
}

// RegisterReceivedEvent is raised when the gateway announced a topic id,
// typically for a topic matched by a wildcard subscription.
type RegisterReceivedEvent struct {
	MsgID     uint16
	TopicID   uint16
	TopicName string
}

// SearchGatewayResult is the outcome carried by SearchGatewayTimeoutEvent.
type SearchGatewayResult int

const (
	// SearchGatewayFinished means at least one gateway answered.
	SearchGatewayFinished SearchGatewayResult = iota
	// SearchGatewayTransportFailed means SEARCHGW could not be sent.
	SearchGatewayTransportFailed
	// SearchGatewayPlatformFailed means the discovery timer could not be armed.
	SearchGatewayPlatformFailed
	// SearchGatewayNoGatewayFound means no GWINFO arrived before the timeout.
	SearchGatewayNoGatewayFound
)

// String returns the string representation of the result.
func (r SearchGatewayResult) String() string {
	switch r {
	case SearchGatewayFinished:
		return "finished"
	case SearchGatewayTransportFailed:
		return "transport failed"
	case SearchGatewayPlatformFailed:
		return "platform failed"
	case SearchGatewayNoGatewayFound:
		return "no gateway found"
	default:
		return "unknown"
	}
}

// SearchGatewayTimeoutEvent is raised once per gateway search when it ends.
type SearchGatewayTimeoutEvent struct {
	Result SearchGatewayResult
}

// SleepPermitEvent is raised when the gateway allowed the client to sleep,
// and again after each wake-up PINGRESP.
type SleepPermitEvent struct{}

// SleepStopEvent is raised when a sleeping client wakes up to ping the gateway.
type SleepStopEvent struct{}

// SubscribedEvent is raised when SUBSCRIBE was acknowledged.
type SubscribedEvent struct {
	MsgID      uint16
	TopicID    uint16
	GrantedQoS QoS
	Topic      Topic
}

// UnsubscribedEvent is raised when UNSUBSCRIBE was acknowledged.
type UnsubscribedEvent struct {
	MsgID uint16
	Topic Topic
}

// WillTopicUpdatedEvent is raised when WILLTOPICUPD was acknowledged.
type WillTopicUpdatedEvent struct{}

// WillMessageUpdatedEvent is raised when WILLMSGUPD was acknowledged.
type WillMessageUpdatedEvent struct{}

// TimeoutEvent is raised when a request was rejected for congestion or ran
// out of retransmissions. It doubles as an error:
// errors.Is(ev, ErrRejectedCongestion) or errors.Is(ev, ErrRetransmissionTimeout).
type TimeoutEvent struct {
	err error
	// MsgType is the request that was not acknowledged.
	MsgType MsgType
	// MsgID is zero for requests keyed by message type.
	MsgID uint16
}

// NewTimeoutEvent creates a new TimeoutEvent.
func NewTimeoutEvent(reason error, t MsgType, msgID uint16) *TimeoutEvent {
	return &TimeoutEvent{err: reason, MsgType: t, MsgID: msgID}
}

func (e *TimeoutEvent) Error() string {
	return fmt.Sprintf("%s: %s msg_id=%d", e.err, e.MsgType, e.MsgID)
}

func (e *TimeoutEvent) Unwrap() error { return e.err }

func (ConnectedEvent) Kind() EventKind            { return EventConnected }
func (DisconnectedEvent) Kind() EventKind         { return EventDisconnected }
func (DisconnectPermitEvent) Kind() EventKind     { return EventDisconnectPermit }
func (GatewayFoundEvent) Kind() EventKind         { return EventGatewayFound }
func (PublishedEvent) Kind() EventKind            { return EventPublished }
func (ReceivedEvent) Kind() EventKind             { return EventReceived }
func (RegisteredEvent) Kind() EventKind           { return EventRegistered }
func (RegisterReceivedEvent) Kind() EventKind     { return EventRegisterReceived }
func (SearchGatewayTimeoutEvent) Kind() EventKind { return EventSearchGatewayTimeout }
func (SleepPermitEvent) Kind() EventKind          { return EventSleepPermit }
func (SleepStopEvent) Kind() EventKind            { return EventSleepStop }
func (SubscribedEvent) Kind() EventKind           { return EventSubscribed }
func (UnsubscribedEvent) Kind() EventKind         { return EventUnsubscribed }
func (WillTopicUpdatedEvent) Kind() EventKind     { return EventWillTopicUpdated }
func (WillMessageUpdatedEvent) Kind() EventKind   { return EventWillMessageUpdated }
func (*TimeoutEvent) Kind() EventKind             { return EventTimeout }

func (ConnectedEvent) isEvent()            {}
func (DisconnectedEvent) isEvent()         {}
func (DisconnectPermitEvent) isEvent()     {}
func (GatewayFoundEvent) isEvent()         {}
func (PublishedEvent) isEvent()            {}
func (ReceivedEvent) isEvent()             {}
func (RegisteredEvent) isEvent()           {}
func (RegisterReceivedEvent) isEvent()     {}
func (SearchGatewayTimeoutEvent) isEvent() {}
func (SleepPermitEvent) isEvent()          {}
func (SleepStopEvent) isEvent()            {}
func (SubscribedEvent) isEvent()           {}
func (UnsubscribedEvent) isEvent()         {}
func (WillTopicUpdatedEvent) isEvent()     {}
func (WillMessageUpdatedEvent) isEvent()   {}
func (*TimeoutEvent) isEvent()             {}
