package router

import (
	"regexp"
	"strings"
	"sync"

	"github.com/vitalvas/mqttsn"
)

// Message is an inbound PUBLISH with its topic name resolved when known.
type Message struct {
	TopicID     uint16
	TopicIDType mqttsn.TopicIDType
	// TopicName is empty when the topic id was never registered with the router.
	TopicName string
	MsgID     uint16
	QoS       mqttsn.QoS
	Retain    bool
	Payload   []byte
}

// Handler processes a routed message.
type Handler func(msg *Message)

// Condition defines filtering criteria for message routing.
type Condition struct {
	topicFilter   *string
	topicID       *uint16
	qos           *mqttsn.QoS
	payloadRegexp *regexp.Regexp
}

// ConditionOption configures a Condition.
type ConditionOption func(*Condition)

// WithTopic sets the topic filter for message matching.
// Supports MQTT wildcards: + (single level) and # (multi level).
func WithTopic(filter string) ConditionOption {
	return func(c *Condition) {
		c.topicFilter = &filter
	}
}

// WithTopicID matches a normal or predefined topic id.
func WithTopicID(id uint16) ConditionOption {
	return func(c *Condition) {
		c.topicID = &id
	}
}

// WithQoS filters messages by QoS level.
func WithQoS(qos mqttsn.QoS) ConditionOption {
	return func(c *Condition) {
		c.qos = &qos
	}
}

// WithPayload filters messages by a payload regexp pattern.
func WithPayload(pattern *regexp.Regexp) ConditionOption {
	return func(c *Condition) {
		c.payloadRegexp = pattern
	}
}

type registration struct {
	handler   Handler
	condition Condition
}

// Router dispatches received messages to handlers. It learns topic names
// from REGISTER, REGACK and SUBACK events so filters can name topics even
// though PUBLISH only carries a topic id.
type Router struct {
	mu       sync.RWMutex
	handlers []registration
	names    map[uint16]string
}

// New creates a new Router.
func New() *Router {
	return &Router{
		handlers: make([]registration, 0),
		names:    make(map[uint16]string),
	}
}

// Handle registers a handler with optional conditions.
//
// Examples:
//
//	r.Handle(handler, WithTopic("sensors/#"))
//	r.Handle(handler, WithTopicID(7), WithQoS(mqttsn.QoS1))
func (r *Router) Handle(handler Handler, opts ...ConditionOption) {
	var cond Condition
	for _, opt := range opts {
		opt(&cond)
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, registration{
		handler:   handler,
		condition: cond,
	})
	r.mu.Unlock()
}

// Learn records the name of a normal topic id.
func (r *Router) Learn(topicID uint16, name string) {
	if topicID == 0 || name == "" {
		return
	}
	r.mu.Lock()
	r.names[topicID] = name
	r.mu.Unlock()
}

// TopicName returns the learned name of a topic id.
func (r *Router) TopicName(topicID uint16) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.names[topicID]
	return name, ok
}

func (c *Condition) matches(msg *Message) bool {
	if c.topicFilter != nil && (msg.TopicName == "" || !TopicMatch(*c.topicFilter, msg.TopicName)) {
		return false
	}
	if c.topicID != nil && (msg.TopicIDType == mqttsn.TopicIDTypeShort || *c.topicID != msg.TopicID) {
		return false
	}
	if c.qos != nil && *c.qos != msg.QoS {
		return false
	}
	if c.payloadRegexp != nil && !c.payloadRegexp.Match(msg.Payload) {
		return false
	}
	return true
}

// Route dispatches a message to all matching handlers.
// Multiple handlers may be called if multiple conditions match.
func (r *Router) Route(msg *Message) {
	if msg == nil {
		return
	}

	r.mu.RLock()
	var matched []Handler
	for _, reg := range r.handlers {
		if reg.condition.matches(msg) {
			matched = append(matched, reg.handler)
		}
	}
	r.mu.RUnlock()

	for _, handler := range matched {
		handler(msg)
	}
}

// Message converts a ReceivedEvent, resolving the topic name.
func (r *Router) Message(ev mqttsn.ReceivedEvent) *Message {
	msg := &Message{
		TopicID:     ev.TopicID,
		TopicIDType: ev.TopicIDType,
		MsgID:       ev.MsgID,
		QoS:         ev.QoS,
		Retain:      ev.Retain,
		Payload:     ev.Payload,
	}

	switch ev.TopicIDType {
	case mqttsn.TopicIDTypeShort:
		msg.TopicName = string([]byte{byte(ev.TopicID >> 8), byte(ev.TopicID)})
	case mqttsn.TopicIDTypeNormal:
		msg.TopicName, _ = r.TopicName(ev.TopicID)
	}
	return msg
}

// Observe feeds a client event to the router: topic announcements are
// learned and received messages are routed.
func (r *Router) Observe(ev mqttsn.Event) {
	switch e := ev.(type) {
	case mqttsn.RegisteredEvent:
		r.Learn(e.TopicID, e.TopicName)
	case mqttsn.RegisterReceivedEvent:
		r.Learn(e.TopicID, e.TopicName)
	case mqttsn.SubscribedEvent:
		if len(e.Topic.Name) > 2 && !strings.ContainsAny(e.Topic.Name, "+#") {
			r.Learn(e.TopicID, e.Topic.Name)
		}
	case mqttsn.ReceivedEvent:
		r.Route(r.Message(e))
	}
}

// Filters returns all unique registered topic filters.
func (r *Router) Filters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	filters := make([]string, 0)
	for _, reg := range r.handlers {
		if reg.condition.topicFilter == nil {
			continue
		}
		f := *reg.condition.topicFilter
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		filters = append(filters, f)
	}
	return filters
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes all handlers and learned topic names.
func (r *Router) Clear() {
	r.mu.Lock()
	r.handlers = r.handlers[:0]
	clear(r.names)
	r.mu.Unlock()
}

// EventHandler returns a client event handler that feeds every event to
// the router and then calls next, if set.
func (r *Router) EventHandler(next mqttsn.EventHandler) mqttsn.EventHandler {
	return func(c *mqttsn.Client, ev mqttsn.Event) {
		r.Observe(ev)
		if next != nil {
			next(c, ev)
		}
	}
}

// TopicMatch reports whether topic matches filter. Topics starting with '$'
// are not matched by a leading wildcard.
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if topic[0] == '$' && (filter[0] == '+' || filter[0] == '#') {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		switch f {
		case "#":
			return i == len(fl)-1
		case "+":
			if i >= len(tl) {
				return false
			}
		default:
			if i >= len(tl) || f != tl[i] {
				return false
			}
		}
	}
	return len(fl) == len(tl)
}
