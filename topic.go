package mqttsn

import "strconv"

// Topic names a topic either by name or by a numeric topic id.
// Exactly one of the two fields is set.
type Topic struct {
	// Name is a full topic name, or a two-character short topic name.
	Name string
	// ID is a predefined topic id.
	ID uint16
}

// TopicName returns a topic addressed by name.
func TopicName(name string) Topic {
	return Topic{Name: name}
}

// PredefinedTopic returns a topic addressed by a predefined topic id.
func PredefinedTopic(id uint16) Topic {
	return Topic{ID: id}
}

// Validate checks that exactly one of name and id is set.
func (t Topic) Validate() error {
	if (t.Name == "") == (t.ID == 0) {
		return ErrInvalidTopic
	}
	if len(t.Name) > maxMessageLength-extendedHeaderSize-3 {
		return ErrInvalidTopic
	}
	return nil
}

// String returns the topic name, or the id in brackets.
func (t Topic) String() string {
	if t.Name != "" {
		return t.Name
	}
	return "[" + strconv.Itoa(int(t.ID)) + "]"
}

// idType returns the topic id type used to carry the topic on the wire.
func (t Topic) idType() TopicIDType {
	switch {
	case t.Name == "":
		return TopicIDTypePredefined
	case len(t.Name) == 2:
		return TopicIDTypeShort
	default:
		return TopicIDTypeNormal
	}
}

// subscribePacket fills the topic fields of a SUBSCRIBE or UNSUBSCRIBE.
func (t Topic) subscribePacket(msgID uint16, qos QoS, unsubscribe bool) *SubscribePacket {
	return &SubscribePacket{
		Unsubscribe: unsubscribe,
		QoS:         qos,
		TopicIDType: t.idType(),
		MsgID:       msgID,
		TopicName:   t.Name,
		TopicID:     t.ID,
	}
}
