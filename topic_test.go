package mqttsn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicValidate(t *testing.T) {
	tests := []struct {
		name    string
		topic   Topic
		wantErr error
	}{
		{"name", TopicName("sensors/temp"), nil},
		{"wildcard name", TopicName("sensors/#"), nil},
		{"short name", TopicName("ab"), nil},
		{"predefined", PredefinedTopic(7), nil},
		{"empty", Topic{}, ErrInvalidTopic},
		{"both set", Topic{Name: "a/b", ID: 7}, ErrInvalidTopic},
		{"name too long", TopicName(strings.Repeat("a", maxMessageLength)), ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topic.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTopicIDType(t *testing.T) {
	assert.Equal(t, TopicIDTypeNormal, TopicName("a/b").idType())
	assert.Equal(t, TopicIDTypeShort, TopicName("ab").idType())
	assert.Equal(t, TopicIDTypePredefined, PredefinedTopic(1).idType())

	p := TopicName("ab").subscribePacket(3, QoS1, true)
	assert.True(t, p.Unsubscribe)
	assert.Equal(t, TopicIDTypeShort, p.TopicIDType)
	assert.Equal(t, uint16(3), p.MsgID)
	assert.Equal(t, "ab", p.TopicName)
}

func TestTopicString(t *testing.T) {
	assert.Equal(t, "a/b", TopicName("a/b").String())
	assert.Equal(t, "[42]", PredefinedTopic(42).String())
}
