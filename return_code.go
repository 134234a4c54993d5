package mqttsn

// ReturnCode is the MQTT-SN return code carried by acknowledgments.
// MQTT-SN v1.2 spec: Section 5.3.10
type ReturnCode byte

const (
	// ReturnAccepted means the request was accepted.
	ReturnAccepted ReturnCode = 0x00
	// ReturnCongestion means the gateway rejected the request because it is congested.
	ReturnCongestion ReturnCode = 0x01
	// ReturnInvalidTopicID means the topic id is unknown to the gateway.
	ReturnInvalidTopicID ReturnCode = 0x02
	// ReturnNotSupported means the gateway does not support the request.
	ReturnNotSupported ReturnCode = 0x03
)

// String returns the string representation of the return code.
func (c ReturnCode) String() string {
	switch c {
	case ReturnAccepted:
		return "accepted"
	case ReturnCongestion:
		return "rejected: congestion"
	case ReturnInvalidTopicID:
		return "rejected: invalid topic id"
	case ReturnNotSupported:
		return "rejected: not supported"
	default:
		return "reserved"
	}
}

// Valid returns true if the return code is defined by MQTT-SN v1.2.
func (c ReturnCode) Valid() bool {
	return c <= ReturnNotSupported
}

// IsAccepted returns true for ReturnAccepted.
func (c ReturnCode) IsAccepted() bool {
	return c == ReturnAccepted
}
