package mqttsn

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller misuse - check with errors.Is().
var (
	// ErrNotInitialized is returned when the engine has been uninitialized.
	ErrNotInitialized = errors.New("client not initialized")

	// ErrInvalidState is returned when an operation is not valid in the current connection state.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrInvalidArgument is returned when a required argument is missing or out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTopic is returned when a topic is empty, too long, or names both a name and an id.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidClientID is returned when the client id is empty or longer than 23 bytes.
	ErrInvalidClientID = errors.New("invalid client id")

	// ErrMsgIDRequired is returned when a message needing an id carries zero.
	ErrMsgIDRequired = errors.New("message id required")

	// ErrDiscoveryPending is returned when a gateway search is already running.
	ErrDiscoveryPending = errors.New("gateway discovery already pending")

	// ErrInvalidConfig is returned when a config file cannot be decoded or holds invalid values.
	ErrInvalidConfig = errors.New("invalid config")
)

// Sentinel errors for resource exhaustion - check with errors.Is().
var (
	// ErrQueueFull is returned when the packet queue has no free slot.
	ErrQueueFull = errors.New("packet queue full")

	// ErrDuplicateKey is returned when a message with the same key is already in flight.
	ErrDuplicateKey = errors.New("message with the same key already in flight")

	// ErrQueueEntryNotFound is returned when no queued packet matches a key.
	ErrQueueEntryNotFound = errors.New("queued packet not found")
)

// Sentinel errors for collaborator failures - check with errors.Is().
var (
	// ErrTransport wraps failures reported by the datagram transport.
	ErrTransport = errors.New("transport failure")

	// ErrPlatform wraps failures reported by the platform timer.
	ErrPlatform = errors.New("platform failure")

	// ErrClientClosed is returned when an operation is attempted on a closed client.
	ErrClientClosed = errors.New("client closed")
)

// Sentinel errors for protocol issues - check with errors.Is().
var (
	// ErrProtocolViolation is returned when the gateway sends a return code the client cannot act on.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrUnexpectedPacket is returned when a message arrives in a state that rejects it.
	ErrUnexpectedPacket = errors.New("unexpected packet")

	// ErrRejectedCongestion is carried by TimeoutEvent when the gateway answered "rejected: congestion".
	ErrRejectedCongestion = errors.New("rejected: congestion")

	// ErrRetransmissionTimeout is carried by TimeoutEvent when the retry budget ran out.
	ErrRetransmissionTimeout = errors.New("retransmission timeout")
)

// ProtocolViolationError describes an acknowledgment whose return code is
// neither accepted nor congestion.
// Extract with errors.As().
type ProtocolViolationError struct {
	MsgType    MsgType
	MsgID      uint16
	ReturnCode ReturnCode
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %s msg_id=%d return code %s (0x%02x)",
		e.MsgType, e.MsgID, e.ReturnCode, byte(e.ReturnCode))
}

func (e *ProtocolViolationError) Unwrap() error { return ErrProtocolViolation }

// NewProtocolViolationError creates a new ProtocolViolationError.
func NewProtocolViolationError(t MsgType, msgID uint16, code ReturnCode) *ProtocolViolationError {
	return &ProtocolViolationError{
		MsgType:    t,
		MsgID:      msgID,
		ReturnCode: code,
	}
}
