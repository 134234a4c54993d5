package mqttsn

import "fmt"

// State is the connection state of the client session.
type State int

const (
	StateUninitialized State = iota
	StateDisconnected
	StateEstablishingConnection
	StateConnected
	StateWaitingForSleep
	StateAsleep
	StateAwake
	StateWaitingForDisconnect
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDisconnected:
		return "disconnected"
	case StateEstablishingConnection:
		return "establishing connection"
	case StateConnected:
		return "connected"
	case StateWaitingForSleep:
		return "waiting for sleep"
	case StateAsleep:
		return "asleep"
	case StateAwake:
		return "awake"
	case StateWaitingForDisconnect:
		return "waiting for disconnect"
	default:
		return "unknown"
	}
}

// inSession reports whether the gateway holds a session for the client.
func (s State) inSession() bool {
	switch s {
	case StateConnected, StateWaitingForSleep, StateAsleep, StateAwake, StateWaitingForDisconnect:
		return true
	default:
		return false
	}
}

// keepsAlive reports whether the keep-alive slot is serviced in this state.
func (s State) keepsAlive() bool {
	return s == StateConnected || s == StateAsleep || s == StateAwake
}

// stateEvent names a transition of the connection state machine.
type stateEvent int

const (
	evInit stateEvent = iota
	evUninit
	evConnectSent
	evPingreqSent
	evSleepRequestSent
	evDisconnectRequestSent
	evConnackReceived
	evSleepPermissionReceived
	evDisconnectPermissionReceived
	evDisconnectReceived
	evPingrespReceived
	evConnectTimeout
	evPingreqTimeout
)

var stateEventNames = [...]string{
	evInit:                         "init",
	evUninit:                       "uninit",
	evConnectSent:                  "connect sent",
	evPingreqSent:                  "pingreq sent",
	evSleepRequestSent:             "sleep request sent",
	evDisconnectRequestSent:        "disconnect request sent",
	evConnackReceived:              "connack received",
	evSleepPermissionReceived:      "sleep permission received",
	evDisconnectPermissionReceived: "disconnect permission received",
	evDisconnectReceived:           "disconnect received",
	evPingrespReceived:             "pingresp received",
	evConnectTimeout:               "connect timeout",
	evPingreqTimeout:               "pingreq timeout",
}

func (e stateEvent) String() string {
	if e >= 0 && int(e) < len(stateEventNames) {
		return stateEventNames[e]
	}
	return "unknown"
}

type stateKey struct {
	from  State
	event stateEvent
}

// transitions is the complete table; pairs not listed are invalid.
var transitions = map[stateKey]State{
	{StateUninitialized, evInit}: StateDisconnected,

	{StateDisconnected, evConnectSent}: StateEstablishingConnection,

	{StateEstablishingConnection, evConnackReceived}:    StateConnected,
	{StateEstablishingConnection, evConnectTimeout}:     StateDisconnected,
	{StateEstablishingConnection, evDisconnectReceived}: StateDisconnected,

	{StateConnected, evSleepRequestSent}:      StateWaitingForSleep,
	{StateConnected, evDisconnectRequestSent}: StateWaitingForDisconnect,
	{StateConnected, evPingreqSent}:           StateConnected,
	{StateConnected, evPingrespReceived}:      StateConnected,
	{StateConnected, evPingreqTimeout}:        StateDisconnected,
	{StateConnected, evDisconnectReceived}:    StateDisconnected,

	{StateWaitingForSleep, evSleepPermissionReceived}: StateAsleep,

	{StateWaitingForDisconnect, evDisconnectPermissionReceived}: StateDisconnected,

	{StateAsleep, evConnectSent}:        StateEstablishingConnection,
	{StateAsleep, evPingreqSent}:        StateAwake,
	{StateAsleep, evPingreqTimeout}:     StateDisconnected,
	{StateAsleep, evDisconnectReceived}: StateDisconnected,

	{StateAwake, evPingrespReceived}:      StateAsleep,
	{StateAwake, evConnectSent}:           StateEstablishingConnection,
	{StateAwake, evDisconnectRequestSent}: StateDisconnected,
	{StateAwake, evPingreqSent}:           StateAwake,
	{StateAwake, evPingreqTimeout}:        StateDisconnected,
	{StateAwake, evDisconnectReceived}:    StateDisconnected,
}

// transition returns the state reached from s on event ev.
// An invalid pair is a programming error in the engine and panics.
func transition(s State, ev stateEvent) State {
	if ev == evUninit {
		return StateUninitialized
	}
	next, ok := transitions[stateKey{s, ev}]
	if !ok {
		panic(fmt.Sprintf("mqttsn: invalid state transition: %q in state %q", ev, s))
	}
	return next
}
