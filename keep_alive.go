package mqttsn

// keepAlive is the PINGREQ slot. It is kept apart from the packet queue
// because PINGRESP carries no id and the slot is re-armed rather than removed.
type keepAlive struct {
	// pingreq is the serialized PINGREQ, built once per session.
	pingreq []byte
	// duration is the keep-alive (or sleep) interval in milliseconds.
	duration uint32
	deadline uint32
	retries  uint8
	// awaitingResponse is set from a PINGREQ transmission until the first PINGRESP.
	awaitingResponse bool
	active           bool
}

// start arms the slot for a new session.
func (k *keepAlive) start(pingreq []byte, duration, now uint32, retries uint8) {
	k.pingreq = pingreq
	k.duration = duration
	k.retries = retries
	k.deadline = deadlineAfter(now, duration)
	k.awaitingResponse = false
	k.active = true
}

// rearm restores the full retry budget and waits a whole interval.
func (k *keepAlive) rearm(now uint32, retries uint8) {
	k.retries = retries
	k.deadline = deadlineAfter(now, k.duration)
	k.awaitingResponse = false
}

// stop releases the slot.
func (k *keepAlive) stop() {
	*k = keepAlive{}
}
