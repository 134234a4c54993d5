package mqttsn

// Timer values are milliseconds in a 32-bit domain that wraps. All ordering
// uses wraparound subtraction, so a deadline is valid as long as it lies less
// than half the domain (about 24 days) from now.

// deadlineAfter returns the timer value delay milliseconds after now.
func deadlineAfter(now, delay uint32) uint32 {
	return now + delay
}

// deadlineElapsed reports whether deadline is at or before now.
func deadlineElapsed(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// timeUntil returns the milliseconds from now to deadline, or zero when it has elapsed.
func timeUntil(now, deadline uint32) uint32 {
	if deadlineElapsed(now, deadline) {
		return 0
	}
	return deadline - now
}

// nextTimeout returns the delay until the earliest of the deadlines.
// It returns false when there is nothing to wait for.
func nextTimeout(now uint32, deadlines []uint32) (uint32, bool) {
	if len(deadlines) == 0 {
		return 0, false
	}

	earliest := timeUntil(now, deadlines[0])
	for _, d := range deadlines[1:] {
		if delay := timeUntil(now, d); delay < earliest {
			earliest = delay
		}
	}
	return earliest, true
}
