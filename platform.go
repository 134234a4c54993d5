package mqttsn

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Platform supplies the clock, the single one-shot timer and the random
// source used by the engine.
type Platform interface {
	// Now returns the current timer value in milliseconds. It wraps at 2^32.
	Now() uint32

	// ArmTimer schedules the timer to fire delay milliseconds from now,
	// replacing any timer already armed.
	ArmTimer(delay uint32) error

	// DisarmTimer cancels the armed timer, if any.
	DisarmTimer()

	// Random returns an integer in [0, limit). It returns 0 when limit is 0.
	Random(limit uint32) uint32
}

// SystemPlatform implements Platform with the runtime clock and time.AfterFunc.
type SystemPlatform struct {
	start time.Time
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewSystemPlatform creates a platform whose timer calls fire when it expires.
// fire runs on its own goroutine.
func NewSystemPlatform(fire func()) *SystemPlatform {
	return &SystemPlatform{
		start: time.Now(),
		fire:  fire,
	}
}

// Now returns the milliseconds elapsed since the platform was created.
func (p *SystemPlatform) Now() uint32 {
	return uint32(time.Since(p.start).Milliseconds())
}

// ArmTimer schedules fire after delay milliseconds.
func (p *SystemPlatform) ArmTimer(delay uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(time.Duration(delay)*time.Millisecond, p.fire)
	return nil
}

// DisarmTimer stops the pending timer.
func (p *SystemPlatform) DisarmTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Random returns a uniformly distributed value in [0, limit).
func (p *SystemPlatform) Random(limit uint32) uint32 {
	if limit == 0 {
		return 0
	}
	return rand.Uint32N(limit)
}
