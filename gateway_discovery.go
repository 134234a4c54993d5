package mqttsn

import (
	"fmt"
	"math"
)

// MaxSearchGatewayTimeout is the longest gateway search in seconds. Deadlines
// must stay within half the millisecond clock range.
const MaxSearchGatewayTimeout = math.MaxInt32 / 1000

// gatewayDiscovery tracks one SEARCHGW/GWINFO exchange. SEARCHGW goes out once
// the random jitter elapses; the search ends when the overall timeout elapses.
type gatewayDiscovery struct {
	pending     bool
	found       bool
	jitterFired bool

	jitterDeadline  uint32
	timeoutDeadline uint32

	// first responding gateway
	gatewayID uint8
	gateway   Remote
}

// nextDeadline returns the deadline the search is currently waiting for.
func (d *gatewayDiscovery) nextDeadline() (uint32, bool) {
	if !d.pending {
		return 0, false
	}
	if !d.jitterFired {
		return d.jitterDeadline, true
	}
	return d.timeoutDeadline, true
}

func (d *gatewayDiscovery) reset() {
	*d = gatewayDiscovery{}
}

// record notes a GWINFO. Only the first gateway is kept.
func (d *gatewayDiscovery) record(gatewayID uint8, remote Remote) {
	if d.found {
		return
	}
	d.found = true
	d.gatewayID = gatewayID
	d.gateway = remote
}

// SearchGateway starts a gateway search that lasts timeoutSeconds. SEARCHGW
// is broadcast after a random delay. Each GWINFO yields a GatewayFoundEvent,
// and the search always ends with one SearchGatewayTimeoutEvent.
func (e *Engine) SearchGateway(timeoutSeconds uint32) error {
	switch {
	case e.state == StateUninitialized:
		return ErrNotInitialized
	case e.state != StateDisconnected:
		return fmt.Errorf("%w: search gateway in state %s", ErrInvalidState, e.state)
	case e.discovery.pending:
		return ErrDiscoveryPending
	case timeoutSeconds == 0:
		return fmt.Errorf("%w: search timeout must be positive", ErrInvalidArgument)
	case timeoutSeconds > MaxSearchGatewayTimeout:
		return fmt.Errorf("%w: search timeout exceeds %d s", ErrInvalidArgument, MaxSearchGatewayTimeout)
	}

	now := e.platform.Now()
	e.discovery = gatewayDiscovery{
		pending:         true,
		jitterDeadline:  deadlineAfter(now, e.platform.Random(e.searchJitter)),
		timeoutDeadline: deadlineAfter(now, timeoutSeconds*1000),
	}

	if err := e.reschedule(); err != nil {
		e.discovery.reset()
		return err
	}

	e.logger.Debug("gateway search started", LogFields{"timeout_s": timeoutSeconds})
	return nil
}

// FoundGateway returns the first gateway that answered the last search.
func (e *Engine) FoundGateway() (Remote, uint8, bool) {
	return e.discovery.gateway, e.discovery.gatewayID, e.discovery.found
}

// discoveryTimeout fires the jitter step or the timeout step when elapsed.
// At most one of them runs per call.
func (e *Engine) discoveryTimeout(now uint32) []Event {
	d := &e.discovery
	if !d.pending {
		return nil
	}

	if !d.jitterFired {
		if !deadlineElapsed(now, d.jitterDeadline) {
			return nil
		}
		d.jitterFired = true
		if err := e.sendSearchGW(); err != nil {
			e.logger.Error("failed to send SEARCHGW", LogFields{LogFieldError: err.Error()})
			d.pending = false
			return []Event{SearchGatewayTimeoutEvent{Result: SearchGatewayTransportFailed}}
		}
		return nil
	}

	if !deadlineElapsed(now, d.timeoutDeadline) {
		return nil
	}

	d.pending = false
	if d.found {
		return []Event{SearchGatewayTimeoutEvent{Result: SearchGatewayFinished}}
	}
	e.logger.Info("no gateway answered SEARCHGW", nil)
	return []Event{SearchGatewayTimeoutEvent{Result: SearchGatewayNoGatewayFound}}
}
