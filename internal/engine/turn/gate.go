package turn

import "context"

// Gate suspends the tool loop once the sequential-call budget is spent
// and holds it until an external decision arrives. One gate serves one
// turn; it can pause and resolve any number of times. The channel holds
// one decision so a client answering between the gate announcement and
// Await is not bounced.
type Gate struct {
	ch chan Decision
}

func newGate() *Gate {
	return &Gate{ch: make(chan Decision, 1)}
}

// Await blocks until a decision is delivered or the turn is cancelled.
// Cancellation while throttled resolves as a stop.
func (g *Gate) Await(ctx context.Context) (Decision, error) {
	select {
	case d := <-g.ch:
		return d, nil
	case <-ctx.Done():
		return DecisionStop, ctx.Err()
	}
}

// Resolve hands a decision to a waiting Await. Returns false if the
// turn is not currently paused at the gate.
func (g *Gate) Resolve(d Decision) bool {
	select {
	case g.ch <- d:
		return true
	default:
		return false
	}
}
