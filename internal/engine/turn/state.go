package turn

// State is where a chat turn sits in its lifecycle. A session with no
// active turn reports StateIdle; terminal states are observable on the
// turn's stream events and collapse back to idle once the turn is
// released.
type State string

const (
	StateIdle          State = "idle"
	StateSending       State = "sending"
	StateAwaitingTools State = "awaiting_tool_result"
	StateThrottled     State = "throttled"
	StateStopped       State = "stopped"
	StateErrored       State = "errored"
	StateComplete      State = "complete"
)

// Decision is the answer to a throttle gate: stop the turn, raise the
// tool-call limit by one step, or remove the limit entirely.
type Decision string

const (
	DecisionStop      Decision = "stop"
	DecisionContinue  Decision = "continue"
	DecisionUnlimited Decision = "unlimited"
)

// ParseDecision validates a client-supplied decision string.
func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionStop, DecisionContinue, DecisionUnlimited:
		return Decision(s), true
	}
	return "", false
}

// budget is the per-session sequential tool-call valve. The counter
// accumulates across turns and only a model response with zero tool
// calls re-arms it.
type budget struct {
	calls     int
	limit     int
	unlimited bool
}

func newBudget() *budget {
	return &budget{limit: DefaultToolCallLimit}
}

// exhausted reports whether the turn must pause for a decision.
func (b *budget) exhausted() bool {
	return !b.unlimited && b.calls >= b.limit
}

// apply moves the budget per an external decision. DecisionStop is
// handled by the caller; it never reaches here.
func (b *budget) apply(d Decision) {
	switch d {
	case DecisionContinue:
		b.limit += ThrottleStep
	case DecisionUnlimited:
		b.unlimited = true
	}
}

// rearm resets the valve after a tool-call-free response.
func (b *budget) rearm() {
	b.calls = 0
	b.limit = DefaultToolCallLimit
	b.unlimited = false
}
