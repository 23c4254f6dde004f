package solve

import "optimizer/internal/collector"

// State is the terminal state of one solve invocation.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateErrored   State = "errored"
)

// Outcome is the terminal result of a solve: exactly one variant is
// populated, so a succeeded solve always carries a solution and a failed
// one never does.
type Outcome struct {
	state    State
	solution *collector.Collector
	message  string
	err      error
}

func succeeded(solution *collector.Collector) *Outcome {
	return &Outcome{state: StateSucceeded, solution: solution}
}

func failed(message string) *Outcome {
	return &Outcome{state: StateFailed, message: message}
}

func errored(err error) *Outcome {
	return &Outcome{state: StateErrored, err: err}
}

// State returns which terminal state the solve reached.
func (o *Outcome) State() State {
	return o.state
}

// Succeeded reports whether a solution is available.
func (o *Outcome) Succeeded() bool {
	return o.state == StateSucceeded
}

// Solution returns the deserialized result record, or nil when the solve
// did not succeed.
func (o *Outcome) Solution() *collector.Collector {
	return o.solution
}

// FailureMessage returns the diagnostic reported by the remote service
// for a failed execution ("" when none was provided).
func (o *Outcome) FailureMessage() string {
	return o.message
}

// Err returns the transport/operation error behind an errored solve.
func (o *Outcome) Err() error {
	return o.err
}
