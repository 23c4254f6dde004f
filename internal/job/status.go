package job

// ExecutionStatus describes whether the remote computation ran to
// completion, failed, or was interrupted. It is independent of the
// solve status: only a PROCESSED execution makes the solve status and
// result attachment meaningful.
type ExecutionStatus string

const (
	ExecutionCreated     ExecutionStatus = "CREATED"
	ExecutionQueued      ExecutionStatus = "QUEUED"
	ExecutionRunning     ExecutionStatus = "RUNNING"
	ExecutionProcessed   ExecutionStatus = "PROCESSED"
	ExecutionFailed      ExecutionStatus = "FAILED"
	ExecutionInterrupted ExecutionStatus = "INTERRUPTED"
)

// Terminal reports whether the status is a final state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionProcessed, ExecutionFailed, ExecutionInterrupted:
		return true
	}
	return false
}

// SolveStatus is the domain-level outcome reported by the solving engine
// for a completed computation.
type SolveStatus string

const (
	SolveUnknown               SolveStatus = "UNKNOWN"
	SolveFeasible              SolveStatus = "FEASIBLE_SOLUTION"
	SolveOptimal               SolveStatus = "OPTIMAL_SOLUTION"
	SolveInfeasible            SolveStatus = "INFEASIBLE_SOLUTION"
	SolveUnbounded             SolveStatus = "UNBOUNDED_SOLUTION"
	SolveInfeasibleOrUnbounded SolveStatus = "INFEASIBLE_OR_UNBOUNDED_SOLUTION"
)

// FailureInfo carries the diagnostic the remote service attaches to a
// FAILED execution.
type FailureInfo struct {
	Message string
}

// Info is the remote job record as reported by the service.
type Info struct {
	ID              string
	ExecutionStatus ExecutionStatus
	SolveStatus     SolveStatus
	FailureInfo     *FailureInfo
}

// Response is the resolved result of a submitted request.
type Response struct {
	Job *Info
}
