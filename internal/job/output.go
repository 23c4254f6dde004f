package job

import (
	"context"
	"io"
)

// Output is a typed sink for a job's result attachment. The executor
// assigns the attachment name once it is known; fetching is deferred to
// the consumer so that downloads happen only for completed jobs.
type Output interface {
	// Name returns the assigned attachment name ("" before SetName).
	Name() string
	// SetName assigns the attachment name. Called by the executor.
	SetName(name string)
	// Fetch opens the read channel for the attachment. At most once
	// per solve.
	Fetch(ctx context.Context, client Client, jobID string) error
	// Content returns the fetched stream, or nil before Fetch.
	Content() io.Reader
}
