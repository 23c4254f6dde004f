package solve

import (
	"context"
	"io"

	"optimizer/internal/apperrors"
	"optimizer/internal/collector"
	"optimizer/internal/job"
	"optimizer/internal/stream"
)

// solverInput uploads the variable input collector by serializing it
// directly into the transfer's write channel when the client is ready to
// receive it. No intermediate buffer is built, so the upload cannot be
// replayed; a retried transfer needs a fresh adapter.
type solverInput struct {
	name string
	data *collector.Collector
}

func newSolverInput(name string, data *collector.Collector) *solverInput {
	return &solverInput{name: name, data: data}
}

func (s *solverInput) Name() string     { return s.name }
func (s *solverInput) Length() int64    { return job.UnknownLength }
func (s *solverInput) Repeatable() bool { return false }

func (s *solverInput) Upload(ctx context.Context, client job.Client, jobID string) error {
	return client.UploadAttachment(ctx, jobID, s.name, job.ContentWriterFunc(func(w io.Writer) error {
		return s.data.ToJSON(w)
	}))
}

// solverOutput pulls the result attachment into a stream registered for
// closure at solve cleanup and exposes it to the deserialization step.
type solverOutput struct {
	name     string
	content  io.Reader
	registry *stream.Registry
	fetched  bool
}

func newSolverOutput(registry *stream.Registry) *solverOutput {
	return &solverOutput{registry: registry}
}

func (s *solverOutput) Name() string {
	return s.name
}

func (s *solverOutput) SetName(name string) {
	s.name = name
}

// Fetch opens the read channel for the result attachment. At most once
// per solve.
func (s *solverOutput) Fetch(ctx context.Context, client job.Client, jobID string) error {
	if s.fetched {
		return apperrors.Conflict("output", s.name+" already fetched")
	}
	rc, err := client.DownloadAttachment(ctx, jobID, s.name)
	if err != nil {
		return apperrors.Operation("job.downloadAttachment", err)
	}
	s.registry.Add(rc)
	s.content = rc
	s.fetched = true
	return nil
}

// Content returns the fetched stream, or nil before Fetch has run.
func (s *solverOutput) Content() io.Reader {
	return s.content
}
