package job

import (
	"io"
	"time"

	"optimizer/internal/apperrors"
)

// DefaultTimeout bounds the wait for a submitted job.
const DefaultTimeout = 5 * time.Minute

// DefaultResultAttachment is the output attachment produced by the
// solving service.
const DefaultResultAttachment = "results.json"

// DefaultLogAttachment is the solver log attachment.
const DefaultLogAttachment = "solver.log"

// Request is a finalized solve submission: ordered named inputs, an
// output sink for the result attachment, optional log destinations, and
// the wait timeout.
type Request struct {
	inputs     []Input
	output     Output
	resultName string
	log        io.Writer
	liveLog    io.Writer
	timeout    time.Duration
}

func (r *Request) Inputs() []Input        { return r.inputs }
func (r *Request) Output() Output         { return r.output }
func (r *Request) ResultName() string     { return r.resultName }
func (r *Request) Log() io.Writer         { return r.log }
func (r *Request) LiveLog() io.Writer     { return r.liveLog }
func (r *Request) Timeout() time.Duration { return r.timeout }

// RequestBuilder accumulates the pieces of a Request.
type RequestBuilder struct {
	req Request
	err error
}

// NewRequest starts building a solve request.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{
		req: Request{
			resultName: DefaultResultAttachment,
			timeout:    DefaultTimeout,
		},
	}
}

// Input appends a named input. Inputs are uploaded in the order added.
func (b *RequestBuilder) Input(in Input) *RequestBuilder {
	if b.err == nil {
		for _, existing := range b.req.inputs {
			if existing.Name() == in.Name() {
				b.err = apperrors.Conflict("input", in.Name()+" already declared")
				return b
			}
		}
		b.req.inputs = append(b.req.inputs, in)
	}
	return b
}

// Stream appends an already-opened stream as a named input.
func (b *RequestBuilder) Stream(name string, r io.Reader) *RequestBuilder {
	return b.Input(NewStreamInput(name, r))
}

// Output sets the sink for the result attachment.
func (b *RequestBuilder) Output(out Output) *RequestBuilder {
	b.req.output = out
	return b
}

// ResultAttachment overrides the result attachment name.
func (b *RequestBuilder) ResultAttachment(name string) *RequestBuilder {
	b.req.resultName = name
	return b
}

// Log sets the destination for the solver log, downloaded after the job
// reaches a terminal state.
func (b *RequestBuilder) Log(w io.Writer) *RequestBuilder {
	b.req.log = w
	return b
}

// LiveLog sets a sink receiving progress lines while the job runs.
func (b *RequestBuilder) LiveLog(w io.Writer) *RequestBuilder {
	b.req.liveLog = w
	return b
}

// Timeout bounds the wait for completion.
func (b *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	if d > 0 {
		b.req.timeout = d
	}
	return b
}

// Build validates and finalizes the request.
func (b *RequestBuilder) Build() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.req.inputs) == 0 {
		return nil, apperrors.Config("inputs", "at least one input is required")
	}
	if b.req.output != nil {
		b.req.output.SetName(b.req.resultName)
	}
	req := b.req
	return &req, nil
}
