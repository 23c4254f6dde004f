package job

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"optimizer/internal/apperrors"
	"optimizer/pkg/backoff"
)

// Future is the pending result of a submitted request. JobID becomes
// available as soon as the remote job record exists, so cleanup can
// target the job on every exit path, including failures before
// completion.
type Future struct {
	mu    sync.Mutex
	jobID string
	done  chan struct{}
	resp  *Response
	err   error
}

// JobID returns the server-assigned identifier, or "" if the job record
// was never created.
func (f *Future) JobID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobID
}

// Wait blocks until the submission resolves or ctx expires. Timeout
// expiry is reported as ctx.Err(), a distinct outcome from a remote
// failure.
func (f *Future) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the submission goroutine has resolved and no
// longer touches the request's streams or the remote job. After an
// abandoned Wait, cancel the submission context and block on Done
// before releasing resources the submission still holds.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) setJobID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobID = id
}

func (f *Future) resolve(resp *Response, err error) {
	f.resp = resp
	f.err = err
	close(f.done)
}

// Executor drives submissions against a Client: it creates the job,
// uploads every declared input in order, starts execution, and polls the
// job record until a terminal execution status.
type Executor struct {
	client  Client
	backoff *backoff.Config
	wg      sync.WaitGroup
}

// NewExecutor creates an executor for the given client.
func NewExecutor(client Client) *Executor {
	return &Executor{
		client: client,
		backoff: &backoff.Config{
			Initial: 500 * time.Millisecond,
			Max:     10 * time.Second,
		},
	}
}

// Submit starts the submission asynchronously and returns immediately.
func (e *Executor) Submit(ctx context.Context, req *Request) *Future {
	f := &Future{done: make(chan struct{})}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f.resolve(e.run(ctx, req, f))
	}()
	return f
}

// Shutdown waits for in-flight submissions to resolve.
func (e *Executor) Shutdown() {
	e.wg.Wait()
}

func (e *Executor) run(ctx context.Context, req *Request, f *Future) (*Response, error) {
	attachments := make([]Attachment, 0, len(req.Inputs()))
	for _, in := range req.Inputs() {
		attachments = append(attachments, Attachment{Name: in.Name(), Length: in.Length()})
	}

	jobID, err := e.client.Create(ctx, attachments)
	if err != nil {
		return nil, apperrors.Operation("job.create", err)
	}
	f.setJobID(jobID)

	for _, in := range req.Inputs() {
		if err := in.Upload(ctx, e.client, jobID); err != nil {
			return nil, apperrors.Operation("job.uploadAttachment", err)
		}
	}

	if err := e.client.Start(ctx, jobID); err != nil {
		return nil, apperrors.Operation("job.start", err)
	}

	info, err := e.await(ctx, req, jobID)
	if err != nil {
		return nil, err
	}

	e.fetchLog(ctx, req, jobID)
	return &Response{Job: info}, nil
}

// await polls the job record until a terminal execution status.
func (e *Executor) await(ctx context.Context, req *Request, jobID string) (*Info, error) {
	var last ExecutionStatus
	for attempt := 1; ; attempt++ {
		info, err := e.client.Info(ctx, jobID)
		if err != nil {
			return nil, apperrors.Operation("job.info", err)
		}
		if info.ExecutionStatus != last {
			last = info.ExecutionStatus
			if w := req.LiveLog(); w != nil {
				fmt.Fprintf(w, "job %s: %s\n", jobID, info.ExecutionStatus)
			}
		}
		if info.ExecutionStatus.Terminal() {
			return info, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff.Exponential(attempt, e.backoff)):
		}
	}
}

// fetchLog copies the solver log attachment into the request's log
// destination. A missing log is not an error.
func (e *Executor) fetchLog(ctx context.Context, req *Request, jobID string) {
	w := req.Log()
	if w == nil {
		return
	}
	rc, err := e.client.DownloadAttachment(ctx, jobID, DefaultLogAttachment)
	if err != nil {
		return
	}
	defer rc.Close()
	_, _ = io.Copy(w, rc)
}
