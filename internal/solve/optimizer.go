// Package solve orchestrates one optimization job at a time against a
// remote solving service: it assembles the model and data attachments
// into a job request, submits it, waits for completion under a timeout,
// classifies the outcome, and releases every transient resource on every
// exit path. It is built to be invoked repeatedly, e.g. by a
// decomposition algorithm that solves in rounds.
package solve

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"optimizer/internal/apperrors"
	"optimizer/internal/collector"
	"optimizer/internal/job"
	"optimizer/internal/observability"
	"optimizer/internal/stream"
)

// modelSource holds the model either as ordered resource locations
// (concatenated in presentation order) or as ordered text fragments
// (joined with newlines). Exactly one form is populated.
type modelSource struct {
	name      string
	locations []string
	fragments []string
}

// open turns the model into a single-use byte stream.
func (m *modelSource) open(ctx context.Context, httpClient *http.Client) (io.ReadCloser, error) {
	if len(m.locations) > 0 {
		openers := make([]stream.Opener, 0, len(m.locations))
		for _, loc := range m.locations {
			openers = append(openers, stream.Location(httpClient, loc))
		}
		return stream.Concat(ctx, openers...), nil
	}
	return stream.Text(m.fragments...), nil
}

type attachment struct {
	name     string
	location string
}

// Optimizer owns the full lifecycle of solve invocations for one
// problem. An instance is not safe for concurrent use; run independent
// instances for concurrent solves, each owns its own stream registry and
// history.
type Optimizer struct {
	name        string
	client      job.Client
	executor    *job.Executor
	httpClient  *http.Client
	model       *modelSource
	schema      collector.Schema
	attachments []attachment
	registry    *stream.Registry
	timeout     time.Duration
	log         io.Writer
	liveLog     io.Writer
	metrics     *observability.Metrics
	solveStatus job.SolveStatus
	history     []*collector.Collector
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithTimeout bounds the wait for each submitted job.
func WithTimeout(d time.Duration) Option {
	return func(o *Optimizer) { o.timeout = d }
}

// WithLog directs the solver log of each job to w.
func WithLog(w io.Writer) Option {
	return func(o *Optimizer) { o.log = w }
}

// WithLiveLog streams job progress lines to w while a solve is running.
func WithLiveLog(w io.Writer) Option {
	return func(o *Optimizer) { o.liveLog = w }
}

// WithMetrics records solve traffic, latency and errors.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// WithHTTPClient sets the client used to open http(s) model and data
// locations.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Optimizer) { o.httpClient = c }
}

// New creates an Optimizer for the named problem. The model, static data
// attachments and result schema are supplied through the setters before
// the first solve.
func New(problemName string, client job.Client, opts ...Option) *Optimizer {
	o := &Optimizer{
		name:        problemName,
		client:      client,
		executor:    job.NewExecutor(client),
		registry:    stream.NewRegistry(),
		timeout:     job.DefaultTimeout,
		solveStatus: job.SolveUnknown,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the problem name.
func (o *Optimizer) Name() string {
	return o.name
}

// SetModelFiles sets the model as ordered resource locations, typically
// a data model followed by the optimization model. The resources are
// concatenated in presentation order when the job is built.
func (o *Optimizer) SetModelFiles(name string, locations ...string) error {
	if o.model != nil {
		return apperrors.Config("model", "model has already been defined")
	}
	if len(locations) == 0 {
		return apperrors.Config("model", "at least one model location is required")
	}
	o.model = &modelSource{name: name, locations: locations}
	return nil
}

// SetModelText sets the model as ordered text fragments, joined with a
// newline after each fragment.
func (o *Optimizer) SetModelText(name string, fragments ...string) error {
	if o.model != nil {
		return apperrors.Config("model", "model has already been defined")
	}
	if len(fragments) == 0 {
		return apperrors.Config("model", "at least one model fragment is required")
	}
	o.model = &modelSource{name: name, fragments: fragments}
	return nil
}

// AttachData attaches static data resources that do not change from
// solve to solve. Attachment names derive from the location's filename
// and must be unique; on a duplicate the attachment set is left
// unchanged.
func (o *Optimizer) AttachData(locations ...string) error {
	seen := make(map[string]struct{}, len(o.attachments))
	for _, a := range o.attachments {
		seen[a.name] = struct{}{}
	}
	added := make([]attachment, 0, len(locations))
	for _, loc := range locations {
		name := stream.BaseName(loc)
		if _, dup := seen[name]; dup {
			return apperrors.Conflict("attachment", name+" already attached")
		}
		seen[name] = struct{}{}
		added = append(added, attachment{name: name, location: loc})
	}
	o.attachments = append(o.attachments, added...)
	return nil
}

// SetResultSchema sets the application data model for the results.
func (o *Optimizer) SetResultSchema(schema collector.Schema) error {
	if o.schema != nil {
		return apperrors.Config("resultSchema", "result schema has already been defined")
	}
	if schema == nil {
		return apperrors.Config("resultSchema", "result schema cannot be nil")
	}
	o.schema = schema
	return nil
}

// SolveStatus returns the solve status reported by the most recent
// completed solve (UNKNOWN before the first completion).
func (o *Optimizer) SolveStatus() job.SolveStatus {
	return o.solveStatus
}

// History returns the accumulated successful results, oldest first.
func (o *Optimizer) History() []*collector.Collector {
	out := make([]*collector.Collector, len(o.history))
	copy(out, o.history)
	return out
}

// ClearHistory empties the result history.
func (o *Optimizer) ClearHistory() {
	o.history = nil
}

// Shutdown waits for any in-flight submission to resolve.
func (o *Optimizer) Shutdown() {
	o.executor.Shutdown()
}

// SolveAttached solves using only the configured model and static
// attachments, with no solution identifier.
func (o *Optimizer) SolveAttached(ctx context.Context) (*Outcome, error) {
	return o.Solve(ctx, nil, "")
}

// Solve submits one job for this problem and waits for its outcome.
// inputData is the variable, solve-specific input (nil if not used);
// solutionID tags the result record for iterative algorithms ("" if not
// needed).
//
// The returned error carries configuration errors only, detected before
// any remote interaction. Transport and remote failures are classified
// into the Outcome and logged; an iterative caller can inspect the solve
// status and continue. On success the result record, named
// <problemName>Result<solutionID>, is appended to the history.
func (o *Optimizer) Solve(ctx context.Context, inputData *collector.Collector, solutionID string) (*Outcome, error) {
	if o.model == nil {
		return nil, apperrors.Config("model", "a model must be provided to the optimizer")
	}
	if o.schema == nil {
		return nil, apperrors.Config("resultSchema", "a result schema must be provided to the optimizer")
	}
	o.solveStatus = job.SolveUnknown

	logger := slog.With("problem", o.name, "solutionId", solutionID)
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordSolveStarted(ctx)
	}

	var jobID string
	outcome, err := o.run(ctx, inputData, solutionID, logger, &jobID)

	// Unconditional cleanup: close every stream opened during this
	// solve, then delete the remote job. Failures here are logged and
	// never displace the primary outcome.
	o.registry.CloseAll()
	if jobID != "" {
		if delErr := o.client.Delete(context.WithoutCancel(ctx), jobID); delErr != nil {
			logger.Warn("Job could not be deleted", "jobId", jobID, "error", delErr)
		}
	}

	if o.metrics != nil {
		state := StateErrored
		if outcome != nil {
			state = outcome.State()
		}
		o.metrics.RecordSolveCompleted(ctx, string(state), time.Since(start).Seconds())
	}
	return outcome, err
}

// run executes the building/submission/awaiting sequence. It reports the
// created job identifier through jobID so that cleanup can target the
// job on every exit path, including failures before completion.
func (o *Optimizer) run(ctx context.Context, inputData *collector.Collector, solutionID string, logger *slog.Logger, jobID *string) (*Outcome, error) {
	output := newSolverOutput(o.registry)
	builder := job.NewRequest().
		Timeout(o.timeout).
		Output(output)
	if o.log != nil {
		builder = builder.Log(o.log)
	}
	if o.liveLog != nil {
		builder = builder.LiveLog(o.liveLog)
	}

	modelStream, err := o.model.open(ctx, o.httpClient)
	if err != nil {
		logger.Warn("Error while opening model", "error", err)
		return errored(apperrors.Operation("model.open", err)), nil
	}
	o.registry.Add(modelStream)
	builder = builder.Stream(o.model.name, modelStream)

	for _, att := range o.attachments {
		rc, err := stream.OpenLocation(ctx, o.httpClient, att.location)
		if err != nil {
			logger.Warn("Error while opening attachment", "attachment", att.name, "error", err)
			return errored(apperrors.Operation("attachment.open", err)), nil
		}
		o.registry.Add(rc)
		builder = builder.Stream(att.name, rc)
	}

	if inputData != nil {
		builder = builder.Input(newSolverInput(inputData.Name()+".json", inputData))
	}

	req, err := builder.Build()
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, req.Timeout())
	defer cancel()

	future := o.executor.Submit(waitCtx, req)
	resp, err := future.Wait(waitCtx)
	if err != nil {
		// The submission goroutine may still be uploading from the
		// registered streams. Stop it and wait for it to resolve so
		// cleanup is the sole owner of the streams and the job, then
		// pick up the job identifier it may have created meanwhile.
		cancel()
		<-future.Done()
		*jobID = future.JobID()
		logger.Warn("Error while executing job", "jobId", *jobID, "error", err)
		return errored(err), nil
	}
	*jobID = future.JobID()

	o.solveStatus = resp.Job.SolveStatus

	switch resp.Job.ExecutionStatus {
	case job.ExecutionProcessed:
		if err := output.Fetch(ctx, o.client, *jobID); err != nil {
			logger.Warn("Error while downloading results", "jobId", *jobID, "error", err)
			return errored(err), nil
		}
		solution := collector.New(o.name+"Result"+solutionID, o.schema)
		if err := solution.FromJSON(output.Content()); err != nil {
			logger.Warn("Error while reading results", "jobId", *jobID, "error", err)
			return errored(apperrors.Operation("result.fromJSON", err)), nil
		}
		o.history = append(o.history, solution)
		logger.Info("Solve processed", "jobId", *jobID, "solveStatus", o.solveStatus)
		return succeeded(solution), nil

	case job.ExecutionFailed:
		message := ""
		if resp.Job.FailureInfo != nil {
			message = resp.Job.FailureInfo.Message
		}
		logger.Info("Solve failed", "jobId", *jobID, "message", message)
		return failed(message), nil

	default:
		logger.Warn("Job ended in unexpected state", "jobId", *jobID, "executionStatus", resp.Job.ExecutionStatus)
		return errored(apperrors.Operation("job.await", errUnexpectedStatus(resp.Job.ExecutionStatus))), nil
	}
}

type errUnexpectedStatus job.ExecutionStatus

func (e errUnexpectedStatus) Error() string {
	return "unexpected execution status " + string(e)
}
