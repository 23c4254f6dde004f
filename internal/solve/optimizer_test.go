package solve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"optimizer/internal/apperrors"
	"optimizer/internal/collector"
	"optimizer/internal/job"
)

var resultSchema = collector.Schema{
	"shipments": collector.TableSchema{
		{Name: "route", Kind: collector.String},
		{Name: "quantity", Kind: collector.Int},
	},
}

const resultPayload = `{"shipments":[{"route":"NYC-BOS","quantity":7}]}`

// countedStream tracks closes of a downloaded attachment.
type countedStream struct {
	io.Reader
	closes int
}

func (s *countedStream) Close() error {
	s.closes++
	return nil
}

// slowWriter throttles an upload destination so a transfer can outlast
// a short solve timeout.
type slowWriter struct {
	buf   *bytes.Buffer
	delay time.Duration
}

func (w *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(w.delay)
	return w.buf.Write(p)
}

// fakeClient simulates the remote job-management service.
type fakeClient struct {
	mu          sync.Mutex
	jobs        int
	created     []string
	uploaded    map[string]string
	deleted     []string
	events      []string
	execution   job.ExecutionStatus
	solve       job.SolveStatus
	failure     *job.FailureInfo
	results     *countedStream
	createErr   error
	infoErr     error
	hang        bool          // never reach a terminal status
	uploadDelay time.Duration // per-write throttle on uploads
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		uploaded:  make(map[string]string),
		execution: job.ExecutionProcessed,
		solve:     job.SolveOptimal,
		results:   &countedStream{Reader: strings.NewReader(resultPayload)},
	}
}

func (c *fakeClient) Create(ctx context.Context, attachments []job.Attachment) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.jobs++
	id := fmt.Sprintf("job-%d", c.jobs)
	c.created = append(c.created, id)
	return id, nil
}

func (c *fakeClient) UploadAttachment(ctx context.Context, jobID, name string, w job.ContentWriter) error {
	var buf bytes.Buffer
	var dst io.Writer = &buf
	if c.uploadDelay > 0 {
		dst = &slowWriter{buf: &buf, delay: c.uploadDelay}
	}
	if err := w.WriteTo(dst); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploaded[name] = buf.String()
	c.events = append(c.events, "upload:"+name)
	return nil
}

func (c *fakeClient) Start(ctx context.Context, jobID string) error {
	return nil
}

func (c *fakeClient) Info(ctx context.Context, jobID string) (*job.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	if c.hang {
		return &job.Info{ID: jobID, ExecutionStatus: job.ExecutionRunning, SolveStatus: job.SolveUnknown}, nil
	}
	return &job.Info{ID: jobID, ExecutionStatus: c.execution, SolveStatus: c.solve, FailureInfo: c.failure}, nil
}

func (c *fakeClient) DownloadAttachment(ctx context.Context, jobID, name string) (io.ReadCloser, error) {
	if name != job.DefaultResultAttachment {
		return nil, apperrors.NotFound("attachment", name)
	}
	return c.results, nil
}

func (c *fakeClient) Delete(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, jobID)
	c.events = append(c.events, "delete:"+jobID)
	return nil
}

func (c *fakeClient) remoteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs + len(c.uploaded) + len(c.deleted)
}

func newOptimizer(t *testing.T, client *fakeClient) *Optimizer {
	t.Helper()
	o := New("transport", client, WithTimeout(2*time.Second))
	if err := o.SetModelText("transport.mod", "minimize cost;"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetResultSchema(resultSchema); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestSolveWithoutModelIsConfigError(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	o := New("transport", client)

	_, err := o.Solve(context.Background(), nil, "")
	if !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if client.remoteCalls() != 0 {
		t.Errorf("expected zero remote calls, got %d", client.remoteCalls())
	}
}

func TestSolveSuccess(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	o := newOptimizer(t, client)

	outcome, err := o.Solve(context.Background(), nil, "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("expected succeeded outcome, got %s (err=%v)", outcome.State(), outcome.Err())
	}

	solution := outcome.Solution()
	if solution == nil {
		t.Fatal("expected a solution")
	}
	if solution.Name() != "transportResult42" {
		t.Errorf("expected result name transportResult42, got %q", solution.Name())
	}
	rows := solution.Table("shipments")
	if len(rows) != 1 || rows[0]["route"] != "NYC-BOS" || rows[0]["quantity"] != int64(7) {
		t.Errorf("unexpected deserialized content: %v", rows)
	}

	if o.SolveStatus() != job.SolveOptimal {
		t.Errorf("expected OPTIMAL_SOLUTION, got %s", o.SolveStatus())
	}
	if len(o.History()) != 1 {
		t.Errorf("expected history length 1, got %d", len(o.History()))
	}

	// The uploaded model is the newline-joined text form.
	if got := client.uploaded["transport.mod"]; got != "minimize cost;\n" {
		t.Errorf("unexpected uploaded model %q", got)
	}

	// Cleanup: result stream closed exactly once, job deleted exactly once.
	if client.results.closes != 1 {
		t.Errorf("expected result stream closed once, got %d", client.results.closes)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "job-1" {
		t.Errorf("expected exactly one deletion of job-1, got %v", client.deleted)
	}
}

func TestSolveRemoteFailure(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	client.execution = job.ExecutionFailed
	client.solve = job.SolveUnknown
	client.failure = &job.FailureInfo{Message: "model syntax error"}
	o := newOptimizer(t, client)

	outcome, err := o.Solve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.State() != StateFailed {
		t.Fatalf("expected failed outcome, got %s", outcome.State())
	}
	if outcome.Solution() != nil {
		t.Error("failed solve must not carry a solution")
	}
	if outcome.FailureMessage() != "model syntax error" {
		t.Errorf("unexpected failure message %q", outcome.FailureMessage())
	}
	if o.SolveStatus() != job.SolveUnknown {
		t.Errorf("expected UNKNOWN, got %s", o.SolveStatus())
	}
	if len(o.History()) != 0 {
		t.Errorf("expected unchanged history, got %d entries", len(o.History()))
	}
	if client.results.closes != 0 {
		t.Error("no result stream should be fetched for a failed execution")
	}
	if len(client.deleted) != 1 {
		t.Errorf("expected exactly one deletion, got %v", client.deleted)
	}
}

func TestSolveTransportError(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	client.infoErr = errors.New("connection reset")
	o := newOptimizer(t, client)

	outcome, err := o.Solve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("transport errors must not cross the solve boundary, got %v", err)
	}
	if outcome.State() != StateErrored {
		t.Fatalf("expected errored outcome, got %s", outcome.State())
	}
	if !errors.Is(outcome.Err(), apperrors.ErrOperation) {
		t.Errorf("expected operation error, got %v", outcome.Err())
	}
	if len(o.History()) != 0 {
		t.Errorf("expected unchanged history, got %d entries", len(o.History()))
	}
	// The job was created before the poll failed, so cleanup still
	// deletes it.
	if len(client.deleted) != 1 || client.deleted[0] != "job-1" {
		t.Errorf("expected deletion of job-1, got %v", client.deleted)
	}
}

func TestSolveTimeout(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	client.hang = true
	o := New("transport", client, WithTimeout(50*time.Millisecond))
	if err := o.SetModelText("transport.mod", "minimize cost;"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetResultSchema(resultSchema); err != nil {
		t.Fatal(err)
	}

	outcome, err := o.Solve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.State() != StateErrored {
		t.Fatalf("expected errored outcome on timeout, got %s", outcome.State())
	}
	if !errors.Is(outcome.Err(), context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", outcome.Err())
	}
	if len(client.deleted) != 1 {
		t.Errorf("expected the orphaned job to be deleted, got %v", client.deleted)
	}
	if o.registry.Len() != 0 {
		t.Errorf("expected every registered stream released, %d left", o.registry.Len())
	}
}

// A timed-out solve must not reclaim streams or delete the job while
// the submission goroutine is still transferring from them: cleanup
// runs only once the submission has resolved.
func TestSolveTimeoutWaitsForSubmission(t *testing.T) {
	t.Parallel()
	model := strings.Repeat("x", 8192)
	modelPath := filepath.Join(t.TempDir(), "transport.mod")
	if err := os.WriteFile(modelPath, []byte(model), 0o600); err != nil {
		t.Fatal(err)
	}

	client := newFakeClient()
	client.hang = true
	client.uploadDelay = 60 * time.Millisecond // upload outlasts the timeout
	o := New("transport", client, WithTimeout(10*time.Millisecond))
	if err := o.SetModelFiles("transport.mod", modelPath); err != nil {
		t.Fatal(err)
	}
	if err := o.SetResultSchema(resultSchema); err != nil {
		t.Fatal(err)
	}

	outcome, err := o.Solve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.State() != StateErrored {
		t.Fatalf("expected errored outcome, got %s", outcome.State())
	}
	if !errors.Is(outcome.Err(), context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", outcome.Err())
	}

	// The model stream stayed readable for the whole transfer: cleanup
	// did not close it out from under the upload.
	if got := client.uploaded["transport.mod"]; len(got) != len(model) {
		t.Errorf("expected uninterrupted upload of %d bytes, got %d", len(model), len(got))
	}

	// The submission resolved before cleanup deleted the job, and the
	// identifier created mid-submission was picked up for deletion.
	if len(client.deleted) != 1 || client.deleted[0] != "job-1" {
		t.Fatalf("expected exactly one deletion of job-1, got %v", client.deleted)
	}
	uploadIdx, deleteIdx := -1, -1
	for i, ev := range client.events {
		switch ev {
		case "upload:transport.mod":
			uploadIdx = i
		case "delete:job-1":
			deleteIdx = i
		}
	}
	if uploadIdx == -1 || deleteIdx == -1 || uploadIdx > deleteIdx {
		t.Errorf("expected upload to resolve before deletion, got events %v", client.events)
	}

	if o.registry.Len() != 0 {
		t.Errorf("expected every registered stream released, %d left", o.registry.Len())
	}
}

func TestSolveAttached(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	o := newOptimizer(t, client)

	outcome, err := o.SolveAttached(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %s (err=%v)", outcome.State(), outcome.Err())
	}
	// No solution identifier and no variable input: only the model is
	// uploaded and the result name has no suffix.
	if outcome.Solution().Name() != "transportResult" {
		t.Errorf("expected result name transportResult, got %q", outcome.Solution().Name())
	}
	if len(client.uploaded) != 1 {
		t.Errorf("expected only the model upload, got %v", client.uploaded)
	}
	if len(o.History()) != 1 {
		t.Errorf("expected history length 1, got %d", len(o.History()))
	}
}

func TestSolveUploadsVariableInput(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	o := newOptimizer(t, client)

	inputSchema := collector.Schema{
		"demands": collector.TableSchema{
			{Name: "city", Kind: collector.String},
			{Name: "demand", Kind: collector.Int},
		},
	}
	input := collector.New("transportData", inputSchema)
	if err := input.SetTable("demands", []collector.Row{{"city": "BOS", "demand": 5}}); err != nil {
		t.Fatal(err)
	}

	if _, err := o.Solve(context.Background(), input, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	uploaded, ok := client.uploaded["transportData.json"]
	if !ok {
		t.Fatalf("expected variable input uploaded as transportData.json, got %v", client.uploaded)
	}
	if !strings.Contains(uploaded, `"city":"BOS"`) {
		t.Errorf("unexpected serialized input %q", uploaded)
	}
}

func TestSolveModelFromFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dataModel := filepath.Join(dir, "data.mod")
	optModel := filepath.Join(dir, "opt.mod")
	if err := os.WriteFile(dataModel, []byte("tuple Route {...}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(optModel, []byte("minimize cost;"), 0o600); err != nil {
		t.Fatal(err)
	}

	client := newFakeClient()
	o := New("transport", client, WithTimeout(2*time.Second))
	if err := o.SetModelFiles("transport.mod", dataModel, optModel); err != nil {
		t.Fatal(err)
	}
	if err := o.SetResultSchema(resultSchema); err != nil {
		t.Fatal(err)
	}

	outcome, err := o.Solve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %s (err=%v)", outcome.State(), outcome.Err())
	}
	// File-backed fragments concatenate byte for byte, no separators.
	if got := client.uploaded["transport.mod"]; got != "tuple Route {...}\nminimize cost;" {
		t.Errorf("unexpected concatenated model %q", got)
	}
}

func TestAttachDataRejectsDuplicateNames(t *testing.T) {
	t.Parallel()
	o := New("transport", newFakeClient())
	if err := o.AttachData("/data/plants.dat", "/data/warehouses.dat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := o.AttachData("/other/plants.dat")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(o.attachments) != 2 {
		t.Errorf("attachment set must be unchanged after a rejected add, got %d", len(o.attachments))
	}
}

func TestAttachDataRejectsDuplicateWithinOneCall(t *testing.T) {
	t.Parallel()
	o := New("transport", newFakeClient())
	err := o.AttachData("/a/plants.dat", "/b/plants.dat")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(o.attachments) != 0 {
		t.Errorf("attachment set must be unchanged, got %d", len(o.attachments))
	}
}

func TestSetOnceConstraints(t *testing.T) {
	t.Parallel()
	o := New("transport", newFakeClient())
	if err := o.SetModelText("m.mod", "x"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetModelFiles("m.mod", "/models/m.mod"); !errors.Is(err, apperrors.ErrConfig) {
		t.Errorf("expected config error on model redefinition, got %v", err)
	}

	if err := o.SetResultSchema(resultSchema); err != nil {
		t.Fatal(err)
	}
	if err := o.SetResultSchema(resultSchema); !errors.Is(err, apperrors.ErrConfig) {
		t.Errorf("expected config error on schema redefinition, got %v", err)
	}

	if err := o.SetModelText("m.mod"); !errors.Is(err, apperrors.ErrConfig) {
		t.Errorf("expected config error for empty model text, got %v", err)
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	o := newOptimizer(t, client)

	if _, err := o.Solve(context.Background(), nil, "1"); err != nil {
		t.Fatal(err)
	}
	if len(o.History()) != 1 {
		t.Fatalf("expected one entry, got %d", len(o.History()))
	}

	o.ClearHistory()
	if len(o.History()) != 0 {
		t.Fatal("expected empty history")
	}

	// Subsequent solves append again.
	client.results = &countedStream{Reader: strings.NewReader(resultPayload)}
	if _, err := o.Solve(context.Background(), nil, "2"); err != nil {
		t.Fatal(err)
	}
	history := o.History()
	if len(history) != 1 || history[0].Name() != "transportResult2" {
		t.Errorf("expected fresh entry transportResult2, got %v", history)
	}
}

func TestSolveLiveLog(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	var live bytes.Buffer
	o := New("transport", client, WithTimeout(2*time.Second), WithLiveLog(&live))
	if err := o.SetModelText("transport.mod", "minimize cost;"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetResultSchema(resultSchema); err != nil {
		t.Fatal(err)
	}

	if _, err := o.Solve(context.Background(), nil, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(live.String(), "PROCESSED") {
		t.Errorf("expected terminal status in live log, got %q", live.String())
	}
}
