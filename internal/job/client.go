// Package job defines the boundary to the remote job-management service
// and the request/submission machinery this library drives against it:
// a builder for solve requests, named streamed inputs and outputs, and
// an executor that turns a submission into an awaitable future.
package job

import (
	"context"
	"io"
)

// UnknownLength declares an attachment whose size is only known once it
// has been produced.
const UnknownLength int64 = -1

// Attachment declares a named input payload at job creation time.
type Attachment struct {
	Name   string
	Length int64 // UnknownLength when produced incrementally
}

// ContentWriter pushes an attachment payload into the transfer channel
// opened by the client.
type ContentWriter interface {
	// Repeatable reports whether WriteTo can be replayed if the
	// transfer has to be restarted.
	Repeatable() bool
	// WriteTo serializes the payload directly into w.
	WriteTo(w io.Writer) error
}

// ContentWriterFunc adapts a function to a non-repeatable ContentWriter.
type ContentWriterFunc func(w io.Writer) error

func (f ContentWriterFunc) Repeatable() bool          { return false }
func (f ContentWriterFunc) WriteTo(w io.Writer) error { return f(w) }

// Client is the remote job-management collaborator. Wire protocol
// implementations are provided externally; everything in this module
// programs against this interface.
type Client interface {
	// Create registers a new job with its declared attachments and
	// returns the server-assigned job identifier.
	Create(ctx context.Context, attachments []Attachment) (string, error)

	// UploadAttachment opens a write channel for the named attachment
	// and invokes w to push the payload into it.
	UploadAttachment(ctx context.Context, jobID, name string, w ContentWriter) error

	// Start begins execution of a fully uploaded job.
	Start(ctx context.Context, jobID string) error

	// Info returns the current job record.
	Info(ctx context.Context, jobID string) (*Info, error)

	// DownloadAttachment opens a read channel for a named output
	// attachment. The caller owns closing the stream.
	DownloadAttachment(ctx context.Context, jobID, name string) (io.ReadCloser, error)

	// Delete removes the remote job record and its attachments.
	Delete(ctx context.Context, jobID string) error
}
