package job

import (
	"context"
	"fmt"
	"io"
)

// Input is a named payload uploaded to a job before execution.
type Input interface {
	// Name declares the attachment name.
	Name() string
	// Length is the payload size, or UnknownLength.
	Length() int64
	// Repeatable reports whether the upload can be replayed.
	Repeatable() bool
	// Upload pushes the payload to the job's attachment.
	Upload(ctx context.Context, client Client, jobID string) error
}

// StreamInput adapts an already-opened stream as a job input. The stream
// is consumed by the upload; it is not repeatable and its length is
// unknown. The caller keeps ownership of closing the stream.
type StreamInput struct {
	name   string
	reader io.Reader
}

// NewStreamInput creates a StreamInput with the given attachment name.
func NewStreamInput(name string, r io.Reader) *StreamInput {
	return &StreamInput{name: name, reader: r}
}

func (s *StreamInput) Name() string     { return s.name }
func (s *StreamInput) Length() int64    { return UnknownLength }
func (s *StreamInput) Repeatable() bool { return false }

// Upload copies the stream into the attachment's write channel.
func (s *StreamInput) Upload(ctx context.Context, client Client, jobID string) error {
	return client.UploadAttachment(ctx, jobID, s.name, ContentWriterFunc(func(w io.Writer) error {
		if _, err := io.Copy(w, s.reader); err != nil {
			return fmt.Errorf("failed to upload %s: %w", s.name, err)
		}
		return nil
	}))
}
