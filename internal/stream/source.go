// Package stream provides lazy composition of byte sources and the
// close-exactly-once bookkeeping for streams opened during a solve.
package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// Opener defers producing a byte stream until it is needed.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Location returns an Opener for a resource locator. Locations with an
// http or https scheme are fetched with httpClient; anything else is
// opened as a local file path.
func Location(httpClient *http.Client, location string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return OpenLocation(ctx, httpClient, location)
	}
}

// OpenLocation opens a resource locator for reading.
func OpenLocation(ctx context.Context, httpClient *http.Client, location string) (io.ReadCloser, error) {
	if parsed, err := url.Parse(location); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		client := httpClient
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to open %s: status %d", location, resp.StatusCode)
		}
		return resp.Body, nil
	}

	file, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", location, err)
	}
	return file, nil
}

// BaseName returns the filename portion of a resource locator, used to
// derive attachment names.
func BaseName(location string) string {
	if parsed, err := url.Parse(location); err == nil && parsed.Scheme != "" {
		return path.Base(parsed.Path)
	}
	return path.Base(strings.ReplaceAll(location, string(os.PathSeparator), "/"))
}

// concat yields the bytes of its sources in order. At most one source is
// open at a time; later sources are not opened until earlier ones are
// exhausted.
type concat struct {
	ctx     context.Context
	openers []Opener
	next    int
	current io.ReadCloser
	closed  bool
}

// Concat returns a stream reading the given sources as if concatenated,
// without separators. Closing it closes the still-open underlying source;
// sources not yet opened never will be.
func Concat(ctx context.Context, openers ...Opener) io.ReadCloser {
	return &concat{ctx: ctx, openers: openers}
}

func (c *concat) Read(p []byte) (int, error) {
	if c.closed {
		return 0, fmt.Errorf("read from closed composite stream")
	}
	for {
		if c.current == nil {
			if c.next >= len(c.openers) {
				return 0, io.EOF
			}
			rc, err := c.openers[c.next](c.ctx)
			if err != nil {
				return 0, err
			}
			c.current = rc
			c.next++
		}

		n, err := c.current.Read(p)
		if err == io.EOF {
			closeErr := c.current.Close()
			c.current = nil
			if closeErr != nil {
				return n, closeErr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *concat) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	return err
}

// Text buffers the fragments eagerly, joined with a newline after each
// fragment. Inline model text is expected to be small, so the in-memory
// path is acceptable; large file-backed sources go through Concat.
func Text(fragments ...string) io.ReadCloser {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return io.NopCloser(strings.NewReader(b.String()))
}
