package stream

import (
	"io"
	"log/slog"
	"sync"
)

// Registry records every stream opened during one solve so that all of
// them are released at lifecycle end, whichever exit path was taken.
type Registry struct {
	mu      sync.Mutex
	closers []io.Closer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add records a stream for later closure. Nil closers are ignored.
func (r *Registry) Add(c io.Closer) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, c)
}

// Len returns the number of streams currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closers)
}

// CloseAll closes every registered stream exactly once. Individual close
// failures are logged and do not prevent the remaining streams from being
// closed. The registry is drained afterwards so a later solve starts clean.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for _, c := range closers {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close stream", "error", err)
		}
	}
}
