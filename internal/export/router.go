package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
)

// ErrUnknownTarget is returned for a target with no registered sink and no
// fallback.
var ErrUnknownTarget = errors.New("unknown export target")

// SinkFactory opens a sink for a target name that was not configured.
type SinkFactory func(target string) (storage.Sink, error)

// Router implements Persister by dispatching each batch to the sink
// registered for its target.
type Router struct {
	mu       sync.Mutex
	sinks    map[string]storage.Sink
	fallback SinkFactory
}

// NewRouter creates a router. fallback may be nil.
func NewRouter(fallback SinkFactory) *Router {
	return &Router{
		sinks:    make(map[string]storage.Sink),
		fallback: fallback,
	}
}

// Register binds a target name to a sink.
func (r *Router) Register(target string, sink storage.Sink) error {
	if !ValidTargetName(target) {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if sink == nil {
		return fmt.Errorf("sink for target %q must not be nil", target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sinks[target]; exists {
		return fmt.Errorf("target %q already registered", target)
	}
	r.sinks[target] = sink
	return nil
}

// Targets lists registered target names in order.
func (r *Router) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Persist writes the batch to its target's sink.
func (r *Router) Persist(ctx context.Context, batch storage.Batch) (v1.Result, error) {
	sink, err := r.sinkFor(batch.Target)
	if err != nil {
		return v1.Result{Status: v1.StatusError, Message: err.Error()}, err
	}

	if err := sink.Write(ctx, batch); err != nil {
		return v1.Result{Status: v1.StatusError, Message: err.Error()}, fmt.Errorf("write to %q: %w", batch.Target, err)
	}

	return v1.Result{
		Status:  v1.StatusOK,
		Message: fmt.Sprintf("Saved %d messages to %s", len(batch.Frames), batch.Target),
	}, nil
}

func (r *Router) sinkFor(target string) (storage.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sink, ok := r.sinks[target]; ok {
		return sink, nil
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	sink, err := r.fallback(target)
	if err != nil {
		return nil, fmt.Errorf("open sink for %q: %w", target, err)
	}
	slog.Info("[Router] Opened fallback sink", "target", target)
	r.sinks[target] = sink
	return sink, nil
}

// Close closes every sink and returns the first error.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, sink := range r.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close sink %q: %w", name, err)
		}
	}
	return firstErr
}
