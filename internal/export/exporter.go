package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
	"github.com/aevon-lab/project-tpms/internal/metrics"
	"github.com/google/uuid"
)

var (
	// ErrNoNewData means nothing is pending for the target (or the id
	// filter removed everything). Nothing was written or mutated.
	ErrNoNewData = errors.New("no new data to save")

	// ErrPersistFailed wraps any failed or non-ok persist outcome.
	ErrPersistFailed = errors.New("persist failed")

	// ErrInvalidTarget rejects empty or unsafe target names.
	ErrInvalidTarget = errors.New("invalid target name")
)

var targetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidTargetName reports whether name can be used as an export target.
func ValidTargetName(name string) bool {
	return targetNamePattern.MatchString(name)
}

// FrameSource is the read side of the frame log.
type FrameSource interface {
	// Since returns frames with index >= from and the log length observed
	// at the same instant.
	Since(from int) ([]v1.RawFrame, int)
	// Reset drops every frame.
	Reset()
}

// SaveOptions narrows an export.
type SaveOptions struct {
	// RequiredID keeps only frames whose numeric id equals it.
	RequiredID *uint32
}

// SaveResult describes a successful (or attempted) export.
type SaveResult struct {
	BatchID uuid.UUID `json:"batch_id"`
	Target  string    `json:"target"`
	Frames  int       `json:"frames"`
	From    int       `json:"from"`
	To      int       `json:"to"`
	Message string    `json:"message"`
}

// Exporter tracks one cursor per target name into the frame log and
// performs incremental exports.
//
// Cursor invariant: cursors[t] is the log length captured when the last
// successful export of t sliced the log. It never decreases within a
// session and never exceeds the log length.
type Exporter struct {
	source    FrameSource
	persister Persister
	metrics   *metrics.Collector
	now       func() time.Time

	mu      sync.Mutex
	cursors map[string]int
	epoch   uint64
	locks   map[string]*sync.Mutex
}

// NewExporter creates an exporter over source writing through persister.
func NewExporter(source FrameSource, persister Persister, m *metrics.Collector) *Exporter {
	if source == nil {
		panic("export: frame source must not be nil")
	}
	if persister == nil {
		panic("export: persister must not be nil")
	}
	return &Exporter{
		source:    source,
		persister: persister,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
		cursors:   make(map[string]int),
		locks:     make(map[string]*sync.Mutex),
	}
}

// SaveTo exports every frame appended since the target's last successful
// export. Saves to the same target are serialized; distinct targets run
// independently.
func (e *Exporter) SaveTo(ctx context.Context, target string, opts SaveOptions) (SaveResult, error) {
	if !ValidTargetName(target) {
		return SaveResult{Target: target}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	lock := e.targetLock(target)
	lock.Lock()
	defer lock.Unlock()

	start, epoch, pending, end := e.snapshot(target)
	if opts.RequiredID != nil {
		pending = filterByID(pending, *opts.RequiredID)
	}

	result := SaveResult{Target: target, From: start, To: start}
	if len(pending) == 0 {
		e.metrics.ObserveExport(target, metrics.OutcomeNoData, 0)
		return result, ErrNoNewData
	}

	batch := storage.Batch{
		ID:      uuid.New(),
		Target:  target,
		SavedAt: e.now(),
		Frames:  pending,
	}
	result.BatchID = batch.ID
	result.Frames = len(pending)

	slog.Info("[Exporter] Saving frames",
		"target", target,
		"batch_id", batch.ID,
		"frames", len(pending),
		"from", start,
		"to", end,
	)

	res, err := e.persister.Persist(ctx, batch)
	if err != nil {
		e.metrics.ObserveExport(target, metrics.OutcomeFailed, 0)
		slog.Error("[Exporter] Persist failed, cursor unchanged", "target", target, "batch_id", batch.ID, "error", err)
		result.Message = err.Error()
		return result, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	if res.Status != v1.StatusOK {
		e.metrics.ObserveExport(target, metrics.OutcomeFailed, 0)
		slog.Error("[Exporter] Persist rejected, cursor unchanged", "target", target, "batch_id", batch.ID, "status", res.Status, "message", res.Message)
		result.Message = res.Message
		return result, fmt.Errorf("%w: %s", ErrPersistFailed, res.Message)
	}

	e.mu.Lock()
	advanced := epoch == e.epoch && end > e.cursors[target]
	if advanced {
		e.cursors[target] = end
	}
	e.mu.Unlock()

	if !advanced {
		slog.Warn("[Exporter] Session cleared during export, cursor not advanced",
			"target", target,
			"batch_id", batch.ID,
		)
	} else {
		result.To = end
	}

	e.metrics.ObserveExport(target, metrics.OutcomeOK, len(pending))
	result.Message = res.Message
	return result, nil
}

// cursor returns the current offset of one target.
func (e *Exporter) cursor(target string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursors[target]
}

// Cursors returns a copy of every target offset.
func (e *Exporter) Cursors() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.cursors))
	for k, v := range e.cursors {
		out[k] = v
	}
	return out
}

// Reset removes every cursor and empties the frame source in one step.
// Exports in flight when Reset runs complete but do not advance any cursor.
func (e *Exporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source.Reset()
	e.cursors = make(map[string]int)
	e.epoch++
}

// snapshot reads the target cursor and the frames after it. Since runs
// outside e.mu, so the read is retried until no Reset happened in between;
// otherwise an old cursor would slice the next session's log.
func (e *Exporter) snapshot(target string) (int, uint64, []v1.RawFrame, int) {
	for {
		e.mu.Lock()
		start, epoch := e.cursors[target], e.epoch
		e.mu.Unlock()

		pending, end := e.source.Since(start)

		e.mu.Lock()
		stable := epoch == e.epoch
		e.mu.Unlock()
		if stable {
			return start, epoch, pending, end
		}
		slog.Debug("[Exporter] Session cleared while reading frames, retrying", "target", target)
	}
}

func (e *Exporter) targetLock(target string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[target]
	if !ok {
		l = &sync.Mutex{}
		e.locks[target] = l
	}
	return l
}

func filterByID(frames []v1.RawFrame, id uint32) []v1.RawFrame {
	out := frames[:0:0]
	for _, f := range frames {
		got, err := v1.ParseFrameID(f.ID)
		if err != nil || got != id {
			continue
		}
		out = append(out, f)
	}
	return out
}
