package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/google/uuid"
)

// ErrDuplicate is returned when a batch with the same id was already written.
// Only sinks that index batches by id report it; stream sinks (redis, mqtt)
// deliver at least once.
var ErrDuplicate = errors.New("export batch already exists")

// Batch is one export: the exact slice of frames computed for a target.
type Batch struct {
	ID      uuid.UUID
	Target  string
	SavedAt time.Time
	Frames  []v1.RawFrame
}

// Session is the serialized form of a batch used by document-style sinks
// (JSON file, redis, mqtt).
type Session struct {
	SavedAt  time.Time     `json:"savedAt"`
	Target   string        `json:"target"`
	BatchID  string        `json:"batchId"`
	Messages []v1.RawFrame `json:"messages"`
}

// Session converts the batch into its document form.
func (b Batch) Session() Session {
	return Session{
		SavedAt:  b.SavedAt,
		Target:   b.Target,
		BatchID:  b.ID.String(),
		Messages: b.Frames,
	}
}

// Sink is a persistence target for exported frames.
//
// Contract: Write either stores the whole batch or returns an error. A
// returned error means the caller must assume nothing was stored and may
// retry the same frames later under a new batch id.
type Sink interface {
	Write(ctx context.Context, batch Batch) error
	Close() error
}
