package ingestion

import (
	"sync"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/aggregation"
	"github.com/aevon-lab/project-tpms/internal/core/decoder"
	"github.com/aevon-lab/project-tpms/internal/framelog"
	"github.com/aevon-lab/project-tpms/internal/metrics"
)

// TargetOffset is added to the configured base id to get the id of
// sensor frames.
const TargetOffset = 2

// Resetter is anything holding per-session state derived from the log.
type Resetter interface {
	Reset()
}

// Result summarizes one ingested batch.
type Result struct {
	Received   int `json:"received"`
	Aggregated int `json:"aggregated"`
	Frames     int `json:"frames"`
}

// Pipeline is the single ingestion path shared by the poller and manual
// injection. Whole batches are serialized, so batch order is log order
// and history order.
type Pipeline struct {
	targetID uint32
	log      *framelog.Log
	store    *aggregation.Store
	exporter Resetter
	metrics  *metrics.Collector
	now      func() time.Time

	mu           sync.Mutex
	sessionStart time.Time
}

// NewPipeline wires the session structures together. Sensor frames are
// those whose id equals baseID+2.
func NewPipeline(baseID uint32, log *framelog.Log, store *aggregation.Store, exporter Resetter, m *metrics.Collector) *Pipeline {
	if log == nil {
		panic("ingestion: log must not be nil")
	}
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if exporter == nil {
		panic("ingestion: exporter must not be nil")
	}
	p := &Pipeline{
		targetID: baseID + TargetOffset,
		log:      log,
		store:    store,
		exporter: exporter,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
	p.sessionStart = p.now()
	return p
}

// TargetID is the frame id routed to the decoder.
func (p *Pipeline) TargetID() uint32 {
	return p.targetID
}

// Ingest appends every frame to the log and aggregates the sensor frames.
// Frames that cannot be decoded are logged but never abort the batch.
func (p *Pipeline) Ingest(frames []v1.RawFrame) Result {
	if len(frames) == 0 {
		return Result{Frames: p.log.Len()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	receivedAt := p.now()
	stamped := make([]v1.RawFrame, len(frames))
	for i, f := range frames {
		if f.Timestamp.IsZero() {
			f.Timestamp = receivedAt
		}
		stamped[i] = f
	}

	length := p.log.Append(stamped...)
	res := Result{Received: len(stamped), Frames: length}

	for _, f := range stamped {
		id, err := v1.ParseFrameID(f.ID)
		if err != nil || id != p.targetID {
			continue
		}
		reading, ok := decoder.Decode(f, receivedAt)
		if !ok {
			continue
		}
		p.store.Apply(reading)
		p.metrics.ObserveAggregated(reading.PacketType)
		res.Aggregated++
	}

	p.metrics.ObserveIngest(res.Received, length)
	return res
}

// Clear starts a new session: the log, the aggregates and every export
// cursor are dropped. The returned session start is strictly later than
// the previous one.
func (p *Pipeline) Clear() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The exporter empties the log under its own lock; the second Reset
	// covers resetters that do not own the log.
	p.exporter.Reset()
	p.log.Reset()
	p.store.Reset()

	next := p.now()
	if !next.After(p.sessionStart) {
		next = p.sessionStart.Add(time.Nanosecond)
	}
	p.sessionStart = next
	p.metrics.SetFrameLogLength(0)
	return next
}

// SessionStart returns when the current session began.
func (p *Pipeline) SessionStart() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionStart
}

// FrameCount returns the number of frames logged in this session.
func (p *Pipeline) FrameCount() int {
	return p.log.Len()
}
