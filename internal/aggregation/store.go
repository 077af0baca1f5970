package aggregation

import (
	"sync"
	"time"

	"github.com/aevon-lab/project-tpms/internal/core/decoder"
	"github.com/shopspring/decimal"
)

// SensorState is the latest known state of one sensor. Metric fields never
// regress to unknown: a status-only reading keeps the previous values.
type SensorState struct {
	SensorIndex  int              `json:"sensorIndex"`
	PacketType   byte             `json:"packetType"`
	Severity     decoder.Severity `json:"severity"`
	ObservedAt   time.Time        `json:"observedAt"`
	Pressure     uint16           `json:"pressure"`
	TemperatureC decimal.Decimal  `json:"temperatureC"`
	BatteryV     decimal.Decimal  `json:"batteryV"`
}

// SensorStats counts every filtered frame of a sensor by packet type.
// Total always equals the sum of ByType.
type SensorStats struct {
	Total  int          `json:"total"`
	ByType map[byte]int `json:"byType"`
}

// Snapshot is a deep copy of the store contents.
type Snapshot struct {
	Latest  map[int]SensorState        `json:"latest"`
	History map[Metric]map[int][]Point `json:"history"`
	Stats   map[int]SensorStats        `json:"stats"`
}

// Merge folds a reading into the previous state of the same sensor.
// Newer non-null values win, otherwise the previous value is kept,
// otherwise the zero value.
func Merge(prev *SensorState, r decoder.Reading) SensorState {
	next := SensorState{
		SensorIndex:  r.SensorIndex,
		PacketType:   r.PacketType,
		Severity:     r.Severity,
		ObservedAt:   r.ObservedAt,
		TemperatureC: decimal.Zero,
		BatteryV:     decimal.Zero,
	}
	if prev != nil {
		next.Pressure = prev.Pressure
		next.TemperatureC = prev.TemperatureC
		next.BatteryV = prev.BatteryV
	}
	if r.IsTelemetry() {
		next.Pressure = r.Telemetry.Pressure
		next.TemperatureC = r.Telemetry.TemperatureC
		next.BatteryV = r.Telemetry.BatteryV
	}
	return next
}

// Store owns the latest-state table, the history series and the stats
// table. It is safe for concurrent use; Apply calls are applied in the
// order they acquire the lock.
type Store struct {
	mu      sync.RWMutex
	latest  map[int]SensorState
	history map[seriesKey]*series
	stats   map[int]*SensorStats
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

// Apply merges one decoded reading into all three aggregates.
func (s *Store) Apply(r decoder.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *SensorState
	if p, ok := s.latest[r.SensorIndex]; ok {
		prev = &p
	}
	s.latest[r.SensorIndex] = Merge(prev, r)

	if r.IsTelemetry() {
		label := r.ObservedAt.Format(labelLayout)
		s.pushLocked(MetricPressure, r, label, decimal.NewFromInt(int64(r.Telemetry.Pressure)))
		s.pushLocked(MetricTemperature, r, label, r.Telemetry.TemperatureC)
		s.pushLocked(MetricBattery, r, label, r.Telemetry.BatteryV)
	}

	st, ok := s.stats[r.SensorIndex]
	if !ok {
		st = &SensorStats{ByType: make(map[byte]int)}
		s.stats[r.SensorIndex] = st
	}
	st.ByType[r.PacketType]++
	st.Total++
}

func (s *Store) pushLocked(m Metric, r decoder.Reading, label string, v decimal.Decimal) {
	key := seriesKey{metric: m, sensor: r.SensorIndex}
	ser, ok := s.history[key]
	if !ok {
		ser = &series{}
		s.history[key] = ser
	}
	ser.push(Point{Label: label, Value: v, At: r.ObservedAt})
}

// Snapshot returns a deep copy of every aggregate.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Latest:  make(map[int]SensorState, len(s.latest)),
		History: make(map[Metric]map[int][]Point, len(AllMetrics)),
		Stats:   make(map[int]SensorStats, len(s.stats)),
	}
	for idx, st := range s.latest {
		snap.Latest[idx] = st
	}
	for _, m := range AllMetrics {
		snap.History[m] = make(map[int][]Point)
	}
	for key, ser := range s.history {
		snap.History[key.metric][key.sensor] = ser.points()
	}
	for idx, st := range s.stats {
		snap.Stats[idx] = copyStats(st)
	}
	return snap
}

// Sensor returns the latest state and stats of one sensor.
func (s *Store) Sensor(index int) (SensorState, SensorStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.latest[index]
	if !ok {
		return SensorState{}, SensorStats{}, false
	}
	var stats SensorStats
	if c, ok := s.stats[index]; ok {
		stats = copyStats(c)
	}
	return st, stats, true
}

// History returns one series oldest first, or nil when never observed.
func (s *Store) History(m Metric, sensor int) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.history[seriesKey{metric: m, sensor: sensor}]
	if !ok {
		return nil
	}
	return ser.points()
}

// Reset empties every aggregate.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.latest = make(map[int]SensorState)
	s.history = make(map[seriesKey]*series)
	s.stats = make(map[int]*SensorStats)
}

func copyStats(st *SensorStats) SensorStats {
	out := SensorStats{Total: st.Total, ByType: make(map[byte]int, len(st.ByType))}
	for k, v := range st.ByType {
		out.ByType[k] = v
	}
	return out
}
