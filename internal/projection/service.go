package projection

import (
	"sort"
	"sync"
	"time"

	"github.com/aevon-lab/project-tpms/internal/aggregation"
	coreagg "github.com/aevon-lab/project-tpms/internal/core/aggregation"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const defaultStreamInterval = time.Second

// SessionClock reports when the current session started.
type SessionClock interface {
	SessionStart() time.Time
}

// Service serves read-only views of the aggregation store.
type Service struct {
	store          *aggregation.Store
	session        SessionClock
	streamInterval time.Duration
	pongWait       time.Duration
	upgrader       websocket.Upgrader
	nowFn          func() time.Time

	quit     chan struct{}
	quitOnce sync.Once
}

// NewService creates a projection service. streamInterval is how often
// the websocket stream pushes a snapshot.
func NewService(store *aggregation.Store, session SessionClock, streamInterval time.Duration) *Service {
	if store == nil {
		panic("projection: store must not be nil")
	}
	if session == nil {
		panic("projection: session must not be nil")
	}
	if streamInterval <= 0 {
		streamInterval = defaultStreamInterval
	}
	return &Service{
		store:          store,
		session:        session,
		streamInterval: streamInterval,
		pongWait:       defaultPongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
		quit: make(chan struct{}),
	}
}

// Close ends every open stream.
func (s *Service) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Telemetry builds the full read model.
func (s *Service) Telemetry() TelemetryResponse {
	snap := s.store.Snapshot()

	sensors := make([]SensorView, 0, len(snap.Latest))
	for idx, st := range snap.Latest {
		sensors = append(sensors, SensorView{
			SensorIndex: idx,
			State:       st,
			Stats:       snap.Stats[idx],
		})
	}
	sort.Slice(sensors, func(i, j int) bool {
		return sensors[i].SensorIndex < sensors[j].SensorIndex
	})

	return TelemetryResponse{
		SessionStart: s.session.SessionStart(),
		GeneratedAt:  s.nowFn(),
		Sensors:      sensors,
		History:      snap.History,
	}
}

// Sensor returns one sensor's view; ok is false if it was never seen.
func (s *Service) Sensor(index int) (SensorView, bool) {
	st, stats, ok := s.store.Sensor(index)
	if !ok {
		return SensorView{}, false
	}
	return SensorView{SensorIndex: index, State: st, Stats: stats}, true
}

// History returns one series. Unknown series are empty, not errors.
func (s *Service) History(m aggregation.Metric, sensor int) HistoryResponse {
	points := s.store.History(m, sensor)
	if points == nil {
		points = []aggregation.Point{}
	}
	return HistoryResponse{Metric: m, SensorIndex: sensor, Points: points}
}

// Summary folds one series with count, sum, min, max and avg.
func (s *Service) Summary(m aggregation.Metric, sensor int) SummaryResponse {
	points := s.store.History(m, sensor)
	resp := SummaryResponse{Metric: m, SensorIndex: sensor}
	if len(points) == 0 {
		return resp
	}

	values := make([]decimal.Decimal, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	from, to := points[0].At, points[len(points)-1].At
	resp.From, resp.To = &from, &to
	resp.Summary = coreagg.Summarize(values)
	return resp
}
