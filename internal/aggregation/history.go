package aggregation

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryLimit is the number of points kept per (metric, sensor) series.
const HistoryLimit = 50

// labelLayout formats history labels as wall-clock time.
const labelLayout = "15:04:05"

// Point is one history sample.
type Point struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
	At    time.Time       `json:"at"`
}

type seriesKey struct {
	metric Metric
	sensor int
}

// series is a fixed-capacity FIFO ring; the oldest point is overwritten
// once the ring is full.
type series struct {
	buf   [HistoryLimit]Point
	start int
	n     int
}

func (s *series) push(p Point) {
	if s.n < HistoryLimit {
		s.buf[(s.start+s.n)%HistoryLimit] = p
		s.n++
		return
	}
	s.buf[s.start] = p
	s.start = (s.start + 1) % HistoryLimit
}

// points returns the series oldest first.
func (s *series) points() []Point {
	out := make([]Point, s.n)
	for i := 0; i < s.n; i++ {
		out[i] = s.buf[(s.start+i)%HistoryLimit]
	}
	return out
}
