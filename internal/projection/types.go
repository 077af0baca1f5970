package projection

import (
	"time"

	"github.com/aevon-lab/project-tpms/internal/aggregation"
	coreagg "github.com/aevon-lab/project-tpms/internal/core/aggregation"
)

// TelemetryResponse is the full read model of the current session.
type TelemetryResponse struct {
	SessionStart time.Time                                          `json:"session_start"`
	GeneratedAt  time.Time                                          `json:"generated_at"`
	Sensors      []SensorView                                       `json:"sensors"`
	History      map[aggregation.Metric]map[int][]aggregation.Point `json:"history"`
}

// SensorView is the latest state and stats of one sensor.
type SensorView struct {
	SensorIndex int                     `json:"sensor_index"`
	State       aggregation.SensorState `json:"state"`
	Stats       aggregation.SensorStats `json:"stats"`
}

// HistoryResponse is one (metric, sensor) series, oldest first.
type HistoryResponse struct {
	Metric      aggregation.Metric  `json:"metric"`
	SensorIndex int                 `json:"sensor_index"`
	Points      []aggregation.Point `json:"points"`
}

// SummaryResponse folds one history series.
type SummaryResponse struct {
	Metric      aggregation.Metric `json:"metric"`
	SensorIndex int                `json:"sensor_index"`
	From        *time.Time         `json:"from,omitempty"`
	To          *time.Time         `json:"to,omitempty"`
	coreagg.Summary
}
