package projection

import (
	"testing"
	"time"

	"github.com/aevon-lab/project-tpms/internal/aggregation"
	"github.com/aevon-lab/project-tpms/internal/core/decoder"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionStarted = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixedSession struct{}

func (fixedSession) SessionStart() time.Time { return sessionStarted }

func reading(sensor int, pkt byte, at time.Time, pressure uint16, temp, batt string) decoder.Reading {
	return decoder.Reading{
		SensorIndex: sensor,
		PacketType:  pkt,
		Severity:    decoder.SeverityOf(pkt),
		ObservedAt:  at,
		Telemetry: &decoder.Metrics{
			Pressure:     pressure,
			TemperatureC: decimal.RequireFromString(temp),
			BatteryV:     decimal.RequireFromString(batt),
		},
	}
}

func newTestService(t *testing.T) (*Service, *aggregation.Store) {
	t.Helper()
	store := aggregation.NewStore()
	svc := NewService(store, fixedSession{}, 10*time.Millisecond)
	t.Cleanup(svc.Close)
	return svc, store
}

func TestTelemetry_SortsSensors(t *testing.T) {
	svc, store := newTestService(t)
	t0 := sessionStarted.Add(time.Minute)

	store.Apply(reading(3, 0x01, t0, 90, "30.5", "2.9"))
	store.Apply(reading(1, 0x01, t0, 95, "31", "3"))
	store.Apply(reading(2, 0x10, t0, 25, "29", "2.7"))

	resp := svc.Telemetry()
	require.Len(t, resp.Sensors, 3)
	assert.Equal(t, 1, resp.Sensors[0].SensorIndex)
	assert.Equal(t, 2, resp.Sensors[1].SensorIndex)
	assert.Equal(t, 3, resp.Sensors[2].SensorIndex)
	assert.Equal(t, decoder.SeverityLow, resp.Sensors[1].State.Severity)
	assert.Equal(t, 1, resp.Sensors[1].Stats.Total)
	assert.Equal(t, sessionStarted, resp.SessionStart)
	assert.Len(t, resp.History[aggregation.MetricPressure][1], 1)
}

func TestSummary(t *testing.T) {
	svc, store := newTestService(t)
	t0 := sessionStarted.Add(time.Minute)

	store.Apply(reading(1, 0x01, t0, 90, "30", "2.9"))
	store.Apply(reading(1, 0x01, t0.Add(time.Second), 100, "31", "3"))
	store.Apply(reading(1, 0x01, t0.Add(2*time.Second), 110, "35", "3.1"))

	s := svc.Summary(aggregation.MetricPressure, 1)
	assert.Equal(t, int64(3), s.Count)
	assert.True(t, decimal.NewFromInt(300).Equal(s.Sum))
	assert.True(t, decimal.NewFromInt(90).Equal(s.Min))
	assert.True(t, decimal.NewFromInt(110).Equal(s.Max))
	assert.True(t, decimal.NewFromInt(100).Equal(s.Avg))
	require.NotNil(t, s.From)
	require.NotNil(t, s.To)
	assert.Equal(t, t0, *s.From)
	assert.Equal(t, t0.Add(2*time.Second), *s.To)

	temp := svc.Summary(aggregation.MetricTemperature, 1)
	assert.True(t, decimal.RequireFromString("32").Equal(temp.Avg), temp.Avg.String())
}

func TestSummary_UnknownSeries(t *testing.T) {
	svc, _ := newTestService(t)

	s := svc.Summary(aggregation.MetricBattery, 9)
	assert.Equal(t, int64(0), s.Count)
	assert.Nil(t, s.From)
}

func TestHistory_EmptyIsNotNil(t *testing.T) {
	svc, _ := newTestService(t)

	h := svc.History(aggregation.MetricBattery, 4)
	assert.NotNil(t, h.Points)
	assert.Empty(t, h.Points)
}

func TestNewService_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { NewService(nil, fixedSession{}, time.Second) })
	assert.Panics(t, func() { NewService(aggregation.NewStore(), nil, time.Second) })
}
