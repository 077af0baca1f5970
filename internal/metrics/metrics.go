// Package metrics exposes the service's prometheus collectors.
//
// A nil *Collector is valid and records nothing, so components can be
// built without metrics in tests.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tpms"

// Export outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeFailed = "failed"
)

type Collector struct {
	registry *prometheus.Registry

	framesReceived   prometheus.Counter
	framesAggregated *prometheus.CounterVec
	pollErrors       prometheus.Counter
	staleDiscards    prometheus.Counter
	pollDuration     prometheus.Histogram
	connectionState  prometheus.Gauge
	frameLogLength   prometheus.Gauge
	exports          *prometheus.CounterVec
	exportedFrames   *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames fetched from the gateway or injected, before filtering.",
		}),
		framesAggregated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_aggregated_total",
			Help:      "Filtered frames applied to the aggregation store, by packet type.",
		}, []string{"packet_type"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Gateway fetches that failed.",
		}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_stale_discards_total",
			Help:      "Fetch results dropped because the connection changed while in flight.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Latency of one gateway fetch.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 while the poller is connected to the gateway.",
		}),
		frameLogLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "framelog_length",
			Help:      "Frames held in the session frame log.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export attempts by target and outcome.",
		}, []string{"target", "outcome"}),
		exportedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exported_frames_total",
			Help:      "Frames successfully exported, by target.",
		}, []string{"target"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.framesReceived,
		c.framesAggregated,
		c.pollErrors,
		c.staleDiscards,
		c.pollDuration,
		c.connectionState,
		c.frameLogLength,
		c.exports,
		c.exportedFrames,
	)
	return c
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveIngest(received int, logLength int) {
	if c == nil {
		return
	}
	c.framesReceived.Add(float64(received))
	c.frameLogLength.Set(float64(logLength))
}

func (c *Collector) ObserveAggregated(packetType byte) {
	if c == nil {
		return
	}
	c.framesAggregated.WithLabelValues(fmt.Sprintf("%02X", packetType)).Inc()
}

func (c *Collector) ObservePoll(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.pollDuration.Observe(d.Seconds())
	if err != nil {
		c.pollErrors.Inc()
	}
}

func (c *Collector) ObserveStaleDiscard() {
	if c == nil {
		return
	}
	c.staleDiscards.Inc()
}

func (c *Collector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.connectionState.Set(1)
		return
	}
	c.connectionState.Set(0)
}

func (c *Collector) SetFrameLogLength(n int) {
	if c == nil {
		return
	}
	c.frameLogLength.Set(float64(n))
}

func (c *Collector) ObserveExport(target, outcome string, frames int) {
	if c == nil {
		return
	}
	c.exports.WithLabelValues(target, outcome).Inc()
	if frames > 0 {
		c.exportedFrames.WithLabelValues(target).Add(float64(frames))
	}
}
