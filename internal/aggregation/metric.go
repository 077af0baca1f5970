package aggregation

import "fmt"

// Metric names one of the three history series kept per sensor.
type Metric string

const (
	MetricPressure    Metric = "pressure"
	MetricTemperature Metric = "temperature"
	MetricBattery     Metric = "battery"
)

// AllMetrics lists the metrics in display order.
var AllMetrics = []Metric{MetricPressure, MetricTemperature, MetricBattery}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range AllMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q (must be pressure, temperature or battery)", s)
}
