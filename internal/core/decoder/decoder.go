// Package decoder turns raw TPMS frames into sensor readings.
//
// Frame layout (8 bytes, only the first 7 are meaningful):
//
//	byte 0    sensor id (sensor index = id + 1)
//	byte 1    packet type
//	byte 2-3  pressure, big-endian
//	byte 4-5  temperature raw, little-endian, (raw - 8500) / 100 °C
//	byte 6    battery raw, (raw*10 + 2000) / 1000 V
//
// The temperature byte order differs from the pressure byte order. This
// matches the sensors observed so far and must not be changed without a
// hardware capture proving otherwise.
package decoder

import (
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/shopspring/decimal"
)

const (
	minHeaderBytes    = 2
	minTelemetryBytes = 7

	temperatureOffset = 8500
	batteryOffset     = 2000
)

// Metrics are the physical values carried by a telemetry frame.
type Metrics struct {
	Pressure     uint16          `json:"pressure"`
	TemperatureC decimal.Decimal `json:"temperatureC"`
	BatteryV     decimal.Decimal `json:"batteryV"`
}

// Reading is a decoded frame. Telemetry is nil for status-only events.
type Reading struct {
	SensorIndex int       `json:"sensorIndex"`
	PacketType  byte      `json:"packetType"`
	Severity    Severity  `json:"severity"`
	ObservedAt  time.Time `json:"observedAt"`
	Telemetry   *Metrics  `json:"telemetry,omitempty"`
}

// IsTelemetry reports whether the reading carries metric values.
func (r Reading) IsTelemetry() bool { return r.Telemetry != nil }

// Decode decodes one frame. ok is false when the payload has fewer than
// two usable bytes; such frames are skipped, never reported as errors.
// observedAt is used when the frame carries no timestamp of its own.
func Decode(frame v1.RawFrame, observedAt time.Time) (Reading, bool) {
	data, ok := frame.Data.Bytes()
	if !ok {
		return Reading{}, false
	}
	if !frame.Timestamp.IsZero() {
		observedAt = frame.Timestamp
	}
	return DecodeBytes(data, observedAt)
}

// DecodeBytes decodes a normalized payload.
func DecodeBytes(data []byte, observedAt time.Time) (Reading, bool) {
	if len(data) < minHeaderBytes {
		return Reading{}, false
	}

	r := Reading{
		SensorIndex: int(data[0]) + 1,
		PacketType:  data[1],
		Severity:    SeverityOf(data[1]),
		ObservedAt:  observedAt,
	}

	if CarriesTelemetry(r.PacketType) && len(data) >= minTelemetryBytes {
		r.Telemetry = decodeMetrics(data)
	}
	return r, true
}

func decodeMetrics(data []byte) *Metrics {
	pressure := uint16(data[2])<<8 | uint16(data[3])
	tempRaw := int64(data[5])<<8 | int64(data[4])
	battRaw := int64(data[6])*10 + batteryOffset

	return &Metrics{
		Pressure:     pressure,
		TemperatureC: decimal.New(tempRaw-temperatureOffset, -2),
		BatteryV:     decimal.New(battRaw, -3),
	}
}
