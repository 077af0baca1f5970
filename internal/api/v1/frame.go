package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message types reported by the gateway.
const (
	MsgTypeData = "DATA"
	MsgTypeRTR  = "RTR"
)

// RawFrame is one CAN-bus message as surfaced by the gateway.
// It is immutable once received.
type RawFrame struct {
	// ID is the arbitration id as hex without a prefix ("502").
	ID string `json:"id"`

	// Data is either a byte array or the legacy space-separated hex string.
	// The original form is kept so exports write back what was received.
	Data Payload `json:"data"`

	Len     int    `json:"len"`
	MsgType string `json:"msgType"`

	// Timestamp is the instant the frame was observed. Gateways that only
	// report a relative hardware counter leave it zero and the ingestion
	// pipeline stamps the receive time instead.
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts both the canonical camel-case shape and the
// gateway's snake-case msg_type key. Numeric timestamps (hardware
// microsecond counters) carry no wall-clock instant and are dropped.
func (f *RawFrame) UnmarshalJSON(b []byte) error {
	var wire struct {
		ID           string          `json:"id"`
		Data         Payload         `json:"data"`
		Len          int             `json:"len"`
		MsgType      string          `json:"msgType"`
		MsgTypeSnake string          `json:"msg_type"`
		Timestamp    json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	*f = RawFrame{
		ID:      wire.ID,
		Data:    wire.Data,
		Len:     wire.Len,
		MsgType: wire.MsgType,
	}
	if f.MsgType == "" {
		f.MsgType = wire.MsgTypeSnake
	}

	ts := bytes.TrimSpace(wire.Timestamp)
	if len(ts) > 0 && ts[0] == '"' {
		var s string
		if err := json.Unmarshal(ts, &s); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		parsed, err := parseInstant(s)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		f.Timestamp = parsed
	}
	return nil
}

// Validate reports whether the frame carries the minimum envelope needed
// to be logged.
func (f *RawFrame) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := ParseFrameID(f.ID); err != nil {
		return err
	}
	if f.Len < 0 {
		return fmt.Errorf("len must be >= 0")
	}
	return f.Data.Err()
}

// ParseFrameID parses a hex frame id. A leading 0x is tolerated.
func ParseFrameID(id string) (uint32, error) {
	s := strings.TrimSpace(id)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid frame id %q: %w", id, err)
	}
	return uint32(v), nil
}

// FormatFrameID renders an id the way the gateway does: upper-case hex,
// at least three digits.
func FormatFrameID(id uint32) string {
	return fmt.Sprintf("%03X", id)
}

// isoLayouts are tried in order; the gateway's recorder writes local
// ISO timestamps without a zone.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseInstant(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
