package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
)

// frameRow is the column form of one saved frame.
type frameRow struct {
	frameID    string
	data       string
	length     int
	msgType    string
	observedAt time.Time
}

// toFrameRow flattens a frame. The payload is stored as JSON so the
// legacy string form survives a round trip.
func toFrameRow(f v1.RawFrame) (frameRow, error) {
	data, err := json.Marshal(f.Data)
	if err != nil {
		return frameRow{}, fmt.Errorf("failed to marshal frame data: %w", err)
	}
	return frameRow{
		frameID:    f.ID,
		data:       string(data),
		length:     f.Len,
		msgType:    f.MsgType,
		observedAt: f.Timestamp.UTC(),
	}, nil
}
