package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NoDataSentinel is what the gateway returns in place of a frame when its
// receive queue is empty.
const NoDataSentinel = "No data"

// ParseBatch normalizes one readBatch response into a list of frames.
//
// Accepted shapes:
//
//	{"messages": [frame, ...]}
//	{"message": frame}
//	{"message": "No data"}   (or any other string, or null)
//	[frame, ...]
//
// String elements are sentinels and are dropped, never treated as frames.
func ParseBatch(body []byte) ([]RawFrame, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode batch list: %w", err)
		}
		return decodeItems(items)
	case '{':
		var envelope struct {
			Messages []json.RawMessage `json:"messages"`
			Message  json.RawMessage   `json:"message"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode batch envelope: %w", err)
		}
		if envelope.Messages != nil {
			return decodeItems(envelope.Messages)
		}
		if len(envelope.Message) > 0 {
			return decodeItems([]json.RawMessage{envelope.Message})
		}
		return nil, nil
	case '"':
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported batch shape")
	}
}

func decodeItems(items []json.RawMessage) ([]RawFrame, error) {
	frames := make([]RawFrame, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var f RawFrame
		if err := json.Unmarshal(item, &f); err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
