package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "messages list",
			body:    `{"messages":[{"id":"502","data":[0,1]},{"id":"500","data":[9]}]}`,
			wantIDs: []string{"502", "500"},
		},
		{
			name:    "single message",
			body:    `{"message":{"id":"502","data":"00 01"}}`,
			wantIDs: []string{"502"},
		},
		{
			name: "no data sentinel",
			body: `{"message":"No data"}`,
		},
		{
			name: "null message",
			body: `{"message":null}`,
		},
		{
			name:    "bare list with sentinel element",
			body:    `["No data", {"id":"502","data":[0,4]}]`,
			wantIDs: []string{"502"},
		},
		{
			name: "bare sentinel string",
			body: `"No data"`,
		},
		{
			name: "empty body",
			body: ``,
		},
		{
			name:    "number is rejected",
			body:    `42`,
			wantErr: true,
		},
		{
			name:    "bad frame payload",
			body:    `{"messages":[{"id":"502","data":{"x":1}}]}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frames, err := ParseBatch([]byte(tc.body))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(frames))
			for _, f := range frames {
				ids = append(ids, f.ID)
			}
			if len(tc.wantIDs) == 0 {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestNewCommandResponse(t *testing.T) {
	ok := NewCommandResponse(CommandInitResult, true, "initialized", nil)
	assert.Equal(t, StatusOK, ok.Payload.Result.Status)
	assert.Equal(t, PacketSuccess, ok.Payload.PacketStatus)
	assert.Equal(t, "", ok.Payload.Data)

	failed := NewCommandResponse(CommandLoadData, false, "disk full", nil)
	assert.Equal(t, StatusError, failed.Payload.Result.Status)
	assert.Equal(t, PacketFailed, failed.Payload.PacketStatus)
}
