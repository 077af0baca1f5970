// Package gateway defines the hardware gateway the poller talks to and
// the constants of its command set.
package gateway

import (
	"context"
	"errors"
	"sort"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
)

// StatusCode is the gateway's connection status string.
type StatusCode string

const (
	// StatusOK means the channel is initialized. Seen at startup it means
	// the gateway was already connected.
	StatusOK StatusCode = "00000h"
	// StatusNotInitialized means no channel is open.
	StatusNotInitialized StatusCode = "00001h"
)

var (
	ErrNotConnected    = errors.New("gateway not connected")
	ErrUnknownChannel  = errors.New("unknown channel")
	ErrUnknownBaudrate = errors.New("unknown baudrate")
)

// Status is the answer to a status query.
type Status struct {
	Code StatusCode `json:"status_code"`
	Text string     `json:"status_text"`
}

// Result is the outcome of a command such as initialize or release.
type Result struct {
	OK      bool
	Message string
}

// Gateway is the external collaborator that owns the CAN adapter.
type Gateway interface {
	Status(ctx context.Context) (Status, error)
	Initialize(ctx context.Context, channel, baudrate string) (Result, error)
	Release(ctx context.Context) (Result, error)

	// ReadBatch drains whatever the gateway buffered since the last call.
	// An empty slice means nothing was received. ErrNotConnected means the
	// gateway reports the channel as closed.
	ReadBatch(ctx context.Context) ([]v1.RawFrame, error)
}

// Channels maps channel names to PCAN handles.
var Channels = map[string]uint16{
	"PCAN_USBBUS1": 0x51,
	"PCAN_USBBUS2": 0x52,
	"PCAN_USBBUS3": 0x53,
	"PCAN_USBBUS4": 0x54,
	"PCAN_USBBUS5": 0x55,
}

// Baudrates maps baudrate names to PCAN BTR0BTR1 codes.
var Baudrates = map[string]uint16{
	"PCAN_BAUD_1M":   0x0014,
	"PCAN_BAUD_800K": 0x0015,
	"PCAN_BAUD_500K": 0x0004,
	"PCAN_BAUD_250K": 0x0005,
	"PCAN_BAUD_125K": 0x0006,
	"PCAN_BAUD_100K": 0x0007,
	"PCAN_BAUD_50K":  0x0008,
	"PCAN_BAUD_20K":  0x0009,
	"PCAN_BAUD_10K":  0x000A,
}

// LookupChannel resolves a channel name.
func LookupChannel(name string) (uint16, error) {
	h, ok := Channels[name]
	if !ok {
		return 0, ErrUnknownChannel
	}
	return h, nil
}

// LookupBaudrate resolves a baudrate name.
func LookupBaudrate(name string) (uint16, error) {
	b, ok := Baudrates[name]
	if !ok {
		return 0, ErrUnknownBaudrate
	}
	return b, nil
}

// ChannelNames returns the known channel names sorted.
func ChannelNames() []string { return sortedKeys(Channels) }

// BaudrateNames returns the known baudrate names sorted.
func BaudrateNames() []string { return sortedKeys(Baudrates) }

func sortedKeys(m map[string]uint16) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
