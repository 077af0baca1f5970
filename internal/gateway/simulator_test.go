package gateway

import (
	"context"
	"testing"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simClock = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestSimulator(opts SimulatorOptions) *Simulator {
	opts.Now = func() time.Time { return simClock }
	return NewSimulator(opts)
}

func TestSimulator_RequiresInitialize(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator(SimulatorOptions{Seed: 1})

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNotInitialized, st.Code)

	_, err = s.ReadBatch(ctx)
	require.ErrorIs(t, err, ErrNotConnected)

	res, err := s.Initialize(ctx, "PCAN_USBBUS1", "PCAN_BAUD_500K")
	require.NoError(t, err)
	assert.True(t, res.OK)

	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st.Code)

	res, err = s.Release(ctx)
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = s.Release(ctx)
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestSimulator_RejectsUnknownNames(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator(SimulatorOptions{Seed: 1})

	res, err := s.Initialize(ctx, "PCAN_USBBUS7", "PCAN_BAUD_500K")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Invalid channel: PCAN_USBBUS7", res.Message)

	res, err = s.Initialize(ctx, "PCAN_USBBUS1", "fast")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Invalid baudrate: fast", res.Message)
}

func TestSimulator_FrameShape(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator(SimulatorOptions{BaseID: 0x500, Sensors: 3, FramesPerRead: 6, Seed: 42})
	_, err := s.Initialize(ctx, "PCAN_USBBUS1", "PCAN_BAUD_500K")
	require.NoError(t, err)

	frames, err := s.ReadBatch(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 6)

	for i, f := range frames {
		assert.Equal(t, "502", f.ID)
		assert.Equal(t, v1.MsgTypeData, f.MsgType)
		assert.Equal(t, 8, f.Len)

		data, ok := f.Data.Bytes()
		require.True(t, ok)
		require.Len(t, data, 8)
		assert.Equal(t, byte(i%3), data[0], "sensors are emitted round robin")
		assert.Contains(t, simulatedPacketTypes, data[1])
		assert.Equal(t, byte(0), data[7])

		pressure := int(data[2])<<8 | int(data[3])
		temp := int(data[5])<<8 | int(data[4])
		switch data[1] {
		case 0x10:
			assert.Equal(t, 25, pressure)
		case 0x11:
			assert.Equal(t, 15, pressure)
		default:
			assert.GreaterOrEqual(t, pressure, 35)
			assert.LessOrEqual(t, pressure, 120)
			assert.GreaterOrEqual(t, temp, 11000)
			assert.LessOrEqual(t, temp, 14500)
		}
	}
}

func TestSimulator_DeterministicUnderSeed(t *testing.T) {
	ctx := context.Background()
	read := func() []v1.RawFrame {
		s := newTestSimulator(SimulatorOptions{BaseID: 0x500, FramesPerRead: 16, Seed: 99})
		_, err := s.Initialize(ctx, "PCAN_USBBUS2", "PCAN_BAUD_250K")
		require.NoError(t, err)
		frames, err := s.ReadBatch(ctx)
		require.NoError(t, err)
		return frames
	}

	a, b := read(), read()
	require.Len(t, a, len(b))
	for i := range a {
		assert.Equal(t, a[i].Data.Hex(), b[i].Data.Hex())
	}
}

func TestSimulator_Noise(t *testing.T) {
	ctx := context.Background()
	s := newTestSimulator(SimulatorOptions{BaseID: 0x500, FramesPerRead: 4, NoiseEvery: 2, Seed: 3})
	_, err := s.Initialize(ctx, "PCAN_USBBUS1", "PCAN_BAUD_1M")
	require.NoError(t, err)

	frames, err := s.ReadBatch(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 6)

	var noise int
	for _, f := range frames {
		if f.ID == "500" {
			noise++
		}
	}
	assert.Equal(t, 2, noise)
}

func TestLookupTables(t *testing.T) {
	h, err := LookupChannel("PCAN_USBBUS3")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x53), h)

	b, err := LookupBaudrate("PCAN_BAUD_125K")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0006), b)

	_, err = LookupChannel("nope")
	assert.ErrorIs(t, err, ErrUnknownChannel)
	_, err = LookupBaudrate("nope")
	assert.ErrorIs(t, err, ErrUnknownBaudrate)

	assert.Len(t, ChannelNames(), 5)
	assert.Equal(t, "PCAN_BAUD_100K", BaudrateNames()[0])
}
