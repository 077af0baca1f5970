package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
)

// SimulatorOptions configures the simulated tire sensors.
type SimulatorOptions struct {
	// BaseID is the configured base id; sensor frames use BaseID+2.
	BaseID uint32
	// Sensors is the number of simulated sensors (ids 0..Sensors-1).
	Sensors int
	// FramesPerRead is how many sensor frames one ReadBatch returns.
	FramesPerRead int
	// NoiseEvery interleaves one frame with id BaseID after every N sensor
	// frames. Zero disables noise.
	NoiseEvery int
	// Seed makes the traffic reproducible.
	Seed uint64
	// Now overrides the clock.
	Now func() time.Time
}

func (o SimulatorOptions) normalized() SimulatorOptions {
	n := o
	if n.Sensors <= 0 {
		n.Sensors = 32
	}
	if n.Sensors > 256 {
		n.Sensors = 256
	}
	if n.FramesPerRead <= 0 {
		n.FramesPerRead = 4
	}
	if n.Now == nil {
		n.Now = func() time.Time { return time.Now().UTC() }
	}
	return n
}

// simulatedPacketTypes mirrors the distribution of the bench traffic
// generator: mostly normal readings with occasional alarms.
var simulatedPacketTypes = []byte{0x01, 0x01, 0x01, 0x02, 0x03, 0x04, 0x10, 0x11}

// Simulator is an in-process Gateway producing TPMS traffic. It behaves
// like the hardware gateway: it must be initialized before it yields
// frames and it reports 00000h while a channel is open.
type Simulator struct {
	opts SimulatorOptions

	mu          sync.Mutex
	rng         *rand.Rand
	initialized bool
	channel     string
	next        int
	emitted     int
}

// NewSimulator creates a simulator in the not-initialized state.
func NewSimulator(opts SimulatorOptions) *Simulator {
	opts = opts.normalized()
	return &Simulator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9E3779B97F4A7C15)),
	}
}

// Status implements Gateway.
func (s *Simulator) Status(_ context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return Status{Code: StatusOK, Text: "OK"}, nil
	}
	return Status{Code: StatusNotInitialized, Text: "Not initialized"}, nil
}

// Initialize implements Gateway.
func (s *Simulator) Initialize(_ context.Context, channel, baudrate string) (Result, error) {
	if _, err := LookupChannel(channel); err != nil {
		return Result{Message: fmt.Sprintf("Invalid channel: %s", channel)}, nil
	}
	if _, err := LookupBaudrate(baudrate); err != nil {
		return Result{Message: fmt.Sprintf("Invalid baudrate: %s", baudrate)}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return Result{OK: true, Message: fmt.Sprintf("Already initialized on %s", s.channel)}, nil
	}
	s.initialized = true
	s.channel = channel
	slog.Info("[Simulator] Channel initialized", "channel", channel, "baudrate", baudrate)
	return Result{OK: true, Message: fmt.Sprintf("Initialized %s at %s", channel, baudrate)}, nil
}

// Release implements Gateway.
func (s *Simulator) Release(_ context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return Result{Message: "PCAN not initialized"}, nil
	}
	s.initialized = false
	slog.Info("[Simulator] Channel released", "channel", s.channel)
	return Result{OK: true, Message: fmt.Sprintf("Released %s", s.channel)}, nil
}

// ReadBatch implements Gateway.
func (s *Simulator) ReadBatch(ctx context.Context) ([]v1.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotConnected
	}

	now := s.opts.Now()
	frames := make([]v1.RawFrame, 0, s.opts.FramesPerRead+1)
	for i := 0; i < s.opts.FramesPerRead; i++ {
		frames = append(frames, s.sensorFrameLocked(now))
		s.emitted++
		if s.opts.NoiseEvery > 0 && s.emitted%s.opts.NoiseEvery == 0 {
			frames = append(frames, s.noiseFrameLocked(now))
		}
	}
	return frames, nil
}

func (s *Simulator) sensorFrameLocked(now time.Time) v1.RawFrame {
	sensor := s.next
	s.next = (s.next + 1) % s.opts.Sensors

	pkt := simulatedPacketTypes[s.rng.IntN(len(simulatedPacketTypes))]

	pressure := 35 + s.rng.IntN(86)
	switch pkt {
	case 0x11:
		pressure = 15
	case 0x10:
		pressure = 25
	}

	temp := 11000 + s.rng.IntN(3501)
	if pkt == 0x11 && s.rng.Float64() > 0.5 {
		temp = 18000
	}

	batt := 100 + s.rng.IntN(61)
	if pkt == 0x11 && s.rng.Float64() > 0.8 {
		batt = 20
	}

	data := []byte{
		byte(sensor),
		pkt,
		byte(pressure >> 8),
		byte(pressure),
		byte(temp),
		byte(temp >> 8),
		byte(batt),
		0x00,
	}
	return v1.RawFrame{
		ID:        v1.FormatFrameID(s.opts.BaseID + 2),
		Data:      v1.PayloadFromBytes(data),
		Len:       len(data),
		MsgType:   v1.MsgTypeData,
		Timestamp: now.Add(time.Duration(sensor) * 100 * time.Microsecond),
	}
}

func (s *Simulator) noiseFrameLocked(now time.Time) v1.RawFrame {
	data := []byte{0xAA, 0x55}
	return v1.RawFrame{
		ID:        v1.FormatFrameID(s.opts.BaseID),
		Data:      v1.PayloadFromBytes(data),
		Len:       len(data),
		MsgType:   v1.MsgTypeData,
		Timestamp: now,
	}
}
