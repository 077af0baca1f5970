// Package poller drives the gateway while a channel is open: every tick
// it drains one batch and hands it to the ingestion pipeline.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/gateway"
	"github.com/aevon-lab/project-tpms/internal/ingestion"
	"github.com/aevon-lab/project-tpms/internal/metrics"
)

// State is the connection state of the poller.
type State string

const (
	Disconnected State = "disconnected"
	Connected    State = "connected"
)

// Ingester consumes polled batches.
type Ingester interface {
	Ingest(frames []v1.RawFrame) ingestion.Result
}

// Options tunes the poll loop.
type Options struct {
	// Interval between fetches. Ticks that fall due while a fetch is in
	// flight are dropped.
	Interval time.Duration
	// FetchTimeout bounds one ReadBatch call. Defaults to 4x Interval.
	FetchTimeout time.Duration
}

func (o Options) normalized() Options {
	n := o
	if n.Interval <= 0 {
		n.Interval = 75 * time.Millisecond
	}
	if n.FetchTimeout <= 0 {
		n.FetchTimeout = 4 * n.Interval
	}
	return n
}

// Poller is the Disconnected/Connected state machine. Each connection
// generation owns one loop goroutine; a result is applied only if its
// generation is still current, so nothing fetched before a release can
// reach the pipeline after Release returns.
type Poller struct {
	gw       gateway.Gateway
	ingester Ingester
	metrics  *metrics.Collector
	opts     Options

	// ctl serializes Connect and Release against each other.
	ctl sync.Mutex

	mu         sync.Mutex
	base       context.Context
	state      State
	generation uint64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a disconnected poller.
func New(gw gateway.Gateway, ingester Ingester, m *metrics.Collector, opts Options) *Poller {
	if gw == nil {
		panic("poller: gateway must not be nil")
	}
	if ingester == nil {
		panic("poller: ingester must not be nil")
	}
	return &Poller{
		gw:       gw,
		ingester: ingester,
		metrics:  m,
		opts:     opts.normalized(),
		base:     context.Background(),
		state:    Disconnected,
	}
}

// Start binds the poller to ctx and checks the gateway status once. A gateway
// that already reports an open channel puts the poller straight into
// Connected. Start does not block.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	p.base = ctx
	p.mu.Unlock()

	status, err := p.gw.Status(ctx)
	if err != nil {
		slog.Warn("[Poller] Initial status check failed", "error", err)
		return nil
	}

	slog.Info("[Poller] Gateway status", "status_code", status.Code, "status_text", status.Text)
	if status.Code != gateway.StatusOK {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectLocked()
	return nil
}

// Connect initializes the gateway channel and starts polling on success.
// A failure result from the gateway is returned as-is with a nil error.
func (p *Poller) Connect(ctx context.Context, channel, baudrate string) (gateway.Result, error) {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	if p.State() == Connected {
		return gateway.Result{OK: true, Message: "Already connected"}, nil
	}

	res, err := p.gw.Initialize(ctx, channel, baudrate)
	if err != nil {
		return gateway.Result{}, err
	}
	if !res.OK {
		slog.Warn("[Poller] Gateway refused initialize", "channel", channel, "baudrate", baudrate, "message", res.Message)
		return res, nil
	}

	p.mu.Lock()
	p.connectLocked()
	p.mu.Unlock()

	slog.Info("[Poller] Connected", "channel", channel, "baudrate", baudrate, "interval", p.opts.Interval)
	return res, nil
}

// Release stops polling and releases the gateway channel. Polling stops
// before the gateway is asked, so the poller is Disconnected even when
// the release call itself fails.
func (p *Poller) Release(ctx context.Context) (gateway.Result, error) {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	p.disconnectLocked()
	p.mu.Unlock()

	res, err := p.gw.Release(ctx)
	if err != nil {
		slog.Error("[Poller] Gateway release failed", "error", err)
		return gateway.Result{}, err
	}
	slog.Info("[Poller] Released", "ok", res.OK, "message", res.Message)
	return res, nil
}

// State returns the current connection state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// GatewayStatus queries the gateway directly.
func (p *Poller) GatewayStatus(ctx context.Context) (gateway.Status, error) {
	return p.gw.Status(ctx)
}

// Close stops polling and waits for the loop goroutine to exit. The
// gateway channel is left as is.
func (p *Poller) Close() {
	p.mu.Lock()
	p.disconnectLocked()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) connectLocked() {
	if p.state == Connected {
		return
	}
	p.generation++
	ctx, cancel := context.WithCancel(p.base)
	p.cancel = cancel
	p.state = Connected
	p.metrics.SetConnected(true)

	p.wg.Add(1)
	go p.run(ctx, p.generation)
}

func (p *Poller) disconnectLocked() {
	if p.state == Disconnected {
		return
	}
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = Disconnected
	p.metrics.SetConnected(false)
}

func (p *Poller) run(ctx context.Context, generation uint64) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick(ctx, generation)
		case <-ctx.Done():
			slog.Debug("[Poller] Loop stopped", "generation", generation)
			return
		}
	}
}

// tick fetches one batch and applies it if the generation is still live.
func (p *Poller) tick(ctx context.Context, generation uint64) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	frames, err := p.gw.ReadBatch(fetchCtx)
	p.metrics.ObservePoll(time.Since(start), err)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation != generation || p.state != Connected {
		p.metrics.ObserveStaleDiscard()
		slog.Debug("[Poller] Discarding stale fetch result", "generation", generation, "frames", len(frames))
		return
	}

	if err != nil {
		if errors.Is(err, gateway.ErrNotConnected) {
			slog.Warn("[Poller] Gateway reports channel closed; disconnecting")
			p.disconnectLocked()
			return
		}
		slog.Debug("[Poller] Fetch failed; retrying next tick", "error", err)
		return
	}

	if len(frames) == 0 {
		return
	}
	p.ingester.Ingest(frames)
}
