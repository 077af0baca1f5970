package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/project-tpms/internal/aggregation"
	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/config"
	"github.com/aevon-lab/project-tpms/internal/core/storage/jsonfile"
	"github.com/aevon-lab/project-tpms/internal/core/storage/postgres"
	"github.com/aevon-lab/project-tpms/internal/export"
	"github.com/aevon-lab/project-tpms/internal/framelog"
	"github.com/aevon-lab/project-tpms/internal/gateway"
	"github.com/aevon-lab/project-tpms/internal/ingestion"
	"github.com/aevon-lab/project-tpms/internal/metrics"
	"github.com/aevon-lab/project-tpms/internal/migrations"
	"github.com/aevon-lab/project-tpms/internal/poller"
	"github.com/aevon-lab/project-tpms/internal/projection"
	"github.com/aevon-lab/project-tpms/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and the gateway poller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded config",
		"gateway", cfg.Gateway.Driver,
		"base_id", fmt.Sprintf("%#x", cfg.Ingestion.BaseID),
		"targets", len(cfg.Export.Targets),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Optional PostgreSQL
	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	// 2. Export targets
	router := export.NewRouter(jsonfile.Factory(cfg.Export.JSONDir))
	defer func() {
		if err := router.Close(); err != nil {
			slog.Error("Failed to close export sinks", "error", err)
		}
	}()
	if err := registerSinks(ctx, router, cfg, db); err != nil {
		return err
	}

	// 3. Session state
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}
	frames := framelog.New()
	store := aggregation.NewStore()
	exporter := export.NewExporter(frames, router, collector)
	pipeline := ingestion.NewPipeline(cfg.Ingestion.BaseID, frames, store, exporter, collector)
	slog.Info("Session ready",
		"sensor_frame_id", v1.FormatFrameID(pipeline.TargetID()),
		"export_targets", router.Targets(),
	)

	// 4. Gateway and poller
	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}
	poll := poller.New(gw, pipeline, collector, poller.Options{Interval: cfg.Gateway.PollIntervalDuration()})
	if err := poll.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	if cfg.Gateway.AutoConnect && poll.State() == poller.Disconnected {
		res, err := poll.Connect(ctx, cfg.Gateway.Channel, cfg.Gateway.Baudrate)
		if err != nil {
			return fmt.Errorf("failed to connect gateway: %w", err)
		}
		if !res.OK {
			slog.Warn("Gateway auto-connect refused", "message", res.Message)
		}
	}

	// 5. HTTP
	projectionSvc := projection.NewService(store, pipeline, cfg.Stream.IntervalDuration())

	var health server.HealthChecker
	if db != nil {
		health = db
	}
	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), health, cfg.Server.Mode)
	if collector != nil {
		srv.Mount(cfg.Metrics.Path, collector.Handler())
	}
	poller.NewService(poll).RegisterRoutes(srv.Engine)
	ingestion.NewService(pipeline, cfg.Server.MaxBodySizeMB).RegisterRoutes(srv.Engine)
	export.NewService(exporter, frames, router).RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 6. Run until signalled
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Signal received, shutting down...")
		projectionSvc.Close()
		poll.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}

func newGateway(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.Gateway.Driver {
	case "simulator":
		sim := cfg.Gateway.Simulator
		return gateway.NewSimulator(gateway.SimulatorOptions{
			BaseID:        cfg.Ingestion.BaseID,
			Sensors:       sim.Sensors,
			FramesPerRead: sim.FramesPerTick,
			NoiseEvery:    sim.NoiseEvery,
			Seed:          sim.Seed,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported gateway driver %q", cfg.Gateway.Driver)
	}
}
