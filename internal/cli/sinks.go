package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/project-tpms/internal/core/config"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
	"github.com/aevon-lab/project-tpms/internal/core/storage/jsonfile"
	"github.com/aevon-lab/project-tpms/internal/core/storage/mqtt"
	"github.com/aevon-lab/project-tpms/internal/core/storage/postgres"
	"github.com/aevon-lab/project-tpms/internal/core/storage/redis"
	"github.com/aevon-lab/project-tpms/internal/core/storage/sqlite"
	"github.com/aevon-lab/project-tpms/internal/export"
)

// sharedSink lets several targets write through one postgres sink whose
// connection is owned by the caller.
type sharedSink struct {
	storage.Sink
}

func (sharedSink) Close() error { return nil }

// registerSinks opens one sink per configured target and registers it.
// Targets not listed here fall back to JSON files at request time.
func registerSinks(ctx context.Context, router *export.Router, cfg *config.Config, db *sql.DB) error {
	var pg storage.Sink

	for _, t := range cfg.Export.Targets {
		var (
			sink  storage.Sink
			err   error
			attrs []any
		)

		switch t.Kind {
		case config.KindJSONFile:
			var js *jsonfile.Sink
			if js, err = jsonfile.New(t.Path); err == nil {
				sink = js
				attrs = append(attrs, "path", js.Path())
			}
		case config.KindSQLite:
			sink, err = sqlite.Open(t.Path)
		case config.KindPostgres:
			if db == nil {
				return fmt.Errorf("export target %q: postgres is not configured", t.Name)
			}
			if pg == nil {
				s, err := postgres.NewSink(db)
				if err != nil {
					return fmt.Errorf("export target %q: %w", t.Name, err)
				}
				pg = sharedSink{s}
			}
			sink = pg
		case config.KindRedis:
			var rs *redis.Sink
			rs, err = redis.Open(ctx, redis.Options{
				Target:   t.Name,
				Addr:     t.Addr,
				Password: t.Password,
				DB:       t.DB,
				Key:      t.Key,
				Channel:  t.Channel,
				MaxLen:   t.MaxLen,
			})
			if err == nil {
				sink = rs
				attrs = append(attrs, "key", rs.Key(), "channel", rs.Channel())
			}
		case config.KindMQTT:
			sink, err = mqtt.Open(ctx, mqtt.Options{
				Target:   t.Name,
				Broker:   t.Broker,
				ClientID: t.ClientID,
				Topic:    t.Topic,
			})
		default:
			err = fmt.Errorf("unsupported kind %q", t.Kind)
		}
		if err != nil {
			return fmt.Errorf("export target %q: %w", t.Name, err)
		}

		if err := router.Register(t.Name, sink); err != nil {
			sink.Close()
			return err
		}
		slog.Info("Export target registered", append([]any{"target", t.Name, "kind", t.Kind}, attrs...)...)
	}
	return nil
}
