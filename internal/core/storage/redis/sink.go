// Package redis exports frames onto a redis list and announces each batch
// on a pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/project-tpms/internal/core/storage"
	goredis "github.com/redis/go-redis/v9"
)

// Options configures a redis sink. Key and Channel default from the
// target name.
type Options struct {
	Target   string
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
	MaxLen   int64
}

// Notice is published on the channel after the frames are pushed.
type Notice struct {
	BatchID string    `json:"batchId"`
	Target  string    `json:"target"`
	Key     string    `json:"key"`
	Frames  int       `json:"frames"`
	SavedAt time.Time `json:"savedAt"`
}

type Sink struct {
	client  *goredis.Client
	key     string
	channel string
	maxLen  int64
}

// Open connects to redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Sink, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	s := NewWithClient(client, opts)
	slog.Info("[Redis] Export sink connected", "addr", opts.Addr, "key", s.key, "channel", s.channel)
	return s, nil
}

// NewWithClient wraps an existing client without checking it.
func NewWithClient(client *goredis.Client, opts Options) *Sink {
	key := opts.Key
	if key == "" {
		key = fmt.Sprintf("tpms:%s:frames", opts.Target)
	}
	channel := opts.Channel
	if channel == "" {
		channel = "tpms:exports"
	}
	return &Sink{client: client, key: key, channel: channel, maxLen: opts.MaxLen}
}

// Key returns the list the sink pushes to.
func (s *Sink) Key() string { return s.key }

// Channel returns the pub/sub channel batch notices go to.
func (s *Sink) Channel() string { return s.channel }

// Write implements storage.Sink. The frames, the trim and the notice go
// out in one MULTI/EXEC so a failed batch leaves the list unchanged.
func (s *Sink) Write(ctx context.Context, batch storage.Batch) error {
	values := make([]interface{}, 0, len(batch.Frames))
	for i, f := range batch.Frames {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("redis export: marshal frame %d: %w", i, err)
		}
		values = append(values, data)
	}

	notice, err := json.Marshal(Notice{
		BatchID: batch.ID.String(),
		Target:  batch.Target,
		Key:     s.key,
		Frames:  len(batch.Frames),
		SavedAt: batch.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("redis export: marshal notice: %w", err)
	}

	pipe := s.client.TxPipeline()
	if len(values) > 0 {
		pipe.RPush(ctx, s.key, values...)
	}
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	}
	pipe.Publish(ctx, s.channel, notice)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis export: %w", err)
	}
	slog.Debug("[Redis] Batch pushed", "key", s.key, "frames", len(values))
	return nil
}

// Close implements storage.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}
