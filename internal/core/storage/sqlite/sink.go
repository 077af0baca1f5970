// Package sqlite is a local-file export sink with the same logical schema
// as the postgres sink.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// timeLayout is fixed width so stored instants sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	queryInsertBatch = `
		INSERT OR IGNORE INTO export_batches (id, target, saved_at, frame_count)
		VALUES (?, ?, ?, ?)
	`
	queryInsertFrame = `
		INSERT INTO saved_frames (batch_id, seq, frame_id, data, len, msg_type, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	querySelectFrames = `
		SELECT f.frame_id, f.data, f.len, f.msg_type, f.observed_at
		FROM saved_frames f
		JOIN export_batches b ON b.id = f.batch_id
		WHERE b.target = ?
		ORDER BY b.saved_at, f.batch_id, f.seq
	`
)

// Sink writes export batches into a SQLite file.
type Sink struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Info("[SQLite] Export sink opened", "path", path)
	return &Sink{db: db, path: path}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Write implements storage.Sink.
func (s *Sink) Write(ctx context.Context, batch storage.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export write: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, queryInsertBatch,
		batch.ID.String(), batch.Target, formatTime(batch.SavedAt), len(batch.Frames))
	if err != nil {
		return fmt.Errorf("export write: insert batch: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("export write: check batch insert: %w", err)
	} else if n == 0 {
		return storage.ErrDuplicate
	}

	stmt, err := tx.PrepareContext(ctx, queryInsertFrame)
	if err != nil {
		return fmt.Errorf("export write: prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range batch.Frames {
		data, err := json.Marshal(f.Data)
		if err != nil {
			return fmt.Errorf("export write: frame %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			batch.ID.String(), i, f.ID, string(data), f.Len, f.MsgType, formatTime(f.Timestamp),
		); err != nil {
			return fmt.Errorf("export write: insert frame %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export write: commit: %w", err)
	}
	return nil
}

// frames returns every frame saved under target in save order.
func (s *Sink) frames(ctx context.Context, target string) ([]v1.RawFrame, error) {
	rows, err := s.db.QueryContext(ctx, querySelectFrames, target)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []v1.RawFrame
	for rows.Next() {
		var (
			f        v1.RawFrame
			data, ts string
		)
		if err := rows.Scan(&f.ID, &data, &f.Len, &f.MsgType, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan frame row: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &f.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal frame data: %w", err)
		}
		if f.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse frame timestamp: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close implements storage.Sink.
func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
