package postgres

const (
	// queryInsertBatch records one export. ON CONFLICT DO NOTHING makes a
	// replayed batch id affect zero rows, which maps to storage.ErrDuplicate.
	queryInsertBatch = `
		INSERT INTO export_batches (id, target, saved_at, frame_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	// queryInsertFrame stores one frame of a batch; seq keeps log order.
	queryInsertFrame = `
		INSERT INTO saved_frames (
			batch_id, seq, frame_id, data, len, msg_type, observed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)
	`
)
