package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var savedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockSink(t *testing.T) (*Sink, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Sink{db: db}, mock
}

func testBatch() storage.Batch {
	return storage.Batch{
		ID:      uuid.MustParse("6f1c1a52-5a0e-4c55-9a43-3f1a2b9c0d11"),
		Target:  "archive",
		SavedAt: savedAt,
		Frames: []v1.RawFrame{
			{
				ID:        "502",
				Data:      v1.PayloadFromBytes([]byte{0x00, 0x01, 0x27, 0x10}),
				Len:       4,
				MsgType:   v1.MsgTypeData,
				Timestamp: savedAt.Add(-time.Second),
			},
			{
				ID:        "500",
				Data:      v1.PayloadFromHex("AA 55"),
				Len:       2,
				MsgType:   v1.MsgTypeData,
				Timestamp: savedAt,
			},
		},
	}
}

func TestSink_Write(t *testing.T) {
	tests := []struct {
		name       string
		mockResult func(mock sqlmock.Sqlmock, b storage.Batch)
		assertions func(t *testing.T, err error)
	}{
		{
			name: "success writes header and frames in order",
			mockResult: func(mock sqlmock.Sqlmock, b storage.Batch) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(queryInsertBatch)).
					WithArgs(b.ID.String(), "archive", savedAt, 2).
					WillReturnResult(sqlmock.NewResult(0, 1))
				prep := mock.ExpectPrepare(regexp.QuoteMeta(queryInsertFrame))
				prep.ExpectExec().
					WithArgs(b.ID.String(), 0, "502", "[0,1,39,16]", 4, "DATA", savedAt.Add(-time.Second)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				prep.ExpectExec().
					WithArgs(b.ID.String(), 1, "500", `"AA 55"`, 2, "DATA", savedAt).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "replayed batch id maps to ErrDuplicate",
			mockResult: func(mock sqlmock.Sqlmock, b storage.Batch) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(queryInsertBatch)).
					WithArgs(b.ID.String(), "archive", savedAt, 2).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorIs(t, err, storage.ErrDuplicate)
			},
		},
		{
			name: "frame insert failure rolls back",
			mockResult: func(mock sqlmock.Sqlmock, b storage.Batch) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(queryInsertBatch)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				prep := mock.ExpectPrepare(regexp.QuoteMeta(queryInsertFrame))
				prep.ExpectExec().WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "insert frame 0")
				require.ErrorContains(t, err, "disk full")
			},
		},
		{
			name: "begin failure",
			mockResult: func(mock sqlmock.Sqlmock, _ storage.Batch) {
				mock.ExpectBegin().WillReturnError(errors.New("connection reset"))
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "begin tx")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink, mock := newMockSink(t)
			b := testBatch()
			tc.mockResult(mock, b)

			err := sink.Write(context.Background(), b)
			tc.assertions(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewSink_ValidatesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryTableExists)).
		WithArgs("export_batches").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(queryTableExists)).
		WithArgs("saved_frames").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = NewSink(db)
	require.ErrorContains(t, err, "saved_frames table does not exist")
	require.NoError(t, mock.ExpectationsWereMet())
}
