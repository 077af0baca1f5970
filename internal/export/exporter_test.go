package export

import (
	"context"
	"errors"
	"sync"
	"testing"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
	"github.com/aevon-lab/project-tpms/internal/framelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockPersister is a testify mock for Persister.
type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) Persist(ctx context.Context, batch storage.Batch) (v1.Result, error) {
	args := m.Called(ctx, batch)
	return args.Get(0).(v1.Result), args.Error(1)
}

// recordingPersister stores every successful batch per target.
type recordingPersister struct {
	mu      sync.Mutex
	batches map[string][][]string
	fail    map[string]bool
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{batches: map[string][][]string{}, fail: map[string]bool{}}
}

func (p *recordingPersister) Persist(_ context.Context, batch storage.Batch) (v1.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[batch.Target] {
		return v1.Result{Status: v1.StatusError, Message: "disk full"}, nil
	}
	ids := make([]string, len(batch.Frames))
	for i, f := range batch.Frames {
		ids[i] = f.ID
	}
	p.batches[batch.Target] = append(p.batches[batch.Target], ids)
	return v1.Result{Status: v1.StatusOK, Message: "saved"}, nil
}

func appendIDs(l *framelog.Log, ids ...string) {
	for _, id := range ids {
		l.Append(v1.RawFrame{ID: id, Data: v1.PayloadFromBytes([]byte{0, 1})})
	}
}

func TestSaveTo_SecondCallWithoutNewFramesHasNoData(t *testing.T) {
	log := framelog.New()
	appendIDs(log, "502", "502")
	p := newRecordingPersister()
	e := NewExporter(log, p, nil)

	res, err := e.SaveTo(context.Background(), "A", SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
	assert.Equal(t, 2, e.cursor("A"))

	_, err = e.SaveTo(context.Background(), "A", SaveOptions{})
	require.ErrorIs(t, err, ErrNoNewData)
	assert.Equal(t, 2, e.cursor("A"))
	assert.Equal(t, 2, log.Len())
	assert.Len(t, p.batches["A"], 1)
}

func TestSaveTo_TargetsAreIndependent(t *testing.T) {
	log := framelog.New()
	p := newRecordingPersister()
	e := NewExporter(log, p, nil)
	ctx := context.Background()

	appendIDs(log, "1", "2")
	_, err := e.SaveTo(ctx, "A", SaveOptions{})
	require.NoError(t, err)

	appendIDs(log, "3")
	_, err = e.SaveTo(ctx, "B", SaveOptions{})
	require.NoError(t, err)

	appendIDs(log, "4")
	_, err = e.SaveTo(ctx, "A", SaveOptions{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, p.batches["A"])
	assert.Equal(t, [][]string{{"1", "2", "3"}}, p.batches["B"])
	assert.Equal(t, map[string]int{"A": 4, "B": 3}, e.Cursors())
}

func TestSaveTo_FailureLeavesCursorForRetry(t *testing.T) {
	log := framelog.New()
	p := newRecordingPersister()
	e := NewExporter(log, p, nil)
	ctx := context.Background()

	appendIDs(log, "1", "2")
	p.fail["A"] = true
	res, err := e.SaveTo(ctx, "A", SaveOptions{})
	require.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, "disk full", res.Message)
	assert.Equal(t, 0, e.cursor("A"))

	appendIDs(log, "3")
	p.fail["A"] = false
	_, err = e.SaveTo(ctx, "A", SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", "3"}}, p.batches["A"])
	assert.Equal(t, 3, e.cursor("A"))
}

func TestSaveTo_PersistErrorIsWrapped(t *testing.T) {
	log := framelog.New()
	appendIDs(log, "502")

	boom := errors.New("connection refused")
	p := &mockPersister{}
	p.On("Persist", mock.Anything, mock.MatchedBy(func(b storage.Batch) bool {
		return b.Target == "db" && len(b.Frames) == 1
	})).Return(v1.Result{Status: v1.StatusError, Message: boom.Error()}, boom).Once()

	e := NewExporter(log, p, nil)
	_, err := e.SaveTo(context.Background(), "db", SaveOptions{})
	require.ErrorIs(t, err, ErrPersistFailed)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, e.cursor("db"))
	p.AssertExpectations(t)
}

func TestSaveTo_RequiredIDFilter(t *testing.T) {
	log := framelog.New()
	p := newRecordingPersister()
	e := NewExporter(log, p, nil)
	ctx := context.Background()

	appendIDs(log, "500", "502", "501", "502")
	id := uint32(0x502)
	res, err := e.SaveTo(ctx, "A", SaveOptions{RequiredID: &id})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
	assert.Equal(t, [][]string{{"502", "502"}}, p.batches["A"])
	assert.Equal(t, 4, e.cursor("A"), "cursor advances to the log length at call time")

	appendIDs(log, "500")
	_, err = e.SaveTo(ctx, "A", SaveOptions{RequiredID: &id})
	require.ErrorIs(t, err, ErrNoNewData)
	assert.Equal(t, 4, e.cursor("A"))
}

func TestSaveTo_ConcurrentAppendIsNotDropped(t *testing.T) {
	log := framelog.New()
	appendIDs(log, "1", "2")

	p := &mockPersister{}
	p.On("Persist", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { appendIDs(log, "3") }).
		Return(v1.Result{Status: v1.StatusOK}, nil).Once()
	p.On("Persist", mock.Anything, mock.MatchedBy(func(b storage.Batch) bool {
		return len(b.Frames) == 1 && b.Frames[0].ID == "3"
	})).Return(v1.Result{Status: v1.StatusOK}, nil).Once()

	e := NewExporter(log, p, nil)
	_, err := e.SaveTo(context.Background(), "A", SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, e.cursor("A"))

	_, err = e.SaveTo(context.Background(), "A", SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, e.cursor("A"))
	p.AssertExpectations(t)
}

func TestSaveTo_ResetDuringPersistDoesNotAdvance(t *testing.T) {
	log := framelog.New()
	appendIDs(log, "1", "2")

	var e *Exporter
	p := &mockPersister{}
	p.On("Persist", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { e.Reset() }).
		Return(v1.Result{Status: v1.StatusOK}, nil).Once()

	e = NewExporter(log, p, nil)
	_, err := e.SaveTo(context.Background(), "A", SaveOptions{})
	require.NoError(t, err)
	assert.Empty(t, e.Cursors())
}

// clearingSource runs clear inside the second Since call, the way a
// session clear can land between the cursor read and the log slice.
type clearingSource struct {
	*framelog.Log
	calls int
	clear func()
}

func (s *clearingSource) Since(from int) ([]v1.RawFrame, int) {
	s.calls++
	if s.calls == 2 && s.clear != nil {
		s.clear()
	}
	return s.Log.Since(from)
}

func TestSaveTo_ClearBetweenCursorReadAndSliceIsRetried(t *testing.T) {
	src := &clearingSource{Log: framelog.New()}
	appendIDs(src.Log, "O0", "O1")

	rec := newRecordingPersister()
	e := NewExporter(src, rec, nil)

	_, err := e.SaveTo(context.Background(), "A", SaveOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, e.cursor("A"))

	src.clear = func() {
		e.Reset()
		appendIDs(src.Log, "N0", "N1", "N2", "N3")
	}
	res, err := e.SaveTo(context.Background(), "A", SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.From)
	assert.Equal(t, 4, res.To)

	_, err = e.SaveTo(context.Background(), "A", SaveOptions{})
	require.ErrorIs(t, err, ErrNoNewData)

	assert.Equal(t, [][]string{{"O0", "O1"}, {"N0", "N1", "N2", "N3"}}, rec.batches["A"])
	assert.Equal(t, 4, src.calls)
}

func TestSaveTo_InvalidTarget(t *testing.T) {
	e := NewExporter(framelog.New(), newRecordingPersister(), nil)
	for _, name := range []string{"", "../etc", "a/b", " spaced"} {
		_, err := e.SaveTo(context.Background(), name, SaveOptions{})
		require.ErrorIs(t, err, ErrInvalidTarget, name)
	}
}

func TestNewExporter_PanicsOnNil(t *testing.T) {
	require.Panics(t, func() { NewExporter(nil, newRecordingPersister(), nil) })
	require.Panics(t, func() { NewExporter(framelog.New(), nil, nil) })
}
