// Package framelog keeps the append-only record of every frame received in
// the current session. Export cursors are offsets into this log.
package framelog

import (
	"sync"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
)

// Log is an unbounded, insertion-ordered frame log.
type Log struct {
	mu     sync.RWMutex
	frames []v1.RawFrame
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append adds frames in order and returns the new length.
func (l *Log) Append(frames ...v1.RawFrame) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, frames...)
	return len(l.frames)
}

// Slice returns a copy of the frames with index >= from.
func (l *Log) Slice(from int) []v1.RawFrame {
	frames, _ := l.Since(from)
	return frames
}

// Since returns a copy of the frames with index >= from together with the
// log length observed at the same instant. Offsets past the end yield an
// empty slice.
func (l *Log) Since(from int) ([]v1.RawFrame, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	end := len(l.frames)
	if from < 0 {
		from = 0
	}
	if from >= end {
		return nil, end
	}
	out := make([]v1.RawFrame, end-from)
	copy(out, l.frames[from:end])
	return out, end
}

// Len returns the current number of frames.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.frames)
}

// Reset drops every frame.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = nil
}
