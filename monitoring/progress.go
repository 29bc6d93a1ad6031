package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar counts finished work out of a known total. It is safe to
// update from the cycle loop while the server reads it.
type ProgressBar struct {
	id    string
	name  string
	start time.Time
	total uint64

	mu       sync.Mutex
	finished uint64
}

// IncrementFinished marks amount more units of work as done.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.mu.Lock()
	b.finished += amount
	b.mu.Unlock()
}

// Finished returns the units of work done so far.
func (b *ProgressBar) Finished() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

func (b *ProgressBar) snapshot(now time.Time) progressRsp {
	return progressRsp{
		ID:        b.id,
		Name:      b.name,
		StartTime: b.start,
		Total:     b.total,
		Finished:  b.Finished(),
		ElapsedMS: now.Sub(b.start).Milliseconds(),
	}
}
