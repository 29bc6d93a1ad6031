package tracing

import (
	"github.com/sarchlab/kvsverify/datarecording"
)

const (
	signalTableName = "trace_signals"
	changeTableName = "trace_changes"
)

type signalEntry struct {
	ID    int
	Name  string
	Width int
}

type changeEntry struct {
	Time     int64
	SignalID int
	Value    int64
}

// DBTracer stores signal changes into a database through a DataRecorder. The
// recorder is shared with other users, so the tracer never closes it.
type DBTracer struct {
	src     Traceable
	backend datarecording.DataRecorder

	last    []signalInfo
	current []signalInfo
	opened  bool
	dumped  bool
}

// NewDBTracer creates a tracer that records the signals of src into backend.
func NewDBTracer(src Traceable, backend datarecording.DataRecorder) *DBTracer {
	return &DBTracer{
		src:     src,
		backend: backend,
	}
}

// Open creates the tables. The path is ignored because the destination is
// owned by the backend.
func (t *DBTracer) Open(_ string) error {
	if t.opened {
		return nil
	}

	t.backend.CreateTable(signalTableName, signalEntry{})
	t.backend.CreateTable(changeTableName, changeEntry{})

	t.last = snapshot(t.src, nil)
	for i, s := range t.last {
		t.backend.InsertData(signalTableName, signalEntry{
			ID:    i,
			Name:  s.name,
			Width: s.width,
		})
	}

	t.opened = true

	return nil
}

// Dump records the signals that changed since the previous dump.
func (t *DBTracer) Dump(timestamp uint64) {
	if !t.opened {
		return
	}

	t.current = snapshot(t.src, t.current)

	for i, s := range t.current {
		if t.dumped && s.value == t.last[i].value {
			continue
		}

		t.backend.InsertData(changeTableName, changeEntry{
			Time:     int64(timestamp),
			SignalID: i,
			Value:    int64(mask(s.width, s.value)),
		})
	}

	t.dumped = true
	t.last, t.current = t.current, t.last
}

// Flush does nothing. The backend commits in batches on its own.
func (t *DBTracer) Flush() error {
	return nil
}

// Close flushes the backend.
func (t *DBTracer) Close() error {
	t.backend.Flush()
	return nil
}
