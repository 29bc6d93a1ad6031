// Package tracing captures the device signals cycle by cycle so that a failing
// run can be inspected in a waveform viewer or queried from a database.
package tracing

// SignalVisitor receives the current value of one signal.
type SignalVisitor func(name string, width int, value uint64)

// Traceable is a device that can expose its signals to a tracer. Signals must
// be visited in the same order on every call.
type Traceable interface {
	TraceSignals(visit SignalVisitor)
}

// A Tracer records the signals of a Traceable at given timestamps.
type Tracer interface {
	// Open prepares the destination of the trace.
	Open(path string) error

	// Dump samples every signal at the given timestamp.
	Dump(time uint64)

	// Flush pushes buffered samples to the destination.
	Flush() error

	// Close flushes and releases the destination.
	Close() error
}

// NopTracer discards everything.
type NopTracer struct{}

// Open does nothing.
func (NopTracer) Open(string) error { return nil }

// Dump does nothing.
func (NopTracer) Dump(uint64) {}

// Flush does nothing.
func (NopTracer) Flush() error { return nil }

// Close does nothing.
func (NopTracer) Close() error { return nil }

type signalInfo struct {
	name  string
	width int
	value uint64
}

// snapshot collects the signals of src in visiting order.
func snapshot(src Traceable, into []signalInfo) []signalInfo {
	into = into[:0]
	src.TraceSignals(func(name string, width int, value uint64) {
		into = append(into, signalInfo{name: name, width: width, value: value})
	})

	return into
}

func mask(width int, value uint64) uint64 {
	if width >= 64 {
		return value
	}

	return value & (1<<uint(width) - 1)
}
