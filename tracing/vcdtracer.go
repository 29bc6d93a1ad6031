package tracing

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// VCDTracer writes a Value Change Dump file that any waveform viewer can
// open. Only signals that changed since the previous dump are written.
type VCDTracer struct {
	src    Traceable
	scope  string
	path   string
	file   *os.File
	writer *bufio.Writer

	ids     []string
	last    []signalInfo
	current []signalInfo
	dumped  bool
}

// NewVCDTracer creates a tracer for src. The signals appear under the given
// module scope.
func NewVCDTracer(src Traceable, scope string) *VCDTracer {
	return &VCDTracer{
		src:   src,
		scope: scope,
	}
}

// Path returns the file being written.
func (t *VCDTracer) Path() string {
	return t.path
}

// Open creates the trace file and writes the header. An existing file is
// overwritten. An empty path picks a unique name.
func (t *VCDTracer) Open(path string) error {
	if path == "" {
		path = "kvsverify_trace_" + xid.New().String() + ".vcd"
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening trace file: %w", err)
	}

	t.path = path
	t.file = file
	t.writer = bufio.NewWriterSize(file, 1<<16)
	t.last = snapshot(t.src, nil)
	t.dumped = false

	t.ids = make([]string, len(t.last))
	for i := range t.ids {
		t.ids[i] = vcdIdentifier(i)
	}

	t.writeHeader()

	atexit.Register(func() { _ = t.Flush() })

	return nil
}

func (t *VCDTracer) writeHeader() {
	w := t.writer

	fmt.Fprintf(w, "$date %s $end\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(w, "$version kvsverify $end\n")
	fmt.Fprintf(w, "$timescale 1ns $end\n")
	fmt.Fprintf(w, "$scope module %s $end\n", t.scope)

	for i, s := range t.last {
		fmt.Fprintf(w, "$var wire %d %s %s $end\n", s.width, t.ids[i], s.name)
	}

	fmt.Fprintf(w, "$upscope $end\n")
	fmt.Fprintf(w, "$enddefinitions $end\n")
}

// Dump writes the signals that changed since the last dump. The first dump
// writes all of them.
func (t *VCDTracer) Dump(timestamp uint64) {
	if t.writer == nil {
		return
	}

	t.current = snapshot(t.src, t.current)

	if !t.dumped {
		fmt.Fprintf(t.writer, "#%d\n$dumpvars\n", timestamp)

		for i, s := range t.current {
			t.writeValue(i, s)
		}

		fmt.Fprintf(t.writer, "$end\n")

		t.dumped = true
		t.last, t.current = t.current, t.last

		return
	}

	headerWritten := false

	for i, s := range t.current {
		if s.value == t.last[i].value {
			continue
		}

		if !headerWritten {
			fmt.Fprintf(t.writer, "#%d\n", timestamp)
			headerWritten = true
		}

		t.writeValue(i, s)
	}

	t.last, t.current = t.current, t.last
}

func (t *VCDTracer) writeValue(i int, s signalInfo) {
	v := mask(s.width, s.value)

	if s.width == 1 {
		fmt.Fprintf(t.writer, "%d%s\n", v, t.ids[i])
		return
	}

	fmt.Fprintf(t.writer, "b%s %s\n", strconv.FormatUint(v, 2), t.ids[i])
}

// Flush writes the buffered changes to the file.
func (t *VCDTracer) Flush() error {
	if t.writer == nil {
		return nil
	}

	return t.writer.Flush()
}

// Close flushes and closes the file.
func (t *VCDTracer) Close() error {
	if t.file == nil {
		return nil
	}

	err := t.Flush()
	if err != nil {
		return err
	}

	err = t.file.Close()
	t.file = nil
	t.writer = nil

	return err
}

// vcdIdentifier encodes n with the printable characters '!' to '~'.
func vcdIdentifier(n int) string {
	const first, base = '!', '~' - '!' + 1

	id := []byte{}
	for {
		id = append(id, byte(first+n%base))
		n /= base

		if n == 0 {
			break
		}

		n--
	}

	return string(id)
}
