package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTableName is the table that holds process execution information.
const ExecTableName = "exec_info"

// ExecInfo is one property of a process execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records when and how the process was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates an ExecRecorder that writes through recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		recorder: recorder,
	}

	recorder.CreateTable(ExecTableName, ExecInfo{})

	return e
}

// Start logs the current execution.
func (e *ExecRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.entries = append(e.entries, ExecInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	e.entries = append(e.entries, ExecInfo{"Command", cmd})

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}
}

// Annotate adds an extra property to the execution record.
func (e *ExecRecorder) Annotate(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes the collected properties along with the exit time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTableName, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.recorder.InsertData(ExecTableName, ExecInfo{"End Time", endTime})

	e.entries = nil

	e.recorder.Flush()
}
