package harness

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/kvsverify/datarecording"
	"github.com/sarchlab/kvsverify/hooking"
)

// Table names used in run records.
const (
	SummaryTableName   = "run_summary"
	ViolationTableName = "violations"
	LookupTableName    = "lookups"
)

// RunSummary is the outcome of one run.
type RunSummary struct {
	RunID          string
	Mode           string
	Seed           int64
	Fault          string
	Passed         bool
	Error          string
	Cycles         int64
	FillInserts    int64
	LookupsChecked int64
	LookupsMatched int64
	LookupsAbsent  int64
	Modifications  int64
	Deletes        int64
	Idles          int64
	Recents        int64
	Inserts        int64
}

// NewRunSummary fills the counters of a summary from stats.
func NewRunSummary(runID, mode string, stats Stats, err error) RunSummary {
	s := RunSummary{
		RunID:          runID,
		Mode:           mode,
		Passed:         err == nil,
		Cycles:         int64(stats.Cycles),
		FillInserts:    int64(stats.FillInserts),
		LookupsChecked: int64(stats.LookupsChecked),
		LookupsMatched: int64(stats.LookupsMatched),
		LookupsAbsent:  int64(stats.LookupsAbsent),
		Modifications:  int64(stats.Modifications),
		Deletes:        int64(stats.Deletes),
		Idles:          int64(stats.Idles),
		Recents:        int64(stats.Recents),
		Inserts:        int64(stats.Inserts),
	}

	if err != nil {
		s.Error = err.Error()
	}

	return s
}

// ViolationEntry is a recorded violation.
type ViolationEntry struct {
	RunID         string
	Cycle         int64
	IssueCycle    int64
	Kind          string
	Key           int64
	ExpectPresent bool
	ExpectValue   int64
	GotValid      bool
	GotValue      int64
}

// NewViolationEntry flattens a violation for recording.
func NewViolationEntry(runID string, v *ViolationError) ViolationEntry {
	return ViolationEntry{
		RunID:         runID,
		Cycle:         int64(v.ResolveCycle),
		IssueCycle:    int64(v.Record.IssueCycle),
		Kind:          v.Record.Kind.String(),
		Key:           int64(v.Record.Key),
		ExpectPresent: v.Record.ExpectPresent,
		ExpectValue:   int64(v.Record.ExpectValue),
		GotValid:      v.Observed.Valid,
		GotValue:      int64(v.Observed.Value),
	}
}

// LookupEntry is one resolved lookup.
type LookupEntry struct {
	RunID         string
	IssueCycle    int64
	Kind          string
	Key           int64
	ExpectPresent bool
	ExpectValue   int64
	Mutation      string
}

// A Recorder writes run outcomes into a data recorder.
type Recorder struct {
	runID       string
	recorder    datarecording.DataRecorder
	withLookups bool
}

// NewRecorder creates the run tables. With lookups enabled, every resolved
// lookup is recorded too.
func NewRecorder(
	runID string,
	recorder datarecording.DataRecorder,
	withLookups bool,
) *Recorder {
	recorder.CreateTable(SummaryTableName, RunSummary{})
	recorder.CreateTable(ViolationTableName, ViolationEntry{})

	if withLookups {
		recorder.CreateTable(LookupTableName, LookupEntry{})
	}

	return &Recorder{
		runID:       runID,
		recorder:    recorder,
		withLookups: withLookups,
	}
}

// RunID returns the ID that tags every row.
func (r *Recorder) RunID() string {
	return r.runID
}

// Func records violations and, if enabled, resolved lookups reported by an
// oracle.
func (r *Recorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosViolation:
		v := ctx.Detail.(*ViolationError)
		r.recorder.InsertData(ViolationTableName, NewViolationEntry(r.runID, v))
	case HookPosLookupResolved:
		if !r.withLookups {
			return
		}

		l := ctx.Item.(PendingLookup)
		if l.Kind == OpIdle {
			return
		}

		r.recorder.InsertData(LookupTableName, LookupEntry{
			RunID:         r.runID,
			IssueCycle:    int64(l.IssueCycle),
			Kind:          l.Kind.String(),
			Key:           int64(l.Key),
			ExpectPresent: l.ExpectPresent,
			ExpectValue:   int64(l.ExpectValue),
			Mutation:      l.Mutation.String(),
		})
	}
}

// Finish records the summary and flushes.
func (r *Recorder) Finish(summary RunSummary) {
	summary.RunID = r.runID
	r.recorder.InsertData(SummaryTableName, summary)
	r.recorder.Flush()
}

// RecordViolation records a violation that was not reported through an
// oracle hook.
func (r *Recorder) RecordViolation(v *ViolationError) {
	r.recorder.InsertData(ViolationTableName, NewViolationEntry(r.runID, v))
}

// RunRecords are the runs stored in one database.
type RunRecords struct {
	Summaries  []RunSummary
	Violations []ViolationEntry
}

// ReadRunRecords loads all run summaries and violations from a recorded
// database, ordered by run.
func ReadRunRecords(
	ctx context.Context,
	reader datarecording.DataReader,
) (RunRecords, error) {
	var records RunRecords

	reader.MapTable(SummaryTableName, RunSummary{})
	reader.MapTable(ViolationTableName, ViolationEntry{})

	rows, _, err := reader.Query(ctx, SummaryTableName,
		datarecording.QueryParams{OrderBy: "RunID"})
	if err != nil {
		return records, fmt.Errorf("reading %s: %w", SummaryTableName, err)
	}

	for _, r := range rows {
		records.Summaries = append(records.Summaries, *r.(*RunSummary))
	}

	rows, _, err = reader.Query(ctx, ViolationTableName,
		datarecording.QueryParams{OrderBy: "RunID, Cycle"})
	if err != nil {
		return records, fmt.Errorf("reading %s: %w", ViolationTableName, err)
	}

	for _, r := range rows {
		records.Violations = append(records.Violations, *r.(*ViolationEntry))
	}

	return records, nil
}

// Print writes the records as two aligned tables.
func (r RunRecords) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw,
		"RUN\tMODE\tSEED\tFAULT\tPASSED\tCYCLES\tCHECKED\tMATCHED\tDELETES")

	for _, s := range r.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\t%d\t%d\t%d\t%d\n",
			s.RunID, s.Mode, s.Seed, faultOrNone(s.Fault), s.Passed,
			s.Cycles, s.LookupsChecked, s.LookupsMatched, s.Deletes)
	}

	if len(r.Violations) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw,
			"RUN\tCYCLE\tISSUED\tKIND\tKEY\tEXPECTED\tGOT")

		for _, v := range r.Violations {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%#08x\t%s\t%s\n",
				v.RunID, v.Cycle, v.IssueCycle, v.Kind, v.Key,
				lookupResult(v.ExpectPresent, v.ExpectValue),
				lookupResult(v.GotValid, v.GotValue))
		}
	}

	return tw.Flush()
}

func faultOrNone(f string) string {
	if f == "" {
		return "none"
	}

	return f
}

func lookupResult(valid bool, value int64) string {
	if !valid {
		return "absent"
	}

	return fmt.Sprintf("%d", value)
}
