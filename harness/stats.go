package harness

import (
	"fmt"
	"io"
)

// Stats counts what a run has done. The counters only ever grow.
type Stats struct {
	FillInserts    uint64
	LookupsChecked uint64
	LookupsMatched uint64
	LookupsAbsent  uint64
	Modifications  uint64
	Deletes        uint64
	Idles          uint64
	Recents        uint64
	Inserts        uint64
	Cycles         uint64
}

// Report prints the counters as "Num ...: N" lines.
func (s Stats) Report(w io.Writer) {
	fmt.Fprintf(w, "Num lookups checked: %d\n", s.LookupsChecked)
	fmt.Fprintf(w, "Num lookups matched: %d\n", s.LookupsMatched)
	fmt.Fprintf(w, "Num modifications: %d\n", s.Modifications)
	fmt.Fprintf(w, "Num deletes: %d\n", s.Deletes)
	fmt.Fprintf(w, "Num idles: %d\n", s.Idles)
	fmt.Fprintf(w, "Num recents: %d\n", s.Recents)
	fmt.Fprintf(w, "Num inserts: %d\n", s.Inserts)
	fmt.Fprintf(w, "Num fill inserts: %d\n", s.FillInserts)
	fmt.Fprintf(w, "Num absent lookups: %d\n", s.LookupsAbsent)
	fmt.Fprintf(w, "Num cycles: %d\n", s.Cycles)
}
