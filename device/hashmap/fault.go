package hashmap

import (
	"fmt"
	"strings"
)

// Fault selects a defect to build into the device.
type Fault int

// Supported faults.
const (
	FaultNone Fault = iota

	// FaultDropDelete ignores delete commands.
	FaultDropDelete

	// FaultDropModify ignores replace-value commands.
	FaultDropModify

	// FaultLookupBeforeModify resolves a lookup before applying the
	// modification sampled on the same edge.
	FaultLookupBeforeModify

	// FaultShortLatency presents lookup results one cycle early.
	FaultShortLatency
)

var faultNames = map[Fault]string{
	FaultNone:               "none",
	FaultDropDelete:         "drop-delete",
	FaultDropModify:         "drop-modify",
	FaultLookupBeforeModify: "lookup-before-modify",
	FaultShortLatency:       "short-latency",
}

func (f Fault) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}

	return fmt.Sprintf("Fault(%d)", int(f))
}

// ParseFault converts a fault name into a Fault.
func ParseFault(name string) (Fault, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FaultNone, nil
	}

	for f, n := range faultNames {
		if n == name {
			return f, nil
		}
	}

	return FaultNone, fmt.Errorf("unknown device fault %q", name)
}

// FaultNames lists the names accepted by ParseFault.
func FaultNames() []string {
	return []string{
		FaultNone.String(),
		FaultDropDelete.String(),
		FaultDropModify.String(),
		FaultLookupBeforeModify.String(),
		FaultShortLatency.String(),
	}
}
