package harness

import (
	"fmt"

	"github.com/sarchlab/kvsverify/device"
	"github.com/sarchlab/kvsverify/hooking"
	"github.com/sarchlab/kvsverify/queueing"
)

// HookPosLookupIssued is triggered when a record enters the oracle.
var HookPosLookupIssued = &hooking.HookPos{Name: "Lookup Issued"}

// HookPosLookupResolved is triggered when a record passes validation. The
// hook detail is the Observation.
var HookPosLookupResolved = &hooking.HookPos{Name: "Lookup Resolved"}

// HookPosViolation is triggered when the device disagrees with a record. The
// hook detail is the *ViolationError.
var HookPosViolation = &hooking.HookPos{Name: "Violation"}

// Mutation is the side effect a present lookup asks the device to apply once
// its result is out.
type Mutation int

// Mutations.
const (
	MutationNone Mutation = iota
	MutationReplace
	MutationDelete
)

func (m Mutation) String() string {
	switch m {
	case MutationNone:
		return "none"
	case MutationReplace:
		return "replace"
	case MutationDelete:
		return "delete"
	default:
		return fmt.Sprintf("Mutation(%d)", int(m))
	}
}

// PendingLookup is what the device is expected to answer for one issued
// operation. Idle operations produce records too so that every record
// resolves exactly latency cycles after it was issued.
type PendingLookup struct {
	Kind          OpKind
	Key           uint32
	ExpectPresent bool
	ExpectValue   uint32
	Mutation      Mutation
	ModValue      uint32
	IssueCycle    uint64
}

// Observation is what the device presented when a record resolved.
type Observation struct {
	Valid bool
	Value uint32
}

// ViolationError reports a device output that disagrees with the reference
// model.
type ViolationError struct {
	Record       PendingLookup
	Observed     Observation
	ResolveCycle uint64
}

func (e *ViolationError) Error() string {
	r := e.Record

	if r.ExpectPresent && e.Observed.Valid {
		return fmt.Sprintf(
			"cycle %d: %s of key %#08x issued at cycle %d "+
				"returned value %d, expected %d",
			e.ResolveCycle, r.Kind, r.Key, r.IssueCycle,
			e.Observed.Value, r.ExpectValue)
	}

	return fmt.Sprintf(
		"cycle %d: %s of key %#08x issued at cycle %d "+
			"returned valid=%t, expected valid=%t",
		e.ResolveCycle, r.Kind, r.Key, r.IssueCycle,
		e.Observed.Valid, r.ExpectPresent)
}

// Oracle holds the records of lookups still travelling through the device
// pipeline and checks them in issue order.
type Oracle struct {
	hooking.HookableBase

	queue *queueing.Buffer[PendingLookup]
	stats *Stats
}

// NewOracle creates an oracle for a device with the given lookup latency.
// Counters are written into stats.
func NewOracle(latency int, stats *Stats) *Oracle {
	return &Oracle{
		queue: queueing.NewBuffer[PendingLookup]("Oracle.Pending", latency),
		stats: stats,
	}
}

// Name returns the name of the oracle.
func (o *Oracle) Name() string {
	return "Oracle"
}

// Latency returns the number of cycles a record waits before it resolves.
func (o *Oracle) Latency() int {
	return o.queue.Capacity()
}

// Queue exposes the pending records for inspection.
func (o *Oracle) Queue() *queueing.Buffer[PendingLookup] {
	return o.queue
}

// Outstanding returns the number of records waiting.
func (o *Oracle) Outstanding() int {
	return o.queue.Size()
}

// Issue registers a record. The due record, if any, must have been resolved
// first.
func (o *Oracle) Issue(r PendingLookup) {
	o.queue.Push(r)

	o.InvokeHook(hooking.HookCtx{
		Domain: o,
		Pos:    HookPosLookupIssued,
		Item:   r,
	})
}

// HasPendingDelete tells if a delete of the key is waiting to be sent to the
// device.
func (o *Oracle) HasPendingDelete(key uint32) bool {
	for i := 0; i < o.queue.Size(); i++ {
		r := o.queue.At(i)
		if r.Key == key && r.Mutation == MutationDelete {
			return true
		}
	}

	return false
}

// ResolveDue validates the oldest record against the device outputs if it
// has been waiting for the full latency. On success, the deferred mutation
// of the record is driven onto the device.
func (o *Oracle) ResolveDue(dev device.Device, now uint64) error {
	if o.queue.CanPush() {
		return nil
	}

	r, _ := o.queue.Pop()

	if r.Kind == OpIdle {
		o.InvokeHook(hooking.HookCtx{
			Domain: o,
			Pos:    HookPosLookupResolved,
			Item:   r,
		})

		return nil
	}

	obs := Observation{Valid: dev.Valid(), Value: dev.Value()}
	o.stats.LookupsChecked++

	if obs.Valid != r.ExpectPresent ||
		(r.ExpectPresent && obs.Value != r.ExpectValue) {
		err := &ViolationError{Record: r, Observed: obs, ResolveCycle: now}

		o.InvokeHook(hooking.HookCtx{
			Domain: o,
			Pos:    HookPosViolation,
			Item:   r,
			Detail: err,
		})

		return err
	}

	if r.ExpectPresent {
		o.stats.LookupsMatched++
	} else {
		o.stats.LookupsAbsent++
	}

	o.driveMutation(dev, r)

	o.InvokeHook(hooking.HookCtx{
		Domain: o,
		Pos:    HookPosLookupResolved,
		Item:   r,
		Detail: obs,
	})

	return nil
}

func (o *Oracle) driveMutation(dev device.Device, r PendingLookup) {
	switch r.Mutation {
	case MutationNone:
		return
	case MutationReplace:
		dev.SetModify(true)
		dev.SetModValue(r.ModValue)
	case MutationDelete:
		dev.SetModify(true)
		dev.SetDel(true)
		o.stats.Deletes++
	}

	o.stats.Modifications++
}
