package harness

import (
	"fmt"
	"log"

	"github.com/sarchlab/kvsverify/clock"
	"github.com/sarchlab/kvsverify/config"
	"github.com/sarchlab/kvsverify/hooking"
)

// OpKind is the class of operation drawn for a steady-phase cycle.
type OpKind int

// Operation kinds.
const (
	OpIdle OpKind = iota
	OpLookupPresent
	OpLookupPresentReplace
	OpLookupPresentDelete
	OpLookupRandom
	OpLookupRecent
)

var opKindNames = map[OpKind]string{
	OpIdle:                 "idle",
	OpLookupPresent:        "lookup-present",
	OpLookupPresentReplace: "lookup-present-replace",
	OpLookupPresentDelete:  "lookup-present-delete",
	OpLookupRandom:         "lookup-random",
	OpLookupRecent:         "lookup-recent",
}

func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("OpKind(%d)", int(k))
}

func (k OpKind) mutation() Mutation {
	switch k {
	case OpLookupPresentReplace:
		return MutationReplace
	case OpLookupPresentDelete:
		return MutationDelete
	default:
		return MutationNone
	}
}

// Phase is the stage of a randomized run.
type Phase int

// Phases.
const (
	PhaseFill Phase = iota
	PhaseSteady
)

func (p Phase) String() string {
	if p == PhaseFill {
		return "fill"
	}

	return "steady"
}

// Generator drives the device inputs for one cycle. It reports done after the
// last cycle of work.
type Generator interface {
	Step() (done bool, err error)
}

// Scheduler fills the device to capacity and then issues a random mix of
// lookups, mutations, and inserts for a fixed number of cycles.
type Scheduler struct {
	s          *Session
	phase      Phase
	numOps     int
	budget     int
	insertRate float64
	guard      bool

	drawKey func() uint32
}

var _ Generator = (*Scheduler)(nil)

// NewScheduler creates a scheduler that works on s.
func NewScheduler(s *Session, cfg config.Config) *Scheduler {
	sc := &Scheduler{
		s:          s,
		budget:     cfg.SteadyOps,
		insertRate: cfg.InsertRate,
		guard:      cfg.GuardInFlightDeletes,
	}
	sc.drawKey = func() uint32 { return s.model.FreshKey(s.rng) }

	return sc
}

// Session returns the session being driven.
func (sc *Scheduler) Session() *Session {
	return sc.s
}

// Phase returns the current phase.
func (sc *Scheduler) Phase() Phase {
	return sc.phase
}

// NumSteadyOps returns the number of steady-phase cycles run.
func (sc *Scheduler) NumSteadyOps() int {
	return sc.numOps
}

// Budget returns the number of steady-phase cycles to run.
func (sc *Scheduler) Budget() int {
	return sc.budget
}

// Step drives one cycle.
func (sc *Scheduler) Step() (bool, error) {
	sc.s.beginCycle()

	if sc.phase == PhaseFill {
		sc.fill()
		return false, nil
	}

	return sc.steady()
}

func (sc *Scheduler) fill() {
	s := sc.s

	if s.canInsert() {
		s.insert(s.model.FreshKey(s.rng), s.rng.Uint32())
		s.stats.FillInserts++
	}

	if s.model.Len() >= s.capacity {
		sc.phase = PhaseSteady
		log.Println("Finished pre-fill")
	}
}

func (sc *Scheduler) steady() (bool, error) {
	s := sc.s

	if sc.numOps >= sc.budget {
		return true, nil
	}

	err := s.resolveDue()
	if err != nil {
		return true, err
	}

	sc.drive(sc.chooseOp())

	if s.rng.Float64() < sc.insertRate && s.canInsert() {
		key := sc.chooseOpportunisticKey()
		s.insert(key, s.rng.Uint32())
		s.tracker.Push(key)
		s.stats.Inserts++
	}

	sc.numOps++

	return sc.numOps >= sc.budget, nil
}

// eligibleOps lists the kinds that can be drawn in the current state.
func (sc *Scheduler) eligibleOps() []OpKind {
	ops := make([]OpKind, 0, 6)
	ops = append(ops, OpIdle)

	if sc.s.model.Len() > 0 {
		ops = append(ops,
			OpLookupPresent, OpLookupPresentReplace, OpLookupPresentDelete)
	}

	ops = append(ops, OpLookupRandom)

	if sc.s.tracker.Len() > 0 {
		ops = append(ops, OpLookupRecent)
	}

	return ops
}

func (sc *Scheduler) chooseOp() OpKind {
	ops := sc.eligibleOps()
	return ops[sc.s.rng.Intn(len(ops))]
}

func (sc *Scheduler) drive(op OpKind) {
	s := sc.s

	switch op {
	case OpIdle:
		s.idle()
	case OpLookupPresent, OpLookupPresentReplace, OpLookupPresentDelete:
		key, _ := s.model.PickRandom(s.rng)
		s.lookup(op, key, op.mutation())
		s.tracker.Push(key)
	case OpLookupRandom:
		s.lookup(op, s.rng.Uint32(), MutationNone)
	case OpLookupRecent:
		s.lookup(op, s.tracker.Choose(s.rng), MutationNone)
		s.stats.Recents++
	default:
		log.Panicf("unknown operation %s", op)
	}
}

// chooseOpportunisticKey picks the key of a steady-phase insert. The key is
// fresh to the model, but it may still be resident in the device if its
// delete has not been sent yet. The model and the device then disagree once
// the delete lands. Guarding skips such keys.
func (sc *Scheduler) chooseOpportunisticKey() uint32 {
	for {
		key := sc.drawKey()
		if !sc.guard || !sc.s.oracle.HasPendingDelete(key) {
			return key
		}
	}
}

// A ProgressTracker is told how much work has finished.
type ProgressTracker interface {
	IncrementFinished(amount uint64)
}

type progressHook struct {
	sc                   *Scheduler
	fill, steady         ProgressTracker
	lastFill, lastSteady uint64
}

// ProgressHook returns a hook for the clock driver that reports fill inserts
// and steady cycles to the given trackers.
func (sc *Scheduler) ProgressHook(fill, steady ProgressTracker) hooking.Hook {
	return &progressHook{sc: sc, fill: fill, steady: steady}
}

func (h *progressHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != clock.HookPosAfterCycle {
		return
	}

	filled := h.sc.s.stats.FillInserts
	if filled > h.lastFill {
		h.fill.IncrementFinished(filled - h.lastFill)
		h.lastFill = filled
	}

	ops := uint64(h.sc.numOps)
	if ops > h.lastSteady {
		h.steady.IncrementFinished(ops - h.lastSteady)
		h.lastSteady = ops
	}
}
