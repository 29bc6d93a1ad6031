// Package harness generates operations for the device, predicts its answers
// with a reference model, and checks them once the pipeline latency has
// passed.
package harness

import (
	"math/rand"

	"github.com/sarchlab/kvsverify/config"
	"github.com/sarchlab/kvsverify/device"
	"github.com/sarchlab/kvsverify/recency"
	"github.com/sarchlab/kvsverify/refmodel"
)

// Session is the state of one verification run. Only the cycle loop touches
// it.
type Session struct {
	dev      device.Device
	model    *refmodel.Model
	tracker  *recency.Tracker
	oracle   *Oracle
	stats    Stats
	rng      *rand.Rand
	capacity int
	cycle    uint64
}

// NewSession creates a session that drives dev.
func NewSession(dev device.Device, cfg config.Config) *Session {
	s := &Session{
		dev:      dev,
		model:    refmodel.New(),
		tracker:  recency.NewTracker(cfg.RecencyCapacity),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		capacity: cfg.Capacity,
	}
	s.oracle = NewOracle(cfg.Latency, &s.stats)

	return s
}

// Name returns the name of the session.
func (s *Session) Name() string {
	return "Session"
}

// Device returns the driven device.
func (s *Session) Device() device.Device {
	return s.dev
}

// Model returns the reference model.
func (s *Session) Model() *refmodel.Model {
	return s.model
}

// Tracker returns the recency tracker.
func (s *Session) Tracker() *recency.Tracker {
	return s.tracker
}

// Oracle returns the oracle.
func (s *Session) Oracle() *Oracle {
	return s.oracle
}

// Stats returns a copy of the counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Capacity returns the maximum number of resident keys.
func (s *Session) Capacity() int {
	return s.capacity
}

// Cycle returns the number of cycles begun.
func (s *Session) Cycle() uint64 {
	return s.cycle
}

// beginCycle deasserts every command so that nothing issued in the previous
// cycle is sampled twice.
func (s *Session) beginCycle() {
	device.ClearCommands(s.dev)
	s.cycle++
	s.stats.Cycles++
}

func (s *Session) canInsert() bool {
	return s.model.Len() < s.capacity && !device.InsertBusy(s.dev)
}

func (s *Session) insert(key, value uint32) {
	s.dev.SetInsert(true)
	s.dev.SetInsKey(key)
	s.dev.SetInsValue(value)

	s.model.Insert(key, value)
}

// lookup drives a lookup and registers its expectation. A requested mutation
// is applied to the model right away, while the record keeps the value seen
// before the mutation. Mutations of absent keys are dropped.
func (s *Session) lookup(kind OpKind, key uint32, m Mutation) PendingLookup {
	s.dev.SetLookup(true)
	s.dev.SetKey(key)

	value, present := s.model.Get(key)
	r := PendingLookup{
		Kind:          kind,
		Key:           key,
		ExpectPresent: present,
		ExpectValue:   value,
		IssueCycle:    s.cycle,
	}

	if present {
		switch m {
		case MutationReplace:
			r.Mutation = m
			r.ModValue = s.rng.Uint32()
			s.model.Set(key, r.ModValue)
		case MutationDelete:
			r.Mutation = m
			s.model.Remove(key)
		}
	}

	s.oracle.Issue(r)

	return r
}

func (s *Session) idle() {
	s.oracle.Issue(PendingLookup{Kind: OpIdle, IssueCycle: s.cycle})
	s.stats.Idles++
}

func (s *Session) resolveDue() error {
	return s.oracle.ResolveDue(s.dev, s.cycle)
}
