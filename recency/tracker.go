// Package recency remembers recently accessed keys so that the generator can
// come back to them while they may still be in flight.
package recency

import (
	"log"
	"math/rand"

	"github.com/sarchlab/kvsverify/queueing"
)

// DefaultCapacity is the number of keys remembered unless told otherwise.
const DefaultCapacity = 100

// Tracker is a bounded FIFO of keys. Pushing into a full tracker evicts the
// oldest key.
type Tracker struct {
	buf *queueing.Buffer[uint32]
}

// NewTracker creates a tracker that remembers at most capacity keys.
func NewTracker(capacity int) *Tracker {
	return &Tracker{
		buf: queueing.NewBuffer[uint32]("RecencyTracker", capacity),
	}
}

// Buffer exposes the underlying queue so observers can hook on it.
func (t *Tracker) Buffer() *queueing.Buffer[uint32] {
	return t.buf
}

// Push remembers a key.
func (t *Tracker) Push(key uint32) {
	if !t.buf.CanPush() {
		t.buf.Pop()
	}

	t.buf.Push(key)
}

// Choose returns a uniformly chosen remembered key. The tracker must not be
// empty.
func (t *Tracker) Choose(rng *rand.Rand) uint32 {
	if t.buf.Size() == 0 {
		log.Panic("cannot choose from an empty recency tracker")
	}

	return t.buf.At(rng.Intn(t.buf.Size()))
}

// Len returns the number of keys remembered.
func (t *Tracker) Len() int {
	return t.buf.Size()
}

// Capacity returns the maximum number of keys remembered.
func (t *Tracker) Capacity() int {
	return t.buf.Capacity()
}

// Keys returns the remembered keys, oldest first.
func (t *Tracker) Keys() []uint32 {
	keys := make([]uint32, t.buf.Size())
	for i := range keys {
		keys[i] = t.buf.At(i)
	}

	return keys
}
