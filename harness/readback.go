package harness

import "github.com/sarchlab/kvsverify/device"

// Readback inserts keys i*i with values i for i < n, then looks every key up
// in insertion order, one per cycle, and checks the values as they come out.
type Readback struct {
	dev     device.Device
	n       int
	latency int
	state   int
	cycle   uint64
	stats   Stats
}

var _ Generator = (*Readback)(nil)

// NewReadback creates a readback generator over n keys.
func NewReadback(dev device.Device, n, latency int) *Readback {
	return &Readback{
		dev:     dev,
		n:       n,
		latency: latency,
	}
}

// Name returns the name of the generator.
func (r *Readback) Name() string {
	return "Readback"
}

// Stats returns a copy of the counters.
func (r *Readback) Stats() Stats {
	return r.stats
}

func readbackKey(i int) uint32 {
	return uint32(i * i)
}

// Step drives one cycle.
func (r *Readback) Step() (bool, error) {
	r.cycle++
	r.stats.Cycles++

	if r.state < r.n {
		r.dev.SetLookup(false)
		r.dev.SetInsert(false)

		if !device.InsertBusy(r.dev) {
			r.dev.SetInsert(true)
			r.dev.SetInsKey(readbackKey(r.state))
			r.dev.SetInsValue(uint32(r.state))
			r.stats.FillInserts++
			r.state++
		}

		return false, nil
	}

	r.dev.SetInsert(false)
	r.dev.SetKey(readbackKey(r.state - r.n))
	r.dev.SetLookup(true)

	if r.state >= r.n+r.latency {
		err := r.check(r.state - r.latency - r.n)
		if err != nil {
			return true, err
		}
	}

	r.state++

	return r.state == 2*r.n+r.latency, nil
}

func (r *Readback) check(i int) error {
	r.stats.LookupsChecked++

	obs := Observation{Valid: r.dev.Valid(), Value: r.dev.Value()}
	if obs.Valid && obs.Value == uint32(i) {
		r.stats.LookupsMatched++
		return nil
	}

	return &ViolationError{
		Record: PendingLookup{
			Kind:          OpLookupPresent,
			Key:           readbackKey(i),
			ExpectPresent: true,
			ExpectValue:   uint32(i),
			IssueCycle:    r.cycle - uint64(r.latency),
		},
		Observed:     obs,
		ResolveCycle: r.cycle,
	}
}
