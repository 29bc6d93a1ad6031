package hashmap

import (
	"log"

	"github.com/sarchlab/kvsverify/queueing"
)

// A Builder can build behavioral hashmap devices.
type Builder struct {
	numSlots int
	latency  int
	fault    Fault
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numSlots: 1 << 15,
		latency:  2,
		fault:    FaultNone,
	}
}

// WithNumSlots sets the number of table slots. It must be a power of two.
func (b Builder) WithNumSlots(n int) Builder {
	b.numSlots = n
	return b
}

// WithCapacity sizes the table to the smallest power of two that is at
// least twice the given number of resident keys.
func (b Builder) WithCapacity(capacity int) Builder {
	n := 1
	for n < 2*capacity {
		n <<= 1
	}

	b.numSlots = n

	return b
}

// WithLookupLatency sets the number of rising edges between a lookup being
// sampled and its result appearing on the outputs, counting the sampling
// edge itself.
func (b Builder) WithLookupLatency(n int) Builder {
	b.latency = n
	return b
}

// WithFault builds a defect into the device.
func (b Builder) WithFault(f Fault) Builder {
	b.fault = f
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numSlots <= 0 || b.numSlots&(b.numSlots-1) != 0 {
		log.Panicf("number of slots must be a power of two, got %d",
			b.numSlots)
	}

	if b.latency < 2 {
		log.Panicf("lookup latency must be at least 2, got %d", b.latency)
	}
}

// Build builds a Hashmap.
func (b Builder) Build(name string) *Hashmap {
	b.parametersMustBeValid()

	h := &Hashmap{
		name:     name,
		slots:    make([]slot, b.numSlots),
		mask:     uint32(b.numSlots - 1),
		fault:    b.fault,
		pipeline: queueing.NewPipeline[lookupReq](name+".LookupPipeline", b.latency-1),
	}

	return h
}
