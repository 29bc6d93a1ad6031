package hashmap

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kvsverify/device"
)

var _ = Describe("Hashmap", func() {
	var h *Hashmap

	insert := func(key, value uint32) {
		idle(h)
		h.SetInsert(true)
		h.SetInsKey(key)
		h.SetInsValue(value)
		cycle(h)
		idle(h)

		for device.InsertBusy(h) {
			cycle(h)
		}
	}

	BeforeEach(func() {
		h = MakeBuilder().WithNumSlots(16).Build("Hashmap")
	})

	It("should only act on rising edges", func() {
		h.SetInsert(true)
		h.SetInsKey(1)
		h.SetInsValue(10)

		h.SetClk(true)
		h.Eval()
		h.Eval()
		h.SetClk(false)
		h.Eval()

		Expect(h.NumEdges()).To(Equal(uint64(1)))
		Expect(h.Len()).To(Equal(1))
	})

	It("should present a lookup result two edges after issue", func() {
		insert(1, 10)

		h.SetLookup(true)
		h.SetKey(1)
		cycle(h) // sampled
		idle(h)
		Expect(h.Valid()).To(BeFalse())

		cycle(h) // resolved
		Expect(h.Valid()).To(BeTrue())
		Expect(h.Value()).To(Equal(uint32(10)))

		cycle(h)
		Expect(h.Valid()).To(BeFalse())
	})

	It("should report misses as not valid", func() {
		insert(1, 10)

		h.SetLookup(true)
		h.SetKey(2)
		cycle(h)
		idle(h)
		cycle(h)

		Expect(h.Valid()).To(BeFalse())
		Expect(h.Value()).To(Equal(uint32(0)))
	})

	It("should pipeline back to back lookups", func() {
		insert(1, 10)
		insert(2, 20)

		h.SetLookup(true)
		h.SetKey(1)
		cycle(h)
		h.SetKey(2)
		cycle(h)
		Expect(h.Valid()).To(BeTrue())
		Expect(h.Value()).To(Equal(uint32(10)))

		idle(h)
		cycle(h)
		Expect(h.Valid()).To(BeTrue())
		Expect(h.Value()).To(Equal(uint32(20)))
	})

	It("should replace the value of the resolved key", func() {
		insert(1, 10)

		h.SetLookup(true)
		h.SetKey(1)
		cycle(h)
		idle(h)
		cycle(h)
		Expect(h.Valid()).To(BeTrue())

		h.SetModify(true)
		h.SetModValue(11)
		cycle(h)
		idle(h)

		v, ok := h.Peek(1)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint32(11)))
	})

	It("should delete the resolved key", func() {
		insert(1, 10)

		h.SetLookup(true)
		h.SetKey(1)
		cycle(h)
		idle(h)
		cycle(h)

		h.SetModify(true)
		h.SetDel(true)
		cycle(h)
		idle(h)

		_, ok := h.Peek(1)
		Expect(ok).To(BeFalse())
		Expect(h.Len()).To(Equal(0))
	})

	It("should apply a modification before resolving a lookup on the same edge", func() {
		insert(1, 10)

		h.SetLookup(true)
		h.SetKey(1)
		cycle(h) // first lookup sampled
		cycle(h) // first resolved, second sampled
		idle(h)

		h.SetModify(true)
		h.SetDel(true)
		cycle(h) // delete applied, second resolved
		idle(h)

		Expect(h.Valid()).To(BeFalse())
	})

	It("should not modify after a miss", func() {
		insert(1, 10)

		h.SetLookup(true)
		h.SetKey(2)
		cycle(h)
		idle(h)
		cycle(h)

		h.SetModify(true)
		h.SetDel(true)
		cycle(h)

		Expect(h.Len()).To(Equal(1))
	})

	It("should keep every key reachable after deletions", func() {
		for k := uint32(0); k < 12; k++ {
			h.put(k, k*10)
		}

		for k := uint32(0); k < 12; k += 3 {
			h.remove(k)
		}

		for k := uint32(0); k < 12; k++ {
			v, ok := h.Peek(k)
			if k%3 == 0 {
				Expect(ok).To(BeFalse())
				continue
			}

			Expect(ok).To(BeTrue(), "key %d", k)
			Expect(v).To(Equal(k * 10))
		}

		Expect(h.Len()).To(Equal(8))
	})

	It("should stay busy for the probe distance of an insert", func() {
		h = MakeBuilder().WithNumSlots(4).Build("Hashmap")
		h.put(0, 0)
		h.put(1, 0)
		h.put(2, 0)

		h.SetInsert(true)
		h.SetInsKey(3)
		cycle(h)
		idle(h)

		idx, ok := h.index(3)
		Expect(ok).To(BeTrue())
		distance := int((uint32(idx) - h.home(3)) & h.mask)

		busyCycles := 0
		for device.InsertBusy(h) {
			busyCycles++
			cycle(h)
		}

		Expect(busyCycles).To(Equal(distance))
	})

	It("should ignore inserts while busy", func() {
		h.busyCycles = 2
		h.busy = device.BusyInsert

		h.SetInsert(true)
		h.SetInsKey(4)
		cycle(h)

		_, ok := h.Peek(4)
		Expect(ok).To(BeFalse())
		Expect(device.InsertBusy(h)).To(BeTrue())

		cycle(h)
		Expect(device.InsertBusy(h)).To(BeFalse())
		_, ok = h.Peek(4)
		Expect(ok).To(BeFalse())

		cycle(h)
		_, ok = h.Peek(4)
		Expect(ok).To(BeTrue())
	})

	It("should size the table from the capacity", func() {
		b := MakeBuilder().WithCapacity(15000)

		Expect(b.numSlots).To(Equal(1 << 15))
	})

	It("should reject a table size that is not a power of two", func() {
		Expect(func() { MakeBuilder().WithNumSlots(12).Build("H") }).To(Panic())
	})

	It("should expose its ports to tracers", func() {
		var names []string
		h.TraceSignals(func(name string, width int, value uint64) {
			names = append(names, name)
		})

		Expect(names).To(Equal([]string{
			"clk", "insert", "ins_key", "ins_value", "lookup", "key",
			"modify", "del", "mod_value", "busy", "valid", "value",
		}))
	})
})

var _ = Describe("Fault", func() {
	It("should round trip names", func() {
		for _, name := range FaultNames() {
			f, err := ParseFault(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.String()).To(Equal(name))
		}
	})

	It("should treat empty as none", func() {
		f, err := ParseFault("")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(FaultNone))
	})

	It("should reject unknown names", func() {
		_, err := ParseFault("melted")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("cyclicallyBetween", func() {
	It("should handle plain ranges", func() {
		Expect(cyclicallyBetween(3, 2, 5)).To(BeTrue())
		Expect(cyclicallyBetween(2, 2, 5)).To(BeFalse())
		Expect(cyclicallyBetween(5, 2, 5)).To(BeTrue())
	})

	It("should handle wrapped ranges", func() {
		Expect(cyclicallyBetween(7, 6, 1)).To(BeTrue())
		Expect(cyclicallyBetween(0, 6, 1)).To(BeTrue())
		Expect(cyclicallyBetween(3, 6, 1)).To(BeFalse())
	})
})
