// Package hashmap provides a behavioral model of the pipelined hashmap
// accelerator. It reproduces the register interface and timing of the RTL so
// the harness can run without a verilated model.
package hashmap

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/sarchlab/kvsverify/device"
	"github.com/sarchlab/kvsverify/queueing"
)

type slot struct {
	key   uint32
	value uint32
	used  bool
}

type lookupReq struct {
	key uint32
}

// Hashmap is an open-addressing table with linear probing. Lookups are
// resolved against the table on the edge they leave the lookup pipeline.
// Inserts are committed on the sampling edge, and the insert port then stays
// busy for as many cycles as the probe sequence was long.
type Hashmap struct {
	name  string
	fault Fault

	clk       bool
	prevClk   bool
	insert    bool
	insKey    uint32
	insValue  uint32
	lookup    bool
	key       uint32
	modify    bool
	del       bool
	modValue  uint32
	busy      uint8
	valid     bool
	value     uint32
	numEdges  uint64
	numInsert uint64

	slots       []slot
	mask        uint32
	numResident int
	busyCycles  int

	pipeline *queueing.Pipeline[lookupReq]
	outKey   uint32
	outHit   bool
}

var _ device.Device = (*Hashmap)(nil)

// Name returns the name of the device.
func (h *Hashmap) Name() string {
	return h.name
}

// SetClk drives the clock input.
func (h *Hashmap) SetClk(v bool) { h.clk = v }

// SetInsert drives the insert command.
func (h *Hashmap) SetInsert(v bool) { h.insert = v }

// SetInsKey drives the key to insert.
func (h *Hashmap) SetInsKey(key uint32) { h.insKey = key }

// SetInsValue drives the value to insert.
func (h *Hashmap) SetInsValue(value uint32) { h.insValue = value }

// SetLookup drives the lookup command.
func (h *Hashmap) SetLookup(v bool) { h.lookup = v }

// SetKey drives the key to look up.
func (h *Hashmap) SetKey(key uint32) { h.key = key }

// SetModify drives the modify command.
func (h *Hashmap) SetModify(v bool) { h.modify = v }

// SetDel selects delete instead of replace for the modify command.
func (h *Hashmap) SetDel(v bool) { h.del = v }

// SetModValue drives the replacement value.
func (h *Hashmap) SetModValue(value uint32) { h.modValue = value }

// Busy returns the busy output.
func (h *Hashmap) Busy() uint8 { return h.busy }

// Valid returns true if the lookup presented on the outputs hit.
func (h *Hashmap) Valid() bool { return h.valid }

// Value returns the value of the lookup presented on the outputs.
func (h *Hashmap) Value() uint32 { return h.value }

// Fault returns the defect built into the device.
func (h *Hashmap) Fault() Fault {
	return h.fault
}

// Len returns the number of keys stored in the table.
func (h *Hashmap) Len() int {
	return h.numResident
}

// NumEdges returns the number of rising edges seen.
func (h *Hashmap) NumEdges() uint64 {
	return h.numEdges
}

// Peek reads the table directly, bypassing the lookup pipeline.
func (h *Hashmap) Peek(key uint32) (uint32, bool) {
	i, ok := h.index(key)
	if !ok {
		return 0, false
	}

	return h.slots[i].value, true
}

// Eval advances the device if the clock rose since the last evaluation.
func (h *Hashmap) Eval() {
	if h.clk && !h.prevClk {
		h.risingEdge()
	}

	h.prevClk = h.clk
}

func (h *Hashmap) risingEdge() {
	h.numEdges++

	target, targetHit := h.outKey, h.outHit

	if h.fault == FaultLookupBeforeModify {
		h.advanceLookup()
		h.applyModify(target, targetHit)
	} else {
		h.applyModify(target, targetHit)
		h.advanceLookup()
	}

	h.sampleLookup()
	h.sampleInsert()
}

func (h *Hashmap) applyModify(target uint32, hit bool) {
	if !h.modify || !hit {
		return
	}

	if h.del {
		if h.fault == FaultDropDelete {
			return
		}

		h.remove(target)

		return
	}

	if h.fault == FaultDropModify {
		return
	}

	i, ok := h.index(target)
	if ok {
		h.slots[i].value = h.modValue
	}
}

func (h *Hashmap) advanceLookup() {
	req, ok := h.pipeline.Tick()
	if !ok {
		h.present(0, false, false)
		return
	}

	h.resolve(req)
}

func (h *Hashmap) resolve(req lookupReq) {
	v, found := h.Peek(req.key)
	h.outKey = req.key
	h.present(v, found, found)
}

func (h *Hashmap) present(value uint32, valid, hit bool) {
	h.valid = valid
	h.outHit = hit

	if valid {
		h.value = value
	} else {
		h.value = 0
	}
}

func (h *Hashmap) sampleLookup() {
	if !h.lookup {
		return
	}

	req := lookupReq{key: h.key}

	if h.fault == FaultShortLatency {
		h.resolve(req)
		return
	}

	h.pipeline.Accept(req)
}

func (h *Hashmap) sampleInsert() {
	if h.busyCycles > 0 {
		h.busyCycles--
	} else if h.insert {
		h.busyCycles = h.put(h.insKey, h.insValue)
		h.numInsert++
	}

	if h.busyCycles > 0 {
		h.busy |= device.BusyInsert
	} else {
		h.busy &^= device.BusyInsert
	}
}

func (h *Hashmap) home(key uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)

	return uint32(xxhash.Sum64(buf[:])) & h.mask
}

func (h *Hashmap) index(key uint32) (int, bool) {
	i := h.home(key)

	for n := 0; n < len(h.slots); n++ {
		s := &h.slots[i]
		if !s.used {
			return 0, false
		}

		if s.key == key {
			return int(i), true
		}

		i = (i + 1) & h.mask
	}

	return 0, false
}

// put stores the pair and returns the probe distance from the home slot. An
// insert into a full table is dropped.
func (h *Hashmap) put(key, value uint32) int {
	i := h.home(key)

	for n := 0; n < len(h.slots); n++ {
		s := &h.slots[i]

		if s.used && s.key == key {
			s.value = value
			return n
		}

		if !s.used {
			*s = slot{key: key, value: value, used: true}
			h.numResident++

			return n
		}

		i = (i + 1) & h.mask
	}

	return 0
}

// remove deletes the key and shifts the rest of its probe run backwards so
// that no tombstones are needed.
func (h *Hashmap) remove(key uint32) {
	idx, ok := h.index(key)
	if !ok {
		return
	}

	hole := uint32(idx)
	h.slots[hole] = slot{}
	h.numResident--

	j := hole
	for {
		j = (j + 1) & h.mask
		if !h.slots[j].used {
			return
		}

		k := h.home(h.slots[j].key)
		if cyclicallyBetween(k, hole, j) {
			continue
		}

		h.slots[hole] = h.slots[j]
		h.slots[j] = slot{}
		hole = j
	}
}

// cyclicallyBetween tells if k lies in the ring interval (lo, hi].
func cyclicallyBetween(k, lo, hi uint32) bool {
	if lo <= hi {
		return lo < k && k <= hi
	}

	return k > lo || k <= hi
}
