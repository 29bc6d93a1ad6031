package hashmap

import "github.com/sarchlab/kvsverify/tracing"

var _ tracing.Traceable = (*Hashmap)(nil)

func bit(v bool) uint64 {
	if v {
		return 1
	}

	return 0
}

// TraceSignals exposes the top-level ports of the device.
func (h *Hashmap) TraceSignals(visit tracing.SignalVisitor) {
	visit("clk", 1, bit(h.clk))
	visit("insert", 1, bit(h.insert))
	visit("ins_key", 32, uint64(h.insKey))
	visit("ins_value", 32, uint64(h.insValue))
	visit("lookup", 1, bit(h.lookup))
	visit("key", 32, uint64(h.key))
	visit("modify", 1, bit(h.modify))
	visit("del", 1, bit(h.del))
	visit("mod_value", 32, uint64(h.modValue))
	visit("busy", 8, uint64(h.busy))
	visit("valid", 1, bit(h.valid))
	visit("value", 32, uint64(h.value))
}
