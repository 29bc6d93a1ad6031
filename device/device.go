// Package device defines the register-level contract between the harness and
// the associative store under test.
//
// Every signal setter only latches a value. Nothing happens inside the device
// until Eval is called, and state only advances when Eval observes a rising
// clock edge.
package device

// BusyInsert is the bit of the busy output that tells the device cannot take
// an insert on the next edge.
const BusyInsert uint8 = 0x1

// Device is a synchronous associative store with a fixed lookup latency.
type Device interface {
	SetClk(v bool)

	SetInsert(v bool)
	SetInsKey(key uint32)
	SetInsValue(value uint32)

	SetLookup(v bool)
	SetKey(key uint32)

	// SetModify together with SetDel or SetModValue acts on the key whose
	// lookup result is currently presented on the outputs.
	SetModify(v bool)
	SetDel(v bool)
	SetModValue(value uint32)

	Busy() uint8
	Valid() bool
	Value() uint32

	// Eval recomputes the outputs from the current inputs and clock level.
	Eval()
}

// InsertBusy tells if the device is currently refusing inserts.
func InsertBusy(d Device) bool {
	return d.Busy()&BusyInsert != 0
}

// ClearCommands deasserts every command input. Data inputs are left alone.
func ClearCommands(d Device) {
	d.SetInsert(false)
	d.SetLookup(false)
	d.SetModify(false)
	d.SetDel(false)
}
