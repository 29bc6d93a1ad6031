// Package clock toggles the device clock and captures a trace sample at
// every phase.
package clock

import (
	"fmt"
	"sync"

	"github.com/sarchlab/kvsverify/device"
	"github.com/sarchlab/kvsverify/hooking"
	"github.com/sarchlab/kvsverify/tracing"
)

// HookPosBeforeCycle is triggered before the clock goes low.
var HookPosBeforeCycle = &hooking.HookPos{Name: "Before Cycle"}

// HookPosAfterCycle is triggered after the cycle has been flushed to the
// trace.
var HookPosAfterCycle = &hooking.HookPos{Name: "After Cycle"}

// StepFunc drives the device inputs right after a rising edge.
type StepFunc func() error

// A Driver advances the device one full clock period at a time. It owns the
// trace timestamp.
type Driver struct {
	hooking.HookableBase

	dev    device.Device
	tracer tracing.Tracer

	time      uint64
	numCycle  uint64
	timeLock  sync.RWMutex
	pauseLock sync.Mutex

	isPaused     bool
	isPausedLock sync.Mutex
}

// NewDriver creates a driver. A nil tracer disables tracing.
func NewDriver(dev device.Device, tracer tracing.Tracer) *Driver {
	if tracer == nil {
		tracer = tracing.NopTracer{}
	}

	return &Driver{
		dev:    dev,
		tracer: tracer,
	}
}

// Device returns the driven device.
func (d *Driver) Device() device.Device {
	return d.dev
}

// Now returns the trace timestamp of the next sample.
func (d *Driver) Now() uint64 {
	d.timeLock.RLock()
	defer d.timeLock.RUnlock()

	return d.time
}

// NumCycle returns the number of full cycles completed.
func (d *Driver) NumCycle() uint64 {
	d.timeLock.RLock()
	defer d.timeLock.RUnlock()

	return d.numCycle
}

func (d *Driver) capture() {
	d.timeLock.Lock()
	t := d.time
	d.time++
	d.timeLock.Unlock()

	d.tracer.Dump(t)
}

// WarmUp raises the clock once so that the device leaves reset with the
// clock high.
func (d *Driver) WarmUp() {
	d.pauseLock.Lock()
	defer d.pauseLock.Unlock()

	d.dev.SetClk(true)
	d.dev.Eval()
	d.capture()
}

// Cycle runs one clock period. The step runs after the rising edge and the
// device is evaluated again so the new inputs settle before the sample.
func (d *Driver) Cycle(step StepFunc) error {
	d.pauseLock.Lock()
	defer d.pauseLock.Unlock()

	ctx := hooking.HookCtx{
		Domain: d,
		Pos:    HookPosBeforeCycle,
		Item:   d.NumCycle(),
	}
	d.InvokeHook(ctx)

	d.dev.SetClk(false)
	d.dev.Eval()
	d.capture()

	d.dev.SetClk(true)
	d.dev.Eval()

	stepErr := step()

	d.dev.Eval()
	d.capture()

	if err := d.tracer.Flush(); err != nil {
		return fmt.Errorf("flushing trace: %w", err)
	}

	d.timeLock.Lock()
	d.numCycle++
	d.timeLock.Unlock()

	ctx.Pos = HookPosAfterCycle
	d.InvokeHook(ctx)

	return stepErr
}

// Pause blocks the driver before its next cycle.
func (d *Driver) Pause() {
	d.isPausedLock.Lock()
	defer d.isPausedLock.Unlock()

	if d.isPaused {
		return
	}

	d.pauseLock.Lock()
	d.isPaused = true
}

// Continue lets a paused driver run again.
func (d *Driver) Continue() {
	d.isPausedLock.Lock()
	defer d.isPausedLock.Unlock()

	if !d.isPaused {
		return
	}

	d.pauseLock.Unlock()
	d.isPaused = false
}

// IsPaused tells if the driver is paused.
func (d *Driver) IsPaused() bool {
	d.isPausedLock.Lock()
	defer d.isPausedLock.Unlock()

	return d.isPaused
}

// InspectPaused runs f while no cycle is in progress.
func (d *Driver) InspectPaused(f func()) {
	d.isPausedLock.Lock()
	paused := d.isPaused
	d.isPausedLock.Unlock()

	if !paused {
		d.pauseLock.Lock()
		defer d.pauseLock.Unlock()
	}

	f()
}
