package harness

import (
	"github.com/sarchlab/kvsverify/clock"
)

// Runner clocks the device until the generator is done or a check fails.
type Runner struct {
	driver *clock.Driver
	gen    Generator
}

// NewRunner creates a runner.
func NewRunner(driver *clock.Driver, gen Generator) *Runner {
	return &Runner{
		driver: driver,
		gen:    gen,
	}
}

// Driver returns the clock driver.
func (r *Runner) Driver() *clock.Driver {
	return r.driver
}

// Run performs the warm-up cycle and then runs cycles until the generator
// reports done. A failed check stops the run at the end of its cycle.
func (r *Runner) Run() error {
	r.driver.WarmUp()

	done := false
	step := func() error {
		var err error
		done, err = r.gen.Step()

		return err
	}

	for !done {
		err := r.driver.Cycle(step)
		if err != nil {
			return err
		}
	}

	return nil
}

// Pause stops the run before its next cycle.
func (r *Runner) Pause() {
	r.driver.Pause()
}

// Continue resumes a paused run.
func (r *Runner) Continue() {
	r.driver.Continue()
}

// IsPaused tells if the run is paused.
func (r *Runner) IsPaused() bool {
	return r.driver.IsPaused()
}

// Now returns the trace timestamp of the next sample.
func (r *Runner) Now() uint64 {
	return r.driver.Now()
}

// InspectPaused runs f while no cycle is in progress.
func (r *Runner) InspectPaused(f func()) {
	r.driver.InspectPaused(f)
}
