// Package simulation puts the device, the tracer, the recorders, and the
// monitor together for one verification run.
package simulation

import (
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/kvsverify/clock"
	"github.com/sarchlab/kvsverify/config"
	"github.com/sarchlab/kvsverify/datarecording"
	"github.com/sarchlab/kvsverify/device/hashmap"
	"github.com/sarchlab/kvsverify/harness"
	"github.com/sarchlab/kvsverify/monitoring"
	"github.com/sarchlab/kvsverify/tracing"
)

// Run modes.
const (
	ModeRandom   = "random"
	ModeReadback = "readback"
)

// A Simulation provides the services a verification run requires. It runs
// one generator; build a new one for the next run.
type Simulation struct {
	id  string
	cfg config.Config

	device *hashmap.Hashmap
	tracer tracing.Tracer
	driver *clock.Driver

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	recorder     *harness.Recorder
	monitor      *monitoring.Monitor

	components    []monitoring.Component
	compNameIndex map[string]int
}

// ID returns the unique ID of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Config returns the configuration with the seed resolved.
func (s *Simulation) Config() config.Config {
	return s.cfg
}

// Device returns the device under test.
func (s *Simulation) Device() *hashmap.Hashmap {
	return s.device
}

// GetDriver returns the clock driver.
func (s *Simulation) GetDriver() *clock.Driver {
	return s.driver
}

// GetTracer returns the signal tracer.
func (s *Simulation) GetTracer() tracing.Tracer {
	return s.tracer
}

// GetDataRecorder returns the data recorder, or nil if nothing is recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c monitoring.Component) {
	name := c.Name()
	if _, found := s.compNameIndex[name]; found {
		panic("component " + name + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[name] = len(s.components) - 1

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) monitoring.Component {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// Components returns all registered components.
func (s *Simulation) Components() []monitoring.Component {
	return s.components
}

// RunRandom fills the device and runs the randomized steady phase.
func (s *Simulation) RunRandom() (harness.Stats, error) {
	session := harness.NewSession(s.device, s.cfg)
	sched := harness.NewScheduler(session, s.cfg)

	s.RegisterComponent(session)
	s.RegisterComponent(session.Oracle())

	if s.recorder != nil {
		session.Oracle().AcceptHook(s.recorder)
	}

	if s.monitor != nil {
		s.monitor.RegisterBuffer(session.Oracle().Queue())
		s.monitor.RegisterBuffer(session.Tracker().Buffer())
		s.monitor.RegisterStats(func() any { return session.Stats() })

		fill := s.monitor.CreateProgressBar("Fill", uint64(s.cfg.Capacity))
		steady := s.monitor.CreateProgressBar("Steady", uint64(s.cfg.SteadyOps))
		s.driver.AcceptHook(sched.ProgressHook(fill, steady))
	}

	err := harness.NewRunner(s.driver, sched).Run()
	stats := session.Stats()

	s.finish(ModeRandom, stats, err)

	return stats, err
}

// RunReadback inserts capacity keys and reads them back in order.
func (s *Simulation) RunReadback() (harness.Stats, error) {
	rb := harness.NewReadback(s.device, s.cfg.Capacity, s.cfg.Latency)
	s.RegisterComponent(rb)

	if s.monitor != nil {
		s.monitor.RegisterStats(func() any { return rb.Stats() })
	}

	err := harness.NewRunner(s.driver, rb).Run()
	stats := rb.Stats()

	var v *harness.ViolationError
	if s.recorder != nil && errors.As(err, &v) {
		s.recorder.RecordViolation(v)
	}

	s.finish(ModeReadback, stats, err)

	return stats, err
}

func (s *Simulation) finish(mode string, stats harness.Stats, err error) {
	if err != nil {
		log.Printf("Run %s failed: %v", s.id, err)
	}

	if s.recorder == nil {
		return
	}

	summary := harness.NewRunSummary(s.id, mode, stats, err)
	summary.Seed = s.cfg.Seed
	summary.Fault = s.device.Fault().String()
	s.recorder.Finish(summary)
}

// Terminate flushes and closes the trace and the recorders that were opened.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.tracer != nil {
		err := s.tracer.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("closing trace: %w", err))
		}
	}

	if s.execRecorder != nil {
		s.execRecorder.End()
	}

	if s.dataRecorder != nil {
		err := s.dataRecorder.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("closing recorder: %w", err))
		}
	}

	return errors.Join(errs...)
}
