package simulation

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sarchlab/kvsverify/clock"
	"github.com/sarchlab/kvsverify/config"
	"github.com/sarchlab/kvsverify/datarecording"
	"github.com/sarchlab/kvsverify/device/hashmap"
	"github.com/sarchlab/kvsverify/harness"
	"github.com/sarchlab/kvsverify/monitoring"
	"github.com/sarchlab/kvsverify/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg        config.Config
	monitorOn  bool
	withLookup bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithConfig sets the run configuration. Monitoring follows the
// configuration.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	b.monitorOn = cfg.Monitor

	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithLookupRecording records every resolved lookup, not only the summary
// and the violations.
func (b Builder) WithLookupRecording() Builder {
	b.withLookup = true
	return b
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	cfg := b.cfg
	cfg.TraceFormat = strings.ToLower(cfg.TraceFormat)

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	fault, err := hashmap.ParseFault(cfg.Fault)
	if err != nil {
		return nil, err
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	fmt.Fprintf(os.Stderr, "Random seed: %d\n", cfg.Seed)

	s := &Simulation{
		id:            xid.New().String(),
		cfg:           cfg,
		compNameIndex: make(map[string]int),
	}

	s.device = b.buildDevice(fault)

	err = b.buildRecorders(s)
	if err != nil {
		return nil, err
	}

	err = b.buildTracer(s)
	if err != nil {
		return nil, errors.Join(err, s.Terminate())
	}

	s.driver = clock.NewDriver(s.device, s.tracer)

	if b.monitorOn {
		err = b.buildMonitor(s)
		if err != nil {
			return nil, errors.Join(err, s.Terminate())
		}
	}

	s.RegisterComponent(s.device)

	return s, nil
}

func (b Builder) buildDevice(fault hashmap.Fault) *hashmap.Hashmap {
	db := hashmap.MakeBuilder().
		WithCapacity(b.cfg.Capacity).
		WithLookupLatency(b.cfg.Latency).
		WithFault(fault)

	if b.cfg.NumSlots != 0 {
		db = db.WithNumSlots(b.cfg.NumSlots)
	}

	return db.Build("Hashmap")
}

func (b Builder) buildRecorders(s *Simulation) error {
	if s.cfg.RecordPath == "" && s.cfg.TraceFormat != config.TraceSQLite {
		return nil
	}

	backend, err := datarecording.New(s.cfg.RecordPath)
	if err != nil {
		return fmt.Errorf("creating recorder: %w", err)
	}

	s.dataRecorder = backend
	s.recorder = harness.NewRecorder(s.id, backend, b.withLookup)

	s.execRecorder = datarecording.NewExecRecorder(backend)
	s.execRecorder.Start()
	s.execRecorder.Annotate("Run ID", s.id)

	props := s.cfg.Properties()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s.execRecorder.Annotate(name, props[name])
	}

	return nil
}

func (b Builder) buildTracer(s *Simulation) error {
	var tracer tracing.Tracer

	switch s.cfg.TraceFormat {
	case config.TraceVCD:
		tracer = tracing.NewVCDTracer(s.device, "hashmap")
	case config.TraceSQLite:
		tracer = tracing.NewDBTracer(s.device, s.dataRecorder)
	default:
		tracer = tracing.NopTracer{}
	}

	err := tracer.Open(s.cfg.TracePath)
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}

	s.tracer = tracer

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithPortNumber(s.cfg.MonitorPort).
		WithBrowser(s.cfg.OpenBrowser)
	s.monitor.RegisterController(s.driver)

	_, err := s.monitor.StartServer()

	return err
}
