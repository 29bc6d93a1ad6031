// Package config collects the knobs of a verification run. Values come from
// the built-in defaults, then a .env file, then KVSV_* environment variables,
// and finally command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/structs"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the harness reads.
const EnvPrefix = "KVSV_"

// Trace formats.
const (
	TraceVCD    = "vcd"
	TraceSQLite = "sqlite"
	TraceNone   = "none"
)

// Config describes one run.
type Config struct {
	Capacity             int     `structs:"capacity"`
	SteadyOps            int     `structs:"steady_ops"`
	RecencyCapacity      int     `structs:"recency_capacity"`
	Latency              int     `structs:"latency"`
	InsertRate           float64 `structs:"insert_rate"`
	Seed                 int64   `structs:"seed"`
	NumSlots             int     `structs:"num_slots"`
	Fault                string  `structs:"fault"`
	GuardInFlightDeletes bool    `structs:"guard_inflight_deletes"`
	TracePath            string  `structs:"trace_path"`
	TraceFormat          string  `structs:"trace_format"`
	RecordPath           string  `structs:"record_path"`
	Monitor              bool    `structs:"monitor"`
	MonitorPort          int     `structs:"monitor_port"`
	OpenBrowser          bool    `structs:"open_browser"`
}

// Default returns the configuration of the reference testbench.
func Default() Config {
	return Config{
		Capacity:        15000,
		SteadyOps:       50000,
		RecencyCapacity: 100,
		Latency:         2,
		InsertRate:      0.5,
		TracePath:       "dump.vcd",
		TraceFormat:     TraceVCD,
	}
}

// LoadEnv reads the given dotenv files, or .env when none is given, and
// applies the KVSV_* variables on top of c. Missing files are skipped.
// Variables already set in the environment win over the files.
func LoadEnv(c *Config, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return c.applyEnv()
}

func (c *Config) applyEnv() error {
	ints := map[string]*int{
		"CAPACITY":         &c.Capacity,
		"STEADY_OPS":       &c.SteadyOps,
		"RECENCY_CAPACITY": &c.RecencyCapacity,
		"LATENCY":          &c.Latency,
		"NUM_SLOTS":        &c.NumSlots,
		"MONITOR_PORT":     &c.MonitorPort,
	}
	for name, dst := range ints {
		if err := lookupInt(name, dst); err != nil {
			return err
		}
	}

	bools := map[string]*bool{
		"GUARD_INFLIGHT_DELETES": &c.GuardInFlightDeletes,
		"MONITOR":                &c.Monitor,
		"OPEN_MONITOR":           &c.OpenBrowser,
	}
	for name, dst := range bools {
		if err := lookupBool(name, dst); err != nil {
			return err
		}
	}

	strs := map[string]*string{
		"FAULT":        &c.Fault,
		"TRACE":        &c.TracePath,
		"TRACE_FORMAT": &c.TraceFormat,
		"RECORD":       &c.RecordPath,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}

		c.Seed = seed
	}

	if v, ok := os.LookupEnv(EnvPrefix + "INSERT_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sINSERT_RATE: %w", EnvPrefix, err)
		}

		c.InsertRate = rate
	}

	return nil
}

func lookupInt(name string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}

	*dst = n

	return nil
}

func lookupBool(name string, dst *bool) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}

	*dst = b

	return nil
}

// Validate reports the first setting that cannot be run.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	case c.SteadyOps < 0:
		return fmt.Errorf("steady ops must not be negative, got %d",
			c.SteadyOps)
	case c.RecencyCapacity <= 0:
		return fmt.Errorf("recency capacity must be positive, got %d",
			c.RecencyCapacity)
	case c.Latency < 2:
		return fmt.Errorf("latency must be at least 2, got %d", c.Latency)
	case c.InsertRate < 0 || c.InsertRate > 1:
		return fmt.Errorf("insert rate must be within [0, 1], got %g",
			c.InsertRate)
	case c.NumSlots < 0 || c.NumSlots&(c.NumSlots-1) != 0:
		return fmt.Errorf("number of slots must be a power of two, got %d",
			c.NumSlots)
	case c.NumSlots != 0 && c.NumSlots <= c.Capacity+c.Latency:
		// Deleted keys stay in the table until their delete is applied,
		// up to latency cycles after the model drops them.
		return fmt.Errorf("%d slots cannot hold %d keys plus %d in-flight "+
			"deletes", c.NumSlots, c.Capacity, c.Latency)
	case c.Monitor && (c.MonitorPort < 0 || c.MonitorPort > 65535):
		return fmt.Errorf("invalid monitor port %d", c.MonitorPort)
	}

	switch strings.ToLower(c.TraceFormat) {
	case TraceVCD, TraceSQLite, TraceNone:
	default:
		return fmt.Errorf("unknown trace format %q", c.TraceFormat)
	}

	return nil
}

// Properties flattens the configuration into name-value pairs for the run
// record.
func (c Config) Properties() map[string]string {
	props := make(map[string]string)
	for k, v := range structs.Map(c) {
		props[k] = fmt.Sprint(v)
	}

	return props
}
