package main

import (
	"github.com/sarchlab/kvsverify/config"
	"github.com/spf13/cobra"
)

type flagSetter func(cmd *cobra.Command, c *config.Config) error

var flagSetters = map[string]flagSetter{
	"capacity": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.Capacity, err = cmd.Flags().GetInt("capacity")
		return err
	},
	"steady-ops": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.SteadyOps, err = cmd.Flags().GetInt("steady-ops")
		return err
	},
	"recency-capacity": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.RecencyCapacity, err = cmd.Flags().GetInt("recency-capacity")
		return err
	},
	"latency": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.Latency, err = cmd.Flags().GetInt("latency")
		return err
	},
	"insert-rate": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.InsertRate, err = cmd.Flags().GetFloat64("insert-rate")
		return err
	},
	"seed": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.Seed, err = cmd.Flags().GetInt64("seed")
		return err
	},
	"num-slots": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.NumSlots, err = cmd.Flags().GetInt("num-slots")
		return err
	},
	"fault": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.Fault, err = cmd.Flags().GetString("fault")
		return err
	},
	"guard-inflight-deletes": func(
		cmd *cobra.Command,
		c *config.Config,
	) (err error) {
		c.GuardInFlightDeletes, err = cmd.Flags().GetBool(
			"guard-inflight-deletes")
		return err
	},
	"trace": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.TracePath, err = cmd.Flags().GetString("trace")
		return err
	},
	"trace-format": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.TraceFormat, err = cmd.Flags().GetString("trace-format")
		return err
	},
	"record": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.RecordPath, err = cmd.Flags().GetString("record")
		return err
	},
	"monitor": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.Monitor, err = cmd.Flags().GetBool("monitor")
		return err
	},
	"monitor-port": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.MonitorPort, err = cmd.Flags().GetInt("monitor-port")
		return err
	},
	"open-monitor": func(cmd *cobra.Command, c *config.Config) (err error) {
		c.OpenBrowser, err = cmd.Flags().GetBool("open-monitor")
		return err
	},
}

// bindRunFlags registers the run settings as persistent flags so that
// subcommands share them.
func bindRunFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.PersistentFlags()

	f.StringSlice("env", nil,
		"dotenv files to load before the KVSV_* variables (default .env)")
	f.Int("capacity", d.Capacity, "number of keys the hashmap holds")
	f.Int("steady-ops", d.SteadyOps, "number of operations after the fill")
	f.Int("recency-capacity", d.RecencyCapacity,
		"number of recently touched keys kept for re-access")
	f.Int("latency", d.Latency, "lookup latency of the hashmap in cycles")
	f.Float64("insert-rate", d.InsertRate,
		"probability of an opportunistic insert per operation")
	f.Int64("seed", d.Seed, "random seed, 0 picks one from the clock")
	f.Int("num-slots", d.NumSlots,
		"table size of the hashmap, 0 uses twice the capacity")
	f.String("fault", d.Fault, "inject a hashmap fault")
	f.Bool("guard-inflight-deletes", d.GuardInFlightDeletes,
		"never insert a key whose delete is still in the pipeline")
	f.String("trace", d.TracePath, "waveform output path")
	f.String("trace-format", d.TraceFormat, "vcd, sqlite or none")
	f.String("record", d.RecordPath, "record run results to this database")
	f.Bool("record-lookups", false, "record every resolved lookup")
	f.Bool("monitor", d.Monitor, "serve the run monitor over HTTP")
	f.Int("monitor-port", d.MonitorPort, "port of the run monitor")
	f.Bool("open-monitor", d.OpenBrowser, "open the monitor in a browser")
}

// loadConfig layers defaults, dotenv files, KVSV_* variables and the flags
// the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	envFiles, err := cmd.Flags().GetStringSlice("env")
	if err != nil {
		return cfg, err
	}

	if err := config.LoadEnv(&cfg, envFiles...); err != nil {
		return cfg, err
	}

	for name, set := range flagSetters {
		if !cmd.Flags().Changed(name) {
			continue
		}

		if err := set(cmd, &cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}
