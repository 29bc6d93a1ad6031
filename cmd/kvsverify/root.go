package main

import (
	"github.com/sarchlab/kvsverify/harness"
	"github.com/sarchlab/kvsverify/simulation"
	"github.com/spf13/cobra"
)

// rootCmd runs the randomized test when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kvsverify",
	Short: "Randomized verification of the pipelined hashmap.",
	Long: `kvsverify fills the hashmap to capacity, then issues a mix of ` +
		`lookups, replacements, deletes and inserts, checking every lookup ` +
		`result after the pipeline latency against a reference model. ` +
		`The first mismatch stops the run with a non-zero exit status.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVerification(cmd, simulation.ModeRandom)
	},
}

func init() {
	bindRunFlags(rootCmd)
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func runVerification(cmd *cobra.Command, mode string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	b := simulation.MakeBuilder().WithConfig(cfg)

	lookups, err := cmd.Flags().GetBool("record-lookups")
	if err != nil {
		return err
	}

	if lookups {
		b = b.WithLookupRecording()
	}

	s, err := b.Build()
	if err != nil {
		return err
	}

	var stats harness.Stats

	switch mode {
	case simulation.ModeReadback:
		stats, err = s.RunReadback()
	default:
		stats, err = s.RunRandom()
	}

	termErr := s.Terminate()

	if err != nil {
		return err
	}

	stats.Report(cmd.OutOrStdout())

	return termErr
}
