package main

import (
	"github.com/sarchlab/kvsverify/simulation"
	"github.com/spf13/cobra"
)

var readbackCmd = &cobra.Command{
	Use:   "readback",
	Short: "Insert keys i*i and read them back in order.",
	Long: `readback inserts capacity keys i*i with value i, waiting out the ` +
		`busy signal, then looks every key up once and checks the value ` +
		`two cycles later.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVerification(cmd, simulation.ModeReadback)
	},
}

func init() {
	rootCmd.AddCommand(readbackCmd)
}
