package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/kvsverify/datarecording"
	"github.com/sarchlab/kvsverify/harness"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:          "report <database>",
	Short:        "Print the runs stored in a recording database.",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}

		reader, err := datarecording.NewReader(path)
		if err != nil {
			return err
		}
		defer reader.Close()

		records, err := harness.ReadRunRecords(cmd.Context(), reader)
		if err != nil {
			return err
		}

		return records.Print(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
