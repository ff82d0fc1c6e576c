package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backup now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, orch, _, err := buildPipeline(ctx)
		if err != nil {
			return err
		}

		res, err := orch.RunOnce(ctx, time.Now())
		if err != nil {
			return err
		}
		if !res.Completed() {
			return fmt.Errorf("backup run %s failed at stage %s: %w",
				res.RunID, res.FailedStage, res.Err)
		}
		return nil
	},
}
