package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/issues/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a backlog summary",
	Long:  "Count issues by status and score how well the backlog is being looked after.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	sum, err := svc.Summary(context.Background())
	if err != nil {
		return err
	}

	if sum.Total == 0 {
		ui.Info("No issues yet. Create one with: issues issue create --title ... --desc ...")
		return nil
	}

	fmt.Fprintf(ui.Out, "Issues:       %d\n", sum.Total)
	fmt.Fprintf(ui.Out, "  %-12s %d\n", output.StatusColor("OPEN"), sum.Open)
	fmt.Fprintf(ui.Out, "  %-12s %d\n", output.StatusColor("IN_PROGRESS"), sum.InProgress)
	fmt.Fprintf(ui.Out, "  %-12s %d\n", output.StatusColor("CLOSED"), sum.Closed)
	fmt.Fprintf(ui.Out, "Unassigned:   %d\n", sum.Unassigned)
	if !sum.OldestOpen.IsZero() {
		fmt.Fprintf(ui.Out, "Oldest open:  %s\n", sum.OldestOpen.Format(time.DateOnly))
	}
	fmt.Fprintf(ui.Out, "Health:       %s/100\n", output.HealthColor(sum.Score.Total))
	ui.VerboseLog("backlog %d/40, triage %d/30, activity %d/30",
		sum.Score.Backlog, sum.Score.Triage, sum.Score.Activity)
	return nil
}
