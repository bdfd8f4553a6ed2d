package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/portalsync/internal/warehouse"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs",
	Long: `List the most recent sync runs recorded in the relational store.

Examples:
  portalsync runs
  portalsync runs -n 5 --json`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "max runs")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "print as JSON")
}

func runRuns(cmd *cobra.Command, args []string) error {
	runs, err := store.RecentRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []warehouse.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No sync runs found")
		return
	}

	fmt.Fprintf(w, "%-36s %-20s %-9s %-12s %-12s %-12s %s\n", "RUN", "FINISHED", "STATUS", "LOCATIONS", "JOBS", "MEDIA", "DURATION")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------------------------------")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s %-20s %-9s %-12s %-12s %-12s %s\n",
			r.RunID,
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			runStatus(r),
			fmt.Sprintf("%d/%d", r.Locations.Synced, r.Locations.Attempted),
			fmt.Sprintf("%d/%d", r.Jobs.Synced, r.Jobs.Attempted),
			fmt.Sprintf("%d/%d", r.Media.Synced, r.Media.Attempted),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
		)
	}
}

func runStatus(r warehouse.RunRecord) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Success:
		return "ok"
	default:
		return "errors"
	}
}
