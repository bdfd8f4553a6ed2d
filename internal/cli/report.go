package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
	"github.com/raphaelgruber/portalsync/internal/warehouse"
)

var (
	reportJSON   bool
	historyLimit int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reporting totals",
	Long: `Show totals from the relational store: locations, jobs by status, media
and captured hours. Figures are as of the last sync.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var historyCmd = &cobra.Command{
	Use:   "history <location-id>",
	Short: "Show recent media captured at a location",
	Long: `Show the most recent media captured at a location with job and hours.

Examples:
  portalsync history L1
  portalsync history L1 -n 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	statsCmd.Flags().BoolVar(&reportJSON, "json", false, "print as JSON")
	historyCmd.Flags().BoolVar(&reportJSON, "json", false, "print as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "max items")
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if reportJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	printStats(cmd.OutOrStdout(), st)
	return nil
}

func printStats(w io.Writer, st *warehouse.Stats) {
	fmt.Fprintf(w, "Locations: %d (%d active)\n", st.TotalLocations, st.ActiveLocations)

	fmt.Fprintf(w, "Jobs: %d\n", st.TotalJobs)
	statuses := make([]string, 0, len(st.JobsByStatus))
	for s := range st.JobsByStatus {
		statuses = append(statuses, string(s))
	}
	slices.Sort(statuses)
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-12s %d\n", s, st.JobsByStatus[models.JobStatus(s)])
	}

	fmt.Fprintf(w, "Media: %d (%d videos, %d without duration)\n", st.TotalMedia, st.VideoCount, st.MediaWithoutDuration)
	fmt.Fprintf(w, "Hours: %.2f (%.2f derived from file size)\n", st.TotalHours, st.DerivedHours)

	if st.LastRun != nil {
		fmt.Fprintf(w, "Last sync: %s (%s)\n", st.LastRun.FinishedAt.Local().Format("2006-01-02 15:04:05"), runStatus(*st.LastRun))
	} else {
		fmt.Fprintln(w, "Last sync: never")
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	h, err := store.LocationHistory(cmd.Context(), args[0], historyLimit)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("location not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if reportJSON {
		return writeJSON(cmd.OutOrStdout(), h)
	}
	printHistory(cmd.OutOrStdout(), h)
	return nil
}

func printHistory(w io.Writer, h *warehouse.LocationHistory) {
	fmt.Fprintf(w, "%s (%s): %d items, %.2f hours\n\n", h.Name, h.LocationID, h.TotalItems, h.TotalHours)
	if len(h.Items) == 0 {
		fmt.Fprintln(w, "No media captured")
		return
	}

	fmt.Fprintf(w, "%-20s %-6s %-8s %-30s %s\n", "UPLOADED", "KIND", "HOURS", "JOB", "STATUS")
	fmt.Fprintln(w, "--------------------------------------------------------------------------------")
	for _, it := range h.Items {
		hours := "-"
		if it.Hours != nil {
			hours = fmt.Sprintf("%.2f", *it.Hours)
			if it.HoursDerived {
				hours += "*"
			}
		}
		fmt.Fprintf(w, "%-20s %-6s %-8s %-30s %s\n",
			it.UploadedAt.Local().Format("2006-01-02 15:04:05"), it.Kind, hours, truncate(it.JobTitle, 30), it.JobStatus)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
