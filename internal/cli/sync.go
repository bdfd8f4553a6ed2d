package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/portalsync/internal/models"
)

var (
	syncKind    string
	syncTimeout time.Duration
	syncJSON    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror documents into the relational store",
	Long: `Run a full sync (locations, then jobs, then media) or a single phase.

Records that fail validation or violate a constraint are reported and
skipped. A store outage aborts the run; the partial result is still printed.

Examples:
  portalsync sync
  portalsync sync --kind media
  portalsync sync --timeout 2m --json`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncKind, "kind", "k", "", "sync a single kind (location, job, media)")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 0, "abort the run after this long (default from PORTALSYNC_SYNC_TIMEOUT)")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the result as JSON")
}

func runSync(cmd *cobra.Command, args []string) error {
	svc, err := newSyncService()
	if err != nil {
		return err
	}

	timeout := syncTimeout
	if timeout <= 0 {
		timeout = cfg.SyncTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var res *models.SyncRunResult
	if syncKind == "" {
		res, err = svc.SyncAll(ctx)
	} else {
		kind, perr := models.ParseKind(syncKind)
		if perr != nil {
			return perr
		}
		res, err = svc.SyncKind(ctx, kind)
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	out := cmd.OutOrStdout()
	if syncJSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printSyncResult(out, res)
	}

	if !res.Success {
		return fmt.Errorf("sync did not complete cleanly (%d failed)", res.TotalFailed())
	}
	return nil
}

func printSyncResult(w io.Writer, res *models.SyncRunResult) {
	fmt.Fprintf(w, "Run %s (%s)\n\n", res.RunID, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "%-10s %10s %8s %8s %9s %8s\n", "KIND", "ATTEMPTED", "SYNCED", "FAILED", "INSERTED", "UPDATED")
	fmt.Fprintln(w, "---------------------------------------------------------------")
	for _, kind := range models.Kinds {
		c := res.Counts(kind)
		fmt.Fprintf(w, "%-10s %10d %8d %8d %9d %8d\n", kind, c.Attempted, c.Synced, c.Failed, c.Inserted, c.Updated)
	}
	fmt.Fprintf(w, "\n%s\n", res.Message)

	if len(res.Errors) > 0 {
		shown := res.Errors
		if !verbose && len(shown) > 10 {
			shown = shown[:10]
		}
		fmt.Fprintf(w, "\nErrors (%d):\n", len(res.Errors))
		for _, e := range shown {
			fmt.Fprintf(w, "  - [%s] %s\n", e.Class, e)
		}
		if len(shown) < len(res.Errors) {
			fmt.Fprintf(w, "  ... %d more (use -v to show all)\n", len(res.Errors)-len(shown))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
