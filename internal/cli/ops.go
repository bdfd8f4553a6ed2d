package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/portalsync/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply relational store migrations",
	Long: `Create or upgrade the reporting tables. Opening the store applies pending
migrations, so this command only reports the resulting schema version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := store.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", store.Driver(), v)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixtures.yaml>",
	Short: "Load fixture documents into the document store",
	Long: `Load YAML fixture documents into the document store for local runs.

The file maps kinds to lists of documents; each document needs an id:

  locations:
    - id: L1
      locationName: Depot
  jobs:
    - id: J1
      title: Inspect roof
      siteId: L1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open fixtures: %w", err)
		}
		defer f.Close()

		fx, err := db.LoadFixtures(f)
		if err != nil {
			return err
		}
		if err := docs.InitSchema(cmd.Context()); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
		n, err := docs.Seed(cmd.Context(), fx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d documents\n", n)
		return nil
	},
}
