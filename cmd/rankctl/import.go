package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/storage"
)

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load a snapshot file into a SQLite database",
		Long: `Upsert every agent in --file into the SQLite database named by --sqlite.
Agents already present are overwritten; agents missing from the file are kept.

Examples:
  rankctl import --file agents.yaml --sqlite leaderboard.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.file == "" || opts.sqlitePath == "" {
				return errors.New("import needs both --file and --sqlite")
			}

			cohort, err := storage.NewFileLoader(opts.file).LoadCohort(cmd.Context())
			if err != nil {
				return err
			}

			store, err := storage.OpenSQLite(opts.sqlitePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.UpsertMetrics(cmd.Context(), cohort); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d agents into %s\n", len(cohort), opts.sqlitePath)
			return nil
		},
	}
}
