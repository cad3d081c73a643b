// Command rankctl ranks an agent snapshot offline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/storage"
	"github.com/DansiDanutz/nervix-leaderboard/internal/application"
	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/scoring"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	file       string
	sqlitePath string
	policyFile string
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "rankctl",
		Short: "Rank marketplace agents from a metrics snapshot",
		Long: `rankctl scores and ranks agents offline, using the same engine as the
leaderboard service.

Snapshots are read from a JSON or YAML file (--file) or from a SQLite
database (--sqlite).

Examples:
  rankctl rank --file agents.json --sort-by tasks --limit 10
  rankctl agent agt_42 --file agents.yaml -o json
  rankctl import --file agents.json --sqlite leaderboard.db
  rankctl generate --file testdata/agents.yaml --size 1000 --seed 7`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (want table, json or yaml)", opts.output)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "", "Snapshot file (.json, .yaml, .yml)")
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite database holding agent metrics")
	flags.StringVar(&opts.policyFile, "policy", "", "YAML scoring policy for what-if runs (default: production policy)")
	flags.StringVarP(&opts.output, "output", "o", outputTable, "Output format (table, json, yaml)")

	root.AddCommand(newRankCmd(opts), newAgentCmd(opts), newImportCmd(opts), newGenerateCmd(opts))
	return root
}

// loadCohort reads the snapshot named by the global flags.
func (o *globalOptions) loadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	switch {
	case o.file != "" && o.sqlitePath != "":
		return nil, errors.New("--file and --sqlite are mutually exclusive")
	case o.file != "":
		return storage.NewFileLoader(o.file).LoadCohort(ctx)
	case o.sqlitePath != "":
		store, err := storage.OpenSQLite(o.sqlitePath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		return store.LoadCohort(ctx)
	default:
		return nil, errors.New("a snapshot is required: pass --file or --sqlite")
	}
}

// engine builds a ranking engine, applying --policy when set.
func (o *globalOptions) engine() (*application.Engine, error) {
	if strings.TrimSpace(o.policyFile) == "" {
		return application.NewEngine()
	}

	f, err := os.Open(o.policyFile)
	if err != nil {
		return nil, fmt.Errorf("open policy: %w", err)
	}
	defer func() { _ = f.Close() }()

	policy, err := scoring.LoadPolicy(f)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", o.policyFile, err)
	}
	return application.NewEngine(application.WithPolicy(policy))
}
