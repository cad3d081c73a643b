package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DansiDanutz/nervix-leaderboard/infrastructure/storage"
	"github.com/DansiDanutz/nervix-leaderboard/internal/testutils"
)

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var (
		size int
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic snapshot for load and benchmark runs",
		Long: `Generate a reproducible synthetic cohort and write it to --file. The
format follows the file extension (.json, .yaml or .yml).

The data is synthetic and only meant for testing.

Examples:
  rankctl generate --file testdata/agents.json --size 5000 --seed 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.file == "" {
				return errors.New("generate needs --file")
			}
			if size <= 0 {
				return fmt.Errorf("--size must be positive, got %d", size)
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			cohort := testutils.GenerateCohort(size, seed)
			format := storage.FormatJSON
			if ext := strings.ToLower(filepath.Ext(opts.file)); ext == ".yaml" || ext == ".yml" {
				format = storage.FormatYAML
			}
			data, err := storage.EncodeSnapshot(cohort, format)
			if err != nil {
				return err
			}

			if dir := filepath.Dir(opts.file); dir != "." {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("failed to create directory: %w", err)
				}
			}
			if err := os.WriteFile(opts.file, data, 0o600); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}

			stats := testutils.ComputeCohortStatistics(cohort)
			if opts.output != outputTable {
				return writeStructured(cmd.OutOrStdout(), opts.output, stats)
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Generated synthetic cohort:\n")
			_, _ = fmt.Fprintf(w, "- Path: %s\n", opts.file)
			_, _ = fmt.Fprintf(w, "- Seed: %d\n", seed)
			_, _ = fmt.Fprintf(w, "- Agents: %d\n", stats.TotalAgents)
			_, _ = fmt.Fprintf(w, "- Statuses: %v\n", stats.StatusCount)
			_, _ = fmt.Fprintf(w, "- Roles: %v\n", stats.RoleCount)
			_, _ = fmt.Fprintf(w, "- Average success rate: %.2f\n", stats.AvgSuccessRate)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 500, "Number of agents to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default: time-based)")
	return cmd
}
