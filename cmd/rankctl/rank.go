package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

func newRankCmd(opts *globalOptions) *cobra.Command {
	var (
		sortBy string
		role   string
		tier   string
		search string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the leaderboard",
		Long: `Rank every agent in the snapshot and print the requested page.

Scores are always computed over the whole snapshot; filters only select
which agents are listed.

Examples:
  rankctl rank --file agents.json
  rankctl rank --file agents.json --sort-by earnings --tier gold
  rankctl rank --sqlite leaderboard.db --role coder --search alpha -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("limit") && limit <= 0 {
				return fmt.Errorf("%w: --limit must be a positive integer", domain.ErrInvalidLimit)
			}

			cohort, err := opts.loadCohort(cmd.Context())
			if err != nil {
				return err
			}
			engine, err := opts.engine()
			if err != nil {
				return err
			}

			result, err := engine.Rank(cohort, domain.RankQuery{
				SortBy:     domain.SortKey(sortBy),
				FilterRole: role,
				FilterTier: domain.Tier(strings.ToLower(tier)),
				SearchText: search,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, a := range result.Anomalies {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s.%s clamped from %g to %g\n", a.AgentID, a.Field, a.Raw, a.Clamped)
			}
			if opts.output != outputTable {
				return writeStructured(w, opts.output, result)
			}
			renderRankings(w, result)
			return nil
		},
	}

	keys := make([]string, 0, len(domain.SortKeys()))
	for _, k := range domain.SortKeys() {
		keys = append(keys, string(k))
	}
	tiers := make([]string, 0, len(domain.AllTiers()))
	for _, t := range domain.AllTiers() {
		tiers = append(tiers, string(t))
	}

	cmd.Flags().StringVar(&sortBy, "sort-by", string(domain.SortComposite), "Sort key ("+strings.Join(keys, ", ")+")")
	cmd.Flags().StringVar(&role, "role", "", "Only list agents with this role")
	cmd.Flags().StringVar(&tier, "tier", "", "Only list agents in this tier ("+strings.Join(tiers, ", ")+")")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive substring of name or agent ID")
	cmd.Flags().IntVar(&limit, "limit", 0, fmt.Sprintf("Page size (default %d)", domain.DefaultLimit))
	return cmd
}

func renderRankings(w io.Writer, result domain.RankingResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Agent", "Name", "Tier", "Composite", "Reputation", string(result.SortBy), "Pctl", "Flags"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, e := range result.Rankings {
		flags := ""
		if e.SuspensionEligible {
			flags = "suspension-eligible"
		}
		table.Append([]string{
			strconv.Itoa(e.Rank),
			e.AgentID,
			e.Name,
			string(e.Tier),
			formatScore(e.CompositeScore),
			formatScore(e.Reputation.Overall),
			formatSortValue(result.SortBy, e.SortValue),
			strconv.FormatFloat(e.Percentile, 'f', 1, 64),
			flags,
		})
	}
	table.Render()

	parts := make([]string, 0, len(domain.AllTiers()))
	for _, t := range domain.AllTiers() {
		parts = append(parts, fmt.Sprintf("%s=%d", t, result.TierDistribution[t]))
	}
	_, _ = fmt.Fprintf(w, "\nshowing %d of %d agents, sorted by %s (%s)\n",
		len(result.Rankings), result.TotalAgents, result.SortBy, strings.Join(parts, " "))
}

func formatScore(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func formatSortValue(key domain.SortKey, v float64) string {
	switch key {
	case domain.SortTasks, domain.SortKnowledge:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case domain.SortEarnings:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return formatScore(v)
	}
}
