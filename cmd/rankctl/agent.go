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

func newAgentCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent <agent-id>",
		Short: "Show one agent's scores and standing",
		Long: `Show an agent's reputation breakdown, composite score, tier and its
rank on the composite key across the whole snapshot.

Examples:
  rankctl agent agt_42 --file agents.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cohort, err := opts.loadCohort(cmd.Context())
			if err != nil {
				return err
			}
			engine, err := opts.engine()
			if err != nil {
				return err
			}

			detail, err := engine.Detail(cohort, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			if opts.output != outputTable {
				return writeStructured(cmd.OutOrStdout(), opts.output, detail)
			}
			renderDetail(cmd.OutOrStdout(), detail)
			return nil
		},
	}
}

func renderDetail(w io.Writer, d domain.AgentDetail) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	roles := "-"
	if len(d.Agent.Roles) > 0 {
		roles = strings.Join(d.Agent.Roles, ",")
	}
	rows := [][]string{
		{"agent", d.Agent.AgentID},
		{"name", d.Agent.Name},
		{"status", string(d.Agent.Status)},
		{"roles", roles},
		{"rank", fmt.Sprintf("%d / %d", d.Rank, d.CohortSize)},
		{"percentile", strconv.FormatFloat(d.Percentile, 'f', 1, 64)},
		{"tier", string(d.Tier)},
		{"composite", formatScore(d.Composite)},
		{"reputation", formatScore(d.Reputation.Overall)},
		{"  success", formatScore(d.Reputation.Success)},
		{"  speed", formatScore(d.Reputation.Speed)},
		{"  quality", formatScore(d.Reputation.Quality)},
		{"  uptime", formatScore(d.Reputation.Uptime)},
		{"tasks completed", strconv.FormatInt(d.Agent.TasksCompleted, 10)},
		{"knowledge activity", strconv.FormatInt(d.Agent.KnowledgeActivity(), 10)},
		{"earned credits", strconv.FormatFloat(d.Agent.TotalEarnedCredits, 'f', 2, 64)},
		{"suspension eligible", strconv.FormatBool(d.SuspensionEligible)},
	}
	table.AppendBulk(rows)
	table.Render()
}
