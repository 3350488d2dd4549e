package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/report"
	"github.com/roach88/sentinel/internal/risk"
	"github.com/roach88/sentinel/internal/store"
)

// RiskResult lists traps by score, highest first.
type RiskResult struct {
	Traps []risk.Ranked `json:"traps"`
}

func (r RiskResult) String() string {
	if len(r.Traps) == 0 {
		return "No traps."
	}
	var b strings.Builder
	for i, t := range r.Traps {
		if i > 0 {
			b.WriteByte('\n')
		}
		code := t.Trap.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(&b, "%3d  %-6s  %-8s  %s", t.Score, t.Level, code, t.Trap.Name)
	}
	return b.String()
}

// NewRiskCommand creates the risk command.
func NewRiskCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "risk [trap-id]",
		Short: "Score traps from their last seven inspections",
		Long: `Score every trap, or just the one named, from its last seven inspections.

Levels: High from 75, Medium from 45, Low below.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if len(args) == 0 {
					ranked, err := risk.Rank(ctx, st)
					if err != nil {
						return WrapExitError(ExitFailure, "failed to score traps", err)
					}
					return rootOpts.formatter(cmd).Success(RiskResult{Traps: ranked})
				}

				trap, found, err := store.Get[record.Trap](ctx, st, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "failed to load trap", err)
				}
				if !found {
					return NewExitError(ExitCommandError, fmt.Sprintf("trap %s not found", args[0]))
				}
				score, err := risk.ForTrap(ctx, st, trap.ID)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to score trap", err)
				}
				return rootOpts.formatter(cmd).Success(RiskResult{Traps: []risk.Ranked{
					{Trap: trap, Score: score, Level: risk.LabelFor(score)},
				}})
			})
		},
	}
}

// ReportResult is rendered report text.
type ReportResult struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions"`
}

func (r ReportResult) String() string { return r.Text }

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		quick bool
		site  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the seven-day operations report",
		Long: `Render the operations report for the last seven days: totals, a line per
trap with its risk, and suggested actions. --quick renders the short update
meant for a chat message.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				snap, err := report.Load(ctx, st, rootOpts.now())
				if err != nil {
					return WrapExitError(ExitFailure, "failed to build report", err)
				}
				res := ReportResult{Text: snap.Text(), Suggestions: snap.Suggestions()}
				if quick {
					res.Text = snap.QuickUpdate(site)
				}
				return rootOpts.formatter(cmd).Success(res)
			})
		},
	}

	cmd.Flags().BoolVar(&quick, "quick", false, "render the short update")
	cmd.Flags().StringVar(&site, "site", "Bari Loseto", "site name for the short update")
	return cmd
}
