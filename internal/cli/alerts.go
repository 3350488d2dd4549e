package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sentinel/internal/alert"
	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// EvaluationResult is the outcome of recording an inspection or checking
// a position.
type EvaluationResult struct {
	InspectionID string `json:"inspectionId,omitempty"`
	alert.Result
}

func (r EvaluationResult) String() string {
	var b strings.Builder
	if r.InspectionID != "" {
		fmt.Fprintf(&b, "Recorded %s\n", r.InspectionID)
	}
	if len(r.Fired) == 0 {
		b.WriteString("No rule fired.")
	} else {
		for i, f := range r.Fired {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "Fired %s (%s) on %s: %s %g, threshold %g", f.RuleName, f.RuleID, f.TrapID, f.Metric, f.Value, f.Threshold)
		}
		fmt.Fprintf(&b, "\nMessage %s", r.MessageID)
		if r.OutboxID != "" {
			fmt.Fprintf(&b, ", outbox %s", r.OutboxID)
		}
	}
	for _, re := range r.RuleErrors {
		fmt.Fprintf(&b, "\nSkipped rule: %v", re)
	}
	return b.String()
}

// newQueue builds the outbox queue with the command's ids and clock.
func (o *RootOptions) newQueue(st *store.Store) *outbox.Queue {
	return outbox.New(st, outbox.WithIDGenerator(o.ids()), outbox.WithClock(o.clock()))
}

// newEngine builds the alert engine with the command's ids and clock.
func (o *RootOptions) newEngine(st *store.Store) *alert.Engine {
	return alert.New(st, o.newQueue(st), alert.WithIDGenerator(o.ids()), alert.WithClock(o.clock()))
}

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Trap        string
	Date        string
	Adults      int
	Females     int
	Larvae      int
	Temperature float64
	Humidity    float64
	Wind        float64
	Notes       string
	Operator    string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Record an inspection and evaluate alert rules",
		Long: `Record an inspection of a trap, then check it against every active adults
and larvae rule. Rules that fire are batched into one team message and, when
WhatsApp alerts are enabled, one outbox item.`,
		Example: `  sentinel inspect --trap trap_1 --adults 6 --females 3
  sentinel inspect --trap trap_2 --date 2026-10-18 --larvae 1 --temperature 24.5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trap, "trap", "", "trap id (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "inspection date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&opts.Adults, "adults", 0, "adults caught")
	cmd.Flags().IntVar(&opts.Females, "females", 0, "females among the adults")
	cmd.Flags().IntVar(&opts.Larvae, "larvae", 0, "larvae found")
	cmd.Flags().Float64Var(&opts.Temperature, "temperature", 0, "temperature in °C")
	cmd.Flags().Float64Var(&opts.Humidity, "humidity", 0, "relative humidity in %")
	cmd.Flags().Float64Var(&opts.Wind, "wind", 0, "wind in km/h")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-text notes")
	cmd.Flags().StringVar(&opts.Operator, "operator", "", "who inspected")
	_ = cmd.MarkFlagRequired("trap")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	date := opts.Date
	if date == "" {
		date = opts.now().Format(time.DateOnly)
	}
	insp := record.Inspection{
		TrapID:   opts.Trap,
		Date:     date,
		Adults:   opts.Adults,
		Females:  opts.Females,
		Larvae:   opts.Larvae,
		Notes:    opts.Notes,
		Operator: opts.Operator,
		Source:   record.SourceManual,
		MediaIDs: []string{},
	}
	optional := func(name string, v float64) *float64 {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	insp.Temperature = optional("temperature", opts.Temperature)
	insp.Humidity = optional("humidity", opts.Humidity)
	insp.Wind = optional("wind", opts.Wind)

	return opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
		saved, res, err := opts.newEngine(st).RecordInspection(ctx, insp)
		if err != nil {
			if store.IsConstraintViolation(err) {
				return WrapExitError(ExitCommandError, "inspection rejected", err)
			}
			return WrapExitError(ExitFailure, "failed to record inspection", err)
		}
		return opts.formatter(cmd).Success(EvaluationResult{InspectionID: saved.ID, Result: res})
	})
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Check a position against the nearby-trap rule",
		Long: `Check a position against the first active nearby rule. When a trap lies
within the rule's radius, the closest one is announced to the team and, when
enabled, queued for WhatsApp.`,
		Example:       `  sentinel evaluate --lat 41.0322 --lng 16.8534`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				res, err := rootOpts.newEngine(st).EvaluateProximity(ctx, record.Position{Lat: lat, Lng: lng})
				if err != nil {
					return WrapExitError(ExitCommandError, "evaluation failed", err)
				}
				return rootOpts.formatter(cmd).Success(EvaluationResult{Result: res})
			})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees (required)")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude in decimal degrees (required)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}
