package harness

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/risk"
	"github.com/roach88/sentinel/internal/store"
)

// evaluateAssertions checks every assertion against the final state and
// returns one message per failure.
func evaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, st, result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	switch a.Type {
	case AssertOutboxCount:
		items, err := store.GetAll[record.OutboxItem](ctx, st)
		if err != nil {
			return err
		}
		n := 0
		for _, item := range items {
			if a.Status == "" || string(item.Status) == a.Status {
				n++
			}
		}
		return expectCount(a.Count, n)

	case AssertMessageCount:
		msgs, err := store.GetAll[record.Message](ctx, st)
		if err != nil {
			return err
		}
		n := 0
		for _, m := range msgs {
			if a.Tag == "" || slices.Contains(m.Tags, a.Tag) {
				n++
			}
		}
		return expectCount(a.Count, n)

	case AssertFiredCount:
		return expectCount(a.Count, result.firedCount(a.Rule))

	case AssertRisk:
		score, err := risk.ForTrap(ctx, st, a.Trap)
		if err != nil {
			return err
		}
		if a.Score != nil && *a.Score != score {
			return fmt.Errorf("expected score %d, got %d", *a.Score, score)
		}
		if level := risk.LabelFor(score); a.Level != "" && a.Level != string(level) {
			return fmt.Errorf("expected level %s, got %s (score %d)", a.Level, level, score)
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func expectCount(want, got int) error {
	if want != got {
		return fmt.Errorf("expected count %d, got %d", want, got)
	}
	return nil
}
