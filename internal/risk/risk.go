// Package risk scores traps from their recent inspection history.
//
// The score is a heuristic in [0, 100] built from the last seven
// inspections of a trap (by date):
//
//	adults      min(avgAdults/8 * 60, 60)
//	larvae      25 if any inspection found larvae
//	temperature clamp((avgTemp-18)/12 * 15, 0, 15)
//
// A missing temperature reading counts as 0 in the average.
package risk

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// Window is the number of most recent inspections a score looks at.
const Window = 7

// Level buckets a score.
type Level string

const (
	High   Level = "High"
	Medium Level = "Medium"
	Low    Level = "Low"
)

// Score computes the risk score of one trap's inspections.
// Order of insps does not matter. No inspections scores 0.
func Score(insps []record.Inspection) int {
	if len(insps) == 0 {
		return 0
	}

	sorted := slices.Clone(insps)
	slices.SortStableFunc(sorted, func(a, b record.Inspection) int {
		return cmp.Compare(a.Date, b.Date)
	})
	if len(sorted) > Window {
		sorted = sorted[len(sorted)-Window:]
	}

	var adults, temp float64
	larvae := false
	for _, i := range sorted {
		adults += float64(i.Adults)
		if i.Temperature != nil && !math.IsNaN(*i.Temperature) {
			temp += *i.Temperature
		}
		if i.Larvae > 0 {
			larvae = true
		}
	}
	n := float64(len(sorted))
	avgAdults := adults / n
	avgTemp := temp / n

	score := clamp(avgAdults/8*60, 0, 60)
	if larvae {
		score += 25
	}
	score += clamp((avgTemp-18)/12*15, 0, 15)
	return int(math.Round(score))
}

// LabelFor maps a score to its level: High at 75 and above, Medium at 45
// and above, Low otherwise.
func LabelFor(score int) Level {
	switch {
	case score >= 75:
		return High
	case score >= 45:
		return Medium
	default:
		return Low
	}
}

// ForTrap scores the trap with trapID from its stored inspections.
func ForTrap(ctx context.Context, s *store.Store, trapID string) (int, error) {
	insps, err := store.QueryByIndex[record.Inspection](ctx, s, record.InspectionsByTrapID, trapID)
	if err != nil {
		return 0, err
	}
	return Score(insps), nil
}

// Ranked is a trap with its current score.
type Ranked struct {
	Trap  record.Trap `json:"trap"`
	Score int         `json:"score"`
	Level Level       `json:"level"`
}

// Rank scores every trap and returns them highest score first.
// Traps with equal scores keep id order.
func Rank(ctx context.Context, s *store.Store) ([]Ranked, error) {
	traps, err := store.GetAll[record.Trap](ctx, s)
	if err != nil {
		return nil, err
	}
	insps, err := store.GetAll[record.Inspection](ctx, s)
	if err != nil {
		return nil, err
	}
	return RankTraps(traps, insps), nil
}

// RankTraps is Rank over records already in memory.
func RankTraps(traps []record.Trap, insps []record.Inspection) []Ranked {
	byTrap := make(map[string][]record.Inspection, len(traps))
	for _, i := range insps {
		byTrap[i.TrapID] = append(byTrap[i.TrapID], i)
	}

	out := make([]Ranked, 0, len(traps))
	for _, t := range traps {
		score := Score(byTrap[t.ID])
		out = append(out, Ranked{Trap: t, Score: score, Level: LabelFor(score)})
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
