// Package report renders the plain-text operations report, the short
// status update and the suggested actions from the last seven days of
// inspections.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/risk"
	"github.com/roach88/sentinel/internal/store"
)

// Days is the length of the report window, today included.
const Days = 7

// highlightScore is the score from which a trap is named as high risk.
const highlightScore = 45

// highlightCount caps how many traps are named.
const highlightCount = 3

// peakAdults is the per-inspection catch that counts as a peak.
const peakAdults = 5

// Snapshot is the data a report is rendered from.
type Snapshot struct {
	Now    time.Time
	Since  string // first day of the window, YYYY-MM-DD
	Traps  []record.Trap
	Recent []record.Inspection
	Ranked []risk.Ranked
}

// Load reads every trap and inspection and builds a snapshot at now.
func Load(ctx context.Context, s *store.Store, now time.Time) (*Snapshot, error) {
	traps, err := store.GetAll[record.Trap](ctx, s)
	if err != nil {
		return nil, fmt.Errorf("load traps: %w", err)
	}
	insps, err := store.GetAll[record.Inspection](ctx, s)
	if err != nil {
		return nil, fmt.Errorf("load inspections: %w", err)
	}
	return NewSnapshot(traps, insps, now), nil
}

// NewSnapshot keeps the inspections dated inside the window. Scores use
// each trap's full history, as everywhere else.
func NewSnapshot(traps []record.Trap, insps []record.Inspection, now time.Time) *Snapshot {
	now = now.UTC()
	since := now.AddDate(0, 0, -(Days - 1)).Format(time.DateOnly)

	recent := []record.Inspection{}
	for _, i := range insps {
		if i.Date >= since {
			recent = append(recent, i)
		}
	}
	return &Snapshot{
		Now:    now,
		Since:  since,
		Traps:  traps,
		Recent: recent,
		Ranked: risk.RankTraps(traps, insps),
	}
}

// AverageAdults is the mean adult catch per inspection in the window.
func (s *Snapshot) AverageAdults() float64 {
	if len(s.Recent) == 0 {
		return 0
	}
	sum := 0
	for _, i := range s.Recent {
		sum += i.Adults
	}
	return float64(sum) / float64(len(s.Recent))
}

// LarvaeFindings counts inspections in the window that found larvae.
func (s *Snapshot) LarvaeFindings() int {
	n := 0
	for _, i := range s.Recent {
		if i.Larvae > 0 {
			n++
		}
	}
	return n
}

// Highlighted returns up to three of the highest scoring traps that score
// at least 45.
func (s *Snapshot) Highlighted() []risk.Ranked {
	top := s.Ranked
	if len(top) > highlightCount {
		top = top[:highlightCount]
	}
	out := []risk.Ranked{}
	for _, r := range top {
		if r.Score >= highlightScore {
			out = append(out, r)
		}
	}
	return out
}

// Suggestions returns the suggested actions, most urgent first.
func (s *Snapshot) Suggestions() []string {
	var out []string
	if top := s.Highlighted(); len(top) > 0 {
		out = append(out, fmt.Sprintf("Check the high-risk traps: %s (inspect more often).", names(top)))
	} else {
		out = append(out, "Overall trend under control: keep the inspection schedule and bait replacement.")
	}

	larvae, peaks := false, false
	for _, i := range s.Recent {
		larvae = larvae || i.Larvae > 0
		peaks = peaks || i.Adults >= peakAdults
	}
	if larvae {
		out = append(out, "Larvae present: consider a targeted treatment and check fruit in the affected areas.")
	}
	if peaks {
		out = append(out, "Adult peaks: check attractant, placement and a possible rise in pressure (weather, humidity).")
	}
	out = append(out, "If available: add daily weather and phenology for a sturdier risk model.")
	return out
}

type trapWindow struct {
	count, adults, larvae int
}

// Text renders the full operations report.
func (s *Snapshot) Text() string {
	byTrap := map[string]*trapWindow{}
	for _, i := range s.Recent {
		w := byTrap[i.TrapID]
		if w == nil {
			w = &trapWindow{}
			byTrap[i.TrapID] = w
		}
		w.count++
		w.adults += i.Adults
		w.larvae += i.Larvae
	}
	scores := make(map[string]risk.Ranked, len(s.Ranked))
	for _, r := range s.Ranked {
		scores[r.Trap.ID] = r
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("SENTINEL - Operations report")
	line("Date: %s", s.Now.Format("02 Jan 2006 15:04"))
	line("Period: last %d days (%s to %s)", Days, displayDay(s.Since), s.Now.Format("02 Jan 2006"))
	line("")
	line("Traps: %d | Inspections in period: %d", len(s.Traps), len(s.Recent))
	line("Average adults per inspection: %.1f | Larvae findings: %d", s.AverageAdults(), s.LarvaeFindings())
	line("")
	line("BY TRAP")
	for _, t := range s.Traps {
		w := byTrap[t.ID]
		if w == nil {
			continue
		}
		r := scores[t.ID]
		code := t.Code
		if code == "" {
			code = "-"
		}
		line("- %s (%s) - Risk %s (%d)", t.Name, code, r.Level, r.Score)
		line("  Inspections: %d | Adults total: %d | Adults average: %.1f | Larvae total: %d",
			w.count, w.adults, float64(w.adults)/float64(w.count), w.larvae)
	}
	line("")
	line("SUGGESTED ACTIONS")
	for _, sug := range s.Suggestions() {
		line("- %s", sug)
	}
	line("")
	b.WriteString("Generated by Sentinel.")
	return b.String()
}

// QuickUpdate renders the short status message for site.
func (s *Snapshot) QuickUpdate(site string) string {
	lines := []string{
		"Quick update - " + site,
		"Date: " + s.Now.Format("02 Jan 2006 15:04"),
		fmt.Sprintf("Traps: %d | Inspections 7d: %d", len(s.Traps), len(s.Recent)),
		fmt.Sprintf("Average adults/inspection: %.1f | Larvae: %d", s.AverageAdults(), s.LarvaeFindings()),
	}
	if top := s.Highlighted(); len(top) > 0 {
		lines = append(lines, "High risk: "+names(top))
	} else {
		lines = append(lines, "Risk under control.")
	}
	return strings.Join(lines, "\n")
}

func names(rs []risk.Ranked) string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Trap.Name
	}
	return strings.Join(out, ", ")
}

func displayDay(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("02 Jan 2006")
}
