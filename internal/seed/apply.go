package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// Options controls how a catalog becomes records.
type Options struct {
	IDs record.IDGenerator
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.IDs == nil {
		o.IDs = record.UUIDv7IDs{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Records turns the catalog into store records, parents first. Dates are
// relative to the day of now; ids come from ids.
func (c *Catalog) Records(opts Options) []record.Record {
	opts = opts.withDefaults()
	now := opts.Now().UTC()
	today := now.Format(time.DateOnly)

	recs := make([]record.Record, 0, len(c.Traps)+len(c.Inspections)+len(c.Rules)+1)
	byCode := make(map[string]string, len(c.Traps))
	for _, t := range c.Traps {
		trap := record.Trap{
			ID:          opts.IDs.NewID(record.PrefixTrap),
			Name:        t.Name,
			Code:        t.Code,
			Lat:         c.Site.Lat + t.DLat,
			Lng:         c.Site.Lng + t.DLng,
			Type:        t.Type,
			Bait:        t.Bait,
			InstallDate: today,
			Status:      record.TrapStatus(t.Status),
			Tags:        t.Tags,
			Notes:       t.Notes,
		}
		byCode[t.Code] = trap.ID
		recs = append(recs, trap)
	}

	for _, i := range c.Inspections {
		recs = append(recs, record.Inspection{
			ID:          opts.IDs.NewID(record.PrefixInspection),
			TrapID:      byCode[i.Code],
			Date:        now.AddDate(0, 0, -i.DaysAgo).Format(time.DateOnly),
			Adults:      i.Adults,
			Females:     i.Females,
			Larvae:      i.Larvae,
			Temperature: ptr(i.Temperature),
			Humidity:    ptr(i.Humidity),
			Wind:        ptr(i.Wind),
			Notes:       i.Notes,
			Operator:    c.Site.Operator,
			Source:      record.SourceManual,
			MediaIDs:    []string{},
		})
	}

	for _, r := range c.Rules {
		recs = append(recs, record.AlertRule{
			ID:        opts.IDs.NewID(record.PrefixAlert),
			Name:      r.Name,
			Metric:    record.Metric(r.Metric),
			Threshold: r.Threshold,
			Active:    true,
			Scope:     "any",
			Note:      r.Note,
		})
	}

	recs = append(recs, record.Message{
		ID:      opts.IDs.NewID(record.PrefixMessage),
		Date:    now.Format(time.RFC3339Nano),
		Channel: c.Kickoff.Channel,
		Title:   c.Kickoff.Title,
		Body:    c.Kickoff.Body,
		Tags:    c.Kickoff.Tags,
	})
	return recs
}

// Result reports what Apply did.
type Result struct {
	Applied bool `json:"applied"`
	Records int  `json:"records"`
}

// Apply writes the catalog in one transaction if the store has no traps.
// A store that already has traps is left alone.
func Apply(ctx context.Context, s *store.Store, c *Catalog, opts Options) (Result, error) {
	counts, err := s.Counts(ctx)
	if err != nil {
		return Result{}, err
	}
	if counts[record.Traps] > 0 {
		slog.Debug("seed skipped", "traps", counts[record.Traps])
		return Result{}, nil
	}

	recs := c.Records(opts)
	if err := s.PutAll(ctx, recs...); err != nil {
		return Result{}, fmt.Errorf("seed %s: %w", c.Site.Name, err)
	}
	slog.Info("seeded site", "site", c.Site.Name, "records", len(recs))
	return Result{Applied: true, Records: len(recs)}, nil
}

// Reset replaces every collection and the settings with c in one
// transaction. A rejected catalog leaves the store untouched.
func Reset(ctx context.Context, s *store.Store, c *Catalog, opts Options) (Result, error) {
	recs := c.Records(opts)
	if err := s.Commit(ctx, store.Batch{Wipe: true, WipeSettings: true, Records: recs}); err != nil {
		return Result{}, fmt.Errorf("reset %s: %w", c.Site.Name, err)
	}
	slog.Info("reset site", "site", c.Site.Name, "records", len(recs))
	return Result{Applied: true, Records: len(recs)}, nil
}

func ptr(f float64) *float64 { return &f }
