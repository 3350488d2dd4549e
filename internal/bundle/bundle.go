// Package bundle moves a store's records in and out as one JSON document.
//
// A bundle holds every collection plus the settings blob. Import only
// upserts by id, so importing into a populated store merges; with Wipe the
// collections are cleared first. Settings are merged, never replaced.
package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// Version is the bundle format written by Export.
const Version = 2

// ErrUnsupportedVersion is returned for a bundle newer than Version.
var ErrUnsupportedVersion = errors.New("unsupported bundle version")

// Bundle is the export document.
//
// Media and Outbox are only filled by a full export.
type Bundle struct {
	Version     int                        `json:"version"`
	ExportedAt  string                     `json:"exportedAt"`
	Traps       []record.Trap              `json:"traps"`
	Inspections []Inspection               `json:"inspections"`
	Alerts      []record.AlertRule         `json:"alerts"`
	Messages    []record.Message           `json:"messages"`
	Settings    map[string]json.RawMessage `json:"settings,omitempty"`
	Media       []record.Media             `json:"media,omitempty"`
	Outbox      []record.OutboxItem        `json:"outbox,omitempty"`
}

// Inspection is an inspection as found in a bundle. Bundles written by
// older builds may still carry the photo inline.
type Inspection struct {
	record.Inspection
	PhotoDataURL string `json:"photoDataUrl,omitempty"`
}

// Export reads the store into a bundle. all adds media and the outbox.
func Export(ctx context.Context, s *store.Store, all bool, now time.Time) (*Bundle, error) {
	b := &Bundle{
		Version:    Version,
		ExportedAt: now.UTC().Format(time.RFC3339Nano),
	}
	var err error
	if b.Traps, err = store.GetAll[record.Trap](ctx, s); err != nil {
		return nil, err
	}
	insps, err := store.GetAll[record.Inspection](ctx, s)
	if err != nil {
		return nil, err
	}
	b.Inspections = make([]Inspection, len(insps))
	for i, insp := range insps {
		b.Inspections[i] = Inspection{Inspection: insp}
	}
	if b.Alerts, err = store.GetAll[record.AlertRule](ctx, s); err != nil {
		return nil, err
	}
	if b.Messages, err = store.GetAll[record.Message](ctx, s); err != nil {
		return nil, err
	}
	if b.Settings, err = effectiveSettings(ctx, s); err != nil {
		return nil, err
	}
	if all {
		if b.Media, err = store.GetAll[record.Media](ctx, s); err != nil {
			return nil, err
		}
		if b.Outbox, err = store.GetAll[record.OutboxItem](ctx, s); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// effectiveSettings returns the stored blob over the defaults, keeping keys
// this build does not know.
func effectiveSettings(ctx context.Context, s *store.Store) (map[string]json.RawMessage, error) {
	defaults, err := record.PatchFrom(record.DefaultSettings()).Fields()
	if err != nil {
		return nil, err
	}
	stored, err := s.SettingsFields(ctx)
	if err != nil {
		return nil, err
	}
	return record.MergeFields(defaults, stored), nil
}

// Write encodes b as indented JSON.
func Write(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return nil
}

// Read decodes a bundle.
func Read(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version > Version {
		return nil, fmt.Errorf("%w: %d (newest known is %d)", ErrUnsupportedVersion, b.Version, Version)
	}
	return &b, nil
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Wipe clears every collection before importing. Settings are kept and
	// merged with the bundle's.
	Wipe bool

	// IDs generates ids for media split out of legacy inline photos.
	IDs record.IDGenerator
}

// ImportResult counts what was written.
type ImportResult struct {
	Traps        int `json:"traps"`
	Inspections  int `json:"inspections"`
	Alerts       int `json:"alerts"`
	Messages     int `json:"messages"`
	Media        int `json:"media"`
	Outbox       int `json:"outbox"`
	LegacyPhotos int `json:"legacyPhotos"`
}

// Import writes the bundle's records into s in one transaction, parents
// before children. The wipe and the settings merge share that transaction,
// so a bundle with a dangling reference neither writes nor deletes anything.
// Inline photos are moved into media records the way the schema migration
// does it.
func Import(ctx context.Context, s *store.Store, b *Bundle, opts ImportOptions) (ImportResult, error) {
	ids := opts.IDs
	if ids == nil {
		ids = record.UUIDv7IDs{}
	}

	var recs []record.Record
	var res ImportResult
	for _, t := range b.Traps {
		recs = append(recs, t)
		res.Traps++
	}

	var legacy []record.Record
	for _, bi := range b.Inspections {
		insp := bi.Inspection
		if bi.PhotoDataURL != "" {
			createdAt := insp.Date
			if createdAt == "" {
				createdAt = b.ExportedAt
			}
			m := record.Media{
				ID:           ids.NewID(record.PrefixMedia),
				InspectionID: insp.ID,
				TrapID:       insp.TrapID,
				Kind:         record.MediaKindImage,
				DataURL:      bi.PhotoDataURL,
				CreatedAt:    createdAt,
				Note:         "legacy-photo",
			}
			insp.MediaIDs = append(insp.MediaIDs, m.ID)
			legacy = append(legacy, m)
			res.LegacyPhotos++
		}
		recs = append(recs, insp)
		res.Inspections++
	}
	for _, a := range b.Alerts {
		recs = append(recs, a)
		res.Alerts++
	}
	for _, m := range b.Messages {
		recs = append(recs, m)
		res.Messages++
	}
	for _, m := range b.Media {
		recs = append(recs, m)
		res.Media++
	}
	recs = append(recs, legacy...)
	res.Media += len(legacy)
	for _, o := range b.Outbox {
		recs = append(recs, o)
		res.Outbox++
	}

	batch := store.Batch{Wipe: opts.Wipe, Records: recs, Settings: b.Settings}
	if err := s.Commit(ctx, batch); err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}

	slog.Info("bundle imported", "version", b.Version, "wipe", opts.Wipe,
		"traps", res.Traps, "inspections", res.Inspections, "media", res.Media)
	return res, nil
}
