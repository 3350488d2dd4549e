package store

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"

	"github.com/roach88/sentinel/internal/record"
)

// Every operation in this file keeps Trap -> Inspection -> Media consistent:
//   - an inspection's trapId always names an existing trap
//   - a media record's trapId always equals its inspection's trapId
//   - no media outlives its inspection, no inspection outlives its trap
//
// Each operation is one transaction. If any step fails nothing is committed
// and the caller may re-invoke the same operation; deleting an already
// deleted record is a no-op.

// CascadeResult reports what a cascading delete removed.
type CascadeResult struct {
	Traps       int `json:"traps"`
	Inspections int `json:"inspections"`
	Media       int `json:"media"`
}

// DeleteTrap removes the trap, every inspection with its trapId, and every
// media record owned by those inspections.
func (s *Store) DeleteTrap(ctx context.Context, trapID string) (CascadeResult, error) {
	var res CascadeResult
	cols := []record.Collection{record.Traps, record.Inspections, record.MediaItems}

	err := s.withTx(ctx, "delete trap", cols, func(tx *sql.Tx) error {
		res = CascadeResult{}

		insps, err := queryIndex[record.Inspection](ctx, tx, record.InspectionsByTrapID, trapID)
		if err != nil {
			return err
		}
		for _, insp := range insps {
			n, err := deleteOwnedMedia(ctx, tx, insp.ID)
			if err != nil {
				return err
			}
			res.Media += n
			if _, err := deleteByID(ctx, tx, record.Inspections, insp.ID); err != nil {
				return err
			}
			res.Inspections++
		}

		// Media still carrying this trapId belong to inspections that were
		// already gone; they are unreachable once the trap is.
		stray, err := queryIndex[record.Media](ctx, tx, record.MediaByTrapID, trapID)
		if err != nil {
			return err
		}
		for _, m := range stray {
			if _, err := deleteByID(ctx, tx, record.MediaItems, m.ID); err != nil {
				return err
			}
			res.Media++
		}

		deleted, err := deleteByID(ctx, tx, record.Traps, trapID)
		if err != nil {
			return err
		}
		if deleted {
			res.Traps = 1
		}
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}

	slog.Debug("trap deleted", "trap_id", trapID, "inspections", res.Inspections, "media", res.Media)
	return res, nil
}

// DeleteInspection removes the inspection and every media record it owns.
func (s *Store) DeleteInspection(ctx context.Context, inspectionID string) (CascadeResult, error) {
	var res CascadeResult
	cols := []record.Collection{record.Inspections, record.MediaItems}

	err := s.withTx(ctx, "delete inspection", cols, func(tx *sql.Tx) error {
		res = CascadeResult{}

		// Media left behind by an interrupted caller are removed even when
		// the inspection itself is already gone.
		n, err := deleteOwnedMedia(ctx, tx, inspectionID)
		if err != nil {
			return err
		}
		res.Media = n

		deleted, err := deleteByID(ctx, tx, record.Inspections, inspectionID)
		if err != nil {
			return err
		}
		if deleted {
			res.Inspections = 1
		}
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}

	slog.Debug("inspection deleted", "inspection_id", inspectionID, "media", res.Media)
	return res, nil
}

// deleteOwnedMedia removes the media whose inspectionId is inspectionID.
// An id listed in MediaIDs alone is not ownership: it may name media that
// has since moved to another inspection. Runs before the inspection row goes.
func deleteOwnedMedia(ctx context.Context, tx *sql.Tx, inspectionID string) (int, error) {
	owned, err := queryIndex[record.Media](ctx, tx, record.MediaByInspectionID, inspectionID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range owned {
		deleted, err := deleteByID(ctx, tx, record.MediaItems, m.ID)
		if err != nil {
			return 0, err
		}
		if deleted {
			n++
		}
	}
	return n, nil
}

// releaseMedia drops mediaID from the MediaIDs of prevOwner, the inspection
// a media record is leaving. A missing prevOwner is not an error.
func releaseMedia(ctx context.Context, tx *sql.Tx, prevOwner, mediaID string) error {
	prev, found, err := getOne[record.Inspection](ctx, tx, prevOwner)
	if err != nil || !found {
		return err
	}
	if !slices.Contains(prev.MediaIDs, mediaID) {
		return nil
	}
	prev.MediaIDs = slices.DeleteFunc(slices.Clone(prev.MediaIDs), func(id string) bool { return id == mediaID })
	return upsert(ctx, tx, prev)
}

// SaveInspection upserts an inspection.
//
// The trap it names must exist, otherwise CONSTRAINT_VIOLATION is returned
// and nothing is written. When an edit moves the inspection to another trap,
// the trapId of every media it owns is rewritten in the same transaction.
// Media that point at the inspection but are no longer listed in MediaIDs
// are deleted: MediaIDs is the only link an inspection has to its media.
// Listing media owned by another inspection moves it here, and the id is
// dropped from the previous owner's MediaIDs.
func (s *Store) SaveInspection(ctx context.Context, insp record.Inspection) error {
	insp = insp.Normalize()
	if err := record.Validate(insp); err != nil {
		return constraintViolation("save inspection", record.Inspections, insp.ID, "invalid record", err)
	}

	return s.withTx(ctx, "save inspection", writeSet(record.Inspections), func(tx *sql.Tx) error {
		return saveInspection(ctx, tx, insp)
	})
}

func saveInspection(ctx context.Context, tx *sql.Tx, insp record.Inspection) error {
	ok, err := exists(ctx, tx, record.Traps, insp.TrapID)
	if err != nil {
		return err
	}
	if !ok {
		return constraintViolation("save inspection", record.Inspections, insp.ID,
			"trap "+insp.TrapID+" does not exist", nil)
	}

	linked := make(map[string]bool, len(insp.MediaIDs))
	for _, id := range insp.MediaIDs {
		linked[id] = true
	}

	owned, err := queryIndex[record.Media](ctx, tx, record.MediaByInspectionID, insp.ID)
	if err != nil {
		return err
	}
	for _, m := range owned {
		if !linked[m.ID] {
			if _, err := deleteByID(ctx, tx, record.MediaItems, m.ID); err != nil {
				return err
			}
			continue
		}
		if m.TrapID != insp.TrapID {
			m.TrapID = insp.TrapID
			if err := upsert(ctx, tx, m); err != nil {
				return err
			}
		}
	}

	// Listed media that still point elsewhere follow the inspection.
	for _, id := range insp.MediaIDs {
		m, found, err := getOne[record.Media](ctx, tx, id)
		if err != nil {
			return err
		}
		if !found || (m.InspectionID == insp.ID && m.TrapID == insp.TrapID) {
			continue
		}
		if m.InspectionID != insp.ID {
			if err := releaseMedia(ctx, tx, m.InspectionID, m.ID); err != nil {
				return err
			}
		}
		m.InspectionID = insp.ID
		m.TrapID = insp.TrapID
		if err := upsert(ctx, tx, m); err != nil {
			return err
		}
	}

	return upsert(ctx, tx, insp)
}

// AttachMedia stores m and appends its id to the owning inspection's
// MediaIDs in one transaction. InspectionID must name an existing
// inspection; TrapID is taken from it.
func (s *Store) AttachMedia(ctx context.Context, m record.Media) (record.Media, error) {
	m = m.Normalize()
	if m.ID == "" {
		m.ID = s.ids.NewID(record.PrefixMedia)
	}

	cols := []record.Collection{record.Inspections, record.MediaItems}
	err := s.withTx(ctx, "attach media", cols, func(tx *sql.Tx) error {
		insp, found, err := getOne[record.Inspection](ctx, tx, m.InspectionID)
		if err != nil {
			return err
		}
		if !found {
			return constraintViolation("attach media", record.MediaItems, m.ID,
				"inspection "+m.InspectionID+" does not exist", nil)
		}
		m.TrapID = insp.TrapID
		if err := record.Validate(m); err != nil {
			return constraintViolation("attach media", record.MediaItems, m.ID, "invalid record", err)
		}
		if err := upsert(ctx, tx, m); err != nil {
			return err
		}
		if !slices.Contains(insp.MediaIDs, m.ID) {
			insp.MediaIDs = append(insp.MediaIDs, m.ID)
			return upsert(ctx, tx, insp)
		}
		return nil
	})
	if err != nil {
		return record.Media{}, err
	}
	return m, nil
}

// putMedia upserts a media record whose inspection already exists and
// whose trapId matches it. Used by Put, e.g. when restoring a bundle.
func (s *Store) putMedia(ctx context.Context, m record.Media) error {
	m = m.Normalize()
	if err := record.Validate(m); err != nil {
		return constraintViolation("put", record.MediaItems, m.ID, "invalid record", err)
	}

	return s.withTx(ctx, "put", writeSet(record.MediaItems), func(tx *sql.Tx) error {
		return putMediaTx(ctx, tx, m)
	})
}

func putMediaTx(ctx context.Context, tx *sql.Tx, m record.Media) error {
	insp, found, err := getOne[record.Inspection](ctx, tx, m.InspectionID)
	if err != nil {
		return err
	}
	if !found {
		return constraintViolation("put", record.MediaItems, m.ID,
			"inspection "+m.InspectionID+" does not exist", nil)
	}
	if insp.TrapID != m.TrapID {
		return constraintViolation("put", record.MediaItems, m.ID,
			"trapId does not match inspection "+insp.ID, nil)
	}

	prev, found, err := getOne[record.Media](ctx, tx, m.ID)
	if err != nil {
		return err
	}
	if found && prev.InspectionID != m.InspectionID {
		if err := releaseMedia(ctx, tx, prev.InspectionID, m.ID); err != nil {
			return err
		}
	}
	return upsert(ctx, tx, m)
}

// writeSet returns the collections a write to c must lock.
func writeSet(c record.Collection) []record.Collection {
	switch c {
	case record.Inspections:
		return []record.Collection{record.Traps, record.Inspections, record.MediaItems}
	case record.MediaItems:
		return []record.Collection{record.Inspections, record.MediaItems}
	default:
		return []record.Collection{c}
	}
}

// putTx writes rec inside tx with the same checks Put applies.
// rec must already be normalized and validated.
func putTx(ctx context.Context, tx *sql.Tx, rec record.Record) error {
	switch r := rec.(type) {
	case record.Inspection:
		return saveInspection(ctx, tx, r)
	case record.Media:
		return putMediaTx(ctx, tx, r)
	default:
		return upsert(ctx, tx, rec)
	}
}
