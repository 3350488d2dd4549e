package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/sentinel/internal/record"
)

// Put upserts rec by id after normalizing and validating it.
//
// Inspections go through SaveInspection and media through AttachMedia's
// reference checks, so no caller can write a child that points at a missing
// parent. A rejected write returns CONSTRAINT_VIOLATION and persists nothing.
func (s *Store) Put(ctx context.Context, rec record.Record) error {
	switch r := rec.(type) {
	case record.Inspection:
		return s.SaveInspection(ctx, r)
	case record.Media:
		return s.putMedia(ctx, r)
	}

	rec = record.Normalize(rec)
	if err := record.Validate(rec); err != nil {
		return constraintViolation("put", rec.Collection(), rec.RecordID(), "invalid record", err)
	}

	return s.withTx(ctx, "put", []record.Collection{rec.Collection()}, func(tx *sql.Tx) error {
		return upsert(ctx, tx, rec)
	})
}

// PutAll writes every record in one transaction with the checks Put
// applies, in the order given. Either all are written or none.
func (s *Store) PutAll(ctx context.Context, recs ...record.Record) error {
	norm, cols, err := prepare("put all", recs)
	if err != nil {
		return err
	}

	return s.withTx(ctx, "put all", cols, func(tx *sql.Tx) error {
		return putAllTx(ctx, tx, norm)
	})
}

// Batch is a set of writes committed together by Commit.
type Batch struct {
	// Wipe deletes every record of every collection before Records are
	// written. WipeSettings also deletes the settings blob.
	Wipe         bool
	WipeSettings bool

	// Records are written in order with the checks Put applies.
	Records []record.Record

	// Settings are merged over the persisted blob after the records.
	Settings map[string]json.RawMessage
}

// Commit applies b in one transaction holding the locks of every
// collection it touches. A rejected record or settings blob rolls back the
// wipe too, so a failed restore leaves the store as it was.
func (s *Store) Commit(ctx context.Context, b Batch) error {
	norm, cols, err := prepare("commit", b.Records)
	if err != nil {
		return err
	}
	if b.Wipe {
		cols = append(cols, record.AllCollections...)
	}
	if b.WipeSettings || len(b.Settings) > 0 {
		cols = append(cols, record.SettingsKV)
	}

	return s.withTx(ctx, "commit", cols, func(tx *sql.Tx) error {
		if b.Wipe {
			if err := clearTx(ctx, tx, b.WipeSettings, record.AllCollections); err != nil {
				return err
			}
		} else if b.WipeSettings {
			if err := clearTx(ctx, tx, true, nil); err != nil {
				return err
			}
		}
		if err := putAllTx(ctx, tx, norm); err != nil {
			return err
		}
		if len(b.Settings) > 0 {
			return mergeSettingsTx(ctx, tx, b.Settings)
		}
		return nil
	})
}

// prepare normalizes and validates recs and returns the locks writing
// them needs.
func prepare(op string, recs []record.Record) ([]record.Record, []record.Collection, error) {
	norm := make([]record.Record, 0, len(recs))
	var cols []record.Collection
	for _, rec := range recs {
		rec = record.Normalize(rec)
		if err := record.Validate(rec); err != nil {
			return nil, nil, constraintViolation(op, rec.Collection(), rec.RecordID(), "invalid record", err)
		}
		norm = append(norm, rec)
		cols = append(cols, writeSet(rec.Collection())...)
	}
	return norm, cols, nil
}

func putAllTx(ctx context.Context, tx *sql.Tx, recs []record.Record) error {
	for _, rec := range recs {
		if err := putTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the record with id from c. Deleting an absent id succeeds.
//
// Traps and inspections are deleted through their cascades.
func (s *Store) Delete(ctx context.Context, c record.Collection, id string) error {
	switch c {
	case record.Traps:
		_, err := s.DeleteTrap(ctx, id)
		return err
	case record.Inspections:
		_, err := s.DeleteInspection(ctx, id)
		return err
	}
	if !knownCollection(c) {
		return constraintViolation("delete", c, id, "unknown collection", nil)
	}

	return s.withTx(ctx, "delete", []record.Collection{c}, func(tx *sql.Tx) error {
		_, err := deleteByID(ctx, tx, c, id)
		return err
	})
}

// Clear removes every record of the given collections and, when
// withSettings is set, the settings blob, in one transaction.
func (s *Store) Clear(ctx context.Context, withSettings bool, cols ...record.Collection) error {
	for _, c := range cols {
		if !knownCollection(c) {
			return constraintViolation("clear", c, "", "unknown collection", nil)
		}
	}
	lockCols := cols
	if withSettings {
		lockCols = append(append([]record.Collection{}, cols...), record.SettingsKV)
	}

	return s.withTx(ctx, "clear", lockCols, func(tx *sql.Tx) error {
		return clearTx(ctx, tx, withSettings, cols)
	})
}

func clearTx(ctx context.Context, tx *sql.Tx, withSettings bool, cols []record.Collection) error {
	for _, c := range cols {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c)); err != nil {
			return ioError("clear", c, "", err)
		}
	}
	if withSettings {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings`); err != nil {
			return ioError("clear", record.SettingsKV, "", err)
		}
	}
	return nil
}

// Modify reads the record of type T with id, passes it to fn and writes
// back what fn returns, all in one transaction. An absent id returns
// NOT_FOUND. An error from fn is returned unchanged and nothing is written.
func Modify[T record.Record](ctx context.Context, s *Store, id string, fn func(T) (T, error)) (T, error) {
	var zero, out T
	c := zero.Collection()

	var fnErr error
	err := s.withTx(ctx, "modify", writeSet(c), func(tx *sql.Tx) error {
		cur, found, err := getOne[T](ctx, tx, id)
		if err != nil {
			return err
		}
		if !found {
			return notFound("modify", c, id)
		}
		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return errAborted
		}
		if next.RecordID() != id {
			return constraintViolation("modify", c, id, "id changed to "+next.RecordID(), nil)
		}
		rec := record.Normalize(next)
		if err := record.Validate(rec); err != nil {
			return constraintViolation("modify", c, id, "invalid record", err)
		}
		if err := putTx(ctx, tx, rec); err != nil {
			return err
		}
		out = rec.(T)
		return nil
	})
	if fnErr != nil {
		return zero, fnErr
	}
	if err != nil {
		return zero, err
	}
	return out, nil
}

// DeleteByIndex removes every record of c whose indexed field equals value
// and returns how many were removed. Traps and inspections must be deleted
// through their cascades and are rejected here.
func (s *Store) DeleteByIndex(ctx context.Context, idx record.Index, value any) (int, error) {
	c := idx.Collection
	if c == record.Traps || c == record.Inspections {
		return 0, constraintViolation("delete by index", c, "", "use the cascading delete", nil)
	}
	if !knownIndex(idx) {
		return 0, constraintViolation("delete by index", c, "", fmt.Sprintf("no index %q on %s", idx.Name, c), nil)
	}

	var n int64
	err := s.withTx(ctx, "delete by index", []record.Collection{c}, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE json_extract(data, '$.%s') = ?`, c, idx.Field), value)
		if err != nil {
			return ioError("delete by index", c, "", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return ioError("delete by index", c, "", err)
		}
		return nil
	})
	return int(n), err
}

// upsert writes rec as a JSON document, replacing any previous version.
func upsert(ctx context.Context, q querier, rec record.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return constraintViolation("put", rec.Collection(), rec.RecordID(), "encode record", err)
	}

	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, rec.Collection()), rec.RecordID(), string(data))
	if err != nil {
		return ioError("put", rec.Collection(), rec.RecordID(), err)
	}
	return nil
}

// deleteByID removes one row and reports whether it existed.
func deleteByID(ctx context.Context, q querier, c record.Collection, id string) (bool, error) {
	res, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c), id)
	if err != nil {
		return false, ioError("delete", c, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ioError("delete", c, id, err)
	}
	return n > 0, nil
}

func knownCollection(c record.Collection) bool {
	for _, known := range record.AllCollections {
		if c == known {
			return true
		}
	}
	return false
}
