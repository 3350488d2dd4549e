package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sentinel/internal/record"
)

// Reads run outside any transaction and see the last committed snapshot.
// They never take collection locks, so a cascade in progress is invisible
// until it commits.

// Get returns the record of type T with id.
// The bool is false, with a nil error, when no such record exists.
func Get[T record.Record](ctx context.Context, s *Store, id string) (T, bool, error) {
	var zero T
	release, err := s.enter()
	if err != nil {
		return zero, false, err
	}
	defer release()

	return getOne[T](ctx, s.db, id)
}

// GetAll returns every record of type T ordered by id.
// Returns an empty slice (not nil) for an empty collection.
func GetAll[T record.Record](ctx context.Context, s *Store) ([]T, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	var zero T
	c := zero.Collection()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY id COLLATE BINARY ASC`, c))
	if err != nil {
		return nil, ioError("get all", c, "", err)
	}
	return scanAll[T](rows, c)
}

// QueryByIndex returns every record of type T whose indexed field equals value.
// Order is by id; callers that need another order sort the result.
func QueryByIndex[T record.Record](ctx context.Context, s *Store, idx record.Index, value any) ([]T, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	return queryIndex[T](ctx, s.db, idx, value)
}

// Exists reports whether c holds a record with id.
func (s *Store) Exists(ctx context.Context, c record.Collection, id string) (bool, error) {
	release, err := s.enter()
	if err != nil {
		return false, err
	}
	defer release()

	return exists(ctx, s.db, c, id)
}

// Counts returns the number of records in every collection.
func (s *Store) Counts(ctx context.Context) (map[record.Collection]int, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	counts := make(map[record.Collection]int, len(record.AllCollections))
	for _, c := range record.AllCollections {
		var n int
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c)).Scan(&n); err != nil {
			return nil, ioError("count", c, "", err)
		}
		counts[c] = n
	}
	return counts, nil
}

func getOne[T record.Record](ctx context.Context, q querier, id string) (T, bool, error) {
	var zero T
	c := zero.Collection()

	var data string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, c), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, ioError("get", c, id, err)
	}

	var out T
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return zero, false, ioError("get", c, id, fmt.Errorf("decode record: %w", err))
	}
	return out, true, nil
}

func queryIndex[T record.Record](ctx context.Context, q querier, idx record.Index, value any) ([]T, error) {
	var zero T
	c := zero.Collection()
	if idx.Collection != c || !knownIndex(idx) {
		return nil, constraintViolation("query", c, "", fmt.Sprintf("no index %q on %s", idx.Name, c), nil)
	}

	// The expression must match the index definition in schema/*.sql
	// for SQLite to use the index.
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT data FROM %s
		WHERE json_extract(data, '$.%s') = ?
		ORDER BY id COLLATE BINARY ASC
	`, c, idx.Field), value)
	if err != nil {
		return nil, ioError("query "+idx.Name, c, "", err)
	}
	return scanAll[T](rows, c)
}

func scanAll[T record.Record](rows *sql.Rows, c record.Collection) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, ioError("scan", c, "", err)
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, ioError("scan", c, "", fmt.Errorf("decode record: %w", err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("scan", c, "", err)
	}
	return out, nil
}

func exists(ctx context.Context, q querier, c record.Collection, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, c), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioError("exists", c, id, err)
	}
	return true, nil
}

func knownIndex(idx record.Index) bool {
	for _, known := range record.Indexes {
		if idx == known {
			return true
		}
	}
	return false
}
