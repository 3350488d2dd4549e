package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sentinel/internal/record"
)

// Settings returns the persisted settings merged over the built-in defaults.
func (s *Store) Settings(ctx context.Context) (record.Settings, error) {
	release, err := s.enter()
	if err != nil {
		return record.Settings{}, err
	}
	defer release()

	fields, err := readSettingsFields(ctx, s.db)
	if err != nil {
		return record.Settings{}, err
	}
	settings, err := record.SettingsFromFields(fields)
	if err != nil {
		return record.Settings{}, ioError("get settings", record.SettingsKV, record.SettingsKey, err)
	}
	return settings, nil
}

// SettingsFields returns the persisted settings blob as stored, without
// defaults. Keys written by other builds are preserved.
func (s *Store) SettingsFields(ctx context.Context) (map[string]json.RawMessage, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	return readSettingsFields(ctx, s.db)
}

// MergeSettings overlays the set fields of patch onto the last persisted
// value and returns the result merged over defaults. Fields the patch does
// not set are never touched.
func (s *Store) MergeSettings(ctx context.Context, patch record.SettingsPatch) (record.Settings, error) {
	fields, err := patch.Fields()
	if err != nil {
		return record.Settings{}, constraintViolation("merge settings", record.SettingsKV, record.SettingsKey, "encode patch", err)
	}
	if err := s.MergeSettingsFields(ctx, fields); err != nil {
		return record.Settings{}, err
	}
	return s.Settings(ctx)
}

// MergeSettingsFields overlays raw fields onto the persisted blob.
func (s *Store) MergeSettingsFields(ctx context.Context, fields map[string]json.RawMessage) error {
	return s.withTx(ctx, "merge settings", []record.Collection{record.SettingsKV}, func(tx *sql.Tx) error {
		return mergeSettingsTx(ctx, tx, fields)
	})
}

func mergeSettingsTx(ctx context.Context, tx *sql.Tx, fields map[string]json.RawMessage) error {
	current, err := readSettingsFields(ctx, tx)
	if err != nil {
		return err
	}
	merged := record.MergeFields(current, fields)

	// Reject blobs that would not decode on the next load.
	if _, err := record.SettingsFromFields(merged); err != nil {
		return constraintViolation("merge settings", record.SettingsKV, record.SettingsKey, "invalid settings", err)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return constraintViolation("merge settings", record.SettingsKV, record.SettingsKey, "encode settings", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, record.SettingsKey, string(data))
	if err != nil {
		return ioError("merge settings", record.SettingsKV, record.SettingsKey, err)
	}
	return nil
}

func readSettingsFields(ctx context.Context, q querier) (map[string]json.RawMessage, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, record.SettingsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, ioError("get settings", record.SettingsKV, record.SettingsKey, err)
	}

	fields := map[string]json.RawMessage{}
	if value == "null" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return nil, ioError("get settings", record.SettingsKV, record.SettingsKey, fmt.Errorf("decode settings: %w", err))
	}
	return fields, nil
}
