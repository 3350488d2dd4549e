package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sentinel/internal/record"
)

//go:embed schema/v1.sql
var schemaV1 string

//go:embed schema/v2.sql
var schemaV2 string

// Schema version tracking (PRAGMA user_version):
// 0 - Empty database
// 1 - traps, inspections, alerts, messages, settings
// 2 - Added media and outbox collections
// 3 - Legacy inline inspection photos moved into media records
const SchemaVersion = 3

// legacyPhotoNote marks media created from an inline inspection photo.
const legacyPhotoNote = "legacy-photo"

// migrationEnv carries what a step needs besides the transaction.
type migrationEnv struct {
	ids record.IDGenerator
	now func() time.Time
}

// migration is one version step. Steps are additive: they may add
// collections and indexes and rewrite records, never drop user data.
// Each step must be safe to run against a database that already has its
// changes (CREATE ... IF NOT EXISTS, transforms that skip migrated rows).
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx, env migrationEnv) error
}

var migrations = []migration{
	{version: 1, name: "collections", apply: migrateToV1},
	{version: 2, name: "media and outbox", apply: migrateToV2},
	{version: 3, name: "legacy inline photos", apply: migrateToV3},
}

// migrate applies every step above the on-disk version up to target.
//
// All pending steps and the version bump run in a single transaction, so
// the database either ends at target or is left exactly as it was.
func migrate(ctx context.Context, db *sql.DB, target int, ids record.IDGenerator, now func() time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return migrationFailure("migrate", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	version, err := userVersion(ctx, tx)
	if err != nil {
		return migrationFailure("migrate", err)
	}

	if version > SchemaVersion {
		return migrationFailure("migrate", fmt.Errorf(
			"database schema version %d is newer than supported version %d", version, SchemaVersion))
	}
	if version >= target {
		return nil
	}

	env := migrationEnv{ids: ids, now: now}
	for _, m := range migrations {
		if m.version <= version || m.version > target {
			continue
		}
		slog.Info("migrating schema", "from", version, "to", m.version, "step", m.name)
		if err := m.apply(ctx, tx, env); err != nil {
			return migrationFailure(fmt.Sprintf("migrate v%d", m.version), err)
		}
		version = m.version
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return migrationFailure("migrate", fmt.Errorf("set user_version: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return migrationFailure("migrate", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func userVersion(ctx context.Context, q querier) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func migrateToV1(ctx context.Context, tx *sql.Tx, _ migrationEnv) error {
	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("create v1 collections: %w", err)
	}
	return nil
}

func migrateToV2(ctx context.Context, tx *sql.Tx, _ migrationEnv) error {
	if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
		return fmt.Errorf("create v2 collections: %w", err)
	}
	return nil
}

// legacyPhoto is the part of a pre-v3 inspection document the photo
// transform reads. Every other field is carried through untouched.
type legacyPhoto struct {
	TrapID       string   `json:"trapId"`
	Date         string   `json:"date"`
	PhotoDataURL *string  `json:"photoDataUrl"`
	MediaIDs     []string `json:"mediaIds"`
}

// migrateToV3 moves inline inspection photos into media records.
//
// For every inspection document still holding photoDataUrl:
//  1. a media record carrying the payload is created, noted "legacy-photo"
//  2. its id is appended to mediaIds
//  3. photoDataUrl is removed from the document
//
// An inspection that already lists media keeps them; the inline photo is
// appended rather than dropped, so no payload is lost and no document is left
// with both mediaIds and an inline photo. An empty inline value is removed
// without creating media.
func migrateToV3(ctx context.Context, tx *sql.Tx, env migrationEnv) error {
	type pending struct {
		id   string
		data string
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, data FROM inspections
		WHERE json_type(data, '$.photoDataUrl') IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("query legacy inspections: %w", err)
	}
	var legacy []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.data); err != nil {
			rows.Close()
			return fmt.Errorf("scan legacy inspection: %w", err)
		}
		legacy = append(legacy, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate legacy inspections: %w", err)
	}
	rows.Close()

	for _, p := range legacy {
		if err := migrateLegacyPhoto(ctx, tx, env, p.id, p.data); err != nil {
			return fmt.Errorf("inspection %q: %w", p.id, err)
		}
	}

	if len(legacy) > 0 {
		slog.Info("migrated legacy inspection photos", "inspections", len(legacy))
	}
	return nil
}

func migrateLegacyPhoto(ctx context.Context, tx *sql.Tx, env migrationEnv, id, data string) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	var legacy legacyPhoto
	if err := json.Unmarshal([]byte(data), &legacy); err != nil {
		return fmt.Errorf("decode legacy fields: %w", err)
	}

	mediaIDs := legacy.MediaIDs
	if mediaIDs == nil {
		mediaIDs = []string{}
	}

	if legacy.PhotoDataURL != nil && *legacy.PhotoDataURL != "" {
		createdAt := legacy.Date
		if createdAt == "" {
			createdAt = env.now().UTC().Format(time.RFC3339)
		}
		media := record.Media{
			ID:           env.ids.NewID(record.PrefixMedia),
			InspectionID: id,
			TrapID:       legacy.TrapID,
			Kind:         record.MediaKindImage,
			DataURL:      *legacy.PhotoDataURL,
			CreatedAt:    createdAt,
			Note:         legacyPhotoNote,
		}
		if err := upsert(ctx, tx, media); err != nil {
			return err
		}
		mediaIDs = append(mediaIDs, media.ID)
	}

	ids, err := json.Marshal(mediaIDs)
	if err != nil {
		return fmt.Errorf("encode mediaIds: %w", err)
	}
	doc["mediaIds"] = ids
	delete(doc, "photoDataUrl")

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE inspections SET data = ? WHERE id = ?`, string(out), id); err != nil {
		return fmt.Errorf("update inspection: %w", err)
	}
	return nil
}
