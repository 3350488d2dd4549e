// Package store provides SQLite-backed local storage for sentinel records.
//
// The store holds typed collections (traps, inspections, alerts, messages,
// media, outbox) plus the settings singleton:
//   - Records: JSON documents keyed by id, one table per collection
//   - Indexes: expression indexes over json_extract, queried by QueryByIndex
//   - Cascades: DeleteTrap, DeleteInspection and SaveInspection keep
//     Trap -> Inspection -> Media consistent inside one transaction
//   - Settings: a merged blob, never replaced wholesale
//
// # Lifecycle
//
// Open migrates the database to SchemaVersion before returning. While the
// upgrade runs no other access is possible; if it fails, Open returns a
// MIGRATION_FAILURE error and the database is left at its previous version.
//
// # Concurrency
//
//   - WAL mode: readers see the last committed snapshot, never a partial cascade
//   - Writes: one transaction per logical operation, serialized per collection
//   - busy_timeout=5000 and BEGIN IMMEDIATE: writers queue instead of failing
//   - foreign_keys=ON
package store
