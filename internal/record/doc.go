// Package record defines the persisted entity types for sentinel.
//
// This package contains type definitions and the helpers that every writer
// shares (ids, normalization, validation). All other internal packages
// import record; record imports nothing internal.
//
// Key design constraints:
//   - Every entity implements Record and belongs to exactly one Collection
//   - JSON tags use camelCase so bundles stay compatible with field exports
//   - Nullable measurements are pointers, never sentinel zero values
//   - Legacy shapes (inline photos) do not appear here; see store/migrate.go
package record
