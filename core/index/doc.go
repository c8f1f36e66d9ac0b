// Package index maintains the derived relational mirror of the latest
// committed snapshot, backed by GORM (sqlite embedded by default, MySQL
// selectable through the database configuration).
//
// Three tables mirror the object store for fast filtered queries:
//
//   - entities: one row per entity with path, type, status, position,
//     confidence and a properties blob
//   - relationships: directed edges ("feeds", "controls") between
//     equipment, derived from entity properties
//   - history: commit metadata duplicated for query performance
//
// The index is a cache, never a source of truth. After each commit it is
// updated incrementally from the commit's diff; on mismatch or corruption
// it is rebuilt in full from the latest snapshot.
package index
