// Package entity defines the building data model: the typed entities
// (buildings, floors, rooms, equipment), the immutable Snapshot trees they
// form, and the field-level diff primitives shared by the object store and
// the merge machinery.
//
// # Entities
//
// Every entity carries a stable UUID assigned at creation, an address from
// core/address, a status, free-form key/value properties and timestamps.
// Equipment additionally carries a 3D position, a provenance confidence
// grade, and an optional weak back-reference to its room.
//
// # Snapshots
//
// A Snapshot is the unit committed into the object store: the complete set
// of entities of one building at one point in time, keyed by canonical
// address. Snapshots are content-addressed; Hash returns a deterministic
// SHA-256 over the canonical JSON encoding, so identical trees always hash
// identically regardless of insertion order.
//
// # Diffing
//
// Diff compares two snapshots entity by entity and field by field. The
// object store uses it to report working-tree changes, and the conflict
// resolver uses it to isolate true three-way conflicts. Timestamps are
// deliberately excluded from comparison so that re-importing unchanged
// external data never produces spurious changes.
package entity
