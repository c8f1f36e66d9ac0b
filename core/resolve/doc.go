// Package resolve implements conflict resolution between competing
// building states.
//
// Resolve takes three snapshots — the common ancestor, ours (the committed
// local state) and theirs (the desired state extracted from a source) —
// and produces a best-effort merged snapshot plus a list of Conflict
// records. Resolution never fails outright: the merged snapshot is always
// usable, and callers decide whether unresolved conflicts block a commit.
//
// Three strategies are available, selected per source:
//
//   - Priority-wins: the higher-priority side's value is taken for every
//     disagreeing field. Deterministic, no partial merge.
//   - Newest-wins: per field, the side whose entity carries the later
//     source timestamp wins; ties break by priority.
//   - Three-way: each field is compared against the ancestor. A field
//     changed on only one side merges cleanly; divergent changes emit an
//     unresolved Conflict and fall back to priority for the merged value,
//     keeping the disagreement on record for audit or manual override.
//
// Conflict records are append-only audit data: once emitted they are never
// mutated, only superseded by later resolutions.
package resolve
