// Package objectstore implements the version-controlled store for
// building snapshots: content-addressed objects, a staging area, a commit
// DAG with named branches, field-level diffing, history and three-way
// merging.
//
// # Storage Layout
//
// A repository is a directory:
//
//	objects/snapshots/<hash>   content-addressed snapshot documents
//	objects/commits/<hash>     immutable commit nodes
//	refs/heads/<branch>        branch name -> commit hash
//	HEAD                       current branch name
//	staging.json               the pending working set
//
// Objects are written to a temporary file, fsynced, then atomically
// renamed, and branch refs advance the same way; a crash mid-commit leaves
// at worst an unreferenced object, never a torn commit.
//
// # Concurrency
//
// The commit path is the single serialization point. Commits take a
// per-branch lock, and each commit carries the parent it expects; if the
// ref moved underneath (another session committed first) the staged
// mutations are rebased onto the new tip and retried a bounded number of
// times before ErrConcurrentModification surfaces.
package objectstore
