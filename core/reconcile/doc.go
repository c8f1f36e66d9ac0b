// Package reconcile runs the continuous loop that folds external source
// state into the object store.
//
// Each registered source cycles through extract → merge → apply. The
// driver extracts the source's desired snapshot under a deadline; the
// resolver three-way merges it against the branch tip relative to the
// source's last reconciled snapshot (its ancestor); the resulting diff is
// staged and committed. An unchanged source input produces zero commits.
//
// Cycles for one source never overlap; extracts and syncs across sources
// share a bounded worker pool. A failing source backs off exponentially
// and is disabled after repeated consecutive failures; a disabled source
// stays registered and can be re-enabled. Conflict records are appended
// to a journal under the repository directory, never rewritten.
//
// Bidirectional sources get the merged state pushed back after a commit.
// A failed push is logged and retried on the next cycle; the local commit
// stands either way.
package reconcile
