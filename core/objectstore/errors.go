package objectstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingToCommit is returned by Commit when the staging area is
	// empty or the staged mutations produce no effective change.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrNoCommonAncestor is returned by Merge when the two branches
	// share no commit history.
	ErrNoCommonAncestor = errors.New("branches have no common ancestor")

	// ErrConcurrentModification is returned when a commit loses the
	// optimistic-concurrency race more times than the retry bound allows.
	ErrConcurrentModification = errors.New("branch advanced concurrently, retries exhausted")

	// ErrUnknownBranch is returned for operations on a branch that has
	// no ref.
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrBranchExists is returned by CreateBranch for a name already
	// taken.
	ErrBranchExists = errors.New("branch already exists")

	// ErrUnknownCommit is returned when a commit hash resolves to no
	// stored object.
	ErrUnknownCommit = errors.New("unknown commit")
)

// CorruptionError reports an object that failed to load or whose content
// does not match its hash. Writes to the affected branch must halt until
// the repository is recovered from the commit DAG.
type CorruptionError struct {
	// Path is the file that failed.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("store corruption at %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
