package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"arxcore/core/address"
	"arxcore/core/entity"
	"arxcore/core/resolve"

	"go.uber.org/zap"
)

// Stage validates a mutation and adds it to the staging area. Staging a
// path that is already staged replaces the earlier mutation.
func (s *Store) Stage(m *Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	addr, err := address.Parse(m.Path)
	if err != nil {
		return err
	}
	if addr.Building() != s.meta.Building {
		return &address.ValidationError{Input: m.Path, Reason: fmt.Sprintf("does not belong to building %q", s.meta.Building)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging.put(m)
	return s.saveStaging()
}

// Unstage removes the staged mutation for one path. It reports whether a
// mutation was present.
func (s *Store) Unstage(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.staging.remove(path)
	if !removed {
		return false, nil
	}
	return true, s.saveStaging()
}

// UnstageAll clears the staging area.
func (s *Store) UnstageAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging.clear()
	return s.saveStaging()
}

// Staged returns the pending mutations in deterministic order.
func (s *Store) Staged() []*Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staging.sorted()
}

// Head returns the current branch name.
func (s *Store) Head() (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, headFile))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Checkout switches HEAD to an existing branch. The staging area carries
// over; staged mutations apply to whatever branch is committed next.
func (s *Store) Checkout(branch string) error {
	if _, err := s.readRef(branch); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, headFile), []byte(branch))
}

// CreateBranch creates a new branch pointing at the given commit, or at
// the current tip when from is empty.
func (s *Store) CreateBranch(name, from string) error {
	if _, err := s.readRef(name); err == nil {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	if from == "" {
		head, err := s.Head()
		if err != nil {
			return err
		}
		from, err = s.readRef(head)
		if err != nil {
			return err
		}
	} else if _, err := s.ReadCommit(from); err != nil {
		return err
	}
	return s.writeRef(name, from)
}

// Tip returns the commit a branch points at.
func (s *Store) Tip(branch string) (*Commit, error) {
	id, err := s.readRef(branch)
	if err != nil {
		return nil, err
	}
	return s.ReadCommit(id)
}

// TipSnapshot returns the snapshot at a branch tip.
func (s *Store) TipSnapshot(branch string) (*entity.Snapshot, error) {
	tip, err := s.Tip(branch)
	if err != nil {
		return nil, err
	}
	return s.ReadSnapshot(tip.SnapshotHash)
}

// SnapshotAt returns the snapshot captured by a commit. Committed history
// is immutable: the returned tree is exactly what was committed.
func (s *Store) SnapshotAt(commitID string) (*entity.Snapshot, error) {
	c, err := s.ReadCommit(commitID)
	if err != nil {
		return nil, err
	}
	return s.ReadSnapshot(c.SnapshotHash)
}

// Commit snapshots the staged mutations onto the current branch tip and
// returns the new commit ID. It returns ErrNothingToCommit when the
// staging area is empty or the mutations change nothing. The commit
// carries its expected parent; if the branch advanced concurrently the
// mutations are rebased onto the new tip and retried up to the bound.
func (s *Store) Commit(author, message string) (string, error) {
	head, err := s.Head()
	if err != nil {
		return "", err
	}

	lock := s.branchLock(head)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if s.staging.empty() {
		s.mu.Unlock()
		return "", ErrNothingToCommit
	}
	s.mu.Unlock()

	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		tipID, err := s.readRef(head)
		if err != nil {
			return "", err
		}
		tip, err := s.ReadCommit(tipID)
		if err != nil {
			return "", err
		}
		base, err := s.ReadSnapshot(tip.SnapshotHash)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		next, err := s.staging.apply(base)
		s.mu.Unlock()
		if err != nil {
			return "", err
		}

		if next.Hash() == base.Hash() {
			// All staged mutations were no-ops against the tip.
			if err := s.UnstageAll(); err != nil {
				return "", err
			}
			return "", ErrNothingToCommit
		}
		if err := next.Validate(); err != nil {
			return "", err
		}

		// Write the snapshot object first, then the commit, then move
		// the ref; a crash between steps leaves only unreferenced
		// objects behind.
		if err := s.writeSnapshot(next); err != nil {
			return "", err
		}
		commit := newCommit(next.Hash(), []string{tipID}, author, message)
		if err := s.writeCommit(commit); err != nil {
			return "", err
		}

		ok, observed, err := s.advanceRef(head, tipID, commit.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			s.log.Warn("Branch advanced concurrently, rebasing staged mutations",
				zap.String("branch", head),
				zap.String("expected", tipID),
				zap.String("observed", observed),
				zap.Int("attempt", attempt+1))
			continue
		}

		if err := s.UnstageAll(); err != nil {
			return "", err
		}
		s.log.Info("Committed",
			zap.String("branch", head),
			zap.String("commit", commit.ID),
			zap.Int("entities", next.Len()))
		return commit.ID, nil
	}

	return "", ErrConcurrentModification
}

// Diff returns the field-level changes the staged mutations would apply
// to the current branch tip.
func (s *Store) Diff() ([]entity.Change, error) {
	head, err := s.Head()
	if err != nil {
		return nil, err
	}
	base, err := s.TipSnapshot(head)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	next, err := s.staging.apply(base)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return entity.Diff(base, next), nil
}

// DiffRange returns the field-level changes between two commits.
func (s *Store) DiffRange(fromID, toID string) ([]entity.Change, error) {
	from, err := s.SnapshotAt(fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.SnapshotAt(toID)
	if err != nil {
		return nil, err
	}
	return entity.Diff(from, to), nil
}

// History returns commits reachable from the current branch tip, newest
// first, optionally filtered to commits touching addresses matching the
// glob pattern. limit <= 0 means no limit.
func (s *Store) History(pattern string, limit int) ([]CommitInfo, error) {
	head, err := s.Head()
	if err != nil {
		return nil, err
	}
	tipID, err := s.readRef(head)
	if err != nil {
		return nil, err
	}

	commits, err := s.walk(tipID)
	if err != nil {
		return nil, err
	}
	sort.Slice(commits, func(i, j int) bool {
		return commits[i].CreatedAt.After(commits[j].CreatedAt)
	})

	var out []CommitInfo
	for _, c := range commits {
		if pattern != "" {
			touched, err := s.commitTouches(c, pattern)
			if err != nil {
				return nil, err
			}
			if !touched {
				continue
			}
		}
		out = append(out, c.info())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// walk collects every commit reachable from start.
func (s *Store) walk(start string) ([]*Commit, error) {
	seen := map[string]bool{}
	queue := []string{start}
	var out []*Commit
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		c, err := s.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		queue = append(queue, c.Parents...)
	}
	return out, nil
}

// commitTouches reports whether the commit changed any address matching
// the glob pattern, relative to its first parent.
func (s *Store) commitTouches(c *Commit, pattern string) (bool, error) {
	to, err := s.ReadSnapshot(c.SnapshotHash)
	if err != nil {
		return false, err
	}
	var from *entity.Snapshot
	if len(c.Parents) > 0 {
		parent, err := s.ReadCommit(c.Parents[0])
		if err != nil {
			return false, err
		}
		from, err = s.ReadSnapshot(parent.SnapshotHash)
		if err != nil {
			return false, err
		}
	}
	for _, change := range entity.Diff(from, to) {
		addr, err := address.Parse(change.Path)
		if err != nil {
			continue
		}
		ok, err := addr.Match(pattern)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// MergeResult reports the outcome of a Merge.
type MergeResult struct {
	// CommitID is the merge commit, or the fast-forward target. Empty
	// when unresolved conflicts blocked the merge.
	CommitID string

	// FastForward reports that no merge commit was needed.
	FastForward bool

	// Conflicts lists every field-level disagreement encountered,
	// resolved and unresolved alike.
	Conflicts []resolve.Conflict
}

// Merge merges another branch into the current one using the given
// resolution options. Unrelated branches fail with ErrNoCommonAncestor.
// When resolution leaves unresolved conflicts, no commit is created and
// the conflicts are returned for the caller to resolve and re-stage.
func (s *Store) Merge(other string, opts resolve.Options, author string) (*MergeResult, error) {
	head, err := s.Head()
	if err != nil {
		return nil, err
	}

	lock := s.branchLock(head)
	lock.Lock()
	defer lock.Unlock()

	oursID, err := s.readRef(head)
	if err != nil {
		return nil, err
	}
	theirsID, err := s.readRef(other)
	if err != nil {
		return nil, err
	}

	baseID, err := s.mergeBase(oursID, theirsID)
	if err != nil {
		return nil, err
	}

	switch baseID {
	case theirsID:
		// Other branch is already contained in ours.
		return &MergeResult{CommitID: oursID, FastForward: true}, nil
	case oursID:
		// Ours has not diverged: fast-forward.
		if err := s.writeRef(head, theirsID); err != nil {
			return nil, err
		}
		return &MergeResult{CommitID: theirsID, FastForward: true}, nil
	}

	base, err := s.SnapshotAt(baseID)
	if err != nil {
		return nil, err
	}
	ours, err := s.SnapshotAt(oursID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.SnapshotAt(theirsID)
	if err != nil {
		return nil, err
	}

	merged, conflicts := resolve.Resolve(base, ours, theirs, opts)
	for _, c := range conflicts {
		if c.Unresolved() {
			return &MergeResult{Conflicts: conflicts}, nil
		}
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if err := s.writeSnapshot(merged); err != nil {
		return nil, err
	}
	commit := newCommit(merged.Hash(), []string{oursID, theirsID}, author,
		fmt.Sprintf("merge %s into %s", other, head))
	if err := s.writeCommit(commit); err != nil {
		return nil, err
	}
	ok, _, err := s.advanceRef(head, oursID, commit.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConcurrentModification
	}

	s.log.Info("Merged",
		zap.String("into", head),
		zap.String("from", other),
		zap.String("commit", commit.ID),
		zap.Int("conflicts", len(conflicts)))
	return &MergeResult{CommitID: commit.ID, Conflicts: conflicts}, nil
}

// mergeBase finds the nearest common ancestor of two commits, walking
// generations breadth-first from both sides.
func (s *Store) mergeBase(aID, bID string) (string, error) {
	ancestors := map[string]bool{}
	queue := []string{aID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if ancestors[id] {
			continue
		}
		ancestors[id] = true
		c, err := s.ReadCommit(id)
		if err != nil {
			return "", err
		}
		queue = append(queue, c.Parents...)
	}

	seen := map[string]bool{}
	queue = []string{bID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if ancestors[id] {
			return id, nil
		}
		c, err := s.ReadCommit(id)
		if err != nil {
			return "", err
		}
		queue = append(queue, c.Parents...)
	}

	return "", ErrNoCommonAncestor
}
