package objectstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"arxcore/core/entity"

	"go.uber.org/zap"
)

const (
	snapshotsDir = "objects/snapshots"
	commitsDir   = "objects/commits"
	headsDir     = "refs/heads"
	headFile     = "HEAD"
	stagingFile  = "staging.json"
	repoFile     = "repo.json"

	// DefaultBranch is the branch created by Init.
	DefaultBranch = "main"

	// maxCommitRetries bounds the optimistic-concurrency rebase loop.
	maxCommitRetries = 5
)

// repoMeta is the persisted repository descriptor.
type repoMeta struct {
	// Building is the building this repository versions.
	Building string `json:"building"`
}

// Store is a version-controlled snapshot repository rooted at a
// directory. A Store is safe for concurrent use; the commit path is
// serialized per branch.
type Store struct {
	dir  string
	meta repoMeta
	log  *zap.Logger

	mu          sync.Mutex
	branchLocks map[string]*sync.Mutex
	staging     *stagingArea
}

// Init creates a new repository at dir for the named building, with an
// empty root commit on the default branch. It fails if dir already holds
// a repository.
func Init(dir, building string, log *zap.Logger) (*Store, error) {
	if _, err := os.Stat(filepath.Join(dir, repoFile)); err == nil {
		return nil, fmt.Errorf("repository already exists at %s", dir)
	}
	for _, sub := range []string{snapshotsDir, commitsDir, headsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create repository layout: %w", err)
		}
	}

	s := &Store{
		dir:         dir,
		meta:        repoMeta{Building: building},
		log:         log,
		branchLocks: map[string]*sync.Mutex{},
		staging:     newStagingArea(),
	}

	// Root commit over an empty snapshot.
	root := entity.NewSnapshot(building)
	if err := s.writeSnapshot(root); err != nil {
		return nil, err
	}
	commit := newCommit(root.Hash(), nil, "system", "initialize repository")
	if err := s.writeCommit(commit); err != nil {
		return nil, err
	}
	if err := s.writeRef(DefaultBranch, commit.ID); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(dir, headFile), []byte(DefaultBranch)); err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(s.meta)
	if err := writeFileAtomic(filepath.Join(dir, repoFile), raw); err != nil {
		return nil, err
	}
	if err := s.saveStaging(); err != nil {
		return nil, err
	}

	log.Info("Initialized repository",
		zap.String("dir", dir),
		zap.String("building", building),
		zap.String("commit", commit.ID))
	return s, nil
}

// Open loads an existing repository from dir.
func Open(dir string, log *zap.Logger) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(dir, repoFile))
	if err != nil {
		return nil, fmt.Errorf("not a repository: %w", err)
	}
	var meta repoMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &CorruptionError{Path: filepath.Join(dir, repoFile), Err: err}
	}

	s := &Store{
		dir:         dir,
		meta:        meta,
		log:         log,
		branchLocks: map[string]*sync.Mutex{},
	}
	if err := s.loadStaging(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the repository root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Building returns the building this repository versions.
func (s *Store) Building() string {
	return s.meta.Building
}

// branchLock returns the mutex serializing commits on one branch.
func (s *Store) branchLock(branch string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.branchLocks[branch]
	if !ok {
		l = &sync.Mutex{}
		s.branchLocks[branch] = l
	}
	return l
}

// --- object storage ---

func (s *Store) writeSnapshot(snap *entity.Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	path := filepath.Join(s.dir, snapshotsDir, snap.Hash())
	if _, err := os.Stat(path); err == nil {
		return nil // content-addressed: already present
	}
	return writeFileAtomic(path, raw)
}

// ReadSnapshot loads a snapshot object by content hash and verifies it.
func (s *Store) ReadSnapshot(hash string) (*entity.Snapshot, error) {
	path := filepath.Join(s.dir, snapshotsDir, hash)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", hash, err)
	}
	var snap entity.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if err := snap.Rehydrate(); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if snap.Hash() != hash {
		return nil, &CorruptionError{Path: path, Err: errors.New("content does not match hash")}
	}
	return &snap, nil
}

func (s *Store) writeCommit(c *Commit) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode commit: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, commitsDir, c.ID), raw)
}

// ReadCommit loads a commit object by ID and verifies its hash.
func (s *Store) ReadCommit(id string) (*Commit, error) {
	path := filepath.Join(s.dir, commitsDir, id)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, id)
		}
		return nil, fmt.Errorf("commit %s: %w", id, err)
	}
	var c Commit
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if !c.verify() {
		return nil, &CorruptionError{Path: path, Err: errors.New("content does not match hash")}
	}
	return &c, nil
}

// --- refs ---

func (s *Store) refPath(branch string) string {
	return filepath.Join(s.dir, headsDir, branch)
}

// readRef returns the commit hash a branch points at.
func (s *Store) readRef(branch string) (string, error) {
	raw, err := os.ReadFile(s.refPath(branch))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrUnknownBranch, branch)
		}
		return "", err
	}
	return string(raw), nil
}

func (s *Store) writeRef(branch, commitID string) error {
	return writeFileAtomic(s.refPath(branch), []byte(commitID))
}

// advanceRef atomically moves a branch from expected to next. It returns
// false with the observed hash when another writer advanced the ref
// first. Callers must hold the branch lock.
func (s *Store) advanceRef(branch, expected, next string) (bool, string, error) {
	current, err := s.readRef(branch)
	if err != nil {
		return false, "", err
	}
	if current != expected {
		return false, current, nil
	}
	if err := s.writeRef(branch, next); err != nil {
		return false, current, err
	}
	return true, next, nil
}

// Branches lists all branch names.
func (s *Store) Branches() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, headsDir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// --- staging persistence ---

func (s *Store) saveStaging() error {
	raw, err := json.MarshalIndent(s.staging, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, stagingFile), raw)
}

func (s *Store) loadStaging() error {
	path := filepath.Join(s.dir, stagingFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.staging = newStagingArea()
			return nil
		}
		return err
	}
	staging := newStagingArea()
	if err := json.Unmarshal(raw, staging); err != nil {
		return &CorruptionError{Path: path, Err: err}
	}
	for _, m := range staging.Mutations {
		if m.Entity != nil {
			if err := m.Validate(); err != nil {
				return &CorruptionError{Path: path, Err: err}
			}
		}
	}
	s.staging = staging
	return nil
}

// writeFileAtomic writes to a temp file in the target directory, syncs
// it, then renames over the destination so readers never observe a
// partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
