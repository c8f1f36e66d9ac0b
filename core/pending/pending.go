// Package pending holds equipment proposals from low-confidence sources
// (field scans, AR captures) that have not been merged into any committed
// snapshot.
//
// A proposal's lifecycle is create → confirm or reject. Confirming turns
// the proposal into an equipment entity for the caller to stage through
// the object store; rejecting discards it. Proposals never appear in
// query results: the query engine only sees committed snapshots.
//
// The registry is a single JSON file under the repository directory,
// written atomically, so proposals survive process restarts and decided
// records remain for audit.
package pending

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"arxcore/core/address"
	"arxcore/core/entity"

	"github.com/google/uuid"
)

const registryFile = "pending.json"

var (
	// ErrNotFound is returned for an unknown proposal ID.
	ErrNotFound = errors.New("pending equipment not found")

	// ErrAlreadyDecided is returned when confirming or rejecting a
	// proposal that is no longer pending.
	ErrAlreadyDecided = errors.New("pending equipment already decided")

	// ErrDuplicatePath is returned when a pending proposal already
	// exists for the same address.
	ErrDuplicatePath = errors.New("pending equipment already proposed for address")
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Equipment is one unconfirmed equipment proposal.
type Equipment struct {
	// ID uniquely identifies the proposal (not the future entity).
	ID string `json:"id"`

	// Path is the proposed canonical address.
	Path string `json:"path"`

	// Position is the observed 3D location.
	Position entity.Point3D `json:"position"`

	// Confidence grades the proposing source; field captures are low.
	Confidence entity.Confidence `json:"confidence"`

	// Note is free text from the submitter.
	Note string `json:"note,omitempty"`

	// Source names the submitting source.
	Source string `json:"source,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is when the proposal was submitted.
	CreatedAt time.Time `json:"created_at"`

	// DecidedAt and DecidedBy record the confirm/reject decision.
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`

	// Reason records why a proposal was rejected.
	Reason string `json:"reason,omitempty"`
}

// Registry is the file-backed proposal store. Safe for concurrent use.
type Registry struct {
	path string

	mu        sync.Mutex
	proposals map[string]*Equipment
}

// Load opens (or creates) the registry under the repository directory.
func Load(repoDir string) (*Registry, error) {
	r := &Registry{
		path:      filepath.Join(repoDir, registryFile),
		proposals: map[string]*Equipment{},
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	var list []*Equipment
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("corrupt pending registry %s: %w", r.path, err)
	}
	for _, p := range list {
		r.proposals[p.ID] = p
	}
	return r, nil
}

// Add validates and records a new proposal, assigning its ID. A second
// pending proposal for the same address is rejected.
func (r *Registry) Add(path string, pos entity.Point3D, conf entity.Confidence, source, note string) (*Equipment, error) {
	if _, err := address.Parse(path); err != nil {
		return nil, err
	}
	if !conf.Valid() {
		return nil, fmt.Errorf("unknown confidence %q", conf)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.proposals {
		if p.Status == StatusPending && p.Path == path {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, path)
		}
	}

	p := &Equipment{
		ID:         uuid.NewString(),
		Path:       path,
		Position:   pos,
		Confidence: conf,
		Note:       note,
		Source:     source,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	r.proposals[p.ID] = p
	if err := r.save(); err != nil {
		delete(r.proposals, p.ID)
		return nil, err
	}
	return p, nil
}

// List returns proposals with the given status, newest first. An empty
// status returns everything.
func (r *Registry) List(status Status) []*Equipment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Equipment
	for _, p := range r.proposals {
		if status == "" || p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns one proposal by ID.
func (r *Registry) Get(id string) (*Equipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

// Confirm promotes a proposal and returns the equipment entity the
// caller must stage and commit. The proposal record is kept for audit.
func (r *Registry) Confirm(id, decidedBy string) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, id, p.Status)
	}

	addr, err := address.Parse(p.Path)
	if err != nil {
		return nil, err
	}
	e := entity.New(addr, entity.KindEquipment)
	e.Status = entity.StatusUnknown
	pos := p.Position
	e.Position = &pos
	e.Confidence = p.Confidence
	if p.Note != "" {
		e.Properties["note"] = p.Note
	}
	if p.Source != "" {
		e.Properties["proposed_by"] = p.Source
	}

	now := time.Now().UTC()
	p.Status = StatusConfirmed
	p.DecidedAt = &now
	p.DecidedBy = decidedBy
	if err := r.save(); err != nil {
		p.Status = StatusPending
		p.DecidedAt = nil
		p.DecidedBy = ""
		return nil, err
	}
	return e, nil
}

// Reject discards a proposal, keeping the record for audit.
func (r *Registry) Reject(id, decidedBy, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, id, p.Status)
	}

	now := time.Now().UTC()
	p.Status = StatusRejected
	p.DecidedAt = &now
	p.DecidedBy = decidedBy
	p.Reason = reason
	if err := r.save(); err != nil {
		p.Status = StatusPending
		p.DecidedAt = nil
		p.DecidedBy = ""
		p.Reason = ""
		return err
	}
	return nil
}

// save writes the registry atomically. Callers must hold the lock.
func (r *Registry) save() error {
	list := make([]*Equipment, 0, len(r.proposals))
	for _, p := range r.proposals {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".pending-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(raw); err != nil {
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
	return os.Rename(tmpName, r.path)
}
