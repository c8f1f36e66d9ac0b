package objectstore

import (
	"fmt"
	"sort"

	"arxcore/core/address"
	"arxcore/core/entity"
)

// MutationOp is the kind of a staged mutation.
type MutationOp string

const (
	MutationAdd    MutationOp = "add"
	MutationUpdate MutationOp = "update"
	MutationDelete MutationOp = "delete"
)

// Mutation is one pending change in the staging area. Add and Update
// carry the full entity payload; Delete carries only the path.
type Mutation struct {
	// Op is the mutation kind.
	Op MutationOp `json:"op"`

	// Path is the canonical address of the target entity.
	Path string `json:"path"`

	// Entity is the payload for add/update mutations.
	Entity *entity.Entity `json:"entity,omitempty"`
}

// Validate checks the mutation's address and payload shape.
func (m *Mutation) Validate() error {
	addr, err := address.Parse(m.Path)
	if err != nil {
		return err
	}
	switch m.Op {
	case MutationAdd, MutationUpdate:
		if m.Entity == nil {
			return fmt.Errorf("mutation %s %s: missing entity payload", m.Op, m.Path)
		}
		if m.Entity.Address.IsZero() {
			m.Entity.Address = addr
			m.Entity.Path = addr.String()
		}
		if m.Entity.Path != m.Path {
			return fmt.Errorf("mutation %s: entity addressed %q", m.Path, m.Entity.Path)
		}
		return m.Entity.Validate()
	case MutationDelete:
		if m.Entity != nil {
			return fmt.Errorf("mutation delete %s: unexpected entity payload", m.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}
}

// stagingArea is the mutable working set of pending mutations, keyed by
// path so re-staging the same target replaces the earlier mutation. It is
// owned by a single session; the store persists it across invocations.
type stagingArea struct {
	Mutations map[string]*Mutation `json:"mutations"`
}

func newStagingArea() *stagingArea {
	return &stagingArea{Mutations: map[string]*Mutation{}}
}

func (s *stagingArea) put(m *Mutation) {
	s.Mutations[m.Path] = m
}

func (s *stagingArea) remove(path string) bool {
	if _, ok := s.Mutations[path]; !ok {
		return false
	}
	delete(s.Mutations, path)
	return true
}

func (s *stagingArea) clear() {
	s.Mutations = map[string]*Mutation{}
}

func (s *stagingArea) empty() bool {
	return len(s.Mutations) == 0
}

// sorted returns the mutations in deterministic path order.
func (s *stagingArea) sorted() []*Mutation {
	paths := make([]string, 0, len(s.Mutations))
	for p := range s.Mutations {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]*Mutation, len(paths))
	for i, p := range paths {
		out[i] = s.Mutations[p]
	}
	return out
}

// apply plays the staged mutations onto a copy of base and returns the
// result. Updates to absent entities behave as adds; deletes of absent
// entities are no-ops.
func (s *stagingArea) apply(base *entity.Snapshot) (*entity.Snapshot, error) {
	next := base.Clone()
	for _, m := range s.sorted() {
		switch m.Op {
		case MutationAdd, MutationUpdate:
			if err := next.Put(m.Entity.Clone()); err != nil {
				return nil, err
			}
		case MutationDelete:
			addr, err := address.Parse(m.Path)
			if err != nil {
				return nil, err
			}
			next.Delete(addr)
		}
	}
	return next, nil
}
