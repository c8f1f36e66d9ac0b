package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"arxcore/core/address"
)

// Snapshot is an immutable tree of entities rooted at one building,
// keyed by canonical address. It is the unit committed into the object
// store and the unit exchanged with source drivers.
type Snapshot struct {
	// Building is the root building name (the first address segment
	// shared by every entity in the snapshot).
	Building string `json:"building"`

	// Entities maps canonical address strings to entities.
	Entities map[string]*Entity `json:"entities"`
}

// NewSnapshot creates an empty snapshot for the named building.
func NewSnapshot(building string) *Snapshot {
	return &Snapshot{
		Building: building,
		Entities: map[string]*Entity{},
	}
}

// Put validates the entity and inserts it, replacing any entity at the
// same address.
func (s *Snapshot) Put(e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Address.Building() != s.Building {
		return fmt.Errorf("entity %s does not belong to building %q", e.Path, s.Building)
	}
	s.Entities[e.Path] = e
	return nil
}

// Get returns the entity at the given address, or nil if absent.
func (s *Snapshot) Get(addr address.Address) *Entity {
	return s.Entities[addr.String()]
}

// Delete removes the entity at the given address. Removing an absent
// address is a no-op.
func (s *Snapshot) Delete(addr address.Address) {
	delete(s.Entities, addr.String())
}

// Len returns the number of entities.
func (s *Snapshot) Len() int {
	return len(s.Entities)
}

// Paths returns all entity addresses in canonical sorted order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Entities))
	for p := range s.Entities {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	cp := NewSnapshot(s.Building)
	for p, e := range s.Entities {
		cp.Entities[p] = e.Clone()
	}
	return cp
}

// Restrict returns a new snapshot containing only the entities matching
// the given glob pattern (see address.Match). Pass "/<building>/**" to
// select a sub-tree.
func (s *Snapshot) Restrict(pattern string) (*Snapshot, error) {
	out := NewSnapshot(s.Building)
	for p, e := range s.Entities {
		ok, err := e.Address.Match(pattern)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Entities[p] = e.Clone()
		}
	}
	return out, nil
}

// Hash returns the content hash identifying this snapshot: a SHA-256 over
// the canonical JSON encoding with entities in sorted address order.
func (s *Snapshot) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "snapshot %s\n", s.Building)
	for _, p := range s.Paths() {
		// json.Marshal sorts map keys, so property order is stable.
		raw, _ := json.Marshal(s.Entities[p])
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(raw)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks structural invariants: every entity validates on its
// own, belongs to this building, and every room back-reference resolves
// to a room present in the snapshot.
func (s *Snapshot) Validate() error {
	roomIDs := map[string]bool{}
	for _, e := range s.Entities {
		if e.Kind == KindRoom {
			roomIDs[e.ID] = true
		}
	}
	for p, e := range s.Entities {
		if err := e.Validate(); err != nil {
			return err
		}
		if p != e.Path {
			return fmt.Errorf("entity keyed at %q but addressed %q", p, e.Path)
		}
		if e.Address.Building() != s.Building {
			return fmt.Errorf("entity %s does not belong to building %q", p, s.Building)
		}
		if e.RoomID != "" && !roomIDs[e.RoomID] {
			return fmt.Errorf("entity %s references unknown room %q", p, e.RoomID)
		}
	}
	return nil
}

// Rehydrate re-derives each entity's Address from its serialized Path.
// Callers must invoke it after unmarshalling a snapshot from JSON.
func (s *Snapshot) Rehydrate() error {
	for p, e := range s.Entities {
		addr, err := address.Parse(e.Path)
		if err != nil {
			return fmt.Errorf("snapshot entity %q: %w", p, err)
		}
		e.Address = addr
	}
	return nil
}
