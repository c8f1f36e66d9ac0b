package entity

import (
	"fmt"
	"math"
	"time"

	"arxcore/core/address"

	"github.com/google/uuid"
)

// Kind identifies the entity type within a building tree.
type Kind string

const (
	KindBuilding  Kind = "building"
	KindFloor     Kind = "floor"
	KindRoom      Kind = "room"
	KindSystem    Kind = "system"
	KindEquipment Kind = "equipment"
)

// Valid reports whether the kind is one of the known entity types.
func (k Kind) Valid() bool {
	switch k {
	case KindBuilding, KindFloor, KindRoom, KindSystem, KindEquipment:
		return true
	default:
		return false
	}
}

// Status is the operational state of an entity.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
	StatusUnknown  Status = "unknown"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusNormal, StatusDegraded, StatusFailed, StatusUnknown:
		return true
	default:
		return false
	}
}

// Confidence grades the provenance strength of an entity's data.
// CAD/BIM exports are high, PDF extractions medium, field scans low.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether the confidence is one of the known grades.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Point3D is a position in building coordinates (metres).
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo returns the Euclidean distance to another point.
func (p Point3D) DistanceTo(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Entity is one node of a building tree: a building, floor, room, system
// group or piece of equipment.
type Entity struct {
	// ID is the stable identifier, assigned at creation and never reused.
	ID string `json:"id"`

	// Address locates the entity within its building hierarchy.
	Address address.Address `json:"-"`

	// Path is the canonical string form of Address, used for serialization.
	Path string `json:"path"`

	// Kind is the entity type.
	Kind Kind `json:"kind"`

	// Status is the operational state.
	Status Status `json:"status"`

	// Position is the 3D location. Required for equipment, optional for
	// containers.
	Position *Point3D `json:"position,omitempty"`

	// Confidence grades the provenance of this entity's data.
	Confidence Confidence `json:"confidence"`

	// RoomID is a weak back-reference to the containing room's ID.
	// Lookup only; it never forms an ownership edge.
	RoomID string `json:"room_id,omitempty"`

	// Properties holds free-form key/value data (amperage, model, etc).
	Properties map[string]string `json:"properties,omitempty"`

	// CreatedAt is when the entity first appeared.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the entity's data last changed at its source.
	// Newest-wins merging compares this timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an entity with a fresh UUID and both timestamps set to now.
func New(addr address.Address, kind Kind) *Entity {
	now := time.Now().UTC()
	return &Entity{
		ID:         uuid.NewString(),
		Address:    addr,
		Path:       addr.String(),
		Kind:       kind,
		Status:     StatusUnknown,
		Confidence: ConfidenceHigh,
		Properties: map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the entity's shape: address, kind, status, confidence,
// and the equipment position requirement.
func (e *Entity) Validate() error {
	if e.Address.IsZero() {
		return fmt.Errorf("entity %s: missing address", e.ID)
	}
	if e.Path != e.Address.String() {
		return fmt.Errorf("entity %s: path %q does not match address %q", e.ID, e.Path, e.Address)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("entity %s: unknown kind %q", e.Path, e.Kind)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("entity %s: unknown status %q", e.Path, e.Status)
	}
	if !e.Confidence.Valid() {
		return fmt.Errorf("entity %s: unknown confidence %q", e.Path, e.Confidence)
	}
	if e.Kind == KindEquipment && e.Position == nil {
		return fmt.Errorf("entity %s: equipment requires a position", e.Path)
	}
	return nil
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	cp := *e
	if e.Position != nil {
		pos := *e.Position
		cp.Position = &pos
	}
	if e.Properties != nil {
		cp.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}
