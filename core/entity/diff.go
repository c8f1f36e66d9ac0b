package entity

import (
	"sort"
	"strconv"
)

// Op classifies an entity-level change between two snapshots.
type Op string

const (
	// OpAdd means the entity exists only in the newer snapshot.
	OpAdd Op = "add"
	// OpRemove means the entity exists only in the older snapshot.
	OpRemove Op = "remove"
	// OpModify means the entity exists in both with differing fields.
	OpModify Op = "modify"
)

// FieldChange records one field-level difference on an entity.
// Comparison is per field, not per document, so conflict granularity
// stays at the property level.
type FieldChange struct {
	// Field is the flattened field name ("status", "position",
	// "prop.amperage", ...).
	Field string `json:"field"`

	// Old is the value in the older snapshot ("" when added).
	Old string `json:"old"`

	// New is the value in the newer snapshot ("" when removed).
	New string `json:"new"`
}

// Change records one entity-level difference between two snapshots.
type Change struct {
	// Path is the canonical address of the changed entity.
	Path string `json:"path"`

	// Op is the change class.
	Op Op `json:"op"`

	// Fields lists the field-level differences for OpModify changes.
	Fields []FieldChange `json:"fields,omitempty"`
}

// Fields flattens an entity's comparable fields into name/value pairs.
// Timestamps and the entity ID are excluded: they carry provenance, not
// content, and including them would make every re-import look changed.
func Fields(e *Entity) map[string]string {
	out := map[string]string{
		"kind":       string(e.Kind),
		"status":     string(e.Status),
		"confidence": string(e.Confidence),
	}
	if e.Position != nil {
		out["position"] = formatPoint(*e.Position)
	}
	if e.RoomID != "" {
		out["room_id"] = e.RoomID
	}
	for k, v := range e.Properties {
		out["prop."+k] = v
	}
	return out
}

func formatPoint(p Point3D) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + "," +
		strconv.FormatFloat(p.Y, 'g', -1, 64) + "," +
		strconv.FormatFloat(p.Z, 'g', -1, 64)
}

// DiffEntities compares two entities field by field and returns the
// differences sorted by field name. Both entities must be non-nil.
func DiffEntities(old, new *Entity) []FieldChange {
	oldFields := Fields(old)
	newFields := Fields(new)

	names := map[string]bool{}
	for k := range oldFields {
		names[k] = true
	}
	for k := range newFields {
		names[k] = true
	}

	var changes []FieldChange
	for name := range names {
		ov, nv := oldFields[name], newFields[name]
		if ov != nv {
			changes = append(changes, FieldChange{Field: name, Old: ov, New: nv})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// Diff compares two snapshots and returns entity-level changes sorted by
// path. Either side may be nil, which is treated as an empty snapshot.
func Diff(old, new *Snapshot) []Change {
	paths := map[string]bool{}
	if old != nil {
		for p := range old.Entities {
			paths[p] = true
		}
	}
	if new != nil {
		for p := range new.Entities {
			paths[p] = true
		}
	}

	var changes []Change
	for p := range paths {
		var oe, ne *Entity
		if old != nil {
			oe = old.Entities[p]
		}
		if new != nil {
			ne = new.Entities[p]
		}
		switch {
		case oe == nil:
			changes = append(changes, Change{Path: p, Op: OpAdd})
		case ne == nil:
			changes = append(changes, Change{Path: p, Op: OpRemove})
		default:
			if fields := DiffEntities(oe, ne); len(fields) > 0 {
				changes = append(changes, Change{Path: p, Op: OpModify, Fields: fields})
			}
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
