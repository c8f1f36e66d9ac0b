package index

import (
	"encoding/json"
	"time"
)

// EntityRow mirrors one entity of the latest committed snapshot.
type EntityRow struct {
	// Path is the canonical address, the primary key.
	Path string `gorm:"primaryKey;size:512" json:"path"`

	// EntityID is the stable entity UUID.
	EntityID string `gorm:"index;size:64" json:"entity_id"`

	// Kind is the entity type (building, floor, room, system, equipment).
	Kind string `gorm:"index;size:16" json:"kind"`

	// Status is the operational state.
	Status string `gorm:"index;size:16" json:"status"`

	// HasPosition distinguishes a real origin position from no position.
	HasPosition bool `json:"has_position"`

	// PosX, PosY, PosZ are the 3D coordinates when HasPosition is set.
	PosX float64 `json:"pos_x"`
	PosY float64 `json:"pos_y"`
	PosZ float64 `json:"pos_z"`

	// Confidence grades the provenance of the entity's data.
	Confidence string `gorm:"size:16" json:"confidence"`

	// RoomID is the weak back-reference to the containing room.
	RoomID string `gorm:"size:64" json:"room_id"`

	// Properties is the free-form key/value data as a JSON blob.
	Properties string `json:"properties"`

	// UpdatedAt is the entity's source timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name regardless of GORM pluralization rules.
func (EntityRow) TableName() string { return "entities" }

// Props decodes the properties blob. A corrupt blob yields an empty map;
// the object store remains the source of truth.
func (r *EntityRow) Props() map[string]string {
	if r.Properties == "" {
		return map[string]string{}
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(r.Properties), &props); err != nil {
		return map[string]string{}
	}
	return props
}

// RelationshipRow is one directed edge between two entities, derived
// from entity properties at index time.
type RelationshipRow struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// FromPath is the source entity's address.
	FromPath string `gorm:"index;size:512" json:"from_path"`

	// ToPath is the target entity's address.
	ToPath string `gorm:"index;size:512" json:"to_path"`

	// Type is the edge kind ("feeds", "controls").
	Type string `gorm:"size:32" json:"type"`
}

// TableName pins the table name.
func (RelationshipRow) TableName() string { return "relationships" }

// relationshipProps are the property keys interpreted as edges.
var relationshipProps = []string{"feeds", "controls"}

// HistoryRow duplicates commit metadata for query performance.
type HistoryRow struct {
	// CommitID is the commit hash, the primary key.
	CommitID string `gorm:"primaryKey;size:64" json:"commit_id"`

	// Parents is the space-separated parent commit IDs.
	Parents string `gorm:"size:256" json:"parents"`

	// Author and Message mirror the commit.
	Author  string `gorm:"size:128" json:"author"`
	Message string `json:"message"`

	// Changes counts the entity-level changes the commit introduced.
	Changes int `json:"changes"`

	// CreatedAt is the commit timestamp.
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name.
func (HistoryRow) TableName() string { return "history" }
