package resolve

import (
	"time"

	"github.com/google/uuid"
)

// Strategy selects the resolution algorithm for a source.
type Strategy string

const (
	// StrategyPriority takes the higher-priority side's value for every
	// disagreeing field.
	StrategyPriority Strategy = "priority-wins"

	// StrategyNewest takes, per field, the side with the later source
	// timestamp; ties break by priority.
	StrategyNewest Strategy = "newest-wins"

	// StrategyThreeWay compares each field against the common ancestor
	// and only flags fields both sides changed divergently.
	StrategyThreeWay Strategy = "three-way"
)

// Valid reports whether the strategy is one of the known algorithms.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyNewest, StrategyThreeWay:
		return true
	default:
		return false
	}
}

// ConflictType classifies a conflict record.
type ConflictType string

const (
	// ConflictField marks divergent changes to the same field.
	ConflictField ConflictType = "field"

	// ConflictDeleteModify marks an entity deleted on one side and
	// modified on the other.
	ConflictDeleteModify ConflictType = "delete-modify"
)

// Resolution is the outcome recorded on a conflict.
type Resolution string

const (
	ResolutionOurs       Resolution = "ours"
	ResolutionTheirs     Resolution = "theirs"
	ResolutionMerged     Resolution = "merged"
	ResolutionUnresolved Resolution = "unresolved"
)

// Conflict is an append-only audit record of divergent values for one
// entity field across two competing states. Never mutated after creation.
type Conflict struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// Path is the canonical address of the affected entity.
	Path string `json:"path"`

	// Field names the disagreeing field; empty for delete-modify
	// conflicts, which concern the whole entity.
	Field string `json:"field,omitempty"`

	// Type classifies the conflict.
	Type ConflictType `json:"type"`

	// Ancestor, Ours and Theirs are the competing values.
	Ancestor string `json:"ancestor"`
	Ours     string `json:"ours"`
	Theirs   string `json:"theirs"`

	// Resolution records how the merged output was chosen.
	Resolution Resolution `json:"resolution"`

	// Resolved is the value written to the merged snapshot.
	Resolved string `json:"resolved"`

	// DetectedAt is when the conflict was found.
	DetectedAt time.Time `json:"detected_at"`
}

// Unresolved reports whether the conflict still needs manual attention.
func (c Conflict) Unresolved() bool {
	return c.Resolution == ResolutionUnresolved
}

func newConflict(path, field string, typ ConflictType) Conflict {
	return Conflict{
		ID:         uuid.NewString(),
		Path:       path,
		Field:      field,
		Type:       typ,
		DetectedAt: time.Now().UTC(),
	}
}
