package resolve

import (
	"sort"
	"strconv"
	"strings"

	"arxcore/core/entity"
)

// Options configures one resolution run.
type Options struct {
	// Strategy selects the resolution algorithm.
	Strategy Strategy

	// OursPriority and TheirsPriority order the two sides for
	// priority-wins resolution and for tie-breaking. Higher wins.
	OursPriority   int
	TheirsPriority int

	// DeleteWins overrides the default keep behaviour for delete-modify
	// conflicts: when set, the deletion is applied instead.
	DeleteWins bool
}

// oursWins reports whether ours is the higher-priority side. Equal
// priorities favour ours, the locally committed state.
func (o Options) oursWins() bool {
	return o.OursPriority >= o.TheirsPriority
}

// Resolve merges theirs into ours relative to their common ancestor and
// returns the merged snapshot plus the conflicts encountered. Any of the
// three snapshots may be nil, which is treated as empty. Resolution never
// fails: the merged snapshot is always usable, and callers decide whether
// unresolved conflicts block the commit.
func Resolve(ancestor, ours, theirs *entity.Snapshot, opts Options) (*entity.Snapshot, []Conflict) {
	building := pickBuilding(ancestor, ours, theirs)
	merged := entity.NewSnapshot(building)
	var conflicts []Conflict

	for _, path := range unionPaths(ancestor, ours, theirs) {
		ae := get(ancestor, path)
		oe := get(ours, path)
		te := get(theirs, path)

		switch {
		case oe == nil && te == nil:
			// Deleted on both sides (or never existed): drop.

		case te == nil:
			keep, c := resolvePresence(path, ae, oe, true, opts)
			if keep != nil {
				merged.Entities[path] = keep
			}
			if c != nil {
				conflicts = append(conflicts, *c)
			}

		case oe == nil:
			keep, c := resolvePresence(path, ae, te, false, opts)
			if keep != nil {
				merged.Entities[path] = keep
			}
			if c != nil {
				conflicts = append(conflicts, *c)
			}

		default:
			out, cs := mergeEntity(path, ae, oe, te, opts)
			merged.Entities[path] = out
			conflicts = append(conflicts, cs...)
		}
	}

	return merged, conflicts
}

// resolvePresence handles an entity present on exactly one side. present
// is the surviving entity, presentIsOurs says which side it came from.
// It returns the entity to keep (nil to delete) and an optional conflict.
func resolvePresence(path string, ancestor, present *entity.Entity, presentIsOurs bool, opts Options) (*entity.Entity, *Conflict) {
	if ancestor == nil {
		// New entity on one side only: a clean add.
		return present.Clone(), nil
	}

	if len(entity.DiffEntities(ancestor, present)) == 0 {
		// The surviving side never touched it; the other side's
		// deletion applies cleanly.
		return nil, nil
	}

	// Deleted on one side, modified on the other.
	c := newConflict(path, "", ConflictDeleteModify)
	c.Ancestor = "present"
	if presentIsOurs {
		c.Ours, c.Theirs = "modified", "deleted"
	} else {
		c.Ours, c.Theirs = "deleted", "modified"
	}

	if opts.DeleteWins {
		c.Resolution = ResolutionMerged
		c.Resolved = "deleted"
		return nil, &c
	}
	c.Resolution = ResolutionUnresolved
	c.Resolved = "kept"
	return present.Clone(), &c
}

// mergeEntity merges one entity present on both sides field by field.
func mergeEntity(path string, ae, oe, te *entity.Entity, opts Options) (*entity.Entity, []Conflict) {
	out := oe.Clone()
	if te.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = te.UpdatedAt
	}

	var aFields map[string]string
	if ae != nil {
		aFields = entity.Fields(ae)
	}
	oFields := entity.Fields(oe)
	tFields := entity.Fields(te)

	var conflicts []Conflict
	for _, name := range unionFieldNames(aFields, oFields, tFields) {
		av, ov, tv := aFields[name], oFields[name], tFields[name]
		if ov == tv {
			continue // both sides agree
		}

		switch opts.Strategy {
		case StrategyNewest:
			winner, res := newestValue(oe, te, ov, tv, opts)
			setField(out, name, winner)
			c := newConflict(path, name, ConflictField)
			c.Ancestor, c.Ours, c.Theirs = av, ov, tv
			c.Resolution = res
			c.Resolved = winner
			conflicts = append(conflicts, c)

		case StrategyThreeWay:
			oursChanged := ov != av
			theirsChanged := tv != av
			switch {
			case oursChanged && !theirsChanged:
				setField(out, name, ov)
			case theirsChanged && !oursChanged:
				setField(out, name, tv)
			default:
				// Divergent change: fall back to priority for the
				// merged output, keep the disagreement on record.
				winner := tv
				if opts.oursWins() {
					winner = ov
				}
				setField(out, name, winner)
				c := newConflict(path, name, ConflictField)
				c.Ancestor, c.Ours, c.Theirs = av, ov, tv
				c.Resolution = ResolutionUnresolved
				c.Resolved = winner
				conflicts = append(conflicts, c)
			}

		default: // StrategyPriority
			winner, res := tv, ResolutionTheirs
			if opts.oursWins() {
				winner, res = ov, ResolutionOurs
			}
			setField(out, name, winner)
			c := newConflict(path, name, ConflictField)
			c.Ancestor, c.Ours, c.Theirs = av, ov, tv
			c.Resolution = res
			c.Resolved = winner
			conflicts = append(conflicts, c)
		}
	}

	return out, conflicts
}

// newestValue picks the side with the later source timestamp, breaking
// ties by priority.
func newestValue(oe, te *entity.Entity, ov, tv string, opts Options) (string, Resolution) {
	switch {
	case oe.UpdatedAt.After(te.UpdatedAt):
		return ov, ResolutionOurs
	case te.UpdatedAt.After(oe.UpdatedAt):
		return tv, ResolutionTheirs
	case opts.oursWins():
		return ov, ResolutionOurs
	default:
		return tv, ResolutionTheirs
	}
}

// setField writes a flattened field value back onto an entity. An empty
// value unsets optional fields.
func setField(e *entity.Entity, name, value string) {
	switch {
	case name == "kind":
		e.Kind = entity.Kind(value)
	case name == "status":
		e.Status = entity.Status(value)
	case name == "confidence":
		e.Confidence = entity.Confidence(value)
	case name == "room_id":
		e.RoomID = value
	case name == "position":
		if value == "" {
			e.Position = nil
		} else if p, ok := parsePoint(value); ok {
			e.Position = &p
		}
	case strings.HasPrefix(name, "prop."):
		key := strings.TrimPrefix(name, "prop.")
		if value == "" {
			delete(e.Properties, key)
		} else {
			if e.Properties == nil {
				e.Properties = map[string]string{}
			}
			e.Properties[key] = value
		}
	}
}

// parsePoint parses the "x,y,z" form produced by entity.Fields.
func parsePoint(s string) (entity.Point3D, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return entity.Point3D{}, false
	}
	var vals [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return entity.Point3D{}, false
		}
		vals[i] = f
	}
	return entity.Point3D{X: vals[0], Y: vals[1], Z: vals[2]}, true
}

func pickBuilding(snaps ...*entity.Snapshot) string {
	for _, s := range snaps {
		if s != nil && s.Building != "" {
			return s.Building
		}
	}
	return ""
}

func get(s *entity.Snapshot, path string) *entity.Entity {
	if s == nil {
		return nil
	}
	return s.Entities[path]
}

func unionPaths(snaps ...*entity.Snapshot) []string {
	seen := map[string]bool{}
	for _, s := range snaps {
		if s == nil {
			continue
		}
		for p := range s.Entities {
			seen[p] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func unionFieldNames(maps ...map[string]string) []string {
	seen := map[string]bool{}
	for _, m := range maps {
		for k := range m {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
