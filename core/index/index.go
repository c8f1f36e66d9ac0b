package index

import (
	"encoding/json"
	"fmt"
	"strings"

	"arxcore/core/database"
	"arxcore/core/entity"
	"arxcore/core/objectstore"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Index is the derived relational mirror. Safe for concurrent readers;
// writes are serialized by the caller (the commit path).
type Index struct {
	db  *gorm.DB
	log *zap.Logger
}

// New migrates the schema and returns the index.
func New(db *gorm.DB, log *zap.Logger) (*Index, error) {
	if err := db.AutoMigrate(&EntityRow{}, &RelationshipRow{}, &HistoryRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate index schema: %w", err)
	}
	return &Index{db: db, log: log}, nil
}

// rowFromEntity flattens an entity into its relational mirror.
func rowFromEntity(e *entity.Entity) EntityRow {
	row := EntityRow{
		Path:       e.Path,
		EntityID:   e.ID,
		Kind:       string(e.Kind),
		Status:     string(e.Status),
		Confidence: string(e.Confidence),
		RoomID:     e.RoomID,
		UpdatedAt:  e.UpdatedAt,
	}
	if e.Position != nil {
		row.HasPosition = true
		row.PosX = e.Position.X
		row.PosY = e.Position.Y
		row.PosZ = e.Position.Z
	}
	if len(e.Properties) > 0 {
		raw, _ := json.Marshal(e.Properties)
		row.Properties = string(raw)
	}
	return row
}

// ApplyCommit incrementally updates the index for one commit: upserts
// changed entities, removes deleted ones, refreshes derived edges, and
// records the commit in the history table. Cost is proportional to the
// diff, not the dataset.
func (i *Index) ApplyCommit(info objectstore.CommitInfo, changes []entity.Change, snap *entity.Snapshot) error {
	return i.db.Transaction(func(tx *gorm.DB) error {
		for _, change := range changes {
			switch change.Op {
			case entity.OpRemove:
				if err := tx.Delete(&EntityRow{}, "path = ?", change.Path).Error; err != nil {
					return err
				}
				if err := tx.Delete(&RelationshipRow{}, "from_path = ?", change.Path).Error; err != nil {
					return err
				}
			default:
				e := snap.Entities[change.Path]
				if e == nil {
					return fmt.Errorf("index: changed path %s missing from snapshot", change.Path)
				}
				row := rowFromEntity(e)
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
					return err
				}
				if err := refreshEdges(tx, e); err != nil {
					return err
				}
			}
		}
		return tx.Create(&HistoryRow{
			CommitID:  info.ID,
			Parents:   strings.Join(info.Parents, " "),
			Author:    info.Author,
			Message:   info.Message,
			Changes:   len(changes),
			CreatedAt: info.CreatedAt,
		}).Error
	})
}

// refreshEdges re-derives the relationship rows of one entity.
func refreshEdges(tx *gorm.DB, e *entity.Entity) error {
	if err := tx.Delete(&RelationshipRow{}, "from_path = ?", e.Path).Error; err != nil {
		return err
	}
	for _, kind := range relationshipProps {
		target, ok := e.Properties[kind]
		if !ok || target == "" {
			continue
		}
		edge := RelationshipRow{FromPath: e.Path, ToPath: target, Type: kind}
		if err := tx.Create(&edge).Error; err != nil {
			return err
		}
	}
	return nil
}

// RebuildFrom replaces all entity and relationship rows with the content
// of a snapshot. History rows are preserved: commits are immutable.
func (i *Index) RebuildFrom(snap *entity.Snapshot) error {
	err := i.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&EntityRow{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&RelationshipRow{}).Error; err != nil {
			return err
		}
		for _, p := range snap.Paths() {
			e := snap.Entities[p]
			row := rowFromEntity(e)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if err := refreshEdges(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	i.log.Info("Rebuilt relational index", zap.Int("entities", snap.Len()))
	return nil
}

// ColumnFilter is one SQL-translatable predicate on an entity column.
type ColumnFilter struct {
	// Column is the entities column name.
	Column string
	// Op is one of =, !=, <, <=, >, >=.
	Op string
	// Value is the comparison operand.
	Value any
}

// columns that ColumnFilter may reference.
var filterColumns = map[string]bool{
	"path":       true,
	"entity_id":  true,
	"kind":       true,
	"status":     true,
	"confidence": true,
	"room_id":    true,
	"pos_x":      true,
	"pos_y":      true,
	"pos_z":      true,
}

// FilterableColumn reports whether a column may appear in a
// ColumnFilter.
func FilterableColumn(name string) bool {
	return filterColumns[name]
}

// Search returns entity rows matching every filter, ordered by path.
func (i *Index) Search(filters []ColumnFilter) ([]EntityRow, error) {
	q := i.db.Model(&EntityRow{})
	for _, f := range filters {
		if !filterColumns[f.Column] {
			return nil, fmt.Errorf("unknown column %q", f.Column)
		}
		switch f.Op {
		case "=", "!=", "<", "<=", ">", ">=":
			q = q.Where(fmt.Sprintf("%s %s ?", f.Column, f.Op), f.Value)
		default:
			return nil, fmt.Errorf("unknown operator %q", f.Op)
		}
	}
	var rows []EntityRow
	if err := q.Order("path").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ByPaths returns the rows for the given paths, ordered by path.
func (i *Index) ByPaths(paths []string) ([]EntityRow, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var rows []EntityRow
	if err := i.db.Where("path IN ?", paths).Order("path").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ByEntityIDs returns the rows for the given entity UUIDs, ordered by
// path.
func (i *Index) ByEntityIDs(ids []string) ([]EntityRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []EntityRow
	if err := i.db.Where("entity_id IN ?", ids).Order("path").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Relationships returns the outgoing edges of one entity.
func (i *Index) Relationships(fromPath string) ([]RelationshipRow, error) {
	var rows []RelationshipRow
	if err := i.db.Where("from_path = ?", fromPath).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// History returns recorded commits, newest first. limit <= 0 means all.
func (i *Index) History(limit int) ([]HistoryRow, error) {
	q := i.db.Model(&HistoryRow{}).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []HistoryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Verify reports whether the entities table carries the expected
// columns. A mismatch after an upgrade means the mirror is stale and
// must be rebuilt from the latest snapshot.
func (i *Index) Verify() (bool, error) {
	return database.HasColumns(i.db, EntityRow{}.TableName(),
		"path", "entity_id", "kind", "status", "confidence", "room_id",
		"pos_x", "pos_y", "pos_z")
}

// Count returns the number of indexed entities.
func (i *Index) Count() (int64, error) {
	var n int64
	err := i.db.Model(&EntityRow{}).Count(&n).Error
	return n, err
}
