package index

import (
	"path/filepath"
	"testing"
	"time"

	"arxcore/core/address"
	"arxcore/core/entity"
	"arxcore/core/objectstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openIndex(t *testing.T) *Index {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "index.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	idx, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return idx
}

func testEntity(t *testing.T, path string, kind entity.Kind) *entity.Entity {
	t.Helper()
	e := entity.New(address.MustParse(path), kind)
	if kind == entity.KindEquipment {
		e.Position = &entity.Point3D{X: 1, Y: 2, Z: 3}
	}
	return e
}

func TestRebuildFrom(t *testing.T) {
	idx := openIndex(t)

	snap := entity.NewSnapshot("hq-tower")
	vav := testEntity(t, "/hq-tower/floor-3/room-301/hvac/vav-301", entity.KindEquipment)
	vav.Status = entity.StatusNormal
	vav.Properties["feeds"] = "/hq-tower/floor-3/room-302/hvac/diffuser-1"
	require.NoError(t, snap.Put(vav))
	require.NoError(t, snap.Put(testEntity(t, "/hq-tower/floor-3", entity.KindFloor)))

	require.NoError(t, idx.RebuildFrom(snap))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rows, err := idx.Search([]ColumnFilter{{Column: "kind", Op: "=", Value: "equipment"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, vav.Path, rows[0].Path)
	assert.True(t, rows[0].HasPosition)
	assert.Equal(t, 1.0, rows[0].PosX)
	assert.Equal(t, "/hq-tower/floor-3/room-302/hvac/diffuser-1", rows[0].Props()["feeds"])

	edges, err := idx.Relationships(vav.Path)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "feeds", edges[0].Type)

	// Rebuild replaces rows rather than accumulating them.
	require.NoError(t, idx.RebuildFrom(snap))
	n, err = idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestApplyCommit_Incremental(t *testing.T) {
	idx := openIndex(t)

	snap := entity.NewSnapshot("hq-tower")
	pump := testEntity(t, "/hq-tower/floor-1/room-101/plumbing/pump-1", entity.KindEquipment)
	require.NoError(t, snap.Put(pump))
	require.NoError(t, idx.RebuildFrom(snap))

	// Modify the pump and add an outlet in one commit.
	next := snap.Clone()
	modified := next.Entities[pump.Path]
	modified.Status = entity.StatusFailed
	modified.Properties["controls"] = "/hq-tower/floor-1/room-101/plumbing/valve-1"
	outlet := testEntity(t, "/hq-tower/floor-1/room-101/electrical/outlet-1", entity.KindEquipment)
	require.NoError(t, next.Put(outlet))

	info := objectstore.CommitInfo{
		ID:        "c1",
		Parents:   []string{"c0"},
		Author:    "tester",
		Message:   "pump fault",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, idx.ApplyCommit(info, entity.Diff(snap, next), next))

	rows, err := idx.Search([]ColumnFilter{{Column: "status", Op: "=", Value: "failed"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pump.Path, rows[0].Path)

	edges, err := idx.Relationships(pump.Path)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "controls", edges[0].Type)

	hist, err := idx.History(0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "c1", hist[0].CommitID)
	assert.Equal(t, 2, hist[0].Changes)

	// Delete the outlet in a second commit.
	final := next.Clone()
	final.Delete(address.MustParse(outlet.Path))
	info2 := objectstore.CommitInfo{ID: "c2", Parents: []string{"c1"}, Author: "tester", Message: "remove outlet", CreatedAt: time.Now().UTC()}
	require.NoError(t, idx.ApplyCommit(info2, entity.Diff(next, final), final))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestVerify(t *testing.T) {
	idx := openIndex(t)
	ok, err := idx.Verify()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSearch_Validation(t *testing.T) {
	idx := openIndex(t)

	_, err := idx.Search([]ColumnFilter{{Column: "properties", Op: "=", Value: "x"}})
	assert.Error(t, err)

	_, err = idx.Search([]ColumnFilter{{Column: "kind", Op: "LIKE", Value: "%"}})
	assert.Error(t, err)
}

func TestByPathsAndIDs(t *testing.T) {
	idx := openIndex(t)

	snap := entity.NewSnapshot("hq-tower")
	e := testEntity(t, "/hq-tower/floor-2/room-201/hvac/ahu-1", entity.KindEquipment)
	require.NoError(t, snap.Put(e))
	require.NoError(t, idx.RebuildFrom(snap))

	rows, err := idx.ByPaths([]string{e.Path, "/hq-tower/nope"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, e.ID, rows[0].EntityID)

	rows, err = idx.ByEntityIDs([]string{e.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = idx.ByPaths(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
