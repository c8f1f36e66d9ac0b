package resolve

import (
	"testing"
	"time"

	"arxcore/core/address"
	"arxcore/core/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outletPath = "/hq-tower/floor-3/room-301/electrical/outlet-2b"

func baseSnapshot(t *testing.T) *entity.Snapshot {
	t.Helper()
	snap := entity.NewSnapshot("hq-tower")
	e := entity.New(address.MustParse(outletPath), entity.KindEquipment)
	e.Status = entity.StatusNormal
	e.Position = &entity.Point3D{X: 1, Y: 2}
	e.Properties["amperage"] = "15"
	require.NoError(t, snap.Put(e))
	return snap
}

// TestResolve_DisjointFieldChanges tests that changes to different fields
// on the two sides merge with zero conflicts and both changes present.
func TestResolve_DisjointFieldChanges(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := ancestor.Clone()

	addr := address.MustParse(outletPath)
	ours.Get(addr).Properties["amperage"] = "20"
	theirs.Get(addr).Status = entity.StatusDegraded

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{Strategy: StrategyThreeWay})

	assert.Empty(t, conflicts)
	got := merged.Entities[outletPath]
	require.NotNil(t, got)
	assert.Equal(t, "20", got.Properties["amperage"])
	assert.Equal(t, entity.StatusDegraded, got.Status)
}

// TestResolve_IdenticalChanges tests that both sides changing a field to
// the same value produces zero conflicts.
func TestResolve_IdenticalChanges(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := ancestor.Clone()

	addr := address.MustParse(outletPath)
	ours.Get(addr).Properties["amperage"] = "20"
	theirs.Get(addr).Properties["amperage"] = "20"

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{Strategy: StrategyThreeWay})

	assert.Empty(t, conflicts)
	assert.Equal(t, "20", merged.Entities[outletPath].Properties["amperage"])
}

// TestResolve_DivergentChange tests that divergent changes to the same
// field produce exactly one conflict naming that field, with the merged
// value falling back to the higher-priority side.
func TestResolve_DivergentChange(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := ancestor.Clone()

	addr := address.MustParse(outletPath)
	ours.Get(addr).Status = entity.StatusNormal
	theirs.Get(addr).Status = entity.StatusDegraded
	ours.Get(addr).Properties["amperage"] = "18"
	theirs.Get(addr).Properties["amperage"] = "18" // identical, must not conflict

	// Ancestor status differs from both sides.
	ancestor.Get(addr).Status = entity.StatusUnknown

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{
		Strategy:       StrategyThreeWay,
		OursPriority:   1,
		TheirsPriority: 5,
	})

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "status", c.Field)
	assert.Equal(t, ConflictField, c.Type)
	assert.Equal(t, outletPath, c.Path)
	assert.True(t, c.Unresolved())
	assert.Equal(t, string(entity.StatusUnknown), c.Ancestor)
	assert.Equal(t, string(entity.StatusNormal), c.Ours)
	assert.Equal(t, string(entity.StatusDegraded), c.Theirs)

	// Higher-priority side (theirs) supplies the merged value.
	assert.Equal(t, entity.StatusDegraded, merged.Entities[outletPath].Status)
	assert.Equal(t, "18", merged.Entities[outletPath].Properties["amperage"])
}

// TestResolve_AddOnOneSide tests that entities present in only one side
// are added without conflict.
func TestResolve_AddOnOneSide(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := ancestor.Clone()

	panel := entity.New(address.MustParse("/hq-tower/floor-3/room-301/electrical/panel-a"), entity.KindEquipment)
	panel.Status = entity.StatusNormal
	panel.Position = &entity.Point3D{X: 5}
	require.NoError(t, theirs.Put(panel))

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{Strategy: StrategyThreeWay})

	assert.Empty(t, conflicts)
	assert.Equal(t, 2, merged.Len())
}

// TestResolve_CleanDelete tests that a deletion on one side with no
// modification on the other applies cleanly.
func TestResolve_CleanDelete(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := entity.NewSnapshot("hq-tower")

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{Strategy: StrategyThreeWay})

	assert.Empty(t, conflicts)
	assert.Equal(t, 0, merged.Len())
}

// TestResolve_DeleteModify tests that delete-versus-modify is flagged and
// defaults to keeping the modified entity.
func TestResolve_DeleteModify(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := entity.NewSnapshot("hq-tower")

	addr := address.MustParse(outletPath)
	ours.Get(addr).Properties["amperage"] = "20"

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{Strategy: StrategyThreeWay})

	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictDeleteModify, conflicts[0].Type)
	assert.Equal(t, outletPath, conflicts[0].Path)
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, "20", merged.Entities[outletPath].Properties["amperage"])

	// DeleteWins overrides the keep default.
	merged, conflicts = Resolve(ancestor, ours, theirs, Options{Strategy: StrategyThreeWay, DeleteWins: true})
	require.Len(t, conflicts, 1)
	assert.Equal(t, 0, merged.Len())
}

// TestResolve_PriorityWins tests that priority-wins takes the winner's
// value for every disagreeing field with no partial merge.
func TestResolve_PriorityWins(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := ancestor.Clone()

	addr := address.MustParse(outletPath)
	ours.Get(addr).Status = entity.StatusDegraded
	ours.Get(addr).Properties["amperage"] = "20"
	theirs.Get(addr).Status = entity.StatusFailed
	theirs.Get(addr).Properties["amperage"] = "30"

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{
		Strategy:       StrategyPriority,
		OursPriority:   10,
		TheirsPriority: 1,
	})

	got := merged.Entities[outletPath]
	assert.Equal(t, entity.StatusDegraded, got.Status)
	assert.Equal(t, "20", got.Properties["amperage"])

	// Both disagreements are on record, resolved to ours.
	require.Len(t, conflicts, 2)
	for _, c := range conflicts {
		assert.Equal(t, ResolutionOurs, c.Resolution)
		assert.False(t, c.Unresolved())
	}
}

// TestResolve_NewestWins tests per-field newest-wins with a priority
// tie-break.
func TestResolve_NewestWins(t *testing.T) {
	ancestor := baseSnapshot(t)
	ours := ancestor.Clone()
	theirs := ancestor.Clone()

	addr := address.MustParse(outletPath)
	ours.Get(addr).Properties["amperage"] = "20"
	ours.Get(addr).UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	theirs.Get(addr).Properties["amperage"] = "30"
	theirs.Get(addr).UpdatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	merged, conflicts := Resolve(ancestor, ours, theirs, Options{Strategy: StrategyNewest})

	assert.Equal(t, "30", merged.Entities[outletPath].Properties["amperage"])
	require.Len(t, conflicts, 1)
	assert.Equal(t, ResolutionTheirs, conflicts[0].Resolution)

	// Tie on timestamps: priority breaks it.
	theirs.Get(addr).UpdatedAt = ours.Get(addr).UpdatedAt
	merged, _ = Resolve(ancestor, ours, theirs, Options{
		Strategy:       StrategyNewest,
		OursPriority:   1,
		TheirsPriority: 2,
	})
	assert.Equal(t, "30", merged.Entities[outletPath].Properties["amperage"])
}

// TestResolve_NoAncestor tests that resolution works with a nil ancestor
// (treated as empty).
func TestResolve_NoAncestor(t *testing.T) {
	ours := baseSnapshot(t)
	theirs := baseSnapshot(t)

	merged, _ := Resolve(nil, ours, theirs, Options{Strategy: StrategyThreeWay})
	assert.Equal(t, 1, merged.Len())
}
