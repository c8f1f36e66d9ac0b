package objectstore

import (
	"testing"

	"arxcore/core/address"
	"arxcore/core/entity"
	"arxcore/core/resolve"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const outletPath = "/hq-tower/floor-3/room-301/electrical/outlet-2b"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Init(t.TempDir(), "hq-tower", zap.NewNop())
	require.NoError(t, err)
	return s
}

func newOutlet(t *testing.T) *entity.Entity {
	t.Helper()
	e := entity.New(address.MustParse(outletPath), entity.KindEquipment)
	e.Status = entity.StatusNormal
	e.Position = &entity.Point3D{X: 1, Y: 2}
	e.Properties["amperage"] = "15"
	return e
}

func stageOutlet(t *testing.T, s *Store, e *entity.Entity) {
	t.Helper()
	require.NoError(t, s.Stage(&Mutation{Op: MutationAdd, Path: e.Path, Entity: e}))
}

// TestStageUnstage_Inverse tests that staging then unstaging returns the
// staging area to empty.
func TestStageUnstage_Inverse(t *testing.T) {
	s := newTestStore(t)
	stageOutlet(t, s, newOutlet(t))
	require.Len(t, s.Staged(), 1)

	removed, err := s.Unstage(outletPath)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, s.Staged())

	// Unstaging an absent path is reported, not an error.
	removed, err = s.Unstage(outletPath)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStage_Validation(t *testing.T) {
	s := newTestStore(t)

	// Malformed address.
	err := s.Stage(&Mutation{Op: MutationAdd, Path: "not-a-path", Entity: newOutlet(t)})
	assert.Error(t, err)

	// Wrong building.
	other := entity.New(address.MustParse("/annex/floor-1/room-1/electrical/outlet-1"), entity.KindEquipment)
	other.Position = &entity.Point3D{}
	err = s.Stage(&Mutation{Op: MutationAdd, Path: other.Path, Entity: other})
	assert.Error(t, err)

	// Equipment without position.
	bad := newOutlet(t)
	bad.Position = nil
	err = s.Stage(&Mutation{Op: MutationAdd, Path: bad.Path, Entity: bad})
	assert.Error(t, err)

	// Delete mutations carry no payload.
	err = s.Stage(&Mutation{Op: MutationDelete, Path: outletPath, Entity: newOutlet(t)})
	assert.Error(t, err)
}

func TestCommit_EmptyStaging(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Commit("tester", "nothing")
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestCommit_AndReadBack(t *testing.T) {
	s := newTestStore(t)
	stageOutlet(t, s, newOutlet(t))

	id, err := s.Commit("tester", "add outlet")
	require.NoError(t, err)
	assert.Empty(t, s.Staged(), "commit clears staging")

	snap, err := s.SnapshotAt(id)
	require.NoError(t, err)
	got := snap.Get(address.MustParse(outletPath))
	require.NotNil(t, got)
	assert.Equal(t, "15", got.Properties["amperage"])

	tip, err := s.Tip(DefaultBranch)
	require.NoError(t, err)
	assert.Equal(t, id, tip.ID)
	require.Len(t, tip.Parents, 1)
}

// TestHistory_Immutable tests that a committed snapshot reads back
// unchanged after later commits modify the entity.
func TestHistory_Immutable(t *testing.T) {
	s := newTestStore(t)

	first := newOutlet(t)
	stageOutlet(t, s, first)
	firstID, err := s.Commit("tester", "amperage 15")
	require.NoError(t, err)

	second := first.Clone()
	second.Properties["amperage"] = "20"
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: second.Path, Entity: second}))
	_, err = s.Commit("tester", "amperage 20")
	require.NoError(t, err)

	old, err := s.SnapshotAt(firstID)
	require.NoError(t, err)
	assert.Equal(t, "15", old.Get(address.MustParse(outletPath)).Properties["amperage"])
}

// TestCommit_NoopMutations tests that staged mutations which change
// nothing produce ErrNothingToCommit and no commit.
func TestCommit_NoopMutations(t *testing.T) {
	s := newTestStore(t)
	e := newOutlet(t)
	stageOutlet(t, s, e)
	_, err := s.Commit("tester", "add")
	require.NoError(t, err)

	// Re-stage the identical entity.
	stageOutlet(t, s, e.Clone())
	_, err = s.Commit("tester", "same again")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	history, err := s.History("", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2) // init + first commit only
}

func TestDiff_Working(t *testing.T) {
	s := newTestStore(t)
	stageOutlet(t, s, newOutlet(t))
	_, err := s.Commit("tester", "add outlet")
	require.NoError(t, err)

	changed := newOutlet(t)
	changed.Properties["amperage"] = "20"
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: changed.Path, Entity: changed}))

	changes, err := s.Diff()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, entity.OpModify, changes[0].Op)
	require.Len(t, changes[0].Fields, 1)
	assert.Equal(t, "prop.amperage", changes[0].Fields[0].Field)
	assert.Equal(t, "15", changes[0].Fields[0].Old)
	assert.Equal(t, "20", changes[0].Fields[0].New)
}

func TestHistory_AddressFilter(t *testing.T) {
	s := newTestStore(t)

	stageOutlet(t, s, newOutlet(t))
	_, err := s.Commit("tester", "add outlet")
	require.NoError(t, err)

	vav := entity.New(address.MustParse("/hq-tower/floor-3/room-301/hvac/vav-301"), entity.KindEquipment)
	vav.Status = entity.StatusNormal
	vav.Position = &entity.Point3D{X: 4}
	require.NoError(t, s.Stage(&Mutation{Op: MutationAdd, Path: vav.Path, Entity: vav}))
	_, err = s.Commit("tester", "add vav")
	require.NoError(t, err)

	hvacOnly, err := s.History("/hq-tower/**/hvac/**", 0)
	require.NoError(t, err)
	require.Len(t, hvacOnly, 1)
	assert.Equal(t, "add vav", hvacOnly[0].Message)

	limited, err := s.History("", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "add vav", limited[0].Message, "newest first")
}

func TestBranchCheckout(t *testing.T) {
	s := newTestStore(t)
	stageOutlet(t, s, newOutlet(t))
	_, err := s.Commit("tester", "add outlet")
	require.NoError(t, err)

	require.NoError(t, s.CreateBranch("field-import", ""))
	assert.ErrorIs(t, s.CreateBranch("field-import", ""), ErrBranchExists)

	require.NoError(t, s.Checkout("field-import"))
	head, err := s.Head()
	require.NoError(t, err)
	assert.Equal(t, "field-import", head)

	assert.ErrorIs(t, s.Checkout("no-such-branch"), ErrUnknownBranch)
}

func TestMerge_CleanAndConflicting(t *testing.T) {
	s := newTestStore(t)
	base := newOutlet(t)
	stageOutlet(t, s, base)
	_, err := s.Commit("tester", "base")
	require.NoError(t, err)

	// Branch changes status; main changes amperage: disjoint, clean merge.
	require.NoError(t, s.CreateBranch("field-import", ""))
	require.NoError(t, s.Checkout("field-import"))
	branched := base.Clone()
	branched.Status = entity.StatusDegraded
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: branched.Path, Entity: branched}))
	_, err = s.Commit("field", "degraded")
	require.NoError(t, err)

	require.NoError(t, s.Checkout(DefaultBranch))
	onMain := base.Clone()
	onMain.Properties["amperage"] = "20"
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: onMain.Path, Entity: onMain}))
	_, err = s.Commit("tester", "amperage 20")
	require.NoError(t, err)

	res, err := s.Merge("field-import", resolve.Options{Strategy: resolve.StrategyThreeWay}, "tester")
	require.NoError(t, err)
	require.NotEmpty(t, res.CommitID)
	assert.Empty(t, res.Conflicts)

	mergeCommit, err := s.ReadCommit(res.CommitID)
	require.NoError(t, err)
	assert.True(t, mergeCommit.IsMerge())

	merged, err := s.SnapshotAt(res.CommitID)
	require.NoError(t, err)
	got := merged.Get(address.MustParse(outletPath))
	assert.Equal(t, entity.StatusDegraded, got.Status)
	assert.Equal(t, "20", got.Properties["amperage"])
}

func TestMerge_UnresolvedConflictsBlockCommit(t *testing.T) {
	s := newTestStore(t)
	base := newOutlet(t)
	stageOutlet(t, s, base)
	_, err := s.Commit("tester", "base")
	require.NoError(t, err)

	require.NoError(t, s.CreateBranch("field-import", ""))
	require.NoError(t, s.Checkout("field-import"))
	branched := base.Clone()
	branched.Status = entity.StatusDegraded
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: branched.Path, Entity: branched}))
	_, err = s.Commit("field", "degraded")
	require.NoError(t, err)

	require.NoError(t, s.Checkout(DefaultBranch))
	onMain := base.Clone()
	onMain.Status = entity.StatusFailed
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: onMain.Path, Entity: onMain}))
	tipBefore, err := s.Commit("tester", "failed")
	require.NoError(t, err)

	res, err := s.Merge("field-import", resolve.Options{Strategy: resolve.StrategyThreeWay}, "tester")
	require.NoError(t, err)
	assert.Empty(t, res.CommitID, "no commit on unresolved conflicts")
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "status", res.Conflicts[0].Field)

	tip, err := s.Tip(DefaultBranch)
	require.NoError(t, err)
	assert.Equal(t, tipBefore, tip.ID, "branch tip unchanged")
}

func TestMerge_FastForward(t *testing.T) {
	s := newTestStore(t)
	stageOutlet(t, s, newOutlet(t))
	_, err := s.Commit("tester", "base")
	require.NoError(t, err)

	require.NoError(t, s.CreateBranch("field-import", ""))
	require.NoError(t, s.Checkout("field-import"))
	changed := newOutlet(t)
	changed.Properties["amperage"] = "20"
	require.NoError(t, s.Stage(&Mutation{Op: MutationUpdate, Path: changed.Path, Entity: changed}))
	branchTip, err := s.Commit("field", "amperage 20")
	require.NoError(t, err)

	require.NoError(t, s.Checkout(DefaultBranch))
	res, err := s.Merge("field-import", resolve.Options{Strategy: resolve.StrategyThreeWay}, "tester")
	require.NoError(t, err)
	assert.True(t, res.FastForward)
	assert.Equal(t, branchTip, res.CommitID)
}

// TestMerge_NoCommonAncestor tests that unrelated histories refuse to
// merge.
func TestMerge_NoCommonAncestor(t *testing.T) {
	s := newTestStore(t)

	// Fabricate an orphan root on a separate branch.
	orphanSnap := entity.NewSnapshot("hq-tower")
	require.NoError(t, s.writeSnapshot(orphanSnap))
	orphan := newCommit(orphanSnap.Hash(), nil, "system", "orphan root")
	require.NoError(t, s.writeCommit(orphan))
	require.NoError(t, s.writeRef("orphan", orphan.ID))

	_, err := s.Merge("orphan", resolve.Options{Strategy: resolve.StrategyThreeWay}, "tester")
	assert.ErrorIs(t, err, ErrNoCommonAncestor)
}

// TestAdvanceRef_OptimisticConcurrency tests the compare-and-swap on
// branch refs: a stale expected parent is rejected.
func TestAdvanceRef_OptimisticConcurrency(t *testing.T) {
	s := newTestStore(t)
	tip, err := s.readRef(DefaultBranch)
	require.NoError(t, err)

	ok, _, err := s.advanceRef(DefaultBranch, "stale-parent", "next")
	require.NoError(t, err)
	assert.False(t, ok, "stale parent must be rejected")

	ok, observed, err := s.advanceRef(DefaultBranch, tip, tip)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tip, observed)
}

// TestTwoSessions_SequentialCommits tests that two store handles over the
// same directory (two sessions) both land commits in parent order.
func TestTwoSessions_SequentialCommits(t *testing.T) {
	dir := t.TempDir()
	s1, err := Init(dir, "hq-tower", zap.NewNop())
	require.NoError(t, err)
	s2, err := Open(dir, zap.NewNop())
	require.NoError(t, err)

	stageOutlet(t, s1, newOutlet(t))
	first, err := s1.Commit("session-1", "add outlet")
	require.NoError(t, err)

	vav := entity.New(address.MustParse("/hq-tower/floor-3/room-301/hvac/vav-301"), entity.KindEquipment)
	vav.Status = entity.StatusNormal
	vav.Position = &entity.Point3D{X: 4}
	require.NoError(t, s2.Stage(&Mutation{Op: MutationAdd, Path: vav.Path, Entity: vav}))
	second, err := s2.Commit("session-2", "add vav")
	require.NoError(t, err)

	tip, err := s2.ReadCommit(second)
	require.NoError(t, err)
	require.Len(t, tip.Parents, 1)
	assert.Equal(t, first, tip.Parents[0])

	// Both entities present at the tip.
	snap, err := s2.TipSnapshot(DefaultBranch)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
}
