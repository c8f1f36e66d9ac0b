package bimjson

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arxcore/core/address"
	"arxcore/core/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exportSnapshot(t *testing.T) *entity.Snapshot {
	t.Helper()
	snap := entity.NewSnapshot("hq-tower")

	room := entity.New(address.MustParse("/hq-tower/floor-3/room-301"), entity.KindRoom)
	require.NoError(t, snap.Put(room))

	vav := entity.New(address.MustParse("/hq-tower/floor-3/room-301/hvac/vav-301"), entity.KindEquipment)
	vav.Position = &entity.Point3D{X: 12.5, Y: 3.1, Z: 9}
	vav.Properties["amperage"] = "20"
	require.NoError(t, snap.Put(vav))
	return snap
}

func TestSyncThenExtract_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	locator := Scheme + dir
	d := New(zap.NewNop())
	require.True(t, d.CanHandle(locator))

	snap := exportSnapshot(t)
	require.NoError(t, d.Sync(context.Background(), snap, locator))

	// Documents land at address-shaped paths.
	_, err := os.Stat(filepath.Join(dir, "hq-tower", "floor-3", "room-301", "hvac", "vav-301.json"))
	require.NoError(t, err)

	got, err := d.Extract(context.Background(), locator)
	require.NoError(t, err)
	assert.Equal(t, "hq-tower", got.Building)
	assert.Equal(t, snap.Hash(), got.Hash())
}

func TestSync_PrunesRemovedEntities(t *testing.T) {
	dir := t.TempDir()
	locator := Scheme + dir
	d := New(zap.NewNop())

	snap := exportSnapshot(t)
	require.NoError(t, d.Sync(context.Background(), snap, locator))

	next := snap.Clone()
	next.Delete(address.MustParse("/hq-tower/floor-3/room-301/hvac/vav-301"))
	require.NoError(t, d.Sync(context.Background(), next, locator))

	_, err := os.Stat(filepath.Join(dir, "hq-tower", "floor-3", "room-301", "hvac", "vav-301.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "hq-tower", "floor-3", "room-301.json"))
	assert.NoError(t, err)
}

func TestExtract_EmptyExportFails(t *testing.T) {
	d := New(zap.NewNop())
	_, err := d.Extract(context.Background(), Scheme+t.TempDir())
	assert.Error(t, err)
}

func TestExtract_RejectsMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	d := New(zap.NewNop())
	_, err := d.Extract(context.Background(), Scheme+dir)
	assert.Error(t, err)
}

func TestWatch_EmitsOnDocumentChange(t *testing.T) {
	dir := t.TempDir()
	locator := Scheme + dir
	d := New(zap.NewNop())

	require.NoError(t, d.Sync(context.Background(), exportSnapshot(t), locator))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := d.Watch(ctx, locator)
	require.NoError(t, err)

	doc := filepath.Join(dir, "hq-tower", "floor-3", "room-301.json")
	raw, err := os.ReadFile(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(doc, raw, 0o644))

	select {
	case ev, ok := <-events:
		require.True(t, ok)
		assert.Equal(t, locator, ev.Locator)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event within deadline")
	}

	cancel()
	// The event channel closes on cancellation.
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("event channel did not close")
	}
}
