package fieldscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"arxcore/core/entity"
	"arxcore/core/pending"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const feed = `{"path": "/hq-tower/floor-3/room-301/electrical/outlet-9", "position": {"x": 3, "y": 1, "z": 9}, "confidence": "low", "note": "unlabeled outlet behind desk"}
{"path": "/hq-tower/floor-3/room-301/hvac/vav-301", "position": {"x": 12.5, "y": 3.1, "z": 9}, "confidence": "medium"}

{"path": "/hq-tower/floor-3/room-301/electrical/panel-3a", "position": {"x": 0.5, "y": 0.5, "z": 9}, "confidence": "high", "captured_at": "2026-08-20T10:30:00Z"}
`

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walkthrough.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newDriver(t *testing.T) (*Driver, *pending.Registry) {
	t.Helper()
	reg, err := pending.Load(t.TempDir())
	require.NoError(t, err)
	return New(reg, zap.NewNop()), reg
}

func TestExtract_SplitsByConfidence(t *testing.T) {
	d, reg := newDriver(t)
	locator := Scheme + writeFeed(t, feed)
	require.True(t, d.CanHandle(locator))

	snap, err := d.Extract(context.Background(), locator)
	require.NoError(t, err)
	assert.Equal(t, "hq-tower", snap.Building)

	// Medium and high confidence captures merge normally.
	require.Equal(t, 2, snap.Len())
	vav := snap.Entities["/hq-tower/floor-3/room-301/hvac/vav-301"]
	require.NotNil(t, vav)
	assert.Equal(t, entity.ConfidenceMedium, vav.Confidence)
	assert.Equal(t, entity.KindEquipment, vav.Kind)

	panel := snap.Entities["/hq-tower/floor-3/room-301/electrical/panel-3a"]
	require.NotNil(t, panel)
	assert.Equal(t, 2026, panel.UpdatedAt.Year())

	// The low-confidence capture went to the pending registry instead.
	proposals := reg.List(pending.StatusPending)
	require.Len(t, proposals, 1)
	assert.Equal(t, "/hq-tower/floor-3/room-301/electrical/outlet-9", proposals[0].Path)
	assert.Equal(t, "fieldscan", proposals[0].Source)
	assert.Equal(t, "unlabeled outlet behind desk", proposals[0].Note)
}

// Re-reading the same feed must not duplicate proposals.
func TestExtract_RereadIsIdempotentForPending(t *testing.T) {
	d, reg := newDriver(t)
	locator := Scheme + writeFeed(t, feed)

	_, err := d.Extract(context.Background(), locator)
	require.NoError(t, err)
	_, err = d.Extract(context.Background(), locator)
	require.NoError(t, err)

	assert.Len(t, reg.List(pending.StatusPending), 1)
}

func TestExtract_MalformedFeed(t *testing.T) {
	d, _ := newDriver(t)

	_, err := d.Extract(context.Background(), Scheme+writeFeed(t, "{broken\n"))
	assert.Error(t, err)

	_, err = d.Extract(context.Background(), Scheme+writeFeed(t, `{"path": "bad address", "position": {}}`+"\n"))
	assert.Error(t, err)

	_, err = d.Extract(context.Background(), Scheme+writeFeed(t, ""))
	assert.Error(t, err)
}

func TestSync_ReadOnly(t *testing.T) {
	d, _ := newDriver(t)
	err := d.Sync(context.Background(), entity.NewSnapshot("hq-tower"), Scheme+"feed.jsonl")
	assert.ErrorIs(t, err, ErrReadOnly)
}
