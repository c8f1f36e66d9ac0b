package driver

import (
	"context"
	"strings"
	"testing"

	"arxcore/core/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver handles locators with a fixed prefix.
type fakeDriver struct {
	name   string
	prefix string
}

func (f *fakeDriver) Name() string { return f.name }

func (f *fakeDriver) CanHandle(locator string) bool {
	return strings.HasPrefix(locator, f.prefix)
}

func (f *fakeDriver) Extract(ctx context.Context, locator string) (*entity.Snapshot, error) {
	return entity.NewSnapshot("hq-tower"), nil
}

func (f *fakeDriver) Sync(ctx context.Context, snap *entity.Snapshot, locator string) error {
	return nil
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeDriver{name: "bimjson", prefix: "file://"}, Metadata{}))

	err := r.Register(&fakeDriver{name: "bimjson", prefix: "other://"}, Metadata{})
	assert.ErrorIs(t, err, ErrDuplicateDriver)
}

func TestRegistry_ResolvePriority(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeDriver{name: "generic", prefix: "file://"}, Metadata{Priority: 1}))
	require.NoError(t, r.Register(&fakeDriver{name: "specific", prefix: "file://"}, Metadata{Priority: 5}))

	d, err := r.Resolve("file:///exports/hq-tower")
	require.NoError(t, err)
	assert.Equal(t, "specific", d.Name())

	_, err = r.Resolve("s3://bucket/key")
	assert.ErrorIs(t, err, ErrNoDriver)
}

// TestRegistry_ResolveTieBreak tests that equal priorities resolve to the
// earliest registration, deterministically.
func TestRegistry_ResolveTieBreak(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeDriver{name: "first", prefix: "file://"}, Metadata{Priority: 3}))
	require.NoError(t, r.Register(&fakeDriver{name: "second", prefix: "file://"}, Metadata{Priority: 3}))

	for trial := 0; trial < 10; trial++ {
		d, err := r.Resolve("file:///exports")
		require.NoError(t, err)
		assert.Equal(t, "first", d.Name())
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeDriver{name: "bimjson"}, Metadata{}))
	require.NoError(t, r.Register(&fakeDriver{name: "bucket"}, Metadata{}))
	require.NoError(t, r.Register(&fakeDriver{name: "fieldscan"}, Metadata{}))

	assert.Equal(t, []string{"bimjson", "bucket", "fieldscan"}, r.Names())
}

func TestCanWatch(t *testing.T) {
	_, ok := CanWatch(&fakeDriver{name: "plain"})
	assert.False(t, ok, "fakeDriver does not watch")
}
