package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"arxcore/core/address"
	"arxcore/core/entity"
	"arxcore/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func objectChan(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, info := range infos {
		ch <- info
	}
	close(ch)
	return ch
}

func encodeEntity(t *testing.T, e *entity.Entity) []byte {
	t.Helper()
	raw, err := json.MarshalIndent(e, "", "  ")
	require.NoError(t, err)
	return raw
}

func TestParseLocator(t *testing.T) {
	bucket, prefix, err := parseLocator("bucket://exports/hq")
	require.NoError(t, err)
	assert.Equal(t, "exports", bucket)
	assert.Equal(t, "hq", prefix)

	bucket, prefix, err = parseLocator("bucket://exports")
	require.NoError(t, err)
	assert.Equal(t, "exports", bucket)
	assert.Empty(t, prefix)

	_, _, err = parseLocator("bucket://")
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	vav := entity.New(address.MustParse("/hq-tower/floor-3/room-301/hvac/vav-301"), entity.KindEquipment)
	vav.Position = &entity.Point3D{X: 1, Y: 2, Z: 3}
	key := "hq/hq-tower/floor-3/room-301/hvac/vav-301.json"

	client := &mocks.Client{}
	client.On("ListObjects", mock.Anything, "exports", mock.Anything).
		Return(objectChan(minio.ObjectInfo{Key: key})).Once()
	client.On("GetObject", mock.Anything, "exports", key, mock.Anything).
		Return(io.NopCloser(bytes.NewReader(encodeEntity(t, vav))), nil).Once()

	d := New(client, zap.NewNop())
	snap, err := d.Extract(context.Background(), "bucket://exports/hq")
	require.NoError(t, err)
	assert.Equal(t, "hq-tower", snap.Building)
	require.NotNil(t, snap.Entities[vav.Path])
	assert.Equal(t, vav.ID, snap.Entities[vav.Path].ID)
	client.AssertExpectations(t)
}

func TestExtract_EmptyBucketFails(t *testing.T) {
	client := &mocks.Client{}
	client.On("ListObjects", mock.Anything, "exports", mock.Anything).
		Return(objectChan()).Once()

	d := New(client, zap.NewNop())
	_, err := d.Extract(context.Background(), "bucket://exports")
	assert.Error(t, err)
}

func TestSync_UploadsAndPrunes(t *testing.T) {
	snap := entity.NewSnapshot("hq-tower")
	panel := entity.New(address.MustParse("/hq-tower/floor-1/room-101/electrical/panel-a"), entity.KindEquipment)
	panel.Position = &entity.Point3D{}
	require.NoError(t, snap.Put(panel))

	keepKey := "hq-tower/floor-1/room-101/electrical/panel-a.json"
	staleKey := "hq-tower/floor-1/room-101/electrical/outlet-9.json"

	client := &mocks.Client{}
	client.On("BucketExists", mock.Anything, "exports").Return(false, nil).Once()
	client.On("MakeBucket", mock.Anything, "exports", mock.Anything).Return(nil).Once()
	client.On("PutObject", mock.Anything, "exports", keepKey, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil).Once()
	client.On("ListObjects", mock.Anything, "exports", mock.Anything).
		Return(objectChan(minio.ObjectInfo{Key: keepKey}, minio.ObjectInfo{Key: staleKey})).Once()
	client.On("RemoveObject", mock.Anything, "exports", staleKey, mock.Anything).Return(nil).Once()

	d := New(client, zap.NewNop())
	require.NoError(t, d.Sync(context.Background(), snap, "bucket://exports"))
	client.AssertExpectations(t)
}
