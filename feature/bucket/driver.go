package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"arxcore/core/address"
	"arxcore/core/entity"
	"arxcore/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const (
	// Scheme prefixes every locator this driver handles.
	Scheme = "bucket://"

	docExt = ".json"
)

// Driver reads and writes entity documents in an object-storage bucket.
type Driver struct {
	client storage.Client
	log    *zap.Logger
}

// New creates the driver over a storage client.
func New(client storage.Client, log *zap.Logger) *Driver {
	return &Driver{client: client, log: log}
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "bucket" }

// CanHandle implements driver.Driver.
func (d *Driver) CanHandle(locator string) bool {
	return strings.HasPrefix(locator, Scheme)
}

// parseLocator splits bucket://<bucket>/<prefix> into its parts.
func parseLocator(locator string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(locator, Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("locator %s names no bucket", locator)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// objectName maps a canonical address to its object key.
func objectName(prefix, path string) string {
	key := strings.TrimPrefix(path, "/") + docExt
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Extract lists the document tree and assembles a snapshot.
func (d *Driver) Extract(ctx context.Context, locator string) (*entity.Snapshot, error) {
	bucket, prefix, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}

	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}

	var snap *entity.Snapshot
	for info := range d.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", locator, info.Err)
		}
		if !strings.HasSuffix(info.Key, docExt) {
			continue
		}
		e, err := d.readObject(ctx, bucket, info.Key)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			snap = entity.NewSnapshot(e.Address.Building())
		}
		if err := snap.Put(e); err != nil {
			return nil, fmt.Errorf("object %s: %w", info.Key, err)
		}
	}
	if snap == nil {
		return nil, fmt.Errorf("bucket export %s holds no documents", locator)
	}
	return snap, nil
}

func (d *Driver) readObject(ctx context.Context, bucket, key string) (*entity.Entity, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	var e entity.Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("object %s: %w", key, err)
	}
	addr, err := address.Parse(e.Path)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", key, err)
	}
	e.Address = addr
	return &e, nil
}

// Sync uploads the snapshot's documents and removes objects for entities
// no longer present. The bucket is created on first use.
func (d *Driver) Sync(ctx context.Context, snap *entity.Snapshot, locator string) error {
	bucket, prefix, err := parseLocator(locator)
	if err != nil {
		return err
	}

	exists, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := d.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	keep := map[string]bool{}
	for _, path := range snap.Paths() {
		key := objectName(prefix, path)
		raw, err := json.MarshalIndent(snap.Entities[path], "", "  ")
		if err != nil {
			return err
		}
		if _, err := d.client.PutObject(ctx, bucket, key,
			bytes.NewReader(raw), int64(len(raw)),
			minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
			return fmt.Errorf("failed to put object %s: %w", key, err)
		}
		keep[key] = true
	}

	// Prune stale objects.
	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	for info := range d.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return fmt.Errorf("failed to list %s: %w", locator, info.Err)
		}
		if !strings.HasSuffix(info.Key, docExt) || keep[info.Key] {
			continue
		}
		d.log.Debug("Pruning stale export object", zap.String("key", info.Key))
		if err := d.client.RemoveObject(ctx, bucket, info.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove object %s: %w", info.Key, err)
		}
	}
	return nil
}
