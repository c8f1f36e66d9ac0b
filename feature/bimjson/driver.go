package bimjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"arxcore/core/address"
	"arxcore/core/entity"

	"go.uber.org/zap"
)

const (
	// Scheme prefixes every locator this driver handles.
	Scheme = "bimjson://"

	docExt = ".json"
)

// Driver reads and writes BIM export document trees.
type Driver struct {
	log *zap.Logger
}

// New creates the driver.
func New(log *zap.Logger) *Driver {
	return &Driver{log: log}
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "bimjson" }

// CanHandle implements driver.Driver.
func (d *Driver) CanHandle(locator string) bool {
	return strings.HasPrefix(locator, Scheme)
}

// dir strips the scheme off a locator.
func (d *Driver) dir(locator string) string {
	return strings.TrimPrefix(locator, Scheme)
}

// Extract walks the export tree and assembles a snapshot. Every document
// must belong to the same building.
func (d *Driver) Extract(ctx context.Context, locator string) (*entity.Snapshot, error) {
	root := d.dir(locator)

	var docs []string
	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !de.IsDir() && strings.HasSuffix(de.Name(), docExt) {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk export %s: %w", root, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("export %s holds no documents", root)
	}

	var snap *entity.Snapshot
	for _, doc := range docs {
		e, err := readDocument(doc)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			snap = entity.NewSnapshot(e.Address.Building())
		}
		if err := snap.Put(e); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc, err)
		}
	}
	return snap, nil
}

// Sync writes the snapshot back as the document tree and prunes
// documents for entities no longer present.
func (d *Driver) Sync(ctx context.Context, snap *entity.Snapshot, locator string) error {
	root := d.dir(locator)

	keep := map[string]bool{}
	for _, path := range snap.Paths() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc := d.documentPath(root, path)
		if err := writeDocument(doc, snap.Entities[path]); err != nil {
			return err
		}
		keep[doc] = true
	}

	// Prune stale documents.
	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), docExt) || keep[path] {
			return nil
		}
		d.log.Debug("Pruning stale export document", zap.String("path", path))
		return os.Remove(path)
	})
	if err != nil {
		return fmt.Errorf("failed to prune export %s: %w", root, err)
	}
	return nil
}

// documentPath maps a canonical address to its document location.
func (d *Driver) documentPath(root, path string) string {
	rel := strings.TrimPrefix(path, "/")
	return filepath.Join(root, filepath.FromSlash(rel)+docExt)
}

func readDocument(path string) (*entity.Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e entity.Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("document %s: %w", path, err)
	}
	addr, err := address.Parse(e.Path)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", path, err)
	}
	e.Address = addr
	return &e, nil
}

func writeDocument(path string, e *entity.Entity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
