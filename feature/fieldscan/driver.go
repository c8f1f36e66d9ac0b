// Package fieldscan adapts field-capture feeds (AR scans, walkthrough
// apps) to the driver contract.
//
// A feed is a JSONL file: one capture per line with an address, a 3D
// position, a confidence grade and an optional note. Locators use the
// fieldscan:// scheme followed by the feed path.
//
// Low-confidence captures never merge directly: they are routed to the
// pending-equipment registry for a human to confirm or reject, and the
// extracted snapshot omits them. Medium and high confidence captures
// become equipment entities and take the normal reconciliation path.
// The source is read-only; Sync always fails.
package fieldscan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"arxcore/core/address"
	"arxcore/core/entity"
	"arxcore/core/pending"

	"go.uber.org/zap"
)

// Scheme prefixes every locator this driver handles.
const Scheme = "fieldscan://"

// ErrReadOnly is returned by Sync: captures flow one way.
var ErrReadOnly = errors.New("fieldscan sources are read-only")

// Capture is one line of a feed.
type Capture struct {
	// Path is the proposed canonical address.
	Path string `json:"path"`

	// Position is the observed 3D location.
	Position entity.Point3D `json:"position"`

	// Confidence grades the capture. Empty defaults to low.
	Confidence entity.Confidence `json:"confidence,omitempty"`

	// Note is free text from the person in the field.
	Note string `json:"note,omitempty"`

	// CapturedAt is when the observation was made.
	CapturedAt time.Time `json:"captured_at,omitzero"`
}

// Driver parses capture feeds and routes low-confidence proposals to the
// pending registry.
type Driver struct {
	registry *pending.Registry
	log      *zap.Logger
}

// New creates the driver over the pending registry.
func New(registry *pending.Registry, log *zap.Logger) *Driver {
	return &Driver{registry: registry, log: log}
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "fieldscan" }

// CanHandle implements driver.Driver.
func (d *Driver) CanHandle(locator string) bool {
	return strings.HasPrefix(locator, Scheme)
}

// Extract parses the feed. Captures at low confidence land in the
// pending registry; the rest come back as equipment entities.
func (d *Driver) Extract(ctx context.Context, locator string) (*entity.Snapshot, error) {
	path := strings.TrimPrefix(locator, Scheme)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		snap    *entity.Snapshot
		line    int
		routed  int
		scanner = bufio.NewScanner(f)
	)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var c Capture
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("feed %s line %d: %w", path, line, err)
		}
		if c.Confidence == "" {
			c.Confidence = entity.ConfidenceLow
		}
		addr, err := address.Parse(c.Path)
		if err != nil {
			return nil, fmt.Errorf("feed %s line %d: %w", path, line, err)
		}
		if !c.Confidence.Valid() {
			return nil, fmt.Errorf("feed %s line %d: unknown confidence %q", path, line, c.Confidence)
		}

		if snap == nil {
			snap = entity.NewSnapshot(addr.Building())
		}

		if c.Confidence == entity.ConfidenceLow {
			if err := d.propose(c); err != nil {
				return nil, fmt.Errorf("feed %s line %d: %w", path, line, err)
			}
			routed++
			continue
		}

		e := entity.New(addr, entity.KindEquipment)
		pos := c.Position
		e.Position = &pos
		e.Confidence = c.Confidence
		if c.Note != "" {
			e.Properties["note"] = c.Note
		}
		if !c.CapturedAt.IsZero() {
			e.CreatedAt = c.CapturedAt
			e.UpdatedAt = c.CapturedAt
		}
		if err := snap.Put(e); err != nil {
			return nil, fmt.Errorf("feed %s line %d: %w", path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("feed %s: %w", path, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("feed %s holds no captures", path)
	}

	if routed > 0 {
		d.log.Info("Routed low-confidence captures to pending registry",
			zap.String("feed", path),
			zap.Int("captures", routed))
	}
	return snap, nil
}

// propose registers a capture as pending equipment. A capture already
// proposed for the same address is a no-op, so re-reading a feed never
// duplicates proposals.
func (d *Driver) propose(c Capture) error {
	_, err := d.registry.Add(c.Path, c.Position, c.Confidence, "fieldscan", c.Note)
	if errors.Is(err, pending.ErrDuplicatePath) {
		return nil
	}
	return err
}

// Sync implements driver.Driver. Captures cannot be written back.
func (d *Driver) Sync(ctx context.Context, snap *entity.Snapshot, locator string) error {
	return ErrReadOnly
}
