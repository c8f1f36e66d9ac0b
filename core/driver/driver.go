// Package driver defines the contract between the core and pluggable
// source drivers, and the registry the reconciliation engine selects
// drivers from.
//
// A driver translates one external format (a BIM export directory, an
// object-storage bucket of exported documents, a field-capture feed) into
// the core's snapshot representation and, for bidirectional sources, back
// again. The core never parses source-specific formats itself.
//
// The registry is a static catalog populated at startup from compiled-in
// implementations; there is no runtime plugin loading.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"arxcore/core/entity"
)

var (
	// ErrDuplicateDriver is returned by Register when a driver name is
	// already taken.
	ErrDuplicateDriver = errors.New("duplicate driver name")

	// ErrNoDriver is returned by Resolve when no registered driver can
	// handle a locator.
	ErrNoDriver = errors.New("no driver handles locator")
)

// ExtractError wraps a failure to pull desired state from a source.
// Extract failures are transient by default: the engine retries with
// backoff and only disables the source after repeated failures.
type ExtractError struct {
	Locator string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract from %s: %v", e.Locator, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// SyncError wraps a failure to push merged state back to a bidirectional
// source. The local commit stands; the push is retried on the next cycle.
type SyncError struct {
	Locator string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync to %s: %v", e.Locator, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// ChangeEvent signals that a watched locator's content changed and the
// source should reconcile ahead of its schedule.
type ChangeEvent struct {
	// Locator is the watched locator.
	Locator string
	// Detail optionally names what changed (a file path, an object key).
	Detail string
	// At is when the change was observed.
	At time.Time
}

// Driver is a pluggable adapter for one external source format.
type Driver interface {
	// Name returns the unique driver name.
	Name() string

	// CanHandle reports whether this driver understands the locator.
	CanHandle(locator string) bool

	// Extract pulls the source's desired state as a snapshot.
	Extract(ctx context.Context, locator string) (*entity.Snapshot, error)

	// Sync pushes a merged snapshot back to the source. Drivers backing
	// read-only sources may return an error unconditionally; the engine
	// only calls Sync for bidirectional sources.
	Sync(ctx context.Context, snap *entity.Snapshot, locator string) error
}

// Watcher is the optional change-notification capability. Drivers
// advertise it by implementing the interface; the engine type-asserts.
type Watcher interface {
	// Watch emits an event whenever the locator's content changes. The
	// channel closes when ctx is cancelled.
	Watch(ctx context.Context, locator string) (<-chan ChangeEvent, error)
}

// Metadata describes a registered driver.
type Metadata struct {
	// Priority orders drivers when several can handle one locator.
	// Higher wins; ties break by registration order.
	Priority int

	// Description is a short human-readable summary.
	Description string
}

// registration pairs a driver with its metadata and registration order.
type registration struct {
	driver Driver
	meta   Metadata
	order  int
}

// Registry is the static catalog of available drivers. Safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*registration
	next    int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: map[string]*registration{}}
}

// Register adds a driver to the catalog. It fails with
// ErrDuplicateDriver when the name collides.
func (r *Registry) Register(d Driver, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := d.Name()
	if _, exists := r.drivers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDriver, name)
	}
	r.drivers[name] = &registration{driver: d, meta: meta, order: r.next}
	r.next++
	return nil
}

// Get returns a driver by name.
func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.drivers[name]
	if !ok {
		return nil, false
	}
	return reg.driver, true
}

// Names returns all registered driver names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]*registration, 0, len(r.drivers))
	for _, reg := range r.drivers {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].order < regs[j].order })
	names := make([]string, len(regs))
	for i, reg := range regs {
		names[i] = reg.driver.Name()
	}
	return names
}

// Resolve selects the driver for a locator: the highest-priority driver
// whose CanHandle accepts it, ties broken by registration order.
func (r *Registry) Resolve(locator string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *registration
	for _, reg := range r.drivers {
		if !reg.driver.CanHandle(locator) {
			continue
		}
		if best == nil ||
			reg.meta.Priority > best.meta.Priority ||
			(reg.meta.Priority == best.meta.Priority && reg.order < best.order) {
			best = reg
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDriver, locator)
	}
	return best.driver, nil
}

// CanWatch reports whether a driver advertises the watch capability.
func CanWatch(d Driver) (Watcher, bool) {
	w, ok := d.(Watcher)
	return w, ok
}
