package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"arxcore/core/driver"
	"arxcore/core/entity"
	"arxcore/core/objectstore"
	"arxcore/core/resolve"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrUnknownSource is returned for operations on an unregistered
	// source name.
	ErrUnknownSource = errors.New("unknown source")

	// ErrDuplicateSource is returned when a source name is already
	// registered.
	ErrDuplicateSource = errors.New("duplicate source name")

	// ErrSourceDisabled is returned when reconciling a source that was
	// disabled after repeated failures.
	ErrSourceDisabled = errors.New("source is disabled")
)

// Config tunes the engine. Zero values fall back to the defaults.
type Config struct {
	// Workers bounds concurrent extract and sync calls across sources.
	Workers int `mapstructure:"workers" default:"4"`

	// ExtractTimeout and SyncTimeout are per-call driver deadlines.
	ExtractTimeout time.Duration `mapstructure:"extract_timeout" default:"30s"`
	SyncTimeout    time.Duration `mapstructure:"sync_timeout" default:"30s"`

	// BackoffBase and BackoffMax bound the exponential retry delay
	// after a failed cycle.
	BackoffBase time.Duration `mapstructure:"backoff_base" default:"2s"`
	BackoffMax  time.Duration `mapstructure:"backoff_max" default:"5m"`

	// DisableAfter is the consecutive-failure count that disables a
	// source.
	DisableAfter int `mapstructure:"disable_after" default:"5"`

	// SourcesFile is the path to the JSON file declaring external
	// sources. Empty runs the daemon with no sources configured. The
	// engine itself never reads this; the daemon loads it at startup.
	SourcesFile string `mapstructure:"sources_file" default:""`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 30 * time.Second
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Minute
	}
	if c.DisableAfter <= 0 {
		c.DisableAfter = 5
	}
	return c
}

// CommitFunc is notified after each commit the engine lands, with the
// changes relative to the previous tip and the new tip snapshot. Used to
// keep the relational and spatial indexes current.
type CommitFunc func(info objectstore.CommitInfo, changes []entity.Change, snap *entity.Snapshot)

// Report summarizes one reconciliation cycle.
type Report struct {
	// Source is the reconciled source name.
	Source string `json:"source"`

	// CommitID is the commit the cycle produced; empty for a no-op.
	CommitID string `json:"commit_id,omitempty"`

	// Changes counts entity-level changes committed.
	Changes int `json:"changes"`

	// Conflicts counts field-level disagreements encountered.
	Conflicts int `json:"conflicts"`

	// Unchanged reports that the source input produced no commit.
	Unchanged bool `json:"unchanged"`
}

// sourceState is the engine's mutable record for one source. The run
// mutex serializes cycles; the state mutex guards the stats.
type sourceState struct {
	cfg Source

	runMu sync.Mutex

	mu          sync.Mutex
	state       State
	cycles      int
	failures    int
	consecutive int
	lastSuccess time.Time
	lastCommit  string
	lastErr     string

	trigger chan struct{}
}

func (st *sourceState) setState(s State) {
	st.mu.Lock()
	st.state = s
	st.mu.Unlock()
}

func (st *sourceState) status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Status{
		Name:                st.cfg.Name,
		Locator:             st.cfg.Locator,
		Policy:              st.cfg.Policy,
		State:               st.state,
		Cycles:              st.cycles,
		Failures:            st.failures,
		ConsecutiveFailures: st.consecutive,
		LastSuccess:         st.lastSuccess,
		LastCommit:          st.lastCommit,
		LastError:           st.lastErr,
	}
}

// Engine reconciles registered sources into the object store.
type Engine struct {
	store    *objectstore.Store
	registry *driver.Registry
	cfg      Config
	log      *zap.Logger

	// pool bounds concurrent driver extract/sync calls.
	pool *semaphore.Weighted

	// commitMu serializes the stage-and-commit section across sources;
	// the staging area is shared.
	commitMu sync.Mutex

	mu       sync.Mutex
	sources  map[string]*sourceState
	onCommit CommitFunc

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewEngine builds an engine over the store and driver registry.
func NewEngine(store *objectstore.Store, registry *driver.Registry, cfg Config, log *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:    store,
		registry: registry,
		cfg:      cfg,
		log:      log,
		pool:     semaphore.NewWeighted(int64(cfg.Workers)),
		sources:  map[string]*sourceState{},
	}
}

// OnCommit registers the post-commit notification hook. Must be called
// before Start.
func (e *Engine) OnCommit(fn CommitFunc) {
	e.mu.Lock()
	e.onCommit = fn
	e.mu.Unlock()
}

// AddSource registers a source. Fails with ErrDuplicateSource on a name
// collision and validates that some driver handles the locator.
func (e *Engine) AddSource(src Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if _, err := e.registry.Resolve(src.Locator); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.sources[src.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name)
	}
	e.sources[src.Name] = &sourceState{
		cfg:     src,
		state:   StateIdle,
		trigger: make(chan struct{}, 1),
	}
	return nil
}

// Status returns the state of every source, sorted by name.
func (e *Engine) Status() []Status {
	e.mu.Lock()
	states := make([]*sourceState, 0, len(e.sources))
	for _, st := range e.sources {
		states = append(states, st)
	}
	e.mu.Unlock()

	out := make([]Status, 0, len(states))
	for _, st := range states {
		out = append(out, st.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Trigger requests an immediate cycle for a source, ahead of its
// schedule. A cycle already pending collapses into one.
func (e *Engine) Trigger(name string) error {
	st, err := e.source(name)
	if err != nil {
		return err
	}
	select {
	case st.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Enable re-enables a disabled source and clears its failure run.
func (e *Engine) Enable(name string) error {
	st, err := e.source(name)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.consecutive = 0
	st.lastErr = ""
	if st.state == StateDisabled || st.state == StateFailed {
		st.state = StateIdle
	}
	st.mu.Unlock()
	return nil
}

func (e *Engine) source(name string) (*sourceState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return st, nil
}

// Start launches the scheduling loop and watch subscriptions for every
// registered source. It returns immediately; Stop shuts the loops down.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.mu.Lock()
	states := make([]*sourceState, 0, len(e.sources))
	for _, st := range e.sources {
		states = append(states, st)
	}
	e.mu.Unlock()

	for _, st := range states {
		e.wg.Add(1)
		go e.runSource(ctx, st)
		e.startWatch(ctx, st)
	}
	e.log.Info("Reconciliation engine started", zap.Int("sources", len(states)))
}

// Stop cancels all loops and waits for in-flight cycles to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.log.Info("Reconciliation engine stopped")
}

// runSource is the per-source scheduling loop: interval ticks, watch
// triggers, and failure backoff.
func (e *Engine) runSource(ctx context.Context, st *sourceState) {
	defer e.wg.Done()

	ticker := time.NewTicker(st.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-st.trigger:
		}

		if _, err := e.reconcile(ctx, st); err != nil {
			if errors.Is(err, ErrSourceDisabled) || errors.Is(err, context.Canceled) {
				continue
			}
			delay := e.backoff(st)
			e.log.Warn("Reconciliation cycle failed, backing off",
				zap.String("source", st.cfg.Name),
				zap.Duration("delay", delay),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

// backoff computes the delay after the current failure run.
func (e *Engine) backoff(st *sourceState) time.Duration {
	st.mu.Lock()
	n := st.consecutive
	st.mu.Unlock()

	d := e.cfg.BackoffBase
	for i := 1; i < n && d < e.cfg.BackoffMax; i++ {
		d *= 2
	}
	if d > e.cfg.BackoffMax {
		d = e.cfg.BackoffMax
	}
	return d
}

// startWatch subscribes to the driver's change notifications when the
// driver supports watching.
func (e *Engine) startWatch(ctx context.Context, st *sourceState) {
	d, err := e.registry.Resolve(st.cfg.Locator)
	if err != nil {
		return
	}
	w, ok := driver.CanWatch(d)
	if !ok {
		return
	}
	events, err := w.Watch(ctx, st.cfg.Locator)
	if err != nil {
		e.log.Warn("Watch subscription failed, falling back to interval",
			zap.String("source", st.cfg.Name),
			zap.Error(err))
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for ev := range events {
			e.log.Debug("Source changed",
				zap.String("source", st.cfg.Name),
				zap.String("detail", ev.Detail))
			select {
			case st.trigger <- struct{}{}:
			default:
			}
		}
	}()
}

// ReconcileOnce runs a single synchronous cycle for one source.
func (e *Engine) ReconcileOnce(ctx context.Context, name string) (*Report, error) {
	st, err := e.source(name)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, st)
}

// reconcile runs one extract → merge → apply cycle. Cycles for the same
// source are serialized by the run mutex.
func (e *Engine) reconcile(ctx context.Context, st *sourceState) (*Report, error) {
	st.runMu.Lock()
	defer st.runMu.Unlock()

	st.mu.Lock()
	if st.state == StateDisabled {
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSourceDisabled, st.cfg.Name)
	}
	st.mu.Unlock()

	report, err := e.cycle(ctx, st)
	if err != nil {
		e.recordFailure(st, err)
		return nil, err
	}
	e.recordSuccess(st, report)
	return report, nil
}

func (e *Engine) cycle(ctx context.Context, st *sourceState) (*Report, error) {
	src := st.cfg
	d, err := e.registry.Resolve(src.Locator)
	if err != nil {
		return nil, err
	}

	if src.Policy == PolicyWriteOnly {
		return e.pushOnly(ctx, st, d)
	}

	// Extract.
	st.setState(StateExtracting)
	desired, err := e.extract(ctx, d, src.Locator)
	if err != nil {
		return nil, &driver.ExtractError{Locator: src.Locator, Err: err}
	}
	if desired.Building != e.store.Building() {
		return nil, fmt.Errorf("source %s delivered building %q, repository versions %q",
			src.Name, desired.Building, e.store.Building())
	}

	// Merge against the tip relative to this source's ancestor.
	st.setState(StateMerging)
	ancestor, err := e.loadAncestor(src.Name)
	if err != nil {
		return nil, err
	}
	head, err := e.store.Head()
	if err != nil {
		return nil, err
	}
	tip, err := e.store.TipSnapshot(head)
	if err != nil {
		return nil, err
	}

	opts := resolve.Options{
		Strategy:       src.Strategy,
		TheirsPriority: src.Priority,
	}
	merged, conflicts := resolve.Resolve(ancestor, tip, desired, opts)
	if err := e.appendConflicts(src.Name, conflicts); err != nil {
		e.log.Error("Failed to journal conflicts",
			zap.String("source", src.Name),
			zap.Error(err))
	}

	// Apply.
	st.setState(StateApplying)
	report := &Report{Source: src.Name, Conflicts: len(conflicts)}
	commitID, changes, err := e.commitMerged(tip, merged, src.Name)
	if err != nil {
		return nil, err
	}
	if commitID == "" {
		report.Unchanged = true
	} else {
		report.CommitID = commitID
		report.Changes = len(changes)
		e.notifyCommit(commitID, changes)
	}

	if err := e.saveAncestor(src.Name, desired); err != nil {
		return nil, err
	}

	if src.Policy == PolicyBidirectional && commitID != "" {
		e.push(ctx, st, d, commitID)
	}

	st.setState(StateIdle)
	return report, nil
}

// pushOnly is the write-only cycle: the branch tip goes out, nothing
// comes in.
func (e *Engine) pushOnly(ctx context.Context, st *sourceState, d driver.Driver) (*Report, error) {
	st.setState(StateApplying)
	head, err := e.store.Head()
	if err != nil {
		return nil, err
	}
	tip, err := e.store.TipSnapshot(head)
	if err != nil {
		return nil, err
	}
	if err := e.sync(ctx, d, tip, st.cfg.Locator); err != nil {
		return nil, &driver.SyncError{Locator: st.cfg.Locator, Err: err}
	}
	st.setState(StateIdle)
	return &Report{Source: st.cfg.Name, Unchanged: true}, nil
}

// extract calls the driver under the worker pool and deadline.
func (e *Engine) extract(ctx context.Context, d driver.Driver, locator string) (*entity.Snapshot, error) {
	if err := e.pool.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.pool.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExtractTimeout)
	defer cancel()
	return d.Extract(ctx, locator)
}

// sync calls the driver under the worker pool and deadline.
func (e *Engine) sync(ctx context.Context, d driver.Driver, snap *entity.Snapshot, locator string) error {
	if err := e.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.pool.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SyncTimeout)
	defer cancel()
	return d.Sync(ctx, snap, locator)
}

// commitMerged stages the tip→merged diff and commits it. Returns an
// empty commit ID when the diff is empty. The shared staging area is
// held for the whole stage-and-commit section.
func (e *Engine) commitMerged(tip, merged *entity.Snapshot, source string) (string, []entity.Change, error) {
	changes := entity.Diff(tip, merged)
	if len(changes) == 0 {
		return "", nil, nil
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	for _, change := range changes {
		var m objectstore.Mutation
		switch change.Op {
		case entity.OpAdd:
			m = objectstore.Mutation{Op: objectstore.MutationAdd, Path: change.Path, Entity: merged.Entities[change.Path].Clone()}
		case entity.OpModify:
			m = objectstore.Mutation{Op: objectstore.MutationUpdate, Path: change.Path, Entity: merged.Entities[change.Path].Clone()}
		case entity.OpRemove:
			m = objectstore.Mutation{Op: objectstore.MutationDelete, Path: change.Path}
		}
		if err := e.store.Stage(&m); err != nil {
			return "", nil, err
		}
	}

	commitID, err := e.store.Commit("reconcile/"+source, fmt.Sprintf("reconcile %s", source))
	if err != nil {
		if errors.Is(err, objectstore.ErrNothingToCommit) {
			// The tip already carried these changes.
			return "", nil, nil
		}
		return "", nil, err
	}
	return commitID, changes, nil
}

// push sends the committed state back to a bidirectional source. A push
// failure never rolls back the commit; it is logged and retried next
// cycle.
func (e *Engine) push(ctx context.Context, st *sourceState, d driver.Driver, commitID string) {
	snap, err := e.store.SnapshotAt(commitID)
	if err != nil {
		e.log.Error("Failed to load snapshot for push",
			zap.String("source", st.cfg.Name),
			zap.String("commit", commitID),
			zap.Error(err))
		return
	}
	if err := e.sync(ctx, d, snap, st.cfg.Locator); err != nil {
		e.log.Warn("Push to source failed, will retry next cycle",
			zap.String("source", st.cfg.Name),
			zap.Error(err))
		st.mu.Lock()
		st.lastErr = (&driver.SyncError{Locator: st.cfg.Locator, Err: err}).Error()
		st.mu.Unlock()
	}
}

// notifyCommit invokes the post-commit hook with the commit metadata and
// new tip snapshot.
func (e *Engine) notifyCommit(commitID string, changes []entity.Change) {
	e.mu.Lock()
	fn := e.onCommit
	e.mu.Unlock()
	if fn == nil {
		return
	}
	snap, err := e.store.SnapshotAt(commitID)
	if err != nil {
		e.log.Error("Failed to load snapshot for commit hook",
			zap.String("commit", commitID),
			zap.Error(err))
		return
	}
	c, err := e.store.ReadCommit(commitID)
	if err != nil {
		return
	}
	fn(objectstore.CommitInfo{
		ID:        c.ID,
		Parents:   c.Parents,
		Author:    c.Author,
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}, changes, snap)
}

func (e *Engine) recordSuccess(st *sourceState, r *Report) {
	st.mu.Lock()
	st.cycles++
	st.consecutive = 0
	st.lastErr = ""
	st.lastSuccess = time.Now().UTC()
	if r.CommitID != "" {
		st.lastCommit = r.CommitID
	}
	st.state = StateIdle
	st.mu.Unlock()

	e.log.Info("Reconciled source",
		zap.String("source", r.Source),
		zap.String("commit", r.CommitID),
		zap.Int("changes", r.Changes),
		zap.Int("conflicts", r.Conflicts),
		zap.Bool("unchanged", r.Unchanged))
}

func (e *Engine) recordFailure(st *sourceState, err error) {
	st.mu.Lock()
	st.failures++
	st.consecutive++
	st.lastErr = err.Error()
	if st.consecutive >= e.cfg.DisableAfter {
		st.state = StateDisabled
	} else {
		st.state = StateFailed
	}
	disabled := st.state == StateDisabled
	name := st.cfg.Name
	n := st.consecutive
	st.mu.Unlock()

	if disabled {
		e.log.Error("Source disabled after repeated failures",
			zap.String("source", name),
			zap.Int("consecutive_failures", n),
			zap.Error(err))
	}
}
