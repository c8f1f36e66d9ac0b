package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arxcore/core/entity"
	"arxcore/core/resolve"
)

const (
	stateDir     = "reconcile"
	conflictsLog = "conflicts.jsonl"
)

// ancestorPath is where a source's last reconciled snapshot lives.
func (e *Engine) ancestorPath(source string) string {
	return filepath.Join(e.store.Dir(), stateDir, source+".json")
}

// loadAncestor returns the source's last reconciled snapshot, or nil when
// the source has never reconciled.
func (e *Engine) loadAncestor(source string) (*entity.Snapshot, error) {
	raw, err := os.ReadFile(e.ancestorPath(source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap entity.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("corrupt ancestor for source %s: %w", source, err)
	}
	if err := snap.Rehydrate(); err != nil {
		return nil, fmt.Errorf("corrupt ancestor for source %s: %w", source, err)
	}
	return &snap, nil
}

// saveAncestor persists the snapshot the source just delivered, making it
// the ancestor of the next cycle.
func (e *Engine) saveAncestor(source string, snap *entity.Snapshot) error {
	if err := os.MkdirAll(filepath.Join(e.store.Dir(), stateDir), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	path := e.ancestorPath(source)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ancestor-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// conflictRecord is one journal line.
type conflictRecord struct {
	Source     string           `json:"source"`
	RecordedAt time.Time        `json:"recorded_at"`
	Conflict   resolve.Conflict `json:"conflict"`
}

// appendConflicts journals conflict records. The journal is append-only;
// a write failure is reported but never blocks the merge that produced
// the conflicts.
func (e *Engine) appendConflicts(source string, conflicts []resolve.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(e.store.Dir(), stateDir), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(e.store.Dir(), stateDir, conflictsLog),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	now := time.Now().UTC()
	for _, c := range conflicts {
		if err := enc.Encode(conflictRecord{Source: source, RecordedAt: now, Conflict: c}); err != nil {
			return err
		}
	}
	return nil
}

// Conflicts reads the full conflict journal, oldest first.
func (e *Engine) Conflicts() ([]resolve.Conflict, error) {
	f, err := os.Open(filepath.Join(e.store.Dir(), stateDir, conflictsLog))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []resolve.Conflict
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec conflictRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("corrupt conflict journal: %w", err)
		}
		out = append(out, rec.Conflict)
	}
	return out, nil
}
