package reconcile

import (
	"fmt"
	"time"

	"arxcore/core/resolve"
)

// Policy is the data-flow direction of a source.
type Policy string

const (
	// PolicyBidirectional extracts from the source and pushes merged
	// state back after each commit.
	PolicyBidirectional Policy = "bidirectional"

	// PolicyReadOnly only extracts; the source is never written.
	PolicyReadOnly Policy = "read-only"

	// PolicyWriteOnly never extracts; the branch tip is pushed to the
	// source each cycle.
	PolicyWriteOnly Policy = "write-only"
)

// Valid reports whether the policy is known.
func (p Policy) Valid() bool {
	switch p {
	case PolicyBidirectional, PolicyReadOnly, PolicyWriteOnly:
		return true
	default:
		return false
	}
}

// Source configures one external source of truth.
type Source struct {
	// Name uniquely identifies the source.
	Name string `json:"name"`

	// Locator tells the driver registry where the source lives.
	Locator string `json:"locator"`

	// Policy is the data-flow direction.
	Policy Policy `json:"policy"`

	// Priority ranks the source against the locally committed state
	// during conflict resolution. Higher overrides local; at zero the
	// committed state wins disagreements.
	Priority int `json:"priority"`

	// Interval is the scheduled reconciliation period.
	Interval time.Duration `json:"interval"`

	// Strategy selects the conflict-resolution algorithm.
	Strategy resolve.Strategy `json:"strategy"`
}

// Validate checks the source configuration.
func (s Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source has no name")
	}
	if s.Locator == "" {
		return fmt.Errorf("source %s has no locator", s.Name)
	}
	if !s.Policy.Valid() {
		return fmt.Errorf("source %s: unknown policy %q", s.Name, s.Policy)
	}
	if !s.Strategy.Valid() {
		return fmt.Errorf("source %s: unknown strategy %q", s.Name, s.Strategy)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("source %s: interval must be positive", s.Name)
	}
	return nil
}

// State is the lifecycle state of a source in the engine.
type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StateMerging    State = "merging"
	StateApplying   State = "applying"
	StateFailed     State = "failed"
	StateDisabled   State = "disabled"
)

// Status is a point-in-time view of one source, surfaced on the status
// API.
type Status struct {
	Name    string `json:"name"`
	Locator string `json:"locator"`
	Policy  Policy `json:"policy"`
	State   State  `json:"state"`

	// Cycles counts completed reconciliations, including no-op ones.
	Cycles int `json:"cycles"`

	// Failures counts failed cycles over the engine's lifetime;
	// ConsecutiveFailures counts the current unbroken failure run.
	Failures            int `json:"failures"`
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastSuccess is the completion time of the last successful cycle.
	LastSuccess time.Time `json:"last_success,omitzero"`

	// LastCommit is the most recent commit this source produced.
	LastCommit string `json:"last_commit,omitempty"`

	// LastError describes the most recent failure, empty when healthy.
	LastError string `json:"last_error,omitempty"`
}
