package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"arxcore/core/reconcile"
	"arxcore/core/resolve"
)

// sourceSpec mirrors reconcile.Source with human-readable durations so
// the sources file can say "15m" instead of nanoseconds.
type sourceSpec struct {
	Name     string `json:"name"`
	Locator  string `json:"locator"`
	Policy   string `json:"policy"`
	Priority int    `json:"priority"`
	Interval string `json:"interval"`
	Strategy string `json:"strategy"`
}

// LoadSources reads the reconciliation sources file. Omitted fields get
// conservative defaults: three-way merging on a 15 minute interval.
func LoadSources(path string) ([]reconcile.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var specs []sourceSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	sources := make([]reconcile.Source, 0, len(specs))
	for _, spec := range specs {
		src := reconcile.Source{
			Name:     spec.Name,
			Locator:  spec.Locator,
			Policy:   reconcile.Policy(spec.Policy),
			Priority: spec.Priority,
			Interval: 15 * time.Minute,
			Strategy: resolve.StrategyThreeWay,
		}
		if spec.Interval != "" {
			d, err := time.ParseDuration(spec.Interval)
			if err != nil {
				return nil, fmt.Errorf("source %s: invalid interval %q: %w", spec.Name, spec.Interval, err)
			}
			src.Interval = d
		}
		if spec.Strategy != "" {
			src.Strategy = resolve.Strategy(spec.Strategy)
		}
		if err := src.Validate(); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
