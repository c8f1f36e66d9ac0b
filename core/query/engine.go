package query

import (
	"sort"

	"arxcore/core/index"
	"arxcore/core/spatial"
	"arxcore/core/utils"

	"go.uber.org/zap"
)

// Match is one query hit. Distance is only meaningful when the query
// carried a WITHIN predicate.
type Match struct {
	Row      index.EntityRow `json:"entity"`
	Distance float64         `json:"distance,omitempty"`
}

// Group is one GROUP BY bucket.
type Group struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Result is the evaluated output of one query. Exactly one of the three
// shapes is populated, matching the query's aggregate.
type Result struct {
	Matches []Match `json:"matches,omitempty"`
	Count   *int64  `json:"count,omitempty"`
	Groups  []Group `json:"groups,omitempty"`
}

// Engine evaluates parsed queries against the relational and spatial
// indexes. It is read-only and safe for concurrent use.
type Engine struct {
	idx  *index.Index
	spat *spatial.Index
	log  *zap.Logger
}

// NewEngine returns an engine over the given indexes.
func NewEngine(idx *index.Index, spat *spatial.Index, log *zap.Logger) *Engine {
	return &Engine{idx: idx, spat: spat, log: log}
}

// Run parses and evaluates query text in one step.
func (e *Engine) Run(text string) (*Result, error) {
	q, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(q)
}

// Evaluate runs a parsed query. Matches are ordered by path, or by
// distance when a WITHIN predicate is present.
func (e *Engine) Evaluate(q *Query) (*Result, error) {
	rows, err := e.idx.Search(q.Filters)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	if q.Within != nil {
		hits := e.spat.QueryRadius(q.Within.Center, q.Within.Radius)
		distance := make(map[string]float64, len(hits))
		for _, h := range hits {
			distance[h.ID] = h.Distance
		}
		for _, row := range rows {
			d, ok := distance[row.EntityID]
			if !ok {
				continue
			}
			matches = append(matches, Match{Row: row, Distance: d})
		}
		sort.Slice(matches, func(a, b int) bool {
			if matches[a].Distance != matches[b].Distance {
				return matches[a].Distance < matches[b].Distance
			}
			return matches[a].Row.Path < matches[b].Row.Path
		})
	} else {
		for _, row := range rows {
			matches = append(matches, Match{Row: row})
		}
	}

	switch q.Aggregate {
	case AggregateCount:
		n := int64(len(matches))
		return &Result{Count: &n}, nil
	case AggregateGroupBy:
		counts := map[string]int64{}
		for _, m := range matches {
			counts[columnValue(&m.Row, q.GroupField)]++
		}
		groups := make([]Group, 0, len(counts))
		for v, n := range counts {
			groups = append(groups, Group{Value: v, Count: n})
		}
		sort.Slice(groups, func(a, b int) bool { return groups[a].Value < groups[b].Value })
		return &Result{Groups: groups}, nil
	default:
		return &Result{Matches: matches}, nil
	}
}

// columnValue extracts a filterable column from a row as its grouping
// key.
func columnValue(r *index.EntityRow, column string) string {
	switch column {
	case "path":
		return r.Path
	case "entity_id":
		return r.EntityID
	case "kind":
		return r.Kind
	case "status":
		return r.Status
	case "confidence":
		return r.Confidence
	case "room_id":
		return r.RoomID
	case "pos_x":
		return utils.ToString(r.PosX)
	case "pos_y":
		return utils.ToString(r.PosY)
	case "pos_z":
		return utils.ToString(r.PosZ)
	default:
		return ""
	}
}
