package address

import (
	"fmt"
	"strings"
)

// MaxDepth is the maximum number of segments an address may carry:
// building, floor, wing/room, system, equipment, plus one spare level
// for sub-equipment (e.g. a breaker inside a panel).
const MaxDepth = 6

// Address is an immutable hierarchical path identifying a building entity.
// The zero value is invalid; construct addresses with Parse or MustParse.
type Address struct {
	segments []string
}

// ValidationError reports a malformed address string. It is returned by
// Parse and carries the offending input for error messages.
type ValidationError struct {
	// Input is the raw string that failed validation.
	Input string
	// Reason describes why the input was rejected.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

// Parse validates raw and returns its Address. The input must start with
// '/', contain 1 to MaxDepth non-empty segments, and use only lowercase
// letters, digits, '-', '_' and '.' within segments.
func Parse(raw string) (Address, error) {
	if raw == "" || raw == "/" {
		return Address{}, &ValidationError{Input: raw, Reason: "empty path"}
	}
	if !strings.HasPrefix(raw, "/") {
		return Address{}, &ValidationError{Input: raw, Reason: "must start with '/'"}
	}
	if strings.HasSuffix(raw, "/") {
		return Address{}, &ValidationError{Input: raw, Reason: "trailing '/'"}
	}

	segments := strings.Split(raw[1:], "/")
	if len(segments) > MaxDepth {
		return Address{}, &ValidationError{Input: raw, Reason: fmt.Sprintf("more than %d segments", MaxDepth)}
	}
	for _, seg := range segments {
		if seg == "" {
			return Address{}, &ValidationError{Input: raw, Reason: "empty segment"}
		}
		if !validSegment(seg) {
			return Address{}, &ValidationError{Input: raw, Reason: fmt.Sprintf("segment %q contains invalid characters", seg)}
		}
	}

	return Address{segments: segments}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for
// constants and tests.
func MustParse(raw string) Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// validSegment reports whether a single path segment uses only the
// permitted character set.
func validSegment(seg string) bool {
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// String returns the canonical slash-separated form.
func (a Address) String() string {
	return "/" + strings.Join(a.segments, "/")
}

// IsZero reports whether the address is the invalid zero value.
func (a Address) IsZero() bool {
	return len(a.segments) == 0
}

// Depth returns the number of segments.
func (a Address) Depth() int {
	return len(a.segments)
}

// Segment returns the i-th segment. It panics if i is out of range.
func (a Address) Segment(i int) string {
	return a.segments[i]
}

// Building returns the first segment, the owning building's name.
func (a Address) Building() string {
	return a.segments[0]
}

// Leaf returns the last segment, the entity's own name.
func (a Address) Leaf() string {
	return a.segments[len(a.segments)-1]
}

// Parent returns the address with the last segment removed and true,
// or the zero Address and false if the address is a building root.
func (a Address) Parent() (Address, bool) {
	if len(a.segments) <= 1 {
		return Address{}, false
	}
	return Address{segments: a.segments[:len(a.segments)-1]}, true
}

// Child returns a new address with seg appended. It returns an error if
// seg is not a valid segment or the result would exceed MaxDepth.
func (a Address) Child(seg string) (Address, error) {
	if seg == "" || !validSegment(seg) {
		return Address{}, &ValidationError{Input: seg, Reason: "invalid segment"}
	}
	if len(a.segments)+1 > MaxDepth {
		return Address{}, &ValidationError{Input: a.String() + "/" + seg, Reason: fmt.Sprintf("more than %d segments", MaxDepth)}
	}
	segments := make([]string, len(a.segments)+1)
	copy(segments, a.segments)
	segments[len(a.segments)] = seg
	return Address{segments: segments}, nil
}

// Equal reports whether two addresses have the same canonical form.
func (a Address) Equal(b Address) bool {
	if len(a.segments) != len(b.segments) {
		return false
	}
	for i := range a.segments {
		if a.segments[i] != b.segments[i] {
			return false
		}
	}
	return true
}

// Less provides the total order used for deterministic listings:
// segment-wise lexicographic, shorter prefix first.
func (a Address) Less(b Address) bool {
	n := len(a.segments)
	if len(b.segments) < n {
		n = len(b.segments)
	}
	for i := 0; i < n; i++ {
		if a.segments[i] != b.segments[i] {
			return a.segments[i] < b.segments[i]
		}
	}
	return len(a.segments) < len(b.segments)
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) a.
func (a Address) HasPrefix(prefix Address) bool {
	if len(prefix.segments) > len(a.segments) {
		return false
	}
	for i := range prefix.segments {
		if a.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// Match reports whether the address matches a glob pattern. '*' and '?'
// match within a single segment; a segment consisting of exactly "**"
// matches zero or more segments. The pattern itself must be a
// slash-separated path starting with '/'.
func (a Address) Match(pattern string) (bool, error) {
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return false, &ValidationError{Input: pattern, Reason: "pattern must start with '/'"}
	}
	pat := strings.Split(strings.TrimSuffix(pattern[1:], "/"), "/")
	return matchSegments(pat, a.segments), nil
}

// matchSegments matches pattern segments against address segments,
// handling the multi-segment "**" wildcard recursively.
func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		// "**" absorbs zero or more segments.
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if !matchSegment(pat[0], segs[0]) {
		return false
	}
	return matchSegments(pat[1:], segs[1:])
}

// matchSegment matches one pattern segment ('*' and '?' wildcards) against
// one address segment.
func matchSegment(pat, seg string) bool {
	// Iterative backtracking over '*'.
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(seg) {
		switch {
		case pi < len(pat) && (pat[pi] == '?' || pat[pi] == seg[si]):
			pi++
			si++
		case pi < len(pat) && pat[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}
