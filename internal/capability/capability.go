// Package capability implements the static capability model of spec.md
// §3/§4.13: the per-(type, code) set of possible values an Output may need
// to advertise to the kernel, computed by abstract interpretation over the
// compiled stage list rather than queried from a live device.
package capability

import "github.com/evsieve/evsieve/internal/event"

// Key identifies one (type, code) capability slot. Domain is deliberately
// not part of the key: uinput capability bitmaps have no notion of domain,
// only of type/code/value-range.
type Key struct {
	Type event.Type
	Code uint16
}

// Range is an inclusive value range, possibly unbounded on either side.
// nil bounds mean "unknown, assume the widest possible range" — widening
// is always conservative (spec.md §4.13: "false positives ... acceptable;
// false negatives ... a bug").
type Range struct {
	Min, Max *int32
}

// Full is the maximally widened range: any int32 value.
func Full() Range { return Range{} }

// Single returns a Range containing exactly v.
func Single(v int32) Range {
	return Range{Min: &v, Max: &v}
}

// Contains reports whether v falls within r. An unbounded side always
// contains v on that side.
func (r Range) Contains(v int32) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Join returns the widened union of r and other: the narrowest range that
// contains every value either range contains. Used whenever two code paths
// (e.g. two Map targets) can produce the same (type, code).
func (r Range) Join(other Range) Range {
	out := Range{}
	if r.Min != nil && other.Min != nil {
		m := *r.Min
		if *other.Min < m {
			m = *other.Min
		}
		out.Min = &m
	}
	if r.Max != nil && other.Max != nil {
		m := *r.Max
		if *other.Max > m {
			m = *other.Max
		}
		out.Max = &m
	}
	return out
}

// Set maps capability keys to their widened value range. The zero value is
// an empty set.
type Set map[Key]Range

// New returns an empty capability Set.
func New() Set {
	return make(Set)
}

// Add widens the range recorded for k by joining it with r.
func (s Set) Add(k Key, r Range) {
	if existing, ok := s[k]; ok {
		s[k] = existing.Join(r)
	} else {
		s[k] = r
	}
}

// Merge widens s with every entry of other, returning s for chaining.
func (s Set) Merge(other Set) Set {
	for k, r := range other {
		s.Add(k, r)
	}
	return s
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Allows reports whether ev falls within the declared capability set. Used
// at runtime to detect an event that the static analysis failed to predict
// (spec.md §3 invariant: "No runtime event may fall outside this set; if it
// would, the event is dropped and a diagnostic is emitted").
func (s Set) Allows(ev event.Event) bool {
	r, ok := s[Key{Type: ev.Type, Code: ev.Code}]
	if !ok {
		return false
	}
	return r.Contains(ev.Value)
}
