package key

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/state"
)

// valuePattern is a single (non-transition) value component: wildcard, an
// exact integer, or a closed/half-open range.
type valuePattern struct {
	wildcard bool
	min, max *int32 // nil bound means unbounded on that side
}

func (p valuePattern) matches(v int32) bool {
	if p.wildcard {
		return true
	}
	if p.min != nil && v < *p.min {
		return false
	}
	if p.max != nil && v > *p.max {
		return false
	}
	return true
}

func parseValuePattern(s string) (valuePattern, error) {
	if s == "" || s == "~" {
		return valuePattern{wildcard: true}, nil
	}
	if idx := strings.IndexByte(s, '~'); idx >= 0 {
		lo, hi := s[:idx], s[idx+1:]
		var p valuePattern
		if lo != "" {
			n, err := strconv.ParseInt(lo, 10, 32)
			if err != nil {
				return valuePattern{}, fmt.Errorf("invalid range lower bound %q: %w", lo, err)
			}
			v := int32(n)
			p.min = &v
		}
		if hi != "" {
			n, err := strconv.ParseInt(hi, 10, 32)
			if err != nil {
				return valuePattern{}, fmt.Errorf("invalid range upper bound %q: %w", hi, err)
			}
			v := int32(n)
			p.max = &v
		}
		return p, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return valuePattern{}, fmt.Errorf("invalid integer value %q: %w", s, err)
	}
	v := int32(n)
	return valuePattern{min: &v, max: &v}, nil
}

// valueMatcher is the interface implemented by every value-component kind
// a Predicate can carry: wildcard, plain pattern, or transition.
type valueMatcher interface {
	matches(ev event.Event, tracker *state.Tracker) bool
}

type anyMatcher struct{}

func (anyMatcher) matches(event.Event, *state.Tracker) bool { return true }

type patternMatcher struct{ pattern valuePattern }

func (m patternMatcher) matches(ev event.Event, _ *state.Tracker) bool {
	return m.pattern.matches(ev.Value)
}

// transitionMatcher matches iff the current value satisfies rhs and the
// previously observed value for the same (type, code, domain, device)
// satisfies lhs (spec.md §4.1).
type transitionMatcher struct {
	lhs, rhs valuePattern
}

func (m transitionMatcher) matches(ev event.Event, tracker *state.Tracker) bool {
	if !m.rhs.matches(ev.Value) {
		return false
	}
	prev, ok := tracker.Previous(ev.Device, ev.Type, ev.Code, ev.Domain)
	if !ok {
		return false
	}
	return m.lhs.matches(prev)
}

// parseValueMatcher parses the value component of a predicate, which may
// be empty, an integer, a range, or a transition "LHS..RHS".
func parseValueMatcher(s string) (valueMatcher, error) {
	if s == "" {
		return anyMatcher{}, nil
	}
	if idx := strings.Index(s, ".."); idx >= 0 {
		lhs, err := parseValuePattern(s[:idx])
		if err != nil {
			return nil, fmt.Errorf("transition lhs: %w", err)
		}
		rhs, err := parseValuePattern(s[idx+2:])
		if err != nil {
			return nil, fmt.Errorf("transition rhs: %w", err)
		}
		return transitionMatcher{lhs: lhs, rhs: rhs}, nil
	}
	p, err := parseValuePattern(s)
	if err != nil {
		return nil, err
	}
	if p.wildcard {
		return anyMatcher{}, nil
	}
	return patternMatcher{pattern: p}, nil
}
