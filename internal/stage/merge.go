package stage

import (
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

type mergeKey struct {
	code   uint16
	domain event.Domain
}

// Merge implements spec.md §4.6: collapse multiple physical sources of the
// same logical key into an at-most-one-held state, by code and domain.
type Merge struct {
	Predicates []key.Predicate
	counters   map[mergeKey]uint
}

func NewMerge(predicates []key.Predicate) *Merge {
	return &Merge{Predicates: predicates, counters: make(map[mergeKey]uint)}
}

func (m *Merge) Name() string { return "merge" }

func (m *Merge) matches(ev event.Event, ctx *Context) bool {
	if len(m.Predicates) == 0 {
		return ev.Type == event.EV_KEY
	}
	for _, p := range m.Predicates {
		if p.Matches(ev, ctx.Tracker) {
			return true
		}
	}
	return false
}

func (m *Merge) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if !m.matches(ev, ctx) {
		return []event.Event{ev}
	}

	switch ev.Value {
	case 1:
		k := mergeKey{code: ev.Code, domain: ev.Domain}
		c := m.counters[k]
		pass := c == 0
		m.counters[k] = c + 1
		if pass {
			return []event.Event{ev}
		}
		return nil
	case 0:
		k := mergeKey{code: ev.Code, domain: ev.Domain}
		c := m.counters[k]
		if c > 0 {
			c--
		}
		m.counters[k] = c
		if c == 0 {
			return []event.Event{ev}
		}
		return nil
	default:
		return []event.Event{ev}
	}
}
