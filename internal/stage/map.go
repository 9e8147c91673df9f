package stage

import (
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// Map implements spec.md §4.4: if predicate matches, emit one event per
// target (dropping the source if there are zero targets); otherwise pass
// the source through unchanged.
type Map struct {
	Predicate key.Predicate
	Targets   []key.Target
	YieldFlag bool
	copySrc   bool // true for Copy, which also emits the unmodified source first
}

// NewMap builds a Map stage.
func NewMap(pred key.Predicate, targets []key.Target, yield bool) *Map {
	return &Map{Predicate: pred, Targets: targets, YieldFlag: yield}
}

// NewCopy builds a Copy stage: identical to Map except the source event is
// also emitted, first, unchanged (spec.md §4.4).
func NewCopy(pred key.Predicate, targets []key.Target, yield bool) *Map {
	return &Map{Predicate: pred, Targets: targets, YieldFlag: yield, copySrc: true}
}

func (m *Map) Name() string {
	if m.copySrc {
		return "copy"
	}
	return "map"
}

func (m *Map) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if !m.Predicate.Matches(ev, ctx.Tracker) {
		return []event.Event{ev}
	}

	var out []event.Event
	if m.copySrc {
		out = append(out, ev)
	}
	for _, t := range m.Targets {
		mapped := t.Apply(ev, ctx.Tracker)
		if m.YieldFlag {
			mapped = mapped.Yield()
		}
		out = append(out, mapped)
	}
	return out
}
