package stage

import (
	"fmt"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// ToggleHandle is a resolved, opaque reference to a Toggle, held by Hook
// actions instead of a direct pointer (spec.md §9 design note: inter-stage
// links are implemented as handles into a registry owned by the runtime).
type ToggleHandle int

// ToggleRegistry owns every Toggle declared in a compiled pipeline and
// resolves Hook toggle=ID actions against them. Built once by the pipeline
// compiler and shared, via Context, by every Hook and Toggle stage at
// runtime.
type ToggleRegistry struct {
	toggles []*Toggle
	byID    map[string]ToggleHandle
}

func NewToggleRegistry() *ToggleRegistry {
	return &ToggleRegistry{byID: make(map[string]ToggleHandle)}
}

// Register adds t to the registry, returning its handle. If id is
// non-empty it must be unique; a duplicate is a compile-time error
// (spec.md §7 kind 1).
func (r *ToggleRegistry) Register(t *Toggle, id string) (ToggleHandle, error) {
	if id != "" {
		if _, exists := r.byID[id]; exists {
			return 0, fmt.Errorf("duplicate toggle id %q", id)
		}
	}
	h := ToggleHandle(len(r.toggles))
	r.toggles = append(r.toggles, t)
	if id != "" {
		r.byID[id] = h
	}
	return h, nil
}

// Resolve looks up a toggle by its declared ID. Used by the pipeline
// compiler when linking a Hook's toggle=ID action.
func (r *ToggleRegistry) Resolve(id string) (ToggleHandle, bool) {
	h, ok := r.byID[id]
	return h, ok
}

// All returns every registered handle, in declaration order: used to
// resolve a bare `toggle` action (no ID), which targets all toggles.
func (r *ToggleRegistry) All() []ToggleHandle {
	handles := make([]ToggleHandle, len(r.toggles))
	for i := range r.toggles {
		handles[i] = ToggleHandle(i)
	}
	return handles
}

func (r *ToggleRegistry) get(h ToggleHandle) *Toggle {
	return r.toggles[h]
}

// TargetCount returns the number of targets the toggle behind h was
// declared with. Used by the pipeline compiler to bounds-check a Hook's
// toggle=ID:idx action at compile time, before any runtime SetIndex call.
func (r *ToggleRegistry) TargetCount(h ToggleHandle) int {
	return len(r.get(h).Targets)
}

// Advance moves the toggle one step forward, modulo its target count.
func (r *ToggleRegistry) Advance(h ToggleHandle) {
	t := r.get(h)
	if len(t.Targets) == 0 {
		return
	}
	t.activeIndex = (t.activeIndex + 1) % len(t.Targets)
}

// SetIndex sets the toggle to the zero-based index idx. A Hook's
// toggle=ID:idx action carries a 1-based literal, which the pipeline
// compiler bounds-checks against the toggle's target count at compile
// time (spec.md §4.9) and the Hook converts to zero-based before calling.
func (r *ToggleRegistry) SetIndex(h ToggleHandle, idx int) {
	t := r.get(h)
	t.activeIndex = idx
}

type toggleKeyIdentity struct {
	typ    event.Type
	code   uint16
	domain event.Domain
}

// Toggle implements spec.md §4.8: rewrite a matching event using the
// currently active target among Targets, selected by a Hook action
// elsewhere in the pipeline.
type Toggle struct {
	Source  key.Predicate
	Targets []key.Target
	ID      string
	// Consistent selects spec.md's default mode: per-key memory of the
	// index active at key-down, used for all of that key's later events
	// (down, repeat, and the matching up) so a mid-press toggle never
	// splits a down/up pair across domains. False selects passive mode:
	// always use the index active right now.
	Consistent bool

	activeIndex  int
	activeAtDown map[toggleKeyIdentity]int
}

func NewToggle(source key.Predicate, targets []key.Target, id string, consistent bool) *Toggle {
	return &Toggle{
		Source:       source,
		Targets:      targets,
		ID:           id,
		Consistent:   consistent,
		activeAtDown: make(map[toggleKeyIdentity]int),
	}
}

func (t *Toggle) Name() string { return "toggle" }

func (t *Toggle) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if !t.Source.Matches(ev, ctx.Tracker) {
		return []event.Event{ev}
	}
	if len(t.Targets) == 0 {
		return nil
	}

	idx := t.activeIndex
	if t.Consistent {
		id := toggleKeyIdentity{typ: ev.Type, code: ev.Code, domain: ev.Domain}
		switch ev.Value {
		case 1:
			t.activeAtDown[id] = t.activeIndex
			idx = t.activeIndex
		case 0, 2:
			if recorded, ok := t.activeAtDown[id]; ok {
				idx = recorded
			}
		}
	}

	target := t.Targets[idx]
	return []event.Event{target.Apply(ev, ctx.Tracker)}
}
