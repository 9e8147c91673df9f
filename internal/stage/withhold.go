package stage

import (
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// Withhold implements spec.md §4.10. It must bind to the maximal run of
// immediately-preceding Hooks (enforced by the pipeline compiler, which
// constructs this value); Withhold itself only needs the bound Hooks to
// read their StepResult synchronously after each one processes the same
// event.
type Withhold struct {
	Predicates []key.Predicate
	Hooks      []*Hook

	buffered []event.Event
	// consuming is true from the moment a bound Hook fires until every one
	// of its slots has unwound (released), so the tail of a just-consumed
	// combo (e.g. the key-up of a key whose key-down triggered the fire)
	// is dropped rather than treated as the start of a new attempt.
	consuming bool
}

func NewWithhold(predicates []key.Predicate, hooks []*Hook) *Withhold {
	return &Withhold{Predicates: predicates, Hooks: hooks}
}

func (w *Withhold) Name() string { return "withhold" }

func (w *Withhold) matches(ev event.Event, ctx *Context) bool {
	if len(w.Predicates) == 0 {
		return true
	}
	for _, p := range w.Predicates {
		if p.Matches(ev, ctx.Tracker) {
			return true
		}
	}
	return false
}

// contributesToABoundHook reports whether ev's identity matches a slot of
// any bound Hook, i.e. whether it could be "part of" a combo those Hooks
// recognize.
func (w *Withhold) contributesToABoundHook(ev event.Event) bool {
	for _, h := range w.Hooks {
		for _, s := range h.Slots {
			if s.pattern.IdentityMatches(ev) {
				return true
			}
		}
	}
	return false
}

// anyHookFired reports whether any bound Hook fired while processing the
// event most recently dispatched to them (the event currently at the head
// of the pipeline, since Hooks and their Withhold process the same event
// synchronously in the same call).
func (w *Withhold) anyHookFired() bool {
	for _, h := range w.Hooks {
		if h.LastStep().Fired {
			return true
		}
	}
	return false
}

// stillPossible reports whether at least one bound Hook could still fire
// using the currently buffered events: true unless every bound Hook has
// had a slot fall out of satisfaction since the last buffered event (which
// means this particular combo attempt is dead).
func (w *Withhold) stillPossible() bool {
	for _, h := range w.Hooks {
		if !h.LastStep().AnySlotBecameUnsat {
			return true
		}
	}
	return false
}

// allUnwound reports whether every bound Hook currently has zero
// satisfied slots, meaning a fired combo has fully released.
func (w *Withhold) allUnwound() bool {
	for _, h := range w.Hooks {
		if h.AnySatisfied() {
			return false
		}
	}
	return true
}

// Process implements spec.md §4.10's resolution rule. Because a Withhold
// always textually follows its bound Hooks, and the scheduler drives one
// event through the whole pipeline before the next, each bound Hook's
// StepResult already reflects this same event by the time Withhold sees
// it.
func (w *Withhold) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if w.consuming && w.allUnwound() {
		w.consuming = false
	}

	if w.anyHookFired() {
		// The combo completed: every buffered event that contributed is
		// definitively dropped. The tail of the release (e.g. the matching
		// key-up) is dropped too, until the combo fully unwinds.
		w.buffered = nil
		w.consuming = true
		if w.matches(ev, ctx) && w.contributesToABoundHook(ev) {
			return nil
		}
		return []event.Event{ev}
	}

	if w.consuming {
		if w.matches(ev, ctx) && w.contributesToABoundHook(ev) {
			return nil
		}
		return []event.Event{ev}
	}

	if !w.matches(ev, ctx) || !w.contributesToABoundHook(ev) {
		return []event.Event{ev}
	}

	if !w.stillPossible() {
		// This attempt is dead: release everything buffered so far, in
		// arrival order, followed by the current event.
		released := w.buffered
		w.buffered = nil
		return append(released, ev)
	}

	w.buffered = append(w.buffered, ev)
	return nil
}

// Flush releases every buffered event, in arrival order. Called by the
// runtime at shutdown to guarantee release-or-drop for every withheld
// event (spec.md §4.10 totality).
func (w *Withhold) Flush() []event.Event {
	out := w.buffered
	w.buffered = nil
	return out
}
