// Package state implements the "previous value" memory consulted by
// transition predicates, hook slots, and value expressions (spec.md §4.2).
package state

import "github.com/evsieve/evsieve/internal/event"

// trackKey identifies one tracked (device, type, code, domain) slot. The
// runtime is single-threaded (spec.md §5), so Tracker needs no locking,
// unlike the teacher's device-state maps which guard against concurrent
// API/poll-loop access.
type trackKey struct {
	device int
	typ    event.Type
	code   uint16
	domain event.Domain
}

// Tracker holds the most recently observed value per (device, type, code,
// domain). The initial state is "undefined": predicates depending on the
// previous value fail to match until one has been observed.
type Tracker struct {
	values map[trackKey]int32
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{values: make(map[trackKey]int32)}
}

// Previous returns the last observed value for the given key and whether
// one has been observed at all.
func (t *Tracker) Previous(device int, typ event.Type, code uint16, domain event.Domain) (int32, bool) {
	v, ok := t.values[trackKey{device: device, typ: typ, code: code, domain: domain}]
	return v, ok
}

// Observe records ev's value as the new "previous" for its key. Callers
// must invoke this only after any transition predicate for this event has
// already consulted Previous, per spec.md §4.2's required ordering:
// "transition evaluation reads the previous value then updates."
func (t *Tracker) Observe(ev event.Event) {
	t.values[trackKey{device: ev.Device, typ: ev.Type, code: ev.Code, domain: ev.Domain}] = ev.Value
}
