// Package event defines the value type that flows through the pipeline.
package event

import "time"

// Type enumerates the evdev event categories evsieve understands.
// Values match the kernel's linux/input-event-codes.h constants.
type Type uint16

const (
	EV_SYN Type = 0x00
	EV_KEY Type = 0x01
	EV_REL Type = 0x02
	EV_ABS Type = 0x03
	EV_MSC Type = 0x04
)

// SYN_REPORT is the only SYN code evsieve synthesizes itself; SYN events
// observed from real devices are otherwise forwarded untouched.
const SYN_REPORT uint16 = 0

// Domain is an interned string tag attached to every event. The zero value
// is the empty domain, which is distinct from "any domain" in predicates.
type Domain string

// Event is a cheap-to-copy value object: one evdev-shaped sample plus the
// domain and yield bookkeeping the pipeline layers on top.
type Event struct {
	Type    Type
	Code    uint16
	Value   int32
	Domain  Domain
	Time    time.Time
	Yielded bool

	// Device identifies the originating input device handle, used by the
	// state tracker to key "previous value" lookups per spec.md §3 ("per
	// (domain, type, code, originating input-device-id)").
	Device int
}

// Yield returns a copy of e with Yielded set. Yielded is monotonic: once
// set it must never be cleared, so there is deliberately no Unyield.
func (e Event) Yield() Event {
	e.Yielded = true
	return e
}

// WithValue returns a copy of e with Value replaced.
func (e Event) WithValue(v int32) Event {
	e.Value = v
	return e
}

// IsSynReport reports whether e is a SYN_REPORT terminating an event group.
func (e Event) IsSynReport() bool {
	return e.Type == EV_SYN && e.Code == SYN_REPORT
}
