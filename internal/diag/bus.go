// Package diag is a small in-process diagnostics bus, adapted from the
// teacher's internal/events.Bus: a type-switched wrapper around
// kelindar/event used for cross-cutting notifications (hotplug, capability
// violations, hook fires) that never sit on the single-threaded hot path.
package diag

import "github.com/kelindar/event"

// Event is the interface kelindar/event requires of every published type.
type Event interface {
	Type() uint32
}

// Event type identifiers.
const (
	TypeDeviceReopened uint32 = iota + 1
	TypeOutputRecreated
	TypeCapabilityViolation
	TypeHookFired
	TypeChildSpawnFailed
)

// DeviceReopenedEvent reports a successful input-device reopen after a
// disconnect, under persist=reopen (spec.md §3 Input-device handle).
type DeviceReopenedEvent struct {
	Path string
}

func (DeviceReopenedEvent) Type() uint32 { return TypeDeviceReopened }

// OutputRecreatedEvent reports that an Output's virtual device was torn
// down and recreated because a reopen produced incompatible capabilities
// (spec.md §3 Output-device handle).
type OutputRecreatedEvent struct {
	Name string
}

func (OutputRecreatedEvent) Type() uint32 { return TypeOutputRecreated }

// CapabilityViolationEvent reports a runtime event that fell outside an
// Output's statically declared capability set and was dropped (spec.md §3
// invariant, §7 kind 5: runtime diagnostic).
type CapabilityViolationEvent struct {
	Output string
	Type   uint16
	Code   uint16
	Value  int32
}

func (CapabilityViolationEvent) Type() uint32 { return TypeCapabilityViolation }

// HookFiredEvent reports that a Hook fired, for diagnostics/--print.
type HookFiredEvent struct {
	Index int
}

func (HookFiredEvent) Type() uint32 { return TypeHookFired }

// ChildSpawnFailedEvent reports that an exec-shell action could not be
// started (spec.md §7 kind 5: runtime diagnostic, never fatal).
type ChildSpawnFailedEvent struct {
	Command string
	Err     string
}

func (ChildSpawnFailedEvent) Type() uint32 { return TypeChildSpawnFailed }

// Bus wraps the kelindar/event dispatcher for evsieve's diagnostic event
// types.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty diagnostics bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish publishes ev to all subscribers of its concrete type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceReopenedEvent:
		event.Publish(b.dispatcher, e)
	case OutputRecreatedEvent:
		event.Publish(b.dispatcher, e)
	case CapabilityViolationEvent:
		event.Publish(b.dispatcher, e)
	case HookFiredEvent:
		event.Publish(b.dispatcher, e)
	case ChildSpawnFailedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler, returning an unsubscribe function.
func Subscribe[T Event](b *Bus, handler func(T)) func() {
	return event.Subscribe(b.dispatcher, handler)
}
