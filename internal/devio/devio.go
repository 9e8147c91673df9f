// Package devio is the narrow, externally-scoped collaborator spec.md §1
// carves out: "the foreign input-subsystem library providing event I/O and
// capability introspection". Everything in this package is a thin adapter
// around a real kernel device; the core engine (internal/stage,
// internal/pipeline, internal/runtime) only ever depends on the three
// interfaces below, never on gvalkov/golang-evdev or the raw uinput ioctl
// calls directly, so it stays unit-testable without a real /dev/input node.
package devio

import (
	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
)

// Reader is a readable evdev input device.
type Reader interface {
	// ReadEvent blocks until one event is available and returns it.
	// internal/runtime only calls this after its epoll wait reports the
	// underlying fd readable, so in practice it never blocks for long.
	ReadEvent() (event.Event, error)

	// Fd returns the underlying file descriptor for epoll registration.
	Fd() int

	// Grab claims or releases exclusive access to the device (spec.md
	// Glossary: "Grab").
	Grab(exclusive bool) error

	// Close releases the device, including any active grab.
	Close() error
}

// CapabilityProber exposes the live (type, code, value-range) bitmap a
// kernel device advertises, queried once at startup to seed capability
// propagation (spec.md §4.13: "initialize each input's capability set
// from the kernel").
type CapabilityProber interface {
	Capabilities() capability.Set
}

// Writer is a virtual (uinput) output device.
type Writer interface {
	// WriteEvent writes one event to the virtual device.
	WriteEvent(ev event.Event) error

	// DevNode returns the kernel-assigned device node path (e.g.
	// "/dev/input/event7"), used by lifecycle to point a create-link
	// symlink at the right target.
	DevNode() (string, error)

	// Close destroys the virtual device.
	Close() error
}

// InputOpener opens path as a Reader+CapabilityProber pair. Implemented in
// evdev.go (build-tagged linux); swappable in tests via a fake.
type InputOpener func(path string) (ReaderCapabilities, error)

// ReaderCapabilities is the combined interface a real evdev device
// satisfies: readable and capability-introspectable.
type ReaderCapabilities interface {
	Reader
	CapabilityProber
}

// OutputOpener creates a Writer for the given declared capability set.
// Implemented in uinput.go (build-tagged linux).
type OutputOpener func(name string, caps capability.Set) (Writer, error)
