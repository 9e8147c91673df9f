// Package stage implements the ten pipeline operators of spec.md §4 plus
// the Input source (SPEC_FULL addition) behind one common interface.
package stage

import (
	"time"

	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/state"
)

// Spawner runs an exec-shell action asynchronously. Implemented by
// internal/runtime; kept as a narrow interface so stages stay unit
// testable without a real process tree.
type Spawner interface {
	Spawn(command string)
}

// DelayScheduler lets the Delay stage detach an event from the live
// stream and have it reinjected at a later, monotonic deadline at a given
// pipeline position (spec.md §4.7).
type DelayScheduler interface {
	Schedule(resumeAt int, ev event.Event, deadline time.Time)
}

// Context is threaded through every Process call: shared, single-threaded
// state (spec.md §5 guarantees no concurrent access), the current wall
// clock, and the side-effect collaborators a stage may need.
type Context struct {
	Tracker *state.Tracker
	Now     func() time.Time
	Spawner Spawner
	Delay   DelayScheduler
	Diag    *diag.Bus
	Toggles *ToggleRegistry
}

// Stage is the common contract every pipeline operator satisfies: a pure
// function of (event, Context) to zero or more output events, plus
// whatever side effects (spawn, schedule, toggle mutation) it performs
// along the way (spec.md §4.3).
type Stage interface {
	// Process handles one event arriving at this stage and returns the
	// events that should continue into the next stage. selfIndex is this
	// stage's position in the compiled pipeline, needed by Delay to
	// schedule reinjection starting at the stage after it.
	Process(ev event.Event, selfIndex int, ctx *Context) []event.Event

	// Name returns a short, human-readable identifier for diagnostics and
	// --print output.
	Name() string
}
