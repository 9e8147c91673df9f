package stage

import "github.com/evsieve/evsieve/internal/event"

// GrabMode selects when an Input claims exclusive read access to its
// device (SPEC_FULL §3/§9: the `--input` stage's grab option).
type GrabMode int

const (
	GrabNone GrabMode = iota
	GrabForce
	GrabAuto
)

// PersistMode selects the runtime-transient error policy of spec.md §7
// kind 4 for a given Input.
type PersistMode int

const (
	PersistNone PersistMode = iota
	PersistReopen
	PersistExit
)

// Input is the zeroth stage type SPEC_FULL adds: the declaration of one
// physical input device and its lifecycle policy. Unlike the ten
// mid-pipeline operators it has no Process method — it is the source the
// scheduler reads from, not a transform applied to an existing event;
// internal/lifecycle and internal/devio own the actual open/grab/reopen
// machinery described here.
type Input struct {
	Path    string
	Grab    GrabMode
	Persist PersistMode
	Domain  event.Domain
}

func NewInput(path string, grab GrabMode, persist PersistMode, domain event.Domain) *Input {
	return &Input{Path: path, Grab: grab, Persist: persist, Domain: domain}
}
