package stage

import (
	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// RepeatMode is one of the three EV_KEY value=2 policies of spec.md §4.12.
type RepeatMode int

const (
	RepeatPassive RepeatMode = iota
	RepeatDisable
	RepeatEnable
)

// Writer is the narrow collaborator Output needs from the kernel-facing
// virtual device: write one event, yielding an error only on a fault the
// caller should log and continue past (spec.md §7 kind 5: runtime
// diagnostic, never fatal).
type Writer interface {
	WriteEvent(ev event.Event) error
}

// Output implements spec.md §4.12. It consumes every event matching its
// predicates, removing them from the stream; everything else passes
// through untouched, for pipelines with more than one Output.
type Output struct {
	Predicates []key.Predicate
	// DeviceName is the name registered with the kernel uinput device
	// (spec.md §6 default "Evsieve Virtual Device"), not the stage's own
	// identifier.
	DeviceName   string
	Repeat       RepeatMode
	Capabilities capability.Set
	Writer       Writer
}

func NewOutput(predicates []key.Predicate, deviceName string, repeat RepeatMode, caps capability.Set) *Output {
	return &Output{Predicates: predicates, DeviceName: deviceName, Repeat: repeat, Capabilities: caps}
}

func (o *Output) Name() string { return "output" }

func (o *Output) matches(ev event.Event, ctx *Context) bool {
	if len(o.Predicates) == 0 {
		return true
	}
	for _, p := range o.Predicates {
		if p.Matches(ev, ctx.Tracker) {
			return true
		}
	}
	return false
}

func (o *Output) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if !o.matches(ev, ctx) {
		return []event.Event{ev}
	}

	if ev.Type == event.EV_KEY && ev.Value == 2 {
		switch o.Repeat {
		case RepeatDisable, RepeatEnable:
			return nil
		}
	}

	if !o.Capabilities.Allows(ev) {
		ctx.Diag.Publish(diag.CapabilityViolationEvent{
			Output: o.DeviceName, Type: uint16(ev.Type), Code: ev.Code, Value: ev.Value,
		})
		return nil
	}

	if o.Writer != nil {
		if err := o.Writer.WriteEvent(ev); err != nil {
			ctx.Diag.Publish(diag.CapabilityViolationEvent{
				Output: o.DeviceName, Type: uint16(ev.Type), Code: ev.Code, Value: ev.Value,
			})
		}
	}
	return nil
}
