package stage

import (
	"time"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// Delay implements spec.md §4.7: detach matching events from the live
// stream and reinject them, at their original pipeline position, once
// Period has elapsed. Reinjection is the runtime's job (via
// DelayScheduler); Delay itself only decides what to detach and when.
type Delay struct {
	Predicates []key.Predicate
	Period     time.Duration
}

func NewDelay(predicates []key.Predicate, period time.Duration) *Delay {
	return &Delay{Predicates: predicates, Period: period}
}

func (d *Delay) Name() string { return "delay" }

func (d *Delay) matches(ev event.Event, ctx *Context) bool {
	if len(d.Predicates) == 0 {
		return true
	}
	for _, p := range d.Predicates {
		if p.Matches(ev, ctx.Tracker) {
			return true
		}
	}
	return false
}

func (d *Delay) Process(ev event.Event, selfIndex int, ctx *Context) []event.Event {
	if !d.matches(ev, ctx) {
		return []event.Event{ev}
	}
	ctx.Delay.Schedule(selfIndex+1, ev, ctx.Now().Add(d.Period))
	return nil
}
