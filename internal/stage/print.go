package stage

import (
	"fmt"
	"io"
	"os"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// Print implements spec.md §4.11: pass events through unchanged, writing a
// line to Out for each match. Output format is advisory (spec.md §1
// Non-goals: no stable machine-parsable output).
type Print struct {
	Predicates []key.Predicate
	Direct     bool // format=direct: terser, one value per line
	Out        io.Writer
}

func NewPrint(predicates []key.Predicate, direct bool) *Print {
	return &Print{Predicates: predicates, Direct: direct, Out: os.Stdout}
}

func (p *Print) Name() string { return "print" }

func (p *Print) matches(ev event.Event, ctx *Context) bool {
	if len(p.Predicates) == 0 {
		return true
	}
	for _, pred := range p.Predicates {
		if pred.Matches(ev, ctx.Tracker) {
			return true
		}
	}
	return false
}

func (p *Print) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if p.matches(ev, ctx) {
		if p.Direct {
			fmt.Fprintf(p.Out, "%d:%d:%d\n", ev.Type, ev.Code, ev.Value)
		} else {
			fmt.Fprintf(p.Out, "Event: type %d, code %d, value %d, domain %q\n", ev.Type, ev.Code, ev.Value, ev.Domain)
		}
	}
	return []event.Event{ev}
}
