package stage

import (
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
)

// Block implements spec.md §4.5: drop events matching any Predicate. With
// zero predicates it drops everything, a terminal sink.
type Block struct {
	Predicates []key.Predicate
}

func NewBlock(predicates []key.Predicate) *Block {
	return &Block{Predicates: predicates}
}

func (b *Block) Name() string { return "block" }

func (b *Block) Process(ev event.Event, _ int, ctx *Context) []event.Event {
	if len(b.Predicates) == 0 {
		return nil
	}
	for _, p := range b.Predicates {
		if p.Matches(ev, ctx.Tracker) {
			return nil
		}
	}
	return []event.Event{ev}
}
