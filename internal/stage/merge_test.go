package stage

import (
	"testing"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/stretchr/testify/assert"
)

func TestMergeDefaultPredicateIsAnyKeyEvent(t *testing.T) {
	m := NewMerge(nil)
	ctx := newTestContext()

	out := m.Process(event.Event{Type: event.EV_ABS, Code: 0, Value: 1}, 0, ctx)
	assert.Len(t, out, 1, "non-EV_KEY events are not subject to merging under the default predicate")
}

func TestMergeTwoFingerPress(t *testing.T) {
	// Mirrors spec.md §8 scenario 5: A down, B down, B up, C down, C up, A up.
	m := NewMerge(nil)
	ctx := newTestContext()
	const code = 30 // arbitrary shared code standing in for "the merged key"

	aDown := m.Process(event.Event{Type: event.EV_KEY, Code: code, Value: 1}, 0, ctx)
	assert.Len(t, aDown, 1, "first down passes")

	bDown := m.Process(event.Event{Type: event.EV_KEY, Code: code, Value: 1}, 0, ctx)
	assert.Empty(t, bDown, "second down is suppressed")

	bUp := m.Process(event.Event{Type: event.EV_KEY, Code: code, Value: 0}, 0, ctx)
	assert.Empty(t, bUp, "releasing while still one held does not emit")

	cDown := m.Process(event.Event{Type: event.EV_KEY, Code: code, Value: 1}, 0, ctx)
	assert.Empty(t, cDown, "third down is suppressed")

	cUp := m.Process(event.Event{Type: event.EV_KEY, Code: code, Value: 0}, 0, ctx)
	assert.Empty(t, cUp)

	aUp := m.Process(event.Event{Type: event.EV_KEY, Code: code, Value: 0}, 0, ctx)
	assert.Len(t, aUp, 1, "final release brings counter to zero and passes")
}

func TestMergeRepeatAlwaysPasses(t *testing.T) {
	m := NewMerge(nil)
	ctx := newTestContext()
	out := m.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 2}, 0, ctx)
	assert.Len(t, out, 1)
}

func TestMergeCounterSaturatesAtZero(t *testing.T) {
	m := NewMerge(nil)
	ctx := newTestContext()
	// An up with no matching down must not underflow the counter.
	out := m.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 0}, 0, ctx)
	assert.Len(t, out, 1)
}

func TestMergeIsPerCodeAndDomain(t *testing.T) {
	m := NewMerge(nil)
	ctx := newTestContext()

	down1 := m.Process(event.Event{Type: event.EV_KEY, Code: 30, Domain: "kb1", Value: 1}, 0, ctx)
	assert.Len(t, down1, 1)

	down2 := m.Process(event.Event{Type: event.EV_KEY, Code: 30, Domain: "kb2", Value: 1}, 0, ctx)
	assert.Len(t, down2, 1, "a different domain has an independent counter")
}
