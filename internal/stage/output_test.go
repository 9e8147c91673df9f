package stage

import (
	"testing"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	events []event.Event
}

func (w *recordingWriter) WriteEvent(ev event.Event) error {
	w.events = append(w.events, ev)
	return nil
}

func TestOutputConsumesMatchingEvents(t *testing.T) {
	caps := capability.New()
	caps.Add(capability.Key{Type: event.EV_KEY, Code: 30}, capability.Full())
	w := &recordingWriter{}
	o := NewOutput(nil, "dev0", RepeatPassive, caps)
	o.Writer = w
	ctx := newTestContext()

	out := o.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 1}, 0, ctx)
	assert.Nil(t, out, "output consumes every matching event")
	require.Len(t, w.events, 1)
}

func TestOutputDropsOutsideCapabilities(t *testing.T) {
	caps := capability.New()
	caps.Add(capability.Key{Type: event.EV_KEY, Code: 30}, capability.Single(1))
	w := &recordingWriter{}
	o := NewOutput(nil, "dev0", RepeatPassive, caps)
	o.Writer = w
	ctx := newTestContext()

	o.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 9}, 0, ctx)
	assert.Empty(t, w.events, "value outside declared capability set must be dropped, not written")
}

func TestOutputRepeatDisableDropsAutoRepeat(t *testing.T) {
	caps := capability.New()
	caps.Add(capability.Key{Type: event.EV_KEY, Code: 30}, capability.Full())
	w := &recordingWriter{}
	o := NewOutput(nil, "dev0", RepeatDisable, caps)
	o.Writer = w
	ctx := newTestContext()

	o.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 2}, 0, ctx)
	assert.Empty(t, w.events)
}

func TestOutputRepeatPassiveWritesAutoRepeat(t *testing.T) {
	caps := capability.New()
	caps.Add(capability.Key{Type: event.EV_KEY, Code: 30}, capability.Full())
	w := &recordingWriter{}
	o := NewOutput(nil, "dev0", RepeatPassive, caps)
	o.Writer = w
	ctx := newTestContext()

	o.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 2}, 0, ctx)
	require.Len(t, w.events, 1)
}

func TestOutputNonMatchingPassesThrough(t *testing.T) {
	caps := capability.New()
	w := &recordingWriter{}
	o := NewOutput([]key.Predicate{mustPred(t, "key:a")}, "dev0", RepeatPassive, caps)
	o.Writer = w
	ctx := newTestContext()

	ev := event.Event{Type: event.EV_ABS, Code: 0, Value: 5}
	out := o.Process(ev, 0, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, ev, out[0])
	assert.Empty(t, w.events)
}
