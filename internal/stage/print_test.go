package stage

import (
	"bytes"
	"testing"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPassesThroughAndLogsMatches(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrint(nil, false)
	p.Out = &buf
	ctx := newTestContext()

	ev := event.Event{Type: event.EV_KEY, Code: 30, Value: 1}
	out := p.Process(ev, 0, ctx)

	require.Len(t, out, 1)
	assert.Equal(t, ev, out[0])
	assert.NotEmpty(t, buf.String())
}

func TestPrintDirectFormatIsTerser(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrint(nil, true)
	p.Out = &buf
	ctx := newTestContext()

	p.Process(event.Event{Type: event.EV_KEY, Code: 30, Value: 1}, 0, ctx)
	assert.Equal(t, "1:30:1\n", buf.String())
}

func TestPrintSkipsNonMatching(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrint([]key.Predicate{mustPred(t, "key:a")}, false)
	p.Out = &buf
	ctx := newTestContext()

	out := p.Process(event.Event{Type: event.EV_ABS, Code: 0, Value: 1}, 0, ctx)
	require.Len(t, out, 1)
	assert.Empty(t, buf.String(), "a non-matching event must not be printed")
}
