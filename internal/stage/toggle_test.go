package stage

import (
	"testing"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleRegistryResolvesByID(t *testing.T) {
	reg := NewToggleRegistry()
	tg := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g"), mustTarget(t, "@h")}, "t1", true)

	h, err := reg.Register(tg, "t1")
	require.NoError(t, err)

	got, ok := reg.Resolve("t1")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestToggleRegistryRejectsDuplicateID(t *testing.T) {
	reg := NewToggleRegistry()
	a := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g")}, "dup", true)
	b := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g")}, "dup", true)

	_, err := reg.Register(a, "dup")
	require.NoError(t, err)
	_, err = reg.Register(b, "dup")
	assert.Error(t, err)
}

func TestToggleRoutesToActiveTarget(t *testing.T) {
	reg := NewToggleRegistry()
	tg := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g"), mustTarget(t, "@h")}, "", false)
	h, err := reg.Register(tg, "")
	require.NoError(t, err)
	ctx := newTestContext()
	ctx.Toggles = reg

	out := tg.Process(event.Event{Domain: "kb", Value: 1}, 0, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, event.Domain("g"), out[0].Domain)

	reg.Advance(h)
	out = tg.Process(event.Event{Domain: "kb", Value: 1}, 0, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, event.Domain("h"), out[0].Domain)
}

func TestToggleConsistentModeKeepsDownUpPairTogether(t *testing.T) {
	// Mirrors the "Consistent Toggle property" of spec.md §8.
	reg := NewToggleRegistry()
	tg := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g"), mustTarget(t, "@h")}, "", true)
	h, err := reg.Register(tg, "")
	require.NoError(t, err)
	ctx := newTestContext()
	ctx.Toggles = reg

	down := tg.Process(event.Event{Type: event.EV_KEY, Code: 30, Domain: "kb", Value: 1}, 0, ctx)
	require.Len(t, down, 1)
	assert.Equal(t, event.Domain("g"), down[0].Domain)

	reg.Advance(h) // active index flips mid-press

	up := tg.Process(event.Event{Type: event.EV_KEY, Code: 30, Domain: "kb", Value: 0}, 0, ctx)
	require.Len(t, up, 1)
	assert.Equal(t, event.Domain("g"), up[0].Domain, "up must use the index recorded at down")
}

func TestTogglePassiveModeAlwaysUsesCurrentIndex(t *testing.T) {
	reg := NewToggleRegistry()
	tg := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g"), mustTarget(t, "@h")}, "", false)
	h, err := reg.Register(tg, "")
	require.NoError(t, err)
	ctx := newTestContext()
	ctx.Toggles = reg

	down := tg.Process(event.Event{Type: event.EV_KEY, Code: 30, Domain: "kb", Value: 1}, 0, ctx)
	require.Len(t, down, 1)
	assert.Equal(t, event.Domain("g"), down[0].Domain)

	reg.Advance(h)

	up := tg.Process(event.Event{Type: event.EV_KEY, Code: 30, Domain: "kb", Value: 0}, 0, ctx)
	require.Len(t, up, 1)
	assert.Equal(t, event.Domain("h"), up[0].Domain, "passive mode always reflects the live index")
}

func TestToggleSetIndexIsZeroBased(t *testing.T) {
	reg := NewToggleRegistry()
	tg := NewToggle(mustPred(t, "@kb"), []key.Target{mustTarget(t, "@g"), mustTarget(t, "@h")}, "", false)
	h, err := reg.Register(tg, "")
	require.NoError(t, err)

	reg.SetIndex(h, 1)
	ctx := newTestContext()
	ctx.Toggles = reg
	out := tg.Process(event.Event{Domain: "kb", Value: 1}, 0, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, event.Domain("h"), out[0].Domain)
}
