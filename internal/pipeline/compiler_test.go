package pipeline

import (
	"testing"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSimpleMapPipeline(t *testing.T) {
	// Mirrors spec.md §8 scenario 1.
	p, err := Compile([]string{
		"--input", "/dev/input/event0", "grab",
		"--map", "key:capslock", "key:backspace",
		"--output",
	})
	require.NoError(t, err)
	require.Len(t, p.Inputs, 1)
	assert.Equal(t, stage.GrabForce, p.Inputs[0].Grab)
	require.Len(t, p.Stages, 2)

	m, ok := p.Stages[0].(*stage.Map)
	require.True(t, ok)
	assert.Len(t, m.Targets, 1)

	_, ok = p.Stages[1].(*stage.Output)
	require.True(t, ok)
}

func TestCompileRejectsEmptyArgv(t *testing.T) {
	_, err := Compile(nil)
	assert.Error(t, err)
}

func TestCompileRejectsMissingInput(t *testing.T) {
	_, err := Compile([]string{"--map", "key:a", "key:b", "--output"})
	assert.Error(t, err)
}

func TestCompileRejectsMissingOutput(t *testing.T) {
	_, err := Compile([]string{"--input", "/dev/input/event0"})
	assert.Error(t, err)
}

func TestCompileRejectsWithholdWithoutHook(t *testing.T) {
	_, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--withhold",
		"--output",
	})
	assert.Error(t, err)
}

func TestCompileRejectsUnknownStage(t *testing.T) {
	_, err := Compile([]string{"--input", "/dev/input/event0", "--nosuchstage", "--output"})
	assert.Error(t, err)
}

func TestCompileHookWithholdBinding(t *testing.T) {
	// Mirrors spec.md §8 scenario 6: a two-key combo withheld until its
	// hook either fires or becomes impossible.
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--hook", "key:leftctrl", "key:a", "send-key=leftctrl",
		"--withhold",
		"--output",
	})
	require.NoError(t, err)
	require.Len(t, p.Stages, 3)

	h, ok := p.Stages[0].(*stage.Hook)
	require.True(t, ok)

	w, ok := p.Stages[1].(*stage.Withhold)
	require.True(t, ok)
	assert.Equal(t, []*stage.Hook{h}, w.Hooks)
}

func TestCompileHookBindsMultiplePrecedingHooks(t *testing.T) {
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--hook", "key:leftctrl",
		"--hook", "key:a",
		"--withhold",
		"--output",
	})
	require.NoError(t, err)

	w := p.Stages[2].(*stage.Withhold)
	assert.Len(t, w.Hooks, 2)
}

func TestCompileToggleResolvesRegardlessOfDeclarationOrder(t *testing.T) {
	// The --hook clause referencing id=layer appears before the --toggle
	// that declares it; spec.md §4.13 requires this to still resolve.
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--hook", "key:capslock", "toggle=layer",
		"--toggle", "id=layer", "key:f", "key:a", "key:b",
		"--output",
	})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestCompileToggleUnresolvedIDIsError(t *testing.T) {
	_, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--hook", "key:capslock", "toggle=nosuchid",
		"--output",
	})
	assert.Error(t, err)
}

func TestCompileDuplicateToggleIDIsError(t *testing.T) {
	_, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--toggle", "id=layer", "key:a", "key:b",
		"--toggle", "id=layer", "key:c", "key:d",
		"--output",
	})
	assert.Error(t, err)
}

func TestCompileDelayRequiresPeriod(t *testing.T) {
	_, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--delay", "key:a",
		"--output",
	})
	assert.Error(t, err)
}

func TestCompileOutputRepeatBareFlagMeansEnable(t *testing.T) {
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--output", "repeat",
	})
	require.NoError(t, err)
	o := p.Stages[0].(*stage.Output)
	assert.Equal(t, stage.RepeatEnable, o.Repeat)
}

func TestCompileOutputCreateLinkIsRecorded(t *testing.T) {
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--output", "create-link=/dev/input/by-id/my-link",
	})
	require.NoError(t, err)
	o := p.Stages[0].(*stage.Output)
	assert.Equal(t, "/dev/input/by-id/my-link", p.OutputLinks[o])
}

func TestComputeCapabilitiesWidensThroughMapTargets(t *testing.T) {
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--map", "key:capslock", "key:backspace",
		"--output",
	})
	require.NoError(t, err)

	inputCaps := map[string]capability.Set{
		"/dev/input/event0": func() capability.Set {
			s := capability.New()
			s.Add(capability.Key{Type: event.EV_KEY, Code: 58}, capability.Range{Min: int32p(0), Max: int32p(1)})
			return s
		}(),
	}
	p.ComputeCapabilities(inputCaps)

	o := p.Stages[1].(*stage.Output)
	assert.True(t, o.Capabilities.Allows(event.Event{Type: event.EV_KEY, Code: 58, Value: 1}), "source capability must still be present")
	assert.True(t, o.Capabilities.Allows(event.Event{Type: event.EV_KEY, Code: 14, Value: 1}), "mapped target capability must be widened in")
}

func TestComputeCapabilitiesWidensThroughHookSendKey(t *testing.T) {
	p, err := Compile([]string{
		"--input", "/dev/input/event0",
		"--hook", "key:capslock", "send-key=esc",
		"--output",
	})
	require.NoError(t, err)

	inputCaps := map[string]capability.Set{
		"/dev/input/event0": func() capability.Set {
			s := capability.New()
			s.Add(capability.Key{Type: event.EV_KEY, Code: 58}, capability.Range{Min: int32p(0), Max: int32p(1)})
			return s
		}(),
	}
	p.ComputeCapabilities(inputCaps)

	o := p.Stages[len(p.Stages)-1].(*stage.Output)
	assert.True(t, o.Capabilities.Allows(event.Event{Type: event.EV_KEY, Code: 1, Value: 1}),
		"a hook's send-key synthesis must be widened into the running capability set")
	assert.False(t, o.Capabilities.Allows(event.Event{Type: event.EV_KEY, Code: 1, Value: 2}),
		"send-key only ever carries down (1) or up (0), never a repeat")
}

func int32p(v int32) *int32 { return &v }
