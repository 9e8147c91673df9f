package key

import (
	"testing"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPredicate(t *testing.T, s string) Predicate {
	t.Helper()
	p, err := ParsePredicate(s)
	require.NoError(t, err)
	return p
}

func TestPredicateWildcardComponents(t *testing.T) {
	p := mustPredicate(t, "")
	tr := state.New()
	assert.True(t, p.Matches(event.Event{Type: event.EV_KEY, Code: 1, Value: 1, Domain: "kb"}, tr))
}

func TestPredicateTypeCodeValue(t *testing.T) {
	p := mustPredicate(t, "key:capslock:1")
	tr := state.New()

	assert.True(t, p.Matches(event.Event{Type: event.EV_KEY, Code: 58, Value: 1}, tr))
	assert.False(t, p.Matches(event.Event{Type: event.EV_KEY, Code: 58, Value: 0}, tr), "wrong value must not match")
	assert.False(t, p.Matches(event.Event{Type: event.EV_ABS, Code: 58, Value: 1}, tr), "wrong type must not match")
}

func TestPredicateRange(t *testing.T) {
	p := mustPredicate(t, "abs:x:100~200")
	tr := state.New()
	assert.True(t, p.Matches(event.Event{Type: event.EV_ABS, Code: 0, Value: 150}, tr))
	assert.True(t, p.Matches(event.Event{Type: event.EV_ABS, Code: 0, Value: 100}, tr), "lower bound is inclusive")
	assert.True(t, p.Matches(event.Event{Type: event.EV_ABS, Code: 0, Value: 200}, tr), "upper bound is inclusive")
	assert.False(t, p.Matches(event.Event{Type: event.EV_ABS, Code: 0, Value: 201}, tr))
}

func TestPredicateDomain(t *testing.T) {
	p := mustPredicate(t, "@kb")
	tr := state.New()
	assert.True(t, p.Matches(event.Event{Domain: "kb"}, tr))
	assert.False(t, p.Matches(event.Event{Domain: "mouse"}, tr))
}

func TestPredicateTransition(t *testing.T) {
	// Mirrors spec.md §8 scenario 3: abs:x:~199..200~
	p := mustPredicate(t, "abs:x:~199..200~")
	tr := state.New()

	ev1 := event.Event{Device: 0, Type: event.EV_ABS, Code: 0, Value: 180}
	assert.False(t, p.Matches(ev1, tr), "no previous value yet: transition cannot match")
	tr.Observe(ev1)

	ev2 := event.Event{Device: 0, Type: event.EV_ABS, Code: 0, Value: 201}
	assert.True(t, p.Matches(ev2, tr), "180 -> 201 should satisfy ~199..200~")
	tr.Observe(ev2)

	ev3 := event.Event{Device: 0, Type: event.EV_ABS, Code: 0, Value: 150}
	// reverse direction key:a:0 predicate would be "200~..~199"
	revert, err := ParsePredicate("abs:x:200~..~199")
	require.NoError(t, err)
	assert.True(t, revert.Matches(ev3, tr), "201 -> 150 should satisfy 200~..~199")
}

func TestPredicateNumericCodeMarker(t *testing.T) {
	p := mustPredicate(t, "key:#30:1")
	tr := state.New()
	assert.True(t, p.Matches(event.Event{Type: event.EV_KEY, Code: 30, Value: 1}, tr))
}

func TestPredicateUnknownNameIsError(t *testing.T) {
	_, err := ParsePredicate("key:nosuchkey")
	assert.Error(t, err)
}

func TestTargetCopiesUnspecifiedFromSource(t *testing.T) {
	tg, err := ParseTarget("key:backspace")
	require.NoError(t, err)

	tr := state.New()
	source := event.Event{Type: event.EV_KEY, Code: 58, Value: 1, Domain: "kb"}
	out := tg.Apply(source, tr)

	assert.Equal(t, event.EV_KEY, out.Type)
	assert.Equal(t, uint16(14), out.Code, "backspace code")
	assert.Equal(t, int32(1), out.Value, "value copies from source")
	assert.Equal(t, event.Domain("kb"), out.Domain, "domain copies from source")
}

func TestTargetExplicitDomain(t *testing.T) {
	tg, err := ParseTarget("@guest")
	require.NoError(t, err)
	out := tg.Apply(event.Event{Domain: "host"}, state.New())
	assert.Equal(t, event.Domain("guest"), out.Domain)
}

func TestTargetConstantValue(t *testing.T) {
	tg, err := ParseTarget("key:a:1")
	require.NoError(t, err)
	out := tg.Apply(event.Event{Value: 99}, state.New())
	assert.Equal(t, int32(1), out.Value)
}

func TestTargetAffineExpression(t *testing.T) {
	tg, err := ParseTarget("abs:x:0.5x")
	require.NoError(t, err)
	out := tg.Apply(event.Event{Device: 0, Type: event.EV_ABS, Code: 0, Value: 200}, state.New())
	assert.Equal(t, int32(100), out.Value)
}

func TestTargetAffineExpressionWithDelta(t *testing.T) {
	tg, err := ParseTarget("abs:x:d")
	require.NoError(t, err)
	tr := state.New()
	tr.Observe(event.Event{Device: 0, Type: event.EV_ABS, Code: 0, Value: 10})
	out := tg.Apply(event.Event{Device: 0, Type: event.EV_ABS, Code: 0, Value: 15}, tr)
	assert.Equal(t, int32(5), out.Value, "d = current - previous")
}

func TestTargetRejectsRangesAndTransitions(t *testing.T) {
	_, err := ParseTarget("key:a:1~2")
	assert.Error(t, err)
	_, err = ParseTarget("key:a:1..2")
	assert.Error(t, err)
}

func TestParseIdentityDefaultsToEVKey(t *testing.T) {
	typ, code, err := ParseIdentity("leftalt")
	require.NoError(t, err)
	assert.Equal(t, event.EV_KEY, typ)
	assert.Equal(t, uint16(56), code)
}

func TestParseIdentityRejectsValue(t *testing.T) {
	_, _, err := ParseIdentity("key:a:1")
	assert.Error(t, err)
}

func TestClampRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int32(3), clampRound(2.5))
	assert.Equal(t, int32(-3), clampRound(-2.5))
	assert.Equal(t, int32(2), clampRound(2.4))
}
