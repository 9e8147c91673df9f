package capability

import (
	"testing"

	"github.com/evsieve/evsieve/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeJoinWidens(t *testing.T) {
	a := Single(1)
	b := Single(0)
	joined := a.Join(b)
	require.NotNil(t, joined.Min)
	require.NotNil(t, joined.Max)
	assert.Equal(t, int32(0), *joined.Min)
	assert.Equal(t, int32(1), *joined.Max)
}

func TestRangeJoinUnboundedAbsorbs(t *testing.T) {
	joined := Single(5).Join(Full())
	assert.Nil(t, joined.Min, "joining with an unbounded range must stay unbounded")
	assert.Nil(t, joined.Max)
}

func TestSetAllows(t *testing.T) {
	s := New()
	s.Add(Key{Type: event.EV_KEY, Code: 30}, Range{Min: int32p(0), Max: int32p(2)})

	assert.True(t, s.Allows(event.Event{Type: event.EV_KEY, Code: 30, Value: 1}))
	assert.False(t, s.Allows(event.Event{Type: event.EV_KEY, Code: 30, Value: 3}), "out-of-range value must be rejected")
	assert.False(t, s.Allows(event.Event{Type: event.EV_KEY, Code: 31, Value: 1}), "unknown code must be rejected")
}

func TestSetMergeIsUnion(t *testing.T) {
	a := New()
	a.Add(Key{Type: event.EV_KEY, Code: 30}, Single(1))
	b := New()
	b.Add(Key{Type: event.EV_KEY, Code: 48}, Single(1))

	a.Merge(b)
	assert.Len(t, a, 2)
}

func int32p(v int32) *int32 { return &v }
