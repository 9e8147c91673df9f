package lifecycle

import (
	"testing"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/stretchr/testify/assert"
)

func TestSameCapabilitiesComparesByValueNotPointer(t *testing.T) {
	a := capability.New()
	a.Add(capability.Key{Type: event.EV_KEY, Code: 30}, capability.Single(1))

	b := capability.New()
	// Single() allocates a fresh *int32 each call, so a naive struct
	// equality check on Range would see different pointers here even
	// though the bounds are identical.
	b.Add(capability.Key{Type: event.EV_KEY, Code: 30}, capability.Single(1))

	assert.True(t, sameCapabilities(a, b))
}

func TestSameCapabilitiesDetectsChangedRange(t *testing.T) {
	a := capability.New()
	a.Add(capability.Key{Type: event.EV_ABS, Code: 0}, capability.Single(10))

	b := capability.New()
	b.Add(capability.Key{Type: event.EV_ABS, Code: 0}, capability.Single(20))

	assert.False(t, sameCapabilities(a, b))
}

func TestSameCapabilitiesDetectsNewCode(t *testing.T) {
	a := capability.New()
	b := capability.New()
	b.Add(capability.Key{Type: event.EV_KEY, Code: 1}, capability.Full())

	assert.False(t, sameCapabilities(a, b))
}
