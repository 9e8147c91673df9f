package stage

import (
	"time"

	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/state"
)

// newTestContext builds a Context suitable for unit-testing a single stage
// in isolation: a fresh tracker, a fixed clock, and no spawner/scheduler
// (stages that need them construct their own contexts in their tests).
func newTestContext() *Context {
	fixed := time.Unix(1700000000, 0)
	return &Context{
		Tracker: state.New(),
		Now:     func() time.Time { return fixed },
		Diag:    diag.New(),
	}
}
