package runtime

import (
	"testing"
	"time"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/key"
	"github.com/evsieve/evsieve/internal/pipeline"
	"github.com/evsieve/evsieve/internal/stage"
	"github.com/evsieve/evsieve/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReaderCapabilities is a devio.ReaderCapabilities double with a fd
// under the test's control, for exercising replacement bookkeeping
// without a real epoll instance.
type fakeReaderCapabilities struct {
	fd int
}

func (f *fakeReaderCapabilities) ReadEvent() (event.Event, error) { return event.Event{}, nil }
func (f *fakeReaderCapabilities) Fd() int                         { return f.fd }
func (f *fakeReaderCapabilities) Grab(exclusive bool) error       { return nil }
func (f *fakeReaderCapabilities) Close() error                    { return nil }
func (f *fakeReaderCapabilities) Capabilities() capability.Set    { return capability.New() }

// recordingStage appends every event it sees to seen and forwards it
// unchanged, optionally tagging it via tag for assertions.
type recordingStage struct {
	name string
	seen *[]event.Event
	tag  func(event.Event) event.Event
}

func (s *recordingStage) Process(ev event.Event, selfIndex int, ctx *stage.Context) []event.Event {
	*s.seen = append(*s.seen, ev)
	if s.tag != nil {
		ev = s.tag(ev)
	}
	return []event.Event{ev}
}

func (s *recordingStage) Name() string { return s.name }

// droppingStage swallows every event (models Output consuming a match).
type droppingStage struct{ name string }

func (s *droppingStage) Process(ev event.Event, selfIndex int, ctx *stage.Context) []event.Event {
	return nil
}

func (s *droppingStage) Name() string { return s.name }

func newSchedulerForDriveTest(stages []stage.Stage) *Scheduler {
	fixed := time.Unix(1700000000, 0)
	return &Scheduler{
		pipeline: &pipeline.Pipeline{Stages: stages},
		timers:   NewTimers(),
		ctx: &stage.Context{
			Tracker: state.New(),
			Now:     func() time.Time { return fixed },
			Diag:    diag.New(),
		},
		bus:          diag.New(),
		fdToInput:    make(map[int]int),
		replacements: make(chan inputReplacement, 8),
	}
}

func TestRequestReplaceInputIsNonBlockingAndQueued(t *testing.T) {
	s := newSchedulerForDriveTest(nil)
	h := &inputHandle{id: 0, reader: &fakeReaderCapabilities{fd: 10}}
	s.inputs = []*inputHandle{h}
	s.fdToInput[10] = 0

	replacement := &fakeReaderCapabilities{fd: 11}
	s.RequestReplaceInput(0, replacement)

	require.Len(t, s.replacements, 1)
	assert.Equal(t, 10, h.reader.Fd(), "RequestReplaceInput must not mutate state itself")
}

func TestDrainReplacementsInstallsQueuedReader(t *testing.T) {
	s := newSchedulerForDriveTest(nil)
	h := &inputHandle{id: 0, reader: &fakeReaderCapabilities{fd: 10}}
	s.inputs = []*inputHandle{h}
	s.fdToInput[10] = 0

	replacement := &fakeReaderCapabilities{fd: 10}
	s.RequestReplaceInput(0, replacement)
	s.drainReplacements()

	assert.Same(t, replacement, s.inputs[0].reader)
	assert.Empty(t, s.replacements)
}

func TestRequestReplaceInputUnknownIDIsReportedNotPanicked(t *testing.T) {
	s := newSchedulerForDriveTest(nil)
	s.RequestReplaceInput(5, &fakeReaderCapabilities{fd: 1})
	assert.NotPanics(t, func() { s.drainReplacements() })
}

func TestDrivePushesEventThroughEveryStage(t *testing.T) {
	var seenA, seenB []event.Event
	stages := []stage.Stage{
		&recordingStage{name: "a", seen: &seenA},
		&recordingStage{name: "b", seen: &seenB},
	}
	s := newSchedulerForDriveTest(stages)

	s.drive(event.Event{Type: event.EV_KEY, Code: 30, Value: 1}, 0)

	require.Len(t, seenA, 1)
	require.Len(t, seenB, 1)
	assert.Equal(t, uint16(30), seenA[0].Code)
	assert.Equal(t, uint16(30), seenB[0].Code)
}

func TestDriveStartsAtResumeIndexForDelayReinjection(t *testing.T) {
	var seenA, seenB []event.Event
	stages := []stage.Stage{
		&recordingStage{name: "a", seen: &seenA},
		&recordingStage{name: "b", seen: &seenB},
	}
	s := newSchedulerForDriveTest(stages)

	// A Delay reinjection starts at the stage after the Delay, so stage
	// "a" (the Delay's own position) must never see it.
	s.drive(event.Event{Type: event.EV_KEY, Code: 1, Value: 1}, 1)

	assert.Empty(t, seenA)
	require.Len(t, seenB, 1)
}

func TestDriveYieldedEventBypassesNonOutputStages(t *testing.T) {
	var seenA []event.Event
	stages := []stage.Stage{
		&recordingStage{name: "a", seen: &seenA},
		&stage.Output{Writer: &captureWriter{}},
	}
	s := newSchedulerForDriveTest(stages)

	ev := event.Event{Type: event.EV_KEY, Code: 2, Value: 1}.Yield()
	s.drive(ev, 0)

	assert.Empty(t, seenA, "a yielded event must skip non-Output stages")
}

// captureWriter is a minimal stage.Writer double for constructing an
// Output stage without a real uinput device.
type captureWriter struct{ written []event.Event }

func (w *captureWriter) WriteEvent(ev event.Event) error {
	w.written = append(w.written, ev)
	return nil
}

func TestDriveStopsOnceEventsAreFullyConsumed(t *testing.T) {
	var seenA []event.Event
	stages := []stage.Stage{
		&droppingStage{name: "drop"},
		&recordingStage{name: "a", seen: &seenA},
	}
	s := newSchedulerForDriveTest(stages)

	s.drive(event.Event{Type: event.EV_KEY, Code: 3, Value: 1}, 0)

	assert.Empty(t, seenA, "a stage after a dropping stage should see nothing")
}

func TestDriveObservesNewInputEventsButNotReinjections(t *testing.T) {
	s := newSchedulerForDriveTest(nil)

	s.drive(event.Event{Device: 0, Type: event.EV_KEY, Code: 30, Value: 1}, 0)
	_, ok := s.ctx.Tracker.Previous(0, event.EV_KEY, 30, "")
	assert.True(t, ok, "a freshly arrived input event (startIdx 0) must update the Tracker")

	s.drive(event.Event{Device: 0, Type: event.EV_KEY, Code: 31, Value: 1}, 1)
	_, ok = s.ctx.Tracker.Previous(0, event.EV_KEY, 31, "")
	assert.False(t, ok, "a Delay/Hook reinjection (startIdx > 0) must not re-observe an already-recorded event")
}

func TestFlushWithholdsDrivesReleasedEventsFromAfterTheWithhold(t *testing.T) {
	var seenAfter []event.Event
	boundSlot, err := key.ParsePredicate("key:esc")
	require.NoError(t, err)
	bound := stage.NewHook([]key.Predicate{boundSlot}, false, 0, nil)
	w := stage.NewWithhold(nil, []*stage.Hook{bound})
	stages := []stage.Stage{
		w,
		&recordingStage{name: "after", seen: &seenAfter},
	}
	s := newSchedulerForDriveTest(stages)

	// The combo is still possible (the bound hook hasn't fired or failed
	// yet), so this event gets buffered rather than passed straight through.
	out := w.Process(event.Event{Type: event.EV_KEY, Code: 1, Value: 1}, 0, s.ctx)
	require.Empty(t, out, "a still-possible combo buffers its event instead of forwarding it")
	require.Empty(t, seenAfter)

	s.FlushWithholds()

	require.NotEmpty(t, seenAfter, "a flushed withhold event must still reach the stages after it")
}

func TestWaitTimeoutMillisDefaultsWhenQueueEmpty(t *testing.T) {
	s := newSchedulerForDriveTest(nil)
	assert.Equal(t, 1000, s.waitTimeoutMillis())
}

func TestWaitTimeoutMillisTracksNearestDeadline(t *testing.T) {
	s := newSchedulerForDriveTest(nil)
	s.timers.Schedule(0, event.Event{}, time.Now().Add(10*time.Millisecond))
	ms := s.waitTimeoutMillis()
	assert.GreaterOrEqual(t, ms, 0)
	assert.LessOrEqual(t, ms, 1000)
}

func TestWaitTimeoutMillisClampsToOneSecond(t *testing.T) {
	s := newSchedulerForDriveTest(nil)
	s.timers.Schedule(0, event.Event{}, time.Now().Add(time.Hour))
	assert.Equal(t, 1000, s.waitTimeoutMillis())
}
