package runtime

import (
	"container/heap"
	"time"

	"github.com/evsieve/evsieve/internal/event"
)

// delayedEvent is one event detached from the live stream by the Delay
// stage (spec.md §4.7), waiting to be reinjected at deadline starting at
// stage resumeAt.
type delayedEvent struct {
	resumeAt int
	ev       event.Event
	deadline time.Time
	seq      int64 // arrival order, tiebreaks equal deadlines
	index    int   // heap.Interface bookkeeping
}

// timerHeap is a container/heap min-heap ordered by deadline, with arrival
// order as an explicit tiebreaker: container/heap gives no ordering
// guarantee among equal elements, but spec.md requires two reinjections due
// at the identical deadline to pop in the order they were scheduled. No
// pack example implements a delay queue (the teacher's domain has no
// event-scheduling concern), so this is grounded directly on the standard
// library's documented container/heap.Interface pattern rather than a
// third-party timer-wheel library.
type timerHeap []*delayedEvent

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	item := x.(*delayedEvent)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Timers implements stage.DelayScheduler over a timerHeap, plus the drain
// operations the scheduler's main loop needs: how long until the next
// deadline, and which events have become due.
type Timers struct {
	h       timerHeap
	nextSeq int64
}

// NewTimers returns an empty timer queue.
func NewTimers() *Timers {
	t := &Timers{}
	heap.Init(&t.h)
	return t
}

// Schedule implements stage.DelayScheduler.
func (t *Timers) Schedule(resumeAt int, ev event.Event, deadline time.Time) {
	heap.Push(&t.h, &delayedEvent{resumeAt: resumeAt, ev: ev, deadline: deadline, seq: t.nextSeq})
	t.nextSeq++
}

// Len reports how many events are still waiting.
func (t *Timers) Len() int { return t.h.Len() }

// NextDeadline returns the earliest pending deadline and whether one
// exists at all.
func (t *Timers) NextDeadline() (time.Time, bool) {
	if t.h.Len() == 0 {
		return time.Time{}, false
	}
	return t.h[0].deadline, true
}

// DueEvent is one reinjection ready to resume at ResumeAt.
type DueEvent struct {
	ResumeAt int
	Event    event.Event
}

// Due pops and returns every event whose deadline is at or before now, in
// deadline order, pairing each with the stage index it should resume at.
func (t *Timers) Due(now time.Time) []DueEvent {
	var due []DueEvent
	for t.h.Len() > 0 && !t.h[0].deadline.After(now) {
		item := heap.Pop(&t.h).(*delayedEvent)
		due = append(due, DueEvent{ResumeAt: item.resumeAt, Event: item.ev})
	}
	return due
}
