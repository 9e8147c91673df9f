// Package runtime implements spec.md §4.14's scheduler: the single
// epoll-driven event loop that owns input/output handles, the Delay/Hook
// timer queue, and the exec-shell child reaper.
package runtime

import (
	"fmt"
	"time"

	"github.com/evsieve/evsieve/internal/devio"
	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/errs"
	"github.com/evsieve/evsieve/internal/event"
	"github.com/evsieve/evsieve/internal/pipeline"
	"github.com/evsieve/evsieve/internal/stage"
	"github.com/evsieve/evsieve/internal/state"
	"golang.org/x/sys/unix"
)

// inputHandle pairs a compiled Input declaration with its live reader.
type inputHandle struct {
	decl   *stage.Input
	reader devio.ReaderCapabilities
	id     int
}

// Scheduler drives one compiled Pipeline. It is the sole owner of every
// device fd, the timer queue, and the child reaper; everything it touches
// is single-threaded by construction (spec.md §5).
type Scheduler struct {
	pipeline *pipeline.Pipeline
	inputs   []*inputHandle
	timers   *Timers
	reaper   *ChildReaper
	ctx      *stage.Context
	bus      *diag.Bus

	epfd int
	// fdToInput maps an epoll-registered fd back to its inputHandle index.
	fdToInput map[int]int

	// replacements queues hotplug-reopened readers for the Run goroutine
	// to install; a reopen happens on internal/lifecycle's own goroutine,
	// and epoll/fdToInput/inputs must only ever be touched by Run's
	// single goroutine (spec.md §5's single-threaded guarantee).
	replacements chan inputReplacement
}

type inputReplacement struct {
	id     int
	reader devio.ReaderCapabilities
}

// NewScheduler wires a compiled pipeline to its live device handles. Each
// entry of inputs must correspond, in order, to p.Inputs.
func NewScheduler(p *pipeline.Pipeline, inputs []devio.ReaderCapabilities, bus *diag.Bus, reaper *ChildReaper) (*Scheduler, error) {
	if len(inputs) != len(p.Inputs) {
		return nil, errs.New(errs.Internal, fmt.Errorf("runtime: %d input handles for %d declared inputs", len(inputs), len(p.Inputs)))
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errs.New(errs.Resource, fmt.Errorf("epoll_create1: %w", err))
	}

	s := &Scheduler{
		pipeline:     p,
		timers:       NewTimers(),
		reaper:       reaper,
		bus:          bus,
		epfd:         epfd,
		fdToInput:    make(map[int]int),
		replacements: make(chan inputReplacement, 8),
	}
	s.ctx = &stage.Context{
		Tracker: state.New(),
		Now:     time.Now,
		Spawner: reaper,
		Delay:   s.timers,
		Diag:    bus,
		Toggles: p.Toggles,
	}

	for i, decl := range p.Inputs {
		h := &inputHandle{decl: decl, reader: inputs[i], id: i}
		s.inputs = append(s.inputs, h)
		fd := h.reader.Fd()
		s.fdToInput[fd] = i
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
			unix.Close(epfd)
			return nil, errs.New(errs.Resource, fmt.Errorf("epoll_ctl(ADD, %s): %w", decl.Path, err))
		}
	}

	return s, nil
}

// Close releases the epoll instance. Input/output device handles and
// children are owned and released by internal/lifecycle, not here.
func (s *Scheduler) Close() error {
	return unix.Close(s.epfd)
}

// RequestReplaceInput queues a hotplug-reopened reader to replace the one
// currently registered for input id. It is safe to call from any
// goroutine — internal/lifecycle's Reopener calls it from its own
// watch loop — and never blocks: epoll/fdToInput/inputs are only ever
// touched by Run's own goroutine, which drains this queue at the top of
// every iteration (spec.md §5's single-threaded guarantee). The old
// reader's Close is internal/lifecycle's responsibility, not the
// scheduler's.
func (s *Scheduler) RequestReplaceInput(id int, reader devio.ReaderCapabilities) {
	select {
	case s.replacements <- inputReplacement{id: id, reader: reader}:
	default:
		s.bus.Publish(diag.ChildSpawnFailedEvent{Command: fmt.Sprintf("input %d", id), Err: "replacement queue full, dropped"})
	}
}

// drainReplacements installs every queued reader swap. Called only from
// Run's own goroutine.
func (s *Scheduler) drainReplacements() {
	for {
		select {
		case rep := <-s.replacements:
			s.installReplacement(rep)
		default:
			return
		}
	}
}

func (s *Scheduler) installReplacement(rep inputReplacement) {
	if rep.id < 0 || rep.id >= len(s.inputs) {
		s.bus.Publish(diag.ChildSpawnFailedEvent{Command: fmt.Sprintf("input %d", rep.id), Err: "no such input handle"})
		return
	}
	h := s.inputs[rep.id]
	oldFd := h.reader.Fd()
	newFd := rep.reader.Fd()

	if oldFd != newFd {
		_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, oldFd, nil)
		delete(s.fdToInput, oldFd)
		if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, newFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(newFd)}); err != nil {
			s.bus.Publish(diag.ChildSpawnFailedEvent{Command: fmt.Sprintf("input %d", rep.id), Err: err.Error()})
			return
		}
		s.fdToInput[newFd] = rep.id
	}
	h.reader = rep.reader
}

// Run blocks, driving events until stop is closed. It never returns a
// non-nil error except on an epoll_wait fault unrelated to EINTR.
func (s *Scheduler) Run(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, 16)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		s.drainReplacements()

		timeout := s.waitTimeoutMillis()
		n, err := unix.EpollWait(s.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errs.New(errs.Internal, fmt.Errorf("epoll_wait: %w", err))
		}

		// 1. Drain ready input devices in the order epoll reported them;
		// each device is read until it has no more events before the next
		// one is read, so events of different devices are not interleaved.
		for i := 0; i < n; i++ {
			idx, ok := s.fdToInput[int(events[i].Fd)]
			if !ok {
				continue
			}
			s.drainInput(s.inputs[idx])
		}

		// 3. Advance timers; inject due Delay events (step 3).
		s.drainTimers()

		// 4. Reap exited children — handled asynchronously by ChildReaper's
		// own goroutine-per-child Wait(), so there is nothing to poll here.
	}
}

// drainInput reads every currently-available event from h and drives each
// through the pipeline in arrival order (spec.md §5: "strictly in arrival
// order"). A RuntimeTransient read error is reported via diag and left to
// internal/lifecycle's persist policy; the scheduler itself never retries.
func (s *Scheduler) drainInput(h *inputHandle) {
	for {
		ev, err := h.reader.ReadEvent()
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.bus.Publish(diag.ChildSpawnFailedEvent{Command: h.decl.Path, Err: err.Error()})
			return
		}
		ev.Device = h.id
		s.drive(ev, 0)
	}
}

func (s *Scheduler) drainTimers() {
	for _, due := range s.timers.Due(s.ctx.Now()) {
		s.drive(due.Event, due.ResumeAt)
	}
}

// drive pushes ev through the stage list starting at startIdx, expanding
// however many follow-on events each stage synthesizes (spec.md §4.14 step
// 2). A yielded event bypasses every non-Output stage it meets along the
// way, exactly reproducing "skip to the next Output only" without needing
// a second index space: it simply isn't handed to non-Output Process
// calls, so it passes through unchanged until an Output claims or ignores
// it.
//
// startIdx == 0 means ev just arrived from an input device; every
// transition predicate and value-expression consulted while driving it
// reads Tracker.Previous against the value still in effect before this
// event, so the Tracker update for ev is deferred until the whole pipeline
// pass has finished, per Tracker.Observe's required read-before-write
// ordering. A startIdx > 0 call is a Delay/Hook reinjection of an event
// already observed on its original pass; recording it again here would
// risk clobbering the Tracker with a stale value if a newer event for the
// same (device, type, code, domain) arrived while ev was held.
func (s *Scheduler) drive(ev event.Event, startIdx int) {
	cur := []event.Event{ev}
	stages := s.pipeline.Stages

	for idx := startIdx; idx < len(stages) && len(cur) > 0; idx++ {
		st := stages[idx]
		_, isOutput := st.(*stage.Output)

		var next []event.Event
		for _, e := range cur {
			if e.Yielded && !isOutput {
				next = append(next, e)
				continue
			}
			next = append(next, st.Process(e, idx, s.ctx)...)
		}
		cur = next
	}

	if startIdx == 0 {
		s.ctx.Tracker.Observe(ev)
	}
}

// FlushWithholds releases every event still buffered in a Withhold stage,
// in arrival order, and drives each one through the remainder of the
// pipeline starting immediately after that Withhold — exactly as if it had
// been returned from a normal Process call — so shutdown never silently
// drops a withheld event (spec.md §4.10's totality guarantee). Called once
// by internal/lifecycle.Shutdown, after Run has returned and before any
// output device is closed.
func (s *Scheduler) FlushWithholds() {
	for idx, st := range s.pipeline.Stages {
		w, ok := st.(*stage.Withhold)
		if !ok {
			continue
		}
		for _, ev := range w.Flush() {
			s.drive(ev, idx+1)
		}
	}
}

// waitTimeoutMillis computes the epoll_wait timeout that keeps the next
// Delay/Hook-period deadline on schedule without busy-waiting.
func (s *Scheduler) waitTimeoutMillis() int {
	deadline, ok := s.timers.NextDeadline()
	if !ok {
		return 1000
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > 1000 {
		return 1000
	}
	return int(ms)
}
