package runtime

import (
	"os"
	"os/signal"
	"syscall"
)

// ShutdownReason distinguishes a clean shutdown request from a forced one
// (spec.md §5: "two SIGINTs force exit without full cleanup").
type ShutdownReason int

const (
	// ShutdownGraceful means run the full teardown sequence: release
	// grabs, destroy virtual devices, remove symlinks, terminate
	// exec-shell children, then exit.
	ShutdownGraceful ShutdownReason = iota
	// ShutdownForced means a second signal arrived before graceful
	// teardown finished; skip straight to process exit.
	ShutdownForced
)

// SignalWatcher turns SIGINT/SIGTERM/SIGHUP into a single ShutdownReason
// channel, grounded on the teacher's internal/process.Manager's
// signal.Notify/select idiom but adapted for evsieve's two-signals-forces-exit
// contract instead of the teacher's single-signal subprocess relay.
type SignalWatcher struct {
	sigCh    chan os.Signal
	Shutdown chan ShutdownReason
}

// NewSignalWatcher starts listening for SIGINT, SIGTERM, and SIGHUP.
// SIGHUP is treated identically to SIGINT/SIGTERM: evsieve has no running
// configuration to reload, so a hangup just requests the same graceful
// shutdown.
func NewSignalWatcher() *SignalWatcher {
	w := &SignalWatcher{
		sigCh:    make(chan os.Signal, 2),
		Shutdown: make(chan ShutdownReason, 1),
	}
	signal.Notify(w.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go w.run()
	return w
}

func (w *SignalWatcher) run() {
	first := false
	for range w.sigCh {
		reason := ShutdownGraceful
		if first {
			reason = ShutdownForced
		}
		first = true
		if reason == ShutdownForced {
			// Replace a graceful request still sitting in the buffered
			// slot, so the escalation is never dropped. Only this
			// goroutine sends, so the slot is free after the drain.
			select {
			case <-w.Shutdown:
			default:
			}
			w.Shutdown <- reason
			return
		}
		select {
		case w.Shutdown <- reason:
		default:
		}
	}
}

// Stop releases the signal registration. Safe to call once; the watcher's
// goroutine exits once sigCh is no longer fed, which only matters in
// tests since the process normally exits before Stop would run.
func (w *SignalWatcher) Stop() {
	signal.Stop(w.sigCh)
	close(w.sigCh)
}
