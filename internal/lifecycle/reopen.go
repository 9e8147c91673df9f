package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/devio"
	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/pipeline"
	"github.com/evsieve/evsieve/internal/stage"
	"github.com/evsieve/evsieve/pkg/hotplug"
)

// InputHandle is one live (declaration, reader) pair the Reopener owns.
// id is the originating-input-device-id every event from this handle must
// carry, matching the value internal/runtime tags onto each read event.
type InputHandle struct {
	Decl   *stage.Input
	Reader devio.ReaderCapabilities
	ID     int
}

// Reopener reacts to a device's disconnect/reconnect under
// persist=reopen, adapted from the teacher's detector_linux.go
// monitorHotplug/checkAndBroadcastDeviceChanges diff loop: a netlink
// monitor goroutine feeding a diff against the last-known capability
// snapshot per input path.
type Reopener struct {
	pipeline *pipeline.Pipeline
	openers  map[string]devio.InputOpener
	openOut  devio.OutputOpener
	snapshot map[string]capability.Set
	bus      *diag.Bus
	logger   *slog.Logger
}

// NewReopener builds a Reopener for p. openers must have one entry per
// declared Input's path, already closed over that input's domain/id (see
// devio.OpenEvdev); openOutput constructs a fresh virtual device for an
// Output whose capability set changed and must be recreated.
func NewReopener(p *pipeline.Pipeline, openers map[string]devio.InputOpener, openOutput devio.OutputOpener, initial map[string]capability.Set, bus *diag.Bus, logger *slog.Logger) *Reopener {
	snapshot := make(map[string]capability.Set, len(initial))
	for path, caps := range initial {
		snapshot[path] = caps.Clone()
	}
	return &Reopener{pipeline: p, openers: openers, openOut: openOutput, snapshot: snapshot, bus: bus, logger: logger}
}

// Watch starts a netlink hotplug monitor filtered to the input subsystem
// and calls reopen for every handle whose device path matches an add
// event under persist=reopen. It blocks until ctx is cancelled.
func (r *Reopener) Watch(ctx context.Context, handles []*InputHandle, onReopened func(*InputHandle, devio.ReaderCapabilities)) error {
	reopenable := make(map[string]*InputHandle)
	for _, h := range handles {
		if h.Decl.Persist == stage.PersistReopen {
			reopenable[h.Decl.Path] = h
		}
	}
	if len(reopenable) == 0 {
		<-ctx.Done()
		return nil
	}

	monitor, err := hotplug.NewMonitor()
	if err != nil {
		return err
	}
	defer monitor.Close()
	monitor.AddSubsystemFilter(hotplug.SubsystemInput)

	events := make(chan hotplug.Event, 32)
	go func() {
		if err := monitor.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("hotplug monitor stopped", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Action != hotplug.ActionAdd {
				continue
			}
			// Give the kernel a moment to finish enumerating the device
			// node before attempting to open it.
			time.Sleep(200 * time.Millisecond)
			for path, h := range reopenable {
				if !ev.MatchesPath(path) {
					continue
				}
				reader, err := r.reopen(h)
				if err != nil {
					r.logger.Warn("reopen failed", "path", path, "error", err)
					continue
				}
				h.Reader = reader
				onReopened(h, reader)
			}
		}
	}
}

// reopen opens decl.Path fresh, reapplies its grab policy, and, if the
// device's live capabilities changed since the last snapshot, recomputes
// every Output's capability set and recreates its virtual device (a
// virtual device's advertised capabilities cannot be changed after
// creation, so any difference forces a rebuild; only an unchanged set
// leaves the outputs alone).
func (r *Reopener) reopen(h *InputHandle) (devio.ReaderCapabilities, error) {
	open, ok := r.openers[h.Decl.Path]
	if !ok {
		return nil, errNoOpener(h.Decl.Path)
	}
	reader, err := open(h.Decl.Path)
	if err != nil {
		return nil, err
	}
	if err := ApplyGrab(h.Decl, reader); err != nil {
		reader.Close()
		return nil, err
	}

	newCaps := reader.Capabilities()
	if !sameCapabilities(r.snapshot[h.Decl.Path], newCaps) {
		r.snapshot[h.Decl.Path] = newCaps.Clone()
		r.recreateOutputs()
	}

	r.bus.Publish(diag.DeviceReopenedEvent{Path: h.Decl.Path})
	return reader, nil
}

func (r *Reopener) recreateOutputs() {
	r.pipeline.ComputeCapabilities(r.snapshot)
	for _, st := range r.pipeline.Stages {
		out, ok := st.(*stage.Output)
		if !ok {
			continue
		}
		if writer, ok := out.Writer.(devio.Writer); ok {
			writer.Close()
		}
		newWriter, err := r.openOut(out.DeviceName, out.Capabilities)
		if err != nil {
			r.logger.Error("failed to recreate output", "name", out.DeviceName, "error", err)
			continue
		}
		out.Writer = newWriter
		r.bus.Publish(diag.OutputRecreatedEvent{Name: out.DeviceName})
	}
}

func sameCapabilities(a, b capability.Set) bool {
	if len(a) != len(b) {
		return false
	}
	for k, ra := range a {
		rb, ok := b[k]
		if !ok || !rangesEqual(ra, rb) {
			return false
		}
	}
	return true
}

// rangesEqual compares two Ranges by value; Range.Min/Max are pointers, so
// the zero-cost struct comparison (==) would wrongly compare addresses
// instead of the bounds themselves.
func rangesEqual(a, b capability.Range) bool {
	return int32PtrEqual(a.Min, b.Min) && int32PtrEqual(a.Max, b.Max)
}

func int32PtrEqual(a, b *int32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type errNoOpener string

func (e errNoOpener) Error() string { return "no input opener registered for " + string(e) }
