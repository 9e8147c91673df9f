package main

import (
	"context"
	"fmt"
	"os"

	"github.com/evsieve/evsieve/cmd"
	"github.com/evsieve/evsieve/internal/capability"
	"github.com/evsieve/evsieve/internal/devio"
	"github.com/evsieve/evsieve/internal/diag"
	"github.com/evsieve/evsieve/internal/errs"
	"github.com/evsieve/evsieve/internal/lifecycle"
	"github.com/evsieve/evsieve/internal/logging"
	"github.com/evsieve/evsieve/internal/pipeline"
	"github.com/evsieve/evsieve/internal/runtime"
	"github.com/evsieve/evsieve/internal/stage"
)

func main() {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	logger := logging.GetLogger("main")

	root := cmd.NewRootCmd(run)
	root.SetArgs(os.Args[1:])
	if err := root.Execute(); err != nil {
		logger.Error("evsieve exiting", "error", err)
		dumpRecentLog()
		if exitErr, ok := err.(*errs.Error); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

// dumpRecentLog replays the in-memory ring buffer to stderr on a fatal
// startup error, so a short-lived invocation still surfaces what it
// logged right before exiting, even though stdout may be carrying
// --print output instead of logs.
func dumpRecentLog() {
	for _, entry := range logging.GetBuffer().ReadAll() {
		fmt.Fprintln(os.Stderr, logging.FormatLogLine(entry))
	}
}

// run compiles argv into a Pipeline, opens every declared device, drives
// the scheduler until a shutdown signal arrives, and tears down cleanly.
// It is cmd.NewRootCmd's pipeline callback.
func run(argv []string) error {
	logger := logging.GetLogger("main")

	p, err := pipeline.Compile(argv)
	if err != nil {
		return err
	}

	inputs := make([]*lifecycle.InputHandle, 0, len(p.Inputs))
	openers := make(map[string]devio.InputOpener, len(p.Inputs))
	readers := make([]devio.ReaderCapabilities, 0, len(p.Inputs))
	inputCaps := make(map[string]capability.Set, len(p.Inputs))

	for i, decl := range p.Inputs {
		id := i
		domain := decl.Domain
		opener := func(path string) (devio.ReaderCapabilities, error) {
			return devio.OpenEvdev(path, domain, id)
		}
		openers[decl.Path] = opener

		reader, err := opener(decl.Path)
		if err != nil {
			closeInputs(inputs)
			return errs.New(errs.Resource, fmt.Errorf("open input %s: %w", decl.Path, err))
		}
		if err := lifecycle.ApplyGrab(decl, reader); err != nil {
			reader.Close()
			closeInputs(inputs)
			return err
		}

		inputCaps[decl.Path] = reader.Capabilities()
		readers = append(readers, reader)
		inputs = append(inputs, &lifecycle.InputHandle{Decl: decl, Reader: reader, ID: id})
	}

	p.ComputeCapabilities(inputCaps)

	for _, st := range p.Stages {
		out, ok := st.(*stage.Output)
		if !ok {
			continue
		}
		writer, err := devio.OpenUinput(out.DeviceName, out.Capabilities)
		if err != nil {
			closeInputs(inputs)
			return errs.New(errs.Resource, fmt.Errorf("create output %s: %w", out.DeviceName, err))
		}
		out.Writer = writer

		if linkPath, ok := p.OutputLinks[out]; ok {
			devNode, err := writer.DevNode()
			if err != nil {
				closeInputs(inputs)
				return errs.New(errs.Resource, fmt.Errorf("resolve device node for %s: %w", out.DeviceName, err))
			}
			if err := lifecycle.CreateLink(linkPath, devNode); err != nil {
				closeInputs(inputs)
				return err
			}
		}
	}

	bus := diag.New()
	subscribeDiagLogging(bus)
	reaper := runtime.NewChildReaper(bus)

	sched, err := runtime.NewScheduler(p, readers, bus, reaper)
	if err != nil {
		closeInputs(inputs)
		return err
	}

	reopener := lifecycle.NewReopener(p, openers, devio.OpenUinput, inputCaps, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onReopened := func(h *lifecycle.InputHandle, reader devio.ReaderCapabilities) {
		sched.RequestReplaceInput(h.ID, reader)
	}

	go func() {
		if err := reopener.Watch(ctx, inputs, onReopened); err != nil {
			logger.Warn("hotplug watch stopped", "error", err)
		}
	}()
	go func() {
		if err := reopener.WatchDirectory(ctx, "/dev/input", inputs, onReopened); err != nil {
			logger.Warn("directory watch stopped", "error", err)
		}
	}()

	if err := lifecycle.NotifyReady(); err != nil {
		logger.Debug("sd_notify READY failed", "error", err)
	}

	watcher := runtime.NewSignalWatcher()
	stop := make(chan struct{})
	go func() {
		reason := <-watcher.Shutdown
		if reason == runtime.ShutdownForced {
			logger.Warn("second shutdown signal received, exiting without cleanup")
			os.Exit(130)
		}
		close(stop)
	}()

	runErr := sched.Run(stop)
	cancel()
	watcher.Stop()

	// Shutdown runs synchronously here, after Run has returned, so it
	// never races the scheduler's own epoll/fd access (spec.md §5).
	lifecycle.Shutdown(p, inputs, sched, reaper, logger)
	if err := sched.Close(); err != nil {
		logger.Warn("closing scheduler failed", "error", err)
	}

	return runErr
}

// subscribeDiagLogging routes every diagnostic event onto the "diag"
// module logger, so a CapabilityViolation, HookFired, or reopen/recreate
// notification shows up in the journal the same way the rest of evsieve's
// runtime does, without the hot event path itself touching *slog.Logger.
func subscribeDiagLogging(bus *diag.Bus) {
	logger := logging.GetLogger("diag")
	diag.Subscribe(bus, func(ev diag.DeviceReopenedEvent) {
		logger.Info("input device reopened", "path", ev.Path)
	})
	diag.Subscribe(bus, func(ev diag.OutputRecreatedEvent) {
		logger.Info("output device recreated", "name", ev.Name)
	})
	diag.Subscribe(bus, func(ev diag.CapabilityViolationEvent) {
		logger.Warn("event outside declared capabilities, dropped",
			"output", ev.Output, "type", ev.Type, "code", ev.Code, "value", ev.Value)
	})
	diag.Subscribe(bus, func(ev diag.HookFiredEvent) {
		logger.Debug("hook fired", "index", ev.Index)
	})
	diag.Subscribe(bus, func(ev diag.ChildSpawnFailedEvent) {
		logger.Warn("child spawn failed", "command", ev.Command, "error", ev.Err)
	})
}

func closeInputs(inputs []*lifecycle.InputHandle) {
	for _, h := range inputs {
		lifecycle.ReleaseGrab(h.Reader)
		h.Reader.Close()
	}
}
