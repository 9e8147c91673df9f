package lifecycle

import (
	"log/slog"

	"github.com/evsieve/evsieve/internal/devio"
	"github.com/evsieve/evsieve/internal/pipeline"
	"github.com/evsieve/evsieve/internal/runtime"
	"github.com/evsieve/evsieve/internal/stage"
)

// Shutdown coordinates the teardown sequence of SPEC_FULL.md's lifecycle
// section: notify the service manager, release every grab, destroy every
// virtual device, remove every symlink evsieve created, and terminate any
// exec-shell children still running. Graceful per spec.md §5; a forced
// shutdown (the second SIGINT) skips straight past this to os.Exit and
// never calls it.
func Shutdown(p *pipeline.Pipeline, inputs []*InputHandle, sched *runtime.Scheduler, reaper *runtime.ChildReaper, logger *slog.Logger) {
	if err := NotifyStopping(); err != nil {
		logger.Debug("sd_notify STOPPING failed", "error", err)
	}

	// Release every Withhold's buffered events before any output is torn
	// down, so a combo still in flight when the signal arrived is resolved
	// one way or the other instead of vanishing.
	if sched != nil {
		sched.FlushWithholds()
	}

	for _, h := range inputs {
		ReleaseGrab(h.Reader)
		if err := h.Reader.Close(); err != nil {
			logger.Warn("closing input failed", "path", h.Decl.Path, "error", err)
		}
	}

	for out, linkPath := range p.OutputLinks {
		devNode, err := devNodeOf(out)
		if err == nil && devNode != "" {
			if err := RemoveLink(linkPath, devNode); err != nil {
				logger.Warn("removing create-link failed", "path", linkPath, "error", err)
			}
		}
	}

	for _, st := range p.Stages {
		out, ok := st.(*stage.Output)
		if !ok {
			continue
		}
		if writer, ok := out.Writer.(devio.Writer); ok {
			if err := writer.Close(); err != nil {
				logger.Warn("closing output failed", "name", out.DeviceName, "error", err)
			}
		}
	}

	if reaper != nil {
		reaper.TerminateAll()
	}
}

func devNodeOf(out *stage.Output) (string, error) {
	writer, ok := out.Writer.(devio.Writer)
	if !ok {
		return "", nil
	}
	return writer.DevNode()
}
