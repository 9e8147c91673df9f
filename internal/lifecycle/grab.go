// Package lifecycle owns everything outside the hot event path: opening
// and grabbing input devices, reacting to hotplug to reopen them, creating
// and atomically replacing output symlinks, systemd readiness
// notification, and coordinated shutdown.
package lifecycle

import (
	"fmt"

	"github.com/evsieve/evsieve/internal/devio"
	"github.com/evsieve/evsieve/internal/errs"
	"github.com/evsieve/evsieve/internal/stage"
)

// ApplyGrab enforces decl.Grab against an already-opened reader (spec.md
// §4.1/Glossary "Grab"). GrabForce treats a failed grab as fatal; GrabAuto
// degrades to an ungrabbed device, since "auto" exists precisely so one
// bad permission or busy device doesn't take the whole pipeline down.
func ApplyGrab(decl *stage.Input, reader devio.Reader) error {
	switch decl.Grab {
	case stage.GrabNone:
		return nil
	case stage.GrabForce:
		if err := reader.Grab(true); err != nil {
			return errs.New(errs.Resource, fmt.Errorf("grab %s: %w", decl.Path, err))
		}
		return nil
	case stage.GrabAuto:
		_ = reader.Grab(true)
		return nil
	default:
		return nil
	}
}

// ReleaseGrab best-effort releases any exclusive claim on reader, ignoring
// errors since this only ever runs during shutdown.
func ReleaseGrab(reader devio.Reader) {
	_ = reader.Grab(false)
}
