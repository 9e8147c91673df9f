package runtime

import (
	"os/exec"
	"sync"
	"syscall"

	"github.com/evsieve/evsieve/internal/diag"
)

// ChildReaper spawns exec-shell actions (spec.md §4.9/§4.14) and tracks
// them for reaping (one goroutine per child blocks in Wait) and
// shutdown-time SIGTERM, grounded on
// the teacher's internal/process.Manager subprocess lifecycle (Setpgid +
// explicit wait), simplified to fire-and-forget since an exec-shell action
// has no stdout/stderr contract and is never restarted.
type ChildReaper struct {
	mu       sync.Mutex
	children map[int]*exec.Cmd
	diag     *diag.Bus
}

// NewChildReaper returns a reaper that reports spawn failures on bus.
func NewChildReaper(bus *diag.Bus) *ChildReaper {
	return &ChildReaper{
		children: make(map[int]*exec.Cmd),
		diag:     bus,
	}
}

// Spawn implements stage.Spawner: run "sh -c command" asynchronously,
// inheriting the parent's environment (spec.md §4.9: "inheriting
// environment minus evsieve-internal vars" — evsieve sets none, so there
// is nothing to strip). A failure to start is a runtime diagnostic
// (spec.md §7 kind 5), never fatal to the engine.
func (r *ChildReaper) Spawn(command string) {
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		if r.diag != nil {
			r.diag.Publish(diag.ChildSpawnFailedEvent{Command: command, Err: err.Error()})
		}
		return
	}

	r.mu.Lock()
	r.children[cmd.Process.Pid] = cmd
	r.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		r.mu.Lock()
		delete(r.children, cmd.Process.Pid)
		r.mu.Unlock()
	}()
}

// TerminateAll sends SIGTERM to every still-running child, implementing
// spec.md §4.9's shutdown contract ("on shutdown, send SIGTERM to all
// still-running").
func (r *ChildReaper) TerminateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range r.children {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}
}

// Count returns the number of children currently tracked as running.
func (r *ChildReaper) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}
