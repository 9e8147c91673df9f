package runtime

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSignalWatcherReportsGracefulOnFirstSignal(t *testing.T) {
	w := NewSignalWatcher()
	defer w.Stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case reason := <-w.Shutdown:
		if reason != ShutdownGraceful {
			t.Fatalf("expected ShutdownGraceful, got %v", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for shutdown signal")
	}
}

func TestSignalWatcherEscalatesOnSecondSignal(t *testing.T) {
	w := NewSignalWatcher()
	defer w.Stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case reason := <-w.Shutdown:
		if reason != ShutdownGraceful {
			t.Fatalf("expected ShutdownGraceful on first signal, got %v", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first shutdown signal")
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case reason := <-w.Shutdown:
			if reason == ShutdownForced {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for forced shutdown escalation")
		}
	}
}
