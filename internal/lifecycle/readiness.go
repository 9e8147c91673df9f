package lifecycle

import "github.com/coreos/go-systemd/v22/daemon"

// NotifyReady tells systemd (Type=notify units) that every Input is open,
// every Output's virtual device exists, and the scheduler is about to
// enter its event loop (SPEC_FULL.md, Domain Stack item 4). A no-op,
// non-error return when NOTIFY_SOCKET is unset, matching sd_notify's own
// contract for a process not run under a notify-type unit.
func NotifyReady() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	return err
}

// NotifyStopping tells systemd that graceful shutdown has begun, so a
// service manager doesn't treat the following teardown work as unexpected
// downtime.
func NotifyStopping() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	return err
}
