package lifecycle

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Without NOTIFY_SOCKET set (the common case outside a systemd
// Type=notify unit), SdNotify is documented to no-op rather than error.
func TestNotifyReadyNoopsOutsideSystemd(t *testing.T) {
	os.Unsetenv("NOTIFY_SOCKET")
	assert.NoError(t, NotifyReady())
}

func TestNotifyStoppingNoopsOutsideSystemd(t *testing.T) {
	os.Unsetenv("NOTIFY_SOCKET")
	assert.NoError(t, NotifyStopping())
}
