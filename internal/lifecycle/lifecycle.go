package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Call on SIGTERM/SIGINT; the health
// handler reports shutting-down with a 503 while the flag is set.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should be
// rotated out of traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
