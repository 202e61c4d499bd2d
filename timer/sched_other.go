//go:build !linux

package timer

import "errors"

// elevate is a no-op stub on platforms without a raw sched_setscheduler
// syscall wired here; real-time elevation is Linux-only in this module.
func elevate(priority int) error {
	return errors.New("timer: real-time scheduling elevation is not available on this platform")
}
