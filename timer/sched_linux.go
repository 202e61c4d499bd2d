//go:build linux

package timer

import (
	"runtime"
	"syscall"
	"unsafe"

	diminuto "github.com/joeycumines/go-diminuto"
	"golang.org/x/sys/unix"
)

// schedRR is the SCHED_RR scheduling policy. golang.org/x/sys/unix has no
// portable sched_setscheduler wrapper, matching diminuto_timer.c's own
// need to go directly to the kernel for its callback thread's scheduling
// class, so this calls SYS_SCHED_SETSCHEDULER directly.
const schedRR = 2

type schedParam struct {
	priority int32
}

// elevate locks the calling goroutine to its current OS thread and
// attempts to raise that thread to SCHED_RR at priority. Failure (most
// commonly EPERM without CAP_SYS_NICE) is reported but not fatal: a
// callback that runs on the default scheduling class still fires, just
// without the real-time latency guarantee. Callers should call
// runtime.UnlockOSThread once the elevated section is done.
func elevate(priority int) error {
	runtime.LockOSThread()
	param := schedParam{priority: int32(priority)}
	_, _, errno := syscall.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(schedRR), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return diminuto.Fatal("timer.elevate", errno)
	}
	return nil
}
