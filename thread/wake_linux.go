//go:build linux

package thread

import "golang.org/x/sys/unix"

// kicker wakes a goroutine selecting on channel(). The Linux kicker also
// makes an eventfd readable on every kick, the fd counterpart of
// diminuto_thread_notify's pthread_kill; Thread does not hand that fd
// out, so no caller outside this package can watch it.
type kicker interface {
	kick()
	channel() <-chan struct{}
	close()
}

// eventfdKicker is grounded on wakeup_linux.go's createWakeFd: one
// eventfd used as both the write and the read end.
type eventfdKicker struct {
	fd int
	ch chan struct{}
}

func newKicker() kicker {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		// Fall back to a pure-Go channel kicker; Mux-style fd waits lose
		// the syscall-level interruption, but Kick()'s channel still wakes
		// a select-based Func.
		return &chanKicker{ch: make(chan struct{}, 1)}
	}
	return &eventfdKicker{fd: fd, ch: make(chan struct{}, 1)}
}

// Fd returns the eventfd. eventfdKicker is unexported and Thread does not
// return its kicker, so this is reachable only inside this package.
func (k *eventfdKicker) Fd() int { return k.fd }

func (k *eventfdKicker) kick() {
	var one [8]byte
	one[7] = 1
	_, _ = unix.Write(k.fd, one[:])
	select {
	case k.ch <- struct{}{}:
	default:
	}
}

func (k *eventfdKicker) channel() <-chan struct{} { return k.ch }

func (k *eventfdKicker) close() {
	_ = unix.Close(k.fd)
}
