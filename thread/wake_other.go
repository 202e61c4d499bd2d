//go:build !linux

package thread

// kicker interrupts a goroutine blocked on Kick()'s channel. Non-Linux
// platforms have no portable eventfd equivalent wired here, so Notify
// only reaches a Func that selects on Kick(); see wake_linux.go for the
// eventfd-backed variant used on Linux.
type kicker interface {
	kick()
	channel() <-chan struct{}
	close()
}

func newKicker() kicker {
	return &chanKicker{ch: make(chan struct{}, 1)}
}
