package pipeline

import "sync"

// Signal is the per-run cancellation flag: set at most once, observed at
// every suspension point of the run that owns it. A fresh Signal is created
// for each run so sequential runs can never cross-contaminate. The closed
// channel makes cancellation observable from a select without waiting for a
// timer to fire.
type Signal struct {
	once sync.Once
	done chan struct{}
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Cancel flips the flag. Safe to call multiple times and from any goroutine;
// only the first call has effect.
func (s *Signal) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// Canceled reports whether Cancel has been called.
func (s *Signal) Canceled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation, for use in selects.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
