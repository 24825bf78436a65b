package clock

import "time"

// TimedMutex is the Go stand-in for the reference implementation's
// SSPOSAL_LockCreate/LockGet/LockPut pair: a mutex whose acquisition
// can time out (SSP_OSAL_WAIT_DEFAULT, 5000ms) rather than block
// forever, so a wedged caller cannot hang the whole engine (spec.md
// §5).
type TimedMutex struct {
	ch chan struct{}
}

// NewTimedMutex returns an unlocked TimedMutex.
func NewTimedMutex() *TimedMutex {
	m := &TimedMutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// Lock blocks until the mutex is acquired or timeout elapses. It
// reports false on timeout, mirroring SSPOSAL_LockGet's bool return.
func (m *TimedMutex) Lock(timeout time.Duration) bool {
	select {
	case <-m.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Unlock releases the mutex. Calling Unlock without a held Lock panics,
// matching the original's assert-on-misuse behavior (SSPFLT_FaultHandler).
func (m *TimedMutex) Unlock() {
	select {
	case m.ch <- struct{}{}:
	default:
		panic("clock: Unlock of unlocked TimedMutex")
	}
}
