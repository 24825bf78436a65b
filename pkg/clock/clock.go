// Package clock supplies the OSAL tick-count abstraction the engine
// uses for ACK timeouts and retry bookkeeping, generalized from the
// reference implementation's SSPOSAL_GetTickCount (millisecond counter,
// wraps at 32 bits) into a small interface so tests can inject a fake
// clock instead of sleeping in real time.
package clock

import "time"

// Clock returns a monotonically increasing tick count in milliseconds,
// wrapping modulo 2^32 to match the reference implementation's
// behavior and the wraparound-safe arithmetic spec.md §4.4 calls for.
type Clock interface {
	Now() uint32
}

// System is a Clock backed by the monotonic runtime clock.
type System struct {
	start time.Time
}

// NewSystem returns a Clock whose Now() counts milliseconds since its
// own construction, so the wraparound boundary is never hit in any
// realistic process lifetime while still sharing the uint32 contract.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// Elapsed reports whether at least d has passed since mark, in
// wraparound-safe tick arithmetic (spec.md §4.4: "timeouts compare tick
// counts with wraparound-safe arithmetic").
func Elapsed(now, mark uint32, d time.Duration) bool {
	return int32(now-mark) >= int32(d.Milliseconds())
}
