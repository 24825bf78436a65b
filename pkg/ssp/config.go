package ssp

import "time"

// Config holds the compile-time tunables from the original SSP build
// options (ssp_opt.h), exposed here as runtime-configurable fields since
// Go has no equivalent of conditional compilation for these.
type Config struct {
	// AckTimeout is how long a sent DATA frame waits for an ACK/NAK
	// before the reliability engine forces a retransmit.
	AckTimeout time.Duration

	// MaxRetries is the number of transmissions a queued send gets: once
	// it has been sent MaxRetries times without an ACK, the next send
	// pass fails it with ErrSendRetriesFailed.
	MaxRetries uint32

	// RecvTimeout bounds a single call into the transport's Recv.
	RecvTimeout time.Duration

	// MaxMessages is the per-port outstanding send queue capacity.
	MaxMessages int

	// MaxPacketSize bounds the on-wire frame size (header + body + CRC).
	// Must not exceed 256, since bodySize is an 8-bit wire field.
	MaxPacketSize int

	// MaxSockets is the exclusive upper bound on socket identifiers.
	MaxSockets int

	// MaxPorts is the exclusive upper bound on port identifiers.
	MaxPorts int

	// RecvChunkSize is the number of bytes requested per Transport.Recv
	// call (N in spec.md §4.2). 1 for polled UARTs; set to the maximum
	// packet size for transports that deliver whole datagrams.
	RecvChunkSize int
}

// DefaultConfig returns the tunables from the reference implementation's
// ssp_opt.h defaults.
func DefaultConfig() Config {
	return Config{
		AckTimeout:    200 * time.Millisecond,
		MaxRetries:    4,
		RecvTimeout:   10 * time.Millisecond,
		MaxMessages:   5,
		MaxPacketSize: 64,
		MaxSockets:    8,
		MaxPorts:      2,
		RecvChunkSize: 1,
	}
}

// MaxBodySize is the maximum client payload size admitted by this
// configuration: MaxPacketSize minus the fixed header and trailer.
func (c Config) MaxBodySize() int {
	return c.MaxPacketSize - HeaderSize - CrcSize
}
