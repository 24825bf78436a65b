// Package transport implements the SSP hardware-abstraction layer:
// the byte-stream ports that carry on-wire frames. It generalizes the
// reference implementation's SSPHAL_Init/PortOpen/PortSend/PortRecv
// family (original_source/arduino/ssp_hal.h) into a single Go interface
// with one implementation per physical/virtual medium, replacing a
// single global HAL with an explicit handle per spec.md §9.
package transport

import "time"

// Port is one open, byte-stream-oriented half of a transport: the
// generalized equivalent of the reference HAL's per-port operations.
type Port interface {
	// Send writes data to the wire, blocking until accepted by the
	// underlying medium or ctx-less timeout expires.
	Send(data []byte) (int, error)

	// Recv reads up to len(buf) bytes, blocking for at most timeout
	// before returning whatever was received (possibly zero bytes,
	// which is not an error — it mirrors SSPHAL_PortRecv's "nothing
	// arrived in the window" case).
	Recv(buf []byte, timeout time.Duration) (int, error)

	// Flush discards any buffered unread input, matching
	// SSPHAL_PortFlush.
	Flush() error

	// RecvQueueEmpty reports whether the port currently has no buffered
	// inbound bytes waiting to be read, matching SSPHAL_IsRecvQueueEmpty.
	// Engine.RecvEmpty reads this for the port it is asked about.
	RecvQueueEmpty() bool

	// Close releases the port.
	Close() error
}

// Transport opens and tracks Ports by ID, standing in for the
// reference HAL's global port-open bookkeeping (SSPHAL_PortIsOpen).
type Transport interface {
	// Open opens port portID using medium-specific addr (device path,
	// host:port, or a membuf peer name) and returns its Port.
	Open(portID int, addr string) (Port, error)

	// IsOpen reports whether portID currently has an open Port.
	IsOpen(portID int) bool

	// PowerSave hints the underlying medium, across all of its open
	// ports, into or out of a low-power mode — matching SSPHAL_PowerSave,
	// which is a single device-wide hint with no per-port argument.
	// Mediums with no such mode (e.g. an in-process loopback) may treat
	// this as a no-op.
	PowerSave(enable bool)

	// Close closes portID's Port, if open.
	Close(portID int) error
}
