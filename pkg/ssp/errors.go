package ssp

import "fmt"

// ErrKind is an SSP error classification. Unlike a plain error, it is
// comparable and cheap to pass to a listener or an error handler.
type ErrKind uint8

const (
	Success ErrKind = iota
	ErrBadSignature
	ErrPartialPacket
	ErrPartialPacketHeaderValid
	ErrPortOpenFailed
	ErrSocketNotOpen
	ErrPortNotOpen
	ErrBadSocketID
	ErrSocketAlreadyOpen
	ErrPacketTooLarge
	ErrDataSizeTooLarge
	ErrParseError
	ErrCorruptedPacket
	ErrBadHeaderChecksum
	ErrSendRetriesFailed
	ErrQueueFull
	ErrOutOfMemory
	ErrBadArgument
	ErrSendFailure
	ErrNotInitialized
	ErrDuplicateListener
	ErrSoftwareFault
)

var errKindNames = [...]string{
	"SUCCESS",
	"BAD_SIGNATURE",
	"PARTIAL_PACKET",
	"PARTIAL_PACKET_HEADER_VALID",
	"PORT_OPEN_FAILED",
	"SOCKET_NOT_OPEN",
	"PORT_NOT_OPEN",
	"BAD_SOCKET_ID",
	"SOCKET_ALREADY_OPEN",
	"PACKET_TOO_LARGE",
	"DATA_SIZE_TOO_LARGE",
	"PARSE_ERROR",
	"CORRUPTED_PACKET",
	"BAD_HEADER_CHECKSUM",
	"SEND_RETRIES_FAILED",
	"QUEUE_FULL",
	"OUT_OF_MEMORY",
	"BAD_ARGUMENT",
	"SEND_FAILURE",
	"NOT_INITIALIZED",
	"DUPLICATE_LISTENER",
	"SOFTWARE_FAULT",
}

// String implements fmt.Stringer so ErrKind prints as its symbolic name
// in log lines and error messages.
func (e ErrKind) String() string {
	if int(e) < len(errKindNames) {
		return errKindNames[e]
	}
	return fmt.Sprintf("ErrKind(%d)", uint8(e))
}

// Error implements the error interface so an ErrKind can be returned
// directly from an API method.
func (e ErrKind) Error() string {
	return e.String()
}

// IsFramingError reports whether err is one of the framing-layer errors
// that the parser and receive loop recover from automatically (resync or
// NAK), rather than something the caller must act on.
func (e ErrKind) IsFramingError() bool {
	switch e {
	case ErrBadSignature, ErrPartialPacket, ErrPartialPacketHeaderValid,
		ErrBadHeaderChecksum, ErrCorruptedPacket, ErrPacketTooLarge:
		return true
	default:
		return false
	}
}
