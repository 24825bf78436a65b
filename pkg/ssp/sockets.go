package ssp

// Listener receives notifications for one open socket: completed
// inbound frames, and the outcome of the engine's own queued sends
// (spec.md §4.4's CallbackListener, generalized from a raw C function
// pointer + opaque userData to a closure-holding interface per spec.md
// §9).
//
// The engine invokes Notify with its process-wide lock released, so a
// Listener may safely call back into the Engine (spec.md §5).
type Listener interface {
	Notify(frame Frame, userData interface{})
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(frame Frame, userData interface{})

func (f ListenerFunc) Notify(frame Frame, userData interface{}) {
	f(frame, userData)
}

// socketBinding is one entry in the engine's socket table: a socket ID
// bound to a port plus the listener registered to receive its traffic.
// Unbound entries have listener == nil.
type socketBinding struct {
	open     bool
	portID   int
	listener Listener
	userData interface{}
}

// portState tracks per-port framing and duplicate-suppression state.
// lastRecv holds the most recently accepted (transId, crc) pair per
// socket so a retransmitted DATA frame that already succeeded is ACKed
// again but not redelivered to the listener (spec.md §4.4).
type portState struct {
	open   bool
	parser *Parser

	// lastRecv[socketID] is the last (transId, crc) this port delivered
	// to socketID's listener, used for duplicate suppression.
	lastRecv map[int]lastReceived
}

type lastReceived struct {
	valid   bool
	transID uint8
	crc     uint16
}

func newPortState(cfg Config) *portState {
	return &portState{
		parser:   NewParser(cfg),
		lastRecv: make(map[int]lastReceived),
	}
}
