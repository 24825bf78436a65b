// Package ssp implements the Simple Socket Protocol reliability engine:
// message-oriented, at-most-once delivery with bounded retries over an
// unreliable byte-stream transport, multiplexing sockets over ports.
//
// It is a Go-native redesign of the reference C engine
// (original_source/arduino/ssp.c and ssp_com.c), restructured per
// spec.md §9: the global "self" singleton becomes an explicit *Engine
// handle, the SendData linked list becomes a slice-backed sendQueue,
// the SspDataCallback function pointer becomes a Listener interface,
// and the shared ACK/NAK scratch frame becomes a value constructed
// fresh on every emission.
package ssp

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/librescoot/ssp/pkg/clock"
	"github.com/librescoot/ssp/pkg/transport"
)

// lockTimeout bounds how long Engine.Process and the public API methods
// wait to acquire the process-wide table lock, the Go analog of
// SSP_OSAL_WAIT_DEFAULT (5000ms).
const lockTimeout = 5000 * time.Millisecond

// Engine is the top-level SSP handle, owning the
// socket table, per-port send queues and parsers, and the transport and
// clock it runs over.
type Engine struct {
	cfg       Config
	transport transport.Transport
	clk       clock.Clock
	lock      *clock.TimedMutex
	log       *logrus.Logger
	metrics   *Collector

	transportPorts []transport.Port
	ports          []*portState
	queues         []*sendQueue
	sockets        []*socketBinding

	errHandler  func(ErrKind)
	lastErr     ErrKind
	sendTransID uint8
}

// NewEngine constructs an Engine over transport tp and clock clk. log
// may be nil, in which case a fresh logrus.Logger at warn level is
// used. The engine always creates its own Collector (see Metrics); the
// caller may choose not to register it with a Prometheus registry.
func NewEngine(cfg Config, tp transport.Transport, clk clock.Clock, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}

	e := &Engine{
		cfg:            cfg,
		transport:      tp,
		clk:            clk,
		lock:           clock.NewTimedMutex(),
		log:            log,
		metrics:        NewCollector("ssp"),
		transportPorts: make([]transport.Port, cfg.MaxPorts),
		ports:          make([]*portState, cfg.MaxPorts),
		queues:         make([]*sendQueue, cfg.MaxPorts),
		sockets:        make([]*socketBinding, cfg.MaxSockets),
	}
	for i := range e.sockets {
		e.sockets[i] = &socketBinding{}
	}
	return e
}

// Metrics returns the engine's Prometheus Collector for registration
// with a prometheus.Registerer.
func (e *Engine) Metrics() *Collector {
	return e.metrics
}

// OpenPort opens portID over addr using the engine's Transport and
// prepares its parser and send queue.
func (e *Engine) OpenPort(portID int, addr string) error {
	if portID < 0 || portID >= e.cfg.MaxPorts {
		return e.reportErr(ErrBadArgument)
	}
	if e.transportPorts[portID] != nil {
		return e.reportErr(ErrSocketAlreadyOpen)
	}

	port, err := e.transport.Open(portID, addr)
	if err != nil {
		e.log.WithError(err).WithField("port", portID).Error("ssp: open port failed")
		return e.reportErr(ErrPortOpenFailed)
	}

	e.transportPorts[portID] = port
	e.ports[portID] = newPortState(e.cfg)
	e.ports[portID].open = true
	e.queues[portID] = newSendQueue(e.cfg.MaxMessages)
	return nil
}

// ClosePort closes portID and discards any queued sends on it.
func (e *Engine) ClosePort(portID int) error {
	if portID < 0 || portID >= e.cfg.MaxPorts || e.transportPorts[portID] == nil {
		return e.reportErr(ErrPortNotOpen)
	}
	err := e.transportPorts[portID].Close()
	e.transportPorts[portID] = nil
	e.ports[portID] = nil
	e.queues[portID] = nil
	if err != nil {
		e.log.WithError(err).WithField("port", portID).Warn("ssp: close port failed")
	}
	return nil
}

// OpenSocket binds socketID to portID. Each socket may be bound exactly
// once; socket IDs are not shared across ports (original's SSP_OpenSocket).
func (e *Engine) OpenSocket(portID, socketID int) error {
	if !e.lock.Lock(lockTimeout) {
		return e.reportErr(ErrSoftwareFault)
	}
	defer e.lock.Unlock()

	if portID < 0 || portID >= e.cfg.MaxPorts || e.transportPorts[portID] == nil {
		return e.reportErr(ErrPortNotOpen)
	}
	if socketID < 0 || socketID >= e.cfg.MaxSockets {
		return e.reportErr(ErrBadSocketID)
	}
	if e.sockets[socketID].open {
		return e.reportErr(ErrSocketAlreadyOpen)
	}

	e.sockets[socketID] = &socketBinding{open: true, portID: portID}
	return nil
}

// CloseSocket unbinds socketID, dropping its listener registration.
func (e *Engine) CloseSocket(socketID int) error {
	if !e.lock.Lock(lockTimeout) {
		return e.reportErr(ErrSoftwareFault)
	}
	defer e.lock.Unlock()

	b := e.socketAt(socketID)
	if b == nil || !b.open {
		return e.reportErr(ErrSocketNotOpen)
	}
	e.sockets[socketID] = &socketBinding{}
	return nil
}

// Listen registers l to receive notifications for socketID: completed
// inbound DATA frames, and the outcome of sends made from this socket.
// Registering twice without an intervening CloseSocket/OpenSocket
// returns ErrDuplicateListener (original's SSP_Listen semantics).
func (e *Engine) Listen(socketID int, l Listener, userData interface{}) error {
	if !e.lock.Lock(lockTimeout) {
		return e.reportErr(ErrSoftwareFault)
	}
	defer e.lock.Unlock()

	b := e.socketAt(socketID)
	if b == nil || !b.open {
		return e.reportErr(ErrSocketNotOpen)
	}
	if b.listener != nil {
		return e.reportErr(ErrDuplicateListener)
	}
	b.listener = l
	b.userData = userData
	return nil
}

// Send queues a DATA frame from srcSocketID to destSocketID for
// asynchronous, reliable delivery. The registered listener on
// srcSocketID is notified of the eventual success or failure.
func (e *Engine) Send(srcSocketID, destSocketID int, body []byte) error {
	if len(body) > e.cfg.MaxBodySize() {
		return e.reportErr(ErrDataSizeTooLarge)
	}

	if !e.lock.Lock(lockTimeout) {
		return e.reportErr(ErrSoftwareFault)
	}

	src := e.socketAt(srcSocketID)
	if src == nil || !src.open {
		e.lock.Unlock()
		return e.reportErr(ErrBadSocketID)
	}

	q := e.queues[src.portID]
	if q.size() >= e.cfg.MaxMessages {
		e.lock.Unlock()
		return e.reportErr(ErrQueueFull)
	}

	payload := make([]byte, len(body))
	copy(payload, body)

	entry := &sendEntry{
		socketID: srcSocketID,
		portID:   src.portID,
		destID:   uint8(destSocketID),
		srcID:    uint8(srcSocketID),
		transID:  e.nextTransID(),
		body:     payload,
		state:    sendPending,
		corrID:   xid.New().String(),
	}
	if !q.insert(entry) {
		e.lock.Unlock()
		return e.reportErr(ErrQueueFull)
	}
	e.lock.Unlock()

	// A message is now queued, so the transport should not be left in
	// power-save (original's SSP_SendMultiple calling
	// SSPHAL_PowerSave(FALSE) immediately after ListInsert).
	e.transport.PowerSave(false)
	return nil
}

// SendMultiple concatenates parts and sends them as a single DATA frame,
// the Go analog of the original's scatter-gather SSP_SendMultiple.
func (e *Engine) SendMultiple(srcSocketID, destSocketID int, parts [][]byte) error {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	body := make([]byte, 0, total)
	for _, p := range parts {
		body = append(body, p...)
	}
	return e.Send(srcSocketID, destSocketID, body)
}

// nextTransID assigns the next outgoing transaction ID. It is a single
// counter shared by every socket and port, matching the original's
// self.sendTransId; callers must hold e.lock.
func (e *Engine) nextTransID() uint8 {
	id := e.sendTransID
	e.sendTransID++
	return id
}

// Process runs one cooperative pump pass: for every open port, receive
// and act on whatever arrived, sweep ACK timeouts, then advance the
// send queue head. It is meant to be called repeatedly from the
// embedding application's own loop (spec.md §5: SSP has no internal
// thread).
//
// Once every port's send queue is empty, it hints the transport into
// power-save, the Go analog of the original SSP_Process's trailing
// "powerSave" bool: PowerSave(true) is called only when no open port's
// queue is still nonzero after this pass; otherwise no hint is sent.
func (e *Engine) Process() {
	canPowerSave := true
	for portID := range e.transportPorts {
		if e.transportPorts[portID] == nil {
			continue
		}
		e.processReceive(portID)
		e.sweepTimeouts(portID)
		e.processSend(portID)

		if e.QueueSize(portID) > 0 {
			canPowerSave = false
		}
	}

	if canPowerSave {
		e.transport.PowerSave(true)
	}
}

// QueueSize reports the number of outstanding queued sends on portID.
func (e *Engine) QueueSize(portID int) int {
	if portID < 0 || portID >= len(e.queues) || e.queues[portID] == nil {
		return 0
	}
	return e.queues[portID].size()
}

// RecvEmpty reports whether portID currently has no inbound bytes
// waiting at the transport (original's SSP_IsRecvQueueEmpty, delegating
// to SSPHAL_IsRecvQueueEmpty). A closed or out-of-range port reports
// empty, since there is nothing there to receive.
func (e *Engine) RecvEmpty(portID int) bool {
	if portID < 0 || portID >= len(e.transportPorts) || e.transportPorts[portID] == nil {
		return true
	}
	return e.transportPorts[portID].RecvQueueEmpty()
}

// Close drains every per-port send queue, closes every open port's
// transport handle, and clears the socket table — the Go analog of the
// original's SSP_Term (drains queues, destroys the mutex, closes the
// transport). The TimedMutex itself has no explicit destroy in Go; it
// is simply dropped along with the Engine once Close returns. Close
// reports the first port-close error encountered, if any, having still
// attempted to close every port.
func (e *Engine) Close() error {
	if !e.lock.Lock(lockTimeout) {
		return e.reportErr(ErrSoftwareFault)
	}
	defer e.lock.Unlock()

	var firstErr error
	for portID, port := range e.transportPorts {
		if port == nil {
			continue
		}
		e.queues[portID] = nil
		e.ports[portID] = nil
		if err := port.Close(); err != nil {
			e.log.WithError(err).WithField("port", portID).Warn("ssp: close port failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		e.transportPorts[portID] = nil
	}
	for i := range e.sockets {
		e.sockets[i] = &socketBinding{}
	}
	return firstErr
}

// Term is an alias for Close, matching the original API's SSP_Term name.
func (e *Engine) Term() error {
	return e.Close()
}

// SetErrorHandler installs handler to be invoked whenever an API call
// or the Process pump reports a non-Success ErrKind (original's
// SSP_SetErrorHandler).
func (e *Engine) SetErrorHandler(handler func(ErrKind)) {
	e.errHandler = handler
}

// LastErr returns the most recently reported ErrKind.
func (e *Engine) LastErr() ErrKind {
	return e.lastErr
}

// socketAt returns socketID's binding, or nil if out of range.
func (e *Engine) socketAt(socketID int) *socketBinding {
	if socketID < 0 || socketID >= len(e.sockets) {
		return nil
	}
	return e.sockets[socketID]
}

// reportErr records kind as the last error, invokes the installed
// handler if any, and returns kind as an error value (original's
// SSPCMN_ReportErr).
func (e *Engine) reportErr(kind ErrKind) error {
	e.lastErr = kind
	if e.errHandler != nil {
		e.errHandler(kind)
	}
	if kind == Success {
		return nil
	}
	return fmt.Errorf("ssp: %w", kind)
}
