package ssp

// This file implements the reliability engine's per-port pump steps,
// generalized from the reference implementation's ProcessSend and
// ProcessReceive (original_source/arduino/ssp.c) plus their
// NotifyListener/CallbackListener/SendAck/SendNak helpers. The linked
// list of SendData nodes is now a sendQueue; the SspComObj "self"
// singleton is now the *Engine receiver; the SspDataCallback function
// pointer is now a Listener (spec.md §9).

import (
	"github.com/sirupsen/logrus"
)

// processSend drains at most the head of portID's queue: if it is
// pending, transmit it (or fail it out once retries are exhausted).
// The retry count is charged once per transmission, and a pending entry
// that has already been transmitted MaxRetries times is failed instead:
// with MaxRetries=4 a send goes out exactly four times, and the fifth
// pass reports ErrSendRetriesFailed. The engine lock is held
// only for the queue manipulation, never across transmitData's Send
// call or notifySendResult's Listener callback.
func (e *Engine) processSend(portID int) {
	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	q := e.queues[portID]
	entry := q.front()
	if entry == nil || entry.state != sendPending {
		e.lock.Unlock()
		return
	}

	if entry.retries >= e.cfg.MaxRetries {
		q.erase(entry)
		e.lock.Unlock()
		e.log.WithFields(logrus.Fields{"port": portID, "corr_id": entry.corrID}).
			Warn("ssp: send retries exhausted")
		e.notifySendResult(entry, ErrSendRetriesFailed)
		e.metrics.incSendFailure(portID)
		return
	}
	entry.retries++
	e.lock.Unlock()

	if err := e.transmitData(portID, entry); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"port": portID, "corr_id": entry.corrID}).
			Warn("ssp: send failed")
		return
	}
	if entry.retries > 1 {
		e.metrics.incRetry(portID)
	}
	entry.deadline = e.clk.Now() + uint32(e.cfg.AckTimeout.Milliseconds())
	entry.state = sendAwaitAck
}

// sweepTimeouts walks portID's queue for entries whose ACK wait has
// expired and resets them to pending for the next processSend pass
// (original's "packet receive ACK timeout expired" loop).
func (e *Engine) sweepTimeouts(portID int) {
	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	defer e.lock.Unlock()

	q := e.queues[portID]
	now := e.clk.Now()
	for _, entry := range q.entries {
		if entry.state == sendAwaitAck && int32(now-entry.deadline) >= 0 {
			entry.state = sendPending
		}
	}
	e.metrics.setQueueDepth(portID, q.size())
}

// processReceive reads whatever bytes arrive within RecvTimeout on
// portID, feeds them through the port's parser, and acts on the
// resulting frame or framing error.
func (e *Engine) processReceive(portID int) {
	port := e.transportPorts[portID]
	if port == nil {
		return
	}

	buf := make([]byte, e.cfg.RecvChunkSize)
	n, err := port.Recv(buf, e.cfg.RecvTimeout)
	if err != nil {
		e.log.WithError(err).WithField("port", portID).Warn("ssp: recv failed")
		return
	}

	ps := e.ports[portID]
	for i := 0; i < n; i++ {
		frame, ok := ps.parser.Feed(buf[i])
		if !ok {
			if frame.Err != Success {
				e.metrics.incFramingError(portID)
				e.handleFramingError(portID, frame.Err)
			}
			continue
		}
		e.handleFrame(portID, frame)
	}
}

// handleFramingError mirrors the original's corrupted/partial-header
// branch: when the header parsed cleanly but the body or CRC did not,
// and the undamaged header says this was a DATA frame, NAK it to force
// the sender to retransmit. Bad-signature and bad-header-checksum
// failures have no usable header to NAK against, so they are silently
// recovered from by the parser's own resync.
func (e *Engine) handleFramingError(portID int, kind ErrKind) {
	if kind != ErrCorruptedPacket {
		return
	}
	// A CRC failure is only reported after the header checksum passed,
	// and the parser's Reset leaves that accepted header in place, so it
	// still names the sender and transaction to NAK.
	ps := e.ports[portID]
	if ps == nil || ps.parser.hdr.Type != MsgData {
		return
	}
	e.sendControl(portID, ps.parser.hdr, MsgNak)
}

// handleFrame dispatches one successfully parsed frame by type,
// following the original's ACK / NAK / DATA branches in ProcessReceive.
// The engine lock guards the table lookups in each branch but is always
// released before a Listener is invoked (spec.md §5).
func (e *Engine) handleFrame(portID int, frame Frame) {
	switch frame.Header.Type {
	case MsgAck:
		e.handleAck(portID, frame)
	case MsgNak:
		e.handleNak(portID, frame)
	case MsgData:
		e.metrics.incRecv(portID)
		e.handleData(portID, frame)
	}
}

func (e *Engine) handleAck(portID int, frame Frame) {
	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	q := e.queues[portID]
	entry := q.find(frame.Header)
	if entry != nil {
		q.erase(entry)
	}
	e.lock.Unlock()

	if entry != nil {
		e.notifySendResult(entry, Success)
	}
}

func (e *Engine) handleNak(portID int, frame Frame) {
	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	defer e.lock.Unlock()

	q := e.queues[portID]
	entry := q.find(frame.Header)
	if entry == nil {
		return
	}
	// Force a retransmit without charging a retry; the next
	// processSend pass is what consumes the budget (spec.md §4.4: "a
	// NAK does not itself cost a retry until the next send attempt").
	entry.state = sendPending
}

func (e *Engine) handleData(portID int, frame Frame) {
	socketID := int(frame.Header.DestID)

	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	binding := e.socketAt(socketID)
	if binding == nil || !binding.open || binding.listener == nil {
		e.lock.Unlock()
		e.sendControl(portID, frame.Header, MsgNak)
		return
	}

	// ACK is always sent before the duplicate check, so a retransmitted
	// message that already succeeded is still ACKed even though it is
	// not redelivered to the listener (spec.md §4.4).
	e.lock.Unlock()
	e.sendControl(portID, frame.Header, MsgAck)

	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	ps := e.ports[portID]
	last := ps.lastRecv[socketID]
	duplicate := last.valid && last.transID == frame.Header.TransID && last.crc == frame.Crc
	if !duplicate {
		ps.lastRecv[socketID] = lastReceived{valid: true, transID: frame.Header.TransID, crc: frame.Crc}
	}
	e.lock.Unlock()

	if duplicate {
		// Listener already saw this message once (spec.md §4.4
		// at-most-once delivery).
		return
	}

	frame.Direction = DirReceive
	binding.listener.Notify(frame, binding.userData)
}

// notifySendResult reports the outcome of one queued send back to the
// source socket's listener, the generalized CallbackListener/
// NotifyListener "SSP_SEND" branch.
func (e *Engine) notifySendResult(entry *sendEntry, kind ErrKind) {
	if !e.lock.Lock(lockTimeout) {
		e.reportErr(ErrSoftwareFault)
		return
	}
	binding := e.socketAt(entry.socketID)
	e.lock.Unlock()
	if binding == nil || binding.listener == nil {
		return
	}
	frame := Frame{
		Header: Header{
			DestID:   entry.destID,
			SrcID:    entry.srcID,
			Type:     MsgData,
			BodySize: uint8(len(entry.body)),
			TransID:  entry.transID,
		},
		Body:      entry.body,
		Err:       kind,
		Direction: DirSend,
	}
	binding.listener.Notify(frame, binding.userData)
}

// transmitData serializes and sends entry's DATA frame on portID.
func (e *Engine) transmitData(portID int, entry *sendEntry) error {
	h := Header{
		DestID:   entry.destID,
		SrcID:    entry.srcID,
		Type:     MsgData,
		BodySize: uint8(len(entry.body)),
		TransID:  entry.transID,
	}
	wire, _ := serialize(h, entry.body)

	port := e.transportPorts[portID]
	if port == nil {
		return ErrPortNotOpen
	}
	if _, err := port.Send(wire); err != nil {
		return err
	}
	e.metrics.incSent(portID)
	return nil
}

// sendControl transmits a zero-body ACK or NAK in reply to rcvd,
// constructed fresh each time (spec.md §9: no shared scratch-frame
// lifetime hazard, unlike the original's single static sspDataForAckNak).
func (e *Engine) sendControl(portID int, rcvd Header, msgType MsgType) {
	h := Header{
		DestID:   rcvd.SrcID,
		SrcID:    rcvd.DestID,
		Type:     msgType,
		BodySize: 0,
		TransID:  rcvd.TransID,
	}
	wire, _ := serialize(h, nil)

	port := e.transportPorts[portID]
	if port == nil {
		return
	}
	if _, err := port.Send(wire); err != nil {
		e.log.WithError(err).WithField("port", portID).Warn("ssp: control frame send failed")
	}
}
