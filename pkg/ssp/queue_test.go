package ssp

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestSendQueueFIFOAndCapacity(t *testing.T) {
	q := newSendQueue(2)

	e1 := &sendEntry{transID: 1}
	e2 := &sendEntry{transID: 2}
	e3 := &sendEntry{transID: 3}

	assert.Assert(t, q.insert(e1))
	assert.Assert(t, q.insert(e2))
	assert.Assert(t, !q.insert(e3), "queue should reject inserts past capacity")

	assert.Equal(t, q.size(), 2)
	assert.Equal(t, q.front(), e1)

	q.erase(e1)
	assert.Equal(t, q.size(), 1)
	assert.Equal(t, q.front(), e2)
}

func TestSendQueueFindMatchesAckHeader(t *testing.T) {
	q := newSendQueue(4)
	e := &sendEntry{srcID: 1, destID: 2, transID: 9, state: sendAwaitAck}
	q.insert(e)

	ackHeader := Header{SrcID: 2, DestID: 1, TransID: 9, Type: MsgAck}
	assert.Equal(t, q.find(ackHeader), e)

	wrongTrans := Header{SrcID: 2, DestID: 1, TransID: 10, Type: MsgAck}
	assert.Assert(t, q.find(wrongTrans) == nil)
}

func TestSendQueueFindIgnoresPendingEntries(t *testing.T) {
	q := newSendQueue(4)
	e := &sendEntry{srcID: 1, destID: 2, transID: 9, state: sendPending}
	q.insert(e)

	ackHeader := Header{SrcID: 2, DestID: 1, TransID: 9, Type: MsgAck}
	assert.Assert(t, q.find(ackHeader) == nil, "an entry still pending transmission has no ACK to match yet")
}
