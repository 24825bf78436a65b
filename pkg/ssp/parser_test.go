package ssp

import (
	"testing"

	"gotest.tools/v3/assert"
)

func feedAll(p *Parser, data []byte) (Frame, bool) {
	var last Frame
	var ok bool
	for _, b := range data {
		if f, got := p.Feed(b); got {
			last, ok = f, true
		}
	}
	return last, ok
}

func TestParserAcceptsWellFormedFrame(t *testing.T) {
	cfg := DefaultConfig()
	p := NewParser(cfg)

	h := Header{DestID: 1, SrcID: 2, Type: MsgData, TransID: 5}
	body := []byte("payload")
	h.BodySize = uint8(len(body))
	wire, _ := serialize(h, body)

	frame, ok := feedAll(p, wire)
	assert.Assert(t, ok)
	assert.Equal(t, frame.Header.DestID, uint8(1))
	assert.Equal(t, frame.Header.SrcID, uint8(2))
	assert.Equal(t, frame.Header.TransID, uint8(5))
	assert.DeepEqual(t, frame.Body, body)
}

func TestParserResyncsAfterGarbagePrefix(t *testing.T) {
	cfg := DefaultConfig()
	p := NewParser(cfg)

	h := Header{DestID: 1, SrcID: 2, Type: MsgData, TransID: 9}
	body := []byte("resync")
	h.BodySize = uint8(len(body))
	wire, _ := serialize(h, body)

	noisy := append([]byte{0x00, 0x11, 0x22, Sig1, 0x33}, wire...)

	frame, ok := feedAll(p, noisy)
	assert.Assert(t, ok)
	assert.Equal(t, frame.Header.TransID, uint8(9))
	assert.DeepEqual(t, frame.Body, body)
}

func TestParserRejectsBadHeaderChecksum(t *testing.T) {
	cfg := DefaultConfig()
	p := NewParser(cfg)

	h := Header{DestID: 1, SrcID: 2, Type: MsgData, TransID: 3}
	body := []byte("x")
	h.BodySize = uint8(len(body))
	wire, _ := serialize(h, body)
	wire[7] ^= 0xFF // corrupt the checksum byte itself

	_, ok := feedAll(p, wire)
	assert.Assert(t, !ok)
}

func TestParserRejectsCorruptedBody(t *testing.T) {
	cfg := DefaultConfig()
	p := NewParser(cfg)

	h := Header{DestID: 1, SrcID: 2, Type: MsgData, TransID: 3}
	body := []byte("x")
	h.BodySize = uint8(len(body))
	wire, _ := serialize(h, body)
	wire[HeaderSize] ^= 0xFF // corrupt the body byte, CRC no longer matches

	_, ok := feedAll(p, wire)
	assert.Assert(t, !ok)
}

func TestParserAcceptsZeroBodyControlFrame(t *testing.T) {
	cfg := DefaultConfig()
	p := NewParser(cfg)

	h := Header{DestID: 1, SrcID: 2, Type: MsgAck, TransID: 4}
	wire, _ := serialize(h, nil)

	frame, ok := feedAll(p, wire)
	assert.Assert(t, ok)
	assert.Equal(t, frame.Header.Type, MsgAck)
	assert.Equal(t, len(frame.Body), 0)
}
