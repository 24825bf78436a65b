package ssp

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestChecksum8WrapsAtByteWidth(t *testing.T) {
	h := Header{DestID: 0xFF, SrcID: 0xFF, Type: MsgData, BodySize: 0xFF, TransID: 0xFF}
	sum := checksum8(h)
	// 0xBE + 0xEF + 4*0xFF = 1449, which wraps to 1449 % 256 = 0xA9.
	assert.Equal(t, sum, uint8((0xBE+0xEF+0xFF+0xFF+0x00+0xFF+0xFF)%256))
}

func TestCrc16BlockDependsOnHeaderBytes(t *testing.T) {
	h := Header{DestID: 1, SrcID: 2, Type: MsgData, BodySize: 0, TransID: 7}
	h.Checksum = checksum8(h)

	withBody := crc16Block(h, nil)
	assert.Assert(t, withBody != 0, "CRC of a non-empty header should not be zero")

	// Changing any header byte must change the CRC: flips TransID.
	h2 := h
	h2.TransID = 8
	h2.Checksum = checksum8(h2)
	assert.Assert(t, crc16Block(h2, nil) != withBody)
}

func TestSerializeLayout(t *testing.T) {
	body := []byte("hi")
	h := Header{DestID: 3, SrcID: 4, Type: MsgData, BodySize: uint8(len(body)), TransID: 9}

	wire, crc := serialize(h, body)

	assert.Equal(t, len(wire), HeaderSize+len(body)+CrcSize)
	assert.Equal(t, wire[0], Sig1)
	assert.Equal(t, wire[1], Sig2)
	assert.Equal(t, wire[2], uint8(3))
	assert.Equal(t, wire[3], uint8(4))
	assert.Equal(t, wire[HeaderSize], byte('h'))
	assert.Equal(t, wire[HeaderSize+1], byte('i'))

	gotCrc := uint16(wire[len(wire)-2]) | uint16(wire[len(wire)-1])<<8
	assert.Equal(t, gotCrc, crc)
}
