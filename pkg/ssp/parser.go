package ssp

// Parser is the byte-at-a-time packet framer for one port, grounded on
// the reference implementation's Parse/Receive state machine
// (original_source/example/arduino/ssp_com.c) and restyled after the
// librescoot-bluetooth-service USOCK parser's state enum
// (pkg/usock/usock.go), generalized from a fixed two-sync-byte
// Bluetooth frame to the SSP 8-byte header.
//
// On a bad header checksum, Receive() in the reference source re-feeds
// the buffered header bytes starting one position later, in case the
// true signature was embedded further into what was already read (its
// PARSE_HISTORY_SIZE / parseHistoryIdx bookkeeping). That retry happens
// exactly once per failed header — the replayed window is one byte
// shorter than a full header, so it can never itself trigger another
// replay — which is what keeps this bounded rather than recursive.
type parserState uint8

const (
	stateSig1 parserState = iota
	stateSig2
	stateDestID
	stateSrcID
	stateType
	stateBodySize
	stateTransID
	stateChecksum
	stateBody
	stateCrc1
	stateCrc2
)

// Parser accumulates inbound bytes for one port and emits complete,
// checksum- and CRC-verified frames.
type Parser struct {
	cfg   Config
	state parserState

	hdr     Header
	hdrBuf  [HeaderSize]byte
	hdrPos  int
	body    []byte
	bodyPos int
	crcBuf  [CrcSize]byte

	// replaying is set while reprocessing hdrBuf[1:] after a bad header
	// checksum, so that path can't itself trigger another replay.
	replaying bool
}

// NewParser returns a Parser sized to admit packets up to cfg's
// MaxPacketSize.
func NewParser(cfg Config) *Parser {
	return &Parser{
		cfg:  cfg,
		body: make([]byte, 0, cfg.MaxBodySize()),
	}
}

// Reset returns the parser to its initial hunting-for-signature state,
// discarding any partially accumulated packet.
func (p *Parser) Reset() {
	p.state = stateSig1
	p.hdrPos = 0
	p.body = p.body[:0]
	p.bodyPos = 0
}

// Feed consumes one incoming byte. It returns a complete, verified
// Frame when b completes one, and ok reporting whether frame is valid
// to use. A framing error (bad signature position, bad header checksum,
// bad CRC, oversized body) is reported via frame.Err with ok=false; the
// caller should treat those as ErrKind.IsFramingError() diagnostics, not
// hard faults.
func (p *Parser) Feed(b byte) (frame Frame, ok bool) {
	switch p.state {
	case stateSig1:
		if b == Sig1 {
			p.beginHeader(b)
			p.state = stateSig2
		}
		return Frame{}, false

	case stateSig2:
		switch b {
		case Sig2:
			p.hdrBuf[p.hdrPos] = b
			p.hdrPos++
			p.state = stateDestID
		case Sig1:
			// Tolerate a repeated Sig1 immediately before Sig2.
			p.beginHeader(b)
		default:
			p.Reset()
			return Frame{Err: ErrBadSignature}, false
		}
		return Frame{}, false

	case stateDestID, stateSrcID, stateType, stateBodySize, stateTransID, stateChecksum:
		p.hdrBuf[p.hdrPos] = b
		p.hdrPos++
		if p.hdrPos < HeaderSize {
			p.state++
			return Frame{}, false
		}
		return p.headerComplete()

	case stateBody:
		p.body = append(p.body, b)
		p.bodyPos++
		if p.bodyPos < int(p.hdr.BodySize) {
			return Frame{}, false
		}
		p.state = stateCrc1
		return Frame{}, false

	case stateCrc1:
		p.crcBuf[0] = b
		p.state = stateCrc2
		return Frame{}, false

	case stateCrc2:
		p.crcBuf[1] = b
		return p.packetComplete()
	}

	return Frame{}, false
}

// beginHeader starts accumulating a new header whose first byte is b.
func (p *Parser) beginHeader(b byte) {
	p.hdrPos = 0
	p.hdrBuf[p.hdrPos] = b
	p.hdrPos++
}

// headerComplete decodes the 8 buffered header bytes, verifies the
// checksum, and transitions to body accumulation (or rejects the
// header and, unless already in a replay, retries once against the
// buffered bytes shifted by one).
func (p *Parser) headerComplete() (Frame, bool) {
	h := decodeHeader(p.hdrBuf[:])

	if checksum8(h) != h.Checksum {
		return p.onBadHeaderChecksum()
	}
	if int(h.BodySize) > p.cfg.MaxBodySize() {
		p.Reset()
		return Frame{Err: ErrPacketTooLarge}, false
	}

	p.hdr = h
	p.body = p.body[:0]
	p.bodyPos = 0

	if h.BodySize == 0 {
		p.state = stateCrc1
		return Frame{}, false
	}
	p.state = stateBody
	return Frame{}, false
}

// onBadHeaderChecksum resets the parser, then, unless this header was
// itself produced by a replay, replays hdrBuf[1:] once in case the
// genuine signature was embedded one byte later than where hunting
// first locked on.
func (p *Parser) onBadHeaderChecksum() (Frame, bool) {
	replayBytes := append([]byte(nil), p.hdrBuf[1:HeaderSize]...)
	wasReplaying := p.replaying
	p.Reset()

	if wasReplaying {
		return Frame{Err: ErrBadHeaderChecksum}, false
	}

	p.replaying = true
	var frame Frame
	var ok bool
	for _, rb := range replayBytes {
		frame, ok = p.Feed(rb)
		if ok {
			break
		}
	}
	p.replaying = false

	if !ok {
		return Frame{Err: ErrBadHeaderChecksum}, false
	}
	return frame, true
}

// packetComplete verifies the trailing CRC and, if it matches, emits
// the finished frame and resets for the next one.
func (p *Parser) packetComplete() (Frame, bool) {
	crc := uint16(p.crcBuf[0]) | uint16(p.crcBuf[1])<<8
	want := crc16Block(p.hdr, p.body)
	if crc != want {
		p.Reset()
		return Frame{Err: ErrCorruptedPacket}, false
	}

	body := make([]byte, len(p.body))
	copy(body, p.body)
	frame := Frame{
		Header:     p.hdr,
		Body:       body,
		Crc:        crc,
		PacketSize: PacketSize(len(body)),
		Direction:  DirReceive,
	}
	p.Reset()
	return frame, true
}

// decodeHeader reverses encodeHeader: parses the 8 on-wire header bytes
// into a Header. The leading two bytes are kept as Sig0/Sig1 for
// completeness even though Feed only reaches here once they have
// already matched Sig1/Sig2.
func decodeHeader(buf []byte) Header {
	return Header{
		Sig0:     buf[0],
		Sig1:     buf[1],
		DestID:   buf[2],
		SrcID:    buf[3],
		Type:     MsgType(buf[4]),
		BodySize: buf[5],
		TransID:  buf[6],
		Checksum: buf[7],
	}
}
