package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial is a Transport over physical UART links, one device path per
// port. It is the generalized, multi-port descendant of the teacher's
// USOCK.New (pkg/usock/usock.go), which opened a single tarm/serial
// port per process; here every port gets its own device and the go.bug.st/serial
// client already declared in the teacher's own go.mod is used directly
// instead of the undeclared tarm/serial it actually imported.
type Serial struct {
	ports map[int]*serialPort

	// Baud, DataBits, Parity, StopBits apply to every port opened through
	// this Transport, matching the teacher's single hard-coded
	// serial.Config.
	Baud     int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

// NewSerial returns a Serial transport with 8N1 framing at baud.
func NewSerial(baud int) *Serial {
	return &Serial{
		ports:    make(map[int]*serialPort),
		Baud:     baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (s *Serial) Open(portID int, addr string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: s.Baud,
		DataBits: s.DataBits,
		Parity:   s.Parity,
		StopBits: s.StopBits,
	}

	p, err := serial.Open(addr, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", addr, err)
	}

	sp := &serialPort{port: p, recvEmpty: true}
	s.ports[portID] = sp
	return sp, nil
}

func (s *Serial) IsOpen(portID int) bool {
	_, ok := s.ports[portID]
	return ok
}

func (s *Serial) Close(portID int) error {
	sp, ok := s.ports[portID]
	if !ok {
		return nil
	}
	delete(s.ports, portID)
	return sp.Close()
}

// PowerSave hints every currently open port's line into or out of a
// sleep request by driving DTR low (power-save) or high (active),
// which is the common convention for a UART peer watching for a host
// that wants it to stay awake. go.bug.st/serial has no device-wide
// power state of its own to call into, unlike the original HAL's
// SSPHAL_PowerSave, which toggles a single MCU sleep mode directly.
func (s *Serial) PowerSave(enable bool) {
	for _, sp := range s.ports {
		_ = sp.port.SetDTR(!enable)
	}
}

// serialPort adapts go.bug.st/serial.Port to the Port interface,
// translating SSP's per-call Recv timeout into the library's read
// deadline (the teacher instead left ReadTimeout at 0 and blocked
// forever in a dedicated goroutine; SSP's cooperative Process() pump
// needs a bounded read instead).
type serialPort struct {
	port serial.Port

	// recvEmpty tracks whether the most recent Recv call came back
	// with nothing. go.bug.st/serial has no byte-count-pending query
	// to answer RecvQueueEmpty precisely, so this is a best-effort
	// reading of "as of the last poll, was there more to read."
	recvEmpty bool
}

func (p *serialPort) Send(data []byte) (int, error) {
	return p.port.Write(data)
}

func (p *serialPort) Recv(buf []byte, timeout time.Duration) (int, error) {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := p.port.Read(buf)
	if err != nil {
		return 0, err
	}
	p.recvEmpty = n == 0
	return n, nil
}

func (p *serialPort) Flush() error {
	p.recvEmpty = true
	return p.port.ResetInputBuffer()
}

func (p *serialPort) RecvQueueEmpty() bool {
	return p.recvEmpty
}

func (p *serialPort) Close() error {
	return p.port.Close()
}
