package transport

import (
	"fmt"
	"net"
	"time"
)

// UDP is a Transport over UDP datagrams, the Go rendering of the
// reference implementation's localhost example HAL
// (original_source/example/linux/ssp_hal_localhost.c): each port binds
// a local UDP socket and sends to a fixed remote peer address, with
// SO_RCVTIMEO translated to net.Conn's SetReadDeadline.
type UDP struct {
	conns map[int]*udpPort
}

// NewUDP returns an empty UDP registry.
func NewUDP() *UDP {
	return &UDP{conns: make(map[int]*udpPort)}
}

// Open binds portID's local UDP socket. addr must be "local,remote"
// (two host:port pairs separated by a comma), mirroring the reference
// HAL's fixed bind-to-LOCALHOST_PORT_ID / send-to-LOCALHOST_PORT_ID+1
// pairing, generalized so each port names both endpoints explicitly.
func (t *UDP) Open(portID int, addr string) (Port, error) {
	local, remote, err := splitUDPAddr(addr)
	if err != nil {
		return nil, err
	}

	laddr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve local udp addr %s: %w", local, err)
	}
	raddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve remote udp addr %s: %w", remote, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind udp %s: %w", local, err)
	}

	p := &udpPort{conn: conn, remote: raddr, recvEmpty: true}
	t.conns[portID] = p
	return p, nil
}

func (t *UDP) IsOpen(portID int) bool {
	_, ok := t.conns[portID]
	return ok
}

func (t *UDP) Close(portID int) error {
	p, ok := t.conns[portID]
	if !ok {
		return nil
	}
	delete(t.conns, portID)
	return p.Close()
}

// PowerSave is a no-op: a UDP socket has no lower-power state for the
// host side to request, unlike a real radio/UART peer.
func (t *UDP) PowerSave(enable bool) {}

func splitUDPAddr(addr string) (local, remote string, err error) {
	for i := 0; i < len(addr); i++ {
		if addr[i] == ',' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("transport: udp addr %q must be \"local,remote\"", addr)
}

// udpPort adapts *net.UDPConn to Port.
type udpPort struct {
	conn   *net.UDPConn
	remote *net.UDPAddr

	// recvEmpty tracks whether the last ReadFromUDP call came back
	// empty; UDPConn exposes no pending-datagram count to query
	// without consuming it.
	recvEmpty bool
}

func (p *udpPort) Send(data []byte) (int, error) {
	return p.conn.WriteToUDP(data, p.remote)
}

func (p *udpPort) Recv(buf []byte, timeout time.Duration) (int, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, _, err := p.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			p.recvEmpty = true
			return 0, nil
		}
		return 0, err
	}
	p.recvEmpty = n == 0
	return n, nil
}

func (p *udpPort) Flush() error {
	// Datagram sockets have no separate input buffer to discard short
	// of draining pending reads, which would race an in-flight Recv, so
	// this is a no-op; the ssp engine itself never calls Flush.
	return nil
}

func (p *udpPort) RecvQueueEmpty() bool {
	return p.recvEmpty
}

func (p *udpPort) Close() error {
	return p.conn.Close()
}
