package transport_test

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/librescoot/ssp/pkg/transport"
)

func TestMemBufDeliversBothDirections(t *testing.T) {
	mem := transport.NewMemBuf()

	portA, err := mem.Open(0, "pair")
	assert.NilError(t, err)
	portB, err := mem.Open(1, "pair")
	assert.NilError(t, err)

	n, err := portA.Send([]byte("a-to-b"))
	assert.NilError(t, err)
	assert.Equal(t, n, len("a-to-b"))

	buf := make([]byte, 32)
	n, err = portB.Recv(buf, 100*time.Millisecond)
	assert.NilError(t, err)
	assert.Equal(t, string(buf[:n]), "a-to-b")

	_, err = portB.Send([]byte("b-to-a"))
	assert.NilError(t, err)
	n, err = portA.Recv(buf, 100*time.Millisecond)
	assert.NilError(t, err)
	assert.Equal(t, string(buf[:n]), "b-to-a")
}

func TestMemBufRecvTimesOutWhenEmpty(t *testing.T) {
	mem := transport.NewMemBuf()
	portA, err := mem.Open(0, "solo")
	assert.NilError(t, err)

	buf := make([]byte, 8)
	start := time.Now()
	n, err := portA.Recv(buf, 20*time.Millisecond)
	assert.NilError(t, err)
	assert.Equal(t, n, 0)
	assert.Assert(t, time.Since(start) >= 20*time.Millisecond)
}

func TestMemBufThirdPeerRejected(t *testing.T) {
	mem := transport.NewMemBuf()
	_, err := mem.Open(0, "pair")
	assert.NilError(t, err)
	_, err = mem.Open(1, "pair")
	assert.NilError(t, err)

	_, err = mem.Open(2, "pair")
	assert.ErrorContains(t, err, "already has two peers")
}
