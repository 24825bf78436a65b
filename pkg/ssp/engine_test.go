package ssp_test

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/librescoot/ssp/pkg/clock"
	"github.com/librescoot/ssp/pkg/ssp"
	"github.com/librescoot/ssp/pkg/transport"
)

func testConfig() ssp.Config {
	cfg := ssp.DefaultConfig()
	cfg.AckTimeout = 20 * time.Millisecond
	cfg.RecvTimeout = 2 * time.Millisecond
	cfg.MaxRetries = 3
	return cfg
}

func pumpUntil(t *testing.T, engines []*ssp.Engine, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out waiting for expected engine activity")
		case <-ticker.C:
			for _, e := range engines {
				e.Process()
			}
		}
	}
}

func TestEndToEndDeliveryAndAck(t *testing.T) {
	mem := transport.NewMemBuf()
	cfg := testConfig()

	a := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)
	b := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)

	assert.NilError(t, a.OpenPort(0, "p"))
	assert.NilError(t, b.OpenPort(1, "p"))
	assert.NilError(t, a.OpenSocket(0, 1))
	assert.NilError(t, b.OpenSocket(1, 2))

	received := make(chan []byte, 1)
	sendResult := make(chan ssp.ErrKind, 1)

	assert.NilError(t, b.Listen(2, ssp.ListenerFunc(func(f ssp.Frame, _ interface{}) {
		if f.Direction == ssp.DirReceive {
			received <- f.Body
		}
	}), nil))
	assert.NilError(t, a.Listen(1, ssp.ListenerFunc(func(f ssp.Frame, _ interface{}) {
		if f.Direction == ssp.DirSend {
			sendResult <- f.Err
		}
	}), nil))

	assert.NilError(t, a.Send(1, 2, []byte("hello")))

	done := make(chan struct{})
	var gotBody []byte
	var gotResult ssp.ErrKind
	go func() {
		gotBody = <-received
		gotResult = <-sendResult
		close(done)
	}()

	pumpUntil(t, []*ssp.Engine{a, b}, done, 2*time.Second)

	assert.DeepEqual(t, gotBody, []byte("hello"))
	assert.Equal(t, gotResult, ssp.Success)
}

func TestAckedMessageDeliveredOnceToListener(t *testing.T) {
	mem := transport.NewMemBuf()
	cfg := testConfig()

	a := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)
	b := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)

	assert.NilError(t, a.OpenPort(0, "p"))
	assert.NilError(t, b.OpenPort(1, "p"))
	assert.NilError(t, a.OpenSocket(0, 1))
	assert.NilError(t, b.OpenSocket(1, 2))

	deliveries := make(chan []byte, 4)
	assert.NilError(t, b.Listen(2, ssp.ListenerFunc(func(f ssp.Frame, _ interface{}) {
		if f.Direction == ssp.DirReceive {
			deliveries <- f.Body
		}
	}), nil))

	assert.NilError(t, a.Send(1, 2, []byte("once")))

	done := make(chan struct{})
	go func() {
		<-deliveries
		close(done)
	}()
	pumpUntil(t, []*ssp.Engine{a, b}, done, 2*time.Second)

	// Give the (already-ACKed) message's retransmit window a chance to
	// fire a spurious extra delivery, and confirm none arrives.
	for i := 0; i < 10; i++ {
		a.Process()
		b.Process()
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-deliveries:
		t.Fatal("listener was notified twice for a single message")
	default:
	}
}

func TestSendToUnboundSocketExhaustsRetries(t *testing.T) {
	mem := transport.NewMemBuf()
	cfg := testConfig()

	a := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)
	b := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)

	assert.NilError(t, a.OpenPort(0, "p"))
	assert.NilError(t, b.OpenPort(1, "p")) // open but no socket / listener bound on b
	assert.NilError(t, a.OpenSocket(0, 1))

	sendResult := make(chan ssp.ErrKind, 1)
	assert.NilError(t, a.Listen(1, ssp.ListenerFunc(func(f ssp.Frame, _ interface{}) {
		if f.Direction == ssp.DirSend {
			sendResult <- f.Err
		}
	}), nil))

	assert.NilError(t, a.Send(1, 2, []byte("nobody home")))

	done := make(chan struct{})
	var result ssp.ErrKind
	go func() {
		result = <-sendResult
		close(done)
	}()
	pumpUntil(t, []*ssp.Engine{a, b}, done, 3*time.Second)

	assert.Equal(t, result, ssp.ErrSendRetriesFailed)
}

func TestQueueFullRejectsSend(t *testing.T) {
	mem := transport.NewMemBuf()
	cfg := testConfig()
	cfg.MaxMessages = 1

	a := ssp.NewEngine(cfg, mem, clock.NewSystem(), nil)
	assert.NilError(t, a.OpenPort(0, "solo"))
	assert.NilError(t, a.OpenSocket(0, 1))

	assert.NilError(t, a.Send(1, 2, []byte("first")))
	err := a.Send(1, 2, []byte("second"))
	assert.ErrorIs(t, err, ssp.ErrQueueFull)
}
