// Command sspdemo runs two Engines against each other over an
// in-process loopback transport: engine B sends a handful of messages
// to engine A, A prints each message it receives, and B prints the
// send outcome of each one. It is the Go counterpart
// of the reference project's Windows example (original_source's
// example/windows harness wired to the mem-buf HAL), adapted to run
// entirely in one process using pkg/transport.MemBuf instead of a
// pair of separate executables.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/librescoot/ssp/pkg/clock"
	"github.com/librescoot/ssp/pkg/ssp"
	"github.com/librescoot/ssp/pkg/transport"
)

const (
	portA     = 0
	portB     = 1
	socketA   = 1
	socketB   = 2
	peerAddr  = "demo-loopback"
	sendCount = 5
)

func main() {
	count := flag.Int("count", sendCount, "number of messages B sends to A")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	mem := transport.NewMemBuf()
	cfg := ssp.DefaultConfig()

	engineA := ssp.NewEngine(cfg, mem, clock.NewSystem(), log)
	engineB := ssp.NewEngine(cfg, mem, clock.NewSystem(), log)
	defer engineA.Close()
	defer engineB.Close()

	must(engineA.OpenPort(portA, peerAddr))
	must(engineB.OpenPort(portB, peerAddr))

	must(engineA.OpenSocket(portA, socketA))
	must(engineB.OpenSocket(portB, socketB))

	done := make(chan struct{}, 2)
	recvCount := 0

	must(engineA.Listen(socketA, ssp.ListenerFunc(func(frame ssp.Frame, _ interface{}) {
		switch frame.Direction {
		case ssp.DirSend:
			fmt.Printf("A: send outcome trans=%d err=%s\n", frame.Header.TransID, frame.Err)
		case ssp.DirReceive:
			fmt.Printf("A: received %q\n", frame.Body)
			recvCount++
			if recvCount >= *count {
				done <- struct{}{}
			}
		}
	}), nil))

	must(engineB.Listen(socketB, ssp.ListenerFunc(func(frame ssp.Frame, _ interface{}) {
		switch frame.Direction {
		case ssp.DirSend:
			fmt.Printf("B: send outcome trans=%d err=%s\n", frame.Header.TransID, frame.Err)
		case ssp.DirReceive:
			fmt.Printf("B: received %q\n", frame.Body)
		}
	}), nil))

	for i := 0; i < *count; i++ {
		msg := []byte(fmt.Sprintf("hello from B #%d", i))
		must(engineB.Send(socketB, socketA, msg))
	}

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)

	for {
		select {
		case <-done:
			return
		case <-timeout:
			log.Warn("sspdemo: timed out waiting for all messages")
			return
		case <-ticker.C:
			engineA.Process()
			engineB.Process()
		}
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
