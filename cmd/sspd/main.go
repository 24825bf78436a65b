// Command sspd runs the SSP reliability engine as a standalone daemon:
// one serial port bridged to Redis, so other processes can queue sends
// and observe socket traffic without linking against pkg/ssp directly.
// It follows the flag/signal/defer structure of the teacher's
// cmd/bluetooth-service/main.go, generalized from a single fixed BLE
// device to a configurable serial port and socket set.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/rs/xid"
	"net/http"

	"github.com/librescoot/ssp/pkg/clock"
	"github.com/librescoot/ssp/pkg/redisbridge"
	"github.com/librescoot/ssp/pkg/ssp"
	"github.com/librescoot/ssp/pkg/transport"
)

func main() {
	device := flag.String("device", "/dev/ttyUSB0", "serial device path")
	baud := flag.Int("baud", 115200, "serial baud rate")
	redisAddr := flag.String("redis-addr", "localhost:6379", "redis server address")
	redisPassword := flag.String("redis-password", "", "redis server password")
	redisDB := flag.Int("redis-db", 0, "redis database number")
	requestKey := flag.String("request-key", "ssp:requests", "redis list key polled for outbound send requests")
	eventChannel := flag.String("event-channel", "ssp:events", "redis channel published with inbound socket events")
	sockets := flag.String("sockets", "1", "comma-separated socket ids to open and bridge to redis")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	instanceID := xid.New().String()

	cfg := ssp.DefaultConfig()
	tp := transport.NewSerial(*baud)
	clk := clock.NewSystem()
	engine := ssp.NewEngine(cfg, tp, clk, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(engine.Metrics())
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.WithError(err).Error("sspd: metrics server stopped")
		}
	}()

	if err := engine.OpenPort(0, *device); err != nil {
		log.WithError(err).Fatalf("sspd: failed to open serial port %s", *device)
	}

	bridge, err := redisbridge.New(*redisAddr, *redisPassword, *redisDB, engine, *requestKey, *eventChannel, log)
	if err != nil {
		log.WithError(err).Fatal("sspd: failed to connect to redis")
	}
	defer bridge.Close()

	for _, s := range strings.Split(*sockets, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			log.WithError(err).Fatalf("sspd: invalid socket id %q", s)
		}
		if err := engine.OpenSocket(0, id); err != nil {
			log.WithError(err).Fatalf("sspd: failed to open socket %d", id)
		}
		if err := bridge.Watch(id); err != nil {
			log.WithError(err).Fatalf("sspd: failed to watch socket %d", id)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := bridge.Run(ctx, 0); err != nil {
			log.WithError(err).Error("sspd: redis bridge loop exited")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.WithFields(logrus.Fields{"instance": instanceID, "device": *device, "baud": *baud}).Info("sspd: started")

	stop := make(chan struct{})
	go func() {
		<-sigCh
		log.Info("sspd: shutting down")
		close(stop)
	}()

	for {
		select {
		case <-stop:
			if err := engine.Close(); err != nil {
				log.WithError(err).Warn("sspd: engine close reported an error")
			}
			return
		default:
			engine.Process()
		}
	}
}
