package ssp

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is a Prometheus Collector exposing per-port engine
// counters (every metric carries a single "port" label), styled after the custom Collect/Describe pattern
// used for connection-keyed counters elsewhere in this stack (the
// TCPInfoCollector's conns map guarded by a mutex, restyled here for
// SSP's ports/sockets instead of live TCP connections).
type Collector struct {
	mu sync.Mutex

	framesSent     map[int]float64 // keyed by portID
	framesRecv     map[int]float64
	framingErrors  map[int]float64
	retries        map[int]float64
	sendFailures   map[int]float64
	queueDepth     map[int]float64

	sentDesc    *prometheus.Desc
	recvDesc    *prometheus.Desc
	errDesc     *prometheus.Desc
	retryDesc   *prometheus.Desc
	failDesc    *prometheus.Desc
	queueDesc   *prometheus.Desc
}

// NewCollector returns an empty Collector. Register it with a
// prometheus.Registerer; the engine updates it as it processes frames.
func NewCollector(namespace string) *Collector {
	constLabels := prometheus.Labels{}
	labels := []string{"port"}
	return &Collector{
		framesSent:    make(map[int]float64),
		framesRecv:    make(map[int]float64),
		framingErrors: make(map[int]float64),
		retries:       make(map[int]float64),
		sendFailures:  make(map[int]float64),
		queueDepth:    make(map[int]float64),

		sentDesc:  prometheus.NewDesc(namespace+"_frames_sent_total", "Total DATA frames transmitted on a port.", labels, constLabels),
		recvDesc:  prometheus.NewDesc(namespace+"_frames_received_total", "Total DATA frames accepted on a port.", labels, constLabels),
		errDesc:   prometheus.NewDesc(namespace+"_framing_errors_total", "Total parser resyncs caused by a bad signature, checksum, or CRC.", labels, constLabels),
		retryDesc: prometheus.NewDesc(namespace+"_retries_total", "Total retransmissions due to ACK timeout or NAK.", labels, constLabels),
		failDesc:  prometheus.NewDesc(namespace+"_send_failures_total", "Total sends abandoned after exhausting retries.", labels, constLabels),
		queueDesc: prometheus.NewDesc(namespace+"_send_queue_depth", "Current outstanding send queue depth for a port.", labels, constLabels),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.sentDesc
	descs <- c.recvDesc
	descs <- c.errDesc
	descs <- c.retryDesc
	descs <- c.failDesc
	descs <- c.queueDesc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for port, v := range c.framesSent {
		metrics <- prometheus.MustNewConstMetric(c.sentDesc, prometheus.CounterValue, v, portLabel(port))
	}
	for port, v := range c.framesRecv {
		metrics <- prometheus.MustNewConstMetric(c.recvDesc, prometheus.CounterValue, v, portLabel(port))
	}
	for port, v := range c.framingErrors {
		metrics <- prometheus.MustNewConstMetric(c.errDesc, prometheus.CounterValue, v, portLabel(port))
	}
	for port, v := range c.retries {
		metrics <- prometheus.MustNewConstMetric(c.retryDesc, prometheus.CounterValue, v, portLabel(port))
	}
	for port, v := range c.sendFailures {
		metrics <- prometheus.MustNewConstMetric(c.failDesc, prometheus.CounterValue, v, portLabel(port))
	}
	for port, v := range c.queueDepth {
		metrics <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, v, portLabel(port))
	}
}

func (c *Collector) incSent(portID int) {
	c.mu.Lock()
	c.framesSent[portID]++
	c.mu.Unlock()
}

func (c *Collector) incRecv(portID int) {
	c.mu.Lock()
	c.framesRecv[portID]++
	c.mu.Unlock()
}

func (c *Collector) incFramingError(portID int) {
	c.mu.Lock()
	c.framingErrors[portID]++
	c.mu.Unlock()
}

func (c *Collector) incRetry(portID int) {
	c.mu.Lock()
	c.retries[portID]++
	c.mu.Unlock()
}

func (c *Collector) incSendFailure(portID int) {
	c.mu.Lock()
	c.sendFailures[portID]++
	c.mu.Unlock()
}

func (c *Collector) setQueueDepth(portID int, depth int) {
	c.mu.Lock()
	c.queueDepth[portID] = float64(depth)
	c.mu.Unlock()
}

func portLabel(portID int) string {
	return strconv.Itoa(portID)
}
