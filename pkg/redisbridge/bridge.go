// Package redisbridge is the SSP control-plane glue: it lets other
// processes queue sends and observe socket activity over Redis rather
// than linking against pkg/ssp directly. It is adapted from the
// teacher's pkg/redis/client.go, trimmed to the handful of Redis
// commands this bridge actually drives (BRPOP for inbound send
// requests, PUBLISH for outbound events) and built around JSON
// envelopes instead of the teacher's bare hash-field writes.
package redisbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/librescoot/ssp/pkg/ssp"
)

// SendRequest is the JSON envelope a client LPUSHes onto a bridge's
// request list to queue an SSP send.
type SendRequest struct {
	SrcSocket  int    `json:"src_socket"`
	DestSocket int    `json:"dest_socket"`
	Body       []byte `json:"body"`
}

// Event is the JSON envelope the bridge PUBLISHes for every Listener
// notification it receives on behalf of a bridged socket.
type Event struct {
	Socket    int    `json:"socket"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Body      []byte `json:"body,omitempty"`
	Err       string `json:"err,omitempty"`
}

// Bridge drives one Engine from Redis: a background loop BRPOPs queued
// SendRequests off requestKey and calls Engine.Send, while acting as
// the Listener for every socket registered with Watch, publishing each
// notification as an Event on eventChannel.
type Bridge struct {
	client       *redis.Client
	ctx          context.Context
	log          *logrus.Logger
	engine       *ssp.Engine
	requestKey   string
	eventChannel string
}

// New connects to the Redis instance at addr and returns a Bridge ready
// to drive engine.
func New(addr, password string, db int, engine *ssp.Engine, requestKey, eventChannel string, log *logrus.Logger) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisbridge: connect to redis at %s: %w", addr, err)
	}

	return &Bridge{
		client:       client,
		ctx:          ctx,
		log:          log,
		engine:       engine,
		requestKey:   requestKey,
		eventChannel: eventChannel,
	}, nil
}

// Watch registers the Bridge as socketID's Listener, so every inbound
// message and send outcome on that socket is published as an Event.
func (b *Bridge) Watch(socketID int) error {
	return b.engine.Listen(socketID, ssp.ListenerFunc(b.notify), socketID)
}

// notify implements ssp.Listener, publishing frame as a JSON Event on
// the bridge's configured channel.
func (b *Bridge) notify(frame ssp.Frame, userData interface{}) {
	ev := Event{
		Socket:    userData.(int),
		Direction: frame.Direction.String(),
		Type:      frame.Header.Type.String(),
		Body:      frame.Body,
	}
	if frame.Err != ssp.Success {
		ev.Err = frame.Err.String()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.WithError(err).Error("redisbridge: marshal event failed")
		return
	}
	if err := b.client.Publish(b.ctx, b.eventChannel, payload).Err(); err != nil {
		b.log.WithError(err).Error("redisbridge: publish event failed")
	}
}

// Run blocks, repeatedly BRPOPing queued SendRequests off requestKey
// (the reference architecture's pkg/redis BRPop, generalized from a
// fixed battery-telemetry list key to the bridge's configured one) and
// forwarding each to Engine.Send. It returns when ctx is done.
func (b *Bridge) Run(ctx context.Context, popTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := b.client.BRPop(ctx, popTimeout, b.requestKey).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			b.log.WithError(err).Error("redisbridge: BRPOP failed")
			continue
		}
		if len(result) != 2 {
			continue
		}

		var req SendRequest
		if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
			b.log.WithError(err).Error("redisbridge: malformed send request")
			continue
		}
		if err := b.engine.Send(req.SrcSocket, req.DestSocket, req.Body); err != nil {
			b.log.WithError(err).WithFields(logrus.Fields{
				"src":  req.SrcSocket,
				"dest": req.DestSocket,
			}).Warn("redisbridge: queue send failed")
		}
	}
}

// Close releases the bridge's Redis connection.
func (b *Bridge) Close() error {
	return b.client.Close()
}
