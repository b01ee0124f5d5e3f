package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"spotter_portal_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel updates travel on between processes.
const DefaultChannel = "portal:sse:updates"

const (
	relayRetryBase = time.Second
	relayRetryMax  = 30 * time.Second
)

type envelope struct {
	UserID int64 `json:"user_id"`
	Event  Event `json:"event"`
}

// Relay carries events from any process (the delivery worker) to the
// process holding the user's stream.
type Relay struct {
	rdb     *redis.Client
	channel string
	local   *Service
	log     *logger.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

// NewRelay builds a relay. local may be nil in processes that only publish.
func NewRelay(rdb *redis.Client, channel string, local *Service, log *logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		rdb:       rdb,
		channel:   channel,
		local:     local,
		log:       log,
		retryBase: relayRetryBase,
		retryMax:  relayRetryMax,
	}
}

// PublishUpdate sends event for userID to every subscribed process.
func (r *Relay) PublishUpdate(ctx context.Context, userID int64, event Event) error {
	data, err := json.Marshal(envelope{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("encode sse event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish sse event: %w", err)
	}
	return nil
}

// Run forwards relayed events to the local service until ctx is done. A
// lost or failed subscription is retried with doubling backoff; Run only
// returns early when the relay has no local service.
func (r *Relay) Run(ctx context.Context) error {
	if r.local == nil {
		return fmt.Errorf("sse relay has no local service")
	}

	delay := r.retryBase
	for {
		subscribed, err := r.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			delay = r.retryBase
		}
		r.log.Warn("sse relay subscription lost", "channel", r.channel, "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, r.retryMax)
	}
}

// listen holds one subscription. subscribed reports whether the channel
// was joined before the subscription ended.
func (r *Relay) listen(ctx context.Context) (subscribed bool, err error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return true, fmt.Errorf("subscription to %s closed", r.channel)
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("sse relay dropped malformed message", "error", err)
				continue
			}
			r.local.Publish(env.UserID, env.Event)
		}
	}
}
