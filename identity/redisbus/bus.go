// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package redisbus carries verification session events over Redis pub/sub, so
// the verifier and the agent can run as separate processes.
package redisbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-json-experiment/json"
	"github.com/redis/go-redis/v9"

	"github.com/go-a2a/a2a-stepup/identity"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "a2a:oid4vp:session-state"

const subscriberBuffer = 16

// Bus is an [identity.Publisher] and [identity.EventSource] backed by Redis.
type Bus struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

var (
	_ identity.Publisher   = (*Bus)(nil)
	_ identity.EventSource = (*Bus)(nil)
)

// Option configures a [Bus].
type Option func(*Bus)

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(b *Bus) { b.channel = channel }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New returns a Bus on client.
func New(client redis.UniversalClient, opts ...Option) *Bus {
	b := &Bus{
		client:  client,
		channel: DefaultChannel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial connects to the Redis server at url, for example redis://localhost:6379/0,
// and checks the connection.
func Dial(ctx context.Context, url string, opts ...Option) (*Bus, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", ropts.Addr, err)
	}
	return New(client, opts...), nil
}

// Close closes the underlying client.
func (b *Bus) Close() error {
	return b.client.Close()
}

// Publish implements [identity.Publisher].
func (b *Bus) Publish(ctx context.Context, ev identity.SessionStateChangedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

// Subscribe implements [identity.EventSource]. It returns once the subscription
// is confirmed by the server; events published earlier are not delivered.
func (b *Bus) Subscribe(ctx context.Context) (<-chan identity.SessionStateChangedEvent, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan identity.SessionStateChangedEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev identity.SessionStateChangedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.WarnContext(ctx, "dropping malformed session event",
						slog.String("channel", msg.Channel),
						slog.Any("error", err),
					)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
