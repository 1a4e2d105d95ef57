// Package wakeup nudges the ledger worker over redis pub/sub. Polling stays
// the main mechanism; a lost message only delays work until the next tick.
package wakeup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const Channel = "ledger:wake"

// Kind names the job a wake-up asks for.
type Kind string

const (
	KindSweep    Kind = "sweep"
	KindSnapshot Kind = "snapshot"
)

// Publisher sends wake-ups. A nil client makes Publish a no-op.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Enabled reports whether wake-ups reach a worker at all.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

func (p *Publisher) Publish(ctx context.Context, kind Kind) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.client.Publish(ctx, Channel, string(kind)).Err(); err != nil {
		return fmt.Errorf("publish wake-up: %w", err)
	}
	return nil
}

// Subscribe forwards wake-ups to the matching channel until ctx is done.
// Sends never block; a pending wake-up absorbs later ones.
func Subscribe(ctx context.Context, client *redis.Client, sinks map[Kind]chan<- struct{}) {
	if client == nil {
		return
	}
	sub := client.Subscribe(ctx, Channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sink, found := sinks[Kind(msg.Payload)]
			if !found {
				continue
			}
			select {
			case sink <- struct{}{}:
			default:
			}
		}
	}
}
