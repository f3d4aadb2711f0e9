package natsbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publisher sends events to "<prefix>.<key>" subjects.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Subject(key string) string {
	if key == "" {
		return p.prefix
	}
	return p.prefix + "." + key
}

func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.nc.Publish(p.Subject(key), payload); err != nil {
		return fmt.Errorf("nats: publish %s: %w", p.Subject(key), err)
	}
	return nil
}

// Close flushes pending messages. The connection is owned by the caller.
func (p *Publisher) Close() error {
	return p.nc.Flush()
}
