package hub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/protocol"
)

// Envelope carries an update between server instances
type Envelope struct {
	// Origin is the id of the publishing instance
	Origin string `json:"origin"`
	// Except names the endpoint that produced the update, if any
	Except string                  `json:"except,omitempty"`
	Update *protocol.SessionUpdate `json:"update"`
}

// Relay forwards updates to the hubs of other server instances
type Relay interface {
	Publish(ctx context.Context, env *Envelope) error
	// Subscribe streams envelopes published by any instance, including this
	// one, until ctx is done or the relay is closed.
	Subscribe(ctx context.Context) (<-chan *Envelope, error)
	Close() error
}

// NewRelay creates a relay based on configuration
func NewRelay(ctx context.Context, logger *zap.Logger, cfg *config.RelayConfig) (Relay, error) {
	logger.Info("Initializing relay", zap.String("type", cfg.Type))
	switch cfg.Type {
	case "", cnst.RelayTypeMemory:
		return NewMemoryRelay(), nil
	case cnst.RelayTypeRedis:
		return NewRedisRelay(ctx, logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported relay type: %s", cfg.Type)
	}
}

// MemoryRelay is the single-instance relay: nothing leaves the process and
// nothing arrives
type MemoryRelay struct{}

var _ Relay = (*MemoryRelay)(nil)

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{}
}

func (*MemoryRelay) Publish(context.Context, *Envelope) error {
	return nil
}

func (*MemoryRelay) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	ch := make(chan *Envelope)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (*MemoryRelay) Close() error {
	return nil
}
