package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/pkg/utils"
)

const defaultRelayTopic = "algoroom:updates"

// RedisRelay fans updates out to every instance through redis pub/sub
type RedisRelay struct {
	logger *zap.Logger
	client redis.UniversalClient
	topic  string

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

var _ Relay = (*RedisRelay)(nil)

// NewRedisRelay connects to redis in single, sentinel or cluster mode
func NewRedisRelay(ctx context.Context, logger *zap.Logger, cfg config.RelayRedisConfig) (*RedisRelay, error) {
	addrs := utils.SplitList(cfg.Addr)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis relay: no address configured")
	}
	opts := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		opts.DB = cfg.DB
	}
	var client redis.UniversalClient
	if cfg.ClusterType == cnst.RedisClusterTypeCluster {
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewUniversalClient(opts)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRelay{
		logger: logger.Named("relay.redis"),
		client: client,
		topic:  utils.FirstNonEmpty(cfg.Topic, defaultRelayTopic),
	}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	return nil
}

func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("redis relay is closed")
	}
	pubsub := r.client.Subscribe(ctx, r.topic)
	r.subs = append(r.subs, pubsub)
	r.mu.Unlock()

	// wait for the subscription to be confirmed so nothing published after
	// Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.topic, err)
	}

	out := make(chan *Envelope, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn("failed to unmarshal envelope",
						zap.Error(err),
						zap.String("payload", msg.Payload))
					continue
				}
				if err := env.Update.Validate(); err != nil {
					r.logger.Warn("dropping invalid relayed update", zap.Error(err))
					continue
				}
				select {
				case out <- &env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisRelay) Close() error {
	r.mu.Lock()
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return r.client.Close()
}
