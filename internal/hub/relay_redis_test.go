package hub

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/apiserver/database"
	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/protocol"
)

func newTestRedisRelay(t *testing.T, mr *miniredis.Miniredis) *RedisRelay {
	t.Helper()
	r, err := NewRedisRelay(context.Background(), zap.NewNop(), config.RelayRedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        mr.Addr(),
		Topic:       "algoroom:test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNewRedisRelay_ConnectionError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := NewRedisRelay(ctx, zap.NewNop(), config.RelayRedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        "127.0.0.1:1",
	})
	assert.Nil(t, r)
	assert.Error(t, err)

	_, err = NewRedisRelay(ctx, zap.NewNop(), config.RelayRedisConfig{Addr: " , "})
	assert.Error(t, err)
}

func TestRedisRelay_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	pub := newTestRedisRelay(t, mr)
	sub := newTestRedisRelay(t, mr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	update := protocol.NewCodeUpdate("s1", "print(1)", protocol.LanguagePython)
	require.NoError(t, pub.Publish(ctx, &Envelope{Origin: "i1", Except: "ep", Update: update}))

	select {
	case env := <-ch:
		require.NotNil(t, env)
		assert.Equal(t, "i1", env.Origin)
		assert.Equal(t, "ep", env.Except)
		assert.Equal(t, "print(1)", env.Update.CodeValue())
		assert.Equal(t, protocol.LanguagePython, env.Update.Language)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not received")
	}

	// malformed payloads are dropped, the stream keeps going
	mr.Publish("algoroom:test", "{not json")
	require.NoError(t, pub.Publish(ctx, &Envelope{Origin: "i1", Update: protocol.NewParticipantJoined("s1", 1)}))
	select {
	case env := <-ch:
		assert.Equal(t, protocol.UpdateParticipantJoined, env.Update.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not received after malformed payload")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisRelay_TwoHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	store := database.NewMemory()
	s, err := store.Create(context.Background(), protocol.LanguageJavaScript)
	require.NoError(t, err)

	h1 := New(zap.NewNop(), store, WithRelay(newTestRedisRelay(t, mr)))
	h2 := New(zap.NewNop(), store, WithRelay(newTestRedisRelay(t, mr)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h1.Run(ctx) }()
	go func() { _ = h2.Run(ctx) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("algoroom:test")["algoroom:test"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	a, b := newFakeEndpoint("a"), newFakeEndpoint("b")
	require.NoError(t, h1.Attach(ctx, s.ID, a))
	require.NoError(t, h2.Attach(ctx, s.ID, b))

	h1.Broadcast(ctx, s.ID, protocol.NewCodeUpdate(s.ID, "x=1", protocol.LanguageJavaScript))

	require.Eventually(t, func() bool {
		u := b.last()
		return u != nil && u.Type == protocol.UpdateCode && u.CodeValue() == "x=1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "x=1", a.last().CodeValue())
}

func TestNewRelay_Factory(t *testing.T) {
	r, err := NewRelay(context.Background(), zap.NewNop(), &config.RelayConfig{Type: cnst.RelayTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRelay{}, r)

	_, err = NewRelay(context.Background(), zap.NewNop(), &config.RelayConfig{Type: "kafka"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	r, err = NewRelay(context.Background(), zap.NewNop(), &config.RelayConfig{
		Type:  cnst.RelayTypeRedis,
		Redis: config.RelayRedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &RedisRelay{}, r)
	_ = r.Close()
}

func TestMemoryRelay(t *testing.T) {
	r := NewMemoryRelay()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Publish(ctx, &Envelope{Origin: "x"}))
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, r.Close())
}
