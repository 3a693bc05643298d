package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core/session"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.True(t, Healthy(context.Background(), client))
	return client
}

func TestDenylist(t *testing.T) {
	d := NewDenylist(testClient(t))
	ctx := context.Background()
	key := session.TokenKey(uuid.New().String())

	revoked, err := d.IsRevoked(ctx, key)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, key, 0))
	revoked, err = d.IsRevoked(ctx, key)
	require.NoError(t, err)
	assert.False(t, revoked, "no ttl, nothing to revoke")

	require.NoError(t, d.Revoke(ctx, key, time.Minute))
	revoked, err = d.IsRevoked(ctx, key)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestBroker(t *testing.T) {
	b := NewBroker(testClient(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subjectID := uuid.New().String()

	events, err := b.Subscribe(ctx, subjectID)
	require.NoError(t, err)

	evt := &session.Event{SubjectID: subjectID, Email: "kid@school.test"}
	require.NoError(t, b.Publish(ctx, subjectID, evt))
	require.NoError(t, b.Publish(ctx, subjectID, nil))

	for _, want := range []*session.Event{evt, nil} {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel closed once ctx is done")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}
