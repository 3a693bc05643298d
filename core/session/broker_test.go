package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := b.Subscribe(ctx, "u1")
	require.NoError(t, err)
	others, err := b.Subscribe(ctx, "u2")
	require.NoError(t, err)

	evt := &Event{SubjectID: "u1", Email: "kid@school.test"}
	require.NoError(t, b.Publish(context.Background(), "u1", evt))
	require.NoError(t, b.Publish(context.Background(), "u1", nil))

	assert.Equal(t, evt, <-events)
	assert.Nil(t, <-events)
	assert.Len(t, others, 0)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.NoError(t, b.Publish(context.Background(), "u1", evt))
}

func TestMemoryBroker_fullBufferDropsEvents(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := b.Subscribe(ctx, "u1")
	require.NoError(t, err)
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(ctx, "u1", nil))
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestMemoryDenylist(t *testing.T) {
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	ctx := context.Background()
	d := NewMemoryDenylist()

	require.NoError(t, d.Revoke(ctx, TokenKey("t1"), time.Hour))
	require.NoError(t, d.Revoke(ctx, TokenKey("t2"), -time.Minute))

	revoked, err := d.IsRevoked(ctx, TokenKey("t1"))
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = d.IsRevoked(ctx, TokenKey("t2"))
	assert.False(t, revoked, "expired tokens are not remembered")
	revoked, _ = d.IsRevoked(ctx, SubjectKey("t1"))
	assert.False(t, revoked)

	now = now.Add(time.Hour)
	revoked, _ = d.IsRevoked(ctx, TokenKey("t1"))
	assert.False(t, revoked)
}
