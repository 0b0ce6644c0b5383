package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherPublishesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	pub := NewRedisPublisher(rdb, "")

	sub := rdb.Subscribe(ctx, pub.Channel(permission.EventRoleAssigned))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	err = pub.Publish(ctx, permission.Event{
		Type:       permission.EventRoleAssigned,
		UserID:     "u1",
		RoleKey:    "ROLE_X",
		ActorID:    "admin",
		OccurredAt: at,
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "identity.events.role.assigned", msg.Channel)
		var got permission.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "ROLE_X", got.RoleKey)
		assert.True(t, got.OccurredAt.Equal(at))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestRedisPublisherWrapsFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	err := NewRedisPublisher(rdb, "").Publish(context.Background(), permission.Event{Type: "x"})
	require.ErrorIs(t, err, ErrPublishFailed)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), permission.Event{}))
}
