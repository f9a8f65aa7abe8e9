package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina-authz/internal/session"
	_ "github.com/lumina-lms/lumina-authz/testing"
)

func newStore(t *testing.T) *session.RedisTokenStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return session.NewRedisTokenStore(client, time.Hour)
}

func TestPutAndCurrent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", "token-a"))
	got, err := store.Current(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "token-a", got)
}

func TestCurrentObservesLatestWrite(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", "token-a"))
	require.NoError(t, store.Put(ctx, "sess-1", "token-b"))

	got, err := store.Current(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "token-b", got, "reads must observe the freshest token")
}

func TestCurrentNoSession(t *testing.T) {
	store := newStore(t)
	_, err := store.Current(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestDrop(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", "token-a"))
	require.NoError(t, store.Drop(ctx, "sess-1"))

	_, err := store.Current(ctx, "sess-1")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestPutRequiresSessionID(t *testing.T) {
	store := newStore(t)
	assert.Error(t, store.Put(context.Background(), "", "token"))
}

func TestForBindsSession(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "sess-9", "token-z"))

	src := store.For("sess-9")
	got, err := src.CurrentToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-z", got)
}
