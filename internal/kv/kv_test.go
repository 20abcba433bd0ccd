package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(client)
}

func TestSetIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k1", "v1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "first set should succeed")

	ok, err = s.SetIfAbsent(ctx, "k1", "v2", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second set on the same key should report absent-already-taken")
}

func TestExistsAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = s.SetIfAbsent(ctx, "present", "v", time.Minute)
	require.NoError(t, err)

	exists, err = s.Exists(ctx, "present")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, s.Delete(ctx, "present"))

	exists, err = s.Exists(ctx, "present")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSetMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SAdd(ctx, "set1", "a"))
	require.NoError(t, s.SAdd(ctx, "set1", "b"))

	members, err := s.SMembers(ctx, "set1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, s.SRem(ctx, "set1", "a"))
	members, err = s.SMembers(ctx, "set1")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, members)
}

func TestRenameSucceeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RPush(ctx, "src", "item"))
	require.NoError(t, s.Rename(ctx, "src", "dst"))

	items, err := s.LPopAll(ctx, "dst")
	require.NoError(t, err)
	require.Equal(t, []string{"item"}, items)
}

func TestRenameMissingSourceReturnsErrQueueMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Rename(ctx, "never-existed", "dst")
	require.ErrorIs(t, err, ErrQueueMissing)
}

func TestLPopAllDrainsAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RPush(ctx, "queue", "first"))
	require.NoError(t, s.RPush(ctx, "queue", "second"))

	items, err := s.LPopAll(ctx, "queue")
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, items)

	exists, err := s.Exists(ctx, "queue")
	require.NoError(t, err)
	require.False(t, exists, "LPopAll should delete the key after draining")
}

func TestLPopAllOnMissingKeyReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items, err := s.LPopAll(ctx, "never-existed")
	require.NoError(t, err)
	require.Empty(t, items)
}
