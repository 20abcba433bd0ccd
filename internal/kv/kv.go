// Package kv wraps the Redis-backed coordination primitives the scheduler,
// dedup guard and locking helpers depend on: atomic set-if-absent, TTL,
// list operations and the rename-based queue handoff.
package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmundhra/plum-ems/internal/errs"
)

// Store wraps a *redis.Client with the narrow operation set the pipeline
// needs, grounded on internal/platform/database/database.go's
// Open-with-ping connection bootstrap idiom.
type Store struct {
	client *redis.Client
}

// Open connects to Redis and verifies connectivity with a PING, mirroring
// the Postgres connection bootstrap's fail-fast-on-connect behavior.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "connect to redis", err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing *redis.Client, used by tests running
// against a miniredis instance.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// SetIfAbsent implements the KV store's atomic set-if-absent primitive
// (Redis SET NX), used for scheduler windows, the dedup guard, and
// lock:{key}. It returns true if the key was set (i.e. it was absent).
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "set-if-absent", err)
	}
	return ok, nil
}

// Delete removes a key, the release side of lock:{key}.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "delete", err)
	}
	return nil
}

// Exists reports whether key is currently present (used to check whether a
// scheduler window has expired: absent or TTL lapsed both read as "gone").
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "exists", err)
	}
	return n > 0, nil
}

// RPush appends a serialized item to a list, the scheduler's per-employer
// queue append.
func (s *Store) RPush(ctx context.Context, key string, value string) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		return errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "rpush", err)
	}
	return nil
}

// SAdd adds a member to a set, the scheduler's active_employers membership.
func (s *Store) SAdd(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "sadd", err)
	}
	return nil
}

// SMembers returns every member of a set.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "smembers", err)
	}
	return members, nil
}

// SRem removes a member from a set.
func (s *Store) SRem(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "srem", err)
	}
	return nil
}

// ErrQueueMissing is returned by Rename when the source key does not exist,
// the "rename fails because the queue is missing" case the sweeper treats
// as a silent no-op cleanup.
var ErrQueueMissing = errors.New("kv: queue key missing")

// Rename atomically renames src to dst, the sweeper's handoff of a
// per-employer queue to a processing key so concurrent appends after the
// handoff land on a fresh queue rather than being lost.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := s.client.Rename(ctx, src, dst).Err(); err != nil {
		// RENAME on a missing source key fails server-side with "ERR no
		// such key" rather than redis.Nil.
		if errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "no such key") {
			return ErrQueueMissing
		}
		return errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "rename", err)
	}
	return nil
}

// LPopAll drains every element of a list (used against a processing key
// after the rename handoff) and deletes the key.
func (s *Store) LPopAll(ctx context.Context, key string) ([]string, error) {
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "lrange", err)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, errs.Wrap(errs.ErrCodeKV, errs.KindTransientInfra, "delete processing key", err)
	}
	return items, nil
}
