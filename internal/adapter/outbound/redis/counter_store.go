package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stylebot/server/internal/port/outbound"
)

// counterStore implements outbound.CounterStore on Redis strings and hashes.
type counterStore struct {
	client redis.UniversalClient
}

// NewCounterStore creates a Redis-backed counter store.
func NewCounterStore(client redis.UniversalClient) outbound.CounterStore {
	return &counterStore{client: client}
}

func (s *counterStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, outbound.ErrCacheMiss
		}
		return 0, err
	}
	return val, nil
}

func (s *counterStore) SetNX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *counterStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *counterStore) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	return s.client.IncrBy(ctx, key, amount).Result()
}

func (s *counterStore) DecrBy(ctx context.Context, key string, amount int64) (int64, error) {
	return s.client.DecrBy(ctx, key, amount).Result()
}

func (s *counterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -2 means the key does not exist; -1 means no expiry.
	if ttl == -2 {
		return 0, outbound.ErrCacheMiss
	}
	return ttl, nil
}

func (s *counterStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *counterStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *counterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *counterStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *counterStore) Batch(ctx context.Context, ops ...outbound.Op) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return queueOps(ctx, pipe, ops)
	})
	return err
}

func (s *counterStore) Watch(ctx context.Context, fn func(tx outbound.CounterTx) error, keys ...string) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		return fn(&counterTx{tx: tx})
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return outbound.ErrWatchConflict
	}
	return err
}

// counterTx wraps a WATCHed connection.
type counterTx struct {
	tx *redis.Tx
}

func (t *counterTx) Get(ctx context.Context, key string) (int64, error) {
	val, err := t.tx.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, outbound.ErrCacheMiss
		}
		return 0, err
	}
	return val, nil
}

func (t *counterTx) Exists(ctx context.Context, key string) (bool, error) {
	n, err := t.tx.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *counterTx) Exec(ctx context.Context, ops ...outbound.Op) error {
	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return queueOps(ctx, pipe, ops)
	})
	if errors.Is(err, redis.TxFailedErr) {
		return outbound.ErrWatchConflict
	}
	return err
}

func queueOps(ctx context.Context, pipe redis.Pipeliner, ops []outbound.Op) error {
	for _, op := range ops {
		switch op.Kind {
		case outbound.OpSet:
			pipe.Set(ctx, op.Key, op.Value, op.TTL)
		case outbound.OpIncrBy:
			pipe.IncrBy(ctx, op.Key, op.Value)
		case outbound.OpDecrBy:
			pipe.DecrBy(ctx, op.Key, op.Value)
		case outbound.OpHSet:
			pipe.HSet(ctx, op.Key, op.Fields)
		case outbound.OpExpire:
			pipe.Expire(ctx, op.Key, op.TTL)
		case outbound.OpDel:
			pipe.Del(ctx, op.Key)
		default:
			return fmt.Errorf("unknown op kind %d for key %s", op.Kind, op.Key)
		}
	}
	return nil
}

// Compile-time check
var _ outbound.CounterStore = (*counterStore)(nil)
