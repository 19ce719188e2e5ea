package outbound

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned when a key does not exist.
	ErrCacheMiss = errors.New("cache miss")

	// ErrWatchConflict is returned by Watch when a watched key was modified
	// between the read and the commit. Callers are expected to retry.
	ErrWatchConflict = errors.New("watched key modified concurrently")
)

// OpKind identifies a queued write.
type OpKind int

const (
	OpSet OpKind = iota + 1
	OpIncrBy
	OpDecrBy
	OpHSet
	OpExpire
	OpDel
)

// Op is a single write executed inside Batch or CounterTx.Exec.
type Op struct {
	Kind   OpKind
	Key    string
	Value  int64
	Fields map[string]string
	TTL    time.Duration
}

// SetOp overwrites key with value and TTL.
func SetOp(key string, value int64, ttl time.Duration) Op {
	return Op{Kind: OpSet, Key: key, Value: value, TTL: ttl}
}

// IncrByOp increments key, preserving its TTL.
func IncrByOp(key string, amount int64) Op {
	return Op{Kind: OpIncrBy, Key: key, Value: amount}
}

// DecrByOp decrements key, preserving its TTL.
func DecrByOp(key string, amount int64) Op {
	return Op{Kind: OpDecrBy, Key: key, Value: amount}
}

// HSetOp writes hash fields.
func HSetOp(key string, fields map[string]string) Op {
	return Op{Kind: OpHSet, Key: key, Fields: fields}
}

// ExpireOp sets a TTL on key.
func ExpireOp(key string, ttl time.Duration) Op {
	return Op{Kind: OpExpire, Key: key, TTL: ttl}
}

// DelOp removes key.
func DelOp(key string) Op {
	return Op{Kind: OpDel, Key: key}
}

// CounterStore is the key-value store backing quota counters and pass records.
type CounterStore interface {
	// Get returns the integer value at key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (int64, error)

	// SetNX sets key only if it does not exist. Reports whether it was set.
	SetNX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)

	// Set overwrites key with a TTL.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	IncrBy(ctx context.Context, key string, amount int64) (int64, error)
	DecrBy(ctx context.Context, key string, amount int64) (int64, error)

	// TTL returns the remaining time to live, or ErrCacheMiss.
	TTL(ctx context.Context, key string) (time.Duration, error)

	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGetAll returns all hash fields; an empty map when key is absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Batch executes ops as one MULTI/EXEC block.
	Batch(ctx context.Context, ops ...Op) error

	// Watch runs fn as an optimistic transaction over keys. If any watched key
	// changes before fn calls Exec, Watch returns ErrWatchConflict.
	Watch(ctx context.Context, fn func(tx CounterTx) error, keys ...string) error
}

// CounterTx is the read side of an optimistic transaction plus its commit.
type CounterTx interface {
	Get(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Exec commits ops atomically, or fails with ErrWatchConflict.
	Exec(ctx context.Context, ops ...Op) error
}
