// Package memory provides in-process implementations of the outbound ports.
// They back the "memory" store driver and the unit tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/stylebot/server/internal/port/outbound"
)

type entry struct {
	value     int64
	hash      map[string]string
	expiresAt time.Time // zero means no expiry
}

// CounterStore is an in-memory outbound.CounterStore with TTLs and
// version-checked optimistic transactions.
type CounterStore struct {
	mu       sync.Mutex
	entries  map[string]*entry
	versions map[string]uint64
	now      func() time.Time
}

var _ outbound.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates an empty store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		entries:  make(map[string]*entry),
		versions: make(map[string]uint64),
		now:      time.Now,
	}
}

// SetClock replaces the clock used for expiry. Intended for tests.
func (s *CounterStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// lookup returns a live entry, purging it if expired. Caller holds mu.
func (s *CounterStore) lookup(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		s.versions[key]++
		return nil, false
	}
	return e, true
}

func (s *CounterStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *CounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || e.hash != nil {
		return 0, outbound.ErrCacheMiss
	}
	return e.value, nil
}

func (s *CounterStore) SetNX(_ context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.apply(outbound.SetOp(key, value, ttl))
	return true, nil
}

func (s *CounterStore) Set(_ context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(outbound.SetOp(key, value, ttl))
}

func (s *CounterStore) IncrBy(_ context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.apply(outbound.IncrByOp(key, amount)); err != nil {
		return 0, err
	}
	return s.entries[key].value, nil
}

func (s *CounterStore) DecrBy(_ context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.apply(outbound.DecrByOp(key, amount)); err != nil {
		return 0, err
	}
	return s.entries[key].value, nil
}

func (s *CounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, outbound.ErrCacheMiss
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

func (s *CounterStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(outbound.HSetOp(key, fields))
}

func (s *CounterStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return map[string]string{}, nil
	}
	if e.hash == nil {
		return nil, fmt.Errorf("key %s holds a counter, not a hash", key)
	}
	return maps.Clone(e.hash), nil
}

func (s *CounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(outbound.ExpireOp(key, ttl))
}

func (s *CounterStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.apply(outbound.DelOp(key))
	}
	return nil
}

func (s *CounterStore) Batch(_ context.Context, ops ...outbound.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyAll(ops)
}

// Watch snapshots the versions of keys, runs fn, and lets fn commit only if
// none of them changed in between.
func (s *CounterStore) Watch(ctx context.Context, fn func(tx outbound.CounterTx) error, keys ...string) error {
	s.mu.Lock()
	watched := make(map[string]uint64, len(keys))
	for _, key := range keys {
		s.lookup(key)
		watched[key] = s.versions[key]
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&counterTx{store: s, watched: watched})
}

// Len returns the number of live keys.
func (s *CounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries {
		if _, ok := s.lookup(key); ok {
			n++
		}
	}
	return n
}

// applyAll validates every op before mutating anything. Caller holds mu.
func (s *CounterStore) applyAll(ops []outbound.Op) error {
	for _, op := range ops {
		if op.Kind < outbound.OpSet || op.Kind > outbound.OpDel {
			return fmt.Errorf("unknown op kind %d for key %s", op.Kind, op.Key)
		}
		if op.Kind == outbound.OpIncrBy || op.Kind == outbound.OpDecrBy {
			if e, ok := s.lookup(op.Key); ok && e.hash != nil {
				return fmt.Errorf("key %s holds a hash, not a counter", op.Key)
			}
		}
	}
	for _, op := range ops {
		if err := s.apply(op); err != nil {
			return err
		}
	}
	return nil
}

// apply executes a single op. Caller holds mu.
func (s *CounterStore) apply(op outbound.Op) error {
	e, exists := s.lookup(op.Key)

	switch op.Kind {
	case outbound.OpSet:
		s.entries[op.Key] = &entry{value: op.Value, expiresAt: s.expiry(op.TTL)}
	case outbound.OpIncrBy, outbound.OpDecrBy:
		delta := op.Value
		if op.Kind == outbound.OpDecrBy {
			delta = -delta
		}
		if !exists {
			e = &entry{}
			s.entries[op.Key] = e
		}
		if e.hash != nil {
			return fmt.Errorf("key %s holds a hash, not a counter", op.Key)
		}
		e.value += delta
	case outbound.OpHSet:
		if !exists || e.hash == nil {
			e = &entry{hash: make(map[string]string), expiresAt: expiresAtOf(e)}
			s.entries[op.Key] = e
		}
		for k, v := range op.Fields {
			e.hash[k] = v
		}
	case outbound.OpExpire:
		if !exists {
			return nil
		}
		e.expiresAt = s.expiry(op.TTL)
	case outbound.OpDel:
		if !exists {
			return nil
		}
		delete(s.entries, op.Key)
	default:
		return fmt.Errorf("unknown op kind %d for key %s", op.Kind, op.Key)
	}

	s.versions[op.Key]++
	return nil
}

func expiresAtOf(e *entry) time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.expiresAt
}

type counterTx struct {
	store   *CounterStore
	watched map[string]uint64
}

func (t *counterTx) Get(ctx context.Context, key string) (int64, error) {
	return t.store.Get(ctx, key)
}

func (t *counterTx) Exists(_ context.Context, key string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.lookup(key)
	return ok, nil
}

func (t *counterTx) Exec(_ context.Context, ops ...outbound.Op) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range t.watched {
		s.lookup(key)
		if s.versions[key] != version {
			return outbound.ErrWatchConflict
		}
	}
	return s.applyAll(ops)
}
