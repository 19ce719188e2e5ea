package payment

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository keeps purchases in process memory. Idempotency then
// only holds for the lifetime of the process.
type MemoryRepository struct {
	mu        sync.Mutex
	purchases map[string]*Purchase
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{purchases: make(map[string]*Purchase)}
}

func (r *MemoryRepository) Create(_ context.Context, p *Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[p.EventID]; ok {
		return ErrDuplicateEvent
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	c := *p
	r.purchases[p.EventID] = &c
	return nil
}

func (r *MemoryRepository) GetByEventID(_ context.Context, eventID string) (*Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[eventID]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	c := *p
	return &c, nil
}

func (r *MemoryRepository) Update(_ context.Context, p *Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[p.EventID]; !ok {
		return ErrPurchaseNotFound
	}
	p.UpdatedAt = time.Now()
	c := *p
	r.purchases[p.EventID] = &c
	return nil
}

func (r *MemoryRepository) Transition(_ context.Context, eventID string, from, to PurchaseStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[eventID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID int64, limit int) ([]*Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Purchase
	for _, p := range r.purchases {
		if p.UserID == userID {
			c := *p
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *Purchase) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
