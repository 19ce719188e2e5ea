package task

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps tasks in process memory. It is used when no
// database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[uuid.UUID]*Task)}
}

func (r *MemoryRepository) Create(_ context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task.clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, filter *Filter) ([]*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Task
	for _, t := range r.tasks {
		if filter != nil {
			if filter.UserID != nil && t.UserID != *filter.UserID {
				continue
			}
			if filter.Kind != nil && t.Kind != *filter.Kind {
				continue
			}
			if filter.Status != nil && t.Status != *filter.Status {
				continue
			}
		}
		out = append(out, t.clone())
	}

	slices.SortFunc(out, func(a, b *Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter != nil {
		if filter.Offset > 0 {
			out = out[min(filter.Offset, len(out)):]
		}
		if filter.Limit > 0 && len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return ErrTaskNotFound
	}
	r.tasks[task.ID] = task.clone()
	return nil
}

func (r *MemoryRepository) ListUnfinished(ctx context.Context) ([]*Task, error) {
	all, err := r.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*Task, 0, len(all))
	for _, t := range all {
		if !t.IsTerminal() {
			out = append(out, t)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (r *MemoryRepository) CountByUserAndStatus(_ context.Context, userID int64, status Status) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.tasks {
		if t.UserID == userID && t.Status == status {
			n++
		}
	}
	return n, nil
}
