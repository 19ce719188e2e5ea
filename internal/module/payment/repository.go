package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository stores purchases.
type Repository interface {
	// Create inserts p or returns ErrDuplicateEvent if its event id exists.
	Create(ctx context.Context, p *Purchase) error
	GetByEventID(ctx context.Context, eventID string) (*Purchase, error)
	Update(ctx context.Context, p *Purchase) error
	// Transition moves an event from one status to another and reports
	// whether this call made the change.
	Transition(ctx context.Context, eventID string, from, to PurchaseStatus) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Purchase, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed purchase repository. The gorm
// connection must have TranslateError enabled.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Purchase) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (r *repository) GetByEventID(ctx context.Context, eventID string) (*Purchase, error) {
	var p Purchase
	err := r.db.WithContext(ctx).First(&p, "event_id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return &p, nil
}

func (r *repository) Update(ctx context.Context, p *Purchase) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	return nil
}

func (r *repository) Transition(ctx context.Context, eventID string, from, to PurchaseStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Purchase{}).
		Where("event_id = ? AND status = ?", eventID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	if result.Error != nil {
		return false, fmt.Errorf("transition purchase: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int64, limit int) ([]*Purchase, error) {
	var out []*Purchase
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return out, nil
}
