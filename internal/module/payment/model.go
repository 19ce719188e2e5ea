// Package payment turns confirmed payments into quota, exactly once per
// payment event.
package payment

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseStatus is the processing state of a payment event.
type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusApplied  PurchaseStatus = "applied"
	PurchaseStatusFailed   PurchaseStatus = "failed"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

// Provider names.
const (
	ProviderStripe   = "stripe"
	ProviderTelegram = "telegram"
)

// Purchase records one payment event and what it bought.
type Purchase struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EventID   string         `json:"event_id" gorm:"uniqueIndex;not null"`
	Provider  string         `json:"provider" gorm:"not null;index"`
	UserID    int64          `json:"user_id" gorm:"index"`
	Kind      string         `json:"kind"`
	ItemID    string         `json:"item_id"`
	Payload   string         `json:"payload"`
	Status    PurchaseStatus `json:"status" gorm:"not null;index"`
	Error     string         `json:"error,omitempty"`
	AppliedAt *time.Time     `json:"applied_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the database table name.
func (Purchase) TableName() string {
	return "purchases"
}

// IsFinal reports whether the event needs no further processing.
func (p *Purchase) IsFinal() bool {
	return p.Status == PurchaseStatusApplied || p.Status == PurchaseStatusRejected
}
