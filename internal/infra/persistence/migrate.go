// Package persistence owns the relational schema for purchase and
// generation history.
package persistence

import (
	"fmt"

	"github.com/stylebot/server/internal/infra/task"
	"github.com/stylebot/server/internal/module/payment"
	"gorm.io/gorm"
)

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&payment.Purchase{},
		&task.Task{},
	}
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
