package payment

import (
	"github.com/stylebot/server/internal/adapter/outbound/memory"
	"github.com/stylebot/server/internal/domain/billing"
	"go.uber.org/zap"
)

type billingEnv struct {
	ledger    *billing.Ledger
	purchases *billing.Purchases
}

func newBillingEnv() *billingEnv {
	store := memory.NewCounterStore()
	catalog := billing.DefaultCatalog()
	ledger := billing.NewLedger(store, catalog, nil, zap.NewNop())
	passes := billing.NewPassManager(store, catalog, zap.NewNop())
	return &billingEnv{
		ledger:    ledger,
		purchases: billing.NewPurchases(ledger, passes, catalog, zap.NewNop()),
	}
}
