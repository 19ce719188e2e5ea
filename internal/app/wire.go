//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/stylebot/server/internal/infra/config"
)

// InitializeApp creates the application using Wire.
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		InfraSet,
		BillingSet,
		PaymentSet,
		GenerationSet,
		HTTPSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
