// Package app assembles the billing core, its stores and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/config"
	"github.com/stylebot/server/internal/infra/task"
	"github.com/stylebot/server/internal/module/generation"
	"github.com/stylebot/server/internal/module/payment"
)

const shutdownTimeout = 30 * time.Second

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Router    *gin.Engine
	Ledger    *billing.Ledger
	Passes    *billing.PassManager
	Purchases *billing.Purchases
	Status    *billing.StatusReader
	Payments  *payment.Service
	Tasks     *task.Manager
	Flow      *generation.Flow
}

// New builds the application from configuration. The returned cleanup
// closes every connection opened on the way.
func New(cfg *config.Config) (*App, func(), error) {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return InitializeApp(cfg)
}

// Serve runs the HTTP server and the task manager until ctx is cancelled,
// then drains both.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.Config.Server.Address,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}

	if err := a.Tasks.Start(ctx); err != nil {
		return fmt.Errorf("start task manager: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		if httpErr != nil {
			a.Logger.Warn("http server forced to shut down", zap.Error(httpErr))
		}
		taskErr := a.Tasks.Stop(shutdownCtx)
		if taskErr != nil {
			a.Logger.Warn("task manager stopped with work in flight", zap.Error(taskErr))
		}
		return errors.Join(httpErr, taskErr)
	})

	return g.Wait()
}
