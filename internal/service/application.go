package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	deliveryhttp "crm-sync/internal/delivery/http"
	"crm-sync/internal/domain/entity"
	"crm-sync/internal/infrastructure/database"
	"crm-sync/internal/infrastructure/httpclient"
	"crm-sync/internal/infrastructure/kafka"
	"crm-sync/internal/infrastructure/logger"
	"crm-sync/internal/infrastructure/oauth2"
	"crm-sync/internal/infrastructure/platform"
	"crm-sync/internal/infrastructure/redis"
	"crm-sync/internal/infrastructure/repository"
	"crm-sync/internal/infrastructure/teamleader"
	"crm-sync/internal/server"
	"crm-sync/internal/usecase"
)

var ErrUnknownSyncKind = errors.New("unknown sync kind")

// Application builds the fx graph for the HTTP service and for one-shot sync runs
type Application struct {
	options []fx.Option
}

// NewApplication creates a new Application, extra options are appended to the graph
func NewApplication(options ...fx.Option) *Application {
	return &Application{options: options}
}

func coreModules() fx.Option {
	return fx.Options(
		// Configuration
		config.Module,

		// Infrastructure
		logger.Module,
		database.Module,
		redis.Module,
		repository.Module,
		httpclient.Module,
		oauth2.Module,
		teamleader.Module,
		platform.Module,
		kafka.Module,

		// Business Logic
		usecase.Module,
	)
}

// withZapLogger routes fx lifecycle events through the application logger
func withZapLogger() fx.Option {
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	})
}

func (a *Application) serveOptions() []fx.Option {
	options := []fx.Option{
		coreModules(),

		// Delivery
		deliveryhttp.Module,

		// Server
		server.Module,
	}
	return append(options, a.options...)
}

func (a *Application) syncOptions(uc *usecase.CompanySyncUsecase) []fx.Option {
	options := []fx.Option{coreModules(), fx.Populate(uc)}
	return append(options, a.options...)
}

// Serve runs the HTTP service until ctx is done
func (a *Application) Serve(ctx context.Context) error {
	app := fx.New(append(a.serveOptions(), withZapLogger())...)

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return nil
}

// RunSync starts the graph without the HTTP server, runs one sync of the given kind and stops
func (a *Application) RunSync(ctx context.Context, kind entity.SyncKind) (*entity.SyncRunSummary, error) {
	if kind != entity.SyncKindCompanies && kind != entity.SyncKindCustomFields {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSyncKind, kind)
	}

	var uc usecase.CompanySyncUsecase
	app := fx.New(append(a.syncOptions(&uc), withZapLogger())...)

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("failed to start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	if kind == entity.SyncKindCustomFields {
		return uc.RefreshCustomFields(ctx), nil
	}
	return uc.SyncAllCompanies(ctx), nil
}
