package repository

import (
	"go.uber.org/fx"

	"crm-sync/internal/domain/repository"
	"crm-sync/internal/infrastructure/httpclient"
)

var Module = fx.Module("repository",
	fx.Provide(NewOAuthRepository),
	fx.Provide(NewCompanyRepository),
	fx.Provide(NewSyncStatusStore),
	fx.Provide(NewAPILogRepository),
	fx.Provide(func(logs repository.APILogRepository) httpclient.APILogSaver { return logs }),
)
