package usecase

import "go.uber.org/fx"

var Module = fx.Module("usecase",
	fx.Provide(NewOAuthUsecase),
	fx.Provide(NewSyncGuard),
	fx.Provide(NewCompanySyncUsecase),
)
