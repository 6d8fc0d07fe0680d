package http

import (
	"go.uber.org/fx"

	"crm-sync/internal/delivery/http/handler"
	"crm-sync/internal/delivery/http/router"
)

var Module = fx.Module("http",
	fx.Provide(
		handler.NewHealthHandler,
		handler.NewOAuthHandler,
		handler.NewSyncHandler,
		handler.NewLogHandler,
		router.NewRouter,
	),
)
