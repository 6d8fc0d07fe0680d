package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/domain/entity"
	"crm-sync/internal/infrastructure/database"
	"crm-sync/internal/infrastructure/oauth2"
	"crm-sync/internal/usecase"
)

const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type tokenChecker interface {
	HasValidToken(ctx context.Context) bool
}

type lastSyncProvider interface {
	LastSyncStatus() *entity.SyncRunSummary
}

type HealthHandler struct {
	version string
	db      pinger
	tokens  tokenChecker
	syncs   lastSyncProvider
	logger  *zap.Logger
}

func NewHealthHandler(
	cfg *config.Config,
	db *database.Database,
	tokens oauth2.TokenManager,
	syncs usecase.CompanySyncUsecase,
	logger *zap.Logger,
) *HealthHandler {
	return newHealthHandler(cfg.App.Version, db, tokens, syncs, logger)
}

func newHealthHandler(version string, db pinger, tokens tokenChecker, syncs lastSyncProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		db:      db,
		tokens:  tokens,
		syncs:   syncs,
		logger:  logger,
	}
}

type HealthResponse struct {
	Status     string          `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	Version    string          `json:"version"`
	Database   string          `json:"database"`
	Authorized bool            `json:"teamleader_authorized"`
	LastSync   *LastSyncHealth `json:"last_sync,omitempty"`
}

// LastSyncHealth is the short form of the last run shown on /health
type LastSyncHealth struct {
	Kind        entity.SyncKind `json:"kind"`
	Status      string          `json:"status"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Health godoc
// @Summary Health check
// @Description Reports database reachability, Teamleader authorization and the last sync run.
//
//	Responds 503 when the database is unreachable.
//
// @Tags health
// @Produce json
// @Success 200 {object} entity.APIResponse
// @Failure 503 {object} entity.APIResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Version:    h.version,
		Database:   "up",
		Authorized: h.tokens.HasValidToken(ctx),
	}

	if last := h.syncs.LastSyncStatus(); last != nil {
		resp.LastSync = &LastSyncHealth{Kind: last.Kind, Status: last.Status(), CompletedAt: last.CompletedAt}
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("Health check database ping failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "down"
		return c.Status(fiber.StatusServiceUnavailable).JSON(
			entity.NewErrorResponseWithData(entity.ErrCodeUnavailable, "Database unreachable", resp),
		)
	}

	return c.JSON(entity.NewSuccessResponse(resp, "Service is healthy"))
}
