package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/usecase"
)

type SyncHandler struct {
	usecase usecase.CompanySyncUsecase
	logger  *zap.Logger
}

func NewSyncHandler(usecase usecase.CompanySyncUsecase, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// SyncCompanies godoc
// @Summary Start a full company sync
// @Description Starts the sync in the background, poll /sync/status for the result.
// @Tags sync
// @Produce json
// @Success 202 {object} entity.APIResponse
// @Failure 409 {object} entity.APIResponse
// @Router /api/v1/teamleader/sync/companies [post]
func (h *SyncHandler) SyncCompanies(c *fiber.Ctx) error {
	_, err := h.usecase.StartSyncAllCompanies()
	return h.started(c, entity.SyncKindCompanies, err)
}

// SyncCustomFields godoc
// @Summary Start a custom field refresh of all stored companies
// @Tags sync
// @Produce json
// @Success 202 {object} entity.APIResponse
// @Failure 409 {object} entity.APIResponse
// @Router /api/v1/teamleader/sync/custom-fields [post]
func (h *SyncHandler) SyncCustomFields(c *fiber.Ctx) error {
	_, err := h.usecase.StartRefreshCustomFields()
	return h.started(c, entity.SyncKindCustomFields, err)
}

// Status godoc
// @Summary Summary of the last sync run
// @Tags sync
// @Produce json
// @Success 200 {object} entity.APIResponse
// @Failure 404 {object} entity.APIResponse
// @Router /api/v1/teamleader/sync/status [get]
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	summary := h.usecase.LastSyncStatus()
	if summary == nil {
		return c.Status(fiber.StatusNotFound).JSON(
			entity.NewErrorResponse(entity.ErrCodeNotFound, "No sync has run since startup"),
		)
	}

	return c.JSON(entity.NewSuccessResponse(summary, "Last sync "+summary.Status()))
}

func (h *SyncHandler) started(c *fiber.Ctx, kind entity.SyncKind, err error) error {
	if errors.Is(err, usecase.ErrSyncInProgress) {
		return c.Status(fiber.StatusConflict).JSON(
			entity.NewErrorResponseWithData(entity.ErrCodeConflict, "A sync is already running",
				entity.SyncStartedResponse{Kind: kind, Started: false}),
		)
	}
	if err != nil {
		h.logger.Error("Failed to start sync", zap.String("kind", string(kind)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(
			entity.NewErrorResponse(entity.ErrCodeInternal, err.Error()),
		)
	}

	return c.Status(fiber.StatusAccepted).JSON(
		entity.NewSuccessResponse(entity.SyncStartedResponse{Kind: kind, Started: true}, "Sync started"),
	)
}
