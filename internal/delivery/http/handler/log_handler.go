package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
)

const defaultLogLimit = 50

type LogHandler struct {
	logRepo repository.APILogRepository
	logger  *zap.Logger
}

func NewLogHandler(logRepo repository.APILogRepository, logger *zap.Logger) *LogHandler {
	return &LogHandler{
		logRepo: logRepo,
		logger:  logger,
	}
}

// GetLogs godoc
// @Summary List recent outbound API calls
// @Tags logs
// @Produce json
// @Param limit query int false "Maximum number of logs (default 50)"
// @Success 200 {object} entity.APIResponse
// @Failure 500 {object} entity.APIResponse
// @Router /api/v1/logs [get]
func (h *LogHandler) GetLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit <= 0 {
		limit = defaultLogLimit
	}

	logs, err := h.logRepo.FindRecent(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Failed to get API logs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(
			entity.NewErrorResponse(entity.ErrCodeInternal, "Failed to get logs"),
		)
	}

	return c.JSON(entity.NewSuccessResponse(logs, "Logs retrieved successfully"))
}
