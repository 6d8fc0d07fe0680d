package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/usecase"
)

type OAuthHandler struct {
	usecase usecase.OAuthUsecase
	logger  *zap.Logger
}

func NewOAuthHandler(usecase usecase.OAuthUsecase, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// Authorize godoc
// @Summary Redirect to the Teamleader consent page
// @Description Redirects the browser to the Teamleader authorization URL.
//
//	With format=json the URL is returned instead.
//
// @Tags oauth
// @Param format query string false "json to return the URL instead of redirecting"
// @Success 302 "Redirect to Teamleader OAuth"
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/teamleader/oauth/authorize [get]
func (h *OAuthHandler) Authorize(c *fiber.Ctx) error {
	authURL := h.usecase.AuthorizationURL()

	if c.Query("format") == "json" {
		return c.JSON(entity.NewSuccessResponse(
			entity.AuthorizationURLResponse{AuthorizationURL: authURL},
			"Authorization URL generated",
		))
	}

	h.logger.Info("Redirecting to Teamleader OAuth")
	return c.Redirect(authURL, fiber.StatusFound)
}

// Callback godoc
// @Summary OAuth callback to receive authorization code
// @Description Exchanges the authorization code for tokens and stores them.
// @Tags oauth
// @Param code query string true "Authorization code from Teamleader"
// @Param state query string false "State parameter"
// @Success 200 {object} entity.APIResponse
// @Failure 400 {object} entity.APIResponse
// @Failure 502 {object} entity.APIResponse
// @Router /redirect/teamleader [get]
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	if errMsg := c.Query("error"); errMsg != "" {
		h.logger.Warn("Authorization denied", zap.String("error", errMsg))
		return c.Status(fiber.StatusBadRequest).JSON(
			entity.NewErrorResponse(entity.ErrCodeBadRequest, "Authorization denied: "+errMsg),
		)
	}

	err := h.usecase.HandleCallback(c.UserContext(), c.Query("code"))
	switch {
	case errors.Is(err, usecase.ErrMissingCode):
		return c.Status(fiber.StatusBadRequest).JSON(
			entity.NewErrorResponse(entity.ErrCodeBadRequest, "Authorization code is required"),
		)
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(
			entity.NewErrorResponse(entity.ErrCodeBadGateway, "Failed to exchange authorization code"),
		)
	}

	return c.JSON(entity.NewSuccessResponse(nil, "Teamleader authorization completed"))
}

// Status godoc
// @Summary OAuth credential status
// @Tags oauth
// @Produce json
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/teamleader/oauth/status [get]
func (h *OAuthHandler) Status(c *fiber.Ctx) error {
	status := h.usecase.Status(c.UserContext())

	message := "Not authorized"
	if status.Authorized {
		message = "Authorized"
	}

	return c.JSON(entity.NewSuccessResponse(status, message))
}

// Revoke godoc
// @Summary Delete the stored OAuth credential
// @Tags oauth
// @Produce json
// @Success 200 {object} entity.APIResponse
// @Failure 404 {object} entity.APIResponse
// @Router /api/v1/teamleader/oauth/token [delete]
func (h *OAuthHandler) Revoke(c *fiber.Ctx) error {
	if !h.usecase.Revoke(c.UserContext()) {
		return c.Status(fiber.StatusNotFound).JSON(
			entity.NewErrorResponse(entity.ErrCodeNotFound, "No stored credential"),
		)
	}

	return c.JSON(entity.NewSuccessResponse(nil, "Credential revoked"))
}
