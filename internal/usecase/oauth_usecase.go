package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/infrastructure/oauth2"
)

var (
	ErrMissingCode    = errors.New("code is required")
	ErrExchangeFailed = errors.New("authorization code exchange failed")
)

type OAuthUsecase interface {
	// AuthorizationURL builds the consent URL the user is redirected to
	AuthorizationURL() string

	// HandleCallback exchanges the code received on the redirect URI
	HandleCallback(ctx context.Context, code string) error

	// Status describes the stored credential without exposing tokens
	Status(ctx context.Context) *entity.TokenInfoResponse

	// Revoke deletes the stored credential, reports whether one existed
	Revoke(ctx context.Context) bool
}

type oauthUsecase struct {
	tokens oauth2.TokenManager
	logger *zap.Logger
}

func NewOAuthUsecase(tokens oauth2.TokenManager, logger *zap.Logger) OAuthUsecase {
	return &oauthUsecase{
		tokens: tokens,
		logger: logger,
	}
}

func (u *oauthUsecase) AuthorizationURL() string {
	return u.tokens.AuthorizationURL()
}

func (u *oauthUsecase) HandleCallback(ctx context.Context, code string) error {
	if code == "" {
		return ErrMissingCode
	}

	u.logger.Info("Handling OAuth callback")

	if !u.tokens.ExchangeCode(ctx, code) {
		return ErrExchangeFailed
	}

	u.logger.Info("OAuth authorization completed")
	return nil
}

func (u *oauthUsecase) Status(ctx context.Context) *entity.TokenInfoResponse {
	response := &entity.TokenInfoResponse{
		Authorized: u.tokens.HasValidToken(ctx),
	}

	credential := u.tokens.TokenInfo(ctx)
	if credential == nil {
		return response
	}

	expiresAt := credential.AccessTokenExpiresAt
	updatedAt := credential.UpdatedAt
	response.Provider = credential.Provider
	response.TokenType = credential.TokenType
	response.Scope = credential.Scope
	response.ExpiresAt = &expiresAt
	response.HasRefreshToken = credential.HasRefreshToken()
	response.LastUsedAt = credential.LastUsedAt
	response.UpdatedAt = &updatedAt

	return response
}

func (u *oauthUsecase) Revoke(ctx context.Context) bool {
	revoked := u.tokens.Revoke(ctx)
	if revoked {
		u.logger.Info("OAuth credential revoked")
	}
	return revoked
}
