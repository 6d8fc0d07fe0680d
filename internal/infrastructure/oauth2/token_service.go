package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
	"crm-sync/internal/infrastructure/httpclient"
	"crm-sync/internal/infrastructure/metrics"
)

const defaultExpiresIn = 3600 // seconds, used when the token endpoint omits expires_in

var errMissingAccessToken = errors.New("token response has no access_token")

// TokenResponse represents the OAuth2 token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// TokenManager owns the OAuth2 credential of the CRM provider. None of its
// methods return errors: failures are logged and reported as false or empty.
type TokenManager interface {
	// AuthorizationURL builds the consent URL the user is redirected to
	AuthorizationURL() string

	// ExchangeCode exchanges an authorization code and stores the resulting credential
	ExchangeCode(ctx context.Context, code string) bool

	// AccessToken returns a valid access token, refreshing an expired one at most once
	AccessToken(ctx context.Context) (string, bool)

	HasValidToken(ctx context.Context) bool

	// TokenInfo returns a copy of the stored credential, or nil
	TokenInfo(ctx context.Context) *entity.OAuthCredential

	// Revoke deletes the stored credential and reports whether one existed
	Revoke(ctx context.Context) bool
}

type tokenManager struct {
	config config.TeamleaderConfig
	store  repository.TokenStore
	client *resty.Client
	clock  clockwork.Clock
	locks  *providerLocks
	logger *zap.Logger
}

func NewTokenManager(cfg *config.Config, store repository.TokenStore, factory *httpclient.Factory, logger *zap.Logger) TokenManager {
	client := factory.New(httpclient.Options{
		Name:        "oauth",
		Timeout:     cfg.Teamleader.Timeout,
		SaveAPILogs: true,
	})
	return newTokenManager(cfg.Teamleader, store, client, clockwork.NewRealClock(), logger)
}

func newTokenManager(cfg config.TeamleaderConfig, store repository.TokenStore, client *resty.Client, clock clockwork.Clock, logger *zap.Logger) *tokenManager {
	return &tokenManager{
		config: cfg,
		store:  store,
		client: client,
		clock:  clock,
		locks:  newProviderLocks(),
		logger: logger.With(zap.String("provider", cfg.Provider)),
	}
}

func (m *tokenManager) AuthorizationURL() string {
	params := url.Values{}
	params.Set("client_id", m.config.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", m.config.RedirectURI)
	params.Set("state", uuid.NewString())

	separator := "?"
	if strings.Contains(m.config.AuthURL, "?") {
		separator = "&"
	}
	return m.config.AuthURL + separator + params.Encode()
}

func (m *tokenManager) ExchangeCode(ctx context.Context, code string) (ok bool) {
	defer m.recoverPanic("exchange")

	if code == "" {
		m.logger.Warn("Refusing to exchange empty authorization code")
		return false
	}

	release := m.locks.get(m.config.Provider).acquire()
	defer release()

	m.logger.Info("Exchanging authorization code for tokens")

	tokenResp, err := m.requestToken(ctx, map[string]string{
		"client_id":     m.config.ClientID,
		"client_secret": m.config.ClientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  m.config.RedirectURI,
	})
	if err != nil {
		m.logger.Error("Failed to exchange authorization code", zap.Error(err))
		metrics.TokenOperationsTotal.WithLabelValues("exchange", metrics.OutcomeFailure).Inc()
		return false
	}

	credential, err := m.store.FindByProvider(ctx, m.config.Provider)
	if err != nil {
		m.logger.Error("Failed to load existing credential", zap.Error(err))
		metrics.TokenOperationsTotal.WithLabelValues("exchange", metrics.OutcomeFailure).Inc()
		return false
	}

	now := m.clock.Now()
	if credential == nil {
		credential = &entity.OAuthCredential{
			Provider:  m.config.Provider,
			CreatedAt: now,
		}
	}
	m.applyTokenResponse(credential, tokenResp, now)
	credential.RefreshToken = tokenResp.RefreshToken

	if _, err := m.store.Save(ctx, credential); err != nil {
		m.logger.Error("Failed to store exchanged credential", zap.Error(err))
		metrics.TokenOperationsTotal.WithLabelValues("exchange", metrics.OutcomeFailure).Inc()
		return false
	}

	m.logger.Info("Successfully exchanged code for tokens",
		zap.Int("expires_in", tokenResp.ExpiresIn),
		zap.Bool("has_refresh_token", tokenResp.RefreshToken != ""),
	)
	metrics.TokenOperationsTotal.WithLabelValues("exchange", metrics.OutcomeSuccess).Inc()

	return true
}

func (m *tokenManager) AccessToken(ctx context.Context) (token string, ok bool) {
	defer m.recoverPanic("access_token")

	lock := m.locks.get(m.config.Provider)
	generation := lock.generation.Load()

	credential, err := m.store.FindByProvider(ctx, m.config.Provider)
	if err != nil {
		m.logger.Error("Failed to load credential", zap.Error(err))
		return "", false
	}
	if credential == nil {
		m.logger.Debug("No credential stored, authorization required")
		return "", false
	}

	if credential.IsExpired(m.clock.Now(), m.config.ExpirySkew) {
		credential = m.refreshExpired(ctx, lock, generation)
		if credential == nil {
			return "", false
		}
	}

	if credential.AccessToken == "" {
		return "", false
	}

	if err := m.store.MarkUsed(ctx, m.config.Provider, m.clock.Now()); err != nil {
		m.logger.Warn("Failed to mark credential as used", zap.Error(err))
	}

	return credential.AccessToken, true
}

func (m *tokenManager) HasValidToken(ctx context.Context) bool {
	token, ok := m.AccessToken(ctx)
	return ok && token != ""
}

func (m *tokenManager) TokenInfo(ctx context.Context) *entity.OAuthCredential {
	defer m.recoverPanic("token_info")

	credential, err := m.store.FindByProvider(ctx, m.config.Provider)
	if err != nil {
		m.logger.Error("Failed to load credential", zap.Error(err))
		return nil
	}
	return credential.Clone()
}

func (m *tokenManager) Revoke(ctx context.Context) (revoked bool) {
	defer m.recoverPanic("revoke")

	release := m.locks.get(m.config.Provider).acquire()
	defer release()

	credential, err := m.store.FindByProvider(ctx, m.config.Provider)
	if err != nil {
		m.logger.Error("Failed to load credential", zap.Error(err))
		return false
	}
	if credential == nil {
		return false
	}

	if err := m.store.Delete(ctx, credential); err != nil {
		m.logger.Error("Failed to delete credential", zap.Error(err))
		metrics.TokenOperationsTotal.WithLabelValues("revoke", metrics.OutcomeFailure).Inc()
		return false
	}

	m.logger.Info("Credential revoked")
	metrics.TokenOperationsTotal.WithLabelValues("revoke", metrics.OutcomeSuccess).Inc()
	return true
}

// refreshExpired runs one refresh cycle under the provider lock. generation is the
// lock generation observed before the expired credential was read: if it moved
// while waiting for the lock, another caller already refreshed (or failed to) and
// the stored state is returned as is.
func (m *tokenManager) refreshExpired(ctx context.Context, lock *providerLock, generation uint64) *entity.OAuthCredential {
	release := lock.acquire()
	defer release()

	credential, err := m.store.FindByProvider(ctx, m.config.Provider)
	if err != nil {
		m.logger.Error("Failed to reload credential", zap.Error(err))
		return nil
	}
	if credential == nil {
		return nil
	}

	expired := credential.IsExpired(m.clock.Now(), m.config.ExpirySkew)
	if !expired {
		return credential
	}
	if lock.generation.Load() != generation {
		m.logger.Debug("Refresh already attempted by a concurrent caller")
		return nil
	}

	if !m.refresh(ctx, credential) {
		return nil
	}
	return credential
}

// refresh must be called with the provider lock held. It mutates credential in place.
func (m *tokenManager) refresh(ctx context.Context, credential *entity.OAuthCredential) bool {
	if !credential.HasRefreshToken() {
		m.logger.Warn("Access token expired and no refresh token stored, re-authorization required")
		metrics.TokenOperationsTotal.WithLabelValues("refresh", metrics.OutcomeSkipped).Inc()
		return false
	}

	m.logger.Info("Refreshing access token",
		zap.Time("expired_at", credential.AccessTokenExpiresAt),
	)

	tokenResp, err := m.requestToken(ctx, map[string]string{
		"client_id":     m.config.ClientID,
		"client_secret": m.config.ClientSecret,
		"grant_type":    "refresh_token",
		"refresh_token": credential.RefreshToken,
	})
	if err != nil {
		m.logger.Error("Failed to refresh access token", zap.Error(err))
		metrics.TokenOperationsTotal.WithLabelValues("refresh", metrics.OutcomeFailure).Inc()
		return false
	}

	m.applyTokenResponse(credential, tokenResp, m.clock.Now())
	if tokenResp.RefreshToken != "" {
		credential.RefreshToken = tokenResp.RefreshToken
	}

	if _, err := m.store.Save(ctx, credential); err != nil {
		m.logger.Error("Failed to store refreshed credential", zap.Error(err))
		metrics.TokenOperationsTotal.WithLabelValues("refresh", metrics.OutcomeFailure).Inc()
		return false
	}

	m.logger.Info("Successfully refreshed tokens",
		zap.Int("expires_in", tokenResp.ExpiresIn),
		zap.Bool("refresh_token_rotated", tokenResp.RefreshToken != ""),
	)
	metrics.TokenOperationsTotal.WithLabelValues("refresh", metrics.OutcomeSuccess).Inc()

	return true
}

// applyTokenResponse copies everything but the refresh token, whose handling
// differs between code exchange and refresh.
func (m *tokenManager) applyTokenResponse(credential *entity.OAuthCredential, tokenResp *TokenResponse, now time.Time) {
	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		m.logger.Warn("Token response without expires_in, assuming default",
			zap.Int("default_expires_in", defaultExpiresIn),
		)
		expiresIn = defaultExpiresIn
	}

	credential.AccessToken = tokenResp.AccessToken
	credential.AccessTokenExpiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	credential.TokenType = tokenResp.TokenType
	if tokenResp.Scope != "" {
		credential.Scope = tokenResp.Scope
	}
	credential.UpdatedAt = now
}

// requestToken posts a form encoded grant to the token endpoint. Transport errors
// and 5xx responses are retried with exponential backoff, 4xx responses are not.
func (m *tokenManager) requestToken(ctx context.Context, form map[string]string) (*TokenResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.config.Retry.BaseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	retries := uint64(0)
	if m.config.Retry.Attempts > 1 {
		retries = uint64(m.config.Retry.Attempts - 1)
	}

	var tokenResp *TokenResponse
	operation := func() error {
		resp, err := m.client.R().
			SetContext(ctx).
			SetFormData(form).
			Post(m.config.TokenURL)
		if err != nil {
			return fmt.Errorf("failed to execute token request: %w", err)
		}

		status := resp.StatusCode()
		if status >= 400 && status < 500 {
			return backoff.Permanent(fmt.Errorf("token request rejected: status=%d, body=%s", status, resp.String()))
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("token request failed: status=%d, body=%s", status, resp.String())
		}

		var parsed TokenResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unmarshal token response: %w", err))
		}
		if parsed.AccessToken == "" {
			return backoff.Permanent(errMissingAccessToken)
		}

		tokenResp = &parsed
		return nil
	}

	notify := func(err error, wait time.Duration) {
		m.logger.Warn("Token request failed, retrying",
			zap.String("grant_type", form["grant_type"]),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	if err != nil {
		return nil, err
	}

	return tokenResp, nil
}

func (m *tokenManager) recoverPanic(operation string) {
	if r := recover(); r != nil {
		m.logger.Error("Recovered panic in token manager",
			zap.String("operation", operation),
			zap.Any("panic", r),
		)
		metrics.TokenOperationsTotal.WithLabelValues(operation, metrics.OutcomeFailure).Inc()
	}
}
