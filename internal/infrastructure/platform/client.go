package platform

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/infrastructure/httpclient"
	"crm-sync/internal/usecase"
)

const recalculateRolesPath = "/api/v1/users/roles/recalculate"

var Module = fx.Module("platform",
	fx.Provide(NewClient),
)

// Client is the business platform API client used after company syncs
type Client struct {
	config *config.PlatformConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a new platform client, requests are HMAC signed
func NewClient(cfg *config.Config, factory *httpclient.Factory, logger *zap.Logger) usecase.RoleRecalculator {
	timeout := time.Duration(cfg.Platform.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := factory.New(httpclient.Options{
		Name:    "platform",
		BaseURL: cfg.Platform.BaseURL,
		Timeout: timeout,
	})

	signer := httpclient.NewHMACSignature(cfg.Platform.ClientID, cfg.Platform.ClientSecret)
	httpClient.SetPreRequestHook(func(_ *resty.Client, req *http.Request) error {
		return signer.SignRequest(req)
	})

	return newClient(&cfg.Platform, httpClient, logger)
}

func newClient(cfg *config.PlatformConfig, httpClient *resty.Client, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		http:   httpClient,
		logger: logger,
	}
}

// Recalculate asks the platform to recompute user roles from the synced companies
func (c *Client) Recalculate(ctx context.Context) error {
	if !c.config.Enabled {
		c.logger.Debug("Platform integration disabled, skipping role recalculation")
		return nil
	}

	c.logger.Info("Requesting user role recalculation",
		zap.String("base_url", c.config.BaseURL),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"source": "crm-sync"}).
		Post(recalculateRolesPath)
	if err != nil {
		return fmt.Errorf("failed to send role recalculation request: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("role recalculation failed: status=%d, body=%s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("Successfully requested user role recalculation",
		zap.Int("status_code", resp.StatusCode()),
	)

	return nil
}
