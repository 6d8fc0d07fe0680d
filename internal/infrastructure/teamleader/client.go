package teamleader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"crm-sync/internal/config"
	"crm-sync/internal/infrastructure/httpclient"
	"crm-sync/internal/infrastructure/oauth2"
)

var Module = fx.Module("teamleader",
	fx.Provide(
		func(m oauth2.TokenManager) TokenProvider { return m },
		NewClient,
	),
)

// Error codes produced locally, remote errors carry their own title
const (
	CodeNotAuthorized = "not_authorized"
	CodeTransport     = "transport_error"
	CodeMalformed     = "malformed_response"
	CodeRemote        = "remote_error"
)

// TokenProvider supplies the bearer token for API calls
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, bool)
}

// RemoteError is the uniform error shape of every failed call
type RemoteError struct {
	Status  int             `json:"status,omitempty"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response is either a parsed body or an error, never both
type Response struct {
	Body  gjson.Result
	Error *RemoteError
}

func (r *Response) Failed() bool {
	return r == nil || r.Error != nil
}

// Client talks to the Teamleader Focus API. Calls never return Go errors,
// all failures come back as Response.Error.
type Client interface {
	ListCompanies(ctx context.Context, page, size int) *Response
	GetCompany(ctx context.Context, id string) *Response
	TestConnection(ctx context.Context) *Response
}

type client struct {
	http   *resty.Client
	tokens TokenProvider
	logger *zap.Logger
}

func NewClient(cfg *config.Config, factory *httpclient.Factory, tokens TokenProvider, logger *zap.Logger) Client {
	httpClient := factory.New(httpclient.Options{
		Name:        "teamleader",
		BaseURL:     cfg.Teamleader.BaseURL,
		Timeout:     cfg.Teamleader.Timeout,
		SaveAPILogs: true,
	})
	return newClient(httpClient, tokens, logger)
}

func newClient(httpClient *resty.Client, tokens TokenProvider, logger *zap.Logger) *client {
	return &client{
		http:   httpClient,
		tokens: tokens,
		logger: logger,
	}
}

type pageRequest struct {
	Page struct {
		Size   int `json:"size"`
		Number int `json:"number"`
	} `json:"page"`
}

func (c *client) ListCompanies(ctx context.Context, page, size int) *Response {
	var body pageRequest
	body.Page.Size = size
	body.Page.Number = page
	return c.post(ctx, "/companies.list", body)
}

func (c *client) GetCompany(ctx context.Context, id string) *Response {
	return c.post(ctx, "/companies.info", map[string]string{"id": id})
}

func (c *client) TestConnection(ctx context.Context) *Response {
	return c.post(ctx, "/users.me", struct{}{})
}

func (c *client) post(ctx context.Context, endpoint string, body any) (result *Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered panic in teamleader client",
				zap.String("endpoint", endpoint),
				zap.Any("panic", r),
			)
			result = failure(0, CodeTransport, fmt.Sprintf("unexpected failure: %v", r), nil)
		}
	}()

	token, ok := c.tokens.AccessToken(ctx)
	if !ok {
		c.logger.Warn("No valid access token, skipping request", zap.String("endpoint", endpoint))
		return failure(0, CodeNotAuthorized, "not authorized", nil)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		c.logger.Error("Teamleader request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return failure(0, CodeTransport, err.Error(), nil)
	}

	raw := resp.Body()
	status := resp.StatusCode()

	if status >= http.StatusBadRequest {
		return c.remoteFailure(endpoint, status, raw)
	}

	if !gjson.ValidBytes(raw) {
		c.logger.Error("Teamleader returned malformed body",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", status),
		)
		return failure(status, CodeMalformed, "response body is not valid JSON", nil)
	}

	return &Response{Body: gjson.ParseBytes(raw)}
}

// remoteFailure passes a remote error body through when it can be parsed
func (c *client) remoteFailure(endpoint string, status int, raw []byte) *Response {
	message := http.StatusText(status)
	var details json.RawMessage

	if gjson.ValidBytes(raw) {
		details = json.RawMessage(raw)
		parsed := gjson.ParseBytes(raw)
		if title := parsed.Get("errors.0.title"); title.Exists() && title.String() != "" {
			message = title.String()
		} else if msg := parsed.Get("message"); msg.Exists() && msg.String() != "" {
			message = msg.String()
		}
	}

	c.logger.Warn("Teamleader returned error",
		zap.String("endpoint", endpoint),
		zap.Int("status_code", status),
		zap.String("message", message),
	)

	return failure(status, CodeRemote, message, details)
}

func failure(status int, code, message string, details json.RawMessage) *Response {
	return &Response{Error: &RemoteError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}}
}
