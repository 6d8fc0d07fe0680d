package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/infrastructure/metrics"
)

const (
	maxBodyLogLength   = 500   // Maximum characters to log for body
	maxBodyStoreLength = 10000 // Maximum characters stored in api_logs
)

// secretFormFields are never written to logs
var secretFormFields = []string{"client_secret", "code", "refresh_token"}

// secretResponseFields are top-level JSON keys masked in logged and stored response bodies
var secretResponseFields = []string{"access_token", "refresh_token", "id_token"}

var base64Pattern = regexp.MustCompile(`"([A-Za-z0-9+/=]{100,})"`)

// APILogSaver interface for saving API logs
type APILogSaver interface {
	Save(ctx context.Context, log *entity.APILog) error
}

// Options describe one outbound client
type Options struct {
	// Name labels log lines and metrics, e.g. "teamleader" or "oauth"
	Name    string
	BaseURL string
	Timeout time.Duration
	// SaveAPILogs persists every request/response pair to api_logs
	SaveAPILogs bool
}

// Factory builds resty clients that share logging, metrics and API log persistence
type Factory struct {
	apiLogSaver APILogSaver
	logger      *zap.Logger
}

func NewFactory(apiLogSaver APILogSaver, logger *zap.Logger) *Factory {
	return &Factory{
		apiLogSaver: apiLogSaver,
		logger:      logger,
	}
}

func (f *Factory) New(opts Options) *resty.Client {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	if opts.BaseURL != "" {
		client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	}

	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		f.observeResponse(opts, resp)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		f.observeError(opts, req, err)
	})

	f.logger.Info("HTTP client initialized",
		zap.String("client", opts.Name),
		zap.String("base_url", opts.BaseURL),
		zap.Duration("timeout", opts.Timeout),
	)

	return client
}

func (f *Factory) observeResponse(opts Options, resp *resty.Response) {
	req := resp.Request
	endpoint := requestURL(req)
	reqBody := requestBodyForLog(req)
	respBody := responseBodyForLog(resp.Body())
	duration := resp.Time()

	f.logRequest(opts.Name, req.Method, endpoint, reqBody)
	f.logResponse(opts.Name, resp.StatusCode(), resp.Status(), duration, resp.Header(), respBody)

	metrics.HTTPRequestsTotal.WithLabelValues(opts.Name, req.Method, strconv.Itoa(resp.StatusCode())).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(opts.Name, req.Method).Observe(duration.Seconds())

	if opts.SaveAPILogs {
		f.saveAPILog(req.Method, endpoint, reqBody, respBody, resp.StatusCode(), duration)
	}
}

func (f *Factory) observeError(opts Options, req *resty.Request, err error) {
	endpoint := requestURL(req)

	f.logger.Warn(">>> [WEBCLIENT-ERROR]",
		zap.String("client", opts.Name),
		zap.String("method", req.Method),
		zap.String("url", endpoint),
		zap.Error(err),
	)

	metrics.HTTPRequestsTotal.WithLabelValues(opts.Name, req.Method, "error").Inc()
}

func requestURL(req *resty.Request) string {
	if req.RawRequest != nil && req.RawRequest.URL != nil {
		return req.RawRequest.URL.String()
	}
	return req.URL
}

// requestBodyForLog renders the request body with secrets redacted
func requestBodyForLog(req *resty.Request) string {
	if len(req.FormData) > 0 {
		form := url.Values{}
		for key, values := range req.FormData {
			form[key] = values
		}
		for _, field := range secretFormFields {
			if form.Has(field) {
				form.Set(field, "[redacted]")
			}
		}
		return form.Encode()
	}

	switch body := req.Body.(type) {
	case nil:
		return ""
	case []byte:
		return string(body)
	case string:
		return body
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Sprintf("%v", body)
		}
		return string(b)
	}
}

// responseBodyForLog returns body with token values redacted, non-JSON bodies are returned as is
func responseBodyForLog(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}

	redacted := body
	for _, field := range secretResponseFields {
		if !gjson.GetBytes(redacted, field).Exists() {
			continue
		}
		out, err := sjson.SetBytes(redacted, field, "[redacted]")
		if err != nil {
			return []byte("[redacted]")
		}
		redacted = out
	}
	return redacted
}

// truncateString truncates a string if it exceeds maxLength
func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + fmt.Sprintf("... [truncated, total %d chars]", len(s))
}

// truncateBase64InJSON truncates base64-like values in JSON string
func truncateBase64InJSON(jsonStr string, maxLength int) string {
	return base64Pattern.ReplaceAllStringFunc(jsonStr, func(match string) string {
		content := match[1 : len(match)-1]
		if len(content) > maxLength {
			return fmt.Sprintf(`"%s... [base64 truncated, total %d chars]"`, content[:maxLength], len(content))
		}
		return match
	})
}

// formatHeadersForLog formats HTTP headers for logging, Authorization is masked
func formatHeadersForLog(headers http.Header) string {
	var sb strings.Builder
	for key, values := range headers {
		for _, value := range values {
			if strings.EqualFold(key, "Authorization") {
				value = "[redacted]"
			}
			if len(value) > 100 {
				value = value[:100] + "..."
			}
			sb.WriteString(fmt.Sprintf("Header %s=%s\n", key, value))
		}
	}
	return sb.String()
}

func (f *Factory) logRequest(name, method, url, body string) {
	var logBuilder strings.Builder

	logBuilder.WriteString("\n>>> [WEBCLIENT-REQ]\n")
	logBuilder.WriteString(fmt.Sprintf("Client: %s\n", name))
	logBuilder.WriteString(fmt.Sprintf("Method: %s\n", method))
	logBuilder.WriteString(fmt.Sprintf("URL: %s\n", url))

	if body != "" {
		bodyStr := truncateBase64InJSON(body, 100)
		bodyStr = truncateString(bodyStr, maxBodyLogLength)
		logBuilder.WriteString(fmt.Sprintf("REQUEST BODY: %s\n", bodyStr))
	}

	f.logger.Debug(logBuilder.String())
}

func (f *Factory) logResponse(name string, statusCode int, statusText string, duration time.Duration, headers http.Header, body []byte) {
	var logBuilder strings.Builder

	logBuilder.WriteString("\n>>> [WEBCLIENT-RESPONSE]\n")
	logBuilder.WriteString(fmt.Sprintf("Client: %s\n", name))
	logBuilder.WriteString(fmt.Sprintf("Status: %d %s\n", statusCode, statusText))
	logBuilder.WriteString(fmt.Sprintf("Duration: %s\n", duration))
	logBuilder.WriteString(formatHeadersForLog(headers))

	bodyStr := truncateString(string(body), maxBodyLogLength)
	logBuilder.WriteString(fmt.Sprintf("Body: %s\n", bodyStr))

	f.logger.Debug(logBuilder.String())
}

// saveAPILog saves the API request/response log to database
func (f *Factory) saveAPILog(method, endpoint, requestBody string, responseBody []byte, statusCode int, duration time.Duration) {
	if f.apiLogSaver == nil {
		return
	}

	reqBodyStr := truncateBase64InJSON(requestBody, 100)
	if len(reqBodyStr) > maxBodyStoreLength {
		reqBodyStr = reqBodyStr[:maxBodyStoreLength] + "... [truncated]"
	}

	respBodyStr := string(responseBody)
	if len(respBodyStr) > maxBodyStoreLength {
		respBodyStr = respBodyStr[:maxBodyStoreLength] + "... [truncated]"
	}

	apiLog := &entity.APILog{
		Endpoint:     endpoint,
		Method:       method,
		RequestBody:  reqBodyStr,
		ResponseBody: respBodyStr,
		StatusCode:   statusCode,
		Duration:     duration.Milliseconds(),
		CreatedAt:    time.Now(),
	}

	// Save asynchronously to not block the request
	go func() {
		if err := f.apiLogSaver.Save(context.Background(), apiLog); err != nil {
			f.logger.Warn("Failed to save API log to database",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
		}
	}()
}
