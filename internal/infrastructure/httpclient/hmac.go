package httpclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

type HMACSignature struct {
	ClientID     string
	ClientSecret string
	now          func() time.Time
}

func NewHMACSignature(clientID, clientSecret string) *HMACSignature {
	return &HMACSignature{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		now:          time.Now,
	}
}

// GenerateSignature generates an HMAC-SHA256 signature over
// "date: {date}\n{method} {path} HTTP/1.1".
func (h *HMACSignature) GenerateSignature(method, requestPath string, date time.Time) (authHeader string, dateHeader string) {
	requestLine := fmt.Sprintf("%s %s HTTP/1.1", method, requestPath)
	dateHeader = date.UTC().Format(http.TimeFormat)
	payload := fmt.Sprintf("date: %s\n%s", dateHeader, requestLine)

	mac := hmac.New(sha256.New, []byte(h.ClientSecret))
	mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authHeader = fmt.Sprintf(`hmac username="%s", algorithm="hmac-sha256", headers="date request-line", signature="%s"`,
		h.ClientID, signature)

	return authHeader, dateHeader
}

// SignRequest signs an HTTP request with HMAC-SHA256 signature
func (h *HMACSignature) SignRequest(req *http.Request) error {
	if req.URL == nil {
		return fmt.Errorf("cannot sign request without URL")
	}

	requestPath := req.URL.EscapedPath()
	if req.URL.RawQuery != "" {
		requestPath = requestPath + "?" + req.URL.RawQuery
	}

	authHeader, dateHeader := h.GenerateSignature(req.Method, requestPath, h.now())

	req.Header.Set("Date", dateHeader)
	req.Header.Set("Authorization", authHeader)

	return nil
}
