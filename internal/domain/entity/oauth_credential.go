package entity

import "time"

// OAuthCredential is the stored OAuth2 grant of one provider
type OAuthCredential struct {
	ID                   int64      `json:"id" db:"id"`
	Provider             string     `json:"provider" db:"provider"`
	AccessToken          string     `json:"-" db:"access_token"`
	AccessTokenExpiresAt time.Time  `json:"access_token_expires_at" db:"access_token_expires_at"`
	RefreshToken         string     `json:"-" db:"refresh_token"`
	TokenType            string     `json:"token_type" db:"token_type"`
	Scope                string     `json:"scope,omitempty" db:"scope"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
	LastUsedAt           *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// IsExpired reports whether the access token is expired at now, treating tokens
// that expire within skew as already expired.
func (c *OAuthCredential) IsExpired(now time.Time, skew time.Duration) bool {
	return !now.Before(c.AccessTokenExpiresAt.Add(-skew))
}

// HasRefreshToken reports whether the credential can be refreshed without re-authorization
func (c *OAuthCredential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Clone returns a copy that can be mutated without touching the original
func (c *OAuthCredential) Clone() *OAuthCredential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}

// TokenInfoResponse is the public view of a credential, without secrets
type TokenInfoResponse struct {
	Authorized      bool       `json:"authorized"`
	Provider        string     `json:"provider,omitempty"`
	TokenType       string     `json:"token_type,omitempty"`
	Scope           string     `json:"scope,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// AuthorizationURLResponse carries the OAuth2 authorization redirect
type AuthorizationURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}
