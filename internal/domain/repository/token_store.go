package repository

import (
	"context"
	"time"

	"crm-sync/internal/domain/entity"
)

// TokenStore persists OAuth2 credentials, at most one per provider
type TokenStore interface {
	// FindByProvider returns nil without error when the provider has no credential
	FindByProvider(ctx context.Context, provider string) (*entity.OAuthCredential, error)

	// Save inserts or overwrites the provider's credential
	Save(ctx context.Context, credential *entity.OAuthCredential) (*entity.OAuthCredential, error)

	// Delete removes the provider's credential
	Delete(ctx context.Context, credential *entity.OAuthCredential) error

	// MarkUsed only touches last_used_at, so it never overwrites a concurrent refresh
	MarkUsed(ctx context.Context, provider string, usedAt time.Time) error
}
