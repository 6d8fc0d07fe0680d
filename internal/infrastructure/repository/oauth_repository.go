package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
	"crm-sync/internal/infrastructure/database"
)

type oauthRepository struct {
	db *database.Database
}

func NewOAuthRepository(db *database.Database) repository.TokenStore {
	return &oauthRepository{
		db: db,
	}
}

func (r *oauthRepository) FindByProvider(ctx context.Context, provider string) (*entity.OAuthCredential, error) {
	query := `
		SELECT id, provider, access_token, access_token_expires_at, refresh_token, token_type, scope,
			created_at, updated_at, last_used_at
		FROM oauth_credentials
		WHERE provider = $1
	`

	var credential entity.OAuthCredential
	err := r.db.DB.GetContext(ctx, &credential, query, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found, return nil without error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find oauth credential by provider: %w", err)
	}

	return &credential, nil
}

func (r *oauthRepository) Save(ctx context.Context, credential *entity.OAuthCredential) (*entity.OAuthCredential, error) {
	now := time.Now()
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}
	if credential.UpdatedAt.IsZero() {
		credential.UpdatedAt = now
	}

	// Upsert: one row per provider (PostgreSQL syntax)
	query := `
		INSERT INTO oauth_credentials (provider, access_token, access_token_expires_at, refresh_token,
			token_type, scope, created_at, updated_at, last_used_at)
		VALUES (:provider, :access_token, :access_token_expires_at, :refresh_token,
			:token_type, :scope, :created_at, :updated_at, :last_used_at)
		ON CONFLICT(provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			access_token_expires_at = EXCLUDED.access_token_expires_at,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	rows, err := r.db.DB.NamedQueryContext(ctx, query, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to save oauth credential: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&credential.ID, &credential.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved oauth credential: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to save oauth credential: %w", err)
	}

	return credential, nil
}

func (r *oauthRepository) Delete(ctx context.Context, credential *entity.OAuthCredential) error {
	_, err := r.db.DB.ExecContext(ctx, `DELETE FROM oauth_credentials WHERE provider = $1`, credential.Provider)
	if err != nil {
		return fmt.Errorf("failed to delete oauth credential: %w", err)
	}

	return nil
}

func (r *oauthRepository) MarkUsed(ctx context.Context, provider string, usedAt time.Time) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE oauth_credentials SET last_used_at = $1 WHERE provider = $2`,
		usedAt, provider,
	)
	if err != nil {
		return fmt.Errorf("failed to mark oauth credential as used: %w", err)
	}

	return nil
}
