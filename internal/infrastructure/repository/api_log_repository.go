package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
	"crm-sync/internal/infrastructure/database"
)

const maxRecentLogs = 500

type apiLogRepository struct {
	db     *database.Database
	logger *zap.Logger
}

// NewAPILogRepository creates a new API log repository
func NewAPILogRepository(db *database.Database, logger *zap.Logger) repository.APILogRepository {
	return &apiLogRepository{
		db:     db,
		logger: logger,
	}
}

// Save saves an API log entry to the database
func (r *apiLogRepository) Save(ctx context.Context, log *entity.APILog) error {
	query := `
		INSERT INTO api_logs (endpoint, method, request_body, response_body, status_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		log.Endpoint,
		log.Method,
		log.RequestBody,
		log.ResponseBody,
		log.StatusCode,
		log.Duration,
		log.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to save API log",
			zap.String("endpoint", log.Endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save API log: %w", err)
	}

	return nil
}

func (r *apiLogRepository) FindRecent(ctx context.Context, limit int) ([]*entity.APILog, error) {
	if limit <= 0 || limit > maxRecentLogs {
		limit = maxRecentLogs
	}

	query := `
		SELECT id, endpoint, method, request_body, response_body, status_code, duration_ms, created_at
		FROM api_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	logs := []*entity.APILog{}
	if err := r.db.DB.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to find recent API logs: %w", err)
	}

	return logs, nil
}
