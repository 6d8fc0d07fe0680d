package repository

import (
	"context"

	"crm-sync/internal/domain/entity"
)

type APILogRepository interface {
	Save(ctx context.Context, log *entity.APILog) error
	// FindRecent returns the newest logs first
	FindRecent(ctx context.Context, limit int) ([]*entity.APILog, error)
}
