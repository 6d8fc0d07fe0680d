package repository

import (
	"context"

	"crm-sync/internal/domain/entity"
)

// CompanyRepository persists mirrored companies keyed by their external id
type CompanyRepository interface {
	// FindByExternalID returns nil without error when no company has that external id
	FindByExternalID(ctx context.Context, externalID string) (*entity.Company, error)

	// Save upserts by external id. A company without ID gets one assigned.
	Save(ctx context.Context, company *entity.Company) (*entity.Company, error)

	FindAll(ctx context.Context) ([]*entity.Company, error)
}
