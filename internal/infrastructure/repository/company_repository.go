package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/domain/repository"
	"crm-sync/internal/infrastructure/database"
)

const companyColumns = `id, external_id, name, website, vat_number, business_type, address,
	contact_infos, custom_fields, created_at, updated_at, last_synced_at`

// companyRow mirrors the companies table, JSONB columns stay raw
type companyRow struct {
	ID           string         `db:"id"`
	ExternalID   string         `db:"external_id"`
	Name         string         `db:"name"`
	Website      sql.NullString `db:"website"`
	VATNumber    sql.NullString `db:"vat_number"`
	BusinessType sql.NullString `db:"business_type"`
	Address      sql.NullString `db:"address"`
	ContactInfos string         `db:"contact_infos"`
	CustomFields string         `db:"custom_fields"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastSyncedAt sql.NullTime   `db:"last_synced_at"`
}

type companyRepository struct {
	db *database.Database
}

func NewCompanyRepository(db *database.Database) repository.CompanyRepository {
	return &companyRepository{
		db: db,
	}
}

func (r *companyRepository) FindByExternalID(ctx context.Context, externalID string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE external_id = $1`

	var row companyRow
	err := r.db.DB.GetContext(ctx, &row, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found, return nil without error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company by external id: %w", err)
	}

	return row.toEntity()
}

func (r *companyRepository) FindAll(ctx context.Context) ([]*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY name, external_id`

	var rows []companyRow
	if err := r.db.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to find companies: %w", err)
	}

	companies := make([]*entity.Company, 0, len(rows))
	for i := range rows {
		company, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}

	return companies, nil
}

func (r *companyRepository) Save(ctx context.Context, company *entity.Company) (*entity.Company, error) {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := time.Now()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now

	row, err := newCompanyRow(company)
	if err != nil {
		return nil, err
	}

	// Upsert on external_id, the first insert wins id and created_at
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES (:id, :external_id, :name, :website, :vat_number, :business_type, :address,
			:contact_infos, :custom_fields, :created_at, :updated_at, :last_synced_at)
		ON CONFLICT(external_id) DO UPDATE SET
			name = EXCLUDED.name,
			website = EXCLUDED.website,
			vat_number = EXCLUDED.vat_number,
			business_type = EXCLUDED.business_type,
			address = EXCLUDED.address,
			contact_infos = EXCLUDED.contact_infos,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = EXCLUDED.updated_at,
			last_synced_at = EXCLUDED.last_synced_at
		RETURNING id, created_at
	`

	rows, err := r.db.DB.NamedQueryContext(ctx, query, row)
	if err != nil {
		return nil, fmt.Errorf("failed to save company: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&company.ID, &company.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved company: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to save company: %w", err)
	}

	return company, nil
}

func newCompanyRow(c *entity.Company) (*companyRow, error) {
	row := &companyRow{
		ID:           c.ID,
		ExternalID:   c.ExternalID,
		Name:         c.Name,
		Website:      nullString(c.Website),
		VATNumber:    nullString(c.VATNumber),
		BusinessType: nullString(c.BusinessType),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.LastSyncedAt != nil {
		row.LastSyncedAt = sql.NullTime{Time: *c.LastSyncedAt, Valid: true}
	}

	// JSONB values are sent as text, lib/pq would encode []byte as bytea
	if c.Address != nil {
		address, err := json.Marshal(c.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal company address: %w", err)
		}
		row.Address = sql.NullString{String: string(address), Valid: true}
	}

	contacts := c.ContactInfos
	if contacts == nil {
		contacts = []entity.ContactInfo{}
	}
	contactsJSON, err := json.Marshal(contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal company contact infos: %w", err)
	}
	row.ContactInfos = string(contactsJSON)

	fields := c.CustomFields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal company custom fields: %w", err)
	}
	row.CustomFields = string(fieldsJSON)

	return row, nil
}

func (row *companyRow) toEntity() (*entity.Company, error) {
	company := &entity.Company{
		ID:           row.ID,
		ExternalID:   row.ExternalID,
		Name:         row.Name,
		Website:      stringPtr(row.Website),
		VATNumber:    stringPtr(row.VATNumber),
		BusinessType: stringPtr(row.BusinessType),
		ContactInfos: []entity.ContactInfo{},
		CustomFields: map[string]any{},
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.LastSyncedAt.Valid {
		t := row.LastSyncedAt.Time
		company.LastSyncedAt = &t
	}

	if row.Address.Valid && row.Address.String != "" {
		var address entity.Address
		if err := json.Unmarshal([]byte(row.Address.String), &address); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company address: %w", err)
		}
		company.Address = &address
	}
	if row.ContactInfos != "" {
		if err := json.Unmarshal([]byte(row.ContactInfos), &company.ContactInfos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company contact infos: %w", err)
		}
	}
	if row.CustomFields != "" {
		if err := json.Unmarshal([]byte(row.CustomFields), &company.CustomFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company custom fields: %w", err)
		}
	}

	return company, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
