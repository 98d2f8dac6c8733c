package repository

import (
	"context"
	"database/sql"
	"fmt"

	"funnel-api/core/database"
	coreEntity "funnel-api/core/entity"
	"funnel-api/core/errors"
	"funnel-api/core/logger"
	"funnel-api/core/params"
	"funnel-api/modules/lead/entity"

	"github.com/google/uuid"
)

type LeadRepository struct {
	db database.Database
}

func NewLeadRepository(db database.Database) *LeadRepository {
	return &LeadRepository{db: db}
}

// Upsert inserts a lead or, when the email already exists, refreshes the
// contact fields and returns the existing row's id.
func (r *LeadRepository) Upsert(ctx context.Context, lead *entity.Lead) error {
	query := `
		INSERT INTO leads (first_name, email, phone, website, revenue, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			phone      = COALESCE(EXCLUDED.phone, leads.phone),
			website    = COALESCE(EXCLUDED.website, leads.website),
			revenue    = COALESCE(EXCLUDED.revenue, leads.revenue),
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, query,
		lead.FirstName, lead.Email, lead.Phone, lead.Website, lead.Revenue, lead.Status)
	if err := row.Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
		logger.Error("LeadRepository:Upsert:Error", "email", lead.Email, "error", err)
		return errors.NewAppError(errors.ErrStorage, "Failed to save lead", err)
	}
	return nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Lead, error) {
	var lead entity.Lead
	err := r.db.GetContext(ctx, &lead, `SELECT * FROM leads WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewAppError(errors.ErrNotFound, "Lead not found", err)
	}
	if err != nil {
		logger.Error("LeadRepository:GetByID:Error", "id", id, "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to load lead", err)
	}
	return &lead, nil
}

func (r *LeadRepository) GetByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	var lead entity.Lead
	err := r.db.GetContext(ctx, &lead, `SELECT * FROM leads WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, errors.NewAppError(errors.ErrNotFound, "Lead not found", err)
	}
	if err != nil {
		logger.Error("LeadRepository:GetByEmail:Error", "email", email, "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to load lead", err)
	}
	return &lead, nil
}

func (r *LeadRepository) List(ctx context.Context, qp params.QueryParams) (*coreEntity.Pagination[entity.Lead], error) {
	baseQuery := `FROM leads`
	args := []any{}
	if qp.Search != "" {
		baseQuery += ` WHERE first_name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+qp.Search+"%")
	}

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		logger.Error("LeadRepository:List:Count:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to count leads", err)
	}

	query := fmt.Sprintf(`SELECT * %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		baseQuery, len(args)+1, len(args)+2)
	args = append(args, qp.PageSize, qp.Offset())

	var leads []entity.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		logger.Error("LeadRepository:List:Select:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrStorage, "Failed to list leads", err)
	}

	return &coreEntity.Pagination[entity.Lead]{
		Items:      leads,
		Total:      totalItems,
		PageNumber: qp.PageNumber,
		PageSize:   qp.PageSize,
	}, nil
}
