package service

import (
	"context"
	"strings"

	coreEntity "funnel-api/core/entity"
	"funnel-api/core/errors"
	"funnel-api/core/params"
	"funnel-api/core/utils"
	"funnel-api/modules/lead/dto"
	"funnel-api/modules/lead/entity"
	"funnel-api/modules/lead/repository"

	"github.com/google/uuid"
)

type LeadService struct {
	repo *repository.LeadRepository
}

func NewLeadService(repo *repository.LeadRepository) *LeadService {
	return &LeadService{repo: repo}
}

// Capture records a funnel submission. Resubmitting with the same email
// refreshes the contact fields instead of creating a duplicate.
func (s *LeadService) Capture(ctx context.Context, req *dto.CreateLeadRequest) (*entity.Lead, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.FirstName == "" || !utils.IsValidEmail(email) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "First name and a valid email are required", nil)
	}

	lead := &entity.Lead{
		FirstName:  strings.TrimSpace(req.FirstName),
		Email:      email,
		Phone:      req.Phone,
		Website:    req.Website,
		Revenue:    req.Revenue,
		Status:     entity.StatusActive,
		BaseEntity: coreEntity.BaseEntity{},
	}
	if err := s.repo.Upsert(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LeadService) List(ctx context.Context, qp params.QueryParams) (*coreEntity.Pagination[entity.Lead], error) {
	return s.repo.List(ctx, qp)
}
