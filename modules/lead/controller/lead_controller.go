package controller

import (
	"funnel-api/core/controller"
	"funnel-api/core/errors"
	"funnel-api/core/params"
	"funnel-api/modules/lead/dto"
	"funnel-api/modules/lead/service"

	"github.com/labstack/echo/v4"
)

type LeadController struct {
	service *service.LeadService
	controller.BaseController
}

func NewLeadController(service *service.LeadService) *LeadController {
	return &LeadController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

func (c *LeadController) Capture(ctx echo.Context) error {
	req := new(dto.CreateLeadRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	lead, err := c.service.Capture(ctx.Request().Context(), req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, dto.LeadResponse{
		ID:        lead.ID.String(),
		FirstName: lead.FirstName,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Website:   lead.Website,
		Revenue:   lead.Revenue,
		Status:    lead.Status,
	}, "Lead saved successfully")
}

func (c *LeadController) List(ctx echo.Context) error {
	qp := params.NewQueryParams(ctx)
	result, err := c.service.List(ctx.Request().Context(), *qp)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, result, "Leads retrieved successfully")
}
