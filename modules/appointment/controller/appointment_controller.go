package controller

import (
	"time"

	"funnel-api/core/controller"
	"funnel-api/core/errors"
	"funnel-api/modules/appointment/dto"
	"funnel-api/modules/appointment/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AppointmentController struct {
	service *service.SchedulingService
	controller.BaseController
}

func NewAppointmentController(service *service.SchedulingService) *AppointmentController {
	return &AppointmentController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

func (c *AppointmentController) Book(ctx echo.Context) error {
	req := new(dto.BookAppointmentRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	result, err := c.service.Book(ctx.Request().Context(),
		req.Name, req.Email, req.Phone, req.Website, req.Revenue,
		req.AppointmentDate, req.AppointmentTime, req.Timezone)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, bookingResponse(result), "Appointment booked successfully")
}

func (c *AppointmentController) Update(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid appointment id", nil)
	}

	req := new(dto.UpdateAppointmentRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	result, err := c.service.Update(ctx.Request().Context(), id,
		req.AppointmentDate, req.AppointmentTime, req.Timezone)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, bookingResponse(result), "Appointment updated successfully")
}

func (c *AppointmentController) Cancel(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid appointment id", nil)
	}

	result, err := c.service.Cancel(ctx.Request().Context(), id)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, bookingResponse(result), "Appointment cancelled")
}

func (c *AppointmentController) GetAvailableSlots(ctx echo.Context) error {
	result, err := c.service.GetAvailableSlots(ctx.Request().Context(), ctx.Param("date"))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	return c.SuccessResponse(ctx, dto.AvailableSlotsResponse{
		Date:     result.Date,
		Slots:    result.Slots,
		Degraded: result.Degraded,
		Message:  result.Message,
	}, "Available slots retrieved")
}

func (c *AppointmentController) ListReminderCandidates(ctx echo.Context) error {
	apts, err := c.service.ListReminderCandidates(ctx.Request().Context(), time.Now())
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, apts, "Due reminders retrieved")
}

func bookingResponse(result *service.BookingResult) dto.BookingResponse {
	apt := result.Appointment
	return dto.BookingResponse{
		ID:              apt.ID.String(),
		AppointmentDate: apt.DateString(),
		AppointmentTime: apt.AppointmentTime,
		Timezone:        apt.Timezone,
		Status:          apt.Status,
		GoogleEventID:   apt.GoogleEventID,
		HTMLLink:        apt.HTMLLink,
		MeetLink:        apt.MeetLink,
		CalendarSynced:  apt.CalendarSynced,
		CalendarMessage: result.CalendarMessage,
	}
}
