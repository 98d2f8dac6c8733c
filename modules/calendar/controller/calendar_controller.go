package controller

import (
	"funnel-api/core/controller"
	"funnel-api/modules/calendar/gateway"

	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	gateway gateway.CalendarGateway
	controller.BaseController
}

func NewCalendarController(gw gateway.CalendarGateway) *CalendarController {
	return &CalendarController{
		gateway:        gw,
		BaseController: controller.NewBaseController(),
	}
}

// Status reports whether the external calendar provider is reachable. The
// funnel uses this to surface degraded-sync mode to users before they book.
func (c *CalendarController) Status(ctx echo.Context) error {
	available := c.gateway.IsAvailable(ctx.Request().Context())
	return c.SuccessResponse(ctx, map[string]any{
		"available": available,
	}, "Calendar status retrieved")
}
