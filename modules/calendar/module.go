package calendar

import (
	"funnel-api/core/config"
	"funnel-api/modules/calendar/controller"
	"funnel-api/modules/calendar/gateway"
	"funnel-api/modules/calendar/router"

	"github.com/labstack/echo/v4"
)

func Init(g *echo.Group, cfg config.GoogleAPIConfig) gateway.CalendarGateway {
	gw := gateway.NewGoogleGateway(cfg)
	ctrl := controller.NewCalendarController(gw)

	router.NewCalendarRouter(ctrl).Register(g)

	return gw
}
