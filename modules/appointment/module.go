package appointment

import (
	"funnel-api/core/config"
	"funnel-api/core/database"
	"funnel-api/core/middleware"
	"funnel-api/modules/appointment/controller"
	"funnel-api/modules/appointment/repository"
	"funnel-api/modules/appointment/router"
	"funnel-api/modules/appointment/service"
	"funnel-api/modules/calendar/gateway"

	"github.com/labstack/echo/v4"
)

func Init(
	g *echo.Group,
	db database.Database,
	mw *middleware.Middleware,
	leads service.LeadDirectory,
	gw gateway.CalendarGateway,
	cache service.SlotCache,
	queue service.ConfirmationEnqueuer,
	cfg config.SchedulingConfig,
) (*service.SchedulingService, *repository.AppointmentRepository) {
	repo := repository.NewAppointmentRepository(db)
	svc := service.NewSchedulingService(repo, leads, gw, cache, queue, cfg)
	ctrl := controller.NewAppointmentController(svc)

	router.NewAppointmentRouter(ctrl).Register(g, mw)

	return svc, repo
}
