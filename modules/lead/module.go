package lead

import (
	"funnel-api/core/database"
	"funnel-api/core/middleware"
	"funnel-api/modules/lead/controller"
	"funnel-api/modules/lead/repository"
	"funnel-api/modules/lead/router"
	"funnel-api/modules/lead/service"

	"github.com/labstack/echo/v4"
)

func Init(g *echo.Group, db database.Database, mw *middleware.Middleware) *service.LeadService {
	repo := repository.NewLeadRepository(db)
	svc := service.NewLeadService(repo)
	ctrl := controller.NewLeadController(svc)

	router.NewLeadRouter(ctrl).Register(g, mw)

	return svc
}
