package router

import (
	"funnel-api/core/middleware"
	"funnel-api/modules/lead/controller"

	"github.com/labstack/echo/v4"
)

type LeadRouter struct {
	controller *controller.LeadController
}

func NewLeadRouter(controller *controller.LeadController) *LeadRouter {
	return &LeadRouter{controller: controller}
}

func (r *LeadRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	g.POST("/leads", r.controller.Capture)

	admin := g.Group("/admin", mw.AuthMiddleware())
	admin.GET("/leads", r.controller.List)
}
