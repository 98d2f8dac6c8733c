package router

import (
	"funnel-api/core/middleware"
	"funnel-api/modules/appointment/controller"

	"github.com/labstack/echo/v4"
)

type AppointmentRouter struct {
	controller *controller.AppointmentController
}

func NewAppointmentRouter(controller *controller.AppointmentController) *AppointmentRouter {
	return &AppointmentRouter{controller: controller}
}

func (r *AppointmentRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	group := g.Group("/appointments")
	group.POST("", r.controller.Book)
	group.PUT("/:id", r.controller.Update)
	group.DELETE("/:id", r.controller.Cancel)
	group.GET("/available-slots/:date", r.controller.GetAvailableSlots)
	group.GET("/reminders/due", r.controller.ListReminderCandidates, mw.AuthMiddleware())
}
