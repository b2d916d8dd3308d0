package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/shenikar/neighbours_care/internal/models"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	authorized := api.Group("", JWTAuthMiddleware(h.verifier, h.logger))

	// Маршруты для управления инцидентами
	incidents := authorized.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.PATCH("/:id/status", RequireRole(models.RoleVolunteer, models.RoleAdmin), h.updateIncidentStatus)
		incidents.GET("/:id/notifications", h.getNotifications)
		incidents.POST("/:id/notes", h.addNote)
		incidents.GET("/:id/notes", h.listNotes)
	}

	// Доступность волонтеров
	authorized.GET("/volunteers/availability", h.volunteerAvailability)
	authorized.PUT("/availability/toggle", RequireRole(models.RoleVolunteer), h.toggleAvailability)

	authorized.GET("/presence/stats", RequireRole(models.RoleAdmin), h.presenceStats)
	authorized.GET("/presence/nearby", RequireRole(models.RoleAdmin), h.presenceNearby)

	// Realtime-сессия проверяет токен при рукопожатии (query token или Authorization)
	if h.ws != nil {
		api.GET("/ws", h.ws)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
