package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/repository"
	"github.com/shenikar/neighbours_care/internal/service"
)

type Handler struct {
	incidentService  service.IncidentService
	volunteerService service.VolunteerService
	verifier         TokenVerifier
	ws               gin.HandlerFunc
	logger           *logrus.Logger
	validate         *validator.Validate
}

// NewHandler создает обработчики API. ws может быть nil, тогда /ws не регистрируется.
func NewHandler(
	incidentService service.IncidentService,
	volunteerService service.VolunteerService,
	verifier TokenVerifier,
	ws gin.HandlerFunc,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		incidentService:  incidentService,
		volunteerService: volunteerService,
		verifier:         verifier,
		ws:               ws,
		logger:           logger,
		validate:         validator.New(),
	}
}

// @Summary Create a new incident
// @Description Create a new incident and alert volunteers nearby. Volunteers with a live session get a realtime push, the rest get an email.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param incident body CreateIncidentRequest true "Incident creation request"
// @Success 201 {object} CreateIncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, _ := identityFrom(c)
	model := DTOToIncidentModel(input, identity.UserID)
	result, err := h.incidentService.CreateIncident(c.Request.Context(), model)
	if err != nil && !errors.Is(err, service.ErrDispatchIncomplete) {
		log.WithError(err).Error("Failed to create incident in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	resp := CreateIncidentResponse{Incident: ModelToIncidentResponse(model)}
	if result != nil {
		resp.NotifiedCount = NotifiedCount{Live: result.LiveCount, Stale: result.StaleCount}
	}
	if err != nil {
		resp.DispatchError = err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a list of incidents
// @Description Users see their own incidents, volunteers see open and assigned ones, admins see all.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Param status query string false "Status filter" Enums(open, in_progress, resolved)
// @Param priority query string false "Priority filter" Enums(low, medium, high, critical)
// @Param startDate query string false "Created at or after (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "Created at or before (RFC3339 or YYYY-MM-DD, a date includes the whole day)"
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid date filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter := models.IncidentFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}

	var err error
	if filter.CreatedFrom, err = parseDateParam(c.Query("startDate"), false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
		return
	}
	if filter.CreatedTo, err = parseDateParam(c.Query("endDate"), true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
		return
	}

	identity, _ := identityFrom(c)
	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), identity, filter, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incident from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	identity, _ := identityFrom(c)
	incident, err := h.incidentService.GetIncident(c.Request.Context(), id, identity)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Update incident status
// @Description Move an incident to in_progress or resolved. The first in_progress transition assigns the incident. The reporter gets a realtime update when online.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/status [patch]
func (h *Handler) updateIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "updateIncidentStatus").WithField("id", id)

	var input UpdateStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, _ := identityFrom(c)
	incident, err := h.incidentService.UpdateStatus(c.Request.Context(), id, input.Status, identity)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get incident notifications
// @Description Get the list of volunteers notified about the incident and the channel used.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} NotificationResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/notifications [get]
func (h *Handler) getNotifications(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getNotifications").WithField("id", id)

	identity, _ := identityFrom(c)
	records, err := h.incidentService.GetNotifications(c.Request.Context(), id, identity)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, RecordsToNotificationResponses(records))
}

// @Summary Add a note to an incident
// @Description Add a text note to an incident. The reporter gets a realtime incident:noteAdded event when online.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param note body AddNoteRequest true "Note text"
// @Success 201 {object} NoteResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/notes [post]
func (h *Handler) addNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "addNote").WithField("id", id)

	var input AddNoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input.Text = strings.TrimSpace(input.Text)
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, _ := identityFrom(c)
	note, err := h.incidentService.AddNote(c.Request.Context(), id, input.Text, identity)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, NoteToResponse(*note))
}

// @Summary Get incident notes
// @Description Get notes of an incident, oldest first.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} NoteResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/notes [get]
func (h *Handler) listNotes(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "listNotes").WithField("id", id)

	identity, _ := identityFrom(c)
	notes, err := h.incidentService.ListNotes(c.Request.Context(), id, identity)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, NotesToResponses(notes))
}

// @Summary Get volunteer availability
// @Description Get active volunteers with their availability status and a summary. A volunteer is online while their realtime session is fresh.
// @Tags Volunteers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AvailabilityResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /volunteers/availability [get]
func (h *Handler) volunteerAvailability(c *gin.Context) {
	log := h.logger.WithField("method", "volunteerAvailability")

	report, err := h.volunteerService.Availability(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ReportToAvailabilityResponse(report))
}

// @Summary Toggle own availability
// @Description Switch whether the calling volunteer is available for incidents. Volunteers only.
// @Tags Volunteers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ToggleAvailabilityResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /availability/toggle [put]
func (h *Handler) toggleAvailability(c *gin.Context) {
	identity, _ := identityFrom(c)
	log := h.logger.WithField("method", "toggleAvailability").WithField("user_id", identity.UserID)

	available, err := h.volunteerService.ToggleAvailability(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ToggleAvailabilityResponse{IsAvailable: available})
}

// @Summary Get online volunteers near a point
// @Description Get volunteers with a fresh realtime session within radius meters of a point, nearest first. Admin only.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query number false "Radius in meters" default(5000)
// @Success 200 {array} NearbyVolunteerResponse
// @Failure 400 {object} map[string]string "Invalid coordinates or radius"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Router /presence/nearby [get]
func (h *Handler) presenceNearby(c *gin.Context) {
	log := h.logger.WithField("method", "presenceNearby")

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required numbers"})
		return
	}
	var radius float64
	if raw := c.Query("radius"); raw != "" {
		var err error
		if radius, err = strconv.ParseFloat(raw, 64); err != nil || radius <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a positive number"})
			return
		}
	}

	volunteers, err := h.volunteerService.NearbyOnline(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, NearbyToResponses(volunteers))
}

// @Summary Get presence statistics
// @Description Get the number of users with a live realtime session. Admin only.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PresenceStatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Router /presence/stats [get]
func (h *Handler) presenceStats(c *gin.Context) {
	stats := h.incidentService.PresenceStats(c.Request.Context())
	c.JSON(http.StatusOK, PresenceStatsResponse{Online: stats.Online})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, repository.ErrIncidentNotFound):
		log.WithError(err).Warn("Incident not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
	case errors.Is(err, repository.ErrUserNotFound):
		log.WithError(err).Warn("User not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrForbidden):
		log.WithError(err).Warn("Access denied")
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("Service call failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

const dateLayout = "2006-01-02"

// parseDateParam разбирает границу фильтра по дате: RFC3339 или YYYY-MM-DD.
// Для верхней границы дата без времени включает весь день.
func parseDateParam(value string, upper bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
