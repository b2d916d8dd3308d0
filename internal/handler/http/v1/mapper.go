package v1

import (
	"github.com/google/uuid"

	"github.com/shenikar/neighbours_care/internal/models"
)

// DTOToIncidentModel преобразует DTO создания в доменную модель
func DTOToIncidentModel(dto CreateIncidentRequest, reporterID uuid.UUID) *models.Incident {
	incident := &models.Incident{
		ReporterID:  reporterID,
		Title:       dto.Title,
		Description: dto.Description,
		Priority:    dto.Priority,
		Address:     dto.Address,
	}
	if dto.Latitude != nil {
		incident.Latitude = *dto.Latitude
	}
	if dto.Longitude != nil {
		incident.Longitude = *dto.Longitude
	}
	return incident
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:                model.ID,
		ReporterID:        model.ReporterID,
		Title:             model.Title,
		Description:       model.Description,
		Priority:          model.Priority,
		Status:            model.Status,
		Address:           model.Address,
		Latitude:          model.Latitude,
		Longitude:         model.Longitude,
		AssignedVolunteer: model.AssignedVolunteer,
		ResponseTime:      model.ResponseTime,
		ResolvedAt:        model.ResolvedAt,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// RecordsToNotificationResponses преобразует журнал уведомлений в DTO
func RecordsToNotificationResponses(records []models.DispatchRecord) []NotificationResponse {
	responses := make([]NotificationResponse, len(records))
	for i, rec := range records {
		responses[i] = NotificationResponse{
			RecipientID: rec.RecipientID,
			Channel:     rec.Channel,
			NotifiedAt:  rec.NotifiedAt,
		}
	}
	return responses
}

// NoteToResponse преобразует заметку в DTO
func NoteToResponse(note models.Note) NoteResponse {
	return NoteResponse{
		ID:         note.ID,
		IncidentID: note.IncidentID,
		UserID:     note.UserID,
		Text:       note.Text,
		CreatedAt:  note.CreatedAt,
	}
}

// NotesToResponses преобразует слайс заметок в DTO
func NotesToResponses(notes []models.Note) []NoteResponse {
	responses := make([]NoteResponse, len(notes))
	for i, note := range notes {
		responses[i] = NoteToResponse(note)
	}
	return responses
}

// ReportToAvailabilityResponse преобразует сводку доступности в DTO
func ReportToAvailabilityResponse(report *models.AvailabilityReport) AvailabilityResponse {
	resp := AvailabilityResponse{
		Summary: AvailabilitySummaryResponse{
			Total:       report.Summary.Total,
			Available:   report.Summary.Available,
			Offline:     report.Summary.Offline,
			Unavailable: report.Summary.Unavailable,
		},
		Volunteers: make([]VolunteerAvailabilityResponse, len(report.Volunteers)),
	}
	for i, v := range report.Volunteers {
		resp.Volunteers[i] = VolunteerAvailabilityResponse{
			ID:          v.ID,
			Name:        v.Name,
			IsAvailable: v.IsAvailable,
			IsOnline:    v.IsOnline,
			Status:      v.Status,
			HasLocation: v.HasLocation,
			LastSeen:    v.LastSeen,
		}
	}
	return resp
}

// NearbyToResponses преобразует волонтеров рядом с точкой в DTO
func NearbyToResponses(volunteers []models.NearbyVolunteer) []NearbyVolunteerResponse {
	responses := make([]NearbyVolunteerResponse, len(volunteers))
	for i, v := range volunteers {
		responses[i] = NearbyVolunteerResponse{
			UserID:    v.UserID,
			Latitude:  v.Location.Latitude,
			Longitude: v.Location.Longitude,
			Distance:  v.Distance,
			LastSeen:  v.LastSeen,
		}
	}
	return responses
}
