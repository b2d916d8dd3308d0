package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateIncidentRequest DTO для создания инцидента
// @Description DTO для создания инцидента
type CreateIncidentRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=100"`
	Description string   `json:"description" validate:"required,min=10,max=500"`
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
	Priority    string   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Address     string   `json:"address,omitempty" validate:"max=200"`
}

// UpdateStatusRequest DTO для смены статуса инцидента
// @Description DTO для смены статуса инцидента
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress resolved"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID                uuid.UUID  `json:"id"`
	ReporterID        uuid.UUID  `json:"reporter_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	Address           string     `json:"address,omitempty"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	AssignedVolunteer *uuid.UUID `json:"assigned_volunteer,omitempty"`
	ResponseTime      *time.Time `json:"response_time,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NotifiedCount - сколько получателей найдено по каждому каналу
type NotifiedCount struct {
	Live  int `json:"live"`
	Stale int `json:"stale"`
}

// CreateIncidentResponse DTO для ответа на создание инцидента
// @Description DTO для ответа на создание инцидента
type CreateIncidentResponse struct {
	Incident      *IncidentResponse `json:"incident"`
	NotifiedCount NotifiedCount     `json:"notified_count"`
	DispatchError string            `json:"dispatch_error,omitempty"`
}

// NotificationResponse DTO записи журнала уведомлений
// @Description DTO записи журнала уведомлений
type NotificationResponse struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Channel     string    `json:"channel"`
	NotifiedAt  time.Time `json:"notified_at"`
}

// PresenceStatsResponse DTO для ответа со статистикой присутствия
// @Description DTO для ответа со статистикой присутствия
type PresenceStatsResponse struct {
	Online int `json:"online"`
}

// AddNoteRequest DTO для добавления заметки к инциденту
// @Description DTO для добавления заметки к инциденту
type AddNoteRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

// NoteResponse DTO заметки к инциденту
// @Description DTO заметки к инциденту
type NoteResponse struct {
	ID         uuid.UUID `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	UserID     uuid.UUID `json:"user_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// VolunteerAvailabilityResponse DTO доступности одного волонтера
// @Description DTO доступности одного волонтера
type VolunteerAvailabilityResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	IsAvailable bool       `json:"is_available"`
	IsOnline    bool       `json:"is_online"`
	Status      string     `json:"status"`
	HasLocation bool       `json:"has_location"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

// AvailabilitySummaryResponse - счетчики волонтеров по статусам
type AvailabilitySummaryResponse struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Offline     int `json:"offline"`
	Unavailable int `json:"unavailable"`
}

// AvailabilityResponse DTO сводки доступности волонтеров
// @Description DTO сводки доступности волонтеров
type AvailabilityResponse struct {
	Summary    AvailabilitySummaryResponse     `json:"summary"`
	Volunteers []VolunteerAvailabilityResponse `json:"volunteers"`
}

// ToggleAvailabilityResponse DTO ответа на переключение доступности
type ToggleAvailabilityResponse struct {
	IsAvailable bool `json:"is_available"`
}

// NearbyVolunteerResponse DTO волонтера в сети рядом с точкой
// @Description DTO волонтера в сети рядом с точкой
type NearbyVolunteerResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Distance  float64   `json:"distance_meters"`
	LastSeen  time.Time `json:"last_seen"`
}
