package models

import (
	"time"

	"github.com/google/uuid"
)

// Приоритеты инцидента
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Статусы инцидента
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

type Incident struct {
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

// IncidentFilter ограничивает выборку списка инцидентов
type IncidentFilter struct {
	ReporterID     *uuid.UUID
	OpenOrAssigned *uuid.UUID
	Status         string
	Priority       string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// Alert - полезная нагрузка уведомления о новом инциденте
type Alert struct {
	IncidentID  uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    Location  `json:"location"`
	Priority    string    `json:"priority"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewAlert собирает уведомление из инцидента
func NewAlert(incident *Incident) Alert {
	return Alert{
		IncidentID:  incident.ID,
		Title:       incident.Title,
		Description: incident.Description,
		Location:    Location{Latitude: incident.Latitude, Longitude: incident.Longitude},
		Priority:    incident.Priority,
		Address:     incident.Address,
		CreatedAt:   incident.CreatedAt,
	}
}

// EventIncidentStatusUpdate - realtime-событие о смене статуса инцидента
const EventIncidentStatusUpdate = "incident:statusUpdate"

// StatusUpdate - уведомление автору инцидента о смене статуса
type StatusUpdate struct {
	IncidentID uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	UpdatedBy  uuid.UUID `json:"updatedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EventIncidentNoteAdded - realtime-событие о новой заметке к инциденту
const EventIncidentNoteAdded = "incident:noteAdded"

// Note - текстовая заметка к инциденту
type Note struct {
	ID         uuid.UUID `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	UserID     uuid.UUID `json:"user_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// NoteAdded - уведомление автору инцидента о новой заметке
type NoteAdded struct {
	IncidentID uuid.UUID `json:"id"`
	Note       Note      `json:"note"`
}
