package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей
const (
	RoleUser      = "user"
	RoleVolunteer = "volunteer"
	RoleAdmin     = "admin"
)

// Location - пара координат в градусах
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Valid проверяет, что координаты лежат в допустимых диапазонах
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Candidate - волонтер, найденный поиском по радиусу. Снимок на момент рассылки.
type Candidate struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	LastSeen  time.Time `json:"last_seen"`
}

// PresenceStats - статистика присутствия
type PresenceStats struct {
	Online int `json:"online"`
}

// Статусы доступности волонтера
const (
	AvailabilityAvailable   = "available"
	AvailabilityOffline     = "offline"
	AvailabilityUnavailable = "unavailable"
)

// VolunteerAvailability - волонтер и его готовность принимать вызовы
type VolunteerAvailability struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	IsAvailable bool       `json:"is_available"`
	HasLocation bool       `json:"has_location"`
	IsOnline    bool       `json:"is_online"`
	Status      string     `json:"status"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

// AvailabilitySummary - счетчики по статусам доступности
type AvailabilitySummary struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Offline     int `json:"offline"`
	Unavailable int `json:"unavailable"`
}

// AvailabilityReport - сводка доступности волонтеров
type AvailabilityReport struct {
	Volunteers []VolunteerAvailability `json:"volunteers"`
	Summary    AvailabilitySummary     `json:"summary"`
}

// NearbyVolunteer - волонтер онлайн рядом с точкой
type NearbyVolunteer struct {
	UserID   uuid.UUID `json:"user_id"`
	Location Location  `json:"location"`
	Distance float64   `json:"distance_meters"`
	LastSeen time.Time `json:"last_seen"`
}
