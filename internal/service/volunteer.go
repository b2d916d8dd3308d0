package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/neighbours_care/internal/auth"
	"github.com/shenikar/neighbours_care/internal/dispatch"
	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/presence"
)

// ErrInvalidLocation - координаты вне допустимых диапазонов
var ErrInvalidLocation = errors.New("invalid location")

// VolunteerRepository - хранилище волонтеров и их доступности
type VolunteerRepository interface {
	ListActiveVolunteers(ctx context.Context) ([]models.VolunteerAvailability, error)
	ToggleAvailability(ctx context.Context, userID uuid.UUID) (bool, error)
}

// PresenceDirectory - чтение реестра присутствия
type PresenceDirectory interface {
	Lookup(id uuid.UUID) (presence.Entry, bool)
	Nearby(lat, lng, radius float64) []presence.NearbyEntry
}

// VolunteerService - доступность волонтеров и их присутствие в сети
type VolunteerService interface {
	Availability(ctx context.Context) (*models.AvailabilityReport, error)
	ToggleAvailability(ctx context.Context, actor auth.Identity) (bool, error)
	NearbyOnline(ctx context.Context, lat, lng, radius float64) ([]models.NearbyVolunteer, error)
}

type volunteerService struct {
	repo       VolunteerRepository
	presence   PresenceDirectory
	classifier dispatch.Classifier
	logger     *logrus.Logger
	now        func() time.Time
}

func NewVolunteerService(repo VolunteerRepository, directory PresenceDirectory, window time.Duration, logger *logrus.Logger) VolunteerService {
	return &volunteerService{
		repo:       repo,
		presence:   directory,
		classifier: dispatch.Classifier{Window: window},
		logger:     logger,
		now:        time.Now,
	}
}

// Availability собирает сводку доступности активных волонтеров.
// Онлайн определяется реестром присутствия, а не last_seen из БД.
func (s *volunteerService) Availability(ctx context.Context) (*models.AvailabilityReport, error) {
	volunteers, err := s.repo.ListActiveVolunteers(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service": "volunteer",
			"method":  "Availability",
		}).WithError(err).Error("Failed to list volunteers")
		return nil, fmt.Errorf("service: could not list volunteers: %w", err)
	}

	now := s.now()
	report := &models.AvailabilityReport{Volunteers: volunteers}
	for i := range report.Volunteers {
		v := &report.Volunteers[i]
		v.IsOnline = s.classifier.IsLive(v.ID, s.presence, now)
		switch {
		case v.IsAvailable && v.IsOnline:
			v.Status = models.AvailabilityAvailable
			report.Summary.Available++
		case v.IsAvailable:
			v.Status = models.AvailabilityOffline
			report.Summary.Offline++
		default:
			v.Status = models.AvailabilityUnavailable
			report.Summary.Unavailable++
		}
	}
	report.Summary.Total = len(report.Volunteers)
	return report, nil
}

// ToggleAvailability переключает готовность волонтера принимать вызовы
func (s *volunteerService) ToggleAvailability(ctx context.Context, actor auth.Identity) (bool, error) {
	if actor.Role != models.RoleVolunteer {
		return false, ErrForbidden
	}

	log := s.logger.WithFields(logrus.Fields{
		"service": "volunteer",
		"method":  "ToggleAvailability",
		"user_id": actor.UserID,
	})

	available, err := s.repo.ToggleAvailability(ctx, actor.UserID)
	if err != nil {
		log.WithError(err).Error("Failed to toggle availability")
		return false, fmt.Errorf("service: could not toggle availability: %w", err)
	}
	log.WithField("available", available).Info("Volunteer availability changed")
	return available, nil
}

// NearbyOnline возвращает волонтеров в сети не дальше radius метров от точки, ближайшие первыми.
// Неположительный radius заменяется радиусом рассылки по умолчанию.
func (s *volunteerService) NearbyOnline(_ context.Context, lat, lng, radius float64) ([]models.NearbyVolunteer, error) {
	center := models.Location{Latitude: lat, Longitude: lng}
	if !center.Valid() {
		return nil, fmt.Errorf("service: %w: (%v, %v)", ErrInvalidLocation, lat, lng)
	}
	if radius <= 0 {
		radius = dispatch.DefaultRadiusMeters
	}

	now := s.now()
	result := make([]models.NearbyVolunteer, 0)
	for _, entry := range s.presence.Nearby(lat, lng, radius) {
		if entry.Role != models.RoleVolunteer || !s.classifier.IsFresh(entry.Entry, now) {
			continue
		}
		result = append(result, models.NearbyVolunteer{
			UserID:   entry.UserID,
			Location: *entry.Location,
			Distance: entry.Distance,
			LastSeen: entry.LastSeen,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Distance < result[j].Distance
	})
	return result, nil
}
