package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/neighbours_care/internal/auth"
	"github.com/shenikar/neighbours_care/internal/models"
)

var (
	// ErrForbidden - у пользователя нет доступа к инциденту или операции
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatus - статус, в который нельзя перевести инцидент
	ErrInvalidStatus = errors.New("invalid incident status")
	// ErrDispatchIncomplete - инцидент создан, но рассылка завершилась с ошибкой
	ErrDispatchIncomplete = errors.New("incident created, dispatch incomplete")
)

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID, at time.Time) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter, page, pageSize int) ([]*models.Incident, error)
	GetDispatchLog(ctx context.Context, incidentID uuid.UUID) ([]models.DispatchRecord, error)
	AddNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, incidentID uuid.UUID) ([]models.Note, error)
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// Dispatcher рассылает уведомления о новом инциденте
type Dispatcher interface {
	Dispatch(ctx context.Context, incident *models.Incident) (*models.DispatchResult, error)
}

// StatusNotifier доставляет realtime-событие пользователю, если он в сети
type StatusNotifier interface {
	Notify(userID uuid.UUID, event string, payload any) error
}

// PresenceCounter - число активных realtime-сессий
type PresenceCounter interface {
	Len() int
}

// IncidentService определяет контракт для бизнес-логики управления инцидентами
type IncidentService interface {
	CreateIncident(ctx context.Context, incident *models.Incident) (*models.DispatchResult, error)
	GetIncident(ctx context.Context, id uuid.UUID, actor auth.Identity) (*models.Incident, error)
	ListIncidents(ctx context.Context, actor auth.Identity, filter models.IncidentFilter, page, pageSize int) ([]*models.Incident, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor auth.Identity) (*models.Incident, error)
	GetNotifications(ctx context.Context, id uuid.UUID, actor auth.Identity) ([]models.DispatchRecord, error)
	AddNote(ctx context.Context, id uuid.UUID, text string, actor auth.Identity) (*models.Note, error)
	ListNotes(ctx context.Context, id uuid.UUID, actor auth.Identity) ([]models.Note, error)
	PresenceStats(ctx context.Context) models.PresenceStats
}

type incidentService struct {
	repo       IncidentRepository
	dispatcher Dispatcher
	notifier   StatusNotifier
	presence   PresenceCounter
	logger     *logrus.Logger
	now        func() time.Time
}

func NewIncidentService(
	repo IncidentRepository,
	dispatcher Dispatcher,
	notifier StatusNotifier,
	presence PresenceCounter,
	logger *logrus.Logger,
) IncidentService {
	return &incidentService{
		repo:       repo,
		dispatcher: dispatcher,
		notifier:   notifier,
		presence:   presence,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateIncident создает инцидент и запускает рассылку волонтерам поблизости.
// Ошибка рассылки не отменяет создание: возвращается ErrDispatchIncomplete вместе с частичным результатом.
func (s *incidentService) CreateIncident(ctx context.Context, incident *models.Incident) (*models.DispatchResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "CreateIncident",
		"reporter_id": incident.ReporterID,
	})
	log.Info("Attempting to create a new incident")

	if incident.Priority == "" {
		incident.Priority = models.PriorityMedium
	}
	incident.Status = models.StatusOpen
	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	log = log.WithField("incident_id", incident.ID)
	log.Info("Incident created successfully")

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache created incident")
	}

	result, err := s.dispatcher.Dispatch(ctx, incident)
	if err != nil {
		log.WithError(err).Error("Dispatch finished with error")
		return result, fmt.Errorf("service: %w: %w", ErrDispatchIncomplete, err)
	}
	return result, nil
}

// GetIncident получает инцидент по ID: сначала из кеша, затем из БД
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID, actor auth.Identity) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Debug("Fetching incident by ID")

	incident, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident from cache")
	}
	if incident == nil {
		incident, err = s.repo.GetByID(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to get incident in repository")
			return nil, fmt.Errorf("service: could not get incident: %w", err)
		}
		if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to cache incident")
		}
	}

	if !canView(incident, actor) {
		log.WithField("user_id", actor.UserID).Warn("Access to incident denied")
		return nil, ErrForbidden
	}
	return incident, nil
}

// ListIncidents возвращает список инцидентов в зависимости от роли пользователя
func (s *incidentService) ListIncidents(ctx context.Context, actor auth.Identity, filter models.IncidentFilter, page, pageSize int) ([]*models.Incident, error) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	// область видимости определяется только ролью, а не параметрами запроса
	filter.ReporterID = nil
	filter.OpenOrAssigned = nil
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleVolunteer:
		filter.OpenOrAssigned = &actor.UserID
	default:
		filter.ReporterID = &actor.UserID
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "ListIncidents",
		"role":      actor.Role,
		"page":      page,
		"page_size": pageSize,
	})
	log.Debug("Listing incidents")

	incidents, err := s.repo.ListIncidents(ctx, filter, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Debug("Incidents listed successfully")
	return incidents, nil
}

// UpdateStatus меняет статус инцидента и уведомляет автора, если он в сети.
// Вернуть инцидент в open нельзя: переходы только в in_progress и resolved.
func (s *incidentService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actor auth.Identity) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateStatus",
		"incident_id": id,
		"status":      status,
	})

	if actor.Role != models.RoleVolunteer && actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	switch status {
	case models.StatusInProgress, models.StatusResolved:
	default:
		return nil, fmt.Errorf("service: %w: %q", ErrInvalidStatus, status)
	}

	incident, err := s.repo.TransitionStatus(ctx, id, status, actor.UserID, s.now().UTC())
	if err != nil {
		log.WithError(err).Warn("Failed to update incident status in repository")
		return nil, fmt.Errorf("service: could not update incident status: %w", err)
	}
	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}
	log.Info("Incident status updated")

	update := models.StatusUpdate{
		IncidentID: incident.ID,
		Status:     incident.Status,
		UpdatedBy:  actor.UserID,
		UpdatedAt:  incident.UpdatedAt,
	}
	if err := s.notifier.Notify(incident.ReporterID, models.EventIncidentStatusUpdate, update); err != nil {
		log.WithError(err).Debug("Reporter was not notified about status update")
	}
	return incident, nil
}

// GetNotifications возвращает журнал уведомлений по инциденту
func (s *incidentService) GetNotifications(ctx context.Context, id uuid.UUID, actor auth.Identity) ([]models.DispatchRecord, error) {
	if _, err := s.GetIncident(ctx, id, actor); err != nil {
		return nil, err
	}

	records, err := s.repo.GetDispatchLog(ctx, id)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":     "incident",
			"method":      "GetNotifications",
			"incident_id": id,
		}).WithError(err).Error("Failed to get dispatch log")
		return nil, fmt.Errorf("service: could not get notifications: %w", err)
	}
	return records, nil
}

// AddNote добавляет заметку к инциденту и уведомляет автора инцидента, если он в сети
func (s *incidentService) AddNote(ctx context.Context, id uuid.UUID, text string, actor auth.Identity) (*models.Note, error) {
	incident, err := s.GetIncident(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "AddNote",
		"incident_id": id,
		"user_id":     actor.UserID,
	})

	note := &models.Note{IncidentID: id, UserID: actor.UserID, Text: text}
	if err := s.repo.AddNote(ctx, note); err != nil {
		log.WithError(err).Error("Failed to add note in repository")
		return nil, fmt.Errorf("service: could not add note: %w", err)
	}
	log.Info("Note added to incident")

	payload := models.NoteAdded{IncidentID: id, Note: *note}
	if err := s.notifier.Notify(incident.ReporterID, models.EventIncidentNoteAdded, payload); err != nil {
		log.WithError(err).Debug("Reporter was not notified about new note")
	}
	return note, nil
}

// ListNotes возвращает заметки инцидента
func (s *incidentService) ListNotes(ctx context.Context, id uuid.UUID, actor auth.Identity) ([]models.Note, error) {
	if _, err := s.GetIncident(ctx, id, actor); err != nil {
		return nil, err
	}

	notes, err := s.repo.ListNotes(ctx, id)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":     "incident",
			"method":      "ListNotes",
			"incident_id": id,
		}).WithError(err).Error("Failed to list notes")
		return nil, fmt.Errorf("service: could not list notes: %w", err)
	}
	return notes, nil
}

// PresenceStats возвращает число пользователей в сети
func (s *incidentService) PresenceStats(_ context.Context) models.PresenceStats {
	return models.PresenceStats{Online: s.presence.Len()}
}

func canView(incident *models.Incident, actor auth.Identity) bool {
	if actor.Role == models.RoleVolunteer || actor.Role == models.RoleAdmin {
		return true
	}
	return incident.ReporterID == actor.UserID
}
