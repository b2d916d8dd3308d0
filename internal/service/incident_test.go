package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/neighbours_care/internal/auth"
	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/service/mocks"
)

type serviceMocks struct {
	repo       *mocks.MockIncidentRepository
	dispatcher *mocks.MockDispatcher
	notifier   *mocks.MockStatusNotifier
	presence   *mocks.MockPresenceCounter
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (*incidentService, serviceMocks) {
	ctrl := gomock.NewController(t)
	m := serviceMocks{
		repo:       mocks.NewMockIncidentRepository(ctrl),
		dispatcher: mocks.NewMockDispatcher(ctrl),
		notifier:   mocks.NewMockStatusNotifier(ctrl),
		presence:   mocks.NewMockPresenceCounter(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := NewIncidentService(m.repo, m.dispatcher, m.notifier, m.presence, logger).(*incidentService)
	svc.now = func() time.Time { return fixedNow }
	return svc, m
}

func userActor(id uuid.UUID) auth.Identity {
	return auth.Identity{UserID: id, Role: models.RoleUser}
}

func volunteerActor() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Role: models.RoleVolunteer}
}

func TestCreateIncident_DefaultsAndDispatch(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incident := &models.Incident{
		ReporterID:  uuid.New(),
		Title:       "Power line down",
		Description: "A power line is down across the road",
		Latitude:    40,
		Longitude:   -74,
	}
	expected := &models.DispatchResult{LiveCount: 2, StaleCount: 1}

	// Ожидания
	m.repo.EXPECT().
		Create(ctx, incident).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			inc.ID = uuid.New()
			return nil
		})
	m.repo.EXPECT().SetIncidentCache(ctx, incident).Return(nil)
	m.dispatcher.EXPECT().Dispatch(ctx, incident).Return(expected, nil)

	// Действие
	result, err := service.CreateIncident(ctx, incident)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, result)
	assert.Equal(t, models.PriorityMedium, incident.Priority)
	assert.Equal(t, models.StatusOpen, incident.Status)
}

func TestCreateIncident_KeepsPriority(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incident := &models.Incident{ReporterID: uuid.New(), Priority: models.PriorityCritical, Status: models.StatusResolved}

	m.repo.EXPECT().Create(ctx, incident).Return(nil)
	m.repo.EXPECT().SetIncidentCache(ctx, incident).Return(errors.New("redis down"))
	m.dispatcher.EXPECT().Dispatch(ctx, incident).Return(&models.DispatchResult{}, nil)

	_, err := service.CreateIncident(ctx, incident)

	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, incident.Priority)
	assert.Equal(t, models.StatusOpen, incident.Status)
}

func TestCreateIncident_RepositoryError(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incident := &models.Incident{ReporterID: uuid.New()}

	m.repo.EXPECT().Create(ctx, incident).Return(errors.New("db is down"))
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Times(0)

	result, err := service.CreateIncident(ctx, incident)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.NotErrorIs(t, err, ErrDispatchIncomplete)
}

func TestCreateIncident_DispatchErrorKeepsIncident(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incident := &models.Incident{ReporterID: uuid.New()}
	partial := &models.DispatchResult{}
	dispatchErr := errors.New("candidate query failed")

	m.repo.EXPECT().Create(ctx, incident).Return(nil)
	m.repo.EXPECT().SetIncidentCache(ctx, incident).Return(nil)
	m.dispatcher.EXPECT().Dispatch(ctx, incident).Return(partial, dispatchErr)

	result, err := service.CreateIncident(ctx, incident)

	assert.ErrorIs(t, err, ErrDispatchIncomplete)
	assert.ErrorIs(t, err, dispatchErr)
	assert.Same(t, partial, result)
}

func TestGetIncident_Success_FromCache(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	reporter := uuid.New()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:         incidentID,
		ReporterID: reporter,
		Title:      "Тестовый инцидент из кеша",
	}

	// Ожидания
	m.repo.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(expectedIncident, nil).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID, userActor(reporter))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_Success_FromDB(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:         incidentID,
		ReporterID: uuid.New(),
		Title:      "Тестовый инцидент из БД",
	}

	// Ожидания
	// 1. Промах кеша
	m.repo.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(nil, nil).
		Times(1)

	// 2. Попадание в БД
	m.repo.EXPECT().
		GetByID(ctx, incidentID).
		Return(expectedIncident, nil).
		Times(1)

	// 3. Запись в кеш
	m.repo.EXPECT().
		SetIncidentCache(ctx, expectedIncident).
		Return(nil).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID, volunteerActor())

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_CacheErrorFallsBackToDB(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{ID: incidentID, ReporterID: uuid.New()}

	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(nil, errors.New("redis timeout"))
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(expectedIncident, nil)
	m.repo.EXPECT().SetIncidentCache(ctx, expectedIncident).Return(nil)

	incident, err := service.GetIncident(ctx, incidentID, volunteerActor())

	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_NotFound(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	dbError := fmt.Errorf("не найдено")

	// Ожидания
	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(nil, nil)
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(nil, dbError)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID, volunteerActor())

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, dbError)
}

func TestGetIncident_UserCannotSeeForeignIncident(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(&models.Incident{ID: incidentID, ReporterID: uuid.New()}, nil)

	incident, err := service.GetIncident(ctx, incidentID, userActor(uuid.New()))

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Nil(t, incident)
}

func TestListIncidents_ScopeByRole(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name  string
		actor auth.Identity
		check func(t *testing.T, filter models.IncidentFilter)
	}{
		{
			name:  "user sees own",
			actor: userActor(userID),
			check: func(t *testing.T, filter models.IncidentFilter) {
				require.NotNil(t, filter.ReporterID)
				assert.Equal(t, userID, *filter.ReporterID)
				assert.Nil(t, filter.OpenOrAssigned)
			},
		},
		{
			name:  "volunteer sees open and assigned",
			actor: auth.Identity{UserID: userID, Role: models.RoleVolunteer},
			check: func(t *testing.T, filter models.IncidentFilter) {
				require.NotNil(t, filter.OpenOrAssigned)
				assert.Equal(t, userID, *filter.OpenOrAssigned)
				assert.Nil(t, filter.ReporterID)
			},
		},
		{
			name:  "admin sees all",
			actor: auth.Identity{UserID: userID, Role: models.RoleAdmin},
			check: func(t *testing.T, filter models.IncidentFilter) {
				assert.Nil(t, filter.ReporterID)
				assert.Nil(t, filter.OpenOrAssigned)
				assert.Equal(t, models.PriorityHigh, filter.Priority)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := newTestIncidentService(t)
			foreign := uuid.New()

			m.repo.EXPECT().
				ListIncidents(ctx, gomock.Any(), 1, 20).
				DoAndReturn(func(_ context.Context, filter models.IncidentFilter, _, _ int) ([]*models.Incident, error) {
					tt.check(t, filter)
					return []*models.Incident{}, nil
				})

			// переданный клиентом ReporterID не расширяет область видимости
			_, err := service.ListIncidents(ctx, tt.actor, models.IncidentFilter{ReporterID: &foreign, Priority: models.PriorityHigh}, 0, 500)
			require.NoError(t, err)
		})
	}
}

func TestUpdateStatus_InProgressNotifiesReporter(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	actor := volunteerActor()
	reporter := uuid.New()
	incidentID := uuid.New()
	assigned := actor.UserID
	stored := &models.Incident{
		ID:                incidentID,
		ReporterID:        reporter,
		Status:            models.StatusInProgress,
		AssignedVolunteer: &assigned,
		ResponseTime:      &fixedNow,
		UpdatedAt:         fixedNow,
	}

	m.repo.EXPECT().TransitionStatus(ctx, incidentID, models.StatusInProgress, actor.UserID, fixedNow).Return(stored, nil)
	m.repo.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil)
	m.notifier.EXPECT().
		Notify(reporter, models.EventIncidentStatusUpdate, models.StatusUpdate{
			IncidentID: incidentID,
			Status:     models.StatusInProgress,
			UpdatedBy:  actor.UserID,
			UpdatedAt:  fixedNow,
		}).
		Return(errors.New("session is closed"))

	updated, err := service.UpdateStatus(ctx, incidentID, models.StatusInProgress, actor)

	require.NoError(t, err)
	assert.Same(t, stored, updated)
}

func TestUpdateStatus_KeepsFirstResponder(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	second := volunteerActor()
	first := uuid.New()
	firstResponse := fixedNow.Add(-time.Hour)
	incidentID := uuid.New()
	reporter := uuid.New()

	// хранилище возвращает назначение первого волонтера, сервис его не перезаписывает
	m.repo.EXPECT().
		TransitionStatus(ctx, incidentID, models.StatusInProgress, second.UserID, fixedNow).
		Return(&models.Incident{
			ID:                incidentID,
			ReporterID:        reporter,
			Status:            models.StatusInProgress,
			AssignedVolunteer: &first,
			ResponseTime:      &firstResponse,
			UpdatedAt:         fixedNow,
		}, nil)
	m.repo.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil)
	m.notifier.EXPECT().Notify(reporter, models.EventIncidentStatusUpdate, gomock.Any()).Return(nil)

	updated, err := service.UpdateStatus(ctx, incidentID, models.StatusInProgress, second)

	require.NoError(t, err)
	assert.Equal(t, first, *updated.AssignedVolunteer)
	assert.Equal(t, firstResponse, *updated.ResponseTime)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("user role", func(t *testing.T) {
		service, _ := newTestIncidentService(t)
		_, err := service.UpdateStatus(ctx, uuid.New(), models.StatusResolved, userActor(uuid.New()))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown status", func(t *testing.T) {
		service, _ := newTestIncidentService(t)
		_, err := service.UpdateStatus(ctx, uuid.New(), "closed", volunteerActor())
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("reopen is not allowed", func(t *testing.T) {
		service, m := newTestIncidentService(t)
		m.repo.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := service.UpdateStatus(ctx, uuid.New(), models.StatusOpen, auth.Identity{UserID: uuid.New(), Role: models.RoleAdmin})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("missing incident", func(t *testing.T) {
		service, m := newTestIncidentService(t)
		notFound := errors.New("incident not found")
		id := uuid.New()
		m.repo.EXPECT().TransitionStatus(ctx, id, models.StatusResolved, gomock.Any(), fixedNow).Return(nil, notFound)
		m.repo.EXPECT().InvalidateIncidentCache(gomock.Any(), gomock.Any()).Times(0)

		_, err := service.UpdateStatus(ctx, id, models.StatusResolved, volunteerActor())
		assert.ErrorIs(t, err, notFound)
	})
}

func TestGetNotifications(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	reporter := uuid.New()
	incidentID := uuid.New()
	records := []models.DispatchRecord{{RecipientID: uuid.New(), Channel: models.ChannelLivePush, NotifiedAt: fixedNow}}

	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(&models.Incident{ID: incidentID, ReporterID: reporter}, nil)
	m.repo.EXPECT().GetDispatchLog(ctx, incidentID).Return(records, nil)

	got, err := service.GetNotifications(ctx, incidentID, userActor(reporter))

	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestAddNote_NotifiesReporter(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	actor := volunteerActor()
	reporter := uuid.New()
	incidentID := uuid.New()
	noteID := uuid.New()

	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(&models.Incident{ID: incidentID, ReporterID: reporter}, nil)
	m.repo.EXPECT().
		AddNote(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, note *models.Note) error {
			assert.Equal(t, incidentID, note.IncidentID)
			assert.Equal(t, actor.UserID, note.UserID)
			note.ID = noteID
			note.CreatedAt = fixedNow
			return nil
		})
	expected := models.Note{ID: noteID, IncidentID: incidentID, UserID: actor.UserID, Text: "On my way", CreatedAt: fixedNow}
	m.notifier.EXPECT().
		Notify(reporter, models.EventIncidentNoteAdded, models.NoteAdded{IncidentID: incidentID, Note: expected}).
		Return(errors.New("session is closed"))

	note, err := service.AddNote(ctx, incidentID, "On my way", actor)

	require.NoError(t, err)
	assert.Equal(t, expected, *note)
}

func TestAddNote_ForeignIncidentForbidden(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(&models.Incident{ID: incidentID, ReporterID: uuid.New()}, nil)
	m.repo.EXPECT().AddNote(gomock.Any(), gomock.Any()).Times(0)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := service.AddNote(ctx, incidentID, "hello", userActor(uuid.New()))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListNotes(t *testing.T) {
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	reporter := uuid.New()
	incidentID := uuid.New()
	notes := []models.Note{{ID: uuid.New(), IncidentID: incidentID, UserID: reporter, Text: "Thanks"}}

	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(&models.Incident{ID: incidentID, ReporterID: reporter}, nil)
	m.repo.EXPECT().ListNotes(ctx, incidentID).Return(notes, nil)

	got, err := service.ListNotes(ctx, incidentID, userActor(reporter))

	require.NoError(t, err)
	assert.Equal(t, notes, got)
}

func TestPresenceStats(t *testing.T) {
	service, m := newTestIncidentService(t)
	m.presence.EXPECT().Len().Return(7)

	assert.Equal(t, models.PresenceStats{Online: 7}, service.PresenceStats(context.Background()))
}
