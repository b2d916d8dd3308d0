package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/neighbours_care/internal/auth"
	"github.com/shenikar/neighbours_care/internal/dispatch"
	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/presence"
	"github.com/shenikar/neighbours_care/internal/service/mocks"
)

func newTestVolunteerService(t *testing.T) (*volunteerService, *mocks.MockVolunteerRepository, *mocks.MockPresenceDirectory) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockVolunteerRepository(ctrl)
	directory := mocks.NewMockPresenceDirectory(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	svc := NewVolunteerService(repo, directory, 5*time.Minute, logger).(*volunteerService)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, directory
}

func TestAvailability_StatusFromRegistry(t *testing.T) {
	service, repo, directory := newTestVolunteerService(t)
	ctx := context.Background()
	online := uuid.New()
	away := uuid.New()
	disabled := uuid.New()
	staleSession := uuid.New()
	recent := fixedNow.Add(-time.Minute)

	repo.EXPECT().ListActiveVolunteers(ctx).Return([]models.VolunteerAvailability{
		{ID: online, Name: "Anna", IsAvailable: true},
		// свежий last_seen в БД без сессии в реестре не считается онлайн
		{ID: away, Name: "Boris", IsAvailable: true, LastSeen: &recent},
		{ID: disabled, Name: "Vera", IsAvailable: false},
		{ID: staleSession, Name: "Gleb", IsAvailable: true},
	}, nil)
	directory.EXPECT().Lookup(online).Return(presence.Entry{UserID: online, LastSeen: recent}, true)
	directory.EXPECT().Lookup(away).Return(presence.Entry{}, false)
	directory.EXPECT().Lookup(disabled).Return(presence.Entry{UserID: disabled, LastSeen: recent}, true)
	directory.EXPECT().Lookup(staleSession).Return(presence.Entry{UserID: staleSession, LastSeen: fixedNow.Add(-10 * time.Minute)}, true)

	report, err := service.Availability(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.AvailabilitySummary{Total: 4, Available: 1, Offline: 2, Unavailable: 1}, report.Summary)
	statuses := make(map[uuid.UUID]string)
	for _, v := range report.Volunteers {
		statuses[v.ID] = v.Status
	}
	assert.Equal(t, models.AvailabilityAvailable, statuses[online])
	assert.Equal(t, models.AvailabilityOffline, statuses[away])
	assert.Equal(t, models.AvailabilityUnavailable, statuses[disabled])
	assert.Equal(t, models.AvailabilityOffline, statuses[staleSession])
	assert.True(t, report.Volunteers[2].IsOnline)
}

func TestAvailability_RepositoryError(t *testing.T) {
	service, repo, _ := newTestVolunteerService(t)
	dbErr := errors.New("db is down")
	repo.EXPECT().ListActiveVolunteers(gomock.Any()).Return(nil, dbErr)

	report, err := service.Availability(context.Background())

	assert.ErrorIs(t, err, dbErr)
	assert.Nil(t, report)
}

func TestToggleAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("volunteer", func(t *testing.T) {
		service, repo, _ := newTestVolunteerService(t)
		actor := volunteerActor()
		repo.EXPECT().ToggleAvailability(ctx, actor.UserID).Return(false, nil)

		available, err := service.ToggleAvailability(ctx, actor)

		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("only volunteers", func(t *testing.T) {
		for _, role := range []string{models.RoleUser, models.RoleAdmin} {
			service, repo, _ := newTestVolunteerService(t)
			repo.EXPECT().ToggleAvailability(gomock.Any(), gomock.Any()).Times(0)

			_, err := service.ToggleAvailability(ctx, auth.Identity{UserID: uuid.New(), Role: role})
			assert.ErrorIs(t, err, ErrForbidden, role)
		}
	})
}

func TestNearbyOnline_FiltersAndSorts(t *testing.T) {
	service, _, directory := newTestVolunteerService(t)
	ctx := context.Background()
	closer := uuid.New()
	farther := uuid.New()
	loc := &models.Location{Latitude: 40, Longitude: -74}
	fresh := fixedNow.Add(-time.Minute)

	directory.EXPECT().Nearby(40.0, -74.0, 1500.0).Return([]presence.NearbyEntry{
		{Entry: presence.Entry{UserID: farther, Role: models.RoleVolunteer, Location: loc, LastSeen: fresh}, Distance: 900},
		{Entry: presence.Entry{UserID: uuid.New(), Role: models.RoleUser, Location: loc, LastSeen: fresh}, Distance: 10},
		{Entry: presence.Entry{UserID: uuid.New(), Role: models.RoleVolunteer, Location: loc, LastSeen: fixedNow.Add(-time.Hour)}, Distance: 20},
		{Entry: presence.Entry{UserID: closer, Role: models.RoleVolunteer, Location: loc, LastSeen: fresh}, Distance: 300},
	})

	result, err := service.NearbyOnline(ctx, 40, -74, 1500)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, closer, result[0].UserID)
	assert.Equal(t, farther, result[1].UserID)
	assert.Equal(t, 300.0, result[0].Distance)
	assert.Equal(t, *loc, result[0].Location)
}

func TestNearbyOnline_DefaultRadiusAndValidation(t *testing.T) {
	service, _, directory := newTestVolunteerService(t)
	ctx := context.Background()

	directory.EXPECT().Nearby(10.0, 20.0, dispatch.DefaultRadiusMeters).Return(nil)
	result, err := service.NearbyOnline(ctx, 10, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, result)

	_, err = service.NearbyOnline(ctx, 91, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidLocation)
}
