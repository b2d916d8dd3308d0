package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/neighbours_care/internal/dispatch/mocks"
	"github.com/shenikar/neighbours_care/internal/geo"
	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/presence"
)

const metersPerDegreeLat = 111195.0

var dispatchNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type coordinatorFixture struct {
	finder   *mocks.MockCandidateFinder
	logs     *mocks.MockLogWriter
	mailer   *mocks.MockMailer
	registry *presence.Registry
}

func newFixture(t *testing.T) *coordinatorFixture {
	ctrl := gomock.NewController(t)
	return &coordinatorFixture{
		finder:   mocks.NewMockCandidateFinder(ctrl),
		logs:     mocks.NewMockLogWriter(ctrl),
		mailer:   mocks.NewMockMailer(ctrl),
		registry: presence.NewRegistry(presence.WithClock(func() time.Time { return dispatchNow })),
	}
}

func (f *coordinatorFixture) coordinator(cfg Config, opts ...Option) *Coordinator {
	return f.coordinatorWithReader(f.registry, cfg, opts...)
}

func (f *coordinatorFixture) coordinatorWithReader(reader PresenceReader, cfg Config, opts ...Option) *Coordinator {
	opts = append([]Option{WithClock(func() time.Time { return dispatchNow })}, opts...)
	return NewCoordinator(
		f.finder,
		f.logs,
		reader,
		NewLivePush(reader, silentLogger()),
		NewAsyncMail(f.mailer, "https://neighbours.example"),
		cfg,
		silentLogger(),
		opts...,
	)
}

func testIncident() *models.Incident {
	return &models.Incident{
		ID:          uuid.New(),
		Title:       "Elderly neighbour fell",
		Description: "Needs help getting up, door is open",
		Priority:    models.PriorityCritical,
		Latitude:    40,
		Longitude:   -74,
		CreatedAt:   dispatchNow,
	}
}

func candidateAt(incident *models.Incident, metersNorth float64, email string) models.Candidate {
	return models.Candidate{
		ID:        uuid.New(),
		Email:     email,
		Role:      models.RoleVolunteer,
		Latitude:  incident.Latitude + metersNorth/metersPerDegreeLat,
		Longitude: incident.Longitude,
	}
}

// radiusFinder ведет себя как геопоиск в хранилище: отдает только тех, кто внутри радиуса
func radiusFinder(all ...models.Candidate) func(context.Context, float64, float64, float64) ([]models.Candidate, error) {
	return func(_ context.Context, lat, lng, radius float64) ([]models.Candidate, error) {
		var found []models.Candidate
		for _, c := range all {
			if geo.Distance(lat, lng, c.Latitude, c.Longitude) <= radius {
				found = append(found, c)
			}
		}
		return found, nil
	}
}

func TestDispatch_LiveAndStaleWithinRadius(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()

	near := candidateAt(incident, 100, "near@example.com")
	mid := candidateAt(incident, 4000, "mid@example.com")
	far := candidateAt(incident, 9000, "far@example.com")

	conn := &recordingConn{}
	f.registry.Register(near.ID, models.RoleVolunteer, conn, nil)

	f.finder.EXPECT().
		FindVolunteersNear(gomock.Any(), 40.0, -74.0, DefaultRadiusMeters).
		DoAndReturn(radiusFinder(near, mid, far))
	f.mailer.EXPECT().
		Send(gomock.Any(), "mid@example.com", gomock.Any(), gomock.Any()).
		Return(nil)
	f.logs.EXPECT().
		SaveDispatchLog(gomock.Any(), incident.ID, []models.DispatchRecord{
			{RecipientID: near.ID, Channel: models.ChannelLivePush, NotifiedAt: dispatchNow},
			{RecipientID: mid.ID, Channel: models.ChannelAsyncMail, NotifiedAt: dispatchNow},
		}).
		Return(nil)

	result, err := f.coordinator(Config{}).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	assert.Equal(t, incident.ID, result.IncidentID)
	assert.Equal(t, 1, result.LiveCount)
	assert.Equal(t, 1, result.StaleCount)
	require.Len(t, result.Records, 2)
	for _, record := range result.Records {
		assert.NotEqual(t, far.ID, record.RecipientID)
	}

	events := conn.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventIncidentNew, events[0].event)
	alert, ok := events[0].payload.(models.Alert)
	require.True(t, ok)
	assert.Equal(t, incident.ID, alert.IncidentID)
	assert.Equal(t, models.Location{Latitude: 40, Longitude: -74}, alert.Location)
}

func TestDispatch_MailFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()

	a := candidateAt(incident, 500, "a@example.com")
	b := candidateAt(incident, 600, "b@example.com")
	c := candidateAt(incident, 700, "c@example.com")

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Candidate{a, b, c}, nil)
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, to, _, _ string) error {
			if to == "b@example.com" {
				return errors.New("mailbox unavailable")
			}
			return nil
		}).Times(3)
	f.logs.EXPECT().
		SaveDispatchLog(gomock.Any(), incident.ID, []models.DispatchRecord{
			{RecipientID: a.ID, Channel: models.ChannelAsyncMail, NotifiedAt: dispatchNow},
			{RecipientID: c.ID, Channel: models.ChannelAsyncMail, NotifiedAt: dispatchNow},
		}).
		Return(nil)

	result, err := f.coordinator(Config{}).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	assert.Equal(t, 0, result.LiveCount)
	assert.Equal(t, 3, result.StaleCount)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, StatusFailed, result.Outcomes[1].Status)
	assert.Contains(t, result.Outcomes[1].Reason, "mailbox unavailable")
}

func TestDispatch_QueryFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()
	f.registry.Register(uuid.New(), models.RoleVolunteer, &recordingConn{}, nil)

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	result, err := f.coordinator(Config{}).Dispatch(context.Background(), incident)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCandidateQueryFailed)
	require.NotNil(t, result)
	assert.Empty(t, result.Records)
	assert.Zero(t, result.LiveCount)
	assert.Zero(t, result.StaleCount)
}

func TestDispatch_QueryTimeout(t *testing.T) {
	f := newFixture(t)

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _, _ float64) ([]models.Candidate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err := f.coordinator(Config{CallTimeout: 20 * time.Millisecond}).Dispatch(context.Background(), testIncident())

	assert.ErrorIs(t, err, ErrCandidateQueryFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatch_MailTimeoutIsPerRecipient(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()

	slow := candidateAt(incident, 100, "slow@example.com")
	fast := candidateAt(incident, 200, "fast@example.com")

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Candidate{slow, fast}, nil)
	f.mailer.EXPECT().Send(gomock.Any(), "slow@example.com", gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		})
	f.mailer.EXPECT().Send(gomock.Any(), "fast@example.com", gomock.Any(), gomock.Any()).Return(nil)
	f.logs.EXPECT().
		SaveDispatchLog(gomock.Any(), incident.ID, []models.DispatchRecord{
			{RecipientID: fast.ID, Channel: models.ChannelAsyncMail, NotifiedAt: dispatchNow},
		}).
		Return(nil)

	result, err := f.coordinator(Config{CallTimeout: 30 * time.Millisecond}).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, StatusFailed, result.Outcomes[0].Status)
	assert.Contains(t, result.Outcomes[0].Reason, "timed out")
}

// vanishingReader отключает получателя сразу после того, как классификатор увидел его живым
type vanishingReader struct {
	registry *presence.Registry
	target   uuid.UUID
	once     sync.Once
}

func (r *vanishingReader) Lookup(id uuid.UUID) (presence.Entry, bool) {
	entry, ok := r.registry.Lookup(id)
	if id == r.target {
		r.once.Do(func() { r.registry.Unregister(id) })
	}
	return entry, ok
}

func TestDispatch_DisconnectAfterClassificationIsSkipped(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()

	leaving := candidateAt(incident, 100, "leaving@example.com")
	conn := &recordingConn{}
	f.registry.Register(leaving.ID, models.RoleVolunteer, conn, nil)
	reader := &vanishingReader{registry: f.registry, target: leaving.ID}

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Candidate{leaving}, nil)
	// ни письма, ни записи в журнал
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	result, err := f.coordinatorWithReader(reader, Config{}).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	assert.Equal(t, 1, result.LiveCount)
	assert.Equal(t, 0, result.StaleCount)
	assert.Empty(t, result.Records)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, StatusSkipped, result.Outcomes[0].Status)
	assert.Equal(t, models.ChannelLivePush, result.Outcomes[0].Channel)
	assert.Empty(t, conn.Events())
}

func TestDispatch_DuplicateCandidatesNotifiedOnce(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()
	dup := candidateAt(incident, 300, "dup@example.com")

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Candidate{dup, dup}, nil)
	f.mailer.EXPECT().Send(gomock.Any(), "dup@example.com", gomock.Any(), gomock.Any()).Return(nil).Times(1)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), incident.ID, gomock.Len(1)).Return(nil)

	result, err := f.coordinator(Config{}).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	assert.Equal(t, 1, result.StaleCount)
	assert.Len(t, result.Records, 1)
}

func TestDispatch_LogNotSavedKeepsResult(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()
	live := candidateAt(incident, 100, "live@example.com")
	f.registry.Register(live.ID, models.RoleVolunteer, &recordingConn{}, nil)

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Candidate{live}, nil)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), incident.ID, gomock.Len(1)).Return(errors.New("deadlock detected"))

	result, err := f.coordinator(Config{}).Dispatch(context.Background(), incident)

	assert.ErrorIs(t, err, ErrDispatchLogNotSaved)
	assert.NotErrorIs(t, err, ErrCandidateQueryFailed)
	require.NotNil(t, result)
	assert.Len(t, result.Records, 1)
}

func TestDispatch_NoCandidatesSkipsLogWrite(t *testing.T) {
	f := newFixture(t)

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	result, err := f.coordinator(Config{}).Dispatch(context.Background(), testIncident())

	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Outcomes)
}

func TestDispatch_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()
	stale := candidateAt(incident, 100, "stale@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _, _ float64) ([]models.Candidate, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []models.Candidate{stale}, nil
		})
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), incident.ID, gomock.Len(1)).Return(nil)

	_, err := f.coordinator(Config{}).Dispatch(ctx, incident)

	assert.NoError(t, err)
}

func TestDispatch_MailConcurrencyLimit(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()

	const recipients, limit = 12, 3
	candidates := make([]models.Candidate, recipients)
	for i := range candidates {
		candidates[i] = candidateAt(incident, float64(100+i), uuid.NewString()+"@example.com")
	}

	var inFlight, peak atomic.Int32
	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(candidates, nil)
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, string) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}).Times(recipients)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), incident.ID, gomock.Len(recipients)).Return(nil)

	result, err := f.coordinator(Config{MailConcurrency: limit}).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	// порядок записей совпадает с порядком кандидатов, несмотря на параллельную отправку
	for i, record := range result.Records {
		assert.Equal(t, candidates[i].ID, record.RecipientID)
	}
}

func TestDispatch_Metrics(t *testing.T) {
	f := newFixture(t)
	incident := testIncident()
	live := candidateAt(incident, 100, "live@example.com")
	f.registry.Register(live.ID, models.RoleVolunteer, &recordingConn{}, nil)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	f.finder.EXPECT().FindVolunteersNear(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Candidate{live}, nil)
	f.logs.EXPECT().SaveDispatchLog(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := f.coordinator(Config{}, WithMetrics(metrics)).Dispatch(context.Background(), incident)

	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues(models.ChannelLivePush, StatusDelivered)))
}
