package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/neighbours_care/internal/dispatch/mocks"
	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/presence"
)

type sentEvent struct {
	event   string
	payload any
}

type recordingConn struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (c *recordingConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sentEvent{event: event, payload: payload})
	return c.err
}

func (c *recordingConn) Events() []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentEvent(nil), c.events...)
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testAlert() models.Alert {
	return models.NewAlert(&models.Incident{
		ID:          uuid.New(),
		Title:       "Flooded basement",
		Description: "Water is coming in fast",
		Priority:    models.PriorityHigh,
		Latitude:    40,
		Longitude:   -74,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
}

func TestLivePush_SendsAlertToRegisteredConn(t *testing.T) {
	registry := presence.NewRegistry()
	conn := &recordingConn{}
	recipient := models.Candidate{ID: uuid.New()}
	registry.Register(recipient.ID, models.RoleVolunteer, conn, nil)
	alert := testAlert()

	outcome := NewLivePush(registry, silentLogger()).Deliver(context.Background(), recipient, alert)

	assert.Equal(t, StatusDelivered, outcome.Status)
	assert.Equal(t, models.ChannelLivePush, outcome.Channel)
	assert.NoError(t, outcome.Err)
	events := conn.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventIncidentNew, events[0].event)
	assert.Equal(t, alert, events[0].payload)
}

func TestLivePush_MissingEntryIsSkipped(t *testing.T) {
	registry := presence.NewRegistry()

	outcome := NewLivePush(registry, silentLogger()).Deliver(context.Background(), models.Candidate{ID: uuid.New()}, testAlert())

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrRecipientUnreachable)
	assert.False(t, outcome.Delivered())
}

func TestLivePush_SendErrorStillCountsAsHandedOff(t *testing.T) {
	registry := presence.NewRegistry()
	conn := &recordingConn{err: errors.New("buffer full")}
	recipient := models.Candidate{ID: uuid.New()}
	registry.Register(recipient.ID, models.RoleVolunteer, conn, nil)

	outcome := NewLivePush(registry, silentLogger()).Deliver(context.Background(), recipient, testAlert())

	assert.True(t, outcome.Delivered())
	assert.Len(t, conn.Events(), 1)
}

func TestAsyncMail_Deliver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mailer := mocks.NewMockMailer(ctrl)
	channel := NewAsyncMail(mailer, "https://neighbours.example")
	alert := testAlert()
	recipient := models.Candidate{ID: uuid.New(), Email: "vol@example.com"}

	mailer.EXPECT().
		Send(gomock.Any(), "vol@example.com", "New Emergency Alert: Flooded basement", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, body string) error {
			assert.Contains(t, body, "https://neighbours.example/incidents/"+alert.IncidentID.String())
			return nil
		})

	outcome := channel.Deliver(context.Background(), recipient, alert)

	assert.Equal(t, StatusDelivered, outcome.Status)
	assert.Equal(t, models.ChannelAsyncMail, outcome.Channel)
}

func TestAsyncMail_SendErrorIsDeliveryFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mailer := mocks.NewMockMailer(ctrl)
	mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp: 550"))

	outcome := NewAsyncMail(mailer, "").Deliver(context.Background(), models.Candidate{ID: uuid.New(), Email: "a@b.c"}, testAlert())

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrDeliveryFailed)
	assert.Contains(t, outcome.Err.Error(), "smtp: 550")
}

func TestAsyncMail_NoEmailFailsWithoutSending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mailer := mocks.NewMockMailer(ctrl)

	outcome := NewAsyncMail(mailer, "").Deliver(context.Background(), models.Candidate{ID: uuid.New()}, testAlert())

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, ErrDeliveryFailed)
}
