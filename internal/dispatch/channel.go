package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/neighbours_care/internal/mailer"
	"github.com/shenikar/neighbours_care/internal/models"
)

// EventIncidentNew - имя realtime-события о новом инциденте
const EventIncidentNew = "incident:new"

// Статусы результата доставки
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Outcome - результат доставки одному получателю
type Outcome struct {
	Recipient models.Candidate
	Channel   string
	Status    string
	Err       error
}

// Delivered сообщает, нужно ли записать получателя в журнал уведомлений
func (o Outcome) Delivered() bool {
	return o.Status == StatusDelivered
}

func (o Outcome) toModel() models.DeliveryOutcome {
	out := models.DeliveryOutcome{
		RecipientID: o.Recipient.ID,
		Channel:     o.Channel,
		Status:      o.Status,
	}
	if o.Err != nil {
		out.Reason = o.Err.Error()
	}
	return out
}

// Channel - способ доставки уведомления одному получателю
type Channel interface {
	Name() string
	Deliver(ctx context.Context, recipient models.Candidate, alert models.Alert) Outcome
}

// Mailer - внешний почтовый коллаборатор
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LivePush отправляет уведомление через подключение из реестра присутствия.
// Отправка без подтверждения: наличие живого подключения и есть гарантия доставки.
type LivePush struct {
	presence PresenceReader
	logger   *logrus.Logger
}

// NewLivePush создает канал realtime-доставки
func NewLivePush(presence PresenceReader, logger *logrus.Logger) *LivePush {
	return &LivePush{presence: presence, logger: logger}
}

func (p *LivePush) Name() string { return models.ChannelLivePush }

// Deliver отправляет alert получателю. Пропавшее подключение - мягкий отказ без повтора и без перехода на почту.
func (p *LivePush) Deliver(_ context.Context, recipient models.Candidate, alert models.Alert) Outcome {
	outcome := Outcome{Recipient: recipient, Channel: models.ChannelLivePush}

	entry, ok := p.presence.Lookup(recipient.ID)
	if !ok || entry.Conn == nil {
		outcome.Status = StatusSkipped
		outcome.Err = ErrRecipientUnreachable
		return outcome
	}

	if err := entry.Conn.Send(EventIncidentNew, alert); err != nil {
		p.logger.WithError(err).
			WithField("recipient_id", recipient.ID).
			Debug("Live push hand-off reported an error")
	}
	outcome.Status = StatusDelivered
	return outcome
}

// AsyncMail отправляет уведомление письмом через внешний почтовый сервис
type AsyncMail struct {
	mailer      Mailer
	frontendURL string
}

// NewAsyncMail создает почтовый канал
func NewAsyncMail(m Mailer, frontendURL string) *AsyncMail {
	return &AsyncMail{mailer: m, frontendURL: frontendURL}
}

func (m *AsyncMail) Name() string { return models.ChannelAsyncMail }

// Deliver отправляет письмо. Любая ошибка (включая таймаут) превращается в failed-результат.
func (m *AsyncMail) Deliver(ctx context.Context, recipient models.Candidate, alert models.Alert) Outcome {
	outcome := Outcome{Recipient: recipient, Channel: models.ChannelAsyncMail}

	if recipient.Email == "" {
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("%w: recipient has no email", ErrDeliveryFailed)
		return outcome
	}

	subject, body, err := mailer.ComposeIncidentAlert(alert, m.frontendURL)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		return outcome
	}

	if err := m.mailer.Send(ctx, recipient.Email, subject, body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome.Err = fmt.Errorf("%w: timed out: %v", ErrDeliveryFailed, err)
		} else {
			outcome.Err = fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		outcome.Status = StatusFailed
		return outcome
	}

	outcome.Status = StatusDelivered
	return outcome
}
