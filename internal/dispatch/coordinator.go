// Package dispatch рассылает уведомления о новом инциденте волонтерам поблизости.
//
// Прогон проходит состояния Queried → Classified → Dispatching → Completed.
// Живым получателям уведомление уходит через подключение из реестра присутствия,
// остальным - письмом. Ошибка доставки одному получателю не влияет на остальных.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/shenikar/neighbours_care/internal/models"
)

// Значения по умолчанию
const (
	DefaultRadiusMeters    = 5000.0
	DefaultCallTimeout     = 10 * time.Second
	DefaultMailConcurrency = 4
)

// State - состояние прогона рассылки
type State string

const (
	StateQueried     State = "queried"
	StateClassified  State = "classified"
	StateDispatching State = "dispatching"
	StateCompleted   State = "completed"
)

// CandidateFinder - геопоиск волонтеров в постоянном хранилище
type CandidateFinder interface {
	FindVolunteersNear(ctx context.Context, lat, lng, radiusMeters float64) ([]models.Candidate, error)
}

// LogWriter сохраняет журнал уведомлений инцидента
type LogWriter interface {
	SaveDispatchLog(ctx context.Context, incidentID uuid.UUID, records []models.DispatchRecord) error
}

// Config - параметры рассылки
type Config struct {
	RadiusMeters    float64
	StalenessWindow time.Duration
	CallTimeout     time.Duration
	MailConcurrency int
}

func (c Config) withDefaults() Config {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = DefaultRadiusMeters
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = DefaultStalenessWindow
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MailConcurrency <= 0 {
		c.MailConcurrency = DefaultMailConcurrency
	}
	return c
}

// Coordinator выполняет прогоны рассылки. Реестр присутствия он только читает.
type Coordinator struct {
	finder     CandidateFinder
	logs       LogWriter
	presence   PresenceReader
	live       Channel
	mail       Channel
	classifier Classifier
	cfg        Config
	logger     *logrus.Logger
	metrics    *Metrics
	now        func() time.Time
}

// Option настраивает Coordinator
type Option func(*Coordinator)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics включает метрики
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator создает координатор рассылки
func NewCoordinator(
	finder CandidateFinder,
	logs LogWriter,
	presence PresenceReader,
	live Channel,
	mail Channel,
	cfg Config,
	logger *logrus.Logger,
	opts ...Option,
) *Coordinator {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		finder:     finder,
		logs:       logs,
		presence:   presence,
		live:       live,
		mail:       mail,
		classifier: Classifier{Window: cfg.StalenessWindow},
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch выполняет один прогон рассылки по инциденту.
// Результат возвращается всегда, даже частичный. Ошибка возможна только двух видов:
// ErrCandidateQueryFailed (уведомления не отправлялись) и ErrDispatchLogNotSaved.
func (c *Coordinator) Dispatch(ctx context.Context, incident *models.Incident) (*models.DispatchResult, error) {
	// внешняя отмена не прерывает прогон, его ограничивают только таймауты вызовов
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	log := c.logger.WithFields(logrus.Fields{
		"service":     "dispatch",
		"method":      "Dispatch",
		"incident_id": incident.ID,
	})
	result := &models.DispatchResult{
		IncidentID: incident.ID,
		Records:    make([]models.DispatchRecord, 0),
		Outcomes:   make([]models.DeliveryOutcome, 0),
	}

	candidates, err := c.queryCandidates(ctx, incident)
	if err != nil {
		log.WithError(err).Error("Failed to query nearby volunteers, dispatch skipped")
		c.metrics.observeRun("query_failed", time.Since(started))
		return result, fmt.Errorf("%w: %w", ErrCandidateQueryFailed, err)
	}
	log = log.WithField("state", StateQueried)
	log.WithField("candidates", len(candidates)).Debug("Nearby volunteers queried")

	classification := c.classifier.Classify(candidates, c.presence, c.now())
	result.LiveCount = len(classification.Live)
	result.StaleCount = len(classification.Stale)
	log = log.WithField("state", StateClassified)
	log.WithFields(logrus.Fields{
		"live":  result.LiveCount,
		"stale": result.StaleCount,
	}).Debug("Candidates classified")

	alert := models.NewAlert(incident)
	log = log.WithField("state", StateDispatching)

	for _, recipient := range classification.Live {
		c.settle(log, result, c.live.Deliver(ctx, recipient, alert))
	}
	for _, outcome := range c.deliverMail(ctx, classification.Stale, alert) {
		c.settle(log, result, outcome)
	}

	if err := c.persist(ctx, incident.ID, result.Records); err != nil {
		log.WithError(err).Error("Failed to save dispatch log")
		c.metrics.observeRun("log_not_saved", time.Since(started))
		return result, fmt.Errorf("%w: %w", ErrDispatchLogNotSaved, err)
	}

	log.WithField("state", StateCompleted).WithFields(logrus.Fields{
		"live":     result.LiveCount,
		"stale":    result.StaleCount,
		"notified": len(result.Records),
	}).Info("Dispatch completed")
	c.metrics.observeRun("completed", time.Since(started))
	return result, nil
}

func (c *Coordinator) queryCandidates(ctx context.Context, incident *models.Incident) ([]models.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.finder.FindVolunteersNear(ctx, incident.Latitude, incident.Longitude, c.cfg.RadiusMeters)
}

// deliverMail отправляет письма параллельно с ограничением; результаты идут в порядке stale
func (c *Coordinator) deliverMail(ctx context.Context, stale []models.Candidate, alert models.Alert) []Outcome {
	outcomes := make([]Outcome, len(stale))
	if len(stale) == 0 {
		return outcomes
	}

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MailConcurrency)
	for i, recipient := range stale {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
			defer cancel()
			outcomes[i] = c.mail.Deliver(callCtx, recipient, alert)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// settle фиксирует результат доставки; вызывается только из горутины прогона
func (c *Coordinator) settle(log *logrus.Entry, result *models.DispatchResult, outcome Outcome) {
	c.metrics.observeDelivery(outcome.Channel, outcome.Status)
	result.Outcomes = append(result.Outcomes, outcome.toModel())

	if !outcome.Delivered() {
		log.WithError(outcome.Err).WithFields(logrus.Fields{
			"recipient_id": outcome.Recipient.ID,
			"channel":      outcome.Channel,
			"status":       outcome.Status,
		}).Warn("Alert was not delivered to recipient")
		return
	}

	result.Records = append(result.Records, models.DispatchRecord{
		RecipientID: outcome.Recipient.ID,
		Channel:     outcome.Channel,
		NotifiedAt:  c.now(),
	})
}

func (c *Coordinator) persist(ctx context.Context, incidentID uuid.UUID, records []models.DispatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.logs.SaveDispatchLog(ctx, incidentID, records)
}
