package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sender доставляет письмо получателю
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// WorkerConfig - параметры воркера очереди писем
type WorkerConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	SendTimeout time.Duration
}

// Worker забирает письма из очереди Redis и отправляет их через Sender
type Worker struct {
	redisClient *redis.Client
	sender      Sender
	logger      *logrus.Logger
	cfg         WorkerConfig
	key         string
	wg          sync.WaitGroup
	sleep       func(ctx context.Context, d time.Duration) bool
}

// NewWorker создает новый Worker
func NewWorker(redisClient *redis.Client, sender Sender, logger *logrus.Logger, cfg WorkerConfig) *Worker {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Worker{
		redisClient: redisClient,
		sender:      sender,
		logger:      logger,
		cfg:         cfg,
		key:         mailQueueKey,
		sleep:       sleepContext,
	}
}

// Start запускает горутину обработки очереди писем
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting mail worker...")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping mail worker.")
				return
			default:
				// 0 - бесконечное ожидание, выход по отмене контекста
				result, err := w.redisClient.BRPop(ctx, 0, w.key).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) || ctx.Err() != nil {
						continue
					}
					w.logger.WithError(err).Error("Failed to pop mail job from Redis")
					w.sleep(ctx, w.cfg.BaseDelay)
					continue
				}

				// result[0] - ключ, result[1] - значение
				var job Job
				if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal mail job from Redis")
					continue
				}

				if err := w.processJob(ctx, job); err != nil {
					w.logger.WithError(err).WithField("job_id", job.ID).Error("Mail job dropped")
				}
			}
		}
	}()
}

// Wait ждет завершения горутины воркера
func (w *Worker) Wait() {
	w.wg.Wait()
}

// processJob отправляет письмо с повторами и экспоненциальной задержкой
func (w *Worker) processJob(ctx context.Context, job Job) error {
	log := w.logger.WithField("job_id", job.ID)
	log.Debug("Processing mail job...")

	delay := w.cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
		lastErr = w.sender.Send(sendCtx, job.To, job.Subject, job.Body)
		cancel()
		if lastErr == nil {
			log.WithField("attempt", attempt).Info("Mail delivered successfully.")
			return nil
		}

		if attempt == w.cfg.MaxRetries {
			break
		}
		log.WithError(lastErr).Warnf("Failed to send mail. Retrying in %v. Retries left: %d", delay, w.cfg.MaxRetries-attempt)
		if !w.sleep(ctx, delay) {
			return fmt.Errorf("mail worker stopped: %w", ctx.Err())
		}
		delay *= 2
	}
	return fmt.Errorf("failed to deliver mail after %d attempts: %w", w.cfg.MaxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
