package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	mailQueueKey = "mail_outbox"
)

// Job - письмо, ожидающее отправки воркером
type Job struct {
	ID         uuid.UUID `json:"id"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue ставит письма в очередь Redis. Для рассылки постановка в очередь и есть успешная отправка:
// доставку выполняет Worker.
type RedisQueue struct {
	redisClient *redis.Client
	key         string
}

// NewRedisQueue создает новую очередь писем
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		redisClient: client,
		key:         mailQueueKey,
	}
}

// Send публикует письмо в очередь
func (q *RedisQueue) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Job{
		ID:         uuid.New(),
		To:         to,
		Subject:    subject,
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}

	// LPUSH в голову, воркер забирает с хвоста BRPOP - получается FIFO
	if err := q.redisClient.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue mail job to Redis: %w", err)
	}
	return nil
}

// Len возвращает длину очереди
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.redisClient.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get mail queue length: %w", err)
	}
	return n, nil
}
