package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender не отправляет письма, а пишет их в лог. Используется, когда SMTP не настроен.
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender создает LogSender
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send логирует письмо
func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"size":    len(body),
	}).Info("Email notification (dev mode, not sent)")
	return nil
}
