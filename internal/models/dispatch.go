package models

import (
	"time"

	"github.com/google/uuid"
)

// Каналы доставки уведомлений
const (
	ChannelLivePush  = "live-push"
	ChannelAsyncMail = "async-mail"
)

// DispatchRecord - запись журнала уведомлений инцидента
type DispatchRecord struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Channel     string    `json:"channel"`
	NotifiedAt  time.Time `json:"notified_at"`
}

// DeliveryOutcome - результат попытки доставки одному получателю
type DeliveryOutcome struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
}

// DispatchResult - итог одного прогона рассылки по инциденту
type DispatchResult struct {
	IncidentID uuid.UUID         `json:"incident_id"`
	LiveCount  int               `json:"live_count"`
	StaleCount int               `json:"stale_count"`
	Records    []DispatchRecord  `json:"records"`
	Outcomes   []DeliveryOutcome `json:"outcomes"`
}
