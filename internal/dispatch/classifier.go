package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/presence"
)

// DefaultStalenessWindow - максимальный возраст сигнала присутствия, при котором получатель считается живым
const DefaultStalenessWindow = 5 * time.Minute

// PresenceReader - доступ к реестру присутствия только на чтение
type PresenceReader interface {
	Lookup(id uuid.UUID) (presence.Entry, bool)
}

// Classification - разбиение кандидатов на живых и неактивных
type Classification struct {
	Live  []models.Candidate
	Stale []models.Candidate
}

// Classifier решает, доступен ли кандидат для realtime-уведомления.
// Источник истины - реестр присутствия: поле LastSeen кандидата из БД не учитывается.
type Classifier struct {
	Window time.Duration
}

// Classify делит кандидатов по состоянию реестра на момент now.
// Повторы одного и того же кандидата отбрасываются, порядок первых вхождений сохраняется.
func (c Classifier) Classify(candidates []models.Candidate, reader PresenceReader, now time.Time) Classification {
	var result Classification
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seen[candidate.ID]; dup {
			continue
		}
		seen[candidate.ID] = struct{}{}

		if c.IsLive(candidate.ID, reader, now) {
			result.Live = append(result.Live, candidate)
		} else {
			result.Stale = append(result.Stale, candidate)
		}
	}
	return result
}

// IsLive сообщает, есть ли у пользователя свежая запись в реестре
func (c Classifier) IsLive(id uuid.UUID, reader PresenceReader, now time.Time) bool {
	entry, ok := reader.Lookup(id)
	if !ok {
		return false
	}
	return c.IsFresh(entry, now)
}

// IsFresh сообщает, не старше ли сигнал записи окна актуальности
func (c Classifier) IsFresh(entry presence.Entry, now time.Time) bool {
	window := c.Window
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	return now.Sub(entry.LastSeen) <= window
}
