// Package presence хранит реестр активных realtime-подключений пользователей.
//
// Реестр разбит на бакеты, каждый со своим RWMutex: обновления координат одного
// пользователя не блокируют чтение и запись других. Каждая операция атомарна
// в пределах одного идентификатора, читатели получают копию записи.
package presence

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/shenikar/neighbours_care/internal/geo"
	"github.com/shenikar/neighbours_care/internal/models"
)

const defaultBuckets = 32

// Conn - непрозрачный дескриптор подключения, через который реестр адресует push.
type Conn interface {
	Send(event string, payload any) error
}

// Entry - снимок записи реестра
type Entry struct {
	UserID      uuid.UUID
	Role        string
	Conn        Conn
	Location    *models.Location
	LastSeen    time.Time
	ConnectedAt time.Time
}

// NearbyEntry - запись реестра с расстоянием до точки
type NearbyEntry struct {
	Entry
	Distance float64
}

type bucket struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
}

// Registry - потокобезопасный реестр присутствия
type Registry struct {
	buckets []*bucket
	now     func() time.Time
}

// Option настраивает Registry
type Option func(*Registry)

// WithBuckets задает количество бакетов
func WithBuckets(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buckets = newBuckets(n)
		}
	}
}

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry создает пустой реестр
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		buckets: newBuckets(defaultBuckets),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newBuckets(n int) []*bucket {
	buckets := make([]*bucket, n)
	for i := range buckets {
		buckets[i] = &bucket{entries: make(map[uuid.UUID]*Entry)}
	}
	return buckets
}

func (r *Registry) bucketFor(id uuid.UUID) *bucket {
	return r.buckets[xxhash.Sum64(id[:])%uint64(len(r.buckets))]
}

// Register добавляет или атомарно заменяет запись пользователя.
// Возвращает дескриптор предыдущего подключения (если был); закрывать его - забота вызывающего.
func (r *Registry) Register(id uuid.UUID, role string, conn Conn, initial *models.Location) (Conn, bool) {
	now := r.now()
	entry := &Entry{
		UserID:      id,
		Role:        role,
		Conn:        conn,
		Location:    copyLocation(initial),
		LastSeen:    now,
		ConnectedAt: now,
	}

	b := r.bucketFor(id)
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.entries[id]
	b.entries[id] = entry
	if !ok {
		return nil, false
	}
	return prev.Conn, true
}

// UpdateLocation обновляет координаты и время активности.
// Если записи нет (пользователь уже отключился), ничего не делает и возвращает false.
func (r *Registry) UpdateLocation(id uuid.UUID, loc models.Location) bool {
	b := r.bucketFor(id)
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[id]
	if !ok {
		return false
	}
	// запись заменяется целиком, чтобы ранее выданные снимки не менялись
	updated := *entry
	updated.Location = &models.Location{Latitude: loc.Latitude, Longitude: loc.Longitude}
	updated.LastSeen = r.now()
	b.entries[id] = &updated
	return true
}

// Touch продлевает время активности без смены координат. Отсутствующую запись не создает.
func (r *Registry) Touch(id uuid.UUID) bool {
	b := r.bucketFor(id)
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[id]
	if !ok {
		return false
	}
	updated := *entry
	updated.LastSeen = r.now()
	b.entries[id] = &updated
	return true
}

// Unregister удаляет запись. Повторный вызов не является ошибкой.
func (r *Registry) Unregister(id uuid.UUID) {
	b := r.bucketFor(id)
	b.mu.Lock()
	delete(b.entries, id)
	b.mu.Unlock()
}

// UnregisterConn удаляет запись только если она принадлежит conn.
// Так запоздалое отключение замененной сессии не вытесняет новую.
func (r *Registry) UnregisterConn(id uuid.UUID, conn Conn) bool {
	b := r.bucketFor(id)
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[id]
	if !ok || entry.Conn != conn {
		return false
	}
	delete(b.entries, id)
	return true
}

// Lookup возвращает копию записи
func (r *Registry) Lookup(id uuid.UUID) (Entry, bool) {
	b := r.bucketFor(id)
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[id]
	if !ok {
		return Entry{}, false
	}
	return snapshot(entry), true
}

// Len возвращает количество активных подключений
func (r *Registry) Len() int {
	n := 0
	for _, b := range r.buckets {
		b.mu.RLock()
		n += len(b.entries)
		b.mu.RUnlock()
	}
	return n
}

// Entries возвращает копии всех записей. Бакеты читаются по очереди.
func (r *Registry) Entries() []Entry {
	var result []Entry
	for _, b := range r.buckets {
		b.mu.RLock()
		for _, entry := range b.entries {
			result = append(result, snapshot(entry))
		}
		b.mu.RUnlock()
	}
	return result
}

// Nearby возвращает подключенных пользователей с известными координатами в пределах radius метров.
// Бакеты читаются по очереди, поэтому результат не является единым снимком всего реестра.
func (r *Registry) Nearby(lat, lng, radius float64) []NearbyEntry {
	var result []NearbyEntry
	for _, b := range r.buckets {
		b.mu.RLock()
		for _, entry := range b.entries {
			if entry.Location == nil {
				continue
			}
			if !geo.Within(lat, lng, entry.Location.Latitude, entry.Location.Longitude, radius) {
				continue
			}
			result = append(result, NearbyEntry{
				Entry:    snapshot(entry),
				Distance: geo.Distance(lat, lng, entry.Location.Latitude, entry.Location.Longitude),
			})
		}
		b.mu.RUnlock()
	}
	return result
}

func snapshot(entry *Entry) Entry {
	cp := *entry
	cp.Location = copyLocation(entry.Location)
	return cp
}

func copyLocation(loc *models.Location) *models.Location {
	if loc == nil {
		return nil
	}
	cp := *loc
	return &cp
}
