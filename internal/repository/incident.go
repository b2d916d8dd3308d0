package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shenikar/neighbours_care/internal/models"
)

// ErrIncidentNotFound - инцидента с таким id нет
var ErrIncidentNotFound = errors.New("incident not found")

const incidentCacheTTL = 5 * time.Minute

const incidentColumns = `
			id,
			reporter_id,
			title,
			description,
			priority,
			status,
			address,
			ST_Y(location::geometry) as latitude,
			ST_X(location::geometry) as longitude,
			assigned_volunteer,
			response_time,
			resolved_at,
			created_at,
			updated_at`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client) *IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (reporter_id, title, description, priority, status, address, location)
		VALUES ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_MakePoint($7, $8), 4326))
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.ReporterID,
		incident.Title,
		incident.Description,
		incident.Priority,
		incident.Status,
		incident.Address,
		incident.Longitude,
		incident.Latitude,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT` + incidentColumns + `
		FROM incidents
		WHERE id = $1;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// TransitionStatus атомарно переводит инцидент в новый статус и возвращает его актуальное состояние.
// Время реакции и назначенный волонтер фиксируются только первым переходом в in_progress,
// время закрытия - только первым переходом в resolved. Поля читаются из строки под блокировкой UPDATE.
func (r *IncidentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID, at time.Time) (*models.Incident, error) {
	query := `
		UPDATE incidents SET
			status = $2::text,
			assigned_volunteer = CASE
				WHEN $2::text = 'in_progress' AND response_time IS NULL THEN $3::uuid
				ELSE assigned_volunteer
			END,
			response_time = CASE
				WHEN $2::text = 'in_progress' THEN COALESCE(response_time, $4::timestamptz)
				ELSE response_time
			END,
			resolved_at = CASE
				WHEN $2::text = 'resolved' THEN COALESCE(resolved_at, $4::timestamptz)
				ELSE resolved_at
			END,
			updated_at = $4::timestamptz
		WHERE id = $1
		RETURNING` + incidentColumns + `;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id, status, actorID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to update incident status: %w", err)
	}
	return incident, nil
}

// ListIncidents возвращает список инцидентов по фильтру с пагинацией
func (r *IncidentRepository) ListIncidents(ctx context.Context, filter models.IncidentFilter, page, pageSize int) ([]*models.Incident, error) {
	// рассчитываем смещение
	offset := (page - 1) * pageSize

	where, args := buildIncidentFilter(filter)
	args = append(args, pageSize, offset)

	query := `SELECT` + incidentColumns + `
		FROM incidents` + where + fmt.Sprintf(`
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d;`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

func buildIncidentFilter(filter models.IncidentFilter) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ReporterID != nil {
		conds = append(conds, "reporter_id = "+next(*filter.ReporterID))
	}
	if filter.OpenOrAssigned != nil {
		conds = append(conds, fmt.Sprintf("(status = '%s' OR assigned_volunteer = %s)", models.StatusOpen, next(*filter.OpenOrAssigned)))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+next(filter.Status))
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = "+next(filter.Priority))
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "created_at >= "+next(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "created_at <= "+next(*filter.CreatedTo))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	err := row.Scan(
		&incident.ID,
		&incident.ReporterID,
		&incident.Title,
		&incident.Description,
		&incident.Priority,
		&incident.Status,
		&incident.Address,
		&incident.Latitude,
		&incident.Longitude,
		&incident.AssignedVolunteer,
		&incident.ResponseTime,
		&incident.ResolvedAt,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

// SaveDispatchLog сохраняет журнал уведомлений одной командой в порядке записей.
// Повторная запись того же получателя по тому же инциденту игнорируется.
func (r *IncidentRepository) SaveDispatchLog(ctx context.Context, incidentID uuid.UUID, records []models.DispatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	recipients := make([]string, len(records))
	channels := make([]string, len(records))
	notifiedAt := make([]time.Time, len(records))
	for i, rec := range records {
		recipients[i] = rec.RecipientID.String()
		channels[i] = rec.Channel
		notifiedAt[i] = rec.NotifiedAt
	}

	query := `
		INSERT INTO incident_notifications (incident_id, recipient_id, channel, notified_at)
		SELECT $1, r.recipient_id, r.channel, r.notified_at
		FROM unnest($2::uuid[], $3::text[], $4::timestamptz[]) WITH ORDINALITY AS r(recipient_id, channel, notified_at, ord)
		ORDER BY r.ord
		ON CONFLICT (incident_id, recipient_id) DO NOTHING;
	`
	if _, err := r.db.Exec(ctx, query, incidentID, recipients, channels, notifiedAt); err != nil {
		return fmt.Errorf("failed to save dispatch log: %w", err)
	}
	return nil
}

// GetDispatchLog возвращает журнал уведомлений инцидента в порядке записи
func (r *IncidentRepository) GetDispatchLog(ctx context.Context, incidentID uuid.UUID) ([]models.DispatchRecord, error) {
	query := `
		SELECT recipient_id, channel, notified_at
		FROM incident_notifications
		WHERE incident_id = $1
		ORDER BY seq;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch log: %w", err)
	}
	defer rows.Close()

	records := make([]models.DispatchRecord, 0)
	for rows.Next() {
		var rec models.DispatchRecord
		if err := rows.Scan(&rec.RecipientID, &rec.Channel, &rec.NotifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch log row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error dispatch log iteration: %w", err)
	}
	return records, nil
}

// AddNote сохраняет заметку к инциденту
func (r *IncidentRepository) AddNote(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO incident_notes (incident_id, user_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query, note.IncidentID, note.UserID, note.Text).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add incident note: %w", err)
	}
	return nil
}

// ListNotes возвращает заметки инцидента от старых к новым
func (r *IncidentRepository) ListNotes(ctx context.Context, incidentID uuid.UUID) ([]models.Note, error) {
	query := `
		SELECT id, incident_id, user_id, text, created_at
		FROM incident_notes
		WHERE incident_id = $1
		ORDER BY created_at, id;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.IncidentID, &n.UserID, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error incident notes iteration: %w", err)
	}
	return notes, nil
}

// GetIncidentFromCache пытается получить инцидент из Redis
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	key := incidentCacheKey(id)
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache сохраняет инцидент в Redis
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, incidentCacheKey(incident.ID), val, incidentCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет инцидент из Redis кэша
func (r *IncidentRepository) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	if err := r.redisClient.Del(ctx, incidentCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}

func incidentCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s", id.String())
}
