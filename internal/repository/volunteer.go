package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shenikar/neighbours_care/internal/models"
)

// ErrUserNotFound - пользователя с таким id нет
var ErrUserNotFound = errors.New("user not found")

// UserRepository - координаты и время активности пользователей
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// FindVolunteersNear находит активных волонтеров с известными координатами в пределах radiusMeters
func (r *UserRepository) FindVolunteersNear(ctx context.Context, lat, lng, radiusMeters float64) ([]models.Candidate, error) {
	query := `
		SELECT
			id,
			name,
			email,
			role,
			ST_Y(location::geometry) as latitude,
			ST_X(location::geometry) as longitude,
			last_seen
		FROM users
		WHERE
			role = 'volunteer'
			AND is_active
			AND location IS NOT NULL
			AND ST_DWithin(
				location,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
				$3
			);
	`
	rows, err := r.db.Query(ctx, query, lng, lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to find volunteers by location: %w", err)
	}
	defer rows.Close()

	candidates := make([]models.Candidate, 0)
	for rows.Next() {
		var (
			c        models.Candidate
			lastSeen *time.Time
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Role, &c.Latitude, &c.Longitude, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer row: %w", err)
		}
		if lastSeen != nil {
			c.LastSeen = *lastSeen
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error volunteer iteration: %w", err)
	}
	return candidates, nil
}

// TouchLastSeen выставляет время последней активности пользователя
func (r *UserRepository) TouchLastSeen(ctx context.Context, userID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE users SET last_seen = NOW() WHERE id = $1;`, userID)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user with id %s: %w", userID, ErrUserNotFound)
	}
	return nil
}

// GetLocation возвращает сохраненные координаты пользователя или nil, если их нет
func (r *UserRepository) GetLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error) {
	query := `
		SELECT
			ST_Y(location::geometry) as latitude,
			ST_X(location::geometry) as longitude
		FROM users
		WHERE id = $1;
	`
	var lat, lng *float64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&lat, &lng); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user location: %w", err)
	}
	if lat == nil || lng == nil {
		return nil, nil
	}
	return &models.Location{Latitude: *lat, Longitude: *lng}, nil
}

// UpdateLocation сохраняет координаты пользователя
func (r *UserRepository) UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.Location) error {
	query := `
		UPDATE users SET
			location = ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			last_seen = NOW()
		WHERE id = $3;
	`
	cmdTag, err := r.db.Exec(ctx, query, loc.Longitude, loc.Latitude, userID)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user with id %s: %w", userID, ErrUserNotFound)
	}
	return nil
}

// ListActiveVolunteers возвращает всех активных волонтеров с флагом доступности
func (r *UserRepository) ListActiveVolunteers(ctx context.Context) ([]models.VolunteerAvailability, error) {
	query := `
		SELECT
			id,
			name,
			is_available,
			location IS NOT NULL as has_location,
			last_seen
		FROM users
		WHERE role = 'volunteer' AND is_active
		ORDER BY name, id;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	defer rows.Close()

	volunteers := make([]models.VolunteerAvailability, 0)
	for rows.Next() {
		var v models.VolunteerAvailability
		if err := rows.Scan(&v.ID, &v.Name, &v.IsAvailable, &v.HasLocation, &v.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer row: %w", err)
		}
		volunteers = append(volunteers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error volunteer iteration: %w", err)
	}
	return volunteers, nil
}

// ToggleAvailability инвертирует доступность волонтера и возвращает новое значение
func (r *UserRepository) ToggleAvailability(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE users SET
			is_available = NOT is_available,
			last_seen = NOW()
		WHERE id = $1 AND role = 'volunteer'
		RETURNING is_available;
	`
	var available bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("volunteer with id %s: %w", userID, ErrUserNotFound)
		}
		return false, fmt.Errorf("failed to toggle availability: %w", err)
	}
	return available, nil
}
