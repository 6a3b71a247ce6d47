package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
)

var (
	ErrEventNotFound = errors.New("event not found")

	// ErrEventCapacityReached is returned when a conditional counter update
	// matches no row because the event is already full.
	ErrEventCapacityReached = errors.New("event capacity reached")
)

type EventRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error)
	// GetForUpdate reads the event and takes a row lock. exec must be a transaction.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error)
	// AdjustAttendingCount adds delta to attending_count. A positive delta is
	// applied only while the capacity limit still allows it; a negative delta
	// never drives the counter below zero.
	AdjustAttendingCount(ctx context.Context, exec SQLExecutor, id int, delta int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const eventColumns = `id, host_id, title, capacity_limit, attending_count, is_private, created_at`

func (r *postgresEventRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.scanOne(ctx, r.getExecutor(exec), query, id)
}

func (r *postgresEventRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return r.scanOne(ctx, r.getExecutor(exec), query, id)
}

func (r *postgresEventRepository) scanOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Event, error) {
	var (
		e         models.Event
		capacity  sql.NullInt64
		attending sql.NullInt64
	)
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.HostID, &e.Title, &capacity, &attending, &e.IsPrivate, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	e.CapacityLimit = nullIntPtr(capacity)
	e.AttendingCount = nullIntPtr(attending)
	return &e, nil
}

func (r *postgresEventRepository) AdjustAttendingCount(ctx context.Context, exec SQLExecutor, id int, delta int) error {
	if delta == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	var query string
	if delta > 0 {
		query = `
			UPDATE events
			SET attending_count = COALESCE(attending_count, 0) + $2
			WHERE id = $1
			  AND (capacity_limit IS NULL OR COALESCE(attending_count, 0) + $2 <= capacity_limit)`
	} else {
		query = `
			UPDATE events
			SET attending_count = GREATEST(COALESCE(attending_count, 0) + $2, 0)
			WHERE id = $1`
	}

	result, err := executor.ExecContext(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust attending count for event %d: %w", id, err)
	}
	if delta > 0 {
		return checkAffectedRows(result, ErrEventCapacityReached)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
