package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/moviehub/notify/internal/database"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
)

// CreatePeriodic is the write shape for recurring records.
type CreatePeriodic struct {
	StaffID               uuid.UUID
	TemplateID            uuid.UUID
	ChannelType           models.ChannelType
	EventType             models.EventType
	CronSchedule          string
	NextRunTime           time.Time
	StopDate              *time.Time
	Context               models.JSONMap
	SubscriberQueryType   string
	SubscriberQueryParams models.JSONMap
}

// UpdatePeriodic carries the mutable fields; nil keeps the stored value.
// NextRunTime must accompany a cron schedule change.
type UpdatePeriodic struct {
	TemplateID            *uuid.UUID
	ChannelType           *models.ChannelType
	EventType             *models.EventType
	CronSchedule          *string
	NextRunTime           *time.Time
	IsActive              *bool
	StopDate              *time.Time
	Context               models.JSONMap
	SubscriberQueryType   *string
	SubscriberQueryParams models.JSONMap
}

// PeriodicRepository stores recurring notification records.
type PeriodicRepository interface {
	Create(ctx context.Context, in CreatePeriodic) (*models.PeriodicNotification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PeriodicNotification, error)
	Update(ctx context.Context, id uuid.UUID, in UpdatePeriodic) (*models.PeriodicNotification, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, skip, limit int) ([]*models.PeriodicNotification, error)
	GetPending(ctx context.Context, now time.Time, limit int) ([]*models.PeriodicNotification, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID, activeOnly bool) ([]*models.PeriodicNotification, error)
	UpdateRunTime(ctx context.Context, id uuid.UUID, lastRun, nextRun time.Time) error
}

type PostgresPeriodicRepository struct {
	db *sql.DB
}

func NewPeriodicRepository(db *sql.DB) *PostgresPeriodicRepository {
	return &PostgresPeriodicRepository{db: db}
}

const periodicColumns = `id, staff_id, template_id, channel_type, event_type, cron_schedule,
	last_run_time, next_run_time, is_active, context, stop_date,
	subscriber_query_type, subscriber_query_params, created_at, updated_at`

func (r *PostgresPeriodicRepository) Create(ctx context.Context, in CreatePeriodic) (*models.PeriodicNotification, error) {
	query := `
		INSERT INTO periodic_notifications (
			id, staff_id, template_id, channel_type, event_type, cron_schedule,
			next_run_time, is_active, context, stop_date,
			subscriber_query_type, subscriber_query_params, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, $10, $11, $12, $12)
		RETURNING ` + periodicColumns

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, query,
		uuid.New(), in.StaffID, in.TemplateID, in.ChannelType, in.EventType,
		in.CronSchedule, in.NextRunTime.UTC(), in.Context, in.StopDate,
		in.SubscriberQueryType, in.SubscriberQueryParams, now,
	)

	n, err := scanPeriodic(row)
	if err != nil {
		return nil, translateError(err)
	}
	return n, nil
}

func (r *PostgresPeriodicRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PeriodicNotification, error) {
	query := `SELECT ` + periodicColumns + ` FROM periodic_notifications WHERE id = $1`

	n, err := scanPeriodic(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Periodic notification")
		}
		return nil, fmt.Errorf("failed to get periodic notification: %w", err)
	}
	return n, nil
}

func (r *PostgresPeriodicRepository) Update(ctx context.Context, id uuid.UUID, in UpdatePeriodic) (*models.PeriodicNotification, error) {
	query := `
		UPDATE periodic_notifications
		SET template_id = COALESCE($2, template_id),
			channel_type = COALESCE($3, channel_type),
			event_type = COALESCE($4, event_type),
			cron_schedule = COALESCE($5, cron_schedule),
			next_run_time = COALESCE($6, next_run_time),
			is_active = COALESCE($7, is_active),
			stop_date = COALESCE($8, stop_date),
			context = COALESCE($9, context),
			subscriber_query_type = COALESCE($10, subscriber_query_type),
			subscriber_query_params = COALESCE($11, subscriber_query_params),
			updated_at = $12
		WHERE id = $1
		RETURNING ` + periodicColumns

	row := r.db.QueryRowContext(ctx, query,
		id, in.TemplateID, in.ChannelType, in.EventType, in.CronSchedule,
		in.NextRunTime, in.IsActive, in.StopDate, in.Context,
		in.SubscriberQueryType, in.SubscriberQueryParams, time.Now().UTC(),
	)

	n, err := scanPeriodic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Periodic notification")
		}
		return nil, translateError(err)
	}
	return n, nil
}

func (r *PostgresPeriodicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM periodic_notifications WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.NotFound("Periodic notification")
	}
	return nil
}

func (r *PostgresPeriodicRepository) List(ctx context.Context, skip, limit int) ([]*models.PeriodicNotification, error) {
	skip, limit = normalizeRange(skip, limit)

	query := `SELECT ` + periodicColumns + ` FROM periodic_notifications
		ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	return r.queryMany(ctx, r.db, query, skip, limit)
}

// GetPending first retires records whose stop date has passed, then returns
// the active ones due at or before now. Both statements run in one
// transaction so an expired record can never be picked up by a concurrent
// tick.
func (r *PostgresPeriodicRepository) GetPending(ctx context.Context, now time.Time, limit int) ([]*models.PeriodicNotification, error) {
	_, limit = normalizeRange(0, limit)
	now = now.UTC()

	deactivate := `UPDATE periodic_notifications
		SET is_active = false, updated_at = $1
		WHERE is_active = true AND stop_date IS NOT NULL AND stop_date <= $1`

	query := `SELECT ` + periodicColumns + ` FROM periodic_notifications
		WHERE is_active = true AND next_run_time <= $1
		ORDER BY next_run_time, id
		LIMIT $2`

	var records []*models.PeriodicNotification
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deactivate, now); err != nil {
			return fmt.Errorf("failed to deactivate expired periodic notifications: %w", err)
		}

		var err error
		records, err = r.queryMany(ctx, tx, query, now, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetByIDs returns the records for ids; activeOnly filters out
// deactivated ones.
func (r *PostgresPeriodicRepository) GetByIDs(ctx context.Context, ids []uuid.UUID, activeOnly bool) ([]*models.PeriodicNotification, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + periodicColumns + ` FROM periodic_notifications WHERE id = ANY($1)`
	if activeOnly {
		query += ` AND is_active = true`
	}
	query += ` ORDER BY next_run_time, id`

	return r.queryMany(ctx, r.db, query, pq.Array(ids))
}

// UpdateRunTime advances a record after a successful dispatch.
func (r *PostgresPeriodicRepository) UpdateRunTime(ctx context.Context, id uuid.UUID, lastRun, nextRun time.Time) error {
	query := `UPDATE periodic_notifications
		SET last_run_time = $2, next_run_time = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, lastRun.UTC(), nextRun.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update run time: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.NotFound("Periodic notification")
	}
	return nil
}

func (r *PostgresPeriodicRepository) queryMany(ctx context.Context, q queryer, query string, args ...any) ([]*models.PeriodicNotification, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query periodic notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.PeriodicNotification
	for rows.Next() {
		n, err := scanPeriodic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan periodic notification: %w", err)
		}
		records = append(records, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating periodic notifications: %w", err)
	}
	return records, nil
}

func scanPeriodic(row rowScanner) (*models.PeriodicNotification, error) {
	var n models.PeriodicNotification
	err := row.Scan(
		&n.ID, &n.StaffID, &n.TemplateID, &n.ChannelType, &n.EventType, &n.CronSchedule,
		&n.LastRunTime, &n.NextRunTime, &n.IsActive, &n.Context, &n.StopDate,
		&n.SubscriberQueryType, &n.SubscriberQueryParams, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
