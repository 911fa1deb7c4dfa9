package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
)

// CreateScheduled is the write shape for one-shot records.
type CreateScheduled struct {
	StaffID               uuid.UUID
	TemplateID            uuid.UUID
	ChannelType           models.ChannelType
	EventType             models.EventType
	ScheduledTime         time.Time
	Context               models.JSONMap
	SubscriberQueryType   string
	SubscriberQueryParams models.JSONMap
}

// UpdateScheduled carries the mutable fields; nil keeps the stored value.
type UpdateScheduled struct {
	TemplateID            *uuid.UUID
	ChannelType           *models.ChannelType
	EventType             *models.EventType
	ScheduledTime         *time.Time
	Context               models.JSONMap
	SubscriberQueryType   *string
	SubscriberQueryParams models.JSONMap
}

// ScheduledRepository stores one-shot notification records.
type ScheduledRepository interface {
	Create(ctx context.Context, in CreateScheduled) (*models.ScheduledNotification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduledNotification, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateScheduled) (*models.ScheduledNotification, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, skip, limit int) ([]*models.ScheduledNotification, error)
	GetPending(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledNotification, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID, pendingOnly bool) ([]*models.ScheduledNotification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

type PostgresScheduledRepository struct {
	db *sql.DB
}

func NewScheduledRepository(db *sql.DB) *PostgresScheduledRepository {
	return &PostgresScheduledRepository{db: db}
}

const scheduledColumns = `id, staff_id, template_id, channel_type, event_type, scheduled_time,
	is_sent, context, subscriber_query_type, subscriber_query_params, created_at, updated_at`

func (r *PostgresScheduledRepository) Create(ctx context.Context, in CreateScheduled) (*models.ScheduledNotification, error) {
	query := `
		INSERT INTO scheduled_notifications (
			id, staff_id, template_id, channel_type, event_type, scheduled_time,
			is_sent, context, subscriber_query_type, subscriber_query_params, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8, $9, $10, $10)
		RETURNING ` + scheduledColumns

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, query,
		uuid.New(), in.StaffID, in.TemplateID, in.ChannelType, in.EventType,
		in.ScheduledTime.UTC(), in.Context, in.SubscriberQueryType, in.SubscriberQueryParams, now,
	)

	n, err := scanScheduled(row)
	if err != nil {
		return nil, translateError(err)
	}
	return n, nil
}

func (r *PostgresScheduledRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduledNotification, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications WHERE id = $1`

	n, err := scanScheduled(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Scheduled notification")
		}
		return nil, fmt.Errorf("failed to get scheduled notification: %w", err)
	}
	return n, nil
}

func (r *PostgresScheduledRepository) Update(ctx context.Context, id uuid.UUID, in UpdateScheduled) (*models.ScheduledNotification, error) {
	query := `
		UPDATE scheduled_notifications
		SET template_id = COALESCE($2, template_id),
			channel_type = COALESCE($3, channel_type),
			event_type = COALESCE($4, event_type),
			scheduled_time = COALESCE($5, scheduled_time),
			context = COALESCE($6, context),
			subscriber_query_type = COALESCE($7, subscriber_query_type),
			subscriber_query_params = COALESCE($8, subscriber_query_params),
			updated_at = $9
		WHERE id = $1
		RETURNING ` + scheduledColumns

	var scheduledTime *time.Time
	if in.ScheduledTime != nil {
		t := in.ScheduledTime.UTC()
		scheduledTime = &t
	}

	row := r.db.QueryRowContext(ctx, query,
		id, in.TemplateID, in.ChannelType, in.EventType, scheduledTime,
		in.Context, in.SubscriberQueryType, in.SubscriberQueryParams, time.Now().UTC(),
	)

	n, err := scanScheduled(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Scheduled notification")
		}
		return nil, translateError(err)
	}
	return n, nil
}

func (r *PostgresScheduledRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_notifications WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.NotFound("Scheduled notification")
	}
	return nil
}

func (r *PostgresScheduledRepository) List(ctx context.Context, skip, limit int) ([]*models.ScheduledNotification, error) {
	skip, limit = normalizeRange(skip, limit)

	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications
		ORDER BY scheduled_time DESC OFFSET $1 LIMIT $2`

	return r.queryMany(ctx, query, skip, limit)
}

// GetPending returns unsent records whose scheduled time has passed, oldest
// first. The id tiebreak keeps the order stable across ticks.
func (r *PostgresScheduledRepository) GetPending(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledNotification, error) {
	_, limit = normalizeRange(0, limit)

	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications
		WHERE is_sent = false AND scheduled_time <= $1
		ORDER BY scheduled_time, id
		LIMIT $2`

	return r.queryMany(ctx, query, now.UTC(), limit)
}

// GetByIDs returns the records for ids; pendingOnly filters out already
// sent ones.
func (r *PostgresScheduledRepository) GetByIDs(ctx context.Context, ids []uuid.UUID, pendingOnly bool) ([]*models.ScheduledNotification, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications WHERE id = ANY($1)`
	if pendingOnly {
		query += ` AND is_sent = false`
	}
	query += ` ORDER BY scheduled_time, id`

	return r.queryMany(ctx, query, pq.Array(ids))
}

func (r *PostgresScheduledRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE scheduled_notifications SET is_sent = true, updated_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark scheduled notification sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.NotFound("Scheduled notification")
	}
	return nil
}

func (r *PostgresScheduledRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.ScheduledNotification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.ScheduledNotification
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled notification: %w", err)
		}
		records = append(records, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled notifications: %w", err)
	}
	return records, nil
}

func scanScheduled(row rowScanner) (*models.ScheduledNotification, error) {
	var n models.ScheduledNotification
	err := row.Scan(
		&n.ID, &n.StaffID, &n.TemplateID, &n.ChannelType, &n.EventType, &n.ScheduledTime,
		&n.IsSent, &n.Context, &n.SubscriberQueryType, &n.SubscriberQueryParams,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
