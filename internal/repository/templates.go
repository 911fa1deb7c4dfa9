package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
)

// CreateTemplate is the write shape for new templates.
type CreateTemplate struct {
	Name    string
	Subject string
	Body    string
	StaffID uuid.UUID
}

// UpdateTemplate carries the fields of a template update; nil fields keep
// the stored value.
type UpdateTemplate struct {
	Name    *string
	Subject *string
	Body    *string
}

// TemplateRepository is the template store.
type TemplateRepository interface {
	Create(ctx context.Context, in CreateTemplate) (*models.Template, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	GetByName(ctx context.Context, name string) (*models.Template, error)
	GetByField(ctx context.Context, field string, value any) (*models.Template, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateTemplate) (*models.Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, skip, limit int) ([]*models.Template, error)
}

// PostgresTemplateRepository implements TemplateRepository. The validate
// hook enforces the write-time template grammar invariant.
type PostgresTemplateRepository struct {
	db       *sql.DB
	validate func(body string) error
}

// NewTemplateRepository creates the store. validate is called with the
// template body on every create and body update; pass the renderer's
// Validate.
func NewTemplateRepository(db *sql.DB, validate func(body string) error) *PostgresTemplateRepository {
	return &PostgresTemplateRepository{db: db, validate: validate}
}

const templateColumns = "id, name, subject, body, staff_id, created_at, updated_at"

func (r *PostgresTemplateRepository) Create(ctx context.Context, in CreateTemplate) (*models.Template, error) {
	if in.Name == "" {
		return nil, errs.Validation("name", "name must not be empty")
	}
	if err := r.validate(in.Body); err != nil {
		return nil, errs.Validation("body", fmt.Sprintf("invalid template body: %v", err))
	}

	query := `
		INSERT INTO templates (id, name, subject, body, staff_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + templateColumns

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, query, uuid.New(), in.Name, in.Subject, in.Body, in.StaffID, now)

	t, err := scanTemplate(row)
	if err != nil {
		return nil, translateError(err)
	}
	return t, nil
}

func (r *PostgresTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Template")
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (r *PostgresTemplateRepository) GetByName(ctx context.Context, name string) (*models.Template, error) {
	return r.GetByField(ctx, "name", name)
}

var templateQueryColumns = map[string]bool{
	"name":     true,
	"subject":  true,
	"staff_id": true,
}

// GetByField looks up a template by one whitelisted column.
func (r *PostgresTemplateRepository) GetByField(ctx context.Context, field string, value any) (*models.Template, error) {
	if !templateQueryColumns[field] {
		return nil, errs.Validation("field", fmt.Sprintf("cannot query templates by %q", field))
	}

	query := `SELECT ` + templateColumns + ` FROM templates WHERE ` + field + ` = $1`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Template")
		}
		return nil, fmt.Errorf("failed to get template by %s: %w", field, err)
	}
	return t, nil
}

func (r *PostgresTemplateRepository) Update(ctx context.Context, id uuid.UUID, in UpdateTemplate) (*models.Template, error) {
	if in.Body != nil {
		if err := r.validate(*in.Body); err != nil {
			return nil, errs.Validation("body", fmt.Sprintf("invalid template body: %v", err))
		}
	}

	query := `
		UPDATE templates
		SET name = COALESCE($2, name),
			subject = COALESCE($3, subject),
			body = COALESCE($4, body),
			updated_at = $5
		WHERE id = $1
		RETURNING ` + templateColumns

	row := r.db.QueryRowContext(ctx, query, id, in.Name, in.Subject, in.Body, time.Now().UTC())

	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("Template")
		}
		return nil, translateError(err)
	}
	return t, nil
}

func (r *PostgresTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.NotFound("Template")
	}
	return nil
}

func (r *PostgresTemplateRepository) List(ctx context.Context, skip, limit int) ([]*models.Template, error) {
	skip, limit = normalizeRange(skip, limit)

	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var t models.Template
	err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.StaffID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
