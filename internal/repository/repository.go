// Package repository implements the PostgreSQL stores for templates and
// scheduled/periodic notification records.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/moviehub/notify/internal/errs"
)

const defaultListLimit = 100

// queryer is satisfied by *sql.DB and *sql.Tx, so the same read helpers
// work inside and outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// pq error classes: 23503 is foreign_key_violation, the rest of class 23
// are other integrity violations.
const (
	pgForeignKeyViolation = "23503"
	pgIntegrityClass      = "23"
)

// translateError maps database errors to the shared taxonomy. Unrecognized
// errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == pgForeignKeyViolation {
			return errs.RelatedNotExists(err)
		}
		if pqErr.Code.Class() == pgIntegrityClass {
			return errs.Integrity(err)
		}
	}
	return err
}

func normalizeRange(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return skip, limit
}
