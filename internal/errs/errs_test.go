package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"Validation error", Validation("name", "must not be empty"), http.StatusUnprocessableEntity},
		{"Related record missing", RelatedNotExists(errors.New("fk violation")), http.StatusUnprocessableEntity},
		{"Not found", NotFound("Template"), http.StatusNotFound},
		{"Integrity violation", Integrity(errors.New("duplicate key")), http.StatusBadRequest},
		{"Auth failure", Auth("invalid token"), http.StatusUnauthorized},
		{"Unknown query type", UnknownQueryType("nope"), http.StatusInternalServerError},
		{"Foreign error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("f", "m")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", NotFound("Template"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindAuth))
}

func TestErrorMessage(t *testing.T) {
	err := Validation("cron_schedule", "invalid cron expression")
	assert.Contains(t, err.Error(), "invalid cron expression")
	assert.Contains(t, err.Error(), "cron_schedule")

	assert.Equal(t, "Template not found", NotFound("Template").Message)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("fk violation")
	err := RelatedNotExists(cause)
	assert.ErrorIs(t, err, cause)
}
