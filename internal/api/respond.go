package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/moviehub/notify/internal/errs"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// respondError maps an application error onto its HTTP status.
func respondError(c *gin.Context, err error) {
	body := errorResponse{Detail: err.Error()}

	var appErr *errs.Error
	if errors.As(err, &appErr) {
		body.Detail = appErr.Message
		body.Field = appErr.Field
	}
	c.JSON(errs.HTTPStatus(err), body)
}
