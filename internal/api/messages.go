package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/ingress"
)

// sendMessage handles POST /messages/send-message/. A broker failure is
// reported inside the 201 body with status "error".
func (h *Handlers) sendMessage(c *gin.Context) {
	var req ingress.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("", err.Error()))
		return
	}

	result, err := h.ingress.SendMessage(c.Request.Context(), req, requestIDFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
