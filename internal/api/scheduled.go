package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/repository"
)

type createScheduledRequest struct {
	TemplateID            uuid.UUID          `json:"template_id" binding:"required"`
	ChannelType           models.ChannelType `json:"channel_type" binding:"required"`
	EventType             models.EventType   `json:"event_type" binding:"required"`
	ScheduledTime         time.Time          `json:"scheduled_time" binding:"required"`
	Context               models.JSONMap     `json:"context"`
	SubscriberQueryType   string             `json:"subscriber_query_type" binding:"required"`
	SubscriberQueryParams models.JSONMap     `json:"subscriber_query_params"`
}

type updateScheduledRequest struct {
	TemplateID            *uuid.UUID          `json:"template_id"`
	ChannelType           *models.ChannelType `json:"channel_type"`
	EventType             *models.EventType   `json:"event_type"`
	ScheduledTime         *time.Time          `json:"scheduled_time"`
	Context               models.JSONMap      `json:"context"`
	SubscriberQueryType   *string             `json:"subscriber_query_type"`
	SubscriberQueryParams models.JSONMap      `json:"subscriber_query_params"`
}

func validateTypes(channel *models.ChannelType, event *models.EventType) error {
	if channel != nil && !channel.Valid() {
		return errs.Validation("channel_type", "unknown channel type")
	}
	if event != nil && !event.Valid() {
		return errs.Validation("event_type", "unknown event type")
	}
	return nil
}

func (h *Handlers) createScheduled(c *gin.Context) {
	var req createScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("", err.Error()))
		return
	}
	if err := validateTypes(&req.ChannelType, &req.EventType); err != nil {
		respondError(c, err)
		return
	}

	record, err := h.scheduled.Create(c.Request.Context(), repository.CreateScheduled{
		StaffID:               userIDFrom(c),
		TemplateID:            req.TemplateID,
		ChannelType:           req.ChannelType,
		EventType:             req.EventType,
		ScheduledTime:         req.ScheduledTime,
		Context:               req.Context,
		SubscriberQueryType:   req.SubscriberQueryType,
		SubscriberQueryParams: req.SubscriberQueryParams,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handlers) getScheduled(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	record, err := h.scheduled.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handlers) listScheduled(c *gin.Context) {
	skip, limit := pagination(c)

	records, err := h.scheduled.List(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handlers) updateScheduled(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	var req updateScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("", err.Error()))
		return
	}
	if err := validateTypes(req.ChannelType, req.EventType); err != nil {
		respondError(c, err)
		return
	}

	record, err := h.scheduled.Update(c.Request.Context(), id, repository.UpdateScheduled{
		TemplateID:            req.TemplateID,
		ChannelType:           req.ChannelType,
		EventType:             req.EventType,
		ScheduledTime:         req.ScheduledTime,
		Context:               req.Context,
		SubscriberQueryType:   req.SubscriberQueryType,
		SubscriberQueryParams: req.SubscriberQueryParams,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handlers) deleteScheduled(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	if err := h.scheduled.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
