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

type createPeriodicRequest struct {
	TemplateID            uuid.UUID          `json:"template_id" binding:"required"`
	ChannelType           models.ChannelType `json:"channel_type" binding:"required"`
	EventType             models.EventType   `json:"event_type" binding:"required"`
	CronSchedule          string             `json:"cron_schedule" binding:"required"`
	StopDate              *time.Time         `json:"stop_date"`
	Context               models.JSONMap     `json:"context"`
	SubscriberQueryType   string             `json:"subscriber_query_type" binding:"required"`
	SubscriberQueryParams models.JSONMap     `json:"subscriber_query_params"`
}

type updatePeriodicRequest struct {
	TemplateID            *uuid.UUID          `json:"template_id"`
	ChannelType           *models.ChannelType `json:"channel_type"`
	EventType             *models.EventType   `json:"event_type"`
	CronSchedule          *string             `json:"cron_schedule"`
	IsActive              *bool               `json:"is_active"`
	StopDate              *time.Time          `json:"stop_date"`
	Context               models.JSONMap      `json:"context"`
	SubscriberQueryType   *string             `json:"subscriber_query_type"`
	SubscriberQueryParams models.JSONMap      `json:"subscriber_query_params"`
}

func (h *Handlers) createPeriodic(c *gin.Context) {
	var req createPeriodicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("", err.Error()))
		return
	}
	if err := validateTypes(&req.ChannelType, &req.EventType); err != nil {
		respondError(c, err)
		return
	}

	nextRun, err := models.CronNext(req.CronSchedule, time.Now().UTC())
	if err != nil {
		respondError(c, errs.Validation("cron_schedule", "invalid cron expression"))
		return
	}
	if req.StopDate != nil && req.StopDate.Before(nextRun) {
		respondError(c, errs.Validation("stop_date", "stop date precedes the first run"))
		return
	}

	record, err := h.periodic.Create(c.Request.Context(), repository.CreatePeriodic{
		StaffID:               userIDFrom(c),
		TemplateID:            req.TemplateID,
		ChannelType:           req.ChannelType,
		EventType:             req.EventType,
		CronSchedule:          req.CronSchedule,
		NextRunTime:           nextRun,
		StopDate:              req.StopDate,
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

func (h *Handlers) getPeriodic(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	record, err := h.periodic.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handlers) listPeriodic(c *gin.Context) {
	skip, limit := pagination(c)

	records, err := h.periodic.List(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handlers) updatePeriodic(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	var req updatePeriodicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("", err.Error()))
		return
	}
	if err := validateTypes(req.ChannelType, req.EventType); err != nil {
		respondError(c, err)
		return
	}

	in := repository.UpdatePeriodic{
		TemplateID:            req.TemplateID,
		ChannelType:           req.ChannelType,
		EventType:             req.EventType,
		CronSchedule:          req.CronSchedule,
		IsActive:              req.IsActive,
		StopDate:              req.StopDate,
		Context:               req.Context,
		SubscriberQueryType:   req.SubscriberQueryType,
		SubscriberQueryParams: req.SubscriberQueryParams,
	}

	// A schedule change recomputes the next run off the current time.
	if req.CronSchedule != nil {
		nextRun, err := models.CronNext(*req.CronSchedule, time.Now().UTC())
		if err != nil {
			respondError(c, errs.Validation("cron_schedule", "invalid cron expression"))
			return
		}
		if req.StopDate != nil && req.StopDate.Before(nextRun) {
			respondError(c, errs.Validation("stop_date", "stop date precedes the next run"))
			return
		}
		in.NextRunTime = &nextRun
	}

	record, err := h.periodic.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handlers) deletePeriodic(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	if err := h.periodic.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
