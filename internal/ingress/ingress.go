// Package ingress accepts dispatch requests from the API surface,
// validates them, and hands them to the broker.
package ingress

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/broker"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/repository"
)

// SendRequest is one immediate dispatch request.
type SendRequest struct {
	TemplateID  uuid.UUID          `json:"template_id" binding:"required"`
	Context     models.JSONMap     `json:"context"`
	Subscribers []uuid.UUID        `json:"subscribers" binding:"required"`
	EventType   models.EventType   `json:"event_type" binding:"required"`
	ChannelType models.ChannelType `json:"channel_type" binding:"required"`
}

// Service validates and publishes immediate notifications.
type Service struct {
	templates repository.TemplateRepository
	publisher broker.Publisher
	log       *logrus.Logger
}

func NewService(templates repository.TemplateRepository, publisher broker.Publisher, log *logrus.Logger) *Service {
	return &Service{templates: templates, publisher: publisher, log: log}
}

// SendMessage validates the request, confirms the template exists, and
// publishes one work unit. Broker failures come back inside the result,
// not as an error.
func (s *Service) SendMessage(ctx context.Context, req SendRequest, requestID string) (broker.PublishResult, error) {
	if !req.EventType.Valid() {
		return broker.PublishResult{}, errs.Validation("event_type", "unknown event type")
	}
	if !req.ChannelType.Valid() {
		return broker.PublishResult{}, errs.Validation("channel_type", "unknown channel type")
	}
	if len(req.Subscribers) == 0 {
		return broker.PublishResult{}, errs.Validation("subscribers", "subscribers must not be empty")
	}

	if _, err := s.templates.GetByID(ctx, req.TemplateID); err != nil {
		return broker.PublishResult{}, err
	}

	// Immediate units never carry a notification id, so they are never
	// suppressed by the delivery dedup window.
	unit := &models.WorkUnit{
		TemplateID:  req.TemplateID,
		Context:     req.Context,
		Subscribers: req.Subscribers,
		EventType:   req.EventType,
		ChannelType: req.ChannelType,
		MessageType: models.MessageImmediate,
	}

	result := s.publisher.SendMessage(ctx, unit, requestID)
	s.log.WithFields(logrus.Fields{
		"queue":        result.Queue,
		"priority":     result.Priority,
		"status":       result.Status,
		"x_request_id": requestID,
	}).Info("Dispatch request published")
	return result, nil
}
