// Package former consumes work units from one broker queue and turns them
// into delivered messages. Each message is an independent unit of work:
// failures degrade that unit only, and the message is always acked so a
// poison payload cannot wedge the queue.
package former

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/auth"
	"github.com/moviehub/notify/internal/dedup"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/render"
	"github.com/moviehub/notify/internal/repository"
	"github.com/moviehub/notify/internal/sender"
)

// Former processes work units for one queue.
type Former struct {
	queue     string
	templates repository.TemplateRepository
	scheduled repository.ScheduledRepository
	periodic  repository.PeriodicRepository
	store     dedup.Store
	users     auth.Service
	renderer  *render.Renderer
	senders   *sender.Registry
	log       *logrus.Logger

	defaultSubject string
	onPanic        func(queue string, raw []byte, recovered any)
}

type Config struct {
	Queue          string
	DefaultSubject string
	// OnPanic is invoked with the recovered value when a per-message
	// panic is swallowed; error reporting hooks in here.
	OnPanic func(queue string, raw []byte, recovered any)
}

func New(
	cfg Config,
	templates repository.TemplateRepository,
	scheduled repository.ScheduledRepository,
	periodic repository.PeriodicRepository,
	store dedup.Store,
	users auth.Service,
	renderer *render.Renderer,
	senders *sender.Registry,
	log *logrus.Logger,
) *Former {
	return &Former{
		queue:          cfg.Queue,
		templates:      templates,
		scheduled:      scheduled,
		periodic:       periodic,
		store:          store,
		users:          users,
		renderer:       renderer,
		senders:        senders,
		log:            log,
		defaultSubject: cfg.DefaultSubject,
		onPanic:        cfg.OnPanic,
	}
}

// HandleDelivery processes one raw broker payload. It never returns an
// error that should block the ack: by the time it returns, the message is
// either delivered, dead-lettered, or deliberately discarded.
func (f *Former) HandleDelivery(ctx context.Context, raw []byte, requestID string) {
	defer func() {
		if r := recover(); r != nil {
			f.log.WithFields(logrus.Fields{
				"queue":        f.queue,
				"x_request_id": requestID,
				"raw_body":     string(raw),
			}).Errorf("Panic while processing message: %v", r)
			if f.onPanic != nil {
				f.onPanic(f.queue, raw, r)
			}
		}
	}()

	log := f.log.WithFields(logrus.Fields{"queue": f.queue, "x_request_id": requestID})

	unit, err := models.DecodeWorkUnit(raw)
	if err != nil {
		log.WithError(err).Error("Discarding undecodable message")
		return
	}

	if err := f.checkMessageStatus(ctx, unit); err != nil {
		log.WithError(err).Info("Discarding stale message")
		return
	}

	template, err := f.templates.GetByID(ctx, unit.TemplateID)
	if err != nil {
		log.WithError(err).Error("Discarding message with unloadable template")
		return
	}

	f.processSubscribers(ctx, unit, template, raw, log)
}

// checkMessageStatus verifies the unit is still live: scheduled units need
// an existing record, periodic units an active one.
func (f *Former) checkMessageStatus(ctx context.Context, unit *models.WorkUnit) error {
	switch unit.MessageType {
	case models.MessageImmediate:
		return nil
	case models.MessageScheduled:
		if unit.NotificationID == nil {
			return errs.Preflight("scheduled unit has no notification id")
		}
		if _, err := f.scheduled.GetByID(ctx, *unit.NotificationID); err != nil {
			return errs.Preflight(fmt.Sprintf("scheduled record unavailable: %v", err))
		}
		return nil
	case models.MessagePeriodic:
		if unit.NotificationID == nil {
			return errs.Preflight("periodic unit has no notification id")
		}
		rec, err := f.periodic.GetByID(ctx, *unit.NotificationID)
		if err != nil {
			return errs.Preflight(fmt.Sprintf("periodic record unavailable: %v", err))
		}
		if !rec.IsActive {
			return errs.Preflight("periodic record is inactive")
		}
		return nil
	default:
		return errs.Preflight(fmt.Sprintf("unknown message type: %s", unit.MessageType))
	}
}

func (f *Former) processSubscribers(ctx context.Context, unit *models.WorkUnit, template *models.Template, raw []byte, log *logrus.Entry) {
	// The subject comes from the unit context or the configured default;
	// template subjects are metadata for the admin surface only.
	subject := unit.Subject(f.defaultSubject)

	for _, subscriberID := range unit.Subscribers {
		slog := log.WithField("subscriber_id", subscriberID)

		if unit.NotificationID != nil {
			sent, err := f.store.WasSent(ctx, subscriberID.String(), unit.NotificationID.String())
			if err != nil {
				slog.WithError(err).Error("Dedup check failed, skipping subscriber")
				continue
			}
			if sent {
				slog.Debug("Already delivered inside dedup window, skipping")
				continue
			}
		}

		user, err := f.users.GetUserData(ctx, subscriberID)
		if err != nil {
			slog.WithError(err).Error("Failed to fetch subscriber data, skipping")
			continue
		}

		renderCtx := user.RenderContext()
		for k, v := range unit.Context {
			renderCtx[k] = v
		}

		body, err := f.renderer.Render(ctx, template.Body, renderCtx)
		if err != nil {
			slog.WithError(err).Error("Failed to render message, skipping subscriber")
			continue
		}

		err = f.senders.Send(ctx, unit.ChannelType, sender.Message{
			Subject: subject,
			Body:    body,
			User:    user,
		})
		if errors.Is(err, sender.ErrSendMessage) {
			// The whole original unit goes to the DLQ; stopping here
			// avoids enqueueing it once per remaining subscriber.
			if dlqErr := f.store.DLQPush(ctx, f.queue, raw); dlqErr != nil {
				slog.WithError(dlqErr).Error("Failed to dead-letter message")
			} else {
				slog.Warn("Delivery failed, message dead-lettered")
			}
			return
		}
		if err != nil {
			slog.WithError(err).Error("Sender failed, skipping subscriber")
			continue
		}

		if unit.NotificationID != nil {
			if err := f.store.MarkSent(ctx, subscriberID.String(), unit.NotificationID.String()); err != nil {
				slog.WithError(err).Error("Failed to record delivery marker")
			}
		}
	}
}
