// Package scheduler turns due scheduled and periodic records into broker
// work units. Both tick functions are idempotent per record: a record
// advances only after every one of its batches was published.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/broker"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/repository"
	"github.com/moviehub/notify/internal/subscribers"
)

// Scheduler drains due records on every tick.
type Scheduler struct {
	scheduled repository.ScheduledRepository
	periodic  repository.PeriodicRepository
	registry  *subscribers.Registry
	publisher broker.Publisher
	log       *logrus.Logger

	recordBatchSize     int
	subscriberBatchSize int
	now                 func() time.Time
}

func New(
	scheduled repository.ScheduledRepository,
	periodic repository.PeriodicRepository,
	registry *subscribers.Registry,
	publisher broker.Publisher,
	log *logrus.Logger,
	recordBatchSize, subscriberBatchSize int,
) *Scheduler {
	return &Scheduler{
		scheduled:           scheduled,
		periodic:            periodic,
		registry:            registry,
		publisher:           publisher,
		log:                 log,
		recordBatchSize:     recordBatchSize,
		subscriberBatchSize: subscriberBatchSize,
		now:                 time.Now,
	}
}

// SendScheduled dispatches due one-shot records and marks them sent. A
// record that fails stays unsent and is retried next tick.
func (s *Scheduler) SendScheduled(ctx context.Context) error {
	now := s.now().UTC()

	records, err := s.scheduled.GetPending(ctx, now, s.recordBatchSize)
	if err != nil {
		return err
	}

	for _, rec := range records {
		log := s.log.WithField("scheduled_id", rec.ID)

		err := s.dispatch(ctx, dispatchSpec{
			recordID:    rec.ID,
			templateID:  rec.TemplateID,
			context:     rec.Context,
			eventType:   rec.EventType,
			channelType: rec.ChannelType,
			messageType: models.MessageScheduled,
			queryType:   rec.SubscriberQueryType,
			queryParams: rec.SubscriberQueryParams,
		})
		if err != nil {
			log.WithError(err).Error("Failed to dispatch scheduled notification")
			continue
		}

		if err := s.scheduled.MarkSent(ctx, rec.ID); err != nil {
			log.WithError(err).Error("Failed to mark scheduled notification sent")
			continue
		}
		log.Info("Scheduled notification dispatched")
	}
	return nil
}

// SendPeriodic dispatches due recurring records and advances their run
// times off the tick time. A record that fails keeps its next run time
// and fires again next tick.
func (s *Scheduler) SendPeriodic(ctx context.Context) error {
	now := s.now().UTC()

	records, err := s.periodic.GetPending(ctx, now, s.recordBatchSize)
	if err != nil {
		return err
	}

	for _, rec := range records {
		log := s.log.WithField("periodic_id", rec.ID)

		err := s.dispatch(ctx, dispatchSpec{
			recordID:    rec.ID,
			templateID:  rec.TemplateID,
			context:     rec.Context,
			eventType:   rec.EventType,
			channelType: rec.ChannelType,
			messageType: models.MessagePeriodic,
			queryType:   rec.SubscriberQueryType,
			queryParams: rec.SubscriberQueryParams,
		})
		if err != nil {
			log.WithError(err).Error("Failed to dispatch periodic notification")
			continue
		}

		next, err := rec.NextRun(now)
		if err != nil {
			log.WithError(err).Error("Failed to compute next run time")
			continue
		}
		if err := s.periodic.UpdateRunTime(ctx, rec.ID, now, next); err != nil {
			log.WithError(err).Error("Failed to advance periodic notification")
			continue
		}
		log.WithField("next_run_time", next).Info("Periodic notification dispatched")
	}
	return nil
}

type dispatchSpec struct {
	recordID    uuid.UUID
	templateID  uuid.UUID
	context     models.JSONMap
	eventType   models.EventType
	channelType models.ChannelType
	messageType models.MessageType
	queryType   string
	queryParams models.JSONMap
}

// dispatch resolves the record's subscriber query and publishes one work
// unit per batch. The record id doubles as the notification id so the
// former's dedup window covers every batch of the same firing.
func (s *Scheduler) dispatch(ctx context.Context, spec dispatchSpec) error {
	batcher, err := s.registry.Resolve(spec.queryType, spec.queryParams, s.subscriberBatchSize)
	if err != nil {
		return err
	}

	notificationID := spec.recordID
	for {
		batch, err := batcher.Next(ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}

		unit := &models.WorkUnit{
			TemplateID:     spec.templateID,
			Context:        spec.context,
			Subscribers:    batch,
			EventType:      spec.eventType,
			ChannelType:    spec.channelType,
			NotificationID: &notificationID,
			MessageType:    spec.messageType,
		}

		result := s.publisher.SendMessage(ctx, unit, uuid.NewString())
		if result.Status != broker.PublishOK {
			return errs.BrokerPublish(result.Message)
		}
	}
}
