// Package repeater drains the dead-letter lists back into the broker.
package repeater

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/dedup"
	"github.com/moviehub/notify/internal/routing"
)

// Republisher puts an encoded payload back onto a broker queue.
type Republisher interface {
	Republish(ctx context.Context, queue string, priority int, body []byte, requestID string) error
}

// Repeater re-enqueues dead-lettered payloads at the minimum priority so
// retries never outrank fresh traffic.
type Repeater struct {
	store     dedup.Store
	publisher Republisher
	log       *logrus.Logger
	batchSize int
}

func New(store dedup.Store, publisher Republisher, log *logrus.Logger, batchSize int) *Repeater {
	return &Repeater{store: store, publisher: publisher, log: log, batchSize: batchSize}
}

// Tick drains up to batchSize payloads per queue. A republish failure
// pushes the payload back and abandons that queue until the next tick,
// keeping list order and avoiding a failure spin.
func (r *Repeater) Tick(ctx context.Context) error {
	for _, queue := range routing.QueueNames() {
		if err := r.drainQueue(ctx, queue); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repeater) drainQueue(ctx context.Context, queue string) error {
	log := r.log.WithField("queue", queue)

	for i := 0; i < r.batchSize; i++ {
		payload, err := r.store.DLQPop(ctx, queue)
		if err != nil {
			return err
		}
		if payload == nil {
			return nil
		}

		if err := r.publisher.Republish(ctx, queue, routing.Levels.Min, payload, ""); err != nil {
			log.WithError(err).Error("Failed to republish dead-lettered message, pushing back")
			if pushErr := r.store.DLQPush(ctx, queue, payload); pushErr != nil {
				log.WithError(pushErr).Error("Failed to push message back, payload lost")
			}
			return nil
		}
		log.Info("Dead-lettered message republished")
	}
	return nil
}
