package workers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/broker"
	"github.com/moviehub/notify/internal/former"
)

// FormerWorker runs one former against one broker queue.
type FormerWorker struct {
	queue  string
	client *broker.Client
	former *former.Former
	log    *logrus.Logger
}

func NewFormerWorker(queue string, client *broker.Client, f *former.Former, log *logrus.Logger) *FormerWorker {
	return &FormerWorker{queue: queue, client: client, former: f, log: log}
}

// Run consumes until the context is cancelled or the broker closes the
// delivery stream. Every delivery is acked after handling; the DLQ owns
// retries.
func (w *FormerWorker) Run(ctx context.Context) error {
	deliveries, err := w.client.Consume(w.queue)
	if err != nil {
		return err
	}

	w.log.WithField("queue", w.queue).Info("Former consuming")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				w.log.WithField("queue", w.queue).Warn("Delivery channel closed")
				return nil
			}
			w.former.HandleDelivery(ctx, d.Body, broker.RequestIDFromDelivery(d))
			if err := d.Ack(false); err != nil {
				w.log.WithError(err).Error("Failed to ack delivery")
			}
		}
	}
}
