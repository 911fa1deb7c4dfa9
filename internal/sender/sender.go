// Package sender delivers rendered notifications over the configured
// channels.
package sender

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/auth"
	"github.com/moviehub/notify/internal/models"
)

// ErrSendMessage reports a delivery failure after all retries. The former
// treats it as the signal to dead-letter the work unit.
var ErrSendMessage = errors.New("failed to send message")

// Message is one rendered notification addressed to one subscriber.
type Message struct {
	Subject string
	Body    string
	User    *auth.UserData
}

// Sender delivers one message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Registry maps channels to senders. Channels without a sender are logged
// and dropped rather than failed, so a unit addressed to an undeployed
// channel never dead-letters.
type Registry struct {
	senders map[models.ChannelType]Sender
	log     *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{senders: make(map[models.ChannelType]Sender), log: log}
}

func (r *Registry) Register(channel models.ChannelType, s Sender) {
	r.senders[channel] = s
}

// Send dispatches msg over channel. Missing senders return nil after a
// warning.
func (r *Registry) Send(ctx context.Context, channel models.ChannelType, msg Message) error {
	s, ok := r.senders[channel]
	if !ok || s == nil {
		r.log.WithField("channel", channel).Warn("No sender registered for channel, dropping message")
		return nil
	}
	return s.Send(ctx, msg)
}
