package ingress

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviehub/notify/internal/broker"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/repository"
)

type fakeTemplates struct {
	err error
}

func (f *fakeTemplates) Create(context.Context, repository.CreateTemplate) (*models.Template, error) {
	panic("not used")
}
func (f *fakeTemplates) GetByName(context.Context, string) (*models.Template, error) {
	panic("not used")
}
func (f *fakeTemplates) GetByField(context.Context, string, any) (*models.Template, error) {
	panic("not used")
}
func (f *fakeTemplates) Update(context.Context, uuid.UUID, repository.UpdateTemplate) (*models.Template, error) {
	panic("not used")
}
func (f *fakeTemplates) Delete(context.Context, uuid.UUID) error { panic("not used") }
func (f *fakeTemplates) List(context.Context, int, int) ([]*models.Template, error) {
	panic("not used")
}
func (f *fakeTemplates) GetByID(context.Context, uuid.UUID) (*models.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Template{}, nil
}

type fakePublisher struct {
	unit      *models.WorkUnit
	requestID string
	result    broker.PublishResult
}

func (f *fakePublisher) SendMessage(_ context.Context, unit *models.WorkUnit, requestID string) broker.PublishResult {
	f.unit = unit
	f.requestID = requestID
	return f.result
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func validRequest() SendRequest {
	return SendRequest{
		TemplateID:  uuid.New(),
		Context:     models.JSONMap{"title": "x"},
		Subscribers: []uuid.UUID{uuid.New()},
		EventType:   models.EventUserRegistration,
		ChannelType: models.ChannelEmail,
	}
}

func TestSendMessage(t *testing.T) {
	pub := &fakePublisher{result: broker.PublishResult{
		Status: broker.PublishOK, Queue: "notifications.high", Priority: 5,
	}}
	s := NewService(&fakeTemplates{}, pub, testLogger())

	result, err := s.SendMessage(context.Background(), validRequest(), "req-42")
	require.NoError(t, err)

	assert.Equal(t, broker.PublishOK, result.Status)
	assert.Equal(t, "req-42", pub.requestID)
	assert.Equal(t, models.MessageImmediate, pub.unit.MessageType)
	assert.Nil(t, pub.unit.NotificationID)
}

func TestSendMessage_ValidationErrors(t *testing.T) {
	s := NewService(&fakeTemplates{}, &fakePublisher{}, testLogger())

	tests := []struct {
		name   string
		mutate func(*SendRequest)
	}{
		{"bad event type", func(r *SendRequest) { r.EventType = "mystery" }},
		{"bad channel type", func(r *SendRequest) { r.ChannelType = "fax" }},
		{"no subscribers", func(r *SendRequest) { r.Subscribers = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			_, err := s.SendMessage(context.Background(), req, "req-1")
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindValidation))
		})
	}
}

func TestSendMessage_TemplateNotFound(t *testing.T) {
	s := NewService(&fakeTemplates{err: errs.NotFound("Template")}, &fakePublisher{}, testLogger())

	_, err := s.SendMessage(context.Background(), validRequest(), "req-1")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSendMessage_BrokerFailureIsResult(t *testing.T) {
	pub := &fakePublisher{result: broker.PublishResult{
		Status: broker.PublishError, Message: "connection reset",
	}}
	s := NewService(&fakeTemplates{}, pub, testLogger())

	result, err := s.SendMessage(context.Background(), validRequest(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, broker.PublishError, result.Status)
}
