package former

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviehub/notify/internal/auth"
	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/render"
	"github.com/moviehub/notify/internal/repository"
	"github.com/moviehub/notify/internal/sender"
)

type fakeTemplates struct {
	template *models.Template
	err      error
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
	return f.template, f.err
}

type fakeScheduled struct {
	record *models.ScheduledNotification
	err    error
}

func (f *fakeScheduled) Create(context.Context, repository.CreateScheduled) (*models.ScheduledNotification, error) {
	panic("not used")
}
func (f *fakeScheduled) Update(context.Context, uuid.UUID, repository.UpdateScheduled) (*models.ScheduledNotification, error) {
	panic("not used")
}
func (f *fakeScheduled) Delete(context.Context, uuid.UUID) error { panic("not used") }
func (f *fakeScheduled) List(context.Context, int, int) ([]*models.ScheduledNotification, error) {
	panic("not used")
}
func (f *fakeScheduled) GetByIDs(context.Context, []uuid.UUID, bool) ([]*models.ScheduledNotification, error) {
	panic("not used")
}
func (f *fakeScheduled) GetPending(context.Context, time.Time, int) ([]*models.ScheduledNotification, error) {
	panic("not used")
}
func (f *fakeScheduled) MarkSent(context.Context, uuid.UUID) error { panic("not used") }
func (f *fakeScheduled) GetByID(context.Context, uuid.UUID) (*models.ScheduledNotification, error) {
	return f.record, f.err
}

type fakePeriodic struct {
	record *models.PeriodicNotification
	err    error
}

func (f *fakePeriodic) Create(context.Context, repository.CreatePeriodic) (*models.PeriodicNotification, error) {
	panic("not used")
}
func (f *fakePeriodic) Update(context.Context, uuid.UUID, repository.UpdatePeriodic) (*models.PeriodicNotification, error) {
	panic("not used")
}
func (f *fakePeriodic) Delete(context.Context, uuid.UUID) error { panic("not used") }
func (f *fakePeriodic) List(context.Context, int, int) ([]*models.PeriodicNotification, error) {
	panic("not used")
}
func (f *fakePeriodic) GetByIDs(context.Context, []uuid.UUID, bool) ([]*models.PeriodicNotification, error) {
	panic("not used")
}
func (f *fakePeriodic) GetPending(context.Context, time.Time, int) ([]*models.PeriodicNotification, error) {
	panic("not used")
}
func (f *fakePeriodic) UpdateRunTime(context.Context, uuid.UUID, time.Time, time.Time) error {
	panic("not used")
}
func (f *fakePeriodic) GetByID(context.Context, uuid.UUID) (*models.PeriodicNotification, error) {
	return f.record, f.err
}

type fakeStore struct {
	sent map[string]bool
	dlq  map[string][][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{sent: make(map[string]bool), dlq: make(map[string][][]byte)}
}

func (f *fakeStore) MarkSent(_ context.Context, sub, notif string) error {
	f.sent[sub+":"+notif] = true
	return nil
}
func (f *fakeStore) WasSent(_ context.Context, sub, notif string) (bool, error) {
	return f.sent[sub+":"+notif], nil
}
func (f *fakeStore) DLQPush(_ context.Context, queue string, payload []byte) error {
	f.dlq[queue] = append(f.dlq[queue], payload)
	return nil
}
func (f *fakeStore) DLQPop(_ context.Context, queue string) ([]byte, error) {
	if len(f.dlq[queue]) == 0 {
		return nil, nil
	}
	head := f.dlq[queue][0]
	f.dlq[queue] = f.dlq[queue][1:]
	return head, nil
}

type fakeUsers struct{}

func (fakeUsers) GetUserData(_ context.Context, id uuid.UUID) (*auth.UserData, error) {
	return &auth.UserData{
		ID:        id,
		Email:     fmt.Sprintf("%s@example.com", id.String()[:8]),
		FirstName: "Ada",
	}, nil
}
func (fakeUsers) GetUsersByBirthday(context.Context, int, int, int, int) ([]uuid.UUID, error) {
	panic("not used")
}

type fakeSender struct {
	sent    []sender.Message
	failFor string
}

func (f *fakeSender) Send(_ context.Context, msg sender.Message) error {
	if f.failFor != "" && msg.User.Email == f.failFor {
		return fmt.Errorf("%w: smtp refused", sender.ErrSendMessage)
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fixture struct {
	former *Former
	store  *fakeStore
	email  *fakeSender
}

func newFixture(templates *fakeTemplates, scheduled *fakeScheduled, periodic *fakePeriodic) *fixture {
	log := testLogger()
	store := newFakeStore()
	email := &fakeSender{}

	senders := sender.NewRegistry(log)
	senders.Register(models.ChannelEmail, email)
	senders.Register(models.ChannelSMS, nil)

	f := New(
		Config{Queue: "notifications.high", DefaultSubject: "Movie Notification"},
		templates, scheduled, periodic,
		store, fakeUsers{}, render.New(nil, log), senders, log,
	)
	return &fixture{former: f, store: store, email: email}
}

func encode(t *testing.T, unit *models.WorkUnit) []byte {
	t.Helper()
	body, err := unit.Encode()
	require.NoError(t, err)
	return body
}

func immediateUnit(subscribers ...uuid.UUID) *models.WorkUnit {
	return &models.WorkUnit{
		TemplateID:  uuid.New(),
		Context:     models.JSONMap{"title": "The Movie"},
		Subscribers: subscribers,
		EventType:   models.EventCustom,
		ChannelType: models.ChannelEmail,
		MessageType: models.MessageImmediate,
	}
}

func TestHandleDelivery_SendsToEachSubscriber(t *testing.T) {
	fx := newFixture(
		&fakeTemplates{template: &models.Template{Body: "Watch {{ title }}, {{ first_name }}!", Subject: "t"}},
		&fakeScheduled{}, &fakePeriodic{},
	)
	unit := immediateUnit(uuid.New(), uuid.New())

	fx.former.HandleDelivery(context.Background(), encode(t, unit), "req-1")

	require.Len(t, fx.email.sent, 2)
	assert.Equal(t, "Watch The Movie, Ada!", fx.email.sent[0].Body)
	assert.Equal(t, "Movie Notification", fx.email.sent[0].Subject)
}

func TestHandleDelivery_SubjectFromContext(t *testing.T) {
	fx := newFixture(
		&fakeTemplates{template: &models.Template{Body: "hi"}},
		&fakeScheduled{}, &fakePeriodic{},
	)
	unit := immediateUnit(uuid.New())
	unit.Context["subject"] = "Premiere"

	fx.former.HandleDelivery(context.Background(), encode(t, unit), "req-1")

	require.Len(t, fx.email.sent, 1)
	assert.Equal(t, "Premiere", fx.email.sent[0].Subject)
}

func TestHandleDelivery_TemplateSubjectNotUsed(t *testing.T) {
	fx := newFixture(
		&fakeTemplates{template: &models.Template{Body: "hi", Subject: "Admin label"}},
		&fakeScheduled{}, &fakePeriodic{},
	)
	unit := immediateUnit(uuid.New())

	fx.former.HandleDelivery(context.Background(), encode(t, unit), "req-1")

	require.Len(t, fx.email.sent, 1)
	assert.Equal(t, "Movie Notification", fx.email.sent[0].Subject)
}

func TestHandleDelivery_UndecodablePayloadDropped(t *testing.T) {
	fx := newFixture(&fakeTemplates{}, &fakeScheduled{}, &fakePeriodic{})

	fx.former.HandleDelivery(context.Background(), []byte("not json"), "req-1")

	assert.Empty(t, fx.email.sent)
	assert.Empty(t, fx.store.dlq)
}

func TestHandleDelivery_DedupSkips(t *testing.T) {
	fx := newFixture(
		&fakeTemplates{template: &models.Template{Body: "hi"}},
		&fakeScheduled{}, &fakePeriodic{},
	)

	dupe, fresh := uuid.New(), uuid.New()
	notifID := uuid.New()
	unit := immediateUnit(dupe, fresh)
	unit.NotificationID = &notifID
	fx.store.sent[dupe.String()+":"+notifID.String()] = true

	fx.former.HandleDelivery(context.Background(), encode(t, unit), "req-1")

	require.Len(t, fx.email.sent, 1)
	assert.True(t, fx.store.sent[fresh.String()+":"+notifID.String()])
}

func TestHandleDelivery_SendFailureDeadLettersOriginal(t *testing.T) {
	fx := newFixture(
		&fakeTemplates{template: &models.Template{Body: "hi"}},
		&fakeScheduled{}, &fakePeriodic{},
	)

	failing, skipped := uuid.New(), uuid.New()
	fx.email.failFor = failing.String()[:8] + "@example.com"

	unit := immediateUnit(failing, skipped)
	raw := encode(t, unit)
	fx.former.HandleDelivery(context.Background(), raw, "req-1")

	// The original raw payload is dead-lettered once and the remaining
	// subscribers are not attempted.
	require.Len(t, fx.store.dlq["notifications.high"], 1)
	assert.Equal(t, raw, fx.store.dlq["notifications.high"][0])
	assert.Empty(t, fx.email.sent)
}

func TestCheckMessageStatus(t *testing.T) {
	recordID := uuid.New()

	tests := []struct {
		name      string
		scheduled *fakeScheduled
		periodic  *fakePeriodic
		unit      *models.WorkUnit
		live      bool
	}{
		{
			name: "immediate always live",
			unit: &models.WorkUnit{MessageType: models.MessageImmediate},
			live: true,
		},
		{
			name:      "scheduled with record",
			scheduled: &fakeScheduled{record: &models.ScheduledNotification{ID: recordID}},
			unit:      &models.WorkUnit{MessageType: models.MessageScheduled, NotificationID: &recordID},
			live:      true,
		},
		{
			name:      "scheduled record deleted",
			scheduled: &fakeScheduled{err: errs.NotFound("Scheduled notification")},
			unit:      &models.WorkUnit{MessageType: models.MessageScheduled, NotificationID: &recordID},
			live:      false,
		},
		{
			name:     "periodic active",
			periodic: &fakePeriodic{record: &models.PeriodicNotification{ID: recordID, IsActive: true}},
			unit:     &models.WorkUnit{MessageType: models.MessagePeriodic, NotificationID: &recordID},
			live:     true,
		},
		{
			name:     "periodic deactivated",
			periodic: &fakePeriodic{record: &models.PeriodicNotification{ID: recordID, IsActive: false}},
			unit:     &models.WorkUnit{MessageType: models.MessagePeriodic, NotificationID: &recordID},
			live:     false,
		},
		{
			name: "unknown message type",
			unit: &models.WorkUnit{MessageType: models.MessageType("mystery")},
			live: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduled := tt.scheduled
			if scheduled == nil {
				scheduled = &fakeScheduled{}
			}
			periodic := tt.periodic
			if periodic == nil {
				periodic = &fakePeriodic{}
			}
			fx := newFixture(&fakeTemplates{}, scheduled, periodic)

			err := fx.former.checkMessageStatus(context.Background(), tt.unit)
			if tt.live {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errs.IsKind(err, errs.KindPreflight))
			}
		})
	}
}

func TestHandleDelivery_PanicIsContained(t *testing.T) {
	var captured any
	log := testLogger()
	store := newFakeStore()
	senders := sender.NewRegistry(log)

	f := New(
		Config{
			Queue: "notifications.high",
			OnPanic: func(_ string, _ []byte, recovered any) {
				captured = recovered
			},
		},
		&fakeTemplates{err: errors.New("unused")},
		&fakeScheduled{}, &fakePeriodic{},
		store, panickyUsers{}, render.New(nil, log), senders, log,
	)

	unit := immediateUnit(uuid.New())
	unit.MessageType = models.MessageImmediate

	// Template load succeeds but user fetch panics.
	f.templates = &fakeTemplates{template: &models.Template{Body: "hi"}}
	assert.NotPanics(t, func() {
		f.HandleDelivery(context.Background(), encode(t, unit), "req-1")
	})
	assert.Equal(t, "boom", captured)
}

type panickyUsers struct{}

func (panickyUsers) GetUserData(context.Context, uuid.UUID) (*auth.UserData, error) {
	panic("boom")
}
func (panickyUsers) GetUsersByBirthday(context.Context, int, int, int, int) ([]uuid.UUID, error) {
	panic("boom")
}
