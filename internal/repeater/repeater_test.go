package repeater

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviehub/notify/internal/routing"
)

type fakeStore struct {
	lists map[string][][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{lists: make(map[string][][]byte)}
}

func (f *fakeStore) MarkSent(context.Context, string, string) error { panic("not used") }
func (f *fakeStore) WasSent(context.Context, string, string) (bool, error) {
	panic("not used")
}
func (f *fakeStore) DLQPush(_ context.Context, queue string, payload []byte) error {
	f.lists[queue] = append(f.lists[queue], payload)
	return nil
}
func (f *fakeStore) DLQPop(_ context.Context, queue string) ([]byte, error) {
	if len(f.lists[queue]) == 0 {
		return nil, nil
	}
	head := f.lists[queue][0]
	f.lists[queue] = f.lists[queue][1:]
	return head, nil
}

type publishedMsg struct {
	queue    string
	priority int
	body     []byte
}

type fakeRepublisher struct {
	published []publishedMsg
	failAfter int
}

func (f *fakeRepublisher) Republish(_ context.Context, queue string, priority int, body []byte, _ string) error {
	if f.failAfter >= 0 && len(f.published) >= f.failAfter {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, publishedMsg{queue: queue, priority: priority, body: body})
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestTick_DrainsAllQueues(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.DLQPush(context.Background(), "notifications.high", []byte("h1")))
	require.NoError(t, store.DLQPush(context.Background(), "notifications.high", []byte("h2")))
	require.NoError(t, store.DLQPush(context.Background(), "notifications.low", []byte("l1")))

	pub := &fakeRepublisher{failAfter: -1}
	r := New(store, pub, testLogger(), 10)

	require.NoError(t, r.Tick(context.Background()))

	require.Len(t, pub.published, 3)
	for _, msg := range pub.published {
		assert.Equal(t, routing.Levels.Min, msg.priority)
	}
	assert.Empty(t, store.lists["notifications.high"])
	assert.Empty(t, store.lists["notifications.low"])
}

func TestTick_RespectsBatchSize(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.DLQPush(context.Background(), "notifications.medium", []byte{byte(i)}))
	}

	pub := &fakeRepublisher{failAfter: -1}
	r := New(store, pub, testLogger(), 3)

	require.NoError(t, r.Tick(context.Background()))

	assert.Len(t, pub.published, 3)
	assert.Len(t, store.lists["notifications.medium"], 2)
}

func TestTick_RepublishFailurePushesBack(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.DLQPush(context.Background(), "notifications.high", []byte("first")))
	require.NoError(t, store.DLQPush(context.Background(), "notifications.high", []byte("second")))

	pub := &fakeRepublisher{failAfter: 1}
	r := New(store, pub, testLogger(), 10)

	require.NoError(t, r.Tick(context.Background()))

	// First republished, second failed and went back on the list.
	require.Len(t, pub.published, 1)
	assert.Equal(t, []byte("first"), pub.published[0].body)
	require.Len(t, store.lists["notifications.high"], 1)
	assert.Equal(t, []byte("second"), store.lists["notifications.high"][0])
}
