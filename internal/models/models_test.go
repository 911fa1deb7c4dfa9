package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronNext(t *testing.T) {
	from := time.Date(2026, 3, 10, 12, 30, 45, 0, time.UTC)

	next, err := CronNext("* * * * *", from)
	require.NoError(t, err)
	assert.True(t, next.After(from))
	assert.Equal(t, time.UTC, next.Location())
	assert.Equal(t, time.Date(2026, 3, 10, 12, 31, 0, 0, time.UTC), next)
}

func TestCronNext_InvalidSpec(t *testing.T) {
	_, err := CronNext("not a cron", time.Now())
	assert.Error(t, err)
}

func TestCronNext_Monotone(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		next, err := CronNext("*/5 * * * *", at)
		require.NoError(t, err)
		assert.True(t, next.After(at))
		at = next
	}
}

func TestChannelTypeValid(t *testing.T) {
	assert.True(t, ChannelEmail.Valid())
	assert.True(t, ChannelSMS.Valid())
	assert.True(t, ChannelPush.Valid())
	assert.False(t, ChannelType("fax").Valid())
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventUserRegistration.Valid())
	assert.False(t, EventType("").Valid())
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"subject": "hi", "count": float64(3)}

	value, err := m.Value()
	require.NoError(t, err)

	var scanned JSONMap
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, m, scanned)
}

func TestJSONMapScanNil(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestWorkUnitSubject(t *testing.T) {
	unit := &WorkUnit{Context: JSONMap{"subject": "Premiere tonight"}}
	assert.Equal(t, "Premiere tonight", unit.Subject("fallback"))

	unit = &WorkUnit{Context: JSONMap{}}
	assert.Equal(t, "fallback", unit.Subject("fallback"))

	unit = &WorkUnit{Context: JSONMap{"subject": 42}}
	assert.Equal(t, "fallback", unit.Subject("fallback"))
}

func TestWorkUnitEncodeDecode(t *testing.T) {
	id := uuid.New()
	unit := &WorkUnit{
		TemplateID:     uuid.New(),
		Context:        JSONMap{"url": "https://example.com"},
		Subscribers:    []uuid.UUID{uuid.New(), uuid.New()},
		EventType:      EventNewMovie,
		ChannelType:    ChannelEmail,
		NotificationID: &id,
		MessageType:    MessagePeriodic,
	}

	body, err := unit.Encode()
	require.NoError(t, err)

	decoded, err := DecodeWorkUnit(body)
	require.NoError(t, err)
	assert.Equal(t, unit, decoded)
}

func TestDecodeWorkUnit_BadPayload(t *testing.T) {
	_, err := DecodeWorkUnit([]byte("not json"))
	assert.Error(t, err)
}
