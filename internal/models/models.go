// Package models holds the persistent entities and the broker payload of
// the notification pipeline.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ChannelType represents a delivery channel.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSMS   ChannelType = "sms"
	ChannelPush  ChannelType = "push"
)

// Valid reports whether the channel is one the system knows about.
func (c ChannelType) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	default:
		return false
	}
}

// EventType classifies the business event behind a notification and drives
// priority routing.
type EventType string

const (
	EventUserRegistration EventType = "user_registration"
	EventNewMovie         EventType = "new_movie"
	EventCustom           EventType = "custom"
)

// Valid reports whether the event type is a known one.
func (e EventType) Valid() bool {
	switch e {
	case EventUserRegistration, EventNewMovie, EventCustom:
		return true
	default:
		return false
	}
}

// MessageType distinguishes the origin of a work unit.
type MessageType string

const (
	MessageImmediate MessageType = "immediate"
	MessageScheduled MessageType = "scheduled"
	MessagePeriodic  MessageType = "periodic"
)

// JSONMap is a JSON object column.
type JSONMap map[string]any

// Value implements driver.Valuer for database storage.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, m)
}

// Template is a stored notification body template. The body is guaranteed
// to parse under the renderer's grammar at write time.
type Template struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	StaffID   uuid.UUID `json:"staff_id" db:"staff_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ScheduledNotification is a one-shot notification fired once its
// scheduled time passes. IsSent transitions false->true exactly once.
type ScheduledNotification struct {
	ID                   uuid.UUID   `json:"id" db:"id"`
	StaffID              uuid.UUID   `json:"staff_id" db:"staff_id"`
	TemplateID           uuid.UUID   `json:"template_id" db:"template_id"`
	ChannelType          ChannelType `json:"channel_type" db:"channel_type"`
	EventType            EventType   `json:"event_type" db:"event_type"`
	ScheduledTime        time.Time   `json:"scheduled_time" db:"scheduled_time"`
	IsSent               bool        `json:"is_sent" db:"is_sent"`
	Context              JSONMap     `json:"context" db:"context"`
	SubscriberQueryType  string      `json:"subscriber_query_type" db:"subscriber_query_type"`
	SubscriberQueryParams JSONMap    `json:"subscriber_query_params" db:"subscriber_query_params"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at" db:"updated_at"`
}

// PeriodicNotification fires repeatedly on a 5-field cron schedule until
// deactivated or its stop date passes.
type PeriodicNotification struct {
	ID                   uuid.UUID   `json:"id" db:"id"`
	StaffID              uuid.UUID   `json:"staff_id" db:"staff_id"`
	TemplateID           uuid.UUID   `json:"template_id" db:"template_id"`
	ChannelType          ChannelType `json:"channel_type" db:"channel_type"`
	EventType            EventType   `json:"event_type" db:"event_type"`
	CronSchedule         string      `json:"cron_schedule" db:"cron_schedule"`
	LastRunTime          *time.Time  `json:"last_run_time,omitempty" db:"last_run_time"`
	NextRunTime          time.Time   `json:"next_run_time" db:"next_run_time"`
	IsActive             bool        `json:"is_active" db:"is_active"`
	Context              JSONMap     `json:"context" db:"context"`
	StopDate             *time.Time  `json:"stop_date,omitempty" db:"stop_date"`
	SubscriberQueryType  string      `json:"subscriber_query_type" db:"subscriber_query_type"`
	SubscriberQueryParams JSONMap    `json:"subscriber_query_params" db:"subscriber_query_params"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at" db:"updated_at"`
}

// NextRun computes the next fire time after from, in UTC.
func (p *PeriodicNotification) NextRun(from time.Time) (time.Time, error) {
	next, err := CronNext(p.CronSchedule, from)
	if err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// ParseCron validates a 5-field cron expression.
func ParseCron(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// CronNext returns the first fire time of spec strictly after from, in UTC.
func CronNext(spec string, from time.Time) (time.Time, error) {
	sched, err := ParseCron(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.UTC()).UTC(), nil
}
