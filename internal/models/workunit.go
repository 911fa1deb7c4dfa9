package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// WorkUnit is the JSON payload carried through the broker: one dispatch
// request plus its fan-out list of subscribers.
type WorkUnit struct {
	TemplateID     uuid.UUID   `json:"template_id"`
	Context        JSONMap     `json:"context"`
	Subscribers    []uuid.UUID `json:"subscribers"`
	EventType      EventType   `json:"event_type"`
	ChannelType    ChannelType `json:"channel_type"`
	NotificationID *uuid.UUID  `json:"notification_id"`
	MessageType    MessageType `json:"message_type"`
}

// Subject returns the per-unit subject override, or fallback when the
// context does not carry a string "subject".
func (u *WorkUnit) Subject(fallback string) string {
	if s, ok := u.Context["subject"].(string); ok && s != "" {
		return s
	}
	return fallback
}

// Encode serializes the unit for publishing.
func (u *WorkUnit) Encode() ([]byte, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to encode work unit: %w", err)
	}
	return body, nil
}

// DecodeWorkUnit parses a broker payload.
func DecodeWorkUnit(body []byte) (*WorkUnit, error) {
	var u WorkUnit
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("failed to decode work unit: %w", err)
	}
	return &u, nil
}
