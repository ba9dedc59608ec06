package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventUserUpdated            EventType = "user_updated"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPostCreated            EventType = "post_created"
	EventFollowCreated          EventType = "follow_created"
	EventFollowDeleted          EventType = "follow_deleted"
)

type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type UserEventData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// PasswordResetEventData carries the reset token to whatever delivers it to
// the user. Consumers must not log Token.
type PasswordResetEventData struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PostEventData struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FollowEventData struct {
	FollowerID string    `json:"follower_id"`
	FollowedID string    `json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// DecodeEvent parses a raw message value into an event whose Data is left as
// raw JSON for DecodeData.
func DecodeEvent(raw []byte) (EventType, json.RawMessage, error) {
	var envelope struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if envelope.Type == "" {
		return "", nil, fmt.Errorf("event has no type")
	}
	return envelope.Type, envelope.Data, nil
}

func DecodeData(data json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	return nil
}
