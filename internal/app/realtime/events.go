/*
Package realtime carries live chat traffic over websockets.

This file defines the wire events. Every frame is an Envelope; inbound payloads are decoded
into one typed variant per event name and validated before anything is routed.
*/
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/user"
)

// EventType names a websocket event.
type EventType string

const (
	// EventSetup identifies the session: client → server, payload SetupPayload.
	EventSetup EventType = "setup"

	// EventJoinChat subscribes the session to a chat room: client → server, payload chat id.
	EventJoinChat EventType = "join chat"

	// EventTyping and EventStopTyping are relayed to the chat room: payload chat id.
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop typing"

	// EventNewMessage carries a persisted message in both directions, payload MessageEvent.
	EventNewMessage EventType = "new message"

	// EventConnected acknowledges setup: server → client, payload ConnectedPayload.
	EventConnected EventType = "connected"

	// EventError reports a rejected event to its sender only: server → client, payload ErrorPayload.
	EventError EventType = "error"
)

// Envelope is the frame shared by all events.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SetupPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type ConnectedPayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EventChat is the denormalized chat carried by a "new message" event.
type EventChat struct {
	ID          string      `json:"id" validate:"required"`
	ChatName    string      `json:"chatName,omitempty"`
	IsGroupChat bool        `json:"isGroupChat"`
	Users       []user.User `json:"users" validate:"required,min=1,dive"`
}

// MessageEvent is the inbound "new message" payload: a message the client already persisted,
// with its sender and participant list populated.
type MessageEvent struct {
	ID        string     `json:"id" validate:"required"`
	Sender    user.User  `json:"sender" validate:"required"`
	Content   string     `json:"content"`
	Chat      *EventChat `json:"chat" validate:"required"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Message converts the event into the model the router delivers.
func (e MessageEvent) Message() chat.Message {
	c := &chat.Chat{
		ID:          e.Chat.ID,
		ChatName:    e.Chat.ChatName,
		IsGroupChat: e.Chat.IsGroupChat,
		Users:       e.Chat.Users,
	}
	return chat.Message{
		ID:        e.ID,
		Sender:    e.Sender,
		Content:   e.Content,
		ChatID:    e.Chat.ID,
		Chat:      c,
		CreatedAt: e.CreatedAt,
	}
}

var (
	// ErrMalformedEnvelope is returned when a frame is not a JSON envelope with a type.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMalformedPayload is returned when a payload does not decode into its variant.
	ErrMalformedPayload = errors.New("malformed payload")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeEnvelope parses a raw frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if strings.TrimSpace(string(env.Type)) == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return env, nil
}

// DecodePayload unmarshals a struct payload and runs its validate tags.
func DecodePayload[T any](env Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Type, err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Type, err)
	}
	return payload, nil
}

// DecodeChatID unmarshals the bare chat id carried by room events.
func DecodeChatID(env Envelope) (string, error) {
	var chatID string
	if err := json.Unmarshal(env.Payload, &chatID); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Type, err)
	}
	chatID = strings.TrimSpace(chatID)
	if err := validate.Var(chatID, "required"); err != nil {
		return "", fmt.Errorf("%w: %s: chat id is required", ErrMalformedPayload, env.Type)
	}
	return chatID, nil
}

// Encode builds an outbound frame.
func Encode(eventType EventType, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}
