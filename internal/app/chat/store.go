package chat

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Store when a chat or message does not exist.
	ErrNotFound = errors.New("chat not found")

	// ErrCorrupted is returned by a Store when a stored chat aggregate is inconsistent.
	ErrCorrupted = errors.New("chat aggregate corrupted")

	// ErrParticipantExists is returned by AddParticipant when the user is already present.
	ErrParticipantExists = errors.New("participant already present")

	// ErrParticipantMissing is returned by RemoveParticipant when the user is not present.
	ErrParticipantMissing = errors.New("participant not present")

	// ErrAdminChanged is returned when the chat's admin is no longer the one a mutation was
	// planned against.
	ErrAdminChanged = errors.New("group admin changed")
)

// NewChat holds the fields for CreateChat. ParticipantIDs must already be unique.
type NewChat struct {
	ChatName       string
	IsGroupChat    bool
	ParticipantIDs []string
	AdminID        string
}

// NewMessage holds the fields for CreateMessage.
type NewMessage struct {
	SenderID string
	ChatID   string
	Content  string
}

// Store is the membership store. Every chat it returns has Users and GroupAdmin resolved.
type Store interface {
	CreateChat(ctx context.Context, params NewChat) (Chat, error)
	FindChatByID(ctx context.Context, id string) (Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]Chat, error)

	// FindOrCreateOneToOne returns the direct chat between a and b, creating it if needed.
	FindOrCreateOneToOne(ctx context.Context, a, b string) (Chat, error)

	// AddParticipant appends userID to the chat's participants. adminID must still be the
	// chat's admin when the change is applied, otherwise ErrAdminChanged.
	AddParticipant(ctx context.Context, chatID, adminID, userID string) (Chat, error)

	// RemoveParticipant applies removal atomically: it drops the target, checks the expected
	// admin and reassigns the admin when NextAdmin is set.
	RemoveParticipant(ctx context.Context, chatID string, removal Removal) (Chat, error)

	RenameChat(ctx context.Context, chatID, name string) (Chat, error)

	CreateMessage(ctx context.Context, params NewMessage) (Message, error)
	SetLatestMessage(ctx context.Context, chatID, messageID string) error

	// ListMessages returns the chat's messages oldest first.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
}
