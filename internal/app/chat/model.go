/*
Package chat contains the conversation model and the membership rules around it.

A Chat is either a one-to-one conversation (exactly two participants, no admin) or a group
(one admin who is always a participant). guard.go decides who may change a chat; service.go
loads snapshots from a Store, asks the guard, and applies the change.
*/
package chat

import (
	"time"

	"github.com/samber/lo"

	"chatwave/internal/app/user"
)

const (
	// DirectChatName is the stored name of one-to-one chats; clients show the other participant.
	DirectChatName = "sender"

	// MaxContentBytes bounds a message body.
	MaxContentBytes = 5000

	// MaxChatNameRunes bounds a chat name.
	MaxChatNameRunes = 100
)

// Chat is a conversation with its participants resolved to full user records.
type Chat struct {
	ID          string      `json:"id"`
	ChatName    string      `json:"chatName"`
	IsGroupChat bool        `json:"isGroupChat"`
	Users       []user.User `json:"users"`
	GroupAdmin  *user.User  `json:"groupAdmin,omitempty"`

	// LatestMessage is a weak reference to the newest message; nil until the first send.
	LatestMessage *Message `json:"latestMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a persisted chat message. Messages are immutable once created.
type Message struct {
	ID      string    `json:"id"`
	Sender  user.User `json:"sender"`
	Content string    `json:"content"`
	ChatID  string    `json:"chatId"`

	// Chat is populated on send and on history reads so clients can fan out without a lookup.
	Chat *Chat `json:"chat,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ParticipantIDs returns the participant ids in join order.
func (c *Chat) ParticipantIDs() []string {
	return lo.Map(c.Users, func(u user.User, _ int) string { return u.ID })
}

// HasParticipant reports whether userID is in the participant set.
func (c *Chat) HasParticipant(userID string) bool {
	return lo.ContainsBy(c.Users, func(u user.User) bool { return u.ID == userID })
}

// AdminID returns the group admin's id, or "" for one-to-one chats.
func (c *Chat) AdminID() string {
	if c.GroupAdmin == nil {
		return ""
	}
	return c.GroupAdmin.ID
}

// IsAdmin reports whether userID is the group admin.
func (c *Chat) IsAdmin(userID string) bool {
	return userID != "" && c.AdminID() == userID
}
