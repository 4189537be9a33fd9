package realtime

import (
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/presence"
	"chatwave/internal/app/user"
	"chatwave/internal/pkg/logx"
)

// Router fans events out to the sessions held by a presence.Registry.
// Delivery is fire-and-forget: it never blocks, never retries and reports nothing to the sender.
type Router struct {
	registry *presence.Registry
	logger   zerolog.Logger
}

// NewRouter builds a Router over registry.
func NewRouter(registry *presence.Registry) *Router {
	return &Router{
		registry: registry,
		logger:   logx.Component("Router"),
	}
}

// DeliverMessage sends msg to every session of every participant except the sender's own.
// Participants without a live session miss the event; they read it from history later.
// It returns the number of sessions the event was queued on.
func (r *Router) DeliverMessage(msg chat.Message) int {
	if msg.Chat == nil || len(msg.Chat.Users) == 0 {
		r.logger.Warn().
			Str("message_id", msg.ID).
			Str("sender_id", msg.Sender.ID).
			Msg("Message has no participant list. Dropping.")
		return 0
	}

	payload, err := Encode(EventNewMessage, msg)
	if err != nil {
		r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to encode message for delivery.")
		return 0
	}

	// The participant list comes from the client; a repeated participant gets one copy.
	recipients := lo.UniqBy(msg.Chat.Users, func(u user.User) string { return u.ID })

	queued := 0
	for _, participant := range recipients {
		if participant.ID == msg.Sender.ID {
			continue
		}
		queued += r.deliver(r.registry.UserSessions(participant.ID), "", payload)
	}

	r.logger.Debug().
		Str("message_id", msg.ID).
		Str("chat_id", msg.Chat.ID).
		Int("sessions", queued).
		Msg("Message delivered.")

	return queued
}

// Relay forwards a room-scoped signal, such as a typing indicator, to every other session in
// the chat room. The payload is the chat id, as received.
func (r *Router) Relay(from presence.Subscriber, chatID string, eventType EventType) int {
	payload, err := Encode(eventType, chatID)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(eventType)).Msg("Failed to encode relay event.")
		return 0
	}

	return r.deliver(r.registry.RoomSessions(chatID), from.ID(), payload)
}

func (r *Router) deliver(targets []presence.Subscriber, skipID string, payload []byte) int {
	queued := 0
	for _, sub := range targets {
		if sub.ID() == skipID {
			continue
		}
		if sub.Deliver(payload) {
			queued++
			continue
		}
		r.logger.Warn().Str("session_id", sub.ID()).Msg("Session queue full or closed. Event dropped.")
	}
	return queued
}
