package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatwave/internal/app/user"
	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/logx"
)

// Service applies guarded mutations to the membership store.
// It never touches presence: a newly added participant starts receiving live updates once
// their client joins the chat room.
type Service struct {
	store  Store
	users  user.Repository
	logger zerolog.Logger
}

// NewService constructs a Service over the given stores.
func NewService(store Store, users user.Repository) *Service {
	return &Service{
		store:  store,
		users:  users,
		logger: logx.Component("ChatService"),
	}
}

// storeError maps a store failure to the application taxonomy.
func storeError(err error) *errs.CustomError {
	switch {
	case errors.Is(err, ErrNotFound):
		return errs.NewError(errs.ErrChatNotFound)
	case errors.Is(err, ErrCorrupted):
		return errs.NewError(errs.ErrChatCorrupted)
	case errors.Is(err, ErrParticipantExists):
		return errs.NewError(errs.ErrAlreadyMember)
	case errors.Is(err, ErrParticipantMissing):
		return errs.NewError(errs.ErrNotMember)
	case errors.Is(err, ErrAdminChanged):
		return errs.NewError(errs.ErrNotGroupAdmin)
	case errors.Is(err, user.ErrNotFound):
		return errs.NewError(errs.ErrUserNotFound)
	default:
		return errs.Internal(err)
	}
}

// snapshot loads a chat for the guard. A missing chat is returned as nil without error so the
// guard reports NotFound after its own identity checks.
func (s *Service) snapshot(ctx context.Context, chatID string) (*Chat, *errs.CustomError) {
	if strings.TrimSpace(chatID) == "" {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	c, err := s.store.FindChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, storeError(err)
	}

	return &c, nil
}

func (s *Service) requireUser(ctx context.Context, id string) *errs.CustomError {
	if _, err := s.users.FindUserByID(ctx, id); err != nil {
		return storeError(err)
	}
	return nil
}

// AccessChat returns the one-to-one chat between actorID and targetID, creating it on first use.
func (s *Service) AccessChat(ctx context.Context, actorID, targetID string) (Chat, *errs.CustomError) {
	if err := PlanDirect(actorID, targetID); err != nil {
		return Chat{}, err
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return Chat{}, err
	}

	c, err := s.store.FindOrCreateOneToOne(ctx, actorID, targetID)
	if err != nil {
		return Chat{}, storeError(err)
	}

	return c, nil
}

// ListChats returns every chat actorID participates in, most recently updated first.
func (s *Service) ListChats(ctx context.Context, actorID string) ([]Chat, *errs.CustomError) {
	if actorID == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	chats, err := s.store.ListChatsForUser(ctx, actorID)
	if err != nil {
		return nil, storeError(err)
	}

	return chats, nil
}

// CreateGroup creates a group chat administered by actorID.
func (s *Service) CreateGroup(ctx context.Context, actorID, name string, participantIDs []string) (Chat, *errs.CustomError) {
	plan, denied := PlanGroup(actorID, name, participantIDs)
	if denied != nil {
		return Chat{}, denied
	}

	found, err := s.users.FindUsersByIDs(ctx, plan.ParticipantIDs)
	if err != nil {
		return Chat{}, storeError(err)
	}
	if len(found) != len(plan.ParticipantIDs) {
		missing := lo.Without(plan.ParticipantIDs, lo.Map(found, func(u user.User, _ int) string { return u.ID })...)
		s.logger.Warn().Strs("missing_user_ids", missing).Msg("Group creation references unknown users.")
		return Chat{}, errs.NewError(errs.ErrUserNotFound)
	}

	c, err := s.store.CreateChat(ctx, plan)
	if err != nil {
		return Chat{}, storeError(err)
	}

	s.logger.Info().
		Str("chat_id", c.ID).
		Str("admin_id", actorID).
		Int("participants", len(c.Users)).
		Msg("Group chat created.")

	return c, nil
}

// Rename sets a new chat name. Any participant may rename.
func (s *Service) Rename(ctx context.Context, actorID, chatID, name string) (Chat, *errs.CustomError) {
	c, loadErr := s.snapshot(ctx, chatID)
	if loadErr != nil {
		return Chat{}, loadErr
	}
	if denied := CanRename(c, actorID, name); denied != nil {
		return Chat{}, denied
	}

	updated, err := s.store.RenameChat(ctx, chatID, strings.TrimSpace(name))
	if err != nil {
		return Chat{}, storeError(err)
	}

	return updated, nil
}

// AddParticipant adds targetID to a group on behalf of its admin.
func (s *Service) AddParticipant(ctx context.Context, actorID, chatID, targetID string) (Chat, *errs.CustomError) {
	c, loadErr := s.snapshot(ctx, chatID)
	if loadErr != nil {
		return Chat{}, loadErr
	}
	if denied := CanAddParticipant(c, actorID, targetID); denied != nil {
		return Chat{}, denied
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return Chat{}, err
	}

	updated, err := s.store.AddParticipant(ctx, chatID, actorID, targetID)
	if err != nil {
		return Chat{}, storeError(err)
	}

	s.logger.Info().
		Str("chat_id", chatID).
		Str("actor_id", actorID).
		Str("target_id", targetID).
		Msg("Participant added.")

	return updated, nil
}

// RemoveParticipant removes targetID from a group: the admin may remove anyone, any
// participant may leave. An admin who leaves hands the role to the earliest-joined member.
func (s *Service) RemoveParticipant(ctx context.Context, actorID, chatID, targetID string) (Chat, *errs.CustomError) {
	c, loadErr := s.snapshot(ctx, chatID)
	if loadErr != nil {
		return Chat{}, loadErr
	}

	removal, denied := PlanRemoval(c, actorID, targetID)
	if denied != nil {
		return Chat{}, denied
	}

	updated, err := s.store.RemoveParticipant(ctx, chatID, removal)
	if err != nil {
		return Chat{}, storeError(err)
	}

	event := s.logger.Info().
		Str("chat_id", chatID).
		Str("actor_id", actorID).
		Str("target_id", targetID).
		Bool("self_leave", removal.SelfLeave(actorID))
	if removal.NextAdmin != "" {
		event = event.Str("next_admin_id", removal.NextAdmin)
	}
	event.Msg("Participant removed.")

	return updated, nil
}

// SendMessage persists a message, points the chat's latest message at it and returns it with
// the chat (and its participants) populated for fan-out.
func (s *Service) SendMessage(ctx context.Context, actorID, chatID, content string) (Message, *errs.CustomError) {
	c, loadErr := s.snapshot(ctx, chatID)
	if loadErr != nil {
		return Message{}, loadErr
	}
	if denied := CanPost(c, actorID, content); denied != nil {
		return Message{}, denied
	}

	msg, err := s.store.CreateMessage(ctx, NewMessage{
		SenderID: actorID,
		ChatID:   chatID,
		Content:  content,
	})
	if err != nil {
		return Message{}, storeError(err)
	}

	if err := s.store.SetLatestMessage(ctx, chatID, msg.ID); err != nil {
		// The message is stored; only the chat list ordering is stale.
		s.logger.Error().Err(err).Str("chat_id", chatID).Str("message_id", msg.ID).Msg("Failed to set latest message.")
	}

	populated := *c
	populated.LatestMessage = nil
	populated.UpdatedAt = msg.CreatedAt
	msg.Chat = &populated

	return msg, nil
}

// ListMessages returns a chat's history, oldest first, to its participants.
func (s *Service) ListMessages(ctx context.Context, actorID, chatID string) ([]Message, *errs.CustomError) {
	c, loadErr := s.snapshot(ctx, chatID)
	if loadErr != nil {
		return nil, loadErr
	}
	if denied := CanView(c, actorID); denied != nil {
		return nil, denied
	}

	messages, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, storeError(err)
	}

	return messages, nil
}

// IsParticipant reports whether userID participates in chatID. A missing chat is not an error.
func (s *Service) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	c, err := s.store.FindChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return c.HasParticipant(userID), nil
}
