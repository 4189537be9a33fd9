package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"chatwave/internal/app/user"
	"chatwave/internal/pkg/errs"
)

// The functions in this file are pure: they look at a chat snapshot and an actor and either
// allow the request (nil) or name the reason it is denied. Applying the change is the
// caller's job.

// Removal is a permitted participant removal.
type Removal struct {
	// Target is the user leaving the chat.
	Target string

	// NextAdmin is set when the admin leaves while others remain; it is the earliest-joined
	// remaining participant.
	NextAdmin string

	// ExpectedAdmin is the admin the removal was authorized against. It is empty for a plain
	// member leaving on their own, which needs no admin.
	ExpectedAdmin string
}

// SelfLeave reports whether the actor is removing themselves.
func (r Removal) SelfLeave(actorID string) bool {
	return r.Target == actorID
}

// checkGroup runs the checks shared by every group mutation, in order: chat resolved,
// chat is a group, group has an admin.
func checkGroup(c *Chat) *errs.CustomError {
	if c == nil {
		return errs.NewError(errs.ErrChatNotFound)
	}
	if !c.IsGroupChat {
		return errs.NewError(errs.ErrNotGroupChat)
	}
	if c.GroupAdmin == nil {
		return errs.NewError(errs.ErrChatCorrupted)
	}
	return nil
}

// CanAddParticipant allows only the group admin to add a user who is not yet a participant.
// A non-admin is refused before membership is checked, so the answer leaks nothing.
func CanAddParticipant(c *Chat, actorID, targetID string) *errs.CustomError {
	if actorID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if strings.TrimSpace(targetID) == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if err := checkGroup(c); err != nil {
		return err
	}
	if !c.IsAdmin(actorID) {
		return errs.NewError(errs.ErrNotGroupAdmin)
	}
	if c.HasParticipant(targetID) {
		return errs.NewError(errs.ErrAlreadyMember)
	}
	return nil
}

// PlanRemoval allows the admin to remove anyone and any participant to remove themselves.
func PlanRemoval(c *Chat, actorID, targetID string) (Removal, *errs.CustomError) {
	if actorID == "" {
		return Removal{}, errs.NewError(errs.ErrUnauthorized)
	}
	if strings.TrimSpace(targetID) == "" {
		return Removal{}, errs.NewError(errs.ErrInvalidParams)
	}
	if err := checkGroup(c); err != nil {
		return Removal{}, err
	}
	if !c.IsAdmin(actorID) && actorID != targetID {
		return Removal{}, errs.NewError(errs.ErrNotGroupAdmin)
	}
	if !c.HasParticipant(targetID) {
		return Removal{}, errs.NewError(errs.ErrNotMember)
	}

	removal := Removal{Target: targetID}
	if actorID != targetID || c.IsAdmin(targetID) {
		removal.ExpectedAdmin = c.AdminID()
	}

	if c.IsAdmin(targetID) {
		if next, ok := lo.Find(c.Users, func(u user.User) bool { return u.ID != targetID }); ok {
			removal.NextAdmin = next.ID
		}
	}

	return removal, nil
}

// CanRename lets any current participant rename the chat. There is no admin check.
func CanRename(c *Chat, actorID, name string) *errs.CustomError {
	if actorID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if err := validateChatName(name); err != nil {
		return err
	}
	if c == nil {
		return errs.NewError(errs.ErrChatNotFound)
	}
	if !c.HasParticipant(actorID) {
		return errs.NewError(errs.ErrNotParticipant)
	}
	return nil
}

// PlanGroup validates a group creation request and returns the chat to create, with the
// creator as admin and first participant and the rest deduplicated in request order.
func PlanGroup(creatorID, name string, participantIDs []string) (NewChat, *errs.CustomError) {
	if creatorID == "" {
		return NewChat{}, errs.NewError(errs.ErrUnauthorized)
	}
	if err := validateChatName(name); err != nil {
		return NewChat{}, err
	}

	trimmed := lo.Map(participantIDs, func(id string, _ int) string { return strings.TrimSpace(id) })
	if lo.Contains(trimmed, "") {
		return NewChat{}, errs.NewError(errs.ErrInvalidParams)
	}

	others := lo.Without(lo.Uniq(trimmed), creatorID)
	if len(others) == 0 {
		return NewChat{}, errs.NewError(errs.ErrGroupMembersRequired)
	}

	return NewChat{
		ChatName:       strings.TrimSpace(name),
		IsGroupChat:    true,
		ParticipantIDs: append([]string{creatorID}, others...),
		AdminID:        creatorID,
	}, nil
}

// PlanDirect validates a one-to-one chat request between actorID and targetID.
func PlanDirect(actorID, targetID string) *errs.CustomError {
	if actorID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if strings.TrimSpace(targetID) == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if actorID == targetID {
		return errs.NewError(errs.ErrSelfChat)
	}
	return nil
}

// CanView allows participants to read a chat and its history.
func CanView(c *Chat, actorID string) *errs.CustomError {
	if actorID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if c == nil {
		return errs.NewError(errs.ErrChatNotFound)
	}
	if !c.HasParticipant(actorID) {
		return errs.NewError(errs.ErrNotParticipant)
	}
	return nil
}

// CanPost allows participants to send a non-empty message of bounded size.
func CanPost(c *Chat, actorID, content string) *errs.CustomError {
	if actorID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if strings.TrimSpace(content) == "" {
		return errs.NewError(errs.ErrMessageContentRequired)
	}
	if len(content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	return CanView(c, actorID)
}

func validateChatName(name string) *errs.CustomError {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.NewError(errs.ErrChatNameRequired)
	}
	if utf8.RuneCountInString(name) > MaxChatNameRunes {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}
