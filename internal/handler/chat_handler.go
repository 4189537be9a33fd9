package handler

import (
	"encoding/json"
	"net/http"

	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/req"
	"chatwave/internal/pkg/resp"
)

// idList accepts a JSON array of ids or a string holding one, as older clients send.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		data = []byte(encoded)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

type AccessChatInput struct {
	UserID string `json:"userId" validate:"required"`
}

// HandleAccessChat returns the one-to-one chat with userId, creating it on first use.
func HandleAccessChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input AccessChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		c, customErr := deps.Chats.AccessChat(r.Context(), identity.ID, input.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, c)
	}
}

// HandleListChats returns the caller's chats, most recently active first.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		chats, customErr := deps.Chats.ListChats(r.Context(), identity.ID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, chats)
	}
}

type CreateGroupInput struct {
	Name  string `json:"name"`
	Users idList `json:"users"`
}

// HandleCreateGroup creates a group administered by the caller.
func HandleCreateGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input CreateGroupInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		c, customErr := deps.Chats.CreateGroup(r.Context(), identity.ID, input.Name, input.Users)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondCreated(w, r, c)
	}
}

type RenameChatInput struct {
	ChatID   string `json:"chatId" validate:"required"`
	ChatName string `json:"chatName"`
}

// HandleRenameChat renames a chat. Any participant may rename.
func HandleRenameChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input RenameChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		c, customErr := deps.Chats.Rename(r.Context(), identity.ID, input.ChatID, input.ChatName)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, c)
	}
}

type MembershipInput struct {
	ChatID string `json:"chatId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

// HandleAddToGroup adds userId to a group. Admin only.
func HandleAddToGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input MembershipInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		c, customErr := deps.Chats.AddParticipant(r.Context(), identity.ID, input.ChatID, input.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, c)
	}
}

// HandleRemoveFromGroup removes userId from a group: the admin removes anyone, others may
// only remove themselves. The removed user's live sessions leave the chat room.
func HandleRemoveFromGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input MembershipInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		c, customErr := deps.Chats.RemoveParticipant(r.Context(), identity.ID, input.ChatID, input.UserID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deps.Hub.EvictFromRoom(input.UserID, c.ID)

		resp.RespondSuccess(w, r, c)
	}
}
