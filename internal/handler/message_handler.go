package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/req"
	"chatwave/internal/pkg/resp"
)

type SendMessageInput struct {
	ChatID  string `json:"chatId" validate:"required"`
	Content string `json:"content"`
}

// HandleSendMessage persists a message and returns it populated. Live fan-out is left to the
// sending client, which emits "new message" over its websocket.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, customErr := deps.Chats.SendMessage(r.Context(), identity.ID, input.ChatID, input.Content)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Debug("message stored", "message_id", msg.ID, "chat_id", msg.ChatID)
		resp.RespondSuccess(w, r, msg)
	}
}

// HandleListMessages returns a chat's history, oldest first.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		messages, customErr := deps.Chats.ListMessages(r.Context(), identity.ID, chi.URLParam(r, "chatId"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}
