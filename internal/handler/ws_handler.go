package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"chatwave/internal/app/user"
	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/resp"
)

// HandleWebSocket authenticates the caller from its token, upgrades the connection and hands it
// to the hub. The token is checked before the upgrade so a bad one gets a plain 401.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := jwt.TokenFromRequest(r)
		if tokenString == "" {
			logx.Warn("WebSocket connection rejected: missing token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: invalid token", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		identity, err := deps.Users.FindUserByID(r.Context(), payload.ID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				logx.Warn("WebSocket connection rejected: token for unknown user", "user_id", payload.ID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			logx.Error(err, "WebSocket connection rejected: user lookup failed")
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session, err := deps.Hub.Serve(conn, identity)
		if err != nil {
			logx.Warn("WebSocket connection dropped: hub unavailable", "error", err.Error())
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			_ = conn.Close()
			return
		}

		logx.Info("WebSocket connection established", "session_id", session.ID(), "user_id", identity.ID)
	}
}
