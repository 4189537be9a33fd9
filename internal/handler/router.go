/*
Package handler provides the HTTP handlers and routing setup for the chat server.

Router applies logging, CORS and IP-based rate limiting before delegating to the REST handlers
and the websocket upgrade.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/limiter"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/resp"
)

const (
	AuthRate     = 0.2
	AuthBurst    = 5
	ConnectRate  = 0.5
	ConnectBurst = 10
)

type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	OnlineUsers int    `json:"onlineUsers"`
	Sessions    int    `json:"sessions"`
	Rooms       int    `json:"rooms"`
}

// Router sets up the main HTTP routing table. Limiters missing from deps are created with the
// default rates; the caller owns stopping the ones it passes in.
func Router(deps *AppDeps) http.Handler {
	if deps.AuthLimiter == nil {
		deps.AuthLimiter = limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	}
	if deps.ConnectLimiter == nil {
		deps.ConnectLimiter = limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	}

	r := chi.NewRouter()

	allowedOrigins := lo.SliceToMap(deps.Config.AllowedOrigins, func(origin string) (string, struct{}) {
		return origin, struct{}{}
	})

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-PoW-Token"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Hub.Registry().Stats()

		resp.RespondSuccess(w, r, HealthResponse{
			Status:      "ok",
			Service:     "chatwave",
			OnlineUsers: stats.Users,
			Sessions:    deps.Hub.SessionCount(),
			Rooms:       stats.Rooms,
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/pow", func(p chi.Router) {
			p.Get("/challenge", HandleGetChallenge(deps))
			p.Post("/verify", HandleVerifyChallenge(deps))
		})

		api.Group(func(public chi.Router) {
			public.Use(deps.AuthLimiter.Middleware)
			public.Post("/user", HandleRegister(deps))
			public.Post("/user/login", HandleLogin(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(jwt.RequireIdentity)

			private.Get("/user", HandleSearchUsers(deps))
			private.Post("/user/avatar", HandleUploadAvatar(deps))

			private.Route("/chat", func(ch chi.Router) {
				ch.Post("/", HandleAccessChat(deps))
				ch.Get("/", HandleListChats(deps))
				ch.Post("/group", HandleCreateGroup(deps))
				ch.Put("/rename", HandleRenameChat(deps))
				ch.Put("/groupadd", HandleAddToGroup(deps))
				ch.Put("/groupremove", HandleRemoveFromGroup(deps))
			})

			private.Route("/message", func(m chi.Router) {
				m.Post("/", HandleSendMessage(deps))
				m.Get("/{chatId}", HandleListMessages(deps))
			})
		})
	})

	r.With(deps.ConnectLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}
