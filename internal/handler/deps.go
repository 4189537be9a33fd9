package handler

import (
	"chatwave/internal/app/chat"
	"chatwave/internal/app/realtime"
	"chatwave/internal/app/storage"
	"chatwave/internal/app/user"
	"chatwave/internal/configs"
	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/limiter"
	"chatwave/internal/pkg/pow"
)

// AppDeps carries everything the HTTP layer needs. It is built once in main.
type AppDeps struct {
	Hub    *realtime.Hub
	Chats  *chat.Service
	Users  user.Repository
	Config *configs.AppConfig

	// StorageService is nil when no avatar bucket is configured.
	StorageService storage.StorageService

	Pow *pow.Manager

	// AuthLimiter throttles register/login; ConnectLimiter throttles websocket upgrades.
	AuthLimiter    *limiter.IPRateLimiter
	ConnectLimiter *limiter.IPRateLimiter
}

// issueToken signs an identity token for u.
func (d *AppDeps) issueToken(u user.User) (string, error) {
	payload := &jwt.Payload{
		ID:   u.ID,
		Name: u.Name,
	}
	return jwt.GenerateToken(payload, d.Config.JWTSecret, jwt.UserIdentityExpiration)
}
