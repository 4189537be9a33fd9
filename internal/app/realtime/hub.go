package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatwave/internal/app/presence"
	"chatwave/internal/app/user"
	"chatwave/internal/pkg/logx"
)

// ErrHubClosed is returned by Serve after Shutdown has started.
var ErrHubClosed = errors.New("realtime hub is shut down")

// MembershipChecker answers whether a user may join a chat room.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// Hub is the realtime entry point. It is built once at startup, owns the presence registry and
// the router, and tracks live sessions so Shutdown can close them.
type Hub struct {
	registry *presence.Registry
	router   *Router
	members  MembershipChecker

	// mu protects sessions and closed.
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	// wg counts running pumps.
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger zerolog.Logger
}

// NewHub constructs a Hub over registry. members is consulted on every "join chat".
func NewHub(registry *presence.Registry, members MembershipChecker) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		registry: registry,
		router:   NewRouter(registry),
		members:  members,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logx.Component("Hub"),
	}
}

// Registry returns the presence registry shared by every session.
func (h *Hub) Registry() *presence.Registry { return h.registry }

// Router returns the router sessions use for fan-out.
func (h *Hub) Router() *Router { return h.router }

// EvictFromRoom drops userID's sessions from the chat room after the user has left the chat,
// so they stop receiving its typing signals and can no longer post to it.
func (h *Hub) EvictFromRoom(userID, chatID string) int {
	evicted := h.registry.LeaveRoom(userID, chatID)
	if evicted > 0 {
		h.logger.Info().
			Str("user_id", userID).
			Str("chat_id", chatID).
			Int("sessions", evicted).
			Msg("Sessions evicted from chat room.")
	}
	return evicted
}

// Serve starts the pumps for an upgraded connection and returns without waiting for them.
func (h *Hub) Serve(conn *websocket.Conn, identity user.User) (*Session, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}

	s := newSession(h, conn, identity)
	h.sessions[s.id] = s
	h.wg.Add(2)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		s.WritePump()
	}()
	go func() {
		defer h.wg.Done()
		s.ReadPump()
	}()

	h.logger.Info().Str("session_id", s.id).Str("user_id", identity.ID).Msg("Session started.")
	return s, nil
}

// detach forgets s and releases its presence entries.
func (h *Hub) detach(s *Session) {
	h.registry.Leave(s)

	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.sessions)
}

// Shutdown closes every session and waits for their pumps to exit or for ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("Shutting down realtime hub...")

	h.mu.Lock()
	h.closed = true
	live := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		live = append(live, s)
	}
	h.mu.Unlock()

	h.cancel()
	for _, s := range live {
		s.Close(websocket.CloseGoingAway, "server shutting down")
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info().Int("sessions_closed", len(live)).Msg("Realtime hub shutdown complete.")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Msg("Realtime hub shutdown timed out.")
		return ctx.Err()
	}
}
