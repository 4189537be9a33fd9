package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatwave/internal/app/user"
	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client. A "new message" frame
	// carries the whole participant list.
	maxMessageSize = 64 << 10

	// capacity of the outbound queue.
	sendQueueSize = 256

	// upper bound for store lookups made on behalf of an event.
	lookupTimeout = 5 * time.Second
)

// State is the lifecycle stage of a Session.
type State int32

const (
	// StateAnonymous accepts only "setup".
	StateAnonymous State = iota

	// StateIdentified is registered in the presence registry.
	StateIdentified

	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is one live websocket connection.
type Session struct {
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity verified when the connection was upgraded.
	identity user.User

	hub *Hub

	// a buffered channel used to queue frames waiting to be written. It is never closed;
	// done tells producers and the writer that the session is gone.
	send chan []byte
	done chan struct{}

	state     atomic.Int32
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// structured logger with session and user context.
	logger zerolog.Logger
}

func newSession(hub *Hub, conn *websocket.Conn, identity user.User) *Session {
	id := randx.ID()
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Session{
		id:       id,
		conn:     conn,
		identity: identity,
		hub:      hub,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger: logx.Logger().With().
			Str("session_id", id).
			Str("user_id", identity.ID).
			Logger(),
	}
}

// ID implements presence.Subscriber.
func (s *Session) ID() string { return s.id }

// UserID returns the identity verified at upgrade.
func (s *Session) UserID() string { return s.identity.ID }

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Deliver implements presence.Subscriber. It never blocks: a full queue or a closed session
// drops the frame.
func (s *Session) Deliver(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- payload:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// ReadPump reads frames until the connection fails, then tears the session down.
// Teardown runs on every exit path.
func (s *Session) ReadPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		s.handle(raw)
	}
}

// WritePump drains the send queue onto the connection and keeps the heartbeat going.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := s.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug().Err(err).Msg("Connection close in WritePump")
		}
	}()

	for {
		select {
		case frame := <-s.send:
			if !s.write(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) write(messageType int, data []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.logger.Warn().Err(err).Int("message_type", messageType).Msg("Error writing to connection")
		return false
	}

	return true
}

// Close sends a close frame and drops the connection. ReadPump notices and tears down.
func (s *Session) Close(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)

	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send close frame")
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Connection close")
	}
}

// teardown releases presence before anything else so no broadcast reaches a dead session.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.hub.detach(s)
		close(s.done)
		s.cancel()

		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Connection close in teardown")
		}

		s.logger.Info().Msg("Session closed.")
	})
}

// handle routes one inbound frame. Rejections are answered to this session only.
func (s *Session) handle(raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		s.logger.Warn().Err(err).Int("size", len(raw)).Msg("Client sent invalid frame")
		s.SendError(errs.NewError(errs.ErrMalformedEvent, "websocket"))
		return
	}

	if s.State() != StateIdentified && env.Type != EventSetup {
		s.logger.Warn().Str("event", string(env.Type)).Msg("Event before setup rejected")
		s.SendError(errs.NewError(errs.ErrSetupRequired))
		return
	}

	switch env.Type {
	case EventSetup:
		s.handleSetup(env)

	case EventJoinChat:
		s.handleJoinChat(env)

	case EventTyping, EventStopTyping:
		s.handleTyping(env)

	case EventNewMessage:
		s.handleNewMessage(env)

	default:
		s.logger.Warn().Str("event", string(env.Type)).Msg("Client sent unsupported event type")
		s.SendError(errs.NewError(errs.ErrMalformedEvent, env.Type))
	}
}

func (s *Session) handleSetup(env Envelope) {
	payload, err := DecodePayload[SetupPayload](env)
	if err != nil {
		s.rejectMalformed(env, err)
		return
	}

	if payload.UserID != s.identity.ID {
		s.logger.Warn().Str("claimed_user_id", payload.UserID).Msg("Setup identity does not match token")
		s.SendError(errs.NewError(errs.ErrIdentityMismatch))
		return
	}

	if err := s.hub.registry.Register(s.identity.ID, s); err != nil {
		s.logger.Error().Err(err).Msg("Failed to register session")
		s.SendError(errs.NewError(errs.ErrIdentityMismatch))
		return
	}

	if s.state.CompareAndSwap(int32(StateAnonymous), int32(StateIdentified)) {
		s.logger.Info().Msg("Session identified.")
	}

	s.sendEvent(EventConnected, ConnectedPayload{UserID: s.identity.ID})
}

func (s *Session) handleJoinChat(env Envelope) {
	chatID, err := DecodeChatID(env)
	if err != nil {
		s.rejectMalformed(env, err)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, lookupTimeout)
	defer cancel()

	member, err := s.hub.members.IsParticipant(ctx, chatID, s.identity.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Membership lookup failed")
		s.SendError(errs.Internal(err))
		return
	}
	if !member {
		s.logger.Warn().Str("chat_id", chatID).Msg("Join rejected: not a participant")
		s.SendError(errs.NewError(errs.ErrNotParticipant))
		return
	}

	if err := s.hub.registry.JoinRoom(s, chatID); err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to join room")
		return
	}

	// A removal committed between the check and the join evicts before the join lands,
	// so confirm membership once more now that the session is in the room.
	member, err = s.hub.members.IsParticipant(ctx, chatID, s.identity.ID)
	if err != nil || !member {
		s.hub.registry.LeaveRoom(s.identity.ID, chatID)
		s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Membership revoked while joining")
		s.SendError(errs.NewError(errs.ErrNotParticipant))
		return
	}

	s.logger.Debug().Str("chat_id", chatID).Msg("Joined chat room.")
}

func (s *Session) handleTyping(env Envelope) {
	chatID, err := DecodeChatID(env)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Dropping malformed typing signal")
		return
	}

	if !s.hub.registry.InRoom(s, chatID) {
		s.logger.Debug().Str("chat_id", chatID).Msg("Dropping typing signal for a room not joined")
		return
	}

	s.hub.router.Relay(s, chatID, env.Type)
}

func (s *Session) handleNewMessage(env Envelope) {
	event, err := DecodePayload[MessageEvent](env)
	if err != nil {
		s.rejectMalformed(env, err)
		return
	}

	if event.Sender.ID != s.identity.ID {
		s.logger.Warn().Str("claimed_sender_id", event.Sender.ID).Msg("Message sender does not match session")
		s.SendError(errs.NewError(errs.ErrIdentityMismatch))
		return
	}

	if !s.hub.registry.InRoom(s, event.Chat.ID) {
		s.logger.Warn().Str("chat_id", event.Chat.ID).Msg("Message for a room not joined. Dropping.")
		s.SendError(errs.NewError(errs.ErrNotParticipant))
		return
	}

	s.hub.router.DeliverMessage(event.Message())
}

func (s *Session) rejectMalformed(env Envelope, err error) {
	s.logger.Warn().Err(err).Str("event", string(env.Type)).Msg("Client sent malformed payload")
	s.SendError(errs.NewError(errs.ErrMalformedEvent, env.Type))
}

// sendEvent encodes and queues an event for this session only.
func (s *Session) sendEvent(eventType EventType, payload any) {
	frame, err := Encode(eventType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", string(eventType)).Msg("Failed to encode event")
		return
	}

	if !s.Deliver(frame) {
		s.logger.Warn().Int("queue_len", len(s.send)).Str("event", string(eventType)).Msg("Send queue full, dropping event")
	}
}

// SendError reports a rejected event back to this session.
func (s *Session) SendError(err error) {
	payload := ErrorPayload{Code: errs.ErrUnknown, Message: "Internal server error."}

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		payload.Code = customErr.Code
		payload.Message = customErr.Message
	}

	s.sendEvent(EventError, payload)
}
