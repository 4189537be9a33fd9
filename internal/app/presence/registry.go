/*
Package presence tracks which live sessions belong to which user and which chat room.

Every session registered under a user id sits in that user's personal room; direct delivery
(a new message for user X) fans out to all of X's devices through it. Chat rooms are joined
explicitly and carry room-scoped signals such as typing indicators. Nothing here is persisted:
a restart drops all presence and clients set up and join again.
*/
package presence

import (
	"errors"
	"slices"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrEmptyKey is returned when a user id or chat id is blank.
	ErrEmptyKey = errors.New("presence key is empty")

	// ErrIdentityMismatch is returned when a session already registered under one user is
	// registered again under another.
	ErrIdentityMismatch = errors.New("session already registered under another user")

	// ErrNotRegistered is returned by JoinRoom for a session that never registered.
	ErrNotRegistered = errors.New("session not registered")
)

// Subscriber is a live session as the registry sees it.
type Subscriber interface {
	// ID uniquely identifies the session for its lifetime.
	ID() string

	// Deliver enqueues an encoded event without blocking and reports whether it was accepted.
	Deliver(payload []byte) bool
}

type members map[string]Subscriber

// binding is the reverse index for one session, so Leave touches only the rooms it joined.
type binding struct {
	sub    Subscriber
	userID string
	rooms  map[string]struct{}
}

// Stats is a point-in-time count of presence state.
type Stats struct {
	Users    int `json:"users"`
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
}

// Registry is the process-wide presence map. It is safe for concurrent use; build one at
// startup and share it.
type Registry struct {
	mu       sync.RWMutex
	users    map[string]members
	rooms    map[string]members
	sessions map[string]*binding
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:    make(map[string]members),
		rooms:    make(map[string]members),
		sessions: make(map[string]*binding),
	}
}

// Register puts sub in userID's personal room. Registering the same pair again is a no-op.
func (r *Registry) Register(userID string, sub Subscriber) error {
	if userID == "" || sub.ID() == "" {
		return ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.sessions[sub.ID()]; ok {
		if b.userID != userID {
			return ErrIdentityMismatch
		}
		return nil
	}

	r.sessions[sub.ID()] = &binding{
		sub:    sub,
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
	add(r.users, userID, sub)

	return nil
}

// JoinRoom adds a registered session to the room for chatID. Joining twice is a no-op.
func (r *Registry) JoinRoom(sub Subscriber, chatID string) error {
	if chatID == "" {
		return ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.sessions[sub.ID()]
	if !ok {
		return ErrNotRegistered
	}

	b.rooms[chatID] = struct{}{}
	add(r.rooms, chatID, sub)

	return nil
}

// Leave removes sub from every room it joined and from its personal room.
// It returns false when the session was never registered.
func (r *Registry) Leave(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.sessions[sub.ID()]
	if !ok {
		return false
	}

	for chatID := range b.rooms {
		remove(r.rooms, chatID, sub.ID())
	}
	remove(r.users, b.userID, sub.ID())
	delete(r.sessions, sub.ID())

	return true
}

// LeaveRoom removes every session of userID from the room for chatID, as when the user stops
// being a participant. It returns the number of sessions removed.
func (r *Registry) LeaveRoom(userID, chatID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id := range r.users[userID] {
		b := r.sessions[id]
		if _, joined := b.rooms[chatID]; !joined {
			continue
		}
		delete(b.rooms, chatID)
		remove(r.rooms, chatID, id)
		evicted++
	}

	return evicted
}

// UserSessions returns a snapshot of the sessions registered under userID.
func (r *Registry) UserSessions(userID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.users[userID])
}

// RoomSessions returns a snapshot of the sessions joined to chatID.
func (r *Registry) RoomSessions(chatID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.rooms[chatID])
}

// InRoom reports whether sub has joined chatID.
func (r *Registry) InRoom(sub Subscriber, chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.sessions[sub.ID()]
	if !ok {
		return false
	}
	_, joined := b.rooms[chatID]
	return joined
}

// IsOnline reports whether userID has at least one registered session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

// OnlineUsers returns the ids of users with at least one session, sorted.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	ids := lo.Keys(r.users)
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Stats returns the current presence counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Users:    len(r.users),
		Sessions: len(r.sessions),
		Rooms:    len(r.rooms),
	}
}

func add(index map[string]members, key string, sub Subscriber) {
	set, ok := index[key]
	if !ok {
		set = make(members)
		index[key] = set
	}
	set[sub.ID()] = sub
}

// remove drops the session from the set under key and deletes the set once it is empty.
func remove(index map[string]members, key, sessionID string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(index, key)
	}
}
