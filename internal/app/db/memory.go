package db

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/user"
	"chatwave/internal/pkg/randx"
)

// chatRecord is the stored shape of a chat: participants by id, in join order.
type chatRecord struct {
	id           string
	name         string
	group        bool
	participants []string
	admin        string
	latest       string
	createdAt    time.Time
	updatedAt    time.Time
}

type messageRecord struct {
	id        string
	chatID    string
	senderID  string
	content   string
	createdAt time.Time
}

// MemoryStore is an in-process implementation of chat.Store and user.Repository.
// It backs STORE_DRIVER=memory and the test suites; contents are lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[string]user.Account
	emails   map[string]string
	chats    map[string]*chatRecord
	messages map[string]messageRecord
	byChat   map[string][]string

	now  func() time.Time
	last time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]user.Account),
		emails:   make(map[string]string),
		chats:    make(map[string]*chatRecord),
		messages: make(map[string]messageRecord),
		byChat:   make(map[string][]string),
		now:      time.Now,
	}
}

// tick returns a strictly increasing timestamp so ordering by time never ties.
// Callers hold the write lock.
func (s *MemoryStore) tick() time.Time {
	now := s.now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// --- users ---

func (s *MemoryStore) CreateUser(_ context.Context, params user.NewAccount) (user.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := user.NormalizeEmail(params.Email)
	if _, taken := s.emails[email]; taken {
		return user.Account{}, user.ErrEmailTaken
	}

	account := user.Account{
		User: user.User{
			ID:    randx.ID(),
			Name:  params.Name,
			Email: email,
			Pic:   params.Pic,
		},
		PasswordHash: params.PasswordHash,
		CreatedAt:    s.tick(),
	}

	s.users[account.ID] = account
	s.emails[email] = account.ID

	return account, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[user.NormalizeEmail(email)]
	if !ok {
		return user.Account{}, user.ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return account.User, nil
}

func (s *MemoryStore) FindUsersByIDs(_ context.Context, ids []string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]user.User, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if account, ok := s.users[id]; ok {
			found = append(found, account.User)
		}
	}
	return found, nil
}

func (s *MemoryStore) SearchUsers(_ context.Context, keyword string, excludeID string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(keyword))

	matches := make([]user.User, 0)
	for id, account := range s.users {
		if id == excludeID {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(account.Name), needle) ||
			strings.Contains(account.Email, needle) {
			matches = append(matches, account.User)
		}
	}

	slices.SortFunc(matches, func(a, b user.User) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	if len(matches) > user.MaxSearchResults {
		matches = matches[:user.MaxSearchResults]
	}
	return matches, nil
}

func (s *MemoryStore) UpdateUserPic(_ context.Context, id string, pic string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	account.Pic = pic
	s.users[id] = account

	return account.User, nil
}

// --- chats ---

// resolve builds the public view of rec. Callers hold at least the read lock.
func (s *MemoryStore) resolve(rec *chatRecord) (chat.Chat, error) {
	c := chat.Chat{
		ID:          rec.id,
		ChatName:    rec.name,
		IsGroupChat: rec.group,
		Users:       make([]user.User, 0, len(rec.participants)),
		CreatedAt:   rec.createdAt,
		UpdatedAt:   rec.updatedAt,
	}

	for _, id := range rec.participants {
		account, ok := s.users[id]
		if !ok {
			return chat.Chat{}, fmt.Errorf("chat %s references unknown user %s: %w", rec.id, id, chat.ErrCorrupted)
		}
		c.Users = append(c.Users, account.User)
	}

	if rec.admin != "" {
		account, ok := s.users[rec.admin]
		if !ok {
			return chat.Chat{}, fmt.Errorf("chat %s references unknown admin %s: %w", rec.id, rec.admin, chat.ErrCorrupted)
		}
		admin := account.User
		c.GroupAdmin = &admin
	}

	if rec.latest != "" {
		if m, ok := s.messages[rec.latest]; ok {
			latest := s.resolveMessage(m)
			c.LatestMessage = &latest
		}
	}

	return c, nil
}

func (s *MemoryStore) resolveMessage(m messageRecord) chat.Message {
	return chat.Message{
		ID:        m.id,
		Sender:    s.users[m.senderID].User,
		Content:   m.content,
		ChatID:    m.chatID,
		CreatedAt: m.createdAt,
	}
}

func (s *MemoryStore) CreateChat(_ context.Context, params chat.NewChat) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createChatLocked(params)
}

func (s *MemoryStore) createChatLocked(params chat.NewChat) (chat.Chat, error) {
	for _, id := range params.ParticipantIDs {
		if _, ok := s.users[id]; !ok {
			return chat.Chat{}, user.ErrNotFound
		}
	}

	now := s.tick()
	rec := &chatRecord{
		id:           randx.ID(),
		name:         params.ChatName,
		group:        params.IsGroupChat,
		participants: lo.Uniq(params.ParticipantIDs),
		admin:        params.AdminID,
		createdAt:    now,
		updatedAt:    now,
	}
	s.chats[rec.id] = rec

	return s.resolve(rec)
}

func (s *MemoryStore) FindChatByID(_ context.Context, id string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, chat.ErrNotFound
	}
	return s.resolve(rec)
}

func (s *MemoryStore) ListChatsForUser(_ context.Context, userID string) ([]chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := lo.Filter(lo.Values(s.chats), func(rec *chatRecord, _ int) bool {
		return lo.Contains(rec.participants, userID)
	})
	slices.SortFunc(records, func(a, b *chatRecord) int {
		return cmp.Or(b.updatedAt.Compare(a.updatedAt), cmp.Compare(a.id, b.id))
	})

	chats := make([]chat.Chat, 0, len(records))
	for _, rec := range records {
		c, err := s.resolve(rec)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, nil
}

func (s *MemoryStore) FindOrCreateOneToOne(_ context.Context, a, b string) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.chats {
		if !rec.group && lo.Contains(rec.participants, a) && lo.Contains(rec.participants, b) {
			return s.resolve(rec)
		}
	}

	return s.createChatLocked(chat.NewChat{
		ChatName:       chat.DirectChatName,
		ParticipantIDs: []string{a, b},
	})
}

func (s *MemoryStore) AddParticipant(_ context.Context, chatID, adminID, userID string) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, chat.ErrNotFound
	}
	if rec.admin != adminID {
		return chat.Chat{}, chat.ErrAdminChanged
	}
	if _, ok := s.users[userID]; !ok {
		return chat.Chat{}, user.ErrNotFound
	}
	if lo.Contains(rec.participants, userID) {
		return chat.Chat{}, chat.ErrParticipantExists
	}

	rec.participants = append(rec.participants, userID)
	rec.updatedAt = s.tick()

	return s.resolve(rec)
}

func (s *MemoryStore) RemoveParticipant(_ context.Context, chatID string, removal chat.Removal) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, chat.ErrNotFound
	}
	if removal.ExpectedAdmin != "" && rec.admin != removal.ExpectedAdmin {
		return chat.Chat{}, chat.ErrAdminChanged
	}

	userID, newAdminID := removal.Target, removal.NextAdmin
	if !lo.Contains(rec.participants, userID) {
		return chat.Chat{}, chat.ErrParticipantMissing
	}
	if newAdminID != "" && (newAdminID == userID || !lo.Contains(rec.participants, newAdminID)) {
		return chat.Chat{}, chat.ErrParticipantMissing
	}

	rec.participants = lo.Without(rec.participants, userID)
	if newAdminID != "" {
		rec.admin = newAdminID
	}
	rec.updatedAt = s.tick()

	return s.resolve(rec)
}

func (s *MemoryStore) RenameChat(_ context.Context, chatID, name string) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, chat.ErrNotFound
	}
	rec.name = name
	rec.updatedAt = s.tick()

	return s.resolve(rec)
}

// --- messages ---

func (s *MemoryStore) CreateMessage(_ context.Context, params chat.NewMessage) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[params.ChatID]; !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	if _, ok := s.users[params.SenderID]; !ok {
		return chat.Message{}, user.ErrNotFound
	}

	m := messageRecord{
		id:        randx.ID(),
		chatID:    params.ChatID,
		senderID:  params.SenderID,
		content:   params.Content,
		createdAt: s.tick(),
	}
	s.messages[m.id] = m
	s.byChat[m.chatID] = append(s.byChat[m.chatID], m.id)

	return s.resolveMessage(m), nil
}

func (s *MemoryStore) SetLatestMessage(_ context.Context, chatID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return chat.ErrNotFound
	}
	m, ok := s.messages[messageID]
	if !ok || m.chatID != chatID {
		return chat.ErrNotFound
	}

	rec.latest = messageID
	if m.createdAt.After(rec.updatedAt) {
		rec.updatedAt = m.createdAt
	}
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return nil, chat.ErrNotFound
	}

	snapshot, err := s.resolve(rec)
	if err != nil {
		return nil, err
	}
	snapshot.LatestMessage = nil

	ids := s.byChat[chatID]
	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		m := s.resolveMessage(s.messages[id])
		m.Chat = &snapshot
		messages = append(messages, m)
	}
	return messages, nil
}

var (
	_ chat.Store      = (*MemoryStore)(nil)
	_ user.Repository = (*MemoryStore)(nil)
)
