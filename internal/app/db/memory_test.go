package db

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/user"
)

func seedUsers(t *testing.T, s *MemoryStore, names ...string) []string {
	t.Helper()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		account, err := s.CreateUser(context.Background(), user.NewAccount{
			Name:  name,
			Email: name + "@example.com",
		})
		require.NoError(t, err)
		ids = append(ids, account.ID)
	}
	return ids
}

func TestMemoryStore_Users(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateUser(ctx, user.NewAccount{Name: "Ada", Email: " Ada@Example.com ", PasswordHash: "h"})
	req.NoError(err)
	req.Equal("ada@example.com", created.Email)

	_, err = s.CreateUser(ctx, user.NewAccount{Name: "Other", Email: "ADA@example.com"})
	req.ErrorIs(err, user.ErrEmailTaken)

	found, err := s.FindUserByEmail(ctx, "ada@EXAMPLE.com")
	req.NoError(err)
	req.Equal(created.ID, found.ID)
	req.Equal("h", found.PasswordHash)

	_, err = s.FindUserByID(ctx, "nobody")
	req.ErrorIs(err, user.ErrNotFound)

	bob := seedUsers(t, s, "bob")[0]

	matches, err := s.SearchUsers(ctx, "AD", bob)
	req.NoError(err)
	req.Len(matches, 1)
	req.Equal("Ada", matches[0].Name)

	matches, err = s.SearchUsers(ctx, "", created.ID)
	req.NoError(err)
	req.Len(matches, 1)
	req.Equal(bob, matches[0].ID)

	updated, err := s.UpdateUserPic(ctx, bob, "https://cdn.example.com/bob.png")
	req.NoError(err)
	req.Equal("https://cdn.example.com/bob.png", updated.Pic)

	users, err := s.FindUsersByIDs(ctx, []string{bob, "nobody", bob})
	req.NoError(err)
	req.Len(users, 1)
}

func TestMemoryStore_SearchUsersIsCapped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	// Given more matching users than one search returns
	names := make([]string, 0, user.MaxSearchResults+10)
	for i := range user.MaxSearchResults + 10 {
		names = append(names, fmt.Sprintf("user%02d", i))
	}
	seedUsers(t, s, names...)

	// When searching for all of them
	matches, err := s.SearchUsers(ctx, "user", "")

	// Then the first page by name is returned
	req.NoError(err)
	req.Len(matches, user.MaxSearchResults)
	req.Equal("user00", matches[0].Name)
	req.Equal(fmt.Sprintf("user%02d", user.MaxSearchResults-1), matches[len(matches)-1].Name)
}

func TestMemoryStore_Participants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seedUsers(t, s, "a", "b", "c")
	a, b, c := ids[0], ids[1], ids[2]

	g, err := s.CreateChat(ctx, chat.NewChat{
		ChatName:       "g",
		IsGroupChat:    true,
		ParticipantIDs: []string{a, b},
		AdminID:        a,
	})
	req.NoError(err)

	_, err = s.AddParticipant(ctx, g.ID, a, b)
	req.ErrorIs(err, chat.ErrParticipantExists)

	g, err = s.AddParticipant(ctx, g.ID, a, c)
	req.NoError(err)
	req.Equal([]string{a, b, c}, g.ParticipantIDs())

	_, err = s.AddParticipant(ctx, g.ID, a, "ghost")
	req.ErrorIs(err, user.ErrNotFound)

	g, err = s.RemoveParticipant(ctx, g.ID, chat.Removal{Target: a, NextAdmin: b, ExpectedAdmin: a})
	req.NoError(err)
	req.Equal([]string{b, c}, g.ParticipantIDs())
	req.Equal(b, g.AdminID())

	_, err = s.RemoveParticipant(ctx, g.ID, chat.Removal{Target: a})
	req.ErrorIs(err, chat.ErrParticipantMissing)

	_, err = s.RemoveParticipant(ctx, "missing", chat.Removal{Target: a})
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestMemoryStore_RejectsStaleAdmin(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seedUsers(t, s, "a", "b", "c", "d")
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	// Given a group whose admin a has just handed the role to b by leaving
	g, err := s.CreateChat(ctx, chat.NewChat{
		ChatName:       "g",
		IsGroupChat:    true,
		ParticipantIDs: []string{a, b, c},
		AdminID:        a,
	})
	req.NoError(err)
	_, err = s.RemoveParticipant(ctx, g.ID, chat.Removal{Target: a, NextAdmin: b, ExpectedAdmin: a})
	req.NoError(err)

	// When a change authorized against the old admin is applied
	_, err = s.AddParticipant(ctx, g.ID, a, d)

	// Then it is refused and nothing changes
	req.ErrorIs(err, chat.ErrAdminChanged)
	_, err = s.RemoveParticipant(ctx, g.ID, chat.Removal{Target: c, ExpectedAdmin: a})
	req.ErrorIs(err, chat.ErrAdminChanged)

	g, err = s.FindChatByID(ctx, g.ID)
	req.NoError(err)
	req.Equal([]string{b, c}, g.ParticipantIDs())

	// And a member leaving on their own needs no admin
	g, err = s.RemoveParticipant(ctx, g.ID, chat.Removal{Target: c})
	req.NoError(err)
	req.Equal([]string{b}, g.ParticipantIDs())
}

func TestMemoryStore_ConcurrentAddAdmitsOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seedUsers(t, s, "a", "b", "d")

	g, err := s.CreateChat(ctx, chat.NewChat{
		ChatName:       "g",
		IsGroupChat:    true,
		ParticipantIDs: ids[:2],
		AdminID:        ids[0],
	})
	req.NoError(err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddParticipant(ctx, g.ID, ids[0], ids[2]); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	req.Equal(1, succeeded)

	stored, err := s.FindChatByID(ctx, g.ID)
	req.NoError(err)
	req.Len(stored.Users, 3)
}

func TestMemoryStore_OneToOne(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seedUsers(t, s, "a", "b")

	first, err := s.FindOrCreateOneToOne(ctx, ids[0], ids[1])
	req.NoError(err)
	second, err := s.FindOrCreateOneToOne(ctx, ids[1], ids[0])
	req.NoError(err)

	req.Equal(first.ID, second.ID)
	req.Equal(chat.DirectChatName, first.ChatName)
	req.Nil(first.GroupAdmin)
}

func TestMemoryStore_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seedUsers(t, s, "a", "b")

	c, err := s.FindOrCreateOneToOne(ctx, ids[0], ids[1])
	req.NoError(err)

	first, err := s.CreateMessage(ctx, chat.NewMessage{SenderID: ids[0], ChatID: c.ID, Content: "one"})
	req.NoError(err)
	second, err := s.CreateMessage(ctx, chat.NewMessage{SenderID: ids[1], ChatID: c.ID, Content: "two"})
	req.NoError(err)
	req.True(second.CreatedAt.After(first.CreatedAt))

	req.NoError(s.SetLatestMessage(ctx, c.ID, second.ID))
	req.ErrorIs(s.SetLatestMessage(ctx, c.ID, "missing"), chat.ErrNotFound)

	stored, err := s.FindChatByID(ctx, c.ID)
	req.NoError(err)
	req.NotNil(stored.LatestMessage)
	req.Equal("two", stored.LatestMessage.Content)
	req.Equal("b", stored.LatestMessage.Sender.Name)

	history, err := s.ListMessages(ctx, c.ID)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("one", history[0].Content)
	req.Equal("two", history[1].Content)
	req.NotNil(history[0].Chat)
	req.Nil(history[0].Chat.LatestMessage)

	_, err = s.CreateMessage(ctx, chat.NewMessage{SenderID: ids[0], ChatID: "missing", Content: "x"})
	req.ErrorIs(err, chat.ErrNotFound)
}
