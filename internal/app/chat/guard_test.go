package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatwave/internal/app/user"
	"chatwave/internal/pkg/errs"
)

func group(admin string, members ...string) *Chat {
	users := make([]user.User, 0, len(members))
	for _, id := range members {
		users = append(users, user.User{ID: id, Name: strings.ToUpper(id)})
	}
	return &Chat{
		ID:          "G",
		ChatName:    "team",
		IsGroupChat: true,
		Users:       users,
		GroupAdmin:  &user.User{ID: admin},
	}
}

func direct(a, b string) *Chat {
	return &Chat{
		ID:       "D",
		ChatName: DirectChatName,
		Users:    []user.User{{ID: a}, {ID: b}},
	}
}

func TestCanAddParticipant(t *testing.T) {
	tests := []struct {
		name   string
		chat   *Chat
		actor  string
		target string
		want   int
	}{
		{name: "admin adds newcomer", chat: group("a", "a", "b"), actor: "a", target: "d", want: 0},
		{name: "anonymous actor", chat: group("a", "a", "b"), actor: "", target: "d", want: errs.ErrUnauthorized},
		{name: "blank target", chat: group("a", "a", "b"), actor: "a", target: "  ", want: errs.ErrInvalidParams},
		{name: "missing chat", chat: nil, actor: "a", target: "d", want: errs.ErrChatNotFound},
		{name: "direct chat", chat: direct("a", "b"), actor: "a", target: "d", want: errs.ErrNotGroupChat},
		{name: "group without admin", chat: &Chat{IsGroupChat: true}, actor: "a", target: "d", want: errs.ErrChatCorrupted},
		{name: "member is not admin", chat: group("a", "a", "b"), actor: "b", target: "d", want: errs.ErrNotGroupAdmin},
		{name: "outsider is not admin", chat: group("a", "a", "b"), actor: "x", target: "d", want: errs.ErrNotGroupAdmin},
		{name: "target already member", chat: group("a", "a", "b"), actor: "a", target: "b", want: errs.ErrAlreadyMember},
		{name: "forbidden wins over conflict", chat: group("a", "a", "b"), actor: "b", target: "b", want: errs.ErrNotGroupAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			err := CanAddParticipant(tt.chat, tt.actor, tt.target)

			if tt.want == 0 {
				req.Nil(err)
				return
			}
			req.NotNil(err)
			req.Equal(tt.want, err.Code)
		})
	}
}

func TestCanAddParticipant_DoesNotMutate(t *testing.T) {
	req := require.New(t)

	// Given
	g := group("a", "a", "b", "c")

	// When
	err := CanAddParticipant(g, "b", "d")

	// Then
	req.NotNil(err)
	req.Equal(errs.KindForbidden, err.Kind)
	req.Equal([]string{"a", "b", "c"}, g.ParticipantIDs())
	req.Equal("a", g.AdminID())
}

func TestPlanRemoval(t *testing.T) {
	tests := []struct {
		name      string
		chat      *Chat
		actor     string
		target    string
		want      int
		nextAdmin string
		expected  string
	}{
		{name: "admin removes member", chat: group("a", "a", "b", "c"), actor: "a", target: "c", expected: "a"},
		{name: "member leaves", chat: group("a", "a", "b", "c"), actor: "c", target: "c"},
		{name: "member removes other", chat: group("a", "a", "b", "c"), actor: "b", target: "c", want: errs.ErrNotGroupAdmin},
		{name: "member removes admin", chat: group("a", "a", "b", "c"), actor: "b", target: "a", want: errs.ErrNotGroupAdmin},
		{name: "admin removes outsider", chat: group("a", "a", "b"), actor: "a", target: "z", want: errs.ErrNotMember},
		{name: "outsider leaves", chat: group("a", "a", "b"), actor: "z", target: "z", want: errs.ErrNotMember},
		{name: "outsider removes member", chat: group("a", "a", "b"), actor: "z", target: "b", want: errs.ErrNotGroupAdmin},
		{name: "admin leaves", chat: group("a", "a", "b", "c"), actor: "a", target: "a", nextAdmin: "b", expected: "a"},
		{name: "admin joined late leaves", chat: group("c", "a", "b", "c"), actor: "c", target: "c", nextAdmin: "a", expected: "c"},
		{name: "last member leaves", chat: group("a", "a"), actor: "a", target: "a", expected: "a"},
		{name: "direct chat", chat: direct("a", "b"), actor: "a", target: "a", want: errs.ErrNotGroupChat},
		{name: "missing chat", chat: nil, actor: "a", target: "a", want: errs.ErrChatNotFound},
		{name: "anonymous actor", chat: group("a", "a"), actor: "", target: "a", want: errs.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			removal, err := PlanRemoval(tt.chat, tt.actor, tt.target)

			if tt.want != 0 {
				req.NotNil(err)
				req.Equal(tt.want, err.Code)
				return
			}
			req.Nil(err)
			req.Equal(tt.target, removal.Target)
			req.Equal(tt.nextAdmin, removal.NextAdmin)
			req.Equal(tt.expected, removal.ExpectedAdmin)
			req.Equal(tt.actor == tt.target, removal.SelfLeave(tt.actor))
		})
	}
}

// TestGroupMembershipScenario walks a group through the admin-gated operations in sequence,
// applying each permitted change to the snapshot the next check sees.
func TestGroupMembershipScenario(t *testing.T) {
	req := require.New(t)

	// Given group G administered by A with members {A, B, C}
	g := group("A", "A", "B", "C")

	// When B tries to remove C
	_, err := PlanRemoval(g, "B", "C")

	// Then it is forbidden
	req.NotNil(err)
	req.Equal(errs.KindForbidden, err.Kind)

	// When C removes themselves
	removal, err := PlanRemoval(g, "C", "C")
	req.Nil(err)
	req.True(removal.SelfLeave("C"))
	req.Empty(removal.NextAdmin)
	g.Users = g.Users[:2]

	// Then the participants are {A, B}
	req.Equal([]string{"A", "B"}, g.ParticipantIDs())

	// When B tries to add D
	err = CanAddParticipant(g, "B", "D")

	// Then it is forbidden
	req.NotNil(err)
	req.Equal(errs.ErrNotGroupAdmin, err.Code)

	// When A adds D
	err = CanAddParticipant(g, "A", "D")

	// Then it is allowed
	req.Nil(err)
	g.Users = append(g.Users, user.User{ID: "D"})
	req.Equal([]string{"A", "B", "D"}, g.ParticipantIDs())

	// And adding D again conflicts
	err = CanAddParticipant(g, "A", "D")
	req.NotNil(err)
	req.Equal(errs.KindConflict, err.Kind)
}

func TestCanRename(t *testing.T) {
	req := require.New(t)
	g := group("a", "a", "b")

	req.Nil(CanRename(g, "b", "new name"))
	req.Nil(CanRename(direct("a", "b"), "a", "pair"))
	req.Equal(errs.ErrNotParticipant, CanRename(g, "z", "new name").Code)
	req.Equal(errs.ErrChatNameRequired, CanRename(g, "a", "   ").Code)
	req.Equal(errs.ErrInvalidParams, CanRename(g, "a", strings.Repeat("x", MaxChatNameRunes+1)).Code)
	req.Equal(errs.ErrChatNotFound, CanRename(nil, "a", "name").Code)
	req.Equal(errs.ErrUnauthorized, CanRename(g, "", "name").Code)
}

func TestPlanGroup(t *testing.T) {
	t.Run("creator becomes admin and first participant", func(t *testing.T) {
		req := require.New(t)

		plan, err := PlanGroup("a", "  team  ", []string{"b", "a", "c", "b"})

		req.Nil(err)
		req.Equal("team", plan.ChatName)
		req.True(plan.IsGroupChat)
		req.Equal("a", plan.AdminID)
		req.Equal([]string{"a", "b", "c"}, plan.ParticipantIDs)
	})

	t.Run("creator alone is rejected", func(t *testing.T) {
		req := require.New(t)

		_, err := PlanGroup("a", "solo", []string{"a"})

		req.NotNil(err)
		req.Equal(errs.ErrGroupMembersRequired, err.Code)
	})

	t.Run("blank member id is rejected", func(t *testing.T) {
		req := require.New(t)

		_, err := PlanGroup("a", "team", []string{"b", " "})

		req.NotNil(err)
		req.Equal(errs.ErrInvalidParams, err.Code)
	})

	t.Run("name is required", func(t *testing.T) {
		req := require.New(t)

		_, err := PlanGroup("a", "", []string{"b"})

		req.NotNil(err)
		req.Equal(errs.ErrChatNameRequired, err.Code)
	})
}

func TestPlanDirect(t *testing.T) {
	req := require.New(t)

	req.Nil(PlanDirect("a", "b"))
	req.Equal(errs.ErrSelfChat, PlanDirect("a", "a").Code)
	req.Equal(errs.ErrInvalidParams, PlanDirect("a", "").Code)
	req.Equal(errs.ErrUnauthorized, PlanDirect("", "b").Code)
}

func TestCanPost(t *testing.T) {
	req := require.New(t)
	c := direct("a", "b")

	req.Nil(CanPost(c, "a", "hello"))
	req.Equal(errs.ErrMessageContentRequired, CanPost(c, "a", " \n ").Code)
	req.Equal(errs.ErrMessageContentTooLong, CanPost(c, "a", strings.Repeat("x", MaxContentBytes+1)).Code)
	req.Equal(errs.ErrNotParticipant, CanPost(c, "z", "hello").Code)
	req.Equal(errs.ErrChatNotFound, CanPost(nil, "a", "hello").Code)
}
