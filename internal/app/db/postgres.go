package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"chatwave/internal/app/chat"
	"chatwave/internal/app/user"
	"chatwave/internal/pkg/randx"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements chat.Store and user.Repository on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool created by NewPool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// directKey identifies the one-to-one chat between two users regardless of argument order.
func directKey(a, b string) string {
	return min(a, b) + ":" + max(a, b)
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Pic)
	return u, err
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, params user.NewAccount) (user.Account, error) {
	account := user.Account{
		User: user.User{
			Name:  params.Name,
			Email: user.NormalizeEmail(params.Email),
			Pic:   params.Pic,
		},
		PasswordHash: params.PasswordHash,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, pic)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text, created_at`,
		account.Name, account.Email, account.PasswordHash, account.Pic,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return user.Account{}, user.ErrEmailTaken
		}
		return user.Account{}, fmt.Errorf("insert user: %w", err)
	}

	return account, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (user.Account, error) {
	var account user.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, email, pic, password_hash, created_at
		 FROM users WHERE email = $1`,
		user.NormalizeEmail(email),
	).Scan(&account.ID, &account.Name, &account.Email, &account.Pic, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Account{}, user.ErrNotFound
		}
		return user.Account{}, fmt.Errorf("find user by email: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id string) (user.User, error) {
	if !randx.IsValidID(id) {
		return user.User{}, user.ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `SELECT id::text, name, email, pic FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, fmt.Errorf("find user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindUsersByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	return findUsers(ctx, s.pool, ids)
}

func findUsers(ctx context.Context, q querier, ids []string) ([]user.User, error) {
	ids = lo.Uniq(lo.Filter(ids, func(id string, _ int) bool { return randx.IsValidID(id) }))
	if len(ids) == 0 {
		return []user.User{}, nil
	}

	rows, err := q.Query(ctx,
		`SELECT id::text, name, email, pic FROM users WHERE id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *PostgresStore) SearchUsers(ctx context.Context, keyword string, excludeID string) ([]user.User, error) {
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(keyword)) + "%"

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, email, pic FROM users
		 WHERE (name ILIKE $1 OR email ILIKE $1) AND id::text <> $2
		 ORDER BY name, id
		 LIMIT $3`,
		pattern, excludeID, user.MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) UpdateUserPic(ctx context.Context, id string, pic string) (user.User, error) {
	if !randx.IsValidID(id) {
		return user.User{}, user.ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`UPDATE users SET pic = $2 WHERE id = $1 RETURNING id::text, name, email, pic`, id, pic)
	if err != nil {
		return user.User{}, fmt.Errorf("update pic: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("update pic: %w", err)
	}
	return u, nil
}

// --- chats ---

type chatRow struct {
	id        string
	name      string
	group     bool
	adminID   *string
	latestID  *string
	createdAt time.Time
	updatedAt time.Time
}

// loadChats resolves the chats with the given ids, keeping the order of ids. Unknown ids are skipped.
func loadChats(ctx context.Context, q querier, ids []string) ([]chat.Chat, error) {
	if len(ids) == 0 {
		return []chat.Chat{}, nil
	}

	rows, err := q.Query(ctx,
		`SELECT id::text, chat_name, is_group_chat, group_admin_id::text, latest_message_id::text,
		        created_at, updated_at
		 FROM chats WHERE id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chatRow, error) {
		var r chatRow
		err := row.Scan(&r.id, &r.name, &r.group, &r.adminID, &r.latestID, &r.createdAt, &r.updatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}

	participants, err := loadParticipants(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	admins, err := findUsers(ctx, q, lo.FilterMap(records, func(r chatRow, _ int) (string, bool) {
		return lo.FromPtr(r.adminID), r.adminID != nil
	}))
	if err != nil {
		return nil, err
	}
	adminsByID := lo.KeyBy(admins, func(u user.User) string { return u.ID })

	latest, err := loadMessagesByID(ctx, q, lo.FilterMap(records, func(r chatRow, _ int) (string, bool) {
		return lo.FromPtr(r.latestID), r.latestID != nil
	}))
	if err != nil {
		return nil, err
	}

	byID := lo.KeyBy(records, func(r chatRow) string { return r.id })
	chats := make([]chat.Chat, 0, len(records))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}

		c := chat.Chat{
			ID:          r.id,
			ChatName:    r.name,
			IsGroupChat: r.group,
			Users:       participants[r.id],
			CreatedAt:   r.createdAt,
			UpdatedAt:   r.updatedAt,
		}
		if c.Users == nil {
			c.Users = []user.User{}
		}
		if r.adminID != nil {
			admin, ok := adminsByID[*r.adminID]
			if !ok {
				return nil, fmt.Errorf("chat %s references unknown admin: %w", r.id, chat.ErrCorrupted)
			}
			c.GroupAdmin = &admin
		}
		if r.latestID != nil {
			if m, ok := latest[*r.latestID]; ok {
				c.LatestMessage = &m
			}
		}
		chats = append(chats, c)
	}

	return chats, nil
}

func loadParticipants(ctx context.Context, q querier, chatIDs []string) (map[string][]user.User, error) {
	rows, err := q.Query(ctx,
		`SELECT cp.chat_id::text, u.id::text, u.name, u.email, u.pic
		 FROM chat_participants cp
		 JOIN users u ON u.id = cp.user_id
		 WHERE cp.chat_id = ANY($1::text[]::uuid[])
		 ORDER BY cp.position`, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	type member struct {
		chatID string
		user   user.User
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (member, error) {
		var m member
		err := row.Scan(&m.chatID, &m.user.ID, &m.user.Name, &m.user.Email, &m.user.Pic)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	grouped := make(map[string][]user.User, len(chatIDs))
	for _, m := range members {
		grouped[m.chatID] = append(grouped[m.chatID], m.user)
	}
	return grouped, nil
}

const messageColumns = `m.id::text, m.chat_id::text, m.content, m.created_at, u.id::text, u.name, u.email, u.pic`

func scanMessage(row pgx.CollectableRow) (chat.Message, error) {
	var m chat.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.Content, &m.CreatedAt,
		&m.Sender.ID, &m.Sender.Name, &m.Sender.Email, &m.Sender.Pic)
	return m, err
}

func loadMessagesByID(ctx context.Context, q querier, ids []string) (map[string]chat.Message, error) {
	if len(ids) == 0 {
		return map[string]chat.Message{}, nil
	}

	rows, err := q.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return lo.KeyBy(messages, func(m chat.Message) string { return m.ID }), nil
}

func loadChat(ctx context.Context, q querier, id string) (chat.Chat, error) {
	chats, err := loadChats(ctx, q, []string{id})
	if err != nil {
		return chat.Chat{}, err
	}
	if len(chats) == 0 {
		return chat.Chat{}, chat.ErrNotFound
	}
	return chats[0], nil
}

// lockChat takes a row lock on the chat for the rest of the transaction.
func lockChat(ctx context.Context, tx pgx.Tx, id string) error {
	if !randx.IsValidID(id) {
		return chat.ErrNotFound
	}

	var found string
	err := tx.QueryRow(ctx, `SELECT id::text FROM chats WHERE id = $1 FOR UPDATE`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock chat: %w", err)
	}
	return nil
}

func insertParticipants(ctx context.Context, tx pgx.Tx, chatID string, userIDs []string) error {
	for _, id := range userIDs {
		if !randx.IsValidID(id) {
			return user.ErrNotFound
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`, chatID, id)
		switch {
		case err == nil:
		case IsUniqueViolation(err):
			return chat.ErrParticipantExists
		case IsForeignKeyViolation(err):
			return user.ErrNotFound
		default:
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, params chat.NewChat) (chat.Chat, error) {
	var created chat.Chat
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var key *string
		if !params.IsGroupChat && len(params.ParticipantIDs) == 2 {
			key = lo.ToPtr(directKey(params.ParticipantIDs[0], params.ParticipantIDs[1]))
		}

		var id string
		err := tx.QueryRow(ctx,
			`INSERT INTO chats (chat_name, is_group_chat, group_admin_id, direct_key)
			 VALUES ($1, $2, $3::text::uuid, $4)
			 RETURNING id::text`,
			params.ChatName, params.IsGroupChat, lo.EmptyableToPtr(params.AdminID), key,
		).Scan(&id)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return user.ErrNotFound
			}
			return fmt.Errorf("insert chat: %w", err)
		}

		if err := insertParticipants(ctx, tx, id, lo.Uniq(params.ParticipantIDs)); err != nil {
			return err
		}

		created, err = loadChat(ctx, tx, id)
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return created, nil
}

func (s *PostgresStore) FindChatByID(ctx context.Context, id string) (chat.Chat, error) {
	if !randx.IsValidID(id) {
		return chat.Chat{}, chat.ErrNotFound
	}
	return loadChat(ctx, s.pool, id)
}

func (s *PostgresStore) ListChatsForUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	if !randx.IsValidID(userID) {
		return []chat.Chat{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT c.id::text
		 FROM chats c
		 JOIN chat_participants cp ON cp.chat_id = c.id
		 WHERE cp.user_id = $1
		 ORDER BY c.updated_at DESC, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	return loadChats(ctx, s.pool, ids)
}

func (s *PostgresStore) FindOrCreateOneToOne(ctx context.Context, a, b string) (chat.Chat, error) {
	if !randx.IsValidID(a) || !randx.IsValidID(b) {
		return chat.Chat{}, user.ErrNotFound
	}

	var found chat.Chat
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		key := directKey(a, b)

		var id string
		err := tx.QueryRow(ctx,
			`INSERT INTO chats (chat_name, is_group_chat, direct_key)
			 VALUES ($1, FALSE, $2)
			 ON CONFLICT (direct_key) DO NOTHING
			 RETURNING id::text`,
			chat.DirectChatName, key,
		).Scan(&id)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if err := tx.QueryRow(ctx,
				`SELECT id::text FROM chats WHERE direct_key = $1`, key).Scan(&id); err != nil {
				return fmt.Errorf("find direct chat: %w", err)
			}
		case err != nil:
			return fmt.Errorf("insert direct chat: %w", err)
		default:
			if err := insertParticipants(ctx, tx, id, []string{a, b}); err != nil {
				return err
			}
		}

		found, err = loadChat(ctx, tx, id)
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return found, nil
}

// mutateChat runs fn under a row lock on the chat and returns the chat as it stands afterwards.
func (s *PostgresStore) mutateChat(ctx context.Context, chatID string, fn func(tx pgx.Tx) error) (chat.Chat, error) {
	var updated chat.Chat
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockChat(ctx, tx, chatID); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID); err != nil {
			return fmt.Errorf("touch chat: %w", err)
		}

		var err error
		updated, err = loadChat(ctx, tx, chatID)
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return updated, nil
}

// requireAdmin fails with ErrAdminChanged unless adminID is the chat's current admin. The
// chat row must already be locked.
func requireAdmin(ctx context.Context, tx pgx.Tx, chatID, adminID string) error {
	var current string
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(group_admin_id::text, '') FROM chats WHERE id = $1`, chatID).Scan(&current)
	if err != nil {
		return fmt.Errorf("read admin: %w", err)
	}
	if current != adminID {
		return chat.ErrAdminChanged
	}
	return nil
}

func (s *PostgresStore) AddParticipant(ctx context.Context, chatID, adminID, userID string) (chat.Chat, error) {
	return s.mutateChat(ctx, chatID, func(tx pgx.Tx) error {
		if err := requireAdmin(ctx, tx, chatID, adminID); err != nil {
			return err
		}
		return insertParticipants(ctx, tx, chatID, []string{userID})
	})
}

func (s *PostgresStore) RemoveParticipant(ctx context.Context, chatID string, removal chat.Removal) (chat.Chat, error) {
	userID, newAdminID := removal.Target, removal.NextAdmin

	return s.mutateChat(ctx, chatID, func(tx pgx.Tx) error {
		if removal.ExpectedAdmin != "" {
			if err := requireAdmin(ctx, tx, chatID, removal.ExpectedAdmin); err != nil {
				return err
			}
		}
		if !randx.IsValidID(userID) {
			return chat.ErrParticipantMissing
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM chat_participants WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
		if err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return chat.ErrParticipantMissing
		}

		if newAdminID == "" {
			return nil
		}
		if !randx.IsValidID(newAdminID) {
			return chat.ErrParticipantMissing
		}

		tag, err = tx.Exec(ctx,
			`UPDATE chats SET group_admin_id = $2
			 WHERE id = $1
			   AND EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`,
			chatID, newAdminID)
		if err != nil {
			return fmt.Errorf("reassign admin: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return chat.ErrParticipantMissing
		}
		return nil
	})
}

func (s *PostgresStore) RenameChat(ctx context.Context, chatID, name string) (chat.Chat, error) {
	return s.mutateChat(ctx, chatID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE chats SET chat_name = $2 WHERE id = $1`, chatID, name); err != nil {
			return fmt.Errorf("rename chat: %w", err)
		}
		return nil
	})
}

// --- messages ---

func (s *PostgresStore) CreateMessage(ctx context.Context, params chat.NewMessage) (chat.Message, error) {
	if !randx.IsValidID(params.ChatID) {
		return chat.Message{}, chat.ErrNotFound
	}
	if !randx.IsValidID(params.SenderID) {
		return chat.Message{}, user.ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`WITH m AS (
		     INSERT INTO messages (chat_id, sender_id, content)
		     VALUES ($1, $2, $3)
		     RETURNING id, chat_id, sender_id, content, created_at
		 )
		 SELECT `+messageColumns+`
		 FROM m JOIN users u ON u.id = m.sender_id`,
		params.ChatID, params.SenderID, params.Content)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMessage)
	if err != nil {
		if IsForeignKeyViolation(err) {
			if ConstraintName(err) == "messages_chat_id_fkey" {
				return chat.Message{}, chat.ErrNotFound
			}
			return chat.Message{}, user.ErrNotFound
		}
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) SetLatestMessage(ctx context.Context, chatID, messageID string) error {
	if !randx.IsValidID(chatID) || !randx.IsValidID(messageID) {
		return chat.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE chats c
		 SET latest_message_id = m.id, updated_at = GREATEST(c.updated_at, m.created_at)
		 FROM messages m
		 WHERE c.id = $1 AND m.id = $2 AND m.chat_id = c.id`,
		chatID, messageID)
	if err != nil {
		return fmt.Errorf("set latest message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	snapshot, err := s.FindChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	snapshot.LatestMessage = nil

	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.chat_id = $1
		 ORDER BY m.created_at, m.id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Message, error) {
		m, err := scanMessage(row)
		m.Chat = &snapshot
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

var (
	_ chat.Store      = (*PostgresStore)(nil)
	_ user.Repository = (*PostgresStore)(nil)
)
