package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marketline/chat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, applySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternate schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== ConversationStore implementation ====

// FindOrCreateConversation resolves the conversation for an unordered user pair.
// The pair_key UNIQUE index makes the create race safe: the loser's insert fails
// with a constraint violation and re-reads the winner's row.
func (s *SQLiteStore) FindOrCreateConversation(ctx context.Context, userA, userB int64) (*store.Conversation, error) {
	pairKey := store.PairKey(userA, userB)

	conv, err := s.getConversationByPairKey(ctx, pairKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return s.createConversation(ctx, pairKey, userA, userB)
}

func (s *SQLiteStore) createConversation(ctx context.Context, pairKey string, userA, userB int64) (*store.Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `INSERT INTO conversations (pair_key) VALUES (?)`, pairKey)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the create race; the winner's row is the conversation.
			// The pool has a single connection and the open transaction
			// holds it, so release it before re-reading.
			_ = tx.Rollback()
			return s.getConversationByPairKey(ctx, pairKey)
		}
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	convID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	// Both participant links commit with the conversation or not at all.
	participantQuery := `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES (?, ?)
	`
	if _, err := tx.ExecContext(ctx, participantQuery, convID, userA); err != nil {
		return nil, fmt.Errorf("add first participant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, participantQuery, convID, userB); err != nil {
		return nil, fmt.Errorf("add second participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return s.getConversationByPairKey(ctx, pairKey)
		}
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetConversationByID(ctx, convID)
}

// GetConversationByID retrieves a conversation by ID.
func (s *SQLiteStore) GetConversationByID(ctx context.Context, id int64) (*store.Conversation, error) {
	query := `
		SELECT id, pair_key, created_at, last_activity_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) getConversationByPairKey(ctx context.Context, pairKey string) (*store.Conversation, error) {
	query := `
		SELECT id, pair_key, created_at, last_activity_at
		FROM conversations
		WHERE pair_key = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, pairKey))
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*store.Conversation, error) {
	var conv store.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.PairKey,
		&conv.CreatedAt,
		&conv.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return &conv, nil
}

// AppendMessage inserts a message and bumps the conversation's last-activity
// timestamp as one transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, senderID int64, body string) (*store.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, store.ErrEmptyBody
	}

	if _, err := s.GetConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}

	ok, err := s.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotParticipant
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, read, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, conversationID, senderID, body, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	msgID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_activity_at = ? WHERE id = ?
	`, now, conversationID); err != nil {
		return nil, fmt.Errorf("bump last activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.getMessageByID(ctx, msgID)
}

func (s *SQLiteStore) getMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.body, m.read, m.created_at,
		       u.name, COALESCE(u.avatar_url, '')
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Body,
		&msg.Read,
		&msg.CreatedAt,
		&msg.SenderName,
		&msg.SenderAvatar,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &msg, nil
}

// MarkRead flips unread messages from other senders and reports which senders
// had at least one message affected. Selecting the senders first and updating
// in the same transaction keeps the result consistent with the flip.
func (s *SQLiteStore) MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT sender_id FROM messages
		WHERE conversation_id = ? AND sender_id != ? AND read = 0
	`, conversationID, readerID)
	if err != nil {
		return nil, fmt.Errorf("query unread senders: %w", err)
	}

	var senders []int64
	for rows.Next() {
		var senderID int64
		if err := rows.Scan(&senderID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sender: %w", err)
		}
		senders = append(senders, senderID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate senders: %w", err)
	}
	rows.Close()

	if len(senders) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET read = 1
		WHERE conversation_id = ? AND sender_id != ? AND read = 0
	`, conversationID, readerID); err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return senders, nil
}

// IsParticipant checks if the user belongs to the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	query := `
		SELECT 1 FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query participant: %w", err)
	}

	return true, nil
}

// ListParticipantsExcept lists conversation participants excluding one user.
func (s *SQLiteStore) ListParticipantsExcept(ctx context.Context, conversationID, excludedUserID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ? AND user_id != ?
		ORDER BY user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, excludedUserID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, userID)
	}

	return participants, rows.Err()
}

// ListMessages returns a conversation's messages in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64) ([]*store.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.body, m.read, m.created_at,
		       u.name, COALESCE(u.avatar_url, '')
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = ?
		ORDER BY m.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Body,
			&msg.Read,
			&msg.CreatedAt,
			&msg.SenderName,
			&msg.SenderAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// GetConversationsForUser returns the user's conversations most-recently-active first.
func (s *SQLiteStore) GetConversationsForUser(ctx context.Context, userID int64) ([]*store.ConversationSummary, error) {
	query := `
		SELECT c.id, c.pair_key, c.created_at, c.last_activity_at,
		       (SELECT COUNT(*) FROM messages m
		        WHERE m.conversation_id = c.id AND m.sender_id != ? AND m.read = 0)
		FROM conversations c
		JOIN conversation_participants cp ON c.id = cp.conversation_id
		WHERE cp.user_id = ?
		ORDER BY c.last_activity_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*store.ConversationSummary
	for rows.Next() {
		var sum store.ConversationSummary
		if err := rows.Scan(
			&sum.ID,
			&sum.PairKey,
			&sum.CreatedAt,
			&sum.LastActivityAt,
			&sum.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sum := range summaries {
		if err := s.fillSummary(ctx, sum, userID); err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

func (s *SQLiteStore) fillSummary(ctx context.Context, sum *store.ConversationSummary, userID int64) error {
	others, err := s.ListParticipantsExcept(ctx, sum.ID, userID)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		other, err := s.GetUserByID(ctx, others[0])
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		sum.OtherParticipant = other
	}

	last, err := s.lastMessage(ctx, sum.ID)
	if err != nil {
		return err
	}
	sum.LastMessage = last
	return nil
}

func (s *SQLiteStore) lastMessage(ctx context.Context, conversationID int64) (*store.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.body, m.read, m.created_at,
		       u.name, COALESCE(u.avatar_url, '')
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = ?
		ORDER BY m.id DESC
		LIMIT 1
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Body,
		&msg.Read,
		&msg.CreatedAt,
		&msg.SenderName,
		&msg.SenderAvatar,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last message: %w", err)
	}

	return &msg, nil
}

// UnreadCount counts unread messages addressed to the user.
func (s *SQLiteStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversation_participants cp ON m.conversation_id = cp.conversation_id
		WHERE cp.user_id = ? AND m.sender_id != ? AND m.read = 0
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("query unread count: %w", err)
	}

	return count, nil
}

// ==== ActivityStore implementation ====

// InsertActivity records one activity entry.
func (s *SQLiteStore) InsertActivity(ctx context.Context, entry *store.ActivityEntry) error {
	query := `
		INSERT INTO activity_log (user_id, action, detail, status)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, entry.UserID, entry.Action, entry.Detail, entry.Status)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
