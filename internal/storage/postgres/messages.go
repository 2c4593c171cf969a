package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"chatline/internal/chat"
	"chatline/internal/models"
)

// MessageStore persists messages in PostgreSQL.
//
// Expected schema:
//
//	messages(id text primary key, sender_id text not null,
//	         receiver_id text, group_id text, body text, image text,
//	         status text not null, created_at timestamptz not null,
//	         check ((receiver_id is null) <> (group_id is null)))
//	message_reactions(message_id text references messages(id),
//	                  account_id text not null, emoji text not null,
//	                  primary key (message_id, account_id))
type MessageStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewMessageStore(db *sql.DB, log *zap.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

const messageColumns = "id, sender_id, receiver_id, group_id, body, image, status, created_at"

func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, group_id, body, image, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID,
		nullable(msg.ReceiverID), nullable(msg.GroupID),
		msg.Text, msg.Image, string(msg.Status), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	s.log.Debug("message persisted", zap.String("messageId", msg.ID))
	return nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, &chat.NotFoundError{Kind: "message", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if err := s.attachReactions(ctx, []*models.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkDelivered promotes sent -> delivered. The status guard keeps the
// lifecycle monotonic under concurrent updates.
func (s *MessageStore) MarkDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = 'delivered' WHERE id = $1 AND status = 'sent'`, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkSeen(ctx context.Context, viewerID, counterpartID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET status = 'seen'
		WHERE sender_id = $1 AND receiver_id = $2 AND status <> 'seen'
	`, counterpartID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark seen rows: %w", err)
	}
	return int(updated), nil
}

// UpsertReaction relies on the primary key upsert to serialize concurrent
// reactions on the same message; different accounts never clobber each
// other.
func (s *MessageStore) UpsertReaction(ctx context.Context, messageID, accountID, emoji string) (*models.Message, error) {
	if _, err := s.Get(ctx, messageID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_reactions (message_id, account_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, account_id) DO UPDATE SET emoji = EXCLUDED.emoji
	`, messageID, accountID, emoji)
	if err != nil {
		return nil, fmt.Errorf("upsert reaction: %w", err)
	}
	return s.Get(ctx, messageID)
}

func (s *MessageStore) DirectHistory(ctx context.Context, accountID, peerID string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE group_id IS NULL
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY created_at ASC, id ASC
	`
	return s.queryMessages(ctx, query, accountID, peerID)
}

func (s *MessageStore) GroupHistory(ctx context.Context, groupID string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return s.queryMessages(ctx, query, groupID)
}

func (s *MessageStore) LatestByCounterpart(ctx context.Context, accountID string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT DISTINCT ON (counterpart) *
			FROM (
				SELECT *, CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS counterpart
				FROM messages
				WHERE group_id IS NULL AND (sender_id = $1 OR receiver_id = $1)
			) involving
			ORDER BY counterpart, created_at DESC, id DESC
		) latest
		ORDER BY created_at DESC, id DESC
	`
	return s.queryMessages(ctx, query, accountID)
}

func (s *MessageStore) LatestGroupMessage(ctx context.Context, groupID string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, groupID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest group message: %w", err)
	}
	if err := s.attachReactions(ctx, []*models.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var scanned []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		scanned = append(scanned, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	if err := s.attachReactions(ctx, scanned); err != nil {
		return nil, err
	}
	messages := make([]models.Message, len(scanned))
	for i, msg := range scanned {
		messages[i] = *msg
	}
	return messages, nil
}

// attachReactions batch-loads the reactions for a set of messages.
func (s *MessageStore) attachReactions(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	byID := make(map[string]*models.Message, len(messages))
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg
		ids = append(ids, msg.ID)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, account_id, emoji FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY message_id, account_id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, accountID, emoji string
		if err := rows.Scan(&messageID, &accountID, &emoji); err != nil {
			return fmt.Errorf("scan reaction: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.Reactions = append(msg.Reactions, models.Reaction{AccountID: accountID, Emoji: emoji})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate reactions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var receiver, group sql.NullString
	var status string
	err := row.Scan(&msg.ID, &msg.SenderID, &receiver, &group, &msg.Text, &msg.Image, &status, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	msg.ReceiverID = receiver.String
	msg.GroupID = group.String
	msg.Status = models.Status(status)
	return &msg, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
