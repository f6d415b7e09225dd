package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	Get(ctx context.Context, conversationID, publicID string) (models.Message, error)
	Edit(ctx context.Context, publicID, content string) (models.Message, error)
	Tombstone(ctx context.Context, publicID string) (models.Message, error)
	UpsertReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error)
	RemoveReaction(ctx context.Context, messageID int64, userID string) error
	AdvanceStatus(ctx context.Context, publicID string, target models.MessageStatus) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, public_id, conversation_id, sender_id, sender_name, sender_role,
    kind, content, client_key, status, created_at, edited_at, deleted_at`

// Create stores a message and any attachments in one transaction. The
// store assigns the authoritative timestamp and the monotonic insertion
// key used to break ordering ties.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.PublicID == "" {
		msg.PublicID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = models.StatusSent
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var stored models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages
        (public_id, conversation_id, sender_id, sender_name, sender_role, kind, content, client_key, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+messageColumns,
		msg.PublicID, msg.ConversationID, msg.SenderID, msg.SenderName, msg.SenderRole,
		msg.Kind, msg.Content, msg.ClientKey, msg.Status,
	).StructScan(&stored)
	if err != nil {
		return models.Message{}, err
	}

	for _, a := range msg.Attachments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.MessageID = stored.ID
		if _, err := tx.ExecContext(ctx, `INSERT INTO attachments
            (id, message_id, name, mime_kind, url, size_bytes) VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.MessageID, a.Name, a.MimeKind, a.URL, a.SizeBytes); err != nil {
			return models.Message{}, err
		}
		stored.Attachments = append(stored.Attachments, a)
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return stored, nil
}

// ListForConversation returns ordered messages with reactions and
// attachments. Display order is creation time ascending with the serial
// key breaking ties.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := make([]int64, 0, len(msgs))
	byID := make(map[int64]*models.Message, len(msgs))
	for i := range msgs {
		ids = append(ids, msgs[i].ID)
		byID[msgs[i].ID] = &msgs[i]
	}

	query, args, err := sqlx.In(`SELECT message_id, user_id, emoji FROM message_reactions WHERE message_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			messageID int64
			userID    string
			emoji     string
		)
		if err := rows.Scan(&messageID, &userID, &emoji); err != nil {
			return nil, err
		}
		m := byID[messageID]
		if m.Reactions == nil {
			m.Reactions = make(map[string]string)
		}
		m.Reactions[userID] = emoji
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	query, args, err = sqlx.In(`SELECT id, message_id, name, mime_kind, url, size_bytes
        FROM attachments WHERE message_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var atts []models.Attachment
	if err := r.db.SelectContext(ctx, &atts, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, a := range atts {
		m := byID[a.MessageID]
		m.Attachments = append(m.Attachments, a)
	}

	return msgs, nil
}

// Get retrieves a single message with its reactions and attachments.
func (r *MessageRepo) Get(ctx context.Context, conversationID, publicID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 AND public_id=$2`, conversationID, publicID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT user_id, emoji FROM message_reactions WHERE message_id=$1`, msg.ID)
	if err != nil {
		return models.Message{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID, emoji string
		if err := rows.Scan(&userID, &emoji); err != nil {
			return models.Message{}, err
		}
		if msg.Reactions == nil {
			msg.Reactions = make(map[string]string)
		}
		msg.Reactions[userID] = emoji
	}
	if err := rows.Err(); err != nil {
		return models.Message{}, err
	}

	if err := r.db.SelectContext(ctx, &msg.Attachments, `SELECT id, message_id, name, mime_kind, url, size_bytes
        FROM attachments WHERE message_id=$1`, msg.ID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Edit rewrites the content of a live (non-tombstoned) message.
func (r *MessageRepo) Edit(ctx context.Context, publicID, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$2, edited_at=NOW()
        WHERE public_id=$1 AND deleted_at IS NULL
        RETURNING `+messageColumns, publicID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Tombstone soft-deletes a message: the content is replaced and deleted_at
// set while the row, its position and its reactions stay in place.
func (r *MessageRepo) Tombstone(ctx context.Context, publicID string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$2, deleted_at=NOW()
        WHERE public_id=$1 AND deleted_at IS NULL
        RETURNING `+messageColumns, publicID, models.TombstoneContent).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpsertReaction records a user's single emoji on a message. Setting the
// same emoji again is a no-op; a different emoji replaces the stored one.
// The returned bool reports whether anything actually changed.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji)
        VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji
        WHERE message_reactions.emoji IS DISTINCT FROM EXCLUDED.emoji`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RemoveReaction clears the user's reaction from the message.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID int64, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`,
		messageID, userID)
	return err
}

// AdvanceStatus moves the delivery status forward. The guard clause lists
// only statuses strictly earlier than the target, so out-of-order writes
// can never regress the status. The returned bool reports whether the
// write was applied.
func (r *MessageRepo) AdvanceStatus(ctx context.Context, publicID string, target models.MessageStatus) (bool, error) {
	earlier := models.StatusesBefore(target)
	if len(earlier) == 0 {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status=$2
        WHERE public_id=$1 AND status = ANY($3)`,
		publicID, target, pq.Array(earlier))
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
