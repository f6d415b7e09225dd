package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	Create(ctx context.Context, conv models.Conversation) (models.Conversation, error)
	GetOrCreateDirect(ctx context.Context, a, b models.Participant) (models.Conversation, error)
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	SetLastMessageSummary(ctx context.Context, conversationID, summary string) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

type conversationRow struct {
	ID                 string         `db:"id"`
	Kind               string         `db:"kind"`
	Name               string         `db:"name"`
	DirectKey          sql.NullString `db:"direct_key"`
	CreatedBy          string         `db:"created_by"`
	CreatedAt          time.Time      `db:"created_at"`
	LastMessageSummary string         `db:"last_message_summary"`
	AllowFileSharing   bool           `db:"allow_file_sharing"`
	MaxFileSizeMB      int            `db:"max_file_size_mb"`
	AllowedMimeKinds   pq.StringArray `db:"allowed_mime_kinds"`
	IsPrivate          bool           `db:"is_private"`
	RequiresApproval   bool           `db:"requires_approval"`
}

func (r conversationRow) toModel() models.Conversation {
	return models.Conversation{
		ID:                 r.ID,
		Kind:               models.ConversationKind(r.Kind),
		Name:               r.Name,
		DirectKey:          r.DirectKey.String,
		CreatedBy:          r.CreatedBy,
		CreatedAt:          r.CreatedAt,
		LastMessageSummary: r.LastMessageSummary,
		Settings: models.ConversationSettings{
			AllowFileSharing: r.AllowFileSharing,
			MaxFileSizeMB:    r.MaxFileSizeMB,
			AllowedMimeKinds: []string(r.AllowedMimeKinds),
			IsPrivate:        r.IsPrivate,
			RequiresApproval: r.RequiresApproval,
		},
	}
}

const conversationColumns = `id, kind, name, direct_key, created_by, created_at, last_message_summary,
    allow_file_sharing, max_file_size_mb, allowed_mime_kinds, is_private, requires_approval`

// Create stores a new conversation and its participants in one transaction.
// No fan-out happens at creation time.
func (r *ConversationRepo) Create(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var directKey any
	if conv.Kind == models.KindDirect {
		directKey = conv.DirectKey
	}

	var row conversationRow
	err = tx.QueryRowxContext(ctx, `INSERT INTO conversations
        (id, kind, name, direct_key, created_by, allow_file_sharing, max_file_size_mb, allowed_mime_kinds, is_private, requires_approval)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+conversationColumns,
		conv.ID, conv.Kind, conv.Name, directKey, conv.CreatedBy,
		conv.Settings.AllowFileSharing, conv.Settings.MaxFileSizeMB,
		pq.Array(conv.Settings.AllowedMimeKinds), conv.Settings.IsPrivate,
		conv.Settings.RequiresApproval,
	).StructScan(&row)
	if err != nil {
		return models.Conversation{}, err
	}

	for _, p := range conv.Participants {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversation_participants
            (conversation_id, user_id, display_name, role) VALUES ($1, $2, $3, $4)
            ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conv.ID, p.UserID, p.DisplayName, p.Role); err != nil {
			return models.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return r.Get(ctx, conv.ID)
}

// GetOrCreateDirect returns the direct conversation for the unordered user
// pair, creating it when absent. The canonical direct key makes concurrent
// calls from both sides converge on a single row.
func (r *ConversationRepo) GetOrCreateDirect(ctx context.Context, a, b models.Participant) (models.Conversation, error) {
	if a.UserID == b.UserID {
		return models.Conversation{}, errors.New("cannot create direct conversation with self")
	}
	key := models.DirectKey(a.UserID, b.UserID)

	var id string
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (id, kind, direct_key, created_by)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING id`,
		uuid.NewString(), models.KindDirect, key, a.UserID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race or the conversation already existed.
		if err := r.db.GetContext(ctx, &id, `SELECT id FROM conversations WHERE direct_key=$1`, key); err != nil {
			return models.Conversation{}, err
		}
	} else if err != nil {
		return models.Conversation{}, err
	}

	for _, p := range []models.Participant{a, b} {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants
            (conversation_id, user_id, display_name, role) VALUES ($1, $2, $3, $4)
            ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			id, p.UserID, p.DisplayName, p.Role); err != nil {
			return models.Conversation{}, err
		}
	}

	return r.Get(ctx, id)
}

// Get fetches a conversation with its participants.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}

	conv := row.toModel()
	if err := r.db.SelectContext(ctx, &conv.Participants, `SELECT user_id, display_name, role, joined_at
        FROM conversation_participants WHERE conversation_id=$1 ORDER BY joined_at ASC`, conversationID); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// ListForUser returns every conversation the user participates in, newest
// activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var rows []conversationRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+conversationColumns+` FROM conversations c
        WHERE EXISTS (SELECT 1 FROM conversation_participants cp
            WHERE cp.conversation_id = c.id AND cp.user_id = $1)
        ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	convs := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		conv := row.toModel()
		if err := r.db.SelectContext(ctx, &conv.Participants, `SELECT user_id, display_name, role, joined_at
            FROM conversation_participants WHERE conversation_id=$1 ORDER BY joined_at ASC`, conv.ID); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants
        WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	return exists, err
}

// SetLastMessageSummary records the latest message preview for list screens.
func (r *ConversationRepo) SetLastMessageSummary(ctx context.Context, conversationID, summary string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_summary=$2 WHERE id=$1`,
		conversationID, summary)
	return err
}
