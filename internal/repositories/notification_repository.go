package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository stores per-recipient notifications and the
// incrementally tracked unread counters. The counter always equals the
// number of unread notifications for the user.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	ListForUser(ctx context.Context, userID string, onlyUnread bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create stores a notification and bumps the recipient's unread counter
// in the same transaction.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Notification{}, err
	}
	defer tx.Rollback()

	var stored models.Notification
	err = tx.QueryRowxContext(ctx, `INSERT INTO notifications (id, recipient_id, conversation_id, kind, title, body)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, recipient_id, conversation_id, kind, title, body, read, created_at`,
		n.ID, n.RecipientID, n.ConversationID, n.Kind, n.Title, n.Body,
	).StructScan(&stored)
	if err != nil {
		return models.Notification{}, err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO unread_counters (user_id, unread) VALUES ($1, 1)
        ON CONFLICT (user_id) DO UPDATE SET unread = unread_counters.unread + 1`, n.RecipientID); err != nil {
		return models.Notification{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Notification{}, err
	}
	return stored, nil
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string, onlyUnread bool) ([]models.Notification, error) {
	query := `SELECT id, recipient_id, conversation_id, kind, title, body, read, created_at
        FROM notifications WHERE recipient_id=$1`
	if onlyUnread {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, query, userID)
	return list, err
}

// MarkRead flags the notification read and decrements the unread counter,
// floored at zero. Marking an already-read notification is a no-op.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, notificationID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE notifications SET read = TRUE
        WHERE id=$1 AND recipient_id=$2 AND read = FALSE`, notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM notifications
            WHERE id=$1 AND recipient_id=$2)`, notificationID, userID); err != nil {
			return err
		}
		if !exists {
			return ErrNotificationNotFound
		}
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE unread_counters SET unread = GREATEST(unread - 1, 0)
        WHERE user_id=$1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// UnreadCount returns the user's current unread counter.
func (r *NotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COALESCE(
        (SELECT unread FROM unread_counters WHERE user_id=$1), 0)`, userID)
	return count, err
}
