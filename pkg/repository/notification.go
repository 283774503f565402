package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/uniscope/uniscope/pkg/domain"
)

// NotificationRepository handles the notification audit trail
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(database *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

// Create inserts a notification outcome. The dispatcher writes these
// for failed sends too, so lock errors are retried to keep the audit
// trail complete.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.Status == "" {
		n.Status = domain.NotificationPending
	}

	query := `
		INSERT INTO notifications (user_id, subscription_id, news_id, status, error_message, sent_at)
		VALUES (:user_id, :subscription_id, :news_id, :status, :error_message, :sent_at)
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		result, err := r.db.NamedExecContext(ctx, query, n)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("create notification: %w", err)}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		n.ID = id
		return nil
	}, errCritical)
}

// ListByUser returns a user's notification history, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var notifications []domain.Notification
	err := r.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", userID, err)
	}
	return notifications, nil
}

// CountByStatus aggregates notification outcomes, handy for operators
// checking delivery health
func (r *NotificationRepository) CountByStatus(ctx context.Context) (map[domain.NotificationStatus]int, error) {
	rows := []struct {
		Status domain.NotificationStatus `db:"status"`
		Count  int                       `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM notifications GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	result := make(map[domain.NotificationStatus]int, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
