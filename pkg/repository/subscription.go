package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/uniscope/uniscope/pkg/domain"
)

// SubscriptionRepository handles keyword subscription database operations
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(database *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: database}
}

// Create inserts a subscription, the keyword is normalized to trimmed
// lower case so matching stays case-insensitive. Re-subscribing to a
// keyword whose row was deactivated turns the existing row back on.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	sub.Keyword = strings.ToLower(strings.TrimSpace(sub.Keyword))
	if sub.Keyword == "" {
		return fmt.Errorf("empty keyword")
	}
	if sub.Frequency == "" {
		sub.Frequency = domain.FrequencyInstant
	}

	result, err := r.db.NamedExecContext(ctx,
		`INSERT INTO subscriptions (user_id, keyword, is_active, frequency)
		 VALUES (:user_id, :keyword, :is_active, :frequency)`, sub)
	if err != nil {
		if isUniqueError(err) {
			return r.reactivate(ctx, sub)
		}
		return fmt.Errorf("create subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	sub.ID = id
	return nil
}

// reactivate handles a unique conflict on (user_id, keyword): an
// inactive row is switched back on with the requested frequency, an
// active one is a real conflict
func (r *SubscriptionRepository) reactivate(ctx context.Context, sub *domain.Subscription) error {
	var existing domain.Subscription
	err := r.db.GetContext(ctx, &existing,
		"SELECT id, user_id, keyword, is_active, frequency, created_at FROM subscriptions WHERE user_id = ? AND keyword = ?",
		sub.UserID, sub.Keyword)
	if err != nil {
		return fmt.Errorf("get subscription for keyword %q: %w", sub.Keyword, err)
	}
	if existing.IsActive {
		return fmt.Errorf("subscription for keyword %q already exists", sub.Keyword)
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE subscriptions SET is_active = 1, frequency = ? WHERE id = ?",
		sub.Frequency, existing.ID); err != nil {
		return fmt.Errorf("reactivate subscription %d: %w", existing.ID, err)
	}

	sub.ID = existing.ID
	sub.IsActive = true
	sub.CreatedAt = existing.CreatedAt
	return nil
}

// Get retrieves a subscription by ID
func (r *SubscriptionRepository) Get(ctx context.Context, id int64) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.GetContext(ctx, &sub,
		"SELECT id, user_id, keyword, is_active, frequency, created_at FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get subscription %d: %w", id, err)
	}
	return &sub, nil
}

// GetActive lists active subscriptions joined with their owner's
// contact fields, optionally filtered by frequency. Subscriptions of
// deactivated users are excluded.
func (r *SubscriptionRepository) GetActive(ctx context.Context, frequency domain.Frequency) ([]domain.Subscription, error) {
	query := `
		SELECT s.id, s.user_id, s.keyword, s.is_active, s.frequency, s.created_at,
		       u.email AS user_email, u.name AS user_name
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.is_active = 1 AND u.is_active = 1
	`
	args := []any{}
	if frequency != "" {
		query += " AND s.frequency = ?"
		args = append(args, frequency)
	}
	query += " ORDER BY s.id"

	var subs []domain.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("get active subscriptions: %w", err)
	}
	return subs, nil
}

// Deactivate turns a subscription off, used by the unsubscribe link.
// Deactivating an already inactive subscription is a no-op.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "UPDATE subscriptions SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate subscription %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subscription %d not found", id)
	}
	return nil
}
