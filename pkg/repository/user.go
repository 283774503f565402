package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/uniscope/uniscope/pkg/domain"
)

// User is a subscriber account
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *sqlx.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	result, err := r.db.NamedExecContext(ctx,
		"INSERT INTO users (email, name, is_active) VALUES (:email, :name, :is_active)", user)
	if err != nil {
		if isUniqueError(err) {
			return fmt.Errorf("user %s already exists: %w", user.Email, err)
		}
		return fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	user.ID = id
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = ?", email); err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// Subscriptions lists a user's subscriptions, newest first
func (r *UserRepository) Subscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.SelectContext(ctx, &subs,
		`SELECT id, user_id, keyword, is_active, frequency, created_at
		 FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}
