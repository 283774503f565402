package domain

import "time"

// Frequency controls when a subscription is served: instantly on
// ingestion or batched into a daily/weekly digest.
type Frequency string

// notification frequency options
const (
	FrequencyInstant Frequency = "instant"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
)

// Subscription is a user's keyword subscription. Keyword is stored
// lower-cased and trimmed. UserEmail and UserName come from the joined
// user row; an empty UserEmail means the user can't be notified and is
// skipped by the dispatcher.
type Subscription struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Keyword   string    `json:"keyword" db:"keyword"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	Frequency Frequency `json:"frequency" db:"frequency"`
	UserEmail string    `json:"user_email,omitempty" db:"user_email"`
	UserName  string    `json:"user_name,omitempty" db:"user_name"`
	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
}

// NotificationStatus is the terminal delivery state of a notification
type NotificationStatus string

// notification delivery states; records are resolved to sent or failed
// before they are persisted, nothing stays pending
const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is the audit record of one delivery attempt for a
// matched (user, subscription, record) triple
type Notification struct {
	ID             int64              `json:"id" db:"id"`
	UserID         int64              `json:"user_id" db:"user_id"`
	SubscriptionID int64              `json:"subscription_id" db:"subscription_id"`
	NewsID         int64              `json:"news_id" db:"news_id"`
	Status         NotificationStatus `json:"status" db:"status"`
	ErrorMessage   string             `json:"error_message,omitempty" db:"error_message"`
	SentAt         *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt      time.Time          `json:"created_at,omitempty" db:"created_at"`
}
