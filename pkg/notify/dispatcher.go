package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/email"
	"github.com/go-pkgz/lgr"

	"github.com/uniscope/uniscope/pkg/domain"
)

// Store is the storage API surface the dispatcher reads and writes,
// the delivery client implements it
type Store interface {
	Record(ctx context.Context, id int64) (*domain.Record, error)
	InstantSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

// Dispatcher fans one ingested record out to all matching instant
// subscriptions
type Dispatcher struct {
	store   Store
	sender  Sender
	from    string
	baseURL string
}

// NewDispatcher creates a dispatcher. The from address should be
// formatted as "Name <addr>" when a display name is wanted.
func NewDispatcher(store Store, sender Sender, from, baseURL string) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, from: from, baseURL: baseURL}
}

// ProcessRecord matches one record against the active instant
// subscriptions and emails every match. A failed send is recorded and
// doesn't stop delivery to the remaining subscribers.
func (d *Dispatcher) ProcessRecord(ctx context.Context, newsID int64) error {
	rec, err := d.store.Record(ctx, newsID)
	if err != nil {
		return fmt.Errorf("get record %d: %w", newsID, err)
	}

	subs, err := d.store.InstantSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("get subscriptions: %w", err)
	}

	matched := Matching(rec, subs)
	if len(matched) == 0 {
		return nil
	}
	lgr.Printf("[INFO] record %d matched %d subscriptions", newsID, len(matched))

	for _, sub := range matched {
		if sub.UserEmail == "" {
			lgr.Printf("[WARN] subscription %d has no user email, skipped", sub.ID)
			continue
		}
		d.notify(ctx, rec, sub)
	}
	return nil
}

// notify sends one email and records the outcome. The audit row is
// written even when the send fails, with the error preserved.
func (d *Dispatcher) notify(ctx context.Context, rec *domain.Record, sub domain.Subscription) {
	n := &domain.Notification{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		NewsID:         rec.ID,
	}

	if err := d.send(rec, sub); err != nil {
		lgr.Printf("[WARN] failed to notify %s about record %d: %v", sub.UserEmail, rec.ID, err)
		n.Status = domain.NotificationFailed
		n.ErrorMessage = err.Error()
	} else {
		now := time.Now()
		n.Status = domain.NotificationSent
		n.SentAt = &now
		lgr.Printf("[INFO] notified %s, keyword %q, record %d", sub.UserEmail, sub.Keyword, rec.ID)
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		lgr.Printf("[ERROR] failed to record notification for subscription %d: %v", sub.ID, err)
	}
}

func (d *Dispatcher) send(rec *domain.Record, sub domain.Subscription) error {
	subject, body, err := renderNotification(rec, sub, d.baseURL)
	if err != nil {
		return err
	}

	params := email.Params{
		From:    d.from,
		To:      []string{sub.UserEmail},
		Subject: subject,
	}
	if err := d.sender.Send(body, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
