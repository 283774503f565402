package server

import (
	"context"

	"github.com/uniscope/uniscope/pkg/domain"
	"github.com/uniscope/uniscope/pkg/repository"
)

// StoreAdapter adapts the repository bundle to the Store interface
type StoreAdapter struct {
	repos *repository.Repositories
}

// NewStoreAdapter creates an adapter over the repository bundle
func NewStoreAdapter(repos *repository.Repositories) *StoreAdapter {
	return &StoreAdapter{repos: repos}
}

// CreateNews delegates to the news repository
func (a *StoreAdapter) CreateNews(ctx context.Context, rec *domain.Record) error {
	return a.repos.News.Create(ctx, rec)
}

// GetNews delegates to the news repository
func (a *StoreAdapter) GetNews(ctx context.Context, id int64) (*domain.Record, error) {
	return a.repos.News.Get(ctx, id)
}

// ListNews delegates to the news repository
func (a *StoreAdapter) ListNews(ctx context.Context, req repository.ListRequest) ([]*domain.Record, int, error) {
	return a.repos.News.List(ctx, req)
}

// Categories delegates to the news repository
func (a *StoreAdapter) Categories(ctx context.Context) ([]string, error) {
	return a.repos.News.Categories(ctx)
}

// CreateUser delegates to the user repository
func (a *StoreAdapter) CreateUser(ctx context.Context, user *repository.User) error {
	return a.repos.User.Create(ctx, user)
}

// GetUser delegates to the user repository
func (a *StoreAdapter) GetUser(ctx context.Context, id int64) (*repository.User, error) {
	return a.repos.User.Get(ctx, id)
}

// CreateSubscription delegates to the subscription repository
func (a *StoreAdapter) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	return a.repos.Subscription.Create(ctx, sub)
}

// ActiveSubscriptions delegates to the subscription repository
func (a *StoreAdapter) ActiveSubscriptions(ctx context.Context, frequency domain.Frequency) ([]domain.Subscription, error) {
	return a.repos.Subscription.GetActive(ctx, frequency)
}

// DeactivateSubscription delegates to the subscription repository
func (a *StoreAdapter) DeactivateSubscription(ctx context.Context, id int64) error {
	return a.repos.Subscription.Deactivate(ctx, id)
}

// CreateNotification delegates to the notification repository
func (a *StoreAdapter) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return a.repos.Notification.Create(ctx, n)
}

// UserNotifications delegates to the notification repository
func (a *StoreAdapter) UserNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, error) {
	return a.repos.Notification.ListByUser(ctx, userID, limit)
}
