package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/uniscope/uniscope/pkg/domain"
	"github.com/uniscope/uniscope/pkg/repository"
)

// createNewsHandler ingests one record from the crawler. Responds 201
// with the stored record, or 409 when the content hash is already known.
func (s *Server) createNewsHandler(w http.ResponseWriter, r *http.Request) {
	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	if rec.Title == "" || rec.Content == "" {
		RenderError(w, r, fmt.Errorf("title and content are required"), http.StatusBadRequest)
		return
	}
	if rec.ContentHash == "" {
		rec.Finalize()
	}

	if err := s.store.CreateNews(r.Context(), &rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			RenderError(w, r, repository.ErrDuplicate, http.StatusConflict)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	lgr.Printf("[INFO] stored news %d from %s: %.50s", rec.ID, rec.SourceName, rec.Title)
	RenderJSON(w, r, http.StatusCreated, rec)
}

// getNewsHandler returns one stored record
func (s *Server) getNewsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid news ID"), http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetNews(r.Context(), id)
	if err != nil {
		RenderError(w, r, fmt.Errorf("news not found"), http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, rec)
}

// listNewsHandler returns a paginated news listing
func (s *Server) listNewsHandler(w http.ResponseWriter, r *http.Request) {
	req := repository.ListRequest{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}
	req.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	req.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))

	recs, total, err := s.store.ListNews(r.Context(), req)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"total": total,
		"items": recs,
	})
}

// categoriesHandler returns distinct categories
func (s *Server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Categories(r.Context())
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, categories)
}

// createUserHandler registers a subscriber
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var user repository.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if user.Email == "" {
		RenderError(w, r, fmt.Errorf("email is required"), http.StatusBadRequest)
		return
	}
	user.IsActive = true

	if err := s.store.CreateUser(r.Context(), &user); err != nil {
		RenderError(w, r, err, http.StatusConflict)
		return
	}
	RenderJSON(w, r, http.StatusCreated, user)
}

// createSubscriptionHandler adds a keyword subscription
func (s *Server) createSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	var sub domain.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if sub.UserID == 0 || sub.Keyword == "" {
		RenderError(w, r, fmt.Errorf("user_id and keyword are required"), http.StatusBadRequest)
		return
	}
	sub.IsActive = true

	if err := s.store.CreateSubscription(r.Context(), &sub); err != nil {
		RenderError(w, r, err, http.StatusConflict)
		return
	}

	lgr.Printf("[INFO] created subscription %d for user %d, keyword %q", sub.ID, sub.UserID, sub.Keyword)
	RenderJSON(w, r, http.StatusCreated, sub)
}

// listSubscriptionsHandler returns active subscriptions, optionally
// filtered by frequency. The matching pipeline calls it with
// active=true&frequency=instant.
func (s *Server) listSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	frequency := domain.Frequency(r.URL.Query().Get("frequency"))

	subs, err := s.store.ActiveSubscriptions(r.Context(), frequency)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, subs)
}

// unsubscribeHandler deactivates a subscription, reachable from the
// unsubscribe link in notification emails
func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid subscription ID"), http.StatusBadRequest)
		return
	}

	if err := s.store.DeactivateSubscription(r.Context(), id); err != nil {
		RenderError(w, r, err, http.StatusNotFound)
		return
	}

	lgr.Printf("[INFO] deactivated subscription %d", id)
	RenderJSON(w, r, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// createNotificationHandler records one delivery attempt outcome
func (s *Server) createNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if n.UserID == 0 || n.SubscriptionID == 0 || n.NewsID == 0 {
		RenderError(w, r, fmt.Errorf("user_id, subscription_id and news_id are required"), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateNotification(r.Context(), &n); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusCreated, n)
}

// userNotificationsHandler returns a user's notification history
func (s *Server) userNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RenderError(w, r, fmt.Errorf("invalid user ID"), http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notifications, err := s.store.UserNotifications(r.Context(), userID, limit)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, notifications)
}

// crawlHandler triggers an immediate run for one source
func (s *Server) crawlHandler(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")

	result, err := s.scheduler.CrawlNow(r.Context(), source)
	if err != nil && result.Status == "" {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}
	RenderJSON(w, r, http.StatusOK, result)
}
