package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/uniscope/uniscope/pkg/domain"
	"github.com/uniscope/uniscope/pkg/repository"
)

// Server represents the storage API HTTP server
type Server struct {
	config    ConfigProvider
	store     Store
	scheduler Scheduler
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Store is the persistence surface the handlers need
type Store interface {
	CreateNews(ctx context.Context, rec *domain.Record) error
	GetNews(ctx context.Context, id int64) (*domain.Record, error)
	ListNews(ctx context.Context, req repository.ListRequest) ([]*domain.Record, int, error)
	Categories(ctx context.Context) ([]string, error)

	CreateUser(ctx context.Context, user *repository.User) error
	GetUser(ctx context.Context, id int64) (*repository.User, error)

	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	ActiveSubscriptions(ctx context.Context, frequency domain.Frequency) ([]domain.Subscription, error)
	DeactivateSubscription(ctx context.Context, id int64) error

	CreateNotification(ctx context.Context, n *domain.Notification) error
	UserNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, error)
}

// Scheduler exposes on-demand crawl operations
type Scheduler interface {
	CrawlNow(ctx context.Context, source string) (domain.RunResult, error)
	Sources() []string
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, store Store, scheduler Scheduler, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		store:     store,
		scheduler: scheduler,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler exposes the configured router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("uniscope", "uniscope", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(5 * 1024 * 1024)) // articles with inline metadata get large
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /news", s.createNewsHandler)
		r.HandleFunc("GET /news", s.listNewsHandler)
		r.HandleFunc("GET /news/categories", s.categoriesHandler)
		r.HandleFunc("GET /news/{id}", s.getNewsHandler)

		r.HandleFunc("POST /users", s.createUserHandler)
		r.HandleFunc("GET /users/{id}/notifications", s.userNotificationsHandler)

		r.HandleFunc("POST /subscriptions", s.createSubscriptionHandler)
		r.HandleFunc("GET /subscriptions", s.listSubscriptionsHandler)
		r.HandleFunc("POST /subscriptions/{id}/unsubscribe", s.unsubscribeHandler)

		r.HandleFunc("POST /notifications", s.createNotificationHandler)

		r.HandleFunc("POST /crawl/{source}", s.crawlHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"sources": s.scheduler.Sources(),
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
