package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/uniscope/uniscope/pkg/domain"
)

// ErrDuplicate is returned when a record with the same content hash is
// already stored
var ErrDuplicate = errors.New("news with this content already exists")

// NewsRepository handles news record database operations
type NewsRepository struct {
	db *sqlx.DB
}

// newsSQL represents a news record for SQL operations, list-valued
// fields are stored as JSON text
type newsSQL struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Content     string     `db:"content"`
	Summary     string     `db:"summary"`
	SourceURL   string     `db:"source_url"`
	SourceName  string     `db:"source_name"`
	PublishedAt *time.Time `db:"published_at"`
	Author      string     `db:"author"`
	Publisher   string     `db:"publisher"`
	Department  string     `db:"department"`
	Images      string     `db:"images"`
	Attachments string     `db:"attachments"`
	Category    string     `db:"category"`
	Tags        string     `db:"tags"`
	ContentHash string     `db:"content_hash"`
	CreatedAt   time.Time  `db:"created_at"`
}

// ListRequest filters and paginates the news listing
type ListRequest struct {
	Page     int
	PageSize int
	Category string
	Search   string
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(database *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: database}
}

// Create inserts a news record, returning ErrDuplicate when the
// content hash is already present. Lock errors are retried, the insert
// itself is idempotent thanks to the unique hash.
func (r *NewsRepository) Create(ctx context.Context, rec *domain.Record) error {
	sqlRec, err := toSQLNews(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO news (title, content, summary, source_url, source_name, published_at,
		                  author, publisher, department, images, attachments, category, tags, content_hash)
		VALUES (:title, :content, :summary, :source_url, :source_name, :published_at,
		        :author, :publisher, :department, :images, :attachments, :category, :tags, :content_hash)
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		result, err := r.db.NamedExecContext(ctx, query, sqlRec)
		if err != nil {
			if isUniqueError(err) {
				return &criticalError{err: ErrDuplicate}
			}
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("create news: %w", err)}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		rec.ID = id
		return nil
	}, errCritical)
}

// Get retrieves a news record by ID
func (r *NewsRepository) Get(ctx context.Context, id int64) (*domain.Record, error) {
	var sqlRec newsSQL
	if err := r.db.GetContext(ctx, &sqlRec, "SELECT * FROM news WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get news %d: %w", id, err)
	}
	return toDomainNews(&sqlRec)
}

// List retrieves news records with optional category and substring
// filters, newest published first
func (r *NewsRepository) List(ctx context.Context, req ListRequest) ([]*domain.Record, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	where := " WHERE 1=1"
	args := []any{}
	if req.Category != "" {
		where += " AND category = ?"
		args = append(args, req.Category)
	}
	if req.Search != "" {
		where += " AND (title LIKE ? OR content LIKE ? OR summary LIKE ?)"
		pattern := "%" + req.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM news"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}

	query := "SELECT * FROM news" + where +
		" ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	var sqlRecs []newsSQL
	if err := r.db.SelectContext(ctx, &sqlRecs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}

	recs := make([]*domain.Record, 0, len(sqlRecs))
	for i := range sqlRecs {
		rec, err := toDomainNews(&sqlRecs[i])
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	return recs, total, nil
}

// Categories returns the distinct non-empty categories in the store
func (r *NewsRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.SelectContext(ctx, &categories,
		"SELECT DISTINCT category FROM news WHERE category != '' ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	return categories, nil
}

// CreatedSince returns records created after the given time, used by
// digest delivery
func (r *NewsRepository) CreatedSince(ctx context.Context, since time.Time) ([]*domain.Record, error) {
	var sqlRecs []newsSQL
	err := r.db.SelectContext(ctx, &sqlRecs,
		"SELECT * FROM news WHERE created_at > ? ORDER BY created_at", since)
	if err != nil {
		return nil, fmt.Errorf("get news since %s: %w", since, err)
	}

	recs := make([]*domain.Record, 0, len(sqlRecs))
	for i := range sqlRecs {
		rec, err := toDomainNews(&sqlRecs[i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func toSQLNews(rec *domain.Record) (*newsSQL, error) {
	images, err := json.Marshal(orEmpty(rec.Images))
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	attachments, err := json.Marshal(orEmptyAttachments(rec.Attachments))
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	tags, err := json.Marshal(orEmpty(rec.Tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	return &newsSQL{
		Title:       rec.Title,
		Content:     rec.Content,
		Summary:     rec.Summary,
		SourceURL:   rec.SourceURL,
		SourceName:  rec.SourceName,
		PublishedAt: rec.PublishedAt,
		Author:      rec.Author,
		Publisher:   rec.Publisher,
		Department:  rec.Department,
		Images:      string(images),
		Attachments: string(attachments),
		Category:    rec.Category,
		Tags:        string(tags),
		ContentHash: rec.ContentHash,
	}, nil
}

func toDomainNews(sqlRec *newsSQL) (*domain.Record, error) {
	rec := &domain.Record{
		ID:          sqlRec.ID,
		Title:       sqlRec.Title,
		Content:     sqlRec.Content,
		Summary:     sqlRec.Summary,
		SourceURL:   sqlRec.SourceURL,
		SourceName:  sqlRec.SourceName,
		PublishedAt: sqlRec.PublishedAt,
		Author:      sqlRec.Author,
		Publisher:   sqlRec.Publisher,
		Department:  sqlRec.Department,
		Category:    sqlRec.Category,
		ContentHash: sqlRec.ContentHash,
		CreatedAt:   sqlRec.CreatedAt,
	}
	if err := json.Unmarshal([]byte(sqlRec.Images), &rec.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images for news %d: %w", sqlRec.ID, err)
	}
	if err := json.Unmarshal([]byte(sqlRec.Attachments), &rec.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments for news %d: %w", sqlRec.ID, err)
	}
	if err := json.Unmarshal([]byte(sqlRec.Tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags for news %d: %w", sqlRec.ID, err)
	}
	return rec, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyAttachments(a []domain.Attachment) []domain.Attachment {
	if a == nil {
		return []domain.Attachment{}
	}
	return a
}

// isUniqueError checks if an error is a SQLite unique constraint violation
func isUniqueError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
