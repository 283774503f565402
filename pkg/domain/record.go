package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is the canonical representation of a scraped page, independent
// of the source site structure. Every extractor produces records in this
// shape; the storage layer deduplicates them by ContentHash.
type Record struct {
	ID          int64        `json:"id,omitempty" db:"id"`
	Title       string       `json:"title" db:"title"`
	Content     string       `json:"content" db:"content"`
	Summary     string       `json:"summary" db:"summary"`
	SourceURL   string       `json:"source_url" db:"source_url"`
	SourceName  string       `json:"source_name" db:"source_name"`
	PublishedAt *time.Time   `json:"published_at,omitempty" db:"published_at"`
	Author      string       `json:"author,omitempty" db:"author"`
	Publisher   string       `json:"publisher,omitempty" db:"publisher"`
	Department  string       `json:"department,omitempty" db:"department"`
	Images      []string     `json:"images"`
	Attachments []Attachment `json:"attachments"`
	Category    string       `json:"category" db:"category"`
	Tags        []string     `json:"tags"`
	ContentHash string       `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time    `json:"created_at,omitempty" db:"created_at"`
}

// Attachment is a downloadable file referenced by a record
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Fingerprint returns the SHA-256 hex digest of title+content. Records
// with identical title and content hash identically regardless of the
// URL they were fetched from, so a re-published article is still
// recognized as a duplicate.
func Fingerprint(title, content string) string {
	sum := sha256.Sum256([]byte(title + content))
	return hex.EncodeToString(sum[:])
}

// Finalize fills the derived ContentHash field
func (r *Record) Finalize() {
	r.ContentHash = Fingerprint(r.Title, r.Content)
}
