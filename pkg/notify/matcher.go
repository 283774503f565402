// Package notify matches ingested records against keyword
// subscriptions and emails the subscribers. Every delivery attempt,
// successful or not, leaves a notification audit row behind.
package notify

import (
	"strings"

	"github.com/uniscope/uniscope/pkg/domain"
)

// Match reports whether a record matches a keyword. Matching is a
// case-insensitive substring check over title, content and summary,
// which works uniformly for CJK and latin keywords.
func Match(rec *domain.Record, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	haystack := strings.ToLower(rec.Title + "\n" + rec.Content + "\n" + rec.Summary)
	return strings.Contains(haystack, keyword)
}

// Matching filters subscriptions down to those whose keyword appears in
// the record
func Matching(rec *domain.Record, subs []domain.Subscription) []domain.Subscription {
	var matched []domain.Subscription
	for _, sub := range subs {
		if Match(rec, sub.Keyword) {
			matched = append(matched, sub)
		}
	}
	return matched
}
