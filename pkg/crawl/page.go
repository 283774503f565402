package crawl

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageKind tells the runner how to dispatch a fetched page
type PageKind int

// page kinds
const (
	KindListing PageKind = iota
	KindArticle
)

// Meta carries metadata inherited from the page that linked here: a
// listing row usually knows the title, date and category before the
// article page is ever fetched. Extractors prefer inherited values over
// re-parsing the article page.
type Meta struct {
	Title      string
	DateStr    string
	Category   string
	CatCode    string
	Department string
	Page       int
}

// Request is one scheduled fetch within a traversal run
type Request struct {
	URL  string
	Kind PageKind
	Meta Meta
}

// Page is a fetched and parsed page handed to a source for extraction.
// Body keeps the raw decoded HTML for regex scans that are not scoped
// to any element (label patterns move around between site templates).
type Page struct {
	URL  *url.URL
	Doc  *goquery.Document
	Body string
	Meta Meta
}

// Resolve turns href into an absolute URL against the page's own URL.
// Returns "" for anything that can't be a content link: empty hrefs,
// bare fragments, javascript: and other non-HTTP schemes.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if !LinkOK(href) {
		return ""
	}
	u, err := p.URL.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// LinkOK rejects hrefs that are navigation chrome rather than content:
// javascript: links, bare fragments and void(0) stubs
func LinkOK(href string) bool {
	if href == "" || href == "#" {
		return false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "mailto:") {
		return false
	}
	if strings.Contains(lower, "javascript:") || lower == "void(0)" {
		return false
	}
	return true
}
