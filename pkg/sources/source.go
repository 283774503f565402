package sources

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/uniscope/uniscope/pkg/crawl"
)

// All returns the source registry: every site the crawler knows how to
// traverse, constructed with its production base URL. The scheduler and
// the one-shot CLI both build their runner from this table.
func All() []crawl.Source {
	return []crawl.Source{
		NewNewsPortal(""),
		NewRegulations(""),
		NewOADocuments(""),
		NewYouthLeague(""),
		NewWeeklyMeeting(""),
	}
}

var (
	reAnyDate     = regexp.MustCompile(`(\d{4}[-/]\d{2}[-/]\d{2})`)
	reTitleSuffix = regexp.MustCompile(`-[^-]+$`)
)

// maxImages caps the image list so a picture-gallery page can't balloon
// a record
const maxImages = 5

// maxAttachments caps the attachment list
const maxAttachments = 10

// itemTitle extracts a listing row's link title, preferring the title
// attribute (full text) over the possibly truncated link text
func itemTitle(item *goquery.Selection) string {
	if title, ok := item.Find("a").First().Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title := strings.TrimSpace(item.Find("a").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(item.Find("h3, h4").First().Text())
}

// itemDate extracts a listing row's date string, falling back to a bare
// date pattern anywhere in the row markup
func itemDate(item *goquery.Selection) string {
	if d := strings.TrimSpace(item.Find("span.date").First().Text()); d != "" {
		return d
	}
	if d := strings.TrimSpace(item.Find("td:last-child").First().Text()); reAnyDate.MatchString(d) {
		return reAnyDate.FindString(d)
	}
	if h, err := goquery.OuterHtml(item); err == nil {
		if m := reAnyDate.FindString(h); m != "" {
			return m
		}
	}
	return ""
}

// findNextLink looks for an explicit next-page link: an a.next element
// or an anchor labeled 下一页 / »
func findNextLink(p *crawl.Page) string {
	if href, ok := p.Doc.Find("a.next, a.page-next").First().Attr("href"); ok {
		if u := p.Resolve(href); u != "" {
			return u
		}
	}
	var found string
	p.Doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if text != "下一页" && text != "»" {
			return true
		}
		if href, ok := a.Attr("href"); ok {
			if u := p.Resolve(href); u != "" {
				found = u
				return false
			}
		}
		return true
	})
	return found
}

// pickContent walks the source's prioritized content-container
// selectors; the first selector yielding non-trivial text wins and the
// rest are never tried. Paragraph extraction is attempted first, then a
// whole-container text dump for templates without <p> structure.
func pickContent(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var parts []string
		doc.Find(sel + " p").Each(func(_ int, para *goquery.Selection) {
			text := CleanHTML(para.Text())
			if len([]rune(text)) > 10 {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}

	for _, sel := range selectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		if text := CleanHTML(container.Text()); len([]rune(text)) > 50 {
			return text
		}
	}

	return ""
}

// contentImages collects absolute image URLs from the given containers,
// dropping spacer GIFs and capping the list
func contentImages(p *crawl.Page, selectors ...string) []string {
	var images []string
	seen := make(map[string]struct{})
	for _, sel := range selectors {
		p.Doc.Find(sel + " img").Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || strings.HasSuffix(strings.ToLower(src), ".gif") {
				return
			}
			u := p.Resolve(src)
			if u == "" {
				return
			}
			if _, dup := seen[u]; dup {
				return
			}
			seen[u] = struct{}{}
			images = append(images, u)
		})
	}
	if len(images) > maxImages {
		images = images[:maxImages]
	}
	return images
}

// pageTitle falls back to the document <title>, with the site-name
// suffix ("-武汉理工大学新闻经纬" and friends) removed
func pageTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}
	title = reTitleSuffix.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}
