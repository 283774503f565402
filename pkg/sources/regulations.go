package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/domain"
)

// Regulations traverses the university regulations database
// (zd.whut.edu.cn). Many documents there are PDFs rendered through
// PDF.js rather than HTML pages, so attachment discovery matters more
// than body extraction.
type Regulations struct {
	base string
}

var regulationCategories = map[string]string{
	"dwzd":           "党委制度",
	"xzzd":           "行政制度",
	"jwzd":           "纪委制度",
	"deptism":        "二级单位制度",
	"interpretation": "制度解读",
}

var regulationContentSelectors = []string{
	"div.v_news_content",
	"div.article-content",
	"div.content",
	"div.TRS_Editor",
	"div.wp_articlecontent",
	"article",
}

const regulationMaxPages = 3

var (
	reDocNumber = regexp.MustCompile(`([（(]\s*[\p{Han}]+\s*[〔\[]\s*\d{4}\s*[〕\]]\s*\d+\s*号\s*[）)])`)
	reShowPdf   = regexp.MustCompile(`showPdf\(["']([^"']+\.pdf)["']`)
)

// NewRegulations makes the regulations source
func NewRegulations(base string) *Regulations {
	if base == "" {
		base = "https://zd.whut.edu.cn"
	}
	return &Regulations{base: strings.TrimSuffix(base, "/")}
}

// Name implements crawl.Source
func (s *Regulations) Name() string { return "regulations" }

// Seeds fans out straight to the category listings, the homepage itself
// carries nothing worth parsing
func (s *Regulations) Seeds() []crawl.Request {
	var seeds []crawl.Request
	for code, name := range regulationCategories {
		seeds = append(seeds, crawl.Request{
			URL:  fmt.Sprintf("%s/%s/", s.base, code),
			Kind: crawl.KindListing,
			Meta: crawl.Meta{Category: name, CatCode: code, Page: 0},
		})
	}
	return seeds
}

// ParseListing extracts regulation rows from a table or list layout
func (s *Regulations) ParseListing(p *crawl.Page) (next []crawl.Request, records []*domain.Record) {
	rows := p.Doc.Find("table tr, ul.list li, div.list li")

	rows.Each(func(_ int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}
		href, ok := row.Find("a").First().Attr("href")
		if !ok || !crawl.LinkOK(href) {
			return
		}
		if !strings.HasSuffix(href, ".shtml") && !strings.HasSuffix(href, ".htm") {
			return
		}
		title := itemTitle(row)
		if title == "" {
			return
		}
		u := p.Resolve(href)
		if u == "" {
			return
		}
		next = append(next, crawl.Request{
			URL:  u,
			Kind: crawl.KindArticle,
			Meta: crawl.Meta{Title: title, DateStr: itemDate(row), Category: p.Meta.Category},
		})
	})

	if p.Meta.Page < regulationMaxPages {
		if u := s.nextPage(p); u != "" {
			next = append(next, crawl.Request{
				URL:  u,
				Kind: crawl.KindListing,
				Meta: crawl.Meta{Category: p.Meta.Category, CatCode: p.Meta.CatCode, Page: p.Meta.Page + 1},
			})
		}
	}
	return next, nil
}

func (s *Regulations) nextPage(p *crawl.Page) string {
	if total, current, ok := createPageInfo(p.Body); ok {
		if current+1 >= total {
			return ""
		}
		if current+1 == 0 {
			return fmt.Sprintf("%s/%s/index.shtml", s.base, p.Meta.CatCode)
		}
		return fmt.Sprintf("%s/%s/index_%d.shtml", s.base, p.Meta.CatCode, current+1)
	}
	return findNextLink(p)
}

// ParseArticle extracts a regulation record. A page with no HTML body
// but at least one attachment still yields a record with placeholder
// content so the document stays searchable.
func (s *Regulations) ParseArticle(p *crawl.Page) (*domain.Record, bool) {
	title := p.Meta.Title
	if title == "" {
		title = strings.TrimSpace(p.Doc.Find("h1, div.title, div.article-title").First().Text())
	}

	docNumber := reDocNumber.FindString(title)

	content := pickContent(p.Doc, regulationContentSelectors)
	attachments := s.attachments(p, title)

	if len([]rune(content)) < 20 {
		if len(attachments) == 0 {
			return nil, false
		}
		content = "[PDF文档] 本规章制度为PDF格式文件，请下载附件查看完整内容。"
		if title != "" {
			content = fmt.Sprintf("[PDF文档] %s\n\n本规章制度为PDF格式文件，请下载附件查看完整内容。", title)
		}
	}

	dateStr := p.Meta.DateStr
	if dateStr == "" {
		dateStr = strings.TrimSpace(p.Doc.Find("span.date, div.info span").First().Text())
	}
	if dateStr == "" {
		dateStr = reAnyDate.FindString(p.Body)
	}

	if docNumber != "" && !strings.Contains(title, docNumber) {
		title = title + " " + docNumber
	}
	if title == "" {
		return nil, false
	}

	rec := &domain.Record{
		Title:       CleanHTML(title),
		Content:     content,
		Summary:     Summarize(content),
		SourceURL:   p.URL.String(),
		SourceName:  "武汉理工大学规章制度库",
		Publisher:   FindLabeled(p.Body, "发布单位", "发文单位", "制定部门"),
		Attachments: attachments,
		Category:    p.Meta.Category,
		Tags:        []string{"制度", "规章"},
	}
	if t, ok := ParseDate(dateStr); ok {
		rec.PublishedAt = &t
	}
	return rec, true
}

// attachments collects linked documents plus any PDF referenced from
// the page's PDF.js bootstrap script
func (s *Regulations) attachments(p *crawl.Page, title string) []domain.Attachment {
	var result []domain.Attachment
	seen := make(map[string]struct{})

	p.Doc.Find(`a[href$=".pdf"], a[href$=".doc"], a[href$=".docx"], a[href$=".xls"], a[href$=".xlsx"], div.attachment a, div.article-enclosure a`).
		EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			u := p.Resolve(href)
			if u == "" {
				return true
			}
			if _, dup := seen[u]; dup {
				return true
			}
			seen[u] = struct{}{}
			name := strings.TrimSpace(a.Text())
			if name == "" {
				name = u[strings.LastIndex(u, "/")+1:]
			}
			result = append(result, domain.Attachment{Name: name, URL: u})
			return len(result) < maxAttachments
		})

	if m := reShowPdf.FindStringSubmatch(p.Body); m != nil {
		u := p.Resolve(m[1])
		if u != "" {
			if _, dup := seen[u]; !dup {
				name := "document.pdf"
				if title != "" {
					name = title + ".pdf"
				}
				result = append(result, domain.Attachment{Name: name, URL: u})
			}
		}
	}
	return result
}
