package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/domain"
)

// NewsPortal traverses the university's official news portal
// (news.whut.edu.cn). The homepage carries a featured block plus links
// into nine category sections, each a paginated shtml listing.
type NewsPortal struct {
	base string
}

// portalCategories maps the portal's URL path codes to category names
var portalCategories = map[string]string{
	"zhxw": "综合新闻",
	"lgzx": "理工资讯",
	"xsdt": "学术动态",
	"whyx": "文化影像",
	"xysh": "校园生活",
	"mtlg": "媒体理工",
	"xyrw": "校园人物",
	"tzgg": "通知公告",
	"spxw": "视频新闻",
}

// portalContentSelectors is the prioritized list of article body
// containers seen across the portal's templates
var portalContentSelectors = []string{
	"div.v_news_content",
	"div.article-content",
	"div.content",
	"div.TRS_Editor",
	"div.news_content",
	"article",
}

const portalMaxPages = 5

var reArticlePath = regexp.MustCompile(`t\d+_\d+\.shtml`)

// NewNewsPortal makes the news portal source, base overrides the
// production site URL for tests
func NewNewsPortal(base string) *NewsPortal {
	if base == "" {
		base = "https://news.whut.edu.cn"
	}
	return &NewsPortal{base: strings.TrimSuffix(base, "/")}
}

// Name implements crawl.Source
func (s *NewsPortal) Name() string { return "news_portal" }

// Seeds starts from the homepage, category listings are discovered there
func (s *NewsPortal) Seeds() []crawl.Request {
	return []crawl.Request{{URL: s.base + "/", Kind: crawl.KindListing}}
}

// ParseListing handles both the homepage (featured links plus category
// fan-out) and category pages (article rows plus pagination)
func (s *NewsPortal) ParseListing(p *crawl.Page) (next []crawl.Request, records []*domain.Record) {
	if p.Meta.CatCode == "" {
		return s.parseHomepage(p), nil
	}
	return s.parseCategory(p), nil
}

func (s *NewsPortal) parseHomepage(p *crawl.Page) []crawl.Request {
	var next []crawl.Request

	// featured block, capped so a redesigned homepage can't flood the run
	count := 0
	p.Doc.Find("div.bd ul li a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || !crawl.LinkOK(href) {
			return true
		}
		u := p.Resolve(href)
		if u == "" {
			return true
		}
		next = append(next, crawl.Request{
			URL:  u,
			Kind: crawl.KindArticle,
			Meta: crawl.Meta{
				Title:    strings.TrimSpace(a.Text()),
				Category: s.categoryFromURL(u),
			},
		})
		count++
		return count < 20
	})

	for code, name := range portalCategories {
		next = append(next, crawl.Request{
			URL:  fmt.Sprintf("%s/%s/", s.base, code),
			Kind: crawl.KindListing,
			Meta: crawl.Meta{Category: name, CatCode: code, Page: 1},
		})
	}
	return next
}

func (s *NewsPortal) parseCategory(p *crawl.Page) []crawl.Request {
	var next []crawl.Request

	items := p.Doc.Find("ul.news_list li, div.news_list li, ul li")
	if items.Length() == 0 {
		items = p.Doc.Find("table tr")
	}

	items.Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a").First().Attr("href")
		if !ok || !crawl.LinkOK(href) {
			return
		}
		if !reArticlePath.MatchString(href) && !strings.HasSuffix(href, ".shtml") {
			return
		}
		title := itemTitle(item)
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
			Meta: crawl.Meta{
				Title:    title,
				DateStr:  itemDate(item),
				Category: p.Meta.Category,
			},
		})
	})

	if p.Meta.Page < portalMaxPages {
		if u := s.nextPage(p); u != "" {
			next = append(next, crawl.Request{
				URL:  u,
				Kind: crawl.KindListing,
				Meta: crawl.Meta{Category: p.Meta.Category, CatCode: p.Meta.CatCode, Page: p.Meta.Page + 1},
			})
		}
	}
	return next
}

// nextPage derives the next listing URL from the portal's
// createPageHTML(total, current) pagination script, falling back to an
// explicit next link. No guessing when neither is present.
func (s *NewsPortal) nextPage(p *crawl.Page) string {
	if total, current, ok := createPageInfo(p.Body); ok {
		if current+1 < total {
			return fmt.Sprintf("%s/%s/index_%d.shtml", s.base, p.Meta.CatCode, current+1)
		}
		return ""
	}
	return findNextLink(p)
}

// ParseArticle extracts a news record from an article page
func (s *NewsPortal) ParseArticle(p *crawl.Page) (*domain.Record, bool) {
	title := p.Meta.Title
	if len([]rune(title)) < 5 {
		title = strings.TrimSpace(p.Doc.Find("h1, div.title, div.article-title").First().Text())
	}
	if len([]rune(title)) < 5 {
		if t := pageTitle(p.Doc); len([]rune(t)) >= 5 {
			title = t
		}
	}

	content := pickContent(p.Doc, portalContentSelectors)
	if len([]rune(content)) < 20 || title == "" {
		return nil, false
	}

	dateStr := p.Meta.DateStr
	if dateStr == "" {
		dateStr = strings.TrimSpace(p.Doc.Find("span.date, div.info span").First().Text())
	}
	if dateStr == "" {
		dateStr = reAnyDate.FindString(p.Body)
	}

	rec := &domain.Record{
		Title:      CleanHTML(title),
		Content:    content,
		Summary:    Summarize(content),
		SourceURL:  p.URL.String(),
		SourceName: "武汉理工大学新闻网",
		Author:     FindLabeled(p.Body, "作者", "记者", "撰稿", "编辑"),
		Publisher:  FindLabeled(p.Body, "来源", "供稿", "发布"),
		Images:     contentImages(p, "div.v_news_content", "div.article-content", "div.content"),
		Category:   p.Meta.Category,
	}
	if rec.Category == "" {
		rec.Category = s.categoryFromURL(rec.SourceURL)
	}
	if t, ok := ParseDate(dateStr); ok {
		rec.PublishedAt = &t
	}
	return rec, true
}

func (s *NewsPortal) categoryFromURL(u string) string {
	for code, name := range portalCategories {
		if strings.Contains(u, "/"+code+"/") {
			return name
		}
	}
	return "综合新闻"
}
