package sources

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/domain"
)

// YouthLeague traverses the campus youth league site
// (youth.whut.edu.cn). The site's section layout varies between
// template revisions, so categories are discovered two ways: matched
// from navigation hrefs and probed at conventional URL patterns.
// Probes for categories the site doesn't have simply 404 and are
// skipped by the runner.
type YouthLeague struct {
	base string
}

var youthCategories = map[string]string{
	"tzgg": "通知公告",
	"txdt": "团学动态",
	"qnxx": "青年学习",
	"jcfc": "基层风采",
	"zyfw": "志愿服务",
	"shsj": "社会实践",
	"cxcy": "创新创业",
	"whys": "文化艺术",
	"gzzd": "规章制度",
	"xydt": "学院动态",
	"xwdt": "新闻动态",
}

var youthContentSelectors = []string{
	"div.v_news_content",
	"div.article-content",
	"div.content",
	"div.TRS_Editor",
	"div.wp_articlecontent",
	"div#content",
	"article",
}

const youthMaxPages = 5

// NewYouthLeague makes the youth league source
func NewYouthLeague(base string) *YouthLeague {
	if base == "" {
		base = "http://youth.whut.edu.cn"
	}
	return &YouthLeague{base: strings.TrimSuffix(base, "/")}
}

// Name implements crawl.Source
func (s *YouthLeague) Name() string { return "youth_league" }

// Seeds starts at the homepage, category pages come from nav discovery
// plus URL probing done in ParseListing
func (s *YouthLeague) Seeds() []crawl.Request {
	return []crawl.Request{{URL: s.base + "/", Kind: crawl.KindListing}}
}

// ParseListing handles the homepage (news blocks, nav discovery, probe
// fan-out) and category listings (article rows plus pagination)
func (s *YouthLeague) ParseListing(p *crawl.Page) (next []crawl.Request, records []*domain.Record) {
	if p.Meta.CatCode == "" {
		return s.parseHomepage(p), nil
	}
	return s.parseCategory(p), nil
}

func (s *YouthLeague) parseHomepage(p *crawl.Page) []crawl.Request {
	var next []crawl.Request

	// homepage news blocks
	p.Doc.Find("div.news-list, div.article-list, ul.news-list, div.list_box, div.bd ul").
		Each(func(_ int, section *goquery.Selection) {
			section.Find("li, div.item").Each(func(_ int, item *goquery.Selection) {
				href, ok := item.Find("a").First().Attr("href")
				if !ok || !crawl.LinkOK(href) {
					return
				}
				title := itemTitle(item)
				if len([]rune(title)) < 5 {
					return
				}
				u := p.Resolve(href)
				if u == "" {
					return
				}
				next = append(next, crawl.Request{
					URL:  u,
					Kind: crawl.KindArticle,
					Meta: crawl.Meta{Title: title, DateStr: itemDate(item), Category: "团学动态"},
				})
			})
		})

	// category discovery from navigation
	p.Doc.Find("nav a, div.nav a, ul.menu a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !crawl.LinkOK(href) {
			return
		}
		for code, name := range youthCategories {
			if !strings.Contains(strings.ToLower(href), code) {
				continue
			}
			if u := p.Resolve(href); u != "" {
				next = append(next, crawl.Request{
					URL:  u,
					Kind: crawl.KindListing,
					Meta: crawl.Meta{Category: name, CatCode: code, Page: 0},
				})
			}
			break
		}
	})

	// probe conventional category paths, missing ones just 404
	for code, name := range youthCategories {
		for _, pattern := range []string{"/%s/", "/%s/index.shtml", "/%s.htm"} {
			next = append(next, crawl.Request{
				URL:  s.base + fmt.Sprintf(pattern, code),
				Kind: crawl.KindListing,
				Meta: crawl.Meta{Category: name, CatCode: code, Page: 0},
			})
		}
	}
	return next
}

func (s *YouthLeague) parseCategory(p *crawl.Page) []crawl.Request {
	var next []crawl.Request

	p.Doc.Find("ul.news_list li, ul.normal_list li, div.list li, table tr, ul li").
		Each(func(_ int, item *goquery.Selection) {
			if item.Find("th").Length() > 0 {
				return
			}
			href, ok := item.Find("a").First().Attr("href")
			if !ok || !crawl.LinkOK(href) {
				return
			}
			if !strings.HasSuffix(href, ".shtml") && !strings.HasSuffix(href, ".htm") &&
				!strings.HasSuffix(href, ".html") && !strings.Contains(href, "/t") {
				return
			}
			title := itemTitle(item)
			if len([]rune(title)) < 5 {
				return
			}
			u := p.Resolve(href)
			if u == "" {
				return
			}
			next = append(next, crawl.Request{
				URL:  u,
				Kind: crawl.KindArticle,
				Meta: crawl.Meta{Title: title, DateStr: itemDate(item), Category: p.Meta.Category},
			})
		})

	if p.Meta.Page < youthMaxPages {
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

func (s *YouthLeague) nextPage(p *crawl.Page) string {
	if total, current, ok := createPageInfo(p.Body); ok {
		if current+1 >= total {
			return ""
		}
		return fmt.Sprintf("%s/%s/index_%d.shtml", s.base, p.Meta.CatCode, current+1)
	}
	return findNextLink(p)
}

// ParseArticle extracts a youth league article
func (s *YouthLeague) ParseArticle(p *crawl.Page) (*domain.Record, bool) {
	title := p.Meta.Title
	if title == "" {
		title = strings.TrimSpace(p.Doc.Find("h1, div.title, div.article-title, .detail-title").First().Text())
	}

	content := pickContent(p.Doc, youthContentSelectors)
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

	category := p.Meta.Category
	if category == "" {
		category = "团学动态"
	}

	rec := &domain.Record{
		Title:      CleanHTML(title),
		Content:    content,
		Summary:    Summarize(content),
		SourceURL:  p.URL.String(),
		SourceName: "武汉理工大学共青团",
		Author:     FindLabeled(p.Body, "作者", "撰稿", "编辑", "供稿"),
		Publisher:  FindLabeled(p.Body, "来源", "发布"),
		Images:     contentImages(p, "div.article-content", "div.content", "div.TRS_Editor"),
		Category:   category,
		Tags:       []string{"共青团", "青年"},
	}
	if t, ok := ParseDate(dateStr); ok {
		rec.PublishedAt = &t
	}
	return rec, true
}
