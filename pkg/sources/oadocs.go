package sources

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/domain"
)

// OADocuments traverses the Seeyon OA public document portal
// (oapub.whut.edu.cn). Listing rows link to detail pages through
// JavaScript:OpenNewWindow('id') calls, so detail URLs are synthesized
// from the extracted id rather than followed from hrefs. The document
// body itself usually lives in an attachment, the record content is
// assembled from the detail page's metadata table.
type OADocuments struct {
	base string
}

var oaCategories = map[string]string{
	"dwwj_list": "党委文件",
	"xzwj_list": "行政文件",
	"jwwj_list": "教务文件",
	"ldjh_list": "领导讲话",
	"hyjy_list": "会议纪要",
}

const oaMaxPages = 5

var (
	reOpenWindow = regexp.MustCompile(`OpenNewWindow\(['"](-?\d+)['"]\)`)
	rePageParam  = regexp.MustCompile(`page=(\d+)`)
	reTitlePfx   = regexp.MustCompile(`^[^:：]+[:：]\s*`)
)

// oaPagerLabels are row titles that belong to the pager, not documents
var oaPagerLabels = map[string]struct{}{
	"下页": {}, "上页": {}, "首页": {}, "末页": {}, "尾页": {}, "2": {},
}

// NewOADocuments makes the OA documents source
func NewOADocuments(base string) *OADocuments {
	if base == "" {
		base = "http://oapub.whut.edu.cn:8080/seeyon-pub/article"
	}
	return &OADocuments{base: strings.TrimSuffix(base, "/")}
}

// Name implements crawl.Source
func (s *OADocuments) Name() string { return "oa_documents" }

// Seeds lists the five document category pages
func (s *OADocuments) Seeds() []crawl.Request {
	var seeds []crawl.Request
	for code, name := range oaCategories {
		seeds = append(seeds, crawl.Request{
			URL:  s.base + "/" + code,
			Kind: crawl.KindListing,
			Meta: crawl.Meta{Category: name, CatCode: code, Page: 1},
		})
	}
	return seeds
}

// ParseListing walks the Seeyon table.list rows, synthesizing detail
// URLs from OpenNewWindow ids
func (s *OADocuments) ParseListing(p *crawl.Page) (next []crawl.Request, records []*domain.Record) {
	catCode := p.Meta.CatCode
	if catCode == "" {
		catCode = s.catCodeFromURL(p.URL.String())
	}
	category := p.Meta.Category
	if category == "" {
		category = oaCategories[catCode]
	}
	detailType := strings.Replace(catCode, "_list", "_detail", 1)

	p.Doc.Find("table.list tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("Head") {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		// the row carries several OpenNewWindow links, the title link is
		// the one with real text rather than a one-character marker
		var title, href string
		row.Find(`a[href*="OpenNewWindow"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			text := strings.TrimSpace(a.Text())
			if len([]rune(text)) <= 5 {
				return true
			}
			if h, ok := a.Attr("href"); ok {
				title, href = text, h
				return false
			}
			return true
		})
		if href == "" {
			return
		}
		if _, pager := oaPagerLabels[title]; pager {
			return
		}

		m := reOpenWindow.FindStringSubmatch(href)
		if m == nil {
			return
		}
		docID := m[1]

		department := strings.TrimSpace(cells.Eq(2).Text())

		var dateStr string
		for i := cells.Length() - 1; i >= 0; i-- {
			text := strings.TrimSpace(cells.Eq(i).Text())
			if reAnyDate.MatchString(text) {
				dateStr = reAnyDate.FindString(text)
				break
			}
		}

		next = append(next, crawl.Request{
			URL:  fmt.Sprintf("%s/%s?id=%s", s.base, detailType, docID),
			Kind: crawl.KindArticle,
			Meta: crawl.Meta{
				Title:      title,
				DateStr:    dateStr,
				Category:   category,
				CatCode:    catCode,
				Department: department,
			},
		})
	})

	// pager uses plain page= links
	p.Doc.Find(`a[href*="page="]`).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		m := rePageParam.FindStringSubmatch(href)
		if m == nil {
			return
		}
		pageNum, err := strconv.Atoi(m[1])
		if err != nil || pageNum > oaMaxPages {
			return
		}
		if u := p.Resolve(href); u != "" {
			next = append(next, crawl.Request{
				URL:  u,
				Kind: crawl.KindListing,
				Meta: crawl.Meta{Category: category, CatCode: catCode, Page: pageNum},
			})
		}
	})

	return next, nil
}

// ParseArticle reads the detail page's metadata table (tr.bgcolor rows
// of label/value cell pairs) and assembles record content from it
func (s *OADocuments) ParseArticle(p *crawl.Page) (*domain.Record, bool) {
	title := p.Meta.Title
	dateStr := p.Meta.DateStr
	department := p.Meta.Department
	category := p.Meta.Category
	if category == "" {
		category = "行政文件"
	}

	var author string
	p.Doc.Find("tr.bgcolor").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i++ {
			label := strings.TrimSpace(cells.Eq(i).Text())
			value := strings.TrimSpace(cells.Eq(i + 1).Text())
			if value == "" {
				continue
			}
			switch {
			case strings.Contains(label, "标") && strings.Contains(label, "题") && title == "":
				title = value
			case strings.Contains(label, "发布时间") && dateStr == "":
				dateStr = value
			case strings.Contains(label, "拟文单位") && department == "":
				department = value
			case strings.Contains(label, "拟文人") && author == "":
				author = value
			}
		}
	})

	if title == "" {
		if t := strings.TrimSpace(p.Doc.Find("title").First().Text()); t != "" {
			title = strings.TrimSpace(reTitlePfx.ReplaceAllString(t, ""))
		}
	}
	if title == "" {
		return nil, false
	}

	attachments := s.attachments(p)

	var parts []string
	parts = append(parts, "标题: "+title)
	parts = append(parts, "分类: "+category)
	if department != "" {
		parts = append(parts, "拟文单位: "+department)
	}
	if author != "" {
		parts = append(parts, "拟文人: "+author)
	}
	if dateStr != "" {
		parts = append(parts, "发布时间: "+dateStr)
	}
	if len(attachments) > 0 {
		parts = append(parts, fmt.Sprintf("\n附件: 本文件包含 %d 个附件，请下载查看完整内容。", len(attachments)))
	}
	content := strings.Join(parts, "\n")

	rec := &domain.Record{
		Title:       CleanHTML(title),
		Content:     content,
		Summary:     Summarize(content),
		SourceURL:   p.URL.String(),
		SourceName:  "武汉理工大学OA-" + category,
		Author:      author,
		Publisher:   department,
		Department:  department,
		Attachments: attachments,
		Category:    category,
		Tags:        []string{"公文", "文件", category},
	}
	if t, ok := ParseDate(dateStr); ok {
		rec.PublishedAt = &t
	}
	return rec, true
}

func (s *OADocuments) attachments(p *crawl.Page) []domain.Attachment {
	var result []domain.Attachment
	seen := make(map[string]struct{})

	add := func(a *goquery.Selection, fallbackName string) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		u := p.Resolve(href)
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		name := strings.TrimSpace(a.Text())
		if name == "" {
			if dl, ok := a.Attr("download"); ok && strings.TrimSpace(dl) != "" {
				name = strings.TrimSpace(dl)
			} else {
				name = fallbackName
			}
		}
		if name == "" {
			name = u[strings.LastIndex(u, "/")+1:]
		}
		result = append(result, domain.Attachment{Name: name, URL: u})
	}

	p.Doc.Find(`a[href*="/file/file"]`).Each(func(_ int, a *goquery.Selection) {
		add(a, "正文下载")
	})
	p.Doc.Find(`a[href$=".pdf"], a[href$=".doc"], a[href$=".docx"], a[download]`).Each(func(_ int, a *goquery.Selection) {
		add(a, "")
	})
	if len(result) > maxAttachments {
		result = result[:maxAttachments]
	}
	return result
}

func (s *OADocuments) catCodeFromURL(u string) string {
	for code := range oaCategories {
		if strings.Contains(u, code) {
			return code
		}
	}
	return "xzwj_list"
}
