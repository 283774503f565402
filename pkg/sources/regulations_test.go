package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniscope/uniscope/pkg/crawl"
)

func TestRegulations_Seeds(t *testing.T) {
	s := NewRegulations("")
	seeds := s.Seeds()
	require.Len(t, seeds, len(regulationCategories))

	seen := map[string]string{}
	for _, seed := range seeds {
		assert.Equal(t, crawl.KindListing, seed.Kind)
		assert.Zero(t, seed.Meta.Page)
		seen[seed.Meta.CatCode] = seed.Meta.Category
	}
	assert.Equal(t, "党委制度", seen["dwzd"])
	assert.Equal(t, "制度解读", seen["interpretation"])
}

func TestRegulations_ParseListing(t *testing.T) {
	body := `<html><body>
		<table>
			<tr><th>标题</th><th>发布日期</th></tr>
			<tr><td><a href="t10_1.shtml" title="武汉理工大学章程实施办法">武汉理工大学章程...</a></td><td>2026-07-01</td></tr>
			<tr><td><a href="t10_2.shtml">科研经费管理办法</a></td><td>2026-06-15</td></tr>
			<tr><td><a href="/download/x.zip">压缩包</a></td><td>2026-06-01</td></tr>
		</table>
		<script>createPageHTML(4, 0, "index", "shtml");</script>
	</body></html>`
	meta := crawl.Meta{Category: "行政制度", CatCode: "xzzd", Page: 0}
	page := makePage(t, "https://zd.whut.edu.cn/xzzd/", body, meta)

	s := NewRegulations("")
	next, records := s.ParseListing(page)
	assert.Empty(t, records)

	// header row and the non-document href are skipped
	require.Len(t, next, 3)

	first, ok := findRequest(next, "t10_1.shtml")
	require.True(t, ok)
	assert.Equal(t, "武汉理工大学章程实施办法", first.Meta.Title)
	assert.Equal(t, "2026-07-01", first.Meta.DateStr)
	assert.Equal(t, "行政制度", first.Meta.Category)

	pageReq, ok := findRequest(next, "index_1.shtml")
	require.True(t, ok)
	assert.Equal(t, crawl.KindListing, pageReq.Kind)
	assert.Equal(t, 1, pageReq.Meta.Page)
}

func TestRegulations_ParseListing_PageCap(t *testing.T) {
	body := `<table><tr><td><a href="t1_1.shtml">某项规章制度名称</a></td><td>2026-01-01</td></tr></table>
		<script>createPageHTML(9, 2, "index", "shtml");</script>`
	meta := crawl.Meta{Category: "党委制度", CatCode: "dwzd", Page: regulationMaxPages}
	page := makePage(t, "https://zd.whut.edu.cn/dwzd/index_2.shtml", body, meta)

	s := NewRegulations("")
	next, _ := s.ParseListing(page)
	for _, req := range next {
		assert.Equal(t, crawl.KindArticle, req.Kind)
	}
}

func TestRegulations_ParseArticle(t *testing.T) {
	s := NewRegulations("")

	t.Run("html body with attachment", func(t *testing.T) {
		body := `<html><body>
			<h1>实验室安全管理办法</h1>
			<div class="info">发布单位：国有资产与实验室管理处 2026-05-20</div>
			<div class="v_news_content">
				<p>第一条 为加强实验室安全管理，保障师生人身安全，制定本办法。</p>
				<p>第二条 本办法适用于学校所有教学科研实验室。</p>
			</div>
			<div class="attachment"><a href="/files/anquan.doc">实验室安全管理办法全文</a></div>
		</body></html>`
		meta := crawl.Meta{Title: "实验室安全管理办法", Category: "行政制度"}
		page := makePage(t, "https://zd.whut.edu.cn/xzzd/t10_1.shtml", body, meta)

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		assert.Equal(t, "实验室安全管理办法", rec.Title)
		assert.Contains(t, rec.Content, "第一条")
		assert.Equal(t, "国有资产与实验室管理处", rec.Publisher)
		assert.Equal(t, []string{"制度", "规章"}, rec.Tags)
		require.Len(t, rec.Attachments, 1)
		assert.Equal(t, "实验室安全管理办法全文", rec.Attachments[0].Name)
		assert.Equal(t, "https://zd.whut.edu.cn/files/anquan.doc", rec.Attachments[0].URL)
		require.NotNil(t, rec.PublishedAt)
		assert.Equal(t, "2026-05-20", rec.PublishedAt.Format("2006-01-02"))
	})

	t.Run("pdf only page gets placeholder content", func(t *testing.T) {
		body := `<html><body>
			<script>showPdf("/docs/zhidu2026.pdf", "viewer");</script>
		</body></html>`
		meta := crawl.Meta{Title: "研究生奖助学金管理办法", Category: "行政制度"}
		page := makePage(t, "https://zd.whut.edu.cn/xzzd/t11_1.shtml", body, meta)

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		assert.Contains(t, rec.Content, "[PDF文档]")
		assert.Contains(t, rec.Content, "研究生奖助学金管理办法")
		require.Len(t, rec.Attachments, 1)
		assert.Equal(t, "研究生奖助学金管理办法.pdf", rec.Attachments[0].Name)
		assert.Equal(t, "https://zd.whut.edu.cn/docs/zhidu2026.pdf", rec.Attachments[0].URL)
	})

	t.Run("no content and no attachments skipped", func(t *testing.T) {
		page := makePage(t, "https://zd.whut.edu.cn/xzzd/t12_1.shtml",
			"<html><body><h1>空页面</h1></body></html>", crawl.Meta{Title: "空的制度页"})
		_, ok := s.ParseArticle(page)
		assert.False(t, ok)
	})

	t.Run("document number appended to title", func(t *testing.T) {
		body := `<html><body>
			<div class="content"><p>为规范发文流程，现就有关事项通知如下，请遵照执行。</p></div>
		</body></html>`
		meta := crawl.Meta{Title: "关于印发某办法的通知（校党字〔2026〕12号）", Category: "党委制度"}
		page := makePage(t, "https://zd.whut.edu.cn/dwzd/t13_1.shtml", body, meta)

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		// number already embedded in the title is not duplicated
		assert.Equal(t, 1, strings.Count(rec.Title, "〔2026〕12号"))
	})

	t.Run("attachment dedup and naming", func(t *testing.T) {
		body := `<html><body>
			<div class="content"><p>相关附件材料请见下方列表，点击即可下载查阅原文。</p></div>
			<div class="attachment">
				<a href="/files/a.pdf">办法原文</a>
				<a href="/files/a.pdf">办法原文重复链接</a>
				<a href="/files/b.xlsx"></a>
			</div>
		</body></html>`
		page := makePage(t, "https://zd.whut.edu.cn/xzzd/t14_1.shtml", body, crawl.Meta{Title: "附件测试制度文件"})

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		require.Len(t, rec.Attachments, 2)
		assert.Equal(t, "办法原文", rec.Attachments[0].Name)
		assert.Equal(t, "b.xlsx", rec.Attachments[1].Name, "empty link text falls back to file name")
	})
}
