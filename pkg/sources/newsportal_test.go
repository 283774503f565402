package sources

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniscope/uniscope/pkg/crawl"
)

func makePage(t *testing.T, pageURL, body string, meta crawl.Meta) *crawl.Page {
	t.Helper()
	u, err := url.Parse(pageURL)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return &crawl.Page{URL: u, Doc: doc, Body: body, Meta: meta}
}

func findRequest(reqs []crawl.Request, urlPart string) (crawl.Request, bool) {
	for _, req := range reqs {
		if strings.Contains(req.URL, urlPart) {
			return req, true
		}
	}
	return crawl.Request{}, false
}

func TestNewsPortal_Seeds(t *testing.T) {
	s := NewNewsPortal("")
	seeds := s.Seeds()
	require.Len(t, seeds, 1)
	assert.Equal(t, "https://news.whut.edu.cn/", seeds[0].URL)
	assert.Equal(t, crawl.KindListing, seeds[0].Kind)

	// trailing slash on the override is normalized
	s = NewNewsPortal("http://test.local/")
	assert.Equal(t, "http://test.local/", s.Seeds()[0].URL)
}

func TestNewsPortal_ParseListing_Homepage(t *testing.T) {
	body := `<html><body>
		<div class="bd"><ul>
			<li><a href="/zhxw/t123_456.shtml" title="学校召开年度工作会议部署">学校召开年度工作会...</a></li>
			<li><a href="javascript:void(0)">虚链接</a></li>
			<li><a href="/xsdt/t789_012.shtml">院士学术报告会圆满举行</a></li>
		</ul></div>
	</body></html>`
	page := makePage(t, "https://news.whut.edu.cn/", body, crawl.Meta{})

	s := NewNewsPortal("")
	next, records := s.ParseListing(page)
	assert.Empty(t, records)

	// two featured articles plus nine category listings
	assert.Len(t, next, 2+len(portalCategories))

	art, ok := findRequest(next, "t123_456.shtml")
	require.True(t, ok)
	assert.Equal(t, crawl.KindArticle, art.Kind)
	assert.Equal(t, "综合新闻", art.Meta.Category)

	cat, ok := findRequest(next, "/tzgg/")
	require.True(t, ok)
	assert.Equal(t, crawl.KindListing, cat.Kind)
	assert.Equal(t, "通知公告", cat.Meta.Category)
	assert.Equal(t, "tzgg", cat.Meta.CatCode)
	assert.Equal(t, 1, cat.Meta.Page)
}

func TestNewsPortal_ParseListing_Category(t *testing.T) {
	body := `<html><body>
		<ul class="news_list">
			<li><a href="t100_1.shtml" title="第一篇新闻标题很长完整版">第一篇新闻...</a><span class="date">2026-08-20</span></li>
			<li><a href="t100_2.shtml">第二篇新闻标题</a><span class="date">2026-08-19</span></li>
			<li><a href="/about.html">关于本站</a></li>
		</ul>
		<script>createPageHTML(5, 0, "index", "shtml");</script>
	</body></html>`
	meta := crawl.Meta{Category: "综合新闻", CatCode: "zhxw", Page: 1}
	page := makePage(t, "https://news.whut.edu.cn/zhxw/", body, meta)

	s := NewNewsPortal("")
	next, _ := s.ParseListing(page)

	// two articles (the non-shtml link is ignored) plus the next page
	require.Len(t, next, 3)

	first, ok := findRequest(next, "t100_1.shtml")
	require.True(t, ok)
	assert.Equal(t, "第一篇新闻标题很长完整版", first.Meta.Title, "title attribute preferred over truncated text")
	assert.Equal(t, "2026-08-20", first.Meta.DateStr)
	assert.Equal(t, "综合新闻", first.Meta.Category)

	pageReq, ok := findRequest(next, "index_1.shtml")
	require.True(t, ok)
	assert.Equal(t, crawl.KindListing, pageReq.Kind)
	assert.Equal(t, 2, pageReq.Meta.Page)
	assert.Equal(t, "https://news.whut.edu.cn/zhxw/index_1.shtml", pageReq.URL)
}

func TestNewsPortal_ParseListing_PaginationStops(t *testing.T) {
	s := NewNewsPortal("")

	t.Run("at page cap", func(t *testing.T) {
		body := `<ul><li><a href="t1_1.shtml">某篇文章标题字数够</a></li></ul>
			<script>createPageHTML(99, 4, "index", "shtml");</script>`
		meta := crawl.Meta{Category: "综合新闻", CatCode: "zhxw", Page: portalMaxPages}
		next, _ := s.ParseListing(makePage(t, "https://news.whut.edu.cn/zhxw/index_4.shtml", body, meta))
		_, found := findRequest(next, "index_5.shtml")
		assert.False(t, found)
	})

	t.Run("at last site page", func(t *testing.T) {
		body := `<ul><li><a href="t1_1.shtml">某篇文章标题字数够</a></li></ul>
			<script>createPageHTML(3, 2, "index", "shtml");</script>`
		meta := crawl.Meta{Category: "综合新闻", CatCode: "zhxw", Page: 3}
		next, _ := s.ParseListing(makePage(t, "https://news.whut.edu.cn/zhxw/index_2.shtml", body, meta))
		for _, req := range next {
			assert.Equal(t, crawl.KindArticle, req.Kind)
		}
	})

	t.Run("explicit next link fallback", func(t *testing.T) {
		body := `<ul><li><a href="t1_1.shtml">某篇文章标题字数够</a></li></ul>
			<a class="next" href="index_2.shtml">下一页</a>`
		meta := crawl.Meta{Category: "综合新闻", CatCode: "zhxw", Page: 2}
		next, _ := s.ParseListing(makePage(t, "https://news.whut.edu.cn/zhxw/index_1.shtml", body, meta))
		pageReq, found := findRequest(next, "index_2.shtml")
		require.True(t, found)
		assert.Equal(t, 3, pageReq.Meta.Page)
	})
}

func TestNewsPortal_ParseArticle(t *testing.T) {
	s := NewNewsPortal("")

	t.Run("full article", func(t *testing.T) {
		body := `<html><head><title>页面标题-武汉理工大学新闻经纬</title></head><body>
			<h1>学校召开本科教育教学工作会议</h1>
			<div class="info">作者：高翔 来源：党委宣传部</div>
			<div class="v_news_content">
				<p>八月二十九日上午，学校在会议中心召开本科教育教学工作会议。</p>
				<p>校长出席会议并讲话，相关职能部门负责人参加了会议。</p>
				<p>短</p>
				<img src="/images/photo1.jpg"><img src="/images/spacer.gif">
			</div>
		</body></html>`
		meta := crawl.Meta{Title: "学校召开本科教育教学工作会议", DateStr: "2026-08-29", Category: "综合新闻"}
		page := makePage(t, "https://news.whut.edu.cn/zhxw/t100_1.shtml", body, meta)

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		assert.Equal(t, "学校召开本科教育教学工作会议", rec.Title)
		assert.Contains(t, rec.Content, "本科教育教学工作会议")
		assert.NotContains(t, rec.Content, "短", "sub-threshold paragraphs dropped")
		assert.Equal(t, "武汉理工大学新闻网", rec.SourceName)
		assert.Equal(t, "高翔", rec.Author)
		assert.Equal(t, "党委宣传部", rec.Publisher)
		assert.Equal(t, "综合新闻", rec.Category)
		require.NotNil(t, rec.PublishedAt)
		assert.Equal(t, "2026-08-29", rec.PublishedAt.Format("2006-01-02"))
		require.Len(t, rec.Images, 1, "gif spacers excluded")
		assert.Equal(t, "https://news.whut.edu.cn/images/photo1.jpg", rec.Images[0])
		assert.Empty(t, rec.ContentHash, "hash is assigned at delivery time")
	})

	t.Run("title from page when meta too short", func(t *testing.T) {
		body := `<html><body>
			<h1>这是从正文页提取的标题</h1>
			<div class="content"><p>这篇文章的正文内容足够长可以通过提取的最低门槛。</p></div>
		</body></html>`
		page := makePage(t, "https://news.whut.edu.cn/zhxw/t1_2.shtml", body, crawl.Meta{Title: "短"})

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		assert.Equal(t, "这是从正文页提取的标题", rec.Title)
	})

	t.Run("insufficient content skipped", func(t *testing.T) {
		body := `<html><body><h1>只有标题没有实质内容</h1><div class="content"><p>太短</p></div></body></html>`
		page := makePage(t, "https://news.whut.edu.cn/zhxw/t1_3.shtml", body, crawl.Meta{})

		_, ok := s.ParseArticle(page)
		assert.False(t, ok)
	})

	t.Run("missing title skipped", func(t *testing.T) {
		body := `<html><body><div class="content">
			<p>正文内容足够长但页面没有任何标题元素可供提取使用。</p>
			<p>没有标题的记录不允许进入投递管道。</p></div></body></html>`
		page := makePage(t, "https://news.whut.edu.cn/zhxw/t1_4.shtml", body, crawl.Meta{})

		_, ok := s.ParseArticle(page)
		assert.False(t, ok)
	})

	t.Run("category derived from url", func(t *testing.T) {
		body := `<html><body><h1>学术报告会预告通知标题</h1>
			<div class="content"><p>著名学者将于下周来校作学术报告，欢迎师生参加。</p></div></body></html>`
		page := makePage(t, "https://news.whut.edu.cn/xsdt/t2_1.shtml", body, crawl.Meta{})

		rec, ok := s.ParseArticle(page)
		require.True(t, ok)
		assert.Equal(t, "学术动态", rec.Category)
	})
}
