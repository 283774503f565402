package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniscope/uniscope/pkg/crawl"
)

func TestAll(t *testing.T) {
	sources := All()
	require.Len(t, sources, 5)

	names := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		names[src.Name()] = struct{}{}
		assert.NotEmpty(t, src.Seeds(), "%s must have seeds", src.Name())
	}

	for _, want := range []string{"news_portal", "regulations", "oa_documents", "youth_league", "weekly_meeting"} {
		assert.Contains(t, names, want)
	}
}

func TestFindNextLink(t *testing.T) {
	t.Run("class based", func(t *testing.T) {
		page := makePage(t, "http://site.local/list/", `<a class="next" href="index_2.shtml">更多</a>`, crawl.Meta{})
		assert.Equal(t, "http://site.local/list/index_2.shtml", findNextLink(page))
	})

	t.Run("label based", func(t *testing.T) {
		page := makePage(t, "http://site.local/list/", `<a href="a.shtml">文章</a><a href="index_2.shtml">下一页</a>`, crawl.Meta{})
		assert.Equal(t, "http://site.local/list/index_2.shtml", findNextLink(page))
	})

	t.Run("none", func(t *testing.T) {
		page := makePage(t, "http://site.local/list/", `<a href="a.shtml">文章</a>`, crawl.Meta{})
		assert.Empty(t, findNextLink(page))
	})

	t.Run("javascript label link skipped", func(t *testing.T) {
		page := makePage(t, "http://site.local/list/", `<a href="javascript:goPage(2)">下一页</a>`, crawl.Meta{})
		assert.Empty(t, findNextLink(page))
	})
}
