package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestFetcher_Fetch(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>测试页面</title></head><body><div class="content"><p>正文</p></div></body></html>`))
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, "uniscope-test/1.0")
	page, err := f.Fetch(context.Background(), ts.URL+"/index.shtml", Meta{Category: "测试"})
	require.NoError(t, err)

	assert.Equal(t, "uniscope-test/1.0", gotUA)
	assert.Equal(t, "测试页面", page.Doc.Find("title").Text())
	assert.Equal(t, "测试", page.Meta.Category)
	assert.Contains(t, page.Body, "正文")
}

func TestFetcher_Fetch_GBK(t *testing.T) {
	// university sites commonly serve GBK, the fetcher must hand
	// extractors UTF-8
	raw, err := simplifiedchinese.GBK.NewEncoder().Bytes(
		[]byte(`<html><head><title>武汉理工大学新闻</title></head><body>通知公告</body></html>`))
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		w.Write(raw)
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, "uniscope-test/1.0")
	page, err := f.Fetch(context.Background(), ts.URL, Meta{})
	require.NoError(t, err)

	assert.Equal(t, "武汉理工大学新闻", page.Doc.Find("title").Text())
	assert.Contains(t, page.Body, "通知公告")
}

func TestFetcher_Fetch_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, "uniscope-test/1.0")

	t.Run("non-200 status", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), ts.URL+"/missing.shtml", Meta{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "not-a-url", Meta{})
		require.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, ts.URL, Meta{})
		require.Error(t, err)
	})
}

func TestFetcher_Fetch_Redirect(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new/location.shtml", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte(`<html><body><a href="rel.shtml">link</a></body></html>`))
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, "uniscope-test/1.0")
	page, err := f.Fetch(context.Background(), ts.URL+"/old", Meta{})
	require.NoError(t, err)

	// relative links resolve against the post-redirect URL
	href, _ := page.Doc.Find("a").Attr("href")
	assert.Equal(t, ts.URL+"/new/rel.shtml", page.Resolve(href))
}
