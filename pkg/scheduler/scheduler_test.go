package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniscope/uniscope/pkg/domain"
)

// fakeCrawler returns scripted results per source and counts attempts
type fakeCrawler struct {
	lock    sync.Mutex
	results map[string]domain.RunResult
	errs    map[string]error
	calls   map[string]int
	delay   time.Duration
}

func newFakeCrawler() *fakeCrawler {
	return &fakeCrawler{
		results: map[string]domain.RunResult{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeCrawler) Run(ctx context.Context, source string) (domain.RunResult, error) {
	f.lock.Lock()
	f.calls[source]++
	result, ok := f.results[source]
	err := f.errs[source]
	delay := f.delay
	f.lock.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.RunResult{Source: source, Status: domain.RunTimeout}, ctx.Err()
		}
	}
	if !ok {
		result = domain.RunResult{Source: source, Status: domain.RunSuccess}
	}
	return result, err
}

func (f *fakeCrawler) Sources() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	sources := make([]string, 0, len(f.results))
	for name := range f.results {
		sources = append(sources, name)
	}
	return sources
}

func (f *fakeCrawler) callCount(source string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[source]
}

type fakeNotifier struct {
	lock sync.Mutex
	ids  []int64
	err  error
}

func (f *fakeNotifier) ProcessRecord(_ context.Context, newsID int64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ids = append(f.ids, newsID)
	return f.err
}

func (f *fakeNotifier) processed() []int64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]int64(nil), f.ids...)
}

func testConfig() Config {
	return Config{
		CrawlInterval: time.Hour,
		RunTimeout:    time.Second,
		MaxWorkers:    2,
		Retries:       3,
		RetryDelay:    time.Millisecond,
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(newFakeCrawler(), nil, nil, Config{})
	assert.Equal(t, time.Hour, s.crawlInterval)
	assert.Equal(t, 10*time.Minute, s.runTimeout)
	assert.Equal(t, 2, s.maxWorkers)
	assert.Equal(t, 3, s.retries)
	assert.Equal(t, 5*time.Minute, s.retryDelay)
}

func TestScheduler_CrawlNow(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["news_portal"] = domain.RunResult{Source: "news_portal", Status: domain.RunSuccess, Processed: 5}

	s := NewScheduler(crawler, nil, nil, testConfig())

	result, err := s.CrawlNow(context.Background(), "news_portal")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, result.Status)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 1, crawler.callCount("news_portal"))

	last := s.LastResults()
	require.Contains(t, last, "news_portal")
	assert.Equal(t, 5, last["news_portal"].Processed)
}

func TestScheduler_CrawlNow_Error(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["regulations"] = domain.RunResult{Source: "regulations", Status: domain.RunFailed, Error: "fetch failed"}
	crawler.errs["regulations"] = fmt.Errorf("fetch failed")

	s := NewScheduler(crawler, nil, nil, testConfig())

	result, err := s.CrawlNow(context.Background(), "regulations")
	require.Error(t, err)
	assert.Equal(t, domain.RunFailed, result.Status)
	assert.Equal(t, domain.RunFailed, s.LastResults()["regulations"].Status)
}

func TestScheduler_RunSource_RetriesFailures(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["oa_documents"] = domain.RunResult{Source: "oa_documents", Status: domain.RunFailed, Error: "boom"}
	crawler.errs["oa_documents"] = fmt.Errorf("boom")

	s := NewScheduler(crawler, nil, nil, testConfig())

	err := s.runSource(context.Background(), "oa_documents")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oa_documents")
	assert.Equal(t, 3, crawler.callCount("oa_documents"), "failed runs use every attempt")
}

func TestScheduler_RunSource_TimeoutNotRetried(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["youth_league"] = domain.RunResult{Source: "youth_league", Status: domain.RunTimeout}

	s := NewScheduler(crawler, nil, nil, testConfig())

	err := s.runSource(context.Background(), "youth_league")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRunTimeout)
	assert.Equal(t, 1, crawler.callCount("youth_league"), "timed-out run is terminal")
}

func TestScheduler_RunSource_EventualSuccess(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["weekly_meeting"] = domain.RunResult{Source: "weekly_meeting", Status: domain.RunFailed}
	crawler.errs["weekly_meeting"] = fmt.Errorf("transient")

	s := NewScheduler(crawler, nil, nil, testConfig())

	// flip to success after the first attempt
	go func() {
		for {
			if crawler.callCount("weekly_meeting") >= 1 {
				crawler.lock.Lock()
				crawler.results["weekly_meeting"] = domain.RunResult{Source: "weekly_meeting", Status: domain.RunSuccess}
				delete(crawler.errs, "weekly_meeting")
				crawler.lock.Unlock()
				return
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	require.NoError(t, s.runSource(context.Background(), "weekly_meeting"))
	assert.GreaterOrEqual(t, crawler.callCount("weekly_meeting"), 2)
	assert.Equal(t, domain.RunSuccess, s.LastResults()["weekly_meeting"].Status)
}

func TestScheduler_CrawlAll(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["a"] = domain.RunResult{Source: "a", Status: domain.RunSuccess, Processed: 1}
	crawler.results["b"] = domain.RunResult{Source: "b", Status: domain.RunSuccess, Processed: 2}
	crawler.results["c"] = domain.RunResult{Source: "c", Status: domain.RunFailed, Error: "down"}
	crawler.errs["c"] = fmt.Errorf("down")

	s := NewScheduler(crawler, nil, nil, testConfig())
	s.crawlAll(context.Background())

	last := s.LastResults()
	require.Len(t, last, 3, "failed source doesn't block the others")
	assert.Equal(t, domain.RunSuccess, last["a"].Status)
	assert.Equal(t, domain.RunSuccess, last["b"].Status)
	assert.Equal(t, domain.RunFailed, last["c"].Status)
	assert.Equal(t, 3, crawler.callCount("c"), "failed source retried within the cycle")
}

func TestScheduler_StartStop(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.results["news_portal"] = domain.RunResult{Source: "news_portal", Status: domain.RunSuccess}

	events := make(chan int64, 4)
	notifier := &fakeNotifier{}

	s := NewScheduler(crawler, notifier, events, testConfig())
	s.Start(context.Background())

	events <- 10
	events <- 11

	require.Eventually(t, func() bool {
		return len(notifier.processed()) == 2 && crawler.callCount("news_portal") >= 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.Equal(t, []int64{10, 11}, notifier.processed())
	assert.Equal(t, domain.RunSuccess, s.LastResults()["news_portal"].Status)
}

func TestScheduler_MatchWorker_ErrorDoesNotStop(t *testing.T) {
	crawler := newFakeCrawler()
	events := make(chan int64, 4)
	notifier := &fakeNotifier{err: fmt.Errorf("smtp down")}

	s := NewScheduler(crawler, notifier, events, testConfig())
	s.Start(context.Background())

	events <- 1
	events <- 2
	events <- 3

	require.Eventually(t, func() bool {
		return len(notifier.processed()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_CrawlNow_Timeout(t *testing.T) {
	crawler := newFakeCrawler()
	crawler.delay = 200 * time.Millisecond
	crawler.results["slow"] = domain.RunResult{Source: "slow", Status: domain.RunSuccess}

	cfg := testConfig()
	cfg.RunTimeout = 20 * time.Millisecond
	s := NewScheduler(crawler, nil, nil, cfg)

	result, err := s.CrawlNow(context.Background(), "slow")
	require.Error(t, err)
	assert.Equal(t, domain.RunTimeout, result.Status)
}
