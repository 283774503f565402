// Package scheduler drives the periodic crawl cycle and the
// notification match worker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"golang.org/x/sync/errgroup"

	"github.com/uniscope/uniscope/pkg/domain"
)

// Crawler runs traversals, the crawl runner implements it
type Crawler interface {
	Run(ctx context.Context, source string) (domain.RunResult, error)
	Sources() []string
}

// Notifier handles one newly ingested record, the dispatcher implements it
type Notifier interface {
	ProcessRecord(ctx context.Context, newsID int64) error
}

// Config holds scheduler configuration
type Config struct {
	CrawlInterval time.Duration
	RunTimeout    time.Duration
	MaxWorkers    int
	Retries       int
	RetryDelay    time.Duration
}

// Scheduler runs every source on a fixed interval and consumes the
// match event stream between cycles
type Scheduler struct {
	crawler  Crawler
	notifier Notifier
	events   <-chan int64

	crawlInterval time.Duration
	runTimeout    time.Duration
	maxWorkers    int
	retries       int
	retryDelay    time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc

	lock        sync.Mutex
	lastResults map[string]domain.RunResult
}

// errRunTimeout marks a run that hit its deadline, it is never retried
var errRunTimeout = errors.New("crawl run timed out")

// NewScheduler creates a scheduler. The events channel carries ids of
// newly stored records, nil disables the match worker.
func NewScheduler(crawler Crawler, notifier Notifier, events <-chan int64, cfg Config) *Scheduler {
	if cfg.CrawlInterval == 0 {
		cfg.CrawlInterval = time.Hour
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 2
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Minute
	}

	return &Scheduler{
		crawler:       crawler,
		notifier:      notifier,
		events:        events,
		crawlInterval: cfg.CrawlInterval,
		runTimeout:    cfg.RunTimeout,
		maxWorkers:    cfg.MaxWorkers,
		retries:       cfg.Retries,
		retryDelay:    cfg.RetryDelay,
		lastResults:   make(map[string]domain.RunResult),
	}
}

// Start begins the crawl and match workers
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.crawlWorker(ctx)

	if s.notifier != nil && s.events != nil {
		s.wg.Add(1)
		go s.matchWorker(ctx)
	}

	lgr.Printf("[INFO] scheduler started, crawl interval %v, run timeout %v, %d workers",
		s.crawlInterval, s.runTimeout, s.maxWorkers)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// Sources lists the registered source names
func (s *Scheduler) Sources() []string {
	return s.crawler.Sources()
}

// CrawlNow runs one source immediately, bypassing the interval but
// keeping the per-run timeout. Used by the trigger endpoint and the
// one-shot CLI mode.
func (s *Scheduler) CrawlNow(ctx context.Context, source string) (domain.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	result, err := s.crawler.Run(runCtx, source)
	s.recordResult(result)
	return result, err
}

// LastResults returns a copy of the most recent run result per source
func (s *Scheduler) LastResults() map[string]domain.RunResult {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make(map[string]domain.RunResult, len(s.lastResults))
	for k, v := range s.lastResults {
		out[k] = v
	}
	return out
}

// crawlWorker runs a full cycle on start and then on every tick
func (s *Scheduler) crawlWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.crawlInterval)
	defer ticker.Stop()

	s.crawlAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.crawlAll(ctx)
		}
	}
}

// crawlAll runs every source through a bounded worker pool. One failed
// source never blocks the others, each goroutine swallows its error
// after logging.
func (s *Scheduler) crawlAll(ctx context.Context) {
	sources := s.crawler.Sources()
	lgr.Printf("[INFO] crawl cycle started for %d sources", len(sources))
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for _, source := range sources {
		g.Go(func() error {
			if err := s.runSource(gctx, source); err != nil {
				lgr.Printf("[ERROR] source %s failed: %v", source, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		lgr.Printf("[ERROR] crawl cycle error: %v", err)
	}
	lgr.Printf("[INFO] crawl cycle completed in %v", time.Since(started).Round(time.Second))
}

// runSource executes one source with retries. A timeout outcome is
// terminal, retrying a run that already burned its full budget would
// just burn another.
func (s *Scheduler) runSource(ctx context.Context, source string) error {
	retrier := repeater.NewBackoff(s.retries, s.retryDelay, repeater.WithMaxDelay(s.retryDelay))

	return retrier.Do(ctx, func() error {
		runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
		defer cancel()

		result, err := s.crawler.Run(runCtx, source)
		s.recordResult(result)

		if result.Status == domain.RunTimeout {
			return fmt.Errorf("source %s: %w", source, errRunTimeout)
		}
		if err != nil {
			return fmt.Errorf("source %s: %w", source, err)
		}

		lgr.Printf("[INFO] source %s done: %d processed, %d skipped in %v",
			source, result.Processed, result.Skipped, result.Duration.Round(time.Millisecond))
		return nil
	}, errRunTimeout)
}

func (s *Scheduler) recordResult(result domain.RunResult) {
	if result.Source == "" {
		return
	}
	s.lock.Lock()
	s.lastResults[result.Source] = result
	s.lock.Unlock()
}

// matchWorker consumes ids of newly stored records and runs the
// keyword matching pipeline for each
func (s *Scheduler) matchWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.events:
			if !ok {
				return
			}
			if err := s.notifier.ProcessRecord(ctx, id); err != nil {
				lgr.Printf("[ERROR] failed to process record %d: %v", id, err)
			}
		}
	}
}
