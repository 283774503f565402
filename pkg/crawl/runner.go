package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/uniscope/uniscope/pkg/domain"
)

// Source is one crawlable site. Seeds returns the traversal roots,
// ParseListing extracts further requests (article links, pagination,
// sub-department roots) and, for sources whose listing page is itself
// the content (meeting schedules), ready records. ParseArticle produces
// zero or one record from an article page; ok=false means the page had
// insufficient data and is skipped.
type Source interface {
	Name() string
	Seeds() []Request
	ParseListing(p *Page) (next []Request, records []*domain.Record)
	ParseArticle(p *Page) (rec *domain.Record, ok bool)
}

// Sink receives finalized records; the delivery client implements it
type Sink interface {
	Deliver(ctx context.Context, rec *domain.Record) (DeliveryStatus, error)
}

// DeliveryStatus classifies the storage API response for one record
type DeliveryStatus int

// delivery outcomes; duplicate is an expected skip, not a failure
const (
	Delivered DeliveryStatus = iota
	Duplicate
	Rejected
)

// Runner walks a source's navigational structure breadth-first. All
// traversal state (the visited set, the queue) is scoped to a single
// Run call and discarded when it returns; the storage layer stays the
// only durable dedup authority.
type Runner struct {
	fetcher *Fetcher
	sink    Sink
	sources map[string]Source
}

// NewRunner creates a traversal runner over the given source registry
func NewRunner(fetcher *Fetcher, sink Sink, sources []Source) *Runner {
	reg := make(map[string]Source, len(sources))
	for _, s := range sources {
		reg[s.Name()] = s
	}
	return &Runner{fetcher: fetcher, sink: sink, sources: reg}
}

// Sources lists registered source names
func (r *Runner) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// Run executes one full traversal for the named source. Page-level
// failures are logged and skipped; only a canceled or expired context
// aborts the run. The returned result always carries the duration and
// the processed/skipped counters accumulated so far.
func (r *Runner) Run(ctx context.Context, source string) (domain.RunResult, error) {
	src, ok := r.sources[source]
	if !ok {
		return domain.RunResult{Source: source, Status: domain.RunFailed},
			fmt.Errorf("unknown source %q", source)
	}

	started := time.Now()
	res := domain.RunResult{Source: source, Status: domain.RunRunning}

	visited := make(map[string]struct{})
	queue := make([]Request, 0, 64)

	schedule := func(reqs []Request) {
		for _, req := range reqs {
			if req.URL == "" {
				continue
			}
			if _, seen := visited[req.URL]; seen {
				continue
			}
			visited[req.URL] = struct{}{}
			queue = append(queue, req)
		}
	}

	schedule(src.Seeds())

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(started)
			res.Status = domain.RunTimeout
			return res, fmt.Errorf("run aborted: %w", err)
		}

		req := queue[0]
		queue = queue[1:]

		page, err := r.fetcher.Fetch(ctx, req.URL, req.Meta)
		if err != nil {
			if ctx.Err() != nil {
				res.Duration = time.Since(started)
				res.Status = domain.RunTimeout
				return res, fmt.Errorf("run aborted: %w", ctx.Err())
			}
			lgr.Printf("[WARN] %s: failed to fetch %s: %v", source, req.URL, err)
			continue
		}

		switch req.Kind {
		case KindListing:
			next, records := src.ParseListing(page)
			schedule(next)
			for _, rec := range records {
				r.deliver(ctx, source, rec, &res)
			}
		case KindArticle:
			rec, ok := src.ParseArticle(page)
			if !ok {
				lgr.Printf("[DEBUG] %s: insufficient data, skipping %s", source, req.URL)
				res.Skipped++
				continue
			}
			r.deliver(ctx, source, rec, &res)
		}
	}

	res.Duration = time.Since(started)
	res.Status = domain.RunSuccess
	lgr.Printf("[INFO] %s: run completed in %v, %d records delivered, %d skipped",
		source, res.Duration.Round(time.Millisecond), res.Processed, res.Skipped)
	return res, nil
}

// deliver finalizes and ships one record; delivery failures never abort
// the traversal
func (r *Runner) deliver(ctx context.Context, source string, rec *domain.Record, res *domain.RunResult) {
	rec.Finalize()

	status, err := r.sink.Deliver(ctx, rec)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return // the run-level check will report the timeout
		}
		lgr.Printf("[ERROR] %s: failed to deliver %q (%s): %v", source, rec.Title, rec.SourceURL, err)
		res.Skipped++
		return
	}

	switch status {
	case Delivered:
		res.Processed++
	case Duplicate:
		lgr.Printf("[DEBUG] %s: duplicate content skipped: %q", source, rec.Title)
		res.Skipped++
	case Rejected:
		res.Skipped++
	}
}
