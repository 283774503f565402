package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/uniscope/uniscope/pkg/config"
	"github.com/uniscope/uniscope/pkg/crawl"
	"github.com/uniscope/uniscope/pkg/deliver"
	"github.com/uniscope/uniscope/pkg/domain"
	"github.com/uniscope/uniscope/pkg/notify"
	"github.com/uniscope/uniscope/pkg/repository"
	"github.com/uniscope/uniscope/pkg/scheduler"
	"github.com/uniscope/uniscope/pkg/sources"
	"github.com/uniscope/uniscope/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Crawl  string `long:"crawl" description:"run a single source once and exit"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLog(opts.Debug, cfg.Email.Password)
	log.Printf("[INFO] starting uniscope version %s", revision)

	// one-shot mode posts to an already running storage API and exits
	if opts.Crawl != "" {
		return crawlOnce(ctx, cfg, opts.Crawl)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			log.Printf("[WARN] failed to close storage: %v", err)
		}
	}()

	events := make(chan int64, cfg.Crawl.EventBuffer)
	client := deliver.New(cfg.API.BaseURL, cfg.API.Timeout, events)
	runner := makeRunner(cfg, client)

	var notifier scheduler.Notifier
	if cfg.Email.Enabled {
		sender := notify.NewSender(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			STARTTLS: cfg.Email.STARTTLS,
			TLS:      cfg.Email.TLS,
			Timeout:  cfg.Email.Timeout,
		})
		from := fmt.Sprintf("%s <%s>", cfg.Email.FromName, cfg.Email.From)
		notifier = notify.NewDispatcher(client, sender, from, cfg.Server.BaseURL)
	} else {
		log.Print("[WARN] email notifications disabled, matched records will not be sent")
	}

	sched := scheduler.NewScheduler(runner, notifier, events, scheduler.Config{
		CrawlInterval: cfg.Crawl.Interval,
		RunTimeout:    cfg.Crawl.RunTimeout,
		MaxWorkers:    cfg.Crawl.MaxWorkers,
		Retries:       cfg.Crawl.Retries,
		RetryDelay:    cfg.Crawl.RetryDelay,
	})

	srv := server.New(cfg, server.NewStoreAdapter(repos), sched, revision, opts.Debug)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		sched.Start(gctx)
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service failed: %w", err)
	}
	return nil
}

// crawlOnce runs a single source against the configured storage API
// and prints the run result as JSON
func crawlOnce(ctx context.Context, cfg *config.Config, source string) error {
	client := deliver.New(cfg.API.BaseURL, cfg.API.Timeout, nil)
	runner := makeRunner(cfg, client)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Crawl.RunTimeout)
	defer cancel()

	result, runErr := runner.Run(runCtx, source)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))

	if runErr != nil {
		return fmt.Errorf("crawl %s: %w", source, runErr)
	}
	if result.Status != domain.RunSuccess {
		return fmt.Errorf("crawl %s finished with status %s", source, result.Status)
	}
	return nil
}

func makeRunner(cfg *config.Config, sink crawl.Sink) *crawl.Runner {
	fetcher := crawl.NewFetcher(cfg.Crawl.FetchTimeout, cfg.Crawl.UserAgent)
	return crawl.NewRunner(fetcher, sink, sources.All())
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var filtered []string
	for _, s := range secs {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) > 0 {
		logOpts = append(logOpts, lgr.Secret(filtered...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
