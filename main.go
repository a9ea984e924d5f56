package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing_scrooper/api"
	"listing_scrooper/config"
	"listing_scrooper/fetcher"
	"listing_scrooper/httputil"
	"listing_scrooper/llm"
	"listing_scrooper/logging"
	"listing_scrooper/models"
	"listing_scrooper/scheduler"
	"listing_scrooper/scraper"
	"listing_scrooper/search"
	"listing_scrooper/services"
	"listing_scrooper/storage"
	"listing_scrooper/workers"
)

var (
	extractURL = flag.String("url", "", "Extract one listing URL, print the record as JSON and exit")
	withReport = flag.Bool("report", false, "With -url, print the full result including the layer report")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if *extractURL == "" {
		logFile, err := logging.Setup(cfg.LogFile)
		if err != nil {
			log.Printf("Warning: could not set up file logging: %v", err)
		} else {
			defer logFile.Close()
		}
	}

	log.Println("Starting listing_scrooper...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for _, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, site.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build extraction pipeline: %v", err)
	}

	deps, closeStores := openStores(ctx, cfg)
	defer closeStores()

	svc := services.NewIntakeService(orchestrator, deps)

	if *extractURL != "" {
		code := runOnce(ctx, svc, *extractURL)
		closeStores()
		os.Exit(code)
	}

	// Daemon mode
	var sched *scheduler.Scheduler
	if deps.Queue != nil {
		worker := workers.NewIntakeWorker(deps.Queue, svc)
		if runs, ok := deps.Runs.(*storage.SQLiteStore); ok {
			worker.SetLogger(func(level models.LogLevel, layer, message string) {
				if err := runs.Log(nil, level, layer, message); err != nil {
					log.Printf("Failed to write worker log: %v", err)
				}
			})
		}
		sched = scheduler.New(cfg.Scheduler, worker)
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	routerDeps := api.Deps{
		Intake:         svc,
		RateLimit:      cfg.HTTP.RateLimit,
		ExtractTimeout: 3 * time.Minute,
	}
	if sched != nil {
		routerDeps.Trigger = sched
	}
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(routerDeps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	cancel()
	if sched != nil {
		sched.Stop()
	}
	log.Println("Goodbye!")
}

func buildOrchestrator(ctx context.Context, cfg *config.Config) (*scraper.Orchestrator, error) {
	clients := httputil.NewClients(&cfg.Proxy, &cfg.Fetch)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	detector := fetcher.NewDetector(cfg.Fetch.MinContentLength)
	fetchers := []fetcher.Fetcher{fetcher.NewDirectFetcher(clients.Scraping, detector)}
	if cfg.Fetch.BrowserEnabled {
		fetchers = append(fetchers, fetcher.NewBrowserFetcher(fetcher.BrowserConfig{
			Timeout:  cfg.Fetch.BrowserTimeout,
			Headless: cfg.Fetch.BrowserHeadless,
			Scroll:   cfg.Fetch.BrowserScroll,
			ProxyURL: cfg.Proxy.URL,
		}, detector))
	}

	searchClient := search.NewSerpAPIClient(cfg.Search.APIKey, cfg.Search.Endpoint, cfg.Search.Timeout, cfg.Search.RPS)
	resolver := search.NewResolver(searchClient, cfg.Sites)

	available := []scraper.Strategy{scraper.NewSiteStrategy(cfg.Sites)}
	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	if model != nil {
		available = append(available, scraper.NewModelStrategy(model, cfg.LLM.MaxChars))
	}
	strategies := scraper.NewStrategies(cfg.Extraction.Order, available...)
	for _, s := range strategies {
		log.Printf("Extraction layer: %s", s.Name())
	}

	return scraper.NewOrchestrator(fetcher.NewChainFetcher(fetchers...), strategies, resolver), nil
}

// openStores connects every configured store. A store that is not
// configured or cannot be reached is left out of the returned deps.
func openStores(ctx context.Context, cfg *config.Config) (services.Deps, func()) {
	var deps services.Deps
	var closers []func()

	if cfg.Storage.DBPath != "" {
		sqliteStore, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			log.Printf("Warning: SQLite unavailable, runs and queue disabled: %v", err)
		} else {
			deps.Runs = sqliteStore
			deps.Queue = sqliteStore
			closers = append(closers, func() { sqliteStore.Close() })
			log.Printf("SQLite database: %s", cfg.Storage.DBPath)
		}
	}

	if cfg.Storage.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Postgres unavailable, drafts disabled: %v", err)
		} else {
			deps.Drafts = pgStore
			closers = append(closers, pgStore.Close)
			log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Storage.DatabaseURL))
		}
	}

	if cfg.Storage.RedisAddr != "" {
		cache, err := storage.NewRedisCache(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPass, cfg.Cache.TTL, cfg.Cache.NegativeTTL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, cache disabled: %v", err)
		} else {
			deps.Cache = cache
			closers = append(closers, func() { cache.Close() })
			log.Printf("Redis cache: %s (ttl %s)", cfg.Storage.RedisAddr, cfg.Cache.TTL)
		}
	}

	if cfg.Storage.S3.Bucket != "" {
		archive, err := storage.NewS3Archive(ctx, cfg.Storage.S3)
		if err != nil {
			log.Printf("Warning: S3 unavailable, snapshots disabled: %v", err)
		} else {
			deps.Archive = archive
			log.Printf("Snapshot bucket: %s", cfg.Storage.S3.Bucket)
		}
	}

	return deps, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func runOnce(ctx context.Context, svc *services.IntakeService, rawURL string) int {
	res, err := svc.Extract(ctx, rawURL)
	if err != nil && (res == nil || res.Record == nil) {
		log.Printf("Extraction failed: %v", err)
		return 1
	}

	var out any = res.Record
	if *withReport {
		out = res
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		log.Printf("Failed to encode result: %v", encErr)
		return 1
	}
	if err != nil {
		log.Printf("Extraction incomplete: %v", err)
		return 1
	}
	if res.Miss || (res.Report != nil && res.Report.State == models.StateFailed) {
		return 1
	}
	return 0
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
