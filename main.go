package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/browser"
	"sip/scraperworker/internal/ingest"
	"sip/scraperworker/internal/scrape"
	"sip/scraperworker/logger"
	"sip/scraperworker/server"
	"sip/scraperworker/services/cache"
	"sip/scraperworker/services/proxy"
	"sip/scraperworker/services/publisher"
	"sip/scraperworker/services/queue"
	"sip/scraperworker/services/store"
	"sip/scraperworker/services/worker"
)

func main() {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	logger.Init()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobQueue := queue.NewRedisQueue(cfg.RedisAddr, cfg.RedisDB, cfg.QueuePrefix)
	defer jobQueue.Close()
	if err := jobQueue.Ping(ctx); err != nil {
		logger.Fatal("Redis is unreachable at %s: %v", cfg.RedisAddr, err)
	}

	recordStore, err := store.NewSQLiteStore(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Failed to open record store: %v", err)
	}
	defer recordStore.Close()

	blockCache := cache.NewMemcacheService(cfg.MemcacheAddr)
	events := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.EventStream)
	defer events.Close()

	// Pick a public SOCKS5 proxy when none is configured explicitly.
	if cfg.ProxyURL == "" && cfg.ProxyAuto {
		pool := proxy.NewPool()
		if err := pool.Refresh(); err != nil {
			logger.Warn("Proxy pool unavailable, continuing without proxy: %v", err)
		} else if fastest, err := pool.Fastest(); err == nil {
			cfg.ProxyURL = fastest.URL()
			logger.Info("Routing browser traffic through %s", cfg.ProxyURL)
		}
	}

	browserMgr := browser.NewManager(cfg)
	defer browserMgr.Close()

	scraper := scrape.NewScraper(cfg, browserMgr, blockCache)
	engine := ingest.NewEngine(recordStore)

	pool := worker.NewPool(cfg, jobQueue, scraper, engine, events)
	pool.Start(ctx)

	srv := server.New(cfg, engine)
	go func() {
		if err := srv.Listen(); err != nil {
			logger.Error("HTTP server stopped: %v", err)
			cancel()
		}
	}()

	logger.Info("Scrape worker started (environment: %s)", cfg.Environment)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, shutting down", sig)
	case <-ctx.Done():
	}

	cancel()
	if err := srv.Shutdown(); err != nil {
		logger.Error("HTTP server shutdown: %v", err)
	}
	pool.Wait()
	logger.Info("Shutdown complete")
}
