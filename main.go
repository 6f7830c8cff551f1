package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raushankrgupta/price-tracker/api"
	"github.com/raushankrgupta/price-tracker/archive"
	"github.com/raushankrgupta/price-tracker/config"
	"github.com/raushankrgupta/price-tracker/notifier"
	"github.com/raushankrgupta/price-tracker/scrapers"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
	"github.com/raushankrgupta/price-tracker/scrapers/gemini"
	"github.com/raushankrgupta/price-tracker/store/mongo"
	"github.com/raushankrgupta/price-tracker/store/sqlite"
	"github.com/raushankrgupta/price-tracker/tracker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	db, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}

	scraper, err := newScraper(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build scraper: %v", err)
	}

	notify, err := newNotifier(cfg)
	if err != nil {
		log.Fatalf("Failed to build notifier: %v", err)
	}

	// A nil *S3Archive must not reach the sweeper as a non-nil interface
	var archiver tracker.Archiver
	if cfg.ArchiveBucket != "" {
		s3Archive, err := archive.NewS3Archive(ctx, cfg.AWSRegion, cfg.ArchiveBucket, "")
		if err != nil {
			log.Fatalf("Failed to initialize archive: %v", err)
		}
		archiver = s3Archive
	}

	settings := cfg.TrackerSettings()
	checker := tracker.NewChecker(db, scraper, notify, settings)
	sweeper := tracker.NewSweeper(db, archiver, settings)
	scheduler := tracker.NewScheduler(db, checker, sweeper, settings)
	scheduler.Start()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(scheduler, scraper),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		fmt.Printf("Server starting on port %s...\n", cfg.Port)
		fmt.Printf("Usage: curl \"http://localhost:%s/scrape?url=<product_url>\"\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	// In-flight checks finish and persist before the browser and store go away
	scheduler.Stop()
	scheduler.Wait()
	scraper.Close()
	if err := closeStore(); err != nil {
		log.Printf("Store close: %v", err)
	}
	log.Println("Shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (tracker.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return db, func() error { return db.Close(context.Background()) }, nil
	}
}

func newScraper(ctx context.Context, cfg *config.Config) (*scrapers.Scraper, error) {
	engine := base.NewBaseScraper()
	if cfg.ChromeEnabled {
		engine.Browser = base.NewBrowser(cfg.ChromePath)
	}
	if cfg.SeleniumURL != "" || cfg.ChromeDriverPath != "" {
		engine.Selenium = base.NewSelenium(cfg.SeleniumURL, cfg.ChromeDriverPath, cfg.SeleniumPort)
	}

	opts := scrapers.Options{RatePerSecond: cfg.HostRatePerSec, Burst: cfg.HostBurst}
	if cfg.GeminiAPIKey != "" {
		extractor, err := gemini.NewExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		opts.Fallback = extractor
	}
	return scrapers.NewScraper(engine, scrapers.DefaultRegistry(), opts), nil
}

func newNotifier(cfg *config.Config) (*notifier.Service, error) {
	var email *notifier.EmailSender
	if cfg.SendGridAPIKey != "" {
		sender, err := notifier.NewEmailSender(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFromAddress)
		if err != nil {
			return nil, err
		}
		email = sender
	} else {
		log.Println("[Notifier] SENDGRID_API_KEY not set, email alerts disabled")
	}

	var telegram *notifier.TelegramSender
	if cfg.TelegramBotToken != "" {
		sender, err := notifier.NewTelegramSender(cfg.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		telegram = sender
	} else {
		log.Println("[Notifier] TELEGRAM_BOT_TOKEN not set, messaging alerts disabled")
	}
	return notifier.NewService(email, telegram), nil
}
