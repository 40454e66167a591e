package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmcdole/gofeed"

	"newslingo/internal/api"
	"newslingo/internal/cache"
	"newslingo/internal/config"
	"newslingo/internal/ingest"
	"newslingo/internal/keylock"
	"newslingo/internal/language"
	"newslingo/internal/poller"
	"newslingo/internal/publisher"
	"newslingo/internal/storage"
	"newslingo/internal/translator"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	// Initialize cache for hot article listings
	cacheManager := cache.NewManager(cfg.CacheTTL)

	// Initialize persistent storage
	store, err := storage.NewStorage(cfg.DataDir)
	if err != nil {
		log.Fatal("Failed to initialize storage: ", err)
	}
	defer store.Close()

	// Report link integrity at startup
	if report, err := store.LinkIntegrity(context.Background()); err != nil {
		log.Printf("Warning: integrity check failed: %v", err)
	} else {
		log.Printf("Storage ready: %d articles, %d with empty links", report.TotalArticles, report.EmptyLinks)
	}

	// Initialize the translation client when a key is configured
	var trans translator.Translator
	service := cfg.Translation.Service
	if cfg.Translation.APIKey != "" {
		client, err := translator.NewOpenAIClient(cfg.Translation)
		if err != nil {
			log.Fatal("Failed to initialize translator: ", err)
		}
		trans = client
		service = client.Service()
		log.Printf("Translation enabled via %s (%s)", service, cfg.Translation.Model)
	} else {
		log.Println("Translation disabled: no API key configured")
	}

	// Initialize the optional article publisher
	var pub ingest.Publisher
	if cfg.Publisher.URL != "" {
		amqpPub, err := publisher.NewAMQPPublisher(cfg.Publisher)
		if err != nil {
			log.Fatal("Failed to connect to message broker: ", err)
		}
		defer amqpPub.Close()
		pub = amqpPub
	}

	// Wire the ingestion pipeline and run coordinator
	pipeline := ingest.NewPipeline(store, keylock.New(), trans, service, pub)
	coordinator := ingest.NewCoordinator(store, gofeed.NewParser(), pipeline, trans, service, ingest.Options{
		Feeds:            cfg.Feeds,
		FetchConcurrency: cfg.FetchConcurrency,
		ItemDelay:        cfg.ItemDelay,
		FeedDelay:        cfg.FeedDelay,
	})

	// Start the scheduler: immediate first fetch plus periodic runs.
	// TranslateOnFetch only shapes scheduled runs; manual triggers pick
	// their own mode per request.
	backgroundPoller := poller.New(coordinator, store, cacheManager, cfg.FetchInterval, cfg.CleanupInterval)
	backgroundPoller.SetTranslationEnabled(cfg.TranslateOnFetch)
	backgroundPoller.Start()

	// Initialize API server
	server := api.NewServer(store, coordinator, backgroundPoller, cacheManager, language.NewDetector(), cfg)

	log.Printf("Starting newslingo server on port %d", cfg.Port)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Feeds: %d configured", len(cfg.Feeds))
	log.Printf("Fetch interval: %v", cfg.FetchInterval)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, stopping services...")
		backgroundPoller.Stop()
		cancel()
	}()

	if err := server.StartWithContext(ctx); err != nil && err != context.Canceled {
		log.Fatal("Failed to start server: ", err)
	}
}
