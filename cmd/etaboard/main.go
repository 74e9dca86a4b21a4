package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/catalog"
	"github.com/pannnnl/hkbus-eta/internal/config"
	"github.com/pannnnl/hkbus-eta/internal/db"
	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/fetch"
	"github.com/pannnnl/hkbus-eta/internal/handlers"
	"github.com/pannnnl/hkbus-eta/internal/source"
	"github.com/pannnnl/hkbus-eta/internal/source/ctb"
	"github.com/pannnnl/hkbus-eta/internal/source/kmb"
	"github.com/pannnnl/hkbus-eta/internal/stops"
)

func main() {
	log.Println("Starting ETA board service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded: poll_interval=%v, tick=%v, fetch=%dx/%v/%v",
		cfg.PollInterval, cfg.TickInterval, cfg.FetchMaxAttempts, cfg.FetchBackoff, cfg.FetchTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Poll history store (optional)
	// ═══════════════════════════════════════════════════════
	var store db.Store
	if cfg.HistoryEnabled {
		store, err = db.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
		if err != nil {
			log.Printf("Warning: poll history disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Operator adapters
	// ═══════════════════════════════════════════════════════
	client := fetch.NewClient(nil, fetch.Options{
		MaxAttempts: cfg.FetchMaxAttempts,
		Backoff:     cfg.FetchBackoff,
		Timeout:     cfg.FetchTimeout,
	})
	registry := source.NewRegistry(
		kmb.New(client, cfg.KMBBaseURL),
		ctb.New(client, cfg.CTBBaseURL, cfg.CTBOperatorTag),
	)

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Catalog (built in the background; searches
	// return "still loading" until it is ready)
	// ═══════════════════════════════════════════════════════
	cat := catalog.New()
	builder := catalog.NewBuilder(registry, cat)
	go func() {
		if err := builder.Build(ctx); err != nil {
			log.Printf("Catalog build failed: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 4: ETA board and HTTP API
	// ═══════════════════════════════════════════════════════
	opts := eta.Options{PollInterval: cfg.PollInterval, TickInterval: cfg.TickInterval}
	var history handlers.HistoryRepository
	if store != nil {
		opts.Recorder = store
		history = store
	}
	board := eta.New(registry, opts)

	hub := handlers.NewStreamHub(board)
	go hub.Run(ctx)

	router := handlers.NewRouter(
		handlers.NewRouteHandler(cat, builder, stops.NewLoader(registry, cat, cfg.StopFetchConcurrency)),
		handlers.NewETAHandler(board, cat, history),
		hub,
		cfg.AllowedOrigins,
	)

	if store != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := store.Cleanup(ctx, cfg.HistoryRetention); err != nil {
						log.Printf("Cleanup error: %v", err)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// cancelling ctx ends open SSE streams so Shutdown can drain
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Printf("ETA board listening on :%s", cfg.Port)
		log.Printf("Endpoints:")
		log.Printf("  GET    /health")
		log.Printf("  GET    /api/routes?q={route}")
		log.Printf("  POST   /api/catalog/reload")
		log.Printf("  GET    /api/routes/{operator}/{route}/{variant}/{direction}/stops")
		log.Printf("  POST   /api/eta/{operator}/{route}/{variant}/{direction}/{stopId}  (expand)")
		log.Printf("  DELETE /api/eta/{operator}/{route}/{variant}/{direction}/{stopId}  (collapse)")
		log.Printf("  GET    /api/eta, /api/eta/stream, /api/eta/feed")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	board.Close()
	log.Println("Goodbye!")
}
