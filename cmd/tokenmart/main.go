package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"tokenmart/internal/api"
	"tokenmart/internal/config"
	"tokenmart/internal/exchange"
	"tokenmart/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	staticDir := flag.String("static", "", "directory of frontend assets to serve (overrides config)")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (overrides config)")
	refSymbol := flag.String("ref-symbol", "", "reference token symbol (overrides config)")
	startingGrant := flag.String("grant", "", "starting grant for new users (overrides config)")
	rateLimit := flag.Int("rate-limit", 0, "requests per window per client (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Server.AllowedOrigins = origins
		log.Printf("CORS restricted to: %v", origins)
	}
	if *refSymbol != "" {
		cfg.Ledger.ReferenceSymbol = strings.ToUpper(strings.TrimSpace(*refSymbol))
	}
	if *startingGrant != "" {
		cfg.Ledger.StartingGrant = *startingGrant
	}
	if *rateLimit > 0 {
		cfg.Server.RateLimit = *rateLimit
	}

	grant, err := decimal.NewFromString(cfg.Ledger.StartingGrant)
	if err != nil {
		log.Fatalf("Invalid starting grant: %v", err)
	}

	// Initialize SQLite store
	st, err := store.New(cfg.Database.Path, store.Config{
		ReferenceSymbol: cfg.Ledger.ReferenceSymbol,
		ReferenceName:   cfg.Ledger.ReferenceName,
		StartingGrant:   grant,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	engine := exchange.New(st)

	server := api.NewServer(st, engine, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateWindow:     time.Duration(cfg.Server.RateWindowSec) * time.Second,
		StaticDir:      cfg.Server.StaticDir,
		ChartPoints:    cfg.Market.ChartPoints,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting tokenmart server on %s", cfg.Server.Addr)
		log.Printf("Database: %s", cfg.Database.Path)
		log.Printf("Reference token: %s (%s), welcome grant %s",
			cfg.Ledger.ReferenceSymbol, cfg.Ledger.ReferenceName, grant)
		if cfg.Server.StaticDir != "" {
			log.Printf("Serving frontend from %s", cfg.Server.StaticDir)
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop server internal goroutines (sessions, rate limiter, hub)
	server.Shutdown()
	log.Println("Server internal goroutines stopped")

	// Graceful HTTP shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	// Close database
	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Database closed")

	log.Println("Server shutdown complete")
}
