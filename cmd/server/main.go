/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the coin ledger server. Handles configuration,
  dependency injection, the settlement scheduler, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load the TOML config if given
  2. Initialize SQLite item store
  3. Wire the domain services (ledger, chores, rewards, settler)
  4. Configure HTTP router and start the reset scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  TOML configuration file (optional)
  -addr    Listen address, overrides the config (default from config)
  -db      SQLite database path, overrides the config
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/coinledger.db"

  # Run with a config file
  ./server -config=coinledger.toml

SEE ALSO:
  - config/config.go: Configuration shape and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chorebank/coinledger/api"
	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/config"
	"github.com/chorebank/coinledger/ledger"
	"github.com/chorebank/coinledger/reset"
	"github.com/chorebank/coinledger/rewards"
	"github.com/chorebank/coinledger/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "TOML configuration file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
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

	// Initialize store
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	// Wire the domain services
	ldg := ledger.New(st)
	ch := chores.New(st)
	rw := rewards.New(st, ldg, ch)
	settler := reset.New(st, ldg, rw, ch)

	handler := api.NewHandler(ldg, rw, ch, settler)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	// Settlement scheduler
	scheduler := api.NewResetScheduler(settler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	if cfg.SchedulerInterval() > 0 {
		scheduler.CheckInterval = cfg.SchedulerInterval()
	}
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
