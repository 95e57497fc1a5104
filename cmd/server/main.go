/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the mess billing server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store (migrations run on open)
  3. Create mess service with the configured default rates
  4. Configure HTTP router
  5. Start the draft scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port               HTTP server port (default: 8080)
  -db                 SQLite database path (default: mess.db)
                      Use ":memory:" for in-memory database
  -provision-rate     Default provision rate per day (default: 25.00)
  -advance-rate       Default advance rate per day (default: 18.75)
  -use-default-rates  Fill missing monthly rates from the defaults (default: true)
  -draft-interval     Draft refresh interval, 0 disables (default: 1h)
  -cors-origins       Comma separated allowed origins (default: *)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the draft scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/mess.db"

  # Run with in-memory database, no background drafts
  ./server -db=":memory:" -draft-interval=0

ENVIRONMENT:
  See config/config.go. Flags override environment variables.

SEE ALSO:
  - api/server.go: Router configuration
  - mess/service.go: Service operations
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostel/mess-engine/api"
	"github.com/hostel/mess-engine/config"
	"github.com/hostel/mess-engine/mess"
	"github.com/hostel/mess-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	svc := mess.NewService(store, cfg.Rates)
	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := mess.NewDraftScheduler(svc)
	scheduler.CheckInterval = cfg.DraftInterval
	scheduler.Enabled = cfg.DraftInterval > 0
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Server] Starting on http://localhost:%d (db %s)", cfg.Port, cfg.DBPath)
		log.Printf("[Server] Dashboard at http://localhost:%d/, API under /api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Stopped")
}
