/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger reconciliation server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config
  2. Initialize SQLite store
  3. Build the account registry and rule book
  4. Configure HTTP router and the reminder scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: config.yaml, missing file is fine)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reminder scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./ledgerd -db="./data/books.db"

  # Run on different port
  ./ledgerd -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration loading
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Benrnz/BudgetAnalyser-sub004/account"
	"github.com/Benrnz/BudgetAnalyser-sub004/api"
	"github.com/Benrnz/BudgetAnalyser-sub004/config"
	"github.com/Benrnz/BudgetAnalyser-sub004/rules"
	"github.com/Benrnz/BudgetAnalyser-sub004/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.yaml", "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.SQLitePath = *dbPath
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Account registry from config, with a sensible single-account default
	registry := account.NewInMemoryRegistry()
	if len(cfg.Accounts) == 0 {
		registry.Add(account.Account{Name: "CHEQUE", Type: account.TypeCheque, Salary: true})
	}
	for _, a := range cfg.Accounts {
		registry.Add(account.Account{Name: a.Name, Type: account.Type(a.Type), Salary: a.Salary})
	}

	// Initialize handler and router
	grace := time.Duration(cfg.Reminders.GraceDays) * 24 * time.Hour
	handler := api.NewHandler(store, registry, rules.NewRuleBook(), log)
	handler.ReminderGrace = grace
	router := api.NewRouter(handler)

	// Reminder scheduler
	scheduler := api.NewReminderScheduler(store, log)
	scheduler.Grace = grace
	if err := scheduler.Start(cfg.Reminders.Cron); err != nil {
		log.Fatal().Err(err).Msg("failed to start reminder scheduler")
	}
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
