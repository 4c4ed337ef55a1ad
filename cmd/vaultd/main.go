// Package main runs the custody vault service: the vault engine over an
// in-memory ledger, the PostgreSQL journal and state store, the
// ClickHouse transfer log, and the HTTP/WebSocket API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/feed"
	ledgermem "custody-vault/internal/ledger/memory"
	"custody-vault/internal/observability"
	"custody-vault/internal/storage"
	chstore "custody-vault/internal/storage/clickhouse"
	"custody-vault/internal/storage/memory"
	"custody-vault/internal/storage/migrations"
	pgstore "custody-vault/internal/storage/postgres"
	"custody-vault/internal/vault"
)

// allStores holds all storage implementations.
type allStores struct {
	events    storage.EventStore
	states    storage.StateStore
	transfers storage.TransferLogStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	vaultID := flag.String("vault-id", envOr("VAULT_ID", "default"), "Vault identifier")
	owner := flag.String("owner", os.Getenv("VAULT_OWNER"), "Owner address (base58)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	dailyLimit := flag.String("daily-limit", envOr("DAILY_LIMIT", "0"), "Daily withdrawal limit (0 disables)")

	flag.Parse()

	logger := log.New(os.Stdout, "[vaultd] ", log.LstdFlags)

	if *owner == "" {
		logger.Fatal("--owner is required")
	}
	ownerAddr, err := domain.ParseAddress(*owner)
	if err != nil {
		logger.Fatalf("Invalid --owner: %v", err)
	}
	limit, err := decimal.NewFromString(*dailyLimit)
	if err != nil || limit.IsNegative() {
		logger.Fatalf("Invalid --daily-limit %q", *dailyLimit)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// The ledger account holding the vault's funds.
	ledger := ledgermem.NewLedger(domain.Address("vault:" + *vaultID))
	ledger.SetNow(time.Now().UTC())

	hub := feed.NewHub(log.New(os.Stdout, "[feed] ", log.LstdFlags))
	defer hub.Close()

	sink := vault.Sinks{
		&vault.JournalSink{Store: stores.events, Logger: logger},
		hub,
		&vault.AnalyticsSink{Store: stores.transfers, Logger: logger},
	}

	v, err := openVault(ctx, *vaultID, ownerAddr, limit, ledger, sink, stores, logger)
	if err != nil {
		logger.Fatalf("Failed to open vault: %v", err)
	}
	logger.Printf("Vault %q ready, owner %s", *vaultID, v.Owner())

	server := &Server{
		vault:   v,
		hub:     hub,
		stores:  stores,
		started: time.Now(),
		logger:  logger,
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	go trackUptime(ctx)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// openVault restores the vault from a persisted snapshot when one
// exists, otherwise creates a fresh one.
func openVault(ctx context.Context, vaultID string, owner domain.Address, limit decimal.Decimal,
	ledger *ledgermem.Ledger, sink vault.Sink, stores *allStores, logger *log.Logger) (*vault.Vault, error) {

	opts := vault.Options{
		VaultID:    vaultID,
		Owner:      owner,
		Ledger:     ledger,
		DailyLimit: limit,
		Sink:       sink,
		States:     stores.states,
		Logger:     logger,
	}

	state, err := stores.states.Load(ctx, vaultID)
	switch {
	case err == nil:
		logger.Printf("Restoring vault state (updated_at=%d)", state.UpdatedAt)
		return vault.Restore(state, opts)
	case errors.Is(err, storage.ErrNotFound):
		return vault.New(opts)
	default:
		return nil, fmt.Errorf("load vault state: %w", err)
	}
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			events:    memory.NewEventStore(),
			states:    memory.NewStateStore(),
			transfers: memory.NewTransferLogStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		events:    pgstore.NewEventStore(pool),
		states:    pgstore.NewStateStore(pool),
		transfers: chstore.NewTransferLogStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

func trackUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.DefaultMetrics.UptimeSeconds.Inc()
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads .env from the working directory without overriding
// existing environment variables.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
