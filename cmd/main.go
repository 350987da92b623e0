/**
 * @description
 * This is the main entry point for the ATM service. It is responsible for
 * initializing all components of the service, including configuration, the
 * storage driver, the transaction ledger, the message broker, the core
 * application service, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver for the postgres storage driver.
 * - github.com/joho/godotenv: Optional .env loading at boot.
 * - internal/api, internal/app, internal/config, internal/ledger,
 *   internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/transfa/atm-service/internal/api"
	"github.com/transfa/atm-service/internal/app"
	"github.com/transfa/atm-service/internal/config"
	"github.com/transfa/atm-service/internal/ledger"
	"github.com/transfa/atm-service/internal/store"
	rmrabbit "github.com/transfa/atm-service/pkg/rabbitmq"
)

func main() {
	// Load an optional .env file before viper reads the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("level=info component=bootstrap msg=\"loaded .env file\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"starting atm-service\" port=%s driver=%s", cfg.ServerPort, cfg.StorageDriver)

	// Initialize the storage driver and the matching ledger.
	accounts, history, cleanup, err := buildStorage(cfg)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"storage init failed\" driver=%s err=%v", cfg.StorageDriver, err)
	}
	defer cleanup()

	// Guarantee the well-known admin account, then optionally seed demo data.
	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelBootstrap()
	if _, err := store.EnsureAdminAccount(bootstrapCtx, accounts); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"admin bootstrap failed\" err=%v", err)
	}
	if cfg.SeedDemoAccounts {
		if err := store.SeedDemoAccounts(bootstrapCtx, accounts); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"demo seeding failed\" err=%v", err)
		}
	}

	// Initialize the RabbitMQ producer to publish transaction events. The
	// broker is optional; without it events are simply not published.
	var producer rmrabbit.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		eventProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
			producer = &rmrabbit.EventProducerFallback{}
		} else {
			defer eventProducer.Close()
			producer = eventProducer
			log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		}
	}

	// Initialize the core application service with its dependencies.
	service := app.NewService(accounts, history, producer, app.Config{
		MaxFailedLoginAttempts: cfg.MaxFailedLoginAttempts,
		TemporaryLockDuration:  time.Duration(cfg.TemporaryLockMinutes) * time.Minute,
	})

	// Sessions need a signing secret; generate an ephemeral one when not
	// configured, which invalidates sessions across restarts.
	secret := strings.TrimSpace(cfg.SessionTokenSecret)
	if secret == "" {
		secret = randomSecret()
		log.Println("level=warn component=bootstrap msg=\"SESSION_TOKEN_SECRET not set; using an ephemeral secret\"")
	}
	issuer := api.NewTokenIssuer(secret, time.Duration(cfg.SessionTokenTTLMinutes)*time.Minute)

	// Set up the HTTP router and start the server.
	handlers := api.NewHandlers(service, issuer)
	router := api.Routes(handlers, issuer)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// buildStorage selects the account store and ledger for the configured
// driver. The returned cleanup releases any held connections.
func buildStorage(cfg config.Config) (store.AccountStore, ledger.Ledger, func(), error) {
	noop := func() {}
	switch cfg.StorageDriver {
	case "memory":
		return store.NewMemoryAccountStore(), ledger.NewMemoryLedger(), noop, nil

	case "json":
		accounts, err := store.NewJSONAccountStore(cfg.AccountsPath())
		if err != nil {
			return nil, nil, noop, err
		}
		history, err := ledger.NewJSONLedger(cfg.TransactionsPath())
		if err != nil {
			return nil, nil, noop, err
		}
		return accounts, history, noop, nil

	case "postgres":
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("database url parse failed: %w", err)
		}
		poolConfig.MaxConns = 20
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("database connection failed: %w", err)
		}

		accounts := store.NewPostgresAccountStore(pool)
		history := ledger.NewPostgresLedger(pool)
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := accounts.EnsureSchema(schemaCtx); err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		if err := history.EnsureSchema(schemaCtx); err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		log.Println("level=info component=bootstrap msg=\"database connected\"")
		return accounts, history, pool.Close, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"failed to generate session secret\" err=%v", err)
	}
	return hex.EncodeToString(buf)
}
