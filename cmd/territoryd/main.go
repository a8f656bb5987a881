// Command territoryd runs the territory assignment engine as an HTTP
// service: POST a build id to run the customer/prospect passes and persist
// the result, GET back the last run's outcome.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fieldcompass/territory-engine/infra/distlock"
	"github.com/fieldcompass/territory-engine/infrastructure/logging"
	"github.com/fieldcompass/territory-engine/infrastructure/metrics"
	"github.com/fieldcompass/territory-engine/infrastructure/middleware"
	"github.com/fieldcompass/territory-engine/infrastructure/utils"
	"github.com/fieldcompass/territory-engine/internal/assign/engine"
	"github.com/fieldcompass/territory-engine/internal/assign/repo"
	"github.com/fieldcompass/territory-engine/internal/assign/repo/memory"
	"github.com/fieldcompass/territory-engine/internal/assign/repo/postgres"
	"github.com/fieldcompass/territory-engine/internal/platform/database"
	"github.com/fieldcompass/territory-engine/internal/platform/migrations"
	pkgconfig "github.com/fieldcompass/territory-engine/pkg/config"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	apiTokensFlag := flag.String("api-tokens", "", "comma-separated bearer tokens for HTTP authentication")
	flag.Parse()

	logger := logging.NewFromEnv("territoryd")

	cfg := pkgconfig.New()
	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		loaded, err := pkgconfig.LoadFile(trimmed)
		if err != nil {
			log.Fatalf("load config %s: %v", trimmed, err)
		}
		cfg = loaded
	}

	rootCtx := context.Background()

	var (
		db  *sql.DB
		err error
	)
	dsnVal := resolveDSN(*dsn, cfg)
	var store repo.Repository
	if dsnVal != "" {
		db, err = database.Open(rootCtx, dsnVal)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		configurePool(db, cfg)
		if *runMigrations {
			if err := migrations.Apply(rootCtx, db); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		store = postgres.New(db)
	} else {
		log.Println("no --dsn/DATABASE_URL configured; running against an in-memory repository")
		store = memory.New()
	}

	locker := buildLocker(cfg)

	eng := engine.New(store, logger)

	tokens := resolveAPITokens(*apiTokensFlag, cfg)
	m := metrics.New("territoryd")

	srv := newServer(eng, store, locker, logger, m, tokens, db)
	listenAddr := determineAddr(*addr, cfg)

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      srv.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	shutdown := middleware.NewGracefulShutdown(httpServer, 10*time.Second)
	if db != nil {
		shutdown.OnShutdown(func() { db.Close() })
	}
	shutdown.ListenForSignals()

	log.Printf("territoryd listening on %s", listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("serve: %v", err)
	}
	shutdown.Wait()
}

func buildLocker(cfg *pkgconfig.Config) *distlock.Locker {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return distlock.New(nil, 0)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ttl := time.Duration(cfg.Redis.LockTTL) * time.Second
	return distlock.New(client, ttl)
}

func determineAddr(flagAddr string, cfg *pkgconfig.Config) string {
	addr := strings.TrimSpace(flagAddr)
	if addr != "" {
		return addr
	}
	if cfg.Server.Port != 0 {
		host := cfg.Server.Host
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}
	return ":8080"
}

func configurePool(db *sql.DB, cfg *pkgconfig.Config) {
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}
}

func resolveDSN(flagDSN string, cfg *pkgconfig.Config) string {
	if cfg.Database.Host != "" && cfg.Database.Name != "" {
		return utils.Coalesce(flagDSN, os.Getenv("DATABASE_URL"), cfg.Database.DSN, cfg.Database.ConnectionString())
	}
	return utils.Coalesce(flagDSN, os.Getenv("DATABASE_URL"), cfg.Database.DSN)
}

func resolveAPITokens(flagTokens string, cfg *pkgconfig.Config) []string {
	var tokens []string
	tokens = append(tokens, splitTokens(flagTokens)...)
	tokens = append(tokens, cfg.Auth.Tokens...)
	tokens = append(tokens, splitTokens(os.Getenv("API_TOKENS"))...)
	return tokens
}

func splitTokens(value string) []string {
	if utils.IsEmpty(value) {
		return nil
	}
	return utils.Filter(utils.SplitTrim(value, ","), func(s string) bool { return s != "" })
}
