// Command server runs the commission and certificate core: the internal sale
// confirmation API, the broker standing API and the public verification
// surface, plus the outbox publisher when Kafka is configured.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"weekchain/internal/broker"
	brokerhandler "weekchain/internal/broker/handler"
	brokermetrics "weekchain/internal/broker/metrics"
	brokerservice "weekchain/internal/broker/service"
	brokerstore "weekchain/internal/broker/store"
	"weekchain/internal/certificate"
	certcache "weekchain/internal/certificate/cache"
	certhandler "weekchain/internal/certificate/handler"
	certmetrics "weekchain/internal/certificate/metrics"
	certservice "weekchain/internal/certificate/service"
	certstore "weekchain/internal/certificate/store"
	"weekchain/internal/commission"
	commissionstore "weekchain/internal/commission/store"
	"weekchain/internal/confirm"
	confirmhandler "weekchain/internal/confirm/handler"
	confirmmetrics "weekchain/internal/confirm/metrics"
	"weekchain/internal/outbox"
	"weekchain/internal/outbox/publisher"
	"weekchain/internal/platform/config"
	"weekchain/internal/platform/httpserver"
	"weekchain/internal/platform/logger"
	"weekchain/internal/sale"
	salestore "weekchain/internal/sale/store"
	"weekchain/internal/tier"
	httptransport "weekchain/internal/transport/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	// A malformed tier table must never serve: commission math depends on it.
	table := tier.Default()
	if cfg.TierTablePath != "" {
		var err error
		table, err = tier.LoadFile(cfg.TierTablePath)
		if err != nil {
			log.Error("invalid tier table", "path", cfg.TierTablePath, "error", err)
			os.Exit(1)
		}
	}

	var (
		sales       sale.Store
		brokers     broker.Store
		commissions commission.Store
		certs       certificate.Store
		outboxStore outbox.Store
		runner      confirm.Runner
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		cancel()

		sales = salestore.NewPostgres(db)
		brokers = brokerstore.NewPostgres(db)
		commissions = commissionstore.NewPostgres(db)
		certs = certstore.NewPostgres(db)
		outboxStore = outbox.NewPostgres(db)
		runner = confirm.NewPostgresRunner(db, cfg.ConfirmTimeout)
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		sales = salestore.NewInMemory()
		brokers = brokerstore.NewInMemory()
		commissions = commissionstore.NewInMemory()
		certs = certstore.NewInMemory()
		outboxStore = outbox.NewInMemory()
		runner = confirm.NewShardedRunner()
	}

	var cache certcache.Cache = certcache.Noop{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = certcache.NewRedis(client)
		defer client.Close()
	}

	certMetrics := certmetrics.New()
	brokerMetrics := brokermetrics.New()
	confirmMetrics := confirmmetrics.New()

	minter := certservice.NewMinter(certs, certMetrics)
	verifier := certservice.NewVerifier(certs, cache, log, certMetrics)
	public := certservice.NewPublic(certs, sales, cache, outboxStore, log)
	brokerSvc := brokerservice.New(brokers, table, outboxStore, log, brokerMetrics)
	confirmSvc := confirm.New(runner, sales, brokers, commissions, certs, minter, outboxStore, table, log, confirmMetrics)

	router := httptransport.NewRouter(
		httptransport.Config{
			JWTSigningKey:  cfg.JWTSigningKey,
			AdminTokenHash: cfg.AdminTokenHash,
		},
		log,
		certhandler.New(verifier, public, log, certMetrics),
		brokerhandler.New(brokerSvc, log),
		confirmhandler.New(confirmSvc, log),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) > 0 {
		worker, err := publisher.New(rootCtx, cfg.KafkaBrokers, outboxStore, log)
		if err != nil {
			log.Error("failed to start outbox publisher", "error", err)
			os.Exit(1)
		}
		defer worker.Close()
		go func() {
			if err := worker.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox publisher stopped", "error", err)
			}
		}()
	} else {
		log.Warn("no KAFKA_BROKERS configured, outbox events will accumulate unpublished")
	}

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
