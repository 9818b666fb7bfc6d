package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studbook/internal/audit"
	billingservice "studbook/internal/billing/service"
	billingstore "studbook/internal/billing/store"
	groupstore "studbook/internal/group/store"
	"studbook/internal/invariant"
	"studbook/internal/migration/adapter"
	"studbook/internal/migration/engine"
	migrationmetrics "studbook/internal/migration/metrics"
	migrationstore "studbook/internal/migration/store"
	partymetrics "studbook/internal/party/metrics"
	partyservice "studbook/internal/party/service"
	partystore "studbook/internal/party/store"
	"studbook/internal/platform/config"
	"studbook/internal/platform/httpserver"
	"studbook/internal/platform/logger"
	"studbook/internal/platform/postgres"
	redisplatform "studbook/internal/platform/redis"
	httptransport "studbook/internal/transport/http"
	"studbook/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	runner := tx.NewRunner(db)

	auditStore := audit.NewPostgres(db)
	auditRec := audit.NewRecorder(auditStore, log)

	parties := partyservice.New(partystore.NewPostgres(db),
		partyservice.WithTx(runner),
		partyservice.WithMetrics(partymetrics.New()),
		partyservice.WithAudit(auditRec),
		partyservice.WithLogger(log),
	)

	// Checkpoints live in redis when it is configured, postgres otherwise.
	var checkpoints engine.CheckpointStore = migrationstore.NewCheckpointPostgres(db)
	if redisClient != nil {
		checkpoints = migrationstore.NewCheckpointRedis(redisClient.Client)
	}

	stages := migrationstore.NewStagePostgres(db)
	migMetrics := migrationmetrics.New()
	eng := engine.New(stages, checkpoints, parties,
		engine.WithAudit(auditRec),
		engine.WithMetrics(migMetrics),
		engine.WithLogger(log),
		engine.WithWorkers(cfg.Backfill.Workers),
		engine.WithOperatorTokenHash(cfg.OperatorTokenHash),
	)
	eng.Register(adapter.NewSQL(db, "ownership_records", adapter.DefaultColumns))
	eng.Register(adapter.NewSQL(db, billingservice.InvoiceTable, adapter.Columns{
		PK:           "pk",
		Party:        "buyer_party_id",
		Person:       "buyer_person_id",
		Organization: "buyer_organization_id",
	}))

	writer := engine.NewDualWriter(stages, parties, auditRec, migMetrics, log)
	invoices := billingservice.New(billingstore.NewPostgres(db), parties,
		invariant.New(groupstore.NewPostgres(db)), writer,
		billingservice.WithTx(runner),
		billingservice.WithLogger(log),
	)

	if len(cfg.Kafka.Seeds) > 0 {
		relay, err := audit.NewRelayWorker(auditStore, cfg.Kafka.Seeds, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatalf("audit relay: %v", err)
		}
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Printf("audit relay stopped: %v", err)
			}
		}()
	} else {
		log.Printf("audit relay disabled: no kafka seeds configured")
	}

	ops := httptransport.NewOpsHandler(db, redisClient, eng, cfg.Backfill, log)
	api := httptransport.NewAPIHandler(invoices, []byte(cfg.JWTSigningKey), log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(ops, api))

	log.Printf("starting studbook on %s", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}
