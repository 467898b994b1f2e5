package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/trajstore-lab/trajstore/internal/core/config"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/core/storage/mongodb"
	"github.com/trajstore-lab/trajstore/internal/ingestion"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"github.com/trajstore-lab/trajstore/internal/projection"
	"github.com/trajstore-lab/trajstore/internal/server"
)

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := flags.Int("port", cfg.Server.Port, "HTTP port")
	applySchemas := flags.Bool("apply-schemas", cfg.Schema.ApplyOnStart, "Install collection validators and indexes before serving")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// 1. Document store
	client, closeMongo, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeMongo()

	// 2. Collection specs
	registry, err := loadSchemas(ctx, cfg.Schema, client, *applySchemas)
	if errors.Is(err, fs.ErrNotExist) && !*applySchemas {
		slog.Warn("[Schema] No schema directory, typed writes are checked by record validation only", "path", cfg.Schema.Path)
		registry, err = nil, nil
	}
	if err != nil {
		return err
	}

	// 3. Run ledger
	ledger, closeLedger, err := openLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 4. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 5. Services
	ingestionSvc := ingestion.NewService(
		client.Records(cfg.Collections.Raw, cfg.Collections.Stitched, cfg.Collections.Reconciled),
		registry,
		ingestion.Collections{
			Fragments:  cfg.Collections.Raw,
			Stitched:   cfg.Collections.Stitched,
			Reconciled: cfg.Collections.Reconciled,
		},
		m,
		cfg.Server.MaxBodySizeMB,
	)

	checks := map[string]server.HealthChecker{"mongo": client}
	var runs storage.RunStore
	if ledger != nil {
		runs = ledger
		checks["ledger"] = ledger
	}
	projectionSvc := projection.NewService(client, runs, mongodb.SummaryIndexFields, cfg.Server.MaxRangeDocuments, m)

	// 6. Server
	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, *port), cfg.Server.Mode, checks, reg)
	srv.SetShutdownTimeout(cfg.Server.ShutdownTimeout)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// Blocks until ctx is cancelled by a signal.
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}
