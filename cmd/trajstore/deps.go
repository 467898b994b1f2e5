package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trajstore-lab/trajstore/internal/core/config"
	"github.com/trajstore-lab/trajstore/internal/core/storage/mongodb"
	"github.com/trajstore-lab/trajstore/internal/core/storage/postgres"
	"github.com/trajstore-lab/trajstore/internal/migrations"
	"github.com/trajstore-lab/trajstore/internal/schema"
)

func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongodb.Client, func(), error) {
	client, err := mongodb.Connect(ctx, mongodb.Options{
		URI:                cfg.URI,
		Database:           cfg.Database,
		ConnectTimeout:     cfg.ConnectTimeout,
		ConfigurationID:    cfg.ConfigurationID,
		ComputeNodeID:      cfg.ComputeNodeID,
		MetadataCollection: cfg.MetadataCollection,
		Protected:          cfg.Protected,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(ctx); err != nil {
			slog.Warn("[MongoStore] Disconnect failed", "error", err)
		}
	}
	return client, closeFn, nil
}

// openLedger returns a nil ledger when it is disabled.
func openLedger(cfg config.LedgerConfig) (*postgres.RunLedger, func(), error) {
	if !cfg.Enabled {
		slog.Info("[Ledger] Run ledger disabled by config")
		return nil, func() {}, nil
	}

	db, err := postgres.Open(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Apply(db, cfg.AutoMigrate); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ledger migrations: %w", err)
	}
	ledger, err := postgres.NewRunLedger(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return ledger, func() { ledger.Close() }, nil
}

// loadSchemas reads the validator specs and, when apply is set, installs them.
func loadSchemas(ctx context.Context, cfg config.SchemaConfig, inst schema.Installer, apply bool) (*schema.Registry, error) {
	registry, err := schema.LoadDir(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	if apply {
		if err := registry.Apply(ctx, inst); err != nil {
			return nil, fmt.Errorf("apply schemas: %w", err)
		}
	}
	return registry, nil
}
