package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/trajstore-lab/trajstore/internal/core/config"
	"github.com/trajstore-lab/trajstore/internal/core/interval"
)

func runCollections(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: trajstore collections <list|apply|drop> [options]")
	}

	switch args[0] {
	case "list":
		return collectionsList(ctx, cfg, args[1:])
	case "apply":
		return collectionsApply(ctx, cfg, args[1:])
	case "drop":
		return collectionsDrop(ctx, cfg, args[1:])
	default:
		return fmt.Errorf("unknown collections command: %s", args[0])
	}
}

func collectionsList(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("collections list", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	client, closeMongo, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeMongo()

	names, err := client.ListCollectionNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(os.Stdout, name)
	}
	return nil
}

// collectionsApply creates every collection with a spec in the schema
// directory and installs its validator and indexes.
func collectionsApply(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("collections apply", flag.ContinueOnError)
	dir := flags.String("schemas", cfg.Schema.Path, "Directory of collection specs")
	if err := flags.Parse(args); err != nil {
		return err
	}

	client, closeMongo, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeMongo()

	schemaCfg := cfg.Schema
	schemaCfg.Path = *dir
	_, err = loadSchemas(ctx, schemaCfg, client, true)
	return err
}

func collectionsDrop(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("collections drop", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	names := flags.Args()
	if len(names) == 0 {
		return errors.New("at least one collection name is required")
	}

	client, closeMongo, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeMongo()

	return client.DropCollections(ctx, names)
}

func closedBound(v *float64) *interval.Bound {
	if v == nil {
		return nil
	}
	b := interval.Closed(*v)
	return &b
}
