package main

import (
	"context"
	"errors"
	"flag"

	"github.com/trajstore-lab/trajstore/internal/core/config"
	"github.com/trajstore-lab/trajstore/internal/export"
)

func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	collection := flags.String("collection", "", "Transformed collection to export")
	out := flags.String("out", "", "Output Parquet file")
	compression := flags.String("compression", cfg.Export.Compression, "zstd, snappy or none")
	increment := flags.Float64("increment", 0, "Read the collection in timestamp steps of this size (0 reads it in one query)")
	var lower, upper optionalFloat
	flags.Var(&lower, "lower", "Lowest timestamp to export (closed)")
	flags.Var(&upper, "upper", "Highest timestamp to export (closed)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *collection == "" {
		return errors.New("-collection is required")
	}
	if *out == "" {
		return errors.New("-out is required")
	}

	client, closeMongo, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeMongo()

	opts := export.Options{
		Compression:  *compression,
		RowGroupSize: cfg.Export.RowGroupSize,
		Increment:    *increment,
	}
	opts.Lower, opts.Upper = closedBound(lower.value), closedBound(upper.value)

	_, err = export.WriteFile(ctx, client.Collection(*collection), *out, opts)
	return err
}
