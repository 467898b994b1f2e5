package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/trajstore-lab/trajstore/internal/core/config"
	"github.com/trajstore-lab/trajstore/internal/transform"
)

// optionalFloat is a float flag that records whether it was set.
type optionalFloat struct {
	value *float64
}

func (f *optionalFloat) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.FormatFloat(*f.value, 'g', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.value = &v
	return nil
}

func runTransform(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("transform", flag.ContinueOnError)
	source := flags.String("source", cfg.Transform.Source, "Source trajectory collection")
	output := flags.String("output", cfg.Transform.Output, "Output collection (defaults to <source>_transformed)")
	chunks := flags.Int("chunks", cfg.Transform.Chunks, "Disjoint key ranges processed in parallel per direction")
	extended := flags.Bool("extended", cfg.Transform.Extended, "Write acceleration, class and node in every tuple")
	var lower, upper optionalFloat
	flags.Var(&lower, "lower", "Lower bound of the partition key (closed)")
	flags.Var(&upper, "upper", "Upper bound of the partition key (closed)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *source == "" {
		return errors.New("-source (or transform.source) is required")
	}

	opts := transformOptions(cfg.Transform)
	opts.SourceCollection = *source
	opts.OutputCollection = *output
	opts.Chunks = *chunks
	opts.Extended = *extended
	opts.Lower, opts.Upper = lower.value, upper.value

	client, closeMongo, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeMongo()

	ledger, closeLedger, err := openLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer closeLedger()

	deps := transform.Deps{
		Source:   client.Collection(opts.SourceCollection),
		Metadata: client,
	}
	if opts.OutputCollection == "" {
		opts.OutputCollection = transform.DefaultOptions(opts.SourceCollection).OutputCollection
	}
	deps.Output = client.Collection(opts.OutputCollection)
	if ledger != nil {
		deps.Runs = ledger
	}

	report, runErr := transform.Run(ctx, deps, opts)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return runErr
}

func transformOptions(c config.TransformConfig) transform.Options {
	return transform.Options{
		SourceCollection:  c.Source,
		OutputCollection:  c.Output,
		Directions:        c.Directions,
		PartitionKey:      c.PartitionKey,
		ReadIncrement:     c.Increment,
		Chunks:            c.Chunks,
		Period:            c.Period,
		StaleThreshold:    c.StaleThreshold,
		Extended:          c.Extended,
		LatePolicy:        transform.LatePolicy(c.LatePolicy),
		BatchSize:         c.BatchSize,
		WriterCount:       c.WriterCount,
		MaxRetries:        c.MaxRetries,
		RetryInterval:     c.RetryInterval,
		RoadSegmentLength: c.RoadSegmentLength,
		MaxSamples:        c.MaxSamples,
	}
}
