package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/trajstore-lab/trajstore/internal/core/config"
)

type command func(ctx context.Context, cfg *config.Config, args []string) error

var commands = map[string]command{
	"serve":       runServe,
	"transform":   runTransform,
	"export":      runExport,
	"collections": runCollections,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("trajstore failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("trajstore", flag.ContinueOnError)
	configPath := global.String("config", "", "Path to configuration file (defaults and TRAJSTORE_ env vars apply without one)")
	global.Usage = func() {
		fmt.Fprintf(global.Output(), "usage: trajstore [-config file] <command> [options]\ncommands: %s\n", strings.Join(commandNames(), ", "))
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("a command is required")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", rest[0])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd(ctx, cfg, rest[1:])
}

func newLogger(w io.Writer, c config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
