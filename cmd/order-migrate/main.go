// Command order-migrate applies, rolls back or lists the order store schema
// migrations.
//
//	order-migrate [--database-url URL] up|down|status
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/order-service/internal/storage/postgres"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or ORDERS_DATABASE_URL / DATABASE_URL env)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] up|down|status\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("ORDERS_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url, ORDERS_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Arg(0)); err != nil {
		slog.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, command string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := postgres.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		versions, err := m.Up(ctx)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			slog.Info("schema is up to date")
			return nil
		}
		for _, v := range versions {
			slog.Info("applied migration", slog.Int64("version", v))
		}
	case "down":
		v, err := m.Down(ctx)
		if err != nil {
			return err
		}
		slog.Info("rolled back migration", slog.Int64("version", v))
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			slog.Info("migration",
				slog.Int64("version", s.Version),
				slog.String("name", s.Name),
				slog.Bool("applied", s.Applied),
			)
		}
	default:
		return errors.Errorf("unknown command %q", command)
	}
	return nil
}
