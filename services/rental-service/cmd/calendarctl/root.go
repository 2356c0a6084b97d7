package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/billboardrent/libs/config"
	"github.com/md-rashed-zaman/billboardrent/libs/db"
	"github.com/md-rashed-zaman/billboardrent/libs/runtime"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/calendar"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/outbox"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage/postgres"
	"github.com/spf13/cobra"
)

// app is what every subcommand runs against.
type app struct {
	calendar *calendar.Service
	migrate  func(ctx context.Context) error
	close    func()
}

type opener func(ctx context.Context, logger *slog.Logger) (*app, error)

func openPostgres(ctx context.Context, logger *slog.Logger) (*app, error) {
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, dbURL, db.DefaultPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	cacheCfg, err := calendar.CacheConfigFromEnv()
	if err != nil {
		pool.Close()
		return nil, err
	}
	store := postgres.NewStore(pool, outbox.NewRepository(pool))
	repo, closeCache := calendar.WithRedisCache(store, cacheCfg, logger)
	return &app{
		calendar: calendar.NewService(repo, logger, biweek.DefaultYearBounds),
		migrate:  store.ApplySchema,
		close: func() {
			closeCache()
			pool.Close()
		},
	}, nil
}

type cli struct {
	open   opener
	out    io.Writer
	tenant string
	json   bool
	app    *app
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}
	root := &cobra.Command{
		Use:          "calendarctl",
		Short:        "Manage tenant bi-week calendars",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(c.tenant) == "" && cmd.Name() != "migrate" {
				return errors.New("--tenant is required")
			}
			logger := runtime.NewLogger("calendarctl")
			a, err := c.open(cmd.Context(), logger)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil {
				c.app.close()
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.tenant, "tenant", config.String("TENANT_ID", ""), "Tenant id")
	root.PersistentFlags().BoolVar(&c.json, "json", false, "Output JSON")

	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.generateCmd())
	root.AddCommand(c.findCmd())
	root.AddCommand(c.alignCmd())
	root.AddCommand(c.sequenceCmd())
	root.AddCommand(c.activateCmd())
	return root
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
