package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"charity/internal/adapter"
	"charity/internal/domain"
	"charity/internal/infra"
	"charity/internal/middleware"
	"charity/migrations"
)

var databaseURLFlag = &cli.StringFlag{
	Name:     "database-url",
	EnvVars:  []string{"DATABASE_URL"},
	Required: true,
	Usage:    "specify the fund store (postgres://..., sqlite://path)",
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Apply the embedded PostgreSQL schema",
	Flags: []cli.Flag{databaseURLFlag},
	Action: func(ctx *cli.Context) error {
		dbURL := strings.TrimSpace(ctx.String("database-url"))
		cfg := &infra.Config{DatabaseURL: dbURL}
		driver, err := cfg.StoreDriver()
		if err != nil {
			return err
		}
		if driver != infra.DriverPostgres {
			return errors.New("migrate only targets postgres; sqlite stores migrate on open")
		}

		runCtx, cancel := context.WithTimeout(ctx.Context, time.Minute)
		defer cancel()

		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		schema, err := fs.Sub(migrations.Postgres, "postgres")
		if err != nil {
			return err
		}
		applied, err := infra.ApplyMigrations(runCtx, db, schema, infra.PlaceholderDollar)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(ctx.App.Writer, "schema up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(ctx.App.Writer, "applied %s\n", name)
		}
		return nil
	},
}

var tokenCmd = &cli.Command{
	Name:  "token",
	Usage: "Mint a bearer token for local testing",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "secret",
			EnvVars:  []string{"JWT_SECRET"},
			Required: true,
			Usage:    "specify the HS256 signing secret",
		},
		&cli.StringFlag{
			Name:     "sub",
			Required: true,
			Usage:    "specify the user id",
		},
		&cli.BoolFlag{
			Name:  "superuser",
			Usage: "grant superuser access",
		},
		&cli.DurationFlag{
			Name:  "ttl",
			Value: 24 * time.Hour,
			Usage: "specify the token lifetime",
		},
	},
	Action: func(ctx *cli.Context) error {
		ttl := ctx.Duration("ttl")
		if ttl <= 0 {
			return errors.New("invalid ttl")
		}
		token, err := middleware.SignToken(ctx.String("secret"), ctx.String("sub"), ctx.Bool("superuser"), ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, token)
		return nil
	},
}

var openCmd = &cli.Command{
	Name:  "open",
	Usage: "Print the open projects or donations as JSON lines",
	Flags: []cli.Flag{
		databaseURLFlag,
		&cli.StringFlag{
			Name:  "kind",
			Value: string(domain.KindProject),
			Usage: "specify project or donation",
		},
	},
	Action: func(ctx *cli.Context) error {
		kind, err := domain.ParseKind(strings.ToLower(strings.TrimSpace(ctx.String("kind"))))
		if err != nil {
			return err
		}
		cfg := &infra.Config{
			DatabaseURL: ctx.String("database-url"),
			DBMaxConns:  2,
		}
		logger := infra.NewLogger("cli").With().Str("cmd", "fundctl").Logger().Level(zerolog.WarnLevel)

		store, err := adapter.OpenStore(ctx.Context, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		open, err := store.FetchOpen(ctx.Context, kind)
		if err != nil {
			return err
		}
		return writeOpenSet(ctx.App.Writer, open)
	},
}

type openRecord struct {
	Kind           domain.Kind `json:"kind"`
	ID             int64       `json:"id"`
	FullAmount     int64       `json:"full_amount"`
	InvestedAmount int64       `json:"invested_amount"`
	Remaining      int64       `json:"remaining"`
	CreateDate     time.Time   `json:"create_date"`
}

func writeOpenSet(w io.Writer, open []domain.Investable) error {
	enc := json.NewEncoder(w)
	for _, item := range open {
		if err := enc.Encode(openRecord{
			Kind:           item.Kind,
			ID:             item.ID,
			FullAmount:     item.FullAmount,
			InvestedAmount: item.InvestedAmount,
			Remaining:      item.Remaining(),
			CreateDate:     item.CreateDate,
		}); err != nil {
			return err
		}
	}
	return nil
}
