package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/smartport-kiosk/smartport/internal/config"
	"github.com/smartport-kiosk/smartport/internal/db"
	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/store/sqlstore"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func serveCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, gRPC health and bus handlers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http-addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "grpc-addr", Usage: "gRPC health listen address"},
			&cli.StringFlag{Name: "broker", Usage: "MQTT broker URL, empty for the in-process bus"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if v := c.String("http-addr"); v != "" {
				cfg.HTTPAddr = v
			}
			if v := c.String("grpc-addr"); v != "" {
				cfg.GRPCAddr = v
			}
			if v := c.String("broker"); v != "" {
				cfg.MQTTBroker = v
			}
			return runServer(ctx, cfg, logger)
		},
	}
}

func migrateCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and print the schema version",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			conn, dialect, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			v, err := db.SchemaVersion(ctx, conn, dialect)
			if err != nil {
				return err
			}
			logger.Printf("schema up to date driver=%s version=%d", dialect, v)
			return nil
		},
	}
}

func adminCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Administrator management",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register an administrator tag",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "tag", Required: true, Usage: "RFID tag, 8 hex characters"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(st *sqlstore.Store) error {
						svc := service.NewAdminService(st, nil, nil, logger)
						a, err := svc.RegisterAdmin(ctx, c.String("name"), c.String("tag"))
						if err != nil {
							return err
						}
						return printJSON(a)
					})
				},
			},
			{
				Name:  "list",
				Usage: "List administrators",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(st *sqlstore.Store) error {
						admins, err := service.NewAdminService(st, nil, nil, logger).ListAdmins(ctx)
						if err != nil {
							return err
						}
						return printJSON(admins)
					})
				},
			},
		},
	}
}

func passengerCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "passenger",
		Usage: "Passenger check-in",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Register a passenger on a flight",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "flight", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(ctx, c, func(st *sqlstore.Store) error {
						p, err := service.NewAdminService(st, nil, nil, logger).CreatePassenger(ctx, c.String("name"), c.String("flight"))
						if err != nil {
							return err
						}
						return printJSON(p)
					})
				},
			},
		},
	}
}

// openDB opens and migrates the configured database.
func openDB(ctx context.Context, cfg config.Config) (*sql.DB, db.Dialect, error) {
	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}
	conn, err := db.Open(ctx, db.Config{Dialect: dialect, Path: cfg.DBPath, DSN: cfg.DBDSN, Env: cfg.Env})
	if err != nil {
		return nil, "", err
	}
	return conn, dialect, nil
}

func embeddingCodec(cfg config.Config) (types.EmbeddingCodec, error) {
	width, err := types.ParseElementWidth(cfg.EmbeddingWidth)
	if err != nil {
		return types.EmbeddingCodec{}, err
	}
	return types.EmbeddingCodec{Dim: cfg.EmbeddingDim, Width: width}, nil
}

func withStore(ctx context.Context, c *cli.Command, fn func(*sqlstore.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	codec, err := embeddingCodec(cfg)
	if err != nil {
		return err
	}
	conn, dialect, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	writer, closeWriter := db.NewRunner(conn, dialect)
	defer closeWriter()

	return fn(sqlstore.New(conn, writer, dialect, sqlstore.WithCodec(codec)))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}
