package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/smartport-kiosk/smartport/internal/config"
)

func main() {
	logger := log.New(os.Stdout, "smartport ", log.LstdFlags|log.LUTC)

	root := &cli.Command{
		Name:  "smartport-server",
		Usage: "Airport boarding kiosk: enrollment, verification, gate and scale",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "TOML config file (env SMARTPORT_* overrides it)",
				Sources: cli.EnvVars("SMARTPORT_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(logger),
			migrateCommand(logger),
			adminCommand(logger),
			passengerCommand(logger),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return runServer(ctx, cfg, logger)
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logger.Fatal(err)
	}
}

func loadConfig(c *cli.Command) (config.Config, error) {
	return config.Load(c.String("config"))
}
