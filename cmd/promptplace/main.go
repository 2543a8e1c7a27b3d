package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/promptplace/internal/app"
	"github.com/letmevibethatforyou/promptplace/internal/config"
	"github.com/letmevibethatforyou/promptplace/internal/indexsync"
	"github.com/letmevibethatforyou/promptplace/internal/server"
	"github.com/letmevibethatforyou/promptplace/store"
)

func main() {
	cliApp := &cli.App{
		Name:  "promptplace",
		Usage: "Prompt marketplace backend",
		Flags: config.Flags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveAction,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending database schema upgrades",
				Action: migrateAction,
			},
			{
				Name:  "sync-index",
				Usage: "Copy every live prompt into the Elasticsearch index",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of documents indexed concurrently",
					},
				},
				Action: syncIndexAction,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Application failed")
	}
}

// setup loads the configuration with load and returns a context carrying
// the logger.
func setup(c *cli.Context, load func(*cli.Context) (*config.Config, error)) (context.Context, *config.Config, zerolog.Logger, error) {
	cfg, err := load(c)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	log, err := cfg.Logger(os.Stdout)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	zerolog.DefaultContextLogger = &log
	return log.WithContext(c.Context), cfg, log, nil
}

func serveAction(c *cli.Context) error {
	ctx, cfg, log, err := setup(c, config.FromCLI)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().
		Bool("demo", cfg.Demo).
		Str("database", cfg.Database.Type).
		Bool("elasticsearch", a.Elastic != nil).
		Msg("Starting promptplace")
	return server.New(a).Run(ctx)
}

func migrateAction(c *cli.Context) error {
	ctx, cfg, log, err := setup(c, config.DataFromCLI)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Database.Type, cfg.Database.URI, log)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("database", cfg.Database.Type).Msg("Database schema is up to date")
	return nil
}

func syncIndexAction(c *cli.Context) error {
	ctx, cfg, log, err := setup(c, config.DataFromCLI)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []indexsync.Option
	if c.IsSet("workers") {
		opts = append(opts, indexsync.WithPoolSize(c.Int("workers")))
	}
	report, err := a.SyncIndex(ctx, opts...)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.Exit("some prompts failed to index", 1)
	}
	return nil
}
