package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/promptplace/internal/app"
	"github.com/letmevibethatforyou/promptplace/internal/config"
	"github.com/letmevibethatforyou/promptplace/internal/indexsync"
)

type indexSyncer interface {
	SyncIndex(ctx context.Context, opts ...indexsync.Option) (*indexsync.Report, error)
}

type Handler struct {
	syncer indexSyncer
	log    zerolog.Logger
	opts   []indexsync.Option
}

func NewHandler(syncer indexSyncer, log zerolog.Logger, opts ...indexsync.Option) *Handler {
	return &Handler{syncer: syncer, log: log, opts: opts}
}

// HandleScheduledEvent runs a full index sync for each EventBridge schedule
// tick. A run with failed documents returns an error so the invocation is
// reported as failed.
func (h *Handler) HandleScheduledEvent(ctx context.Context, e events.EventBridgeEvent) (*indexsync.Report, error) {
	log := h.log.With().Str("event_id", e.ID).Str("source", e.Source).Logger()
	ctx = log.WithContext(ctx)
	log.Info().Time("scheduled_at", e.Time).Msg("Starting scheduled index sync")

	report, err := h.syncer.SyncIndex(ctx, h.opts...)
	if err != nil {
		log.Err(err).Msg("Index sync failed")
		return nil, err
	}
	if report.Failed > 0 {
		return report, errors.Newf("%d of %d prompts failed to index", report.Failed, report.Total)
	}
	return report, nil
}

func main() {
	cliApp := &cli.App{
		Name:  "sync-index",
		Usage: "Sync live prompts into Elasticsearch on an EventBridge schedule",
		Flags: append(config.Flags(),
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of documents indexed concurrently",
				EnvVars: []string{"SYNC_WORKERS"},
			},
		),
		Action: runAction,
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Application failed")
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.DataFromCLI(c)
	if err != nil {
		return err
	}
	log, err := cfg.Logger(os.Stdout)
	if err != nil {
		return err
	}
	ctx := log.WithContext(c.Context)

	if !cfg.Elastic.Enabled() {
		return app.ErrSearchIndexDisabled
	}
	log.Info().
		Str("index", cfg.Elastic.Index).
		Str("environment", cfg.Elastic.Env).
		Msg("Starting index sync function")

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []indexsync.Option
	if c.IsSet("workers") {
		opts = append(opts, indexsync.WithPoolSize(c.Int("workers")))
	}
	handler := NewHandler(a, log, opts...)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		log.Info().Msg("Running in Lambda environment")
		lambda.StartWithOptions(handler.HandleScheduledEvent, lambda.WithContext(ctx))
		return nil
	}

	log.Info().Msg("Not running in Lambda, performing a single sync")
	_, err = handler.HandleScheduledEvent(ctx, events.EventBridgeEvent{ID: "local", Source: "cli"})
	return err
}
