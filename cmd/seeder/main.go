package main

import (
	"math/rand/v2"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/promptplace/internal/config"
	"github.com/letmevibethatforyou/promptplace/store"
)

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

	st, err := store.Open(ctx, cfg.Database.Type, cfg.Database.URI, log)
	if err != nil {
		return err
	}
	defer st.Close()

	prompts := append([]seedPrompt(nil), demoPrompts...)
	seed1, seed2 := rand.Uint64(), rand.Uint64()
	if c.IsSet("seed") {
		seed1, seed2 = c.Uint64("seed"), c.Uint64("seed")
	}
	r := rand.New(rand.NewPCG(seed1, seed2))
	for range c.Int("extra") {
		prompts = append(prompts, randomPrompt(r))
	}

	log.Info().
		Str("database", cfg.Database.Type).
		Int("count", len(prompts)).
		Msg("Starting seeder")
	return seed(ctx, st, prompts)
}

func main() {
	app := &cli.App{
		Name:  "seeder",
		Usage: "Fill the catalog database with demo shops, prompts and reviews",
		Flags: append(config.Flags(),
			&cli.IntFlag{
				Name:  "extra",
				Usage: "Number of random prompts to add after the fixed demo set",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for the random prompts; unset picks a random seed",
			},
		),
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Application failed")
	}
}
