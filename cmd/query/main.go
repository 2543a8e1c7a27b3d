package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/promptplace"
	"github.com/letmevibethatforyou/promptplace/elastic"
	"github.com/letmevibethatforyou/promptplace/internal/app"
	"github.com/letmevibethatforyou/promptplace/internal/config"
)

const defaultTimeout = 5 * time.Second

func main() {
	flags := append(config.Flags(),
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   "Query string to search for; positional arg is a fallback",
		},
		&cli.StringFlag{
			Name:  "tier",
			Usage: "Backend to query: all, elasticsearch, full-text or substring",
			Value: "all",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Maximum number of results to return",
			Value:   promptplace.DefaultLimit,
		},
		&cli.IntFlag{
			Name:    "offset",
			Aliases: []string{"o"},
			Usage:   "Number of results to skip; ignored by the resolver",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for the search request",
			Value: defaultTimeout,
		},
	)

	cliApp := &cli.App{
		Name:   "query",
		Usage:  "Run a search against the tier chain or a single tier",
		Flags:  flags,
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
	log, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	ctx := log.WithContext(c.Context)

	query := strings.TrimSpace(c.String("query"))
	if query == "" && c.NArg() > 0 {
		query = strings.TrimSpace(c.Args().First())
	}

	limit := c.Int("limit")
	if limit <= 0 {
		log.Warn().Int("limit", limit).Int("default", promptplace.DefaultLimit).Msg("limit must be positive; falling back to default")
		limit = promptplace.DefaultLimit
	}
	offset := c.Int("offset")
	if offset < 0 {
		log.Warn().Int("offset", offset).Msg("offset cannot be negative; resetting to 0")
		offset = 0
	}
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	searcher, err := pickSearcher(a, c.String("tier"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info().
		Str("tier", c.String("tier")).
		Str("query", query).
		Int("limit", limit).
		Int("offset", offset).
		Dur("timeout", timeout).
		Msg("Executing query")

	results, err := searcher.Search(ctx, query, promptplace.WithLimit(limit), promptplace.WithOffset(offset))
	if err != nil {
		return errors.Wrap(err, "search failed")
	}
	return printResults(results)
}

func pickSearcher(a *app.App, tier string) (promptplace.Searcher, error) {
	switch tier {
	case "all", "":
		return a.Resolver, nil
	case app.TierElastic:
		if a.Elastic == nil {
			return nil, app.ErrSearchIndexDisabled
		}
		return elastic.NewSearcher(a.Elastic, a.Config.Elastic.Index), nil
	case app.TierFullText:
		return a.Store.FullTextSearcher(), nil
	case app.TierSubstring:
		return a.Store.SubstringSearcher(), nil
	default:
		return nil, errors.Newf("unknown tier %q", tier)
	}
}

func printResults(res *promptplace.Results) error {
	if res == nil {
		fmt.Println("{}")
		return nil
	}

	payload := struct {
		Total int64                      `json:"total"`
		Took  int64                      `json:"took_ms"`
		Query string                     `json:"query"`
		Tier  string                     `json:"tier,omitempty"`
		Items []promptplace.SearchResult `json:"items"`
	}{
		Total: res.Total,
		Took:  res.Took,
		Query: res.Query,
		Tier:  res.Tier,
		Items: res.Items,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	fmt.Println(string(data))
	return nil
}
