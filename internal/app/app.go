// Package app wires the catalog, search tiers and the demo or production
// service implementations from a Config.
package app

import (
	"context"
	"net/http"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace"
	"github.com/letmevibethatforyou/promptplace/elastic"
	"github.com/letmevibethatforyou/promptplace/internal/auth"
	"github.com/letmevibethatforyou/promptplace/internal/config"
	"github.com/letmevibethatforyou/promptplace/internal/indexsync"
	"github.com/letmevibethatforyou/promptplace/internal/payments"
	"github.com/letmevibethatforyou/promptplace/internal/uploads"
	"github.com/letmevibethatforyou/promptplace/store"
)

// Tier names, as reported in Results.Tier.
const (
	TierElastic   = "elasticsearch"
	TierFullText  = "full-text"
	TierSubstring = "substring"
)

// App holds every long-lived component. Fields are set once by New.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Store    *store.Store
	Elastic  *elastic.Client
	Resolver *promptplace.Resolver

	Auth     auth.Authenticator
	Sessions *auth.DemoSessions
	Payments payments.Processor
	Uploads  uploads.Uploader
}

// Open builds the data side of the App: the catalog store, the
// Elasticsearch client when one is configured and the resolver over them.
// Auth, payments and uploads stay nil.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	st, err := store.Open(ctx, cfg.Database.Type, cfg.Database.URI, log)
	if err != nil {
		return nil, err
	}
	a.Store = st

	if cfg.Elastic.Enabled() {
		fetch, err := ElasticSecrets(ctx, cfg)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.Elastic = elastic.NewClient(fetch)
	}

	a.Resolver, err = NewResolver(a.Store, a.Elastic, cfg.Elastic.Index)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// New opens the data side and builds the services selected by cfg.Demo.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.Demo {
		LogDemoBanner(log)
	}

	a, err := Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Demo {
		a.Sessions = &auth.DemoSessions{}
		a.Auth = a.Sessions
		a.Payments = &payments.Demo{Delay: payments.DefaultDemoDelay}
		a.Uploads = &uploads.Local{Dir: cfg.Uploads.Dir}
		return a, nil
	}

	if err := a.productionServices(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) productionServices(ctx context.Context) error {
	cfg := a.Config

	key, err := cfg.AuthPublicKey()
	if err != nil {
		return err
	}
	verifier, err := auth.NewTokenVerifier(key, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	a.Auth = verifier

	a.Payments = payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.PublishableKey,
		payments.Backends("", a.Log.With().Str("component", "stripe").Logger()))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}
	a.Uploads = uploads.NewS3(s3.NewFromConfig(awsCfg), cfg.Uploads.Bucket, cfg.Uploads.PublicURL)
	return nil
}

// NewResolver builds the three tier chain. A nil es leaves the first tier
// unconfigured so it is skipped.
func NewResolver(st *store.Store, es *elastic.Client, indexName string) (*promptplace.Resolver, error) {
	var first promptplace.Searcher
	if es != nil {
		first = elastic.NewSearcher(es, indexName)
	}
	return promptplace.NewResolver([]promptplace.Tier{
		{Name: TierElastic, Searcher: first},
		{Name: TierFullText, Searcher: st.FullTextSearcher()},
		{Name: TierSubstring, Searcher: st.SubstringSearcher(), Terminal: true},
	}, promptplace.WithResultCap(promptplace.DefaultLimit))
}

// ElasticSecrets picks the credential source: a secret ARN, then the
// "{env}/elasticsearch" secret, then the configured node.
func ElasticSecrets(ctx context.Context, cfg *config.Config) (elastic.FetchSecrets, error) {
	es := cfg.Elastic
	if es.SecretARN == "" && es.Env == "" {
		return elastic.StaticSecrets(es.Node, es.APIKey), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	client := secretsmanager.NewFromConfig(awsCfg)
	if es.SecretARN != "" {
		return elastic.AWSSecretsFromARN(ctx, client, es.SecretARN), nil
	}
	return elastic.AWSSecrets(ctx, client, es.Env), nil
}

// ErrSearchIndexDisabled is returned by SyncIndex when no cluster is
// configured.
var ErrSearchIndexDisabled = errors.New("elasticsearch is not configured")

// SyncIndex copies every live prompt into the search index.
func (a *App) SyncIndex(ctx context.Context, opts ...indexsync.Option) (*indexsync.Report, error) {
	if a.Elastic == nil {
		return nil, ErrSearchIndexDisabled
	}
	return indexsync.New(a.Store, a.Elastic, a.Config.Elastic.Index, opts...).Run(ctx)
}

// LookupUser returns the public profile for a user id. Outside demo mode
// only the id is known without a session.
func (a *App) LookupUser(id string) auth.User {
	if a.Config.Demo {
		return auth.LookupDemoUser(id)
	}
	return auth.User{
		ID:        id,
		FirstName: "User",
		ImageURL:  auth.DefaultAvatar,
		Role:      auth.RoleBuyer,
	}
}

// UploadsHandler serves the local upload directory in demo mode and is nil
// otherwise.
func (a *App) UploadsHandler() http.Handler {
	if _, ok := a.Uploads.(*uploads.Local); !ok {
		return nil
	}
	return http.StripPrefix(uploads.URLPrefix, http.FileServer(http.Dir(a.Config.Uploads.Dir)))
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

var bannerOnce sync.Once

// LogDemoBanner announces demo mode. Only the first call logs.
func LogDemoBanner(log zerolog.Logger) {
	bannerOnce.Do(func() {
		log.Info().Msg("[DEMO MODE] Running with local services")
		log.Info().Msg("Authentication: Local demo users")
		log.Info().Msg("Uploads: Local file storage")
		log.Info().Msg("Payments: Simulated checkout")
	})
}
