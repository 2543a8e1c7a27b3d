// Package config builds the process configuration from an optional YAML file,
// command line flags and environment variables. The result is constructed
// once at startup and passed explicitly to every component.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr        = ":8080"
	DefaultIndex       = "prompts"
	DefaultDemoDB      = "promptplace-demo.db"
	DefaultUploadsDir  = "uploads"
	DefaultTimeout     = 10 * time.Second
)

type Database struct {
	Type string `yaml:"type"`
	URI  string `yaml:"uri"`
}

type Elastic struct {
	Node      string `yaml:"node"`
	APIKey    string `yaml:"api_key"`
	SecretARN string `yaml:"secret_arn"`
	Env       string `yaml:"env"`
	Index     string `yaml:"index"`
}

// Enabled reports whether any source of cluster settings is configured.
func (e Elastic) Enabled() bool {
	return e.Node != "" || e.SecretARN != "" || e.Env != ""
}

type Stripe struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
}

type Uploads struct {
	// Dir is the local directory used in demo mode.
	Dir string `yaml:"dir"`
	// Bucket is the S3 bucket used in production.
	Bucket string `yaml:"bucket"`
	// PublicURL prefixes object keys in returned URLs.
	PublicURL string `yaml:"public_url"`
}

type Auth struct {
	// PublicKey is the PEM encoded RSA key session tokens are verified with.
	PublicKey     string `yaml:"public_key"`
	PublicKeyFile string `yaml:"public_key_file"`
	Issuer        string `yaml:"issuer"`
}

type Config struct {
	Demo          bool          `yaml:"demo"`
	Addr          string        `yaml:"addr"`
	AppURL        string        `yaml:"app_url"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	SearchTimeout time.Duration `yaml:"search_timeout"`

	Database Database `yaml:"database"`
	Elastic  Elastic  `yaml:"elasticsearch"`
	Stripe   Stripe   `yaml:"stripe"`
	Uploads  Uploads  `yaml:"uploads"`
	Auth     Auth     `yaml:"auth"`
}

// Load reads a YAML file. An empty path yields the zero config.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, nil
}

// ApplyDefaults fills unset values. Demo mode defaults to a local SQLite
// database and upload directory; production defaults to Postgres.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = zerolog.LevelInfoValue
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultTimeout
	}
	if c.Elastic.Index == "" {
		c.Elastic.Index = DefaultIndex
	}
	if c.Demo {
		if c.Database.Type == "" {
			c.Database.Type = "sqlite3"
		}
		if c.Database.URI == "" {
			c.Database.URI = DefaultDemoDB
		}
		if c.Uploads.Dir == "" {
			c.Uploads.Dir = DefaultUploadsDir
		}
	} else if c.Database.Type == "" {
		c.Database.Type = "postgres"
	}
}

// ValidateData reports settings missing for commands that only touch the
// catalog database and the search index.
func (c *Config) ValidateData() error {
	if c.Database.URI == "" {
		return errors.New("database URI is required")
	}
	return nil
}

// Validate reports settings the HTTP API cannot run without in production.
func (c *Config) Validate() error {
	if err := c.ValidateData(); err != nil {
		return err
	}
	if c.Demo {
		return nil
	}
	var missing []string
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "stripe secret key")
	}
	if c.Uploads.Bucket == "" {
		missing = append(missing, "uploads bucket")
	}
	if c.Auth.PublicKey == "" && c.Auth.PublicKeyFile == "" {
		missing = append(missing, "auth public key")
	}
	if len(missing) > 0 {
		return errors.Newf("production mode requires: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AuthPublicKey returns the PEM key, reading it from PublicKeyFile when no
// inline key is set.
func (c *Config) AuthPublicKey() ([]byte, error) {
	if c.Auth.PublicKey != "" {
		return []byte(c.Auth.PublicKey), nil
	}
	if c.Auth.PublicKeyFile == "" {
		return nil, errors.New("no auth public key configured")
	}
	data, err := os.ReadFile(c.Auth.PublicKeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read auth public key")
	}
	return data, nil
}

// Logger builds the process logger. Format "console" gives human readable
// output; anything else is JSON.
func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Flags are shared by every command that needs the full configuration.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file", EnvVars: []string{"PROMPTPLACE_CONFIG"}},
		&cli.BoolFlag{Name: "demo", Usage: "Run with local SQLite, demo auth, fake payments and local uploads", EnvVars: []string{"DEV_DEMO_MODE"}},
		&cli.StringFlag{Name: "addr", Usage: "HTTP listen address", EnvVars: []string{"ADDR"}},
		&cli.StringFlag{Name: "app-url", Usage: "Public URL of the web app", EnvVars: []string{"APP_URL"}},
		&cli.StringFlag{Name: "log-level", Usage: "Log level", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "log-format", Usage: "Log format: json or console", EnvVars: []string{"LOG_FORMAT"}},
		&cli.DurationFlag{Name: "search-timeout", Usage: "Deadline for a single search", EnvVars: []string{"SEARCH_TIMEOUT"}},
		&cli.StringFlag{Name: "database-type", Usage: "Database dialect: postgres or sqlite3", EnvVars: []string{"DATABASE_TYPE"}},
		&cli.StringFlag{Name: "database-url", Usage: "Database connection URI", EnvVars: []string{"DATABASE_URL"}},
		&cli.StringFlag{Name: "elasticsearch-node", Usage: "Elasticsearch node URL", EnvVars: []string{"ELASTICSEARCH_NODE"}},
		&cli.StringFlag{Name: "elasticsearch-api-key", Usage: "Elasticsearch API key", EnvVars: []string{"ELASTICSEARCH_API_KEY"}},
		&cli.StringFlag{Name: "elasticsearch-secret-arn", Usage: "ARN of an AWS Secrets Manager secret holding Elasticsearch settings", EnvVars: []string{"ELASTICSEARCH_SECRET_ARN"}},
		&cli.StringFlag{Name: "env", Usage: "Environment name for AWS Secrets Manager lookups", EnvVars: []string{"ENV", "ENVIRONMENT"}},
		&cli.StringFlag{Name: "elasticsearch-index", Usage: "Elasticsearch index name", EnvVars: []string{"ELASTICSEARCH_INDEX"}},
		&cli.StringFlag{Name: "stripe-secret-key", Usage: "Stripe secret key", EnvVars: []string{"STRIPE_SECRET_KEY"}},
		&cli.StringFlag{Name: "stripe-publishable-key", Usage: "Stripe publishable key", EnvVars: []string{"STRIPE_PUBLISHABLE_KEY"}},
		&cli.StringFlag{Name: "uploads-dir", Usage: "Local upload directory (demo mode)", EnvVars: []string{"UPLOADS_DIR"}},
		&cli.StringFlag{Name: "uploads-bucket", Usage: "S3 bucket for uploads", EnvVars: []string{"UPLOADS_BUCKET"}},
		&cli.StringFlag{Name: "uploads-public-url", Usage: "Public URL prefix of uploaded files", EnvVars: []string{"UPLOADS_PUBLIC_URL"}},
		&cli.StringFlag{Name: "auth-public-key", Usage: "PEM encoded RSA public key for session tokens", EnvVars: []string{"AUTH_PUBLIC_KEY"}},
		&cli.StringFlag{Name: "auth-public-key-file", Usage: "File holding the session token public key", EnvVars: []string{"AUTH_PUBLIC_KEY_FILE"}},
		&cli.StringFlag{Name: "auth-issuer", Usage: "Expected session token issuer", EnvVars: []string{"AUTH_ISSUER"}},
	}
}

// FromCLI loads the file named by --config, overrides it with every flag or
// environment variable that is set, applies defaults and validates
// everything the HTTP API needs.
func FromCLI(c *cli.Context) (*Config, error) {
	cfg, err := fromCLI(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DataFromCLI is FromCLI for migrations, seeding, queries and index syncs,
// which need only the database and search settings.
func DataFromCLI(c *cli.Context) (*Config, error) {
	cfg, err := fromCLI(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateData(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromCLI(c *cli.Context) (*Config, error) {
	cfg, err := Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("demo") {
		cfg.Demo = c.Bool("demo")
	}
	if c.IsSet("search-timeout") {
		cfg.SearchTimeout = c.Duration("search-timeout")
	}
	for name, dst := range map[string]*string{
		"addr":                     &cfg.Addr,
		"app-url":                  &cfg.AppURL,
		"log-level":                &cfg.LogLevel,
		"log-format":               &cfg.LogFormat,
		"database-type":            &cfg.Database.Type,
		"database-url":             &cfg.Database.URI,
		"elasticsearch-node":       &cfg.Elastic.Node,
		"elasticsearch-api-key":    &cfg.Elastic.APIKey,
		"elasticsearch-secret-arn": &cfg.Elastic.SecretARN,
		"env":                      &cfg.Elastic.Env,
		"elasticsearch-index":      &cfg.Elastic.Index,
		"stripe-secret-key":        &cfg.Stripe.SecretKey,
		"stripe-publishable-key":   &cfg.Stripe.PublishableKey,
		"uploads-dir":              &cfg.Uploads.Dir,
		"uploads-bucket":           &cfg.Uploads.Bucket,
		"uploads-public-url":       &cfg.Uploads.PublicURL,
		"auth-public-key":          &cfg.Auth.PublicKey,
		"auth-public-key-file":     &cfg.Auth.PublicKeyFile,
		"auth-issuer":              &cfg.Auth.Issuer,
	} {
		if c.IsSet(name) {
			*dst = strings.TrimSpace(c.String(name))
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
