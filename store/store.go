// Package store keeps the prompt catalog in a relational database and serves
// the full-text and substring search tiers from it.
package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	"github.com/letmevibethatforyou/promptplace/store/upgrades"
)

// Store is the catalog database.
type Store struct {
	db      *dbutil.Database
	prompts *dbutil.QueryHelper[*Prompt]
	shops   *dbutil.QueryHelper[*Shop]
	reviews *dbutil.QueryHelper[*Review]
}

// DriverName maps a configured dialect onto the registered database/sql
// driver name.
func DriverName(dialect string) (string, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", errors.Newf("unsupported database dialect %q", dialect)
	}
}

// Open connects to the database, applies pending schema upgrades and returns
// the store.
func Open(ctx context.Context, dialect, uri string, log zerolog.Logger) (*Store, error) {
	driver, err := DriverName(dialect)
	if err != nil {
		return nil, err
	}

	db, err := dbutil.NewWithDialect(uri, driver)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", driver)
	}
	if db.Dialect == dbutil.SQLite {
		// In-memory databases exist per connection.
		db.RawDB.SetMaxOpenConns(1)
	}
	db.Log = dbutil.ZeroLogger(log.With().Str("db_section", "catalog").Logger())
	db.UpgradeTable = upgrades.Table

	if err := db.Upgrade(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to upgrade database")
	}
	return New(db), nil
}

// New wraps an already upgraded database.
func New(db *dbutil.Database) *Store {
	return &Store{
		db:      db,
		prompts: dbutil.MakeQueryHelper(db, newPrompt),
		shops:   dbutil.MakeQueryHelper(db, newShop),
		reviews: dbutil.MakeQueryHelper(db, newReview),
	}
}

// Dialect reports which database engine backs the store.
func (s *Store) Dialect() dbutil.Dialect {
	return s.db.Dialect
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.RawDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database ping failed")
	}
	return nil
}

// Close releases the database connections.
func (s *Store) Close() error {
	return s.db.Close()
}
