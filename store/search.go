package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.mau.fi/util/dbutil"

	"github.com/letmevibethatforyou/promptplace"
)

const fullTextQuery = promptSelect + `
	WHERE p.status = 'Live' AND p.search_vector @@ plainto_tsquery('english', $1)
	ORDER BY ts_rank(p.search_vector, plainto_tsquery('english', $1)) DESC, rating DESC, p.id
	LIMIT $2 OFFSET $3
`

// substringQueryFormat takes the case-insensitive LIKE operator of the dialect.
const substringQueryFormat = promptSelect + `
	WHERE p.status = 'Live' AND (
		p.title %[1]s $1 ESCAPE '\' OR
		p.description %[1]s $1 ESCAPE '\' OR
		p.category %[1]s $1 ESCAPE '\'
	)
	ORDER BY rating DESC, p.created_at DESC, p.id
	LIMIT $2 OFFSET $3
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching query anywhere, with the
// query's own wildcards taken literally.
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

// FullTextSearcher ranks live prompts with Postgres full-text search over the
// weighted search_vector column.
type FullTextSearcher struct {
	store *Store
}

// FullTextSearcher returns the ranked full-text tier.
func (s *Store) FullTextSearcher() *FullTextSearcher {
	return &FullTextSearcher{store: s}
}

// Search implements promptplace.Searcher. It is unavailable on databases
// other than Postgres.
func (f *FullTextSearcher) Search(ctx context.Context, query string, opts ...promptplace.SearchOption) (*promptplace.Results, error) {
	if f.store.db.Dialect != dbutil.Postgres {
		return nil, errors.WithSecondaryError(
			promptplace.ErrBackendUnavailable,
			errors.Newf("full-text search is not supported on %s", f.store.db.Dialect),
		)
	}
	return f.store.search(ctx, "full-text", fullTextQuery, strings.TrimSpace(query), opts)
}

// SubstringSearcher matches live prompts whose title, description or
// category contains the query, ignoring case.
type SubstringSearcher struct {
	store *Store
	query string
}

// SubstringSearcher returns the terminal substring tier.
func (s *Store) SubstringSearcher() *SubstringSearcher {
	op := "LIKE"
	if s.db.Dialect == dbutil.Postgres {
		op = "ILIKE"
	}
	return &SubstringSearcher{store: s, query: fmt.Sprintf(substringQueryFormat, op)}
}

// Search implements promptplace.Searcher.
func (ss *SubstringSearcher) Search(ctx context.Context, query string, opts ...promptplace.SearchOption) (*promptplace.Results, error) {
	return ss.store.search(ctx, "substring", ss.query, containsPattern(strings.TrimSpace(query)), opts)
}

func (s *Store) search(ctx context.Context, kind, sqlQuery, arg string, opts []promptplace.SearchOption) (*promptplace.Results, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return nil, promptplace.ErrCanceled
	default:
	}

	cfg := promptplace.NewSearchConfig(opts...)
	prompts, err := s.prompts.QueryMany(ctx, sqlQuery, arg, cfg.Limit, cfg.Offset)
	if err != nil {
		if ctxErr := promptplace.ContextError(err); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(err, "%s search failed", kind)
	}

	results := &promptplace.Results{
		Items: make([]promptplace.SearchResult, 0, len(prompts)),
		Total: int64(len(prompts)),
		Took:  time.Since(startTime).Milliseconds(),
	}
	for _, p := range prompts {
		results.Items = append(results.Items, p.Result())
	}
	return results, nil
}
