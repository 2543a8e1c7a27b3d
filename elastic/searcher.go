package elastic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/promptplace"
)

// searchFields are matched by every query, with the title weighted highest.
var searchFields = []string{"title^3", "description", "category", "sellerName"}

// Searcher implements the promptplace.Searcher interface using Elasticsearch.
type Searcher struct {
	client    *Client
	indexName string
}

// NewSearcher creates a new Elasticsearch searcher for the specified index.
func NewSearcher(client *Client, indexName string) *Searcher {
	return &Searcher{
		client:    client,
		indexName: indexName,
	}
}

// Ping implements promptplace.Prober.
func (s *Searcher) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Search implements the promptplace.Searcher interface with a fuzzy
// multi_match query.
func (s *Searcher) Search(ctx context.Context, query string, opts ...promptplace.SearchOption) (*promptplace.Results, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return nil, promptplace.ErrCanceled
	default:
	}

	cfg := promptplace.NewSearchConfig(opts...)

	body, err := json.Marshal(buildSearchBody(query, cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode search body")
	}

	res, err := s.client.search(ctx, s.indexName, body)
	if err != nil {
		if ctxErr := promptplace.ContextError(err); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, promptplace.ErrBackendUnavailable) {
			return nil, err
		}
		return nil, errors.WithSecondaryError(
			promptplace.ErrBackendUnavailable,
			errors.Wrapf(err, "Elasticsearch search failed"),
		)
	}

	results := &promptplace.Results{
		Items: make([]promptplace.SearchResult, 0, len(res.Hits.Hits)),
		Total: res.Hits.Total.Value,
		Query: query,
		Took:  time.Since(startTime).Milliseconds(),
	}
	for _, hit := range res.Hits.Hits {
		results.Items = append(results.Items, hit.Source.Result(hit.ID))
	}

	return results, nil
}

// buildSearchBody renders the request body for a query.
func buildSearchBody(query string, cfg *promptplace.SearchConfig) map[string]any {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    searchFields,
				"fuzziness": "AUTO",
			},
		},
		"size": cfg.Limit,
	}
	if cfg.Offset > 0 {
		body["from"] = cfg.Offset
	}
	return body
}
