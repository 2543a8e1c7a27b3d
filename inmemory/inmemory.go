// Package inmemory is a process-local prompt index. It accepts the same
// writes as the Elasticsearch index and answers queries with the same field
// weighting, which makes it a stand-in for the first search tier.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/promptplace"
)

// Field weights follow the multi_match boosts of the Elasticsearch tier.
const (
	titleWeight  = 3
	otherWeights = 1
)

// Index holds named collections of listings.
type Index struct {
	mu      sync.RWMutex
	indexes map[string]map[string]promptplace.SearchResult
	down    bool
}

func New() *Index {
	return &Index{indexes: make(map[string]map[string]promptplace.SearchResult)}
}

// SetDown makes Ping and Search fail, simulating an unreachable cluster.
func (x *Index) SetDown(down bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.down = down
}

func (x *Index) Ping(ctx context.Context) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.down {
		return errors.WithSecondaryError(promptplace.ErrBackendUnavailable, errors.New("in-memory index is down"))
	}
	return nil
}

// EnsureIndex creates the named collection and reports whether it was new.
func (x *Index) EnsureIndex(ctx context.Context, indexName string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.indexes[indexName]; ok {
		return false, nil
	}
	x.indexes[indexName] = make(map[string]promptplace.SearchResult)
	return true, nil
}

// IndexDocument upserts a normalised listing.
func (x *Index) IndexDocument(ctx context.Context, indexName string, doc promptplace.SearchResult) error {
	if doc.ID == "" {
		return errors.New("document id is empty")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	idx, ok := x.indexes[indexName]
	if !ok {
		return errors.Newf("index %q does not exist", indexName)
	}
	idx[doc.ID] = promptplace.Normalize(doc)
	return nil
}

// DeleteDocument removes a listing. Unknown ids are ignored.
func (x *Index) DeleteDocument(ctx context.Context, indexName, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.indexes[indexName], id)
	return nil
}

// DocumentIDs lists the ids in the named collection in sorted order.
func (x *Index) DocumentIDs(ctx context.Context, indexName string) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	idx, ok := x.indexes[indexName]
	if !ok {
		return nil, errors.Newf("index %q does not exist", indexName)
	}
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Refresh is a no-op; writes are visible immediately.
func (x *Index) Refresh(ctx context.Context, indexName string) error {
	return nil
}

// Size returns the number of documents in the named collection.
func (x *Index) Size(indexName string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.indexes[indexName])
}

// Searcher returns a promptplace.Searcher over one collection.
func (x *Index) Searcher(indexName string) *Searcher {
	return &Searcher{index: x, name: indexName}
}

type Searcher struct {
	index *Index
	name  string
}

func (s *Searcher) Ping(ctx context.Context) error {
	return s.index.Ping(ctx)
}

type scored struct {
	result promptplace.SearchResult
	score  int
}

// Search ranks listings by how many query terms they contain, counting title
// matches three times.
func (s *Searcher) Search(ctx context.Context, query string, opts ...promptplace.SearchOption) (*promptplace.Results, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return nil, promptplace.ErrCanceled
	default:
	}
	if err := s.index.Ping(ctx); err != nil {
		return nil, err
	}

	cfg := promptplace.NewSearchConfig(opts...)
	terms := strings.Fields(strings.ToLower(query))

	s.index.mu.RLock()
	var matches []scored
	for _, doc := range s.index.indexes[s.name] {
		if score := scoreDocument(doc, terms); score > 0 {
			matches = append(matches, scored{result: doc, score: score})
		}
	}
	s.index.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.result.Rating != b.result.Rating {
			return a.result.Rating > b.result.Rating
		}
		return a.result.ID < b.result.ID
	})

	total := int64(len(matches))
	start := min(cfg.Offset, len(matches))
	end := min(start+cfg.Limit, len(matches))

	items := make([]promptplace.SearchResult, 0, end-start)
	for _, m := range matches[start:end] {
		items = append(items, m.result)
	}
	return &promptplace.Results{
		Items: items,
		Total: total,
		Took:  time.Since(startTime).Milliseconds(),
		Query: query,
	}, nil
}

func scoreDocument(doc promptplace.SearchResult, terms []string) int {
	title := strings.ToLower(doc.Title)
	rest := []string{
		strings.ToLower(doc.Description),
		strings.ToLower(doc.Category),
		strings.ToLower(doc.SellerName),
	}

	score := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += titleWeight
		}
		for _, field := range rest {
			if strings.Contains(field, term) {
				score += otherWeights
			}
		}
	}
	return score
}
