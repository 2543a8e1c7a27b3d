// Package indexsync copies every live prompt from the catalog database into
// the Elasticsearch index and removes documents that are no longer live.
package indexsync

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace"
)

// Source yields the documents to index.
type Source interface {
	IndexDocuments(ctx context.Context) ([]promptplace.SearchResult, error)
}

// Target is the index being populated. *elastic.Client implements it.
type Target interface {
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context, indexName string) (bool, error)
	IndexDocument(ctx context.Context, indexName string, doc promptplace.SearchResult) error
	DocumentIDs(ctx context.Context, indexName string) ([]string, error)
	DeleteDocument(ctx context.Context, indexName, id string) error
	Refresh(ctx context.Context, indexName string) error
}

// Report summarises a sync run.
type Report struct {
	Total        int           `json:"total"`
	Indexed      int           `json:"indexed"`
	Removed      int           `json:"removed"`
	Failed       int           `json:"failed"`
	IndexCreated bool          `json:"index_created"`
	Duration     time.Duration `json:"duration"`
}

type Option func(*Syncer)

// WithPoolSize sets how many documents are indexed concurrently.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Syncer) {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
	}
}

type Syncer struct {
	source    Source
	target    Target
	indexName string
	poolSize  int
}

func New(source Source, target Target, indexName string, opts ...Option) *Syncer {
	s := &Syncer{
		source:    source,
		target:    target,
		indexName: indexName,
		poolSize:  max(runtime.NumCPU(), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run pings the cluster, creates the index if needed, indexes every document,
// deletes indexed documents missing from the source and refreshes the index.
// Individual document failures are counted, not returned.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	log := zerolog.Ctx(ctx).With().Str("index", s.indexName).Logger()
	start := time.Now()

	if err := s.target.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "elasticsearch is not reachable")
	}

	created, err := s.target.EnsureIndex(ctx, s.indexName)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Msg("Created search index")
	}

	docs, err := s.source.IndexDocuments(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load prompts")
	}
	log.Info().Int("count", len(docs)).Msg("Indexing live prompts")

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker pool")
	}
	defer pool.Release()

	var failed atomic.Int64
	live := make(map[string]struct{}, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		live[doc.ID] = struct{}{}
		ids[i] = doc.ID
	}

	indexed := runEach(pool, ids, &failed, func(i int, id string) error {
		if err := s.target.IndexDocument(ctx, s.indexName, docs[i]); err != nil {
			log.Warn().Err(err).Str("prompt_id", id).Msg("Failed to index prompt")
			return err
		}
		return nil
	})

	existing, err := s.target.DocumentIDs(ctx, s.indexName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list indexed prompts")
	}
	var stale []string
	for _, id := range existing {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	removed := runEach(pool, stale, &failed, func(_ int, id string) error {
		if err := s.target.DeleteDocument(ctx, s.indexName, id); err != nil {
			log.Warn().Err(err).Str("prompt_id", id).Msg("Failed to remove prompt from index")
			return err
		}
		return nil
	})

	if err := s.target.Refresh(ctx, s.indexName); err != nil {
		return nil, err
	}

	report := &Report{
		Total:        len(docs),
		Indexed:      indexed,
		Removed:      removed,
		Failed:       int(failed.Load()),
		IndexCreated: created,
		Duration:     time.Since(start),
	}
	log.Info().
		Int("indexed", report.Indexed).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Index sync finished")
	return report, nil
}

// runEach calls fn for every id on the pool and returns how many calls
// succeeded. Failures, including ones the pool refused to schedule, are
// added to failed.
func runEach(pool *ants.Pool, ids []string, failed *atomic.Int64, fn func(i int, id string) error) int {
	var (
		wg sync.WaitGroup
		ok atomic.Int64
	)
	for i, id := range ids {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if fn(i, id) != nil {
				failed.Add(1)
				return
			}
			ok.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
		}
	}
	wg.Wait()
	return int(ok.Load())
}
