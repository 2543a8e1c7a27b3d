package promptplace

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tier is one candidate backend in a Resolver's fallback chain.
type Tier struct {
	// Name identifies the tier in logs, spans and Results.Tier.
	Name string

	// Searcher answers queries for this tier. A nil Searcher on a
	// non-terminal tier means the backend is not configured and the tier is
	// skipped.
	Searcher Searcher

	// Terminal marks the last tier. Its answer is returned even when empty
	// and its error is the only one surfaced to the caller.
	Terminal bool
}

// Resolver tries its tiers in order until one answers.
//
// A non-terminal tier answers when it returns at least one result without
// error. Tiers implementing Prober are pinged first and skipped when the
// probe fails. The terminal tier always answers.
type Resolver struct {
	tiers  []Tier
	limit  int
	tracer trace.Tracer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResultCap sets the fixed result cap N. NewResolver rejects values
// below 1 with ErrInvalidOption.
func WithResultCap(n int) ResolverOption {
	return func(r *Resolver) {
		r.limit = n
	}
}

// NewResolver builds a resolver over tiers. Exactly one tier must be
// terminal, it must come last, and it must have a Searcher.
func NewResolver(tiers []Tier, opts ...ResolverOption) (*Resolver, error) {
	if len(tiers) == 0 {
		return nil, errors.WithSecondaryError(ErrInvalidTiers, errors.New("no tiers"))
	}
	for i, tier := range tiers {
		last := i == len(tiers)-1
		if tier.Terminal && !last {
			return nil, errors.WithSecondaryError(ErrInvalidTiers,
				errors.Newf("terminal tier %q is not last", tier.Name))
		}
		if last && !tier.Terminal {
			return nil, errors.WithSecondaryError(ErrInvalidTiers,
				errors.Newf("last tier %q is not terminal", tier.Name))
		}
		if last && tier.Searcher == nil {
			return nil, errors.WithSecondaryError(ErrInvalidTiers,
				errors.Newf("terminal tier %q has no searcher", tier.Name))
		}
	}

	r := &Resolver{
		tiers:  append([]Tier(nil), tiers...),
		limit:  DefaultLimit,
		tracer: otel.Tracer("promptplace-resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.limit < 1 {
		return nil, errors.WithSecondaryError(ErrInvalidOption,
			errors.Newf("result cap %d is not positive", r.limit))
	}
	return r, nil
}

// Limit returns the fixed result cap N.
func (r *Resolver) Limit() int {
	return r.limit
}

// Search implements the Searcher interface. Blank queries return an empty
// result without consulting any tier. A caller-supplied limit can lower the
// cap but never raise it above N.
func (r *Resolver) Search(ctx context.Context, query string, opts ...SearchOption) (*Results, error) {
	startTime := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return &Results{Items: []SearchResult{}, Query: query}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ErrCanceled
	default:
	}

	limit := r.limit
	if cfg := NewSearchConfig(opts...); cfg.Limit < limit {
		limit = cfg.Limit
	}

	log := zerolog.Ctx(ctx)
	for _, tier := range r.tiers {
		res, err := r.try(ctx, tier, query, limit)
		if tier.Terminal {
			if err != nil {
				log.Err(err).Str("tier", tier.Name).Msg("Terminal search tier failed")
				return nil, errors.WithSecondaryError(ErrSearchFailed, err)
			}
			return finish(res, tier.Name, query, limit, startTime), nil
		}
		if err != nil {
			log.Warn().Err(err).Str("tier", tier.Name).Msg("Search tier unavailable, falling back")
			continue
		}
		if len(res.Items) == 0 {
			log.Debug().Str("tier", tier.Name).Msg("Search tier returned no hits, falling back")
			continue
		}
		return finish(res, tier.Name, query, limit, startTime), nil
	}

	// NewResolver guarantees a terminal tier.
	return nil, ErrInvalidTiers
}

// try runs a single tier, probing it first when it supports probing.
func (r *Resolver) try(ctx context.Context, tier Tier, query string, limit int) (*Results, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.tier",
		trace.WithAttributes(
			attribute.String("search.tier", tier.Name),
			attribute.Bool("search.terminal", tier.Terminal),
		),
	)
	defer span.End()

	if tier.Searcher == nil {
		span.SetStatus(codes.Error, "not configured")
		return nil, errors.WithSecondaryError(ErrBackendUnavailable,
			errors.Newf("tier %s is not configured", tier.Name))
	}

	if prober, ok := tier.Searcher.(Prober); ok {
		if err := prober.Ping(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "probe failed")
			return nil, errors.WithSecondaryError(ErrBackendUnavailable,
				errors.Wrapf(err, "probe of tier %s failed", tier.Name))
		}
	}

	res, err := tier.Searcher.Search(ctx, query, WithLimit(limit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	if res == nil {
		res = &Results{}
	}

	span.SetAttributes(attribute.Int("search.hits", len(res.Items)))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// finish copies at most limit items out of res, normalising each one.
func finish(res *Results, tier, query string, limit int, startTime time.Time) *Results {
	n := len(res.Items)
	if n > limit {
		n = limit
	}
	items := make([]SearchResult, 0, n)
	for _, item := range res.Items[:n] {
		items = append(items, Normalize(item))
	}
	return &Results{
		Items: items,
		Total: res.Total,
		Took:  time.Since(startTime).Milliseconds(),
		Query: query,
		Tier:  tier,
	}
}
