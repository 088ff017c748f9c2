package parser

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
	"Sentinel6G/internal/ports"
)

// Fetcher acquires the raw payload of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source domain.Source) fetcher.Outcome
}

// StrategySource implements ArticleSource by running every configured source
// through the fetch orchestrator and the feed parser on a bounded pool.
type StrategySource struct {
	fetcher Fetcher
	parser  *FeedParser
	sources []domain.Source
	workers int
	logger  *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the orchestrator with config-defined sources.
func NewStrategySource(f Fetcher, p *FeedParser, sources []domain.Source, workers int, log *slog.Logger) *StrategySource {
	if workers <= 0 {
		workers = 5
	}
	return &StrategySource{
		fetcher: f,
		parser:  p,
		sources: sources,
		workers: workers,
		logger:  log,
	}
}

// Collect fetches and parses all sources. Failures stay inside the batch
// report; the result keeps configuration order whatever the completion order.
func (s *StrategySource) Collect(ctx context.Context) []domain.SourceBatch {
	s.debug("collect", "sources", len(s.sources), "workers", s.workers)

	batches := make([]domain.SourceBatch, len(s.sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, source := range s.sources {
		g.Go(func() error {
			batches[i] = s.collectOne(gctx, source)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, b := range batches {
		total += len(b.Articles)
	}
	s.debug("strategy source done", "total_articles", total)
	return batches
}

func (s *StrategySource) collectOne(ctx context.Context, source domain.Source) domain.SourceBatch {
	batch := domain.SourceBatch{
		Source: source,
		Report: domain.FetchReport{Source: source.Name, Domain: source.Domain()},
	}

	out := s.fetcher.Fetch(ctx, source)
	batch.Report.Strategy = out.Strategy
	batch.Report.Outcome = out.Kind.String()
	batch.Report.StatusCode = out.StatusCode
	batch.Report.Reason = out.Reason
	batch.Report.Attempts = out.Attempts
	batch.Report.Escalated = out.Escalated
	if err := out.Err(source.Name); err != nil {
		batch.Err = err
		s.debug("source failed", "error", err, "attempts", out.Attempts)
		return batch
	}

	for article, err := range s.parser.Parse(out.Payload, source) {
		if err != nil {
			batch.Report.ParseErrors++
			var pe *domain.ParseError
			if errors.As(err, &pe) && pe.Index < 0 {
				batch.Report.Reason = pe.Reason
			}
			s.debug("skip entry", "source", source.Name, "error", err)
			continue
		}
		batch.Articles = append(batch.Articles, article)
	}
	batch.Report.Articles = len(batch.Articles)
	s.debug("source produced articles", "source", source.Name, "strategy", out.Strategy, "count", len(batch.Articles))
	return batch
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
