package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"Sentinel6G/internal/aggregate"
	"Sentinel6G/internal/analysis"
	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/filter"
	"Sentinel6G/internal/ports"
)

// Recorder receives pipeline counters.
type Recorder interface {
	Article(decision string)
	OracleCall(status string)
	Profile(degraded bool)
	Aggregation(records, excluded int)
}

type nopRecorder struct{}

func (nopRecorder) Article(string)       {}
func (nopRecorder) OracleCall(string)    {}
func (nopRecorder) Profile(bool)         {}
func (nopRecorder) Aggregation(int, int) {}

// Options bounds the pipeline.
type Options struct {
	OracleConcurrency int
	RequestsPerMinute int
	OracleTimeout     time.Duration
	RunTimeout        time.Duration
	// MaxArticles caps the articles analysed per run; the rest stay unseen
	// and are picked up by the next run. Zero means no cap.
	MaxArticles int
	// HistoryWindows limits how many windows of archived profiles feed the
	// aggregation. Zero reads the whole archive.
	HistoryWindows int
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source    ports.ArticleSource
	Filter    *filter.Filter
	Seen      ports.SeenStore
	Oracle    ports.Oracle
	Ingestor  *analysis.Ingestor
	Engine    *aggregate.Engine
	Archive   ports.ProfileArchive
	Artifacts ports.ArtifactWriter
	Notifier  ports.Notifier
	// Standards is optional; without it the digest has no standardization block.
	Standards ports.StandardsTracker
	Metrics   Recorder
	// Persist is saved when a run ends, interrupted runs included.
	Persist  []ports.Persister
	Logger   *slog.Logger
	Now      func() time.Time
	NewRunID func() string
	Options  Options
}

// Pipeline implements the monthly acquisition-and-aggregation run.
type Pipeline struct {
	source    ports.ArticleSource
	filter    *filter.Filter
	seen      ports.SeenStore
	oracle    ports.Oracle
	ingestor  *analysis.Ingestor
	engine    *aggregate.Engine
	archive   ports.ProfileArchive
	artifacts ports.ArtifactWriter
	notifier  ports.Notifier
	standards ports.StandardsTracker
	metrics   Recorder
	persist   []ports.Persister
	logger    *slog.Logger
	now       func() time.Time
	newRunID  func() string
	opts      Options
	limiter   *rate.Limiter
}

// RunSummary counts what one run did.
type RunSummary struct {
	RunID         string
	Sources       int
	FailedSources int
	Candidates    int
	Selected      int
	Analyzed      int
	Degraded      int
	Records       int
	Excluded      int
	Meetings      int
}

type candidate struct {
	article  domain.Article
	fp       domain.Fingerprint
	score    int
	relevant bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:    deps.Source,
		filter:    deps.Filter,
		seen:      deps.Seen,
		oracle:    deps.Oracle,
		ingestor:  deps.Ingestor,
		engine:    deps.Engine,
		archive:   deps.Archive,
		artifacts: deps.Artifacts,
		notifier:  deps.Notifier,
		standards: deps.Standards,
		metrics:   deps.Metrics,
		persist:   deps.Persist,
		logger:    deps.Logger,
		now:       deps.Now,
		newRunID:  deps.NewRunID,
		opts:      deps.Options,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.filter == nil {
		p.filter = filter.New(filter.Config{})
	}
	if p.ingestor == nil {
		p.ingestor = analysis.NewIngestor(p.now, p.logger)
	}
	if p.engine == nil {
		p.engine = aggregate.NewEngine(aggregate.DefaultConfig())
	}
	if p.metrics == nil {
		p.metrics = nopRecorder{}
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	if p.opts.OracleConcurrency <= 0 {
		p.opts.OracleConcurrency = 3
	}
	limit := rate.Inf
	if p.opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(p.opts.RequestsPerMinute))
	}
	p.limiter = rate.NewLimiter(limit, 1)
	return p
}

// Run performs one batch: collect, filter, analyse, aggregate, publish.
// Only a failed artifact publish or store save is returned as an error;
// when the run deadline fires, completed work is still published and the
// deadline error is returned afterwards.
func (p *Pipeline) Run(ctx context.Context) (summary RunSummary, err error) {
	if p.source == nil || p.artifacts == nil {
		return summary, errors.New("pipeline misconfigured")
	}

	started := p.now()
	summary.RunID = p.newRunID()
	log := p.logger.With("run_id", summary.RunID)

	runCtx := ctx
	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	defer func() {
		if perr := p.save(); perr != nil {
			err = errors.Join(err, perr)
		}
	}()

	var (
		standards *domain.Standardization
		wg        sync.WaitGroup
	)
	if p.standards != nil {
		wg.Go(func() {
			s := p.standards.Recent(runCtx)
			standards = &s
		})
	}

	batches := p.source.Collect(runCtx)
	reports := make([]domain.FetchReport, 0, len(batches))
	for _, b := range batches {
		reports = append(reports, b.Report)
		if b.Report.Outcome != "success" {
			summary.FailedSources++
			log.Warn("source unavailable", "source", b.Source.Name, "outcome", b.Report.Outcome,
				"attempts", b.Report.Attempts, "error", b.Err)
		}
	}
	summary.Sources = len(batches)

	candidates, settled := p.selectCandidates(batches, started, &summary)
	summary.Selected = len(candidates)
	log.Info("candidates selected", "candidates", summary.Candidates, "selected", summary.Selected)

	processed := p.analyze(runCtx, candidates)
	for _, pa := range processed {
		summary.Analyzed++
		if pa.Profile.Degraded {
			summary.Degraded++
		}
	}

	interrupted := runCtx.Err()
	if interrupted != nil {
		log.Warn("run interrupted, publishing completed work", "error", interrupted)
	}
	finishCtx := context.WithoutCancel(ctx)

	profiles := make([]domain.AnalysisProfile, len(processed))
	for i, pa := range processed {
		profiles[i] = pa.Profile
	}
	if p.archive != nil {
		if err := p.archive.SaveProfiles(finishCtx, summary.RunID, profiles); err != nil {
			log.Error("archive profiles", "error", err)
		}
	}
	history, herr := p.loadHistory(finishCtx, started)
	if herr != nil {
		log.Error("load archived profiles, aggregating this run only", "error", herr)
	}

	result := p.engine.Aggregate(profiles, history)
	p.reportAggregation(log, result)
	summary.Records = len(result.Records)
	summary.Excluded = len(result.Excluded)

	// Meeting reports are read while articles are analysed.
	wg.Wait()
	if standards != nil {
		summary.Meetings = len(standards.RecentMeetings)
	}

	regional := RegionalSummary(processed)
	concepts := EmergingConcepts(processed)
	briefing := ExecutiveBriefing(BriefingInput{
		Date:      started,
		Articles:  processed,
		Summary:   regional,
		Concepts:  concepts,
		Records:   result.Records,
		Matrix:    result.Matrix,
		Reports:   reports,
		Standards: standards,
	})

	entries := make([]domain.DigestArticle, len(processed))
	for i, pa := range processed {
		entries[i] = pa.DigestEntry()
	}
	digest := domain.Digest{
		Date:              started.UTC().Format("2006-01-02"),
		Articles:          entries,
		Momentum:          result.Records,
		FlowMatrix:        result.Matrix,
		ExecutiveBriefing: briefing,
		RegionalSummary:   &regional,
		EmergingConcepts:  concepts,
		FetchReport:       reports,
		Standardization:   standards,
	}
	snapshot := domain.Snapshot{
		RunID:          summary.RunID,
		Date:           started.UTC().Format(time.RFC3339),
		ArticleCount:   summary.Analyzed,
		DegradedCount:  summary.Degraded,
		RegionalTotals: regional.TotalScores,
		Momentum:       result.Records,
	}
	if err := p.publish(result, digest, snapshot); err != nil {
		return summary, err
	}
	// Fingerprints are committed only once the artifacts carrying them exist.
	for _, fp := range settled {
		p.mark(fp)
	}
	for _, pa := range processed {
		p.mark(pa.Article.Fingerprint())
	}
	log.Info("artifacts published", "articles", summary.Analyzed, "degraded", summary.Degraded, "records", summary.Records)

	if interrupted != nil {
		return summary, fmt.Errorf("run incomplete: %w", interrupted)
	}

	if p.notifier != nil && len(processed) > 0 {
		if err := p.notifier.PublishDigest(ctx, briefing); err != nil {
			log.Warn("briefing not delivered", "error", err)
		}
	}
	return summary, nil
}

// Reaggregate recomputes momentum and the matrix from the archive alone and
// republishes both files.
func (p *Pipeline) Reaggregate(ctx context.Context) (aggregate.Result, error) {
	if p.archive == nil || p.artifacts == nil {
		return aggregate.Result{}, errors.New("reaggregate needs the profile archive")
	}
	history, err := p.loadHistory(ctx, p.now())
	if err != nil {
		return aggregate.Result{}, err
	}
	result := p.engine.Aggregate(nil, history)
	p.reportAggregation(p.logger, result)

	if err := p.artifacts.WriteMomentum(result.Records); err != nil {
		return result, fmt.Errorf("publish artifacts: %w", err)
	}
	if err := p.artifacts.WriteMatrix(result.Matrix); err != nil {
		return result, fmt.Errorf("publish artifacts: %w", err)
	}
	return result, nil
}

// selectCandidates applies dedup and freshness in source order. Without an
// oracle the keyword gate applies here too, so the cap only counts
// articles that can produce a profile; the fingerprints it settles that way
// are returned for marking after publish.
func (p *Pipeline) selectCandidates(batches []domain.SourceBatch, now time.Time, summary *RunSummary) ([]candidate, []domain.Fingerprint) {
	inRun := map[domain.Fingerprint]bool{}
	var (
		out     []candidate
		settled []domain.Fingerprint
	)
	for _, b := range batches {
		for _, a := range b.Articles {
			summary.Candidates++
			fp := a.Fingerprint()
			if inRun[fp] {
				p.metrics.Article(string(filter.SkipDuplicate))
				continue
			}
			d := p.filter.Decide(a, p.seen, now)
			if !d.Keep {
				p.metrics.Article(string(d.Reason))
				continue
			}
			inRun[fp] = true

			score, relevant := p.filter.Retain(a)
			if p.oracle == nil && !relevant {
				p.metrics.Article("irrelevant")
				settled = append(settled, fp)
				continue
			}
			out = append(out, candidate{article: a, fp: fp, score: score, relevant: relevant})
		}
	}

	if p.opts.MaxArticles > 0 && len(out) > p.opts.MaxArticles {
		for range len(out) - p.opts.MaxArticles {
			p.metrics.Article("deferred")
		}
		out = out[:p.opts.MaxArticles]
	}
	for range out {
		p.metrics.Article("kept")
	}
	return out, settled
}

// analyze runs the candidates through the oracle on a bounded pool. Results
// keep candidate order; cancelled or dropped candidates are left out.
func (p *Pipeline) analyze(ctx context.Context, candidates []candidate) []domain.ProcessedArticle {
	results := make([]*domain.ProcessedArticle, len(candidates))

	var g errgroup.Group
	g.SetLimit(p.opts.OracleConcurrency)
	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.analyzeOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.ProcessedArticle, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (p *Pipeline) analyzeOne(ctx context.Context, c candidate) *domain.ProcessedArticle {
	var (
		profile domain.AnalysisProfile
		valid   bool
	)
	if p.oracle != nil {
		raw, ok := p.consult(ctx, c.article)
		if !ok && ctx.Err() != nil {
			return nil
		}
		if ok {
			prof, err := p.ingestor.Validate(c.article, raw)
			if err != nil {
				p.logger.Warn("oracle answer rejected", "url", c.article.URL, "error", err)
			} else {
				profile, valid = prof, true
			}
		}
	}

	if !valid {
		if !c.relevant {
			// Left unseen so that the next run asks the oracle again.
			p.metrics.Article("irrelevant")
			return nil
		}
		profile = p.ingestor.Degraded(c.article, c.score)
	}

	p.metrics.Profile(profile.Degraded)
	return &domain.ProcessedArticle{Article: c.article, Profile: profile, Score: c.score}
}

func (p *Pipeline) consult(ctx context.Context, article domain.Article) ([]byte, bool) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, false
	}
	callCtx := ctx
	if p.opts.OracleTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.opts.OracleTimeout)
		defer cancel()
	}

	raw, err := p.oracle.Analyze(callCtx, article)
	if err != nil {
		p.metrics.OracleCall("error")
		p.logger.Warn("oracle call failed", "url", article.URL, "error", err)
		return nil, false
	}
	p.metrics.OracleCall("ok")
	return raw, true
}

func (p *Pipeline) mark(fp domain.Fingerprint) {
	if p.seen != nil {
		p.seen.Mark(fp)
	}
}

func (p *Pipeline) loadHistory(ctx context.Context, now time.Time) ([]domain.AnalysisProfile, error) {
	if p.archive == nil {
		return nil, nil
	}
	var since time.Time
	if p.opts.HistoryWindows > 0 {
		since = domain.WindowStart(now, p.engine.Granularity(), p.opts.HistoryWindows-1)
	}
	history, err := p.archive.LoadProfiles(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

func (p *Pipeline) reportAggregation(log *slog.Logger, result aggregate.Result) {
	for _, e := range result.Excluded {
		log.Warn("profile excluded from aggregation", "article_id", e.ArticleID, "reason", e.Reason)
	}
	p.metrics.Aggregation(len(result.Records), len(result.Excluded))
}

func (p *Pipeline) publish(result aggregate.Result, digest domain.Digest, snapshot domain.Snapshot) error {
	if err := p.artifacts.WriteMomentum(result.Records); err != nil {
		return fmt.Errorf("publish artifacts: %w", err)
	}
	if err := p.artifacts.WriteMatrix(result.Matrix); err != nil {
		return fmt.Errorf("publish artifacts: %w", err)
	}
	if err := p.artifacts.WriteDigest(digest); err != nil {
		return fmt.Errorf("publish artifacts: %w", err)
	}
	if err := p.artifacts.AppendSnapshot(snapshot); err != nil {
		return fmt.Errorf("publish artifacts: %w", err)
	}
	return nil
}

func (p *Pipeline) save() error {
	var errs []error
	for _, s := range p.persist {
		if err := s.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
