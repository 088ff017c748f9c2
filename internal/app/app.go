package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"Sentinel6G/internal/aggregate"
	"Sentinel6G/internal/analysis"
	"Sentinel6G/internal/config"
	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
	"Sentinel6G/internal/filter"
	"Sentinel6G/internal/infrastructure/fetch"
	"Sentinel6G/internal/infrastructure/metrics"
	"Sentinel6G/internal/infrastructure/oracle"
	"Sentinel6G/internal/infrastructure/parser"
	"Sentinel6G/internal/infrastructure/scheduler"
	"Sentinel6G/internal/infrastructure/standards"
	"Sentinel6G/internal/infrastructure/storage"
	"Sentinel6G/internal/infrastructure/telegram"
	"Sentinel6G/internal/logging"
	"Sentinel6G/internal/ports"
	"Sentinel6G/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}
	return &Application{cfg: cfg, logger: baseLogger, now: time.Now}
}

// session holds everything opened for one run under the data directory lock.
type session struct {
	lock    *storage.RunLock
	cache   *storage.JSONStrategyCache
	seen    *storage.FileSeenStore
	archive *storage.SQLiteArchive
	heavy   *fetch.Heavy
}

func (s *session) close(log *slog.Logger) {
	if s.heavy != nil {
		if err := s.heavy.Close(); err != nil {
			log.Warn("close browser", "error", err)
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			log.Warn("close archive", "error", err)
		}
	}
	if err := s.lock.Release(); err != nil {
		log.Warn("release run lock", "error", err)
	}
}

func (a *Application) open(withArchive bool) (*session, error) {
	dir := a.cfg.Output.DataDir
	lock, err := storage.AcquireRunLock(dir)
	if err != nil {
		return nil, err
	}
	s := &session{lock: lock}

	s.cache, err = storage.LoadStrategyCache(filepath.Join(dir, storage.StrategyCacheFile), logging.Component(a.logger, "strategy_cache"))
	if err != nil {
		s.close(a.logger)
		return nil, err
	}
	s.seen, err = storage.LoadSeenStore(filepath.Join(dir, storage.SeenStoreFile))
	if err != nil {
		s.close(a.logger)
		return nil, err
	}
	a.logStores(s)
	if withArchive && a.cfg.Archive.Enabled {
		s.archive, err = storage.OpenSQLiteArchive(a.archivePath())
		if err != nil {
			s.close(a.logger)
			return nil, err
		}
	}
	return s, nil
}

func (a *Application) logStores(s *session) {
	entries := s.cache.Entries()
	heavy := 0
	for _, e := range entries {
		if e.Strategy == domain.StrategyHeavy {
			heavy++
		}
	}
	a.logger.Debug("state loaded", "seen", s.seen.Len(), "domains", len(entries), "heavy_domains", heavy)
}

func (a *Application) archivePath() string {
	if a.cfg.Archive.Path != "" {
		return a.cfg.Archive.Path
	}
	return filepath.Join(a.cfg.Output.DataDir, storage.ArchiveFile)
}

// Run performs one full pipeline execution and exports run metrics.
func (a *Application) Run(ctx context.Context) (usecase.RunSummary, error) {
	started := a.now()
	s, err := a.open(true)
	if err != nil {
		return usecase.RunSummary{}, err
	}
	defer s.close(a.logger)

	recorder := metrics.New()
	summary, runErr := a.pipeline(ctx, s, recorder).Run(ctx)
	finished := a.now()
	recorder.RunFinished(finished.Sub(started).Seconds(), runErr == nil, finished.Unix())
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			a.logger.Warn("metrics export failed", "error", err)
		}
	}

	if runErr != nil {
		return summary, runErr
	}
	a.logger.Info("run finished",
		"run_id", summary.RunID,
		"sources", summary.Sources,
		"failed_sources", summary.FailedSources,
		"analyzed", summary.Analyzed,
		"degraded", summary.Degraded,
		"records", summary.Records,
		"meetings", summary.Meetings,
		"elapsed", finished.Sub(started).Round(time.Millisecond))
	return summary, nil
}

// Aggregate rebuilds momentum and the influence matrix from the archive.
func (a *Application) Aggregate(ctx context.Context) (aggregate.Result, error) {
	if !a.cfg.Archive.Enabled {
		return aggregate.Result{}, errors.New("aggregate needs the profile archive enabled")
	}
	s, err := a.open(true)
	if err != nil {
		return aggregate.Result{}, err
	}
	defer s.close(a.logger)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Engine:    a.engine(),
		Archive:   s.archive,
		Artifacts: storage.NewArtifactWriter(a.cfg.Output.DataDir, logging.Component(a.logger, "artifacts")),
		Logger:    logging.Component(a.logger, "pipeline"),
		Now:       a.now,
		Options:   usecase.Options{HistoryWindows: a.cfg.Aggregate.HistoryWindows},
	})
	return pipeline.Reaggregate(ctx)
}

// Reset forgets the seen fingerprints, the learned strategies, or both.
func (a *Application) Reset(seen, strategies bool) error {
	if !seen && !strategies {
		return errors.New("nothing to reset")
	}
	s, err := a.open(false)
	if err != nil {
		return err
	}
	defer s.close(a.logger)

	if seen {
		n := s.seen.Len()
		s.seen.Reset()
		if err := s.seen.Save(); err != nil {
			return err
		}
		a.logger.Info("seen store cleared", "forgotten", n)
	}
	if strategies {
		n := len(s.cache.Entries())
		s.cache.Reset()
		if err := s.cache.Save(); err != nil {
			return err
		}
		a.logger.Info("strategy cache cleared", "forgotten", n)
	}
	return nil
}

// Watch runs the pipeline now and then every interval until ctx ends.
func (a *Application) Watch(ctx context.Context, every time.Duration) error {
	log := logging.Component(a.logger, "scheduler")
	sched := usecase.NewScheduler(scheduler.NewIntervalScheduler(every), func(ctx context.Context) error {
		_, err := a.Run(ctx)
		return err
	}, log)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	log.Info("watching", "every", every)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	return sched.Stop(stopCtx)
}

func (a *Application) pipeline(ctx context.Context, s *session, recorder *metrics.Recorder) *usecase.Pipeline {
	cfg := a.cfg

	strategies := []fetcher.Strategy{fetch.NewLight(nil, cfg.Fetch.Timeout, logging.Component(a.logger, "fetch.light"))}
	if cfg.Browser.Enabled {
		s.heavy = fetch.NewHeavy(fetch.HeavyConfig{
			BrowserBin:        cfg.Browser.Bin,
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			HumanDelay:        cfg.Browser.HumanDelay,
			ViewportWidth:     cfg.Browser.ViewportWidth,
			ViewportHeight:    cfg.Browser.ViewportHeight,
		}, logging.Component(a.logger, "fetch.heavy"))
		strategies = append(strategies, s.heavy)
	}

	orchestrator := fetcher.NewOrchestrator(fetcher.NewRegistry(strategies...), s.cache, fetcher.Options{
		Retry: fetcher.RetryPolicy{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			InitialBackoff: cfg.Fetch.InitialBackoff,
			MaxBackoff:     cfg.Fetch.MaxBackoff,
		},
		RevalidateAfter: cfg.Fetch.RevalidateAfter,
		Now:             a.now,
	}, logging.Component(a.logger, "fetcher"))
	orchestrator.OnOutcome(recorder.ObserveFetch)

	source := parser.NewStrategySource(orchestrator,
		parser.NewFeedParser(logging.Component(a.logger, "parser")),
		cfg.DomainSources(), cfg.Pipeline.FetchWorkers,
		logging.Component(a.logger, "source"))

	deps := usecase.PipelineDeps{
		Source: source,
		Filter: filter.New(filter.Config{
			FreshnessDays:   cfg.Filter.FreshnessDays,
			FutureTolerance: cfg.Filter.FutureTolerance,
			MinKeywordScore: cfg.Filter.MinKeywordScore,
			Keywords:        cfg.Filter.Keywords,
		}),
		Seen:      s.seen,
		Oracle:    a.oracle(ctx),
		Ingestor:  analysis.NewIngestor(a.now, logging.Component(a.logger, "analysis")),
		Engine:    a.engine(),
		Artifacts: storage.NewArtifactWriter(cfg.Output.DataDir, logging.Component(a.logger, "artifacts")),
		Metrics:   recorder,
		Persist:   []ports.Persister{s.cache, s.seen},
		Logger:    logging.Component(a.logger, "pipeline"),
		Now:       a.now,
		Options: usecase.Options{
			OracleConcurrency: cfg.Oracle.Concurrency,
			RequestsPerMinute: cfg.Oracle.RequestsPerMinute,
			OracleTimeout:     cfg.Oracle.Timeout,
			RunTimeout:        cfg.Pipeline.RunTimeout,
			MaxArticles:       cfg.Pipeline.MaxArticles,
			HistoryWindows:    cfg.Aggregate.HistoryWindows,
		},
	}
	if s.archive != nil {
		deps.Archive = s.archive
	}
	if cfg.Standards.Enabled {
		deps.Standards = standards.NewTracker(orchestrator, cfg.WorkingGroups(),
			cfg.Standards.MeetingsPerGroup, cfg.Pipeline.FetchWorkers, a.now,
			logging.Component(a.logger, "standards"))
	}
	if cfg.Notifications.Telegram.Enabled() {
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}
	return usecase.NewPipeline(deps)
}

// engine assumes the granularity was validated by config.Load.
func (a *Application) engine() *aggregate.Engine {
	granularity, _ := domain.ParseGranularity(a.cfg.Aggregate.Granularity)
	return aggregate.NewEngine(aggregate.Config{
		Granularity:           granularity,
		DegradedWeight:        a.cfg.Aggregate.DegradedWeight,
		IncludeSelfReferences: a.cfg.Aggregate.IncludeSelfReferences,
	})
}

// oracle builds the configured provider. A provider that cannot be built
// leaves the run on the keyword fallback.
func (a *Application) oracle(ctx context.Context) ports.Oracle {
	cfg := a.cfg.Oracle
	log := logging.Component(a.logger, "oracle")

	provider := a.cfg.OracleProvider()
	var (
		o   ports.Oracle
		err error
	)
	switch provider {
	case config.ProviderOpenAI:
		var c *oracle.OpenAI
		if c, err = oracle.NewOpenAI(cfg.OpenAI, log); err == nil {
			o = c
		}
	case config.ProviderGemini:
		var c *oracle.Gemini
		if c, err = oracle.NewGemini(ctx, cfg.Gemini, log); err == nil {
			o = c
		}
	case config.ProviderHTTP:
		o = oracle.NewHTTP(cfg.HTTP, nil)
	default:
		log.Warn("no oracle configured, every profile comes from the keyword fallback")
		return nil
	}
	if err != nil {
		log.Error("oracle unavailable for this run", "provider", provider, "error", fmt.Errorf("build oracle: %w", err))
		return nil
	}
	log.Info("oracle ready", "provider", provider)
	return o
}
