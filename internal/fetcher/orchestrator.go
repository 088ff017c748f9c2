package fetcher

import (
	"context"
	"log/slog"
	"time"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// Options tune the escalation policy.
type Options struct {
	Retry RetryPolicy
	// RevalidateAfter makes a heavy-cached domain probe the light strategy
	// again after this many heavy-only runs. Zero disables it.
	RevalidateAfter int
	Now             func() time.Time
}

// Observer receives one callback per orchestrated fetch, used for metrics.
type Observer func(source domain.Source, outcome Outcome)

// Orchestrator picks, escalates and remembers fetch strategies per domain.
type Orchestrator struct {
	registry *Registry
	cache    ports.StrategyCache
	opts     Options
	logger   *slog.Logger
	observe  Observer
}

// NewOrchestrator wires the strategy registry with the domain cache.
func NewOrchestrator(reg *Registry, cache ports.StrategyCache, opts Options, log *slog.Logger) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{registry: reg, cache: cache, opts: opts, logger: log}
}

// OnOutcome registers an observer for completed fetches.
func (o *Orchestrator) OnOutcome(fn Observer) {
	o.observe = fn
}

// Fetch acquires the payload of one source. It never returns an error: failures
// are reported through the Outcome and the source is skipped for the run.
func (o *Orchestrator) Fetch(ctx context.Context, source domain.Source) Outcome {
	out := o.fetch(ctx, source)
	if o.observe != nil {
		o.observe(source, out)
	}
	return out
}

func (o *Orchestrator) fetch(ctx context.Context, source domain.Source) Outcome {
	host := source.Domain()
	log := o.logger.With("source", source.Name, "domain", host)

	prev, cached := o.lookup(host)

	if source.Strategy != "" {
		out := o.try(ctx, source.Strategy, source, log)
		if out.OK() {
			o.record(host, out.Strategy, prev, false)
		}
		return out
	}

	first := domain.StrategyLight
	probing := false
	if cached {
		first = prev.Strategy
		if first == domain.StrategyHeavy && o.opts.RevalidateAfter > 0 && prev.HeavyStreak >= o.opts.RevalidateAfter {
			log.Info("revalidating light strategy", "heavy_streak", prev.HeavyStreak)
			first = domain.StrategyLight
			probing = true
		}
	}

	out := o.try(ctx, first, source, log)
	if out.OK() {
		o.record(host, out.Strategy, prev, probing)
		return out
	}

	if first != domain.StrategyLight || !escalates(out) || ctx.Err() != nil {
		log.Warn("fetch failed", "strategy", out.Strategy, "outcome", out.Kind.String(), "status", out.StatusCode, "reason", out.Reason)
		return out
	}

	log.Info("escalating to heavy strategy", "outcome", out.Kind.String(), "status", out.StatusCode, "reason", out.Reason)
	attempts := out.Attempts
	out = o.try(ctx, domain.StrategyHeavy, source, log)
	out.Escalated = true
	out.Attempts += attempts
	if out.OK() {
		o.record(host, out.Strategy, prev, true)
		return out
	}

	log.Warn("heavy strategy failed, skipping source", "outcome", out.Kind.String(), "status", out.StatusCode, "reason", out.Reason)
	return out
}

// escalates reports whether a light failure looks like bot protection.
func escalates(out Outcome) bool {
	return out.Kind == OutcomeBlocked || out.Kind == OutcomeMalformed
}

func (o *Orchestrator) try(ctx context.Context, kind domain.StrategyKind, source domain.Source, log *slog.Logger) Outcome {
	strategy, err := o.registry.Resolve(kind)
	if err != nil {
		return Malformed(kind, err.Error())
	}
	return attemptWithRetry(ctx, o.opts.Retry, strategy, source, func(last Outcome, wait time.Duration) {
		log.Debug("retrying fetch", "strategy", kind, "outcome", last.Kind.String(), "wait", wait)
	})
}

func (o *Orchestrator) lookup(host string) (domain.StrategyCacheEntry, bool) {
	if o.cache == nil || host == "" {
		return domain.StrategyCacheEntry{}, false
	}
	return o.cache.Lookup(host)
}

// record stores the strategy that worked. HeavyStreak counts heavy runs
// since light was last attempted, so a success in the same call as a light
// attempt (escalation or a failed probe) starts it at zero.
func (o *Orchestrator) record(host string, kind domain.StrategyKind, prev domain.StrategyCacheEntry, lightTried bool) {
	if o.cache == nil || host == "" {
		return
	}
	streak := 0
	if kind == domain.StrategyHeavy && !lightTried {
		streak = 1
		if prev.Strategy == domain.StrategyHeavy {
			streak = prev.HeavyStreak + 1
		}
	}
	o.cache.Store(domain.StrategyCacheEntry{
		Domain:         host,
		Strategy:       kind,
		LastVerifiedAt: o.opts.Now().UTC(),
		HeavyStreak:    streak,
	})
}
