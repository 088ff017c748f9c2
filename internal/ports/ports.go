package ports

import (
	"context"
	"time"

	"Sentinel6G/internal/domain"
)

// ArticleSource collects candidate articles from every configured source.
type ArticleSource interface {
	Collect(ctx context.Context) []domain.SourceBatch
}

// StrategyCache remembers the last working fetch strategy per domain.
type StrategyCache interface {
	Lookup(host string) (domain.StrategyCacheEntry, bool)
	Store(entry domain.StrategyCacheEntry)
}

// SeenStore is the cross-run fingerprint set used for deduplication.
type SeenStore interface {
	Seen(fp domain.Fingerprint) bool
	Mark(fp domain.Fingerprint)
}

// Oracle produces a raw AnalysisProfile JSON document for an article.
type Oracle interface {
	Analyze(ctx context.Context, article domain.Article) ([]byte, error)
}

// ProfileArchive keeps every profile ever produced, feeding historical aggregation.
type ProfileArchive interface {
	SaveProfiles(ctx context.Context, runID string, profiles []domain.AnalysisProfile) error
	LoadProfiles(ctx context.Context, since time.Time) ([]domain.AnalysisProfile, error)
}

// Notifier streams the executive briefing to a chat channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// ArtifactWriter publishes the files consumed by the dashboard. Every write
// replaces the target atomically.
type ArtifactWriter interface {
	WriteDigest(d domain.Digest) error
	WriteMomentum(records []domain.MomentumRecord) error
	WriteMatrix(m domain.InfluenceMatrix) error
	AppendSnapshot(s domain.Snapshot) error
}

// Persister is a store loaded at run start and saved once at run end.
type Persister interface {
	Save() error
}

// Scheduler triggers a job repeatedly until stopped.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// StandardsTracker reports the latest 3GPP working-group meetings. Groups
// that cannot be reached are listed in the result, never returned as errors.
type StandardsTracker interface {
	Recent(ctx context.Context) domain.Standardization
}
