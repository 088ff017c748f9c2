package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// ArchiveFile is the default profile archive name inside the data directory.
const ArchiveFile = "profiles.db"

const profilesTable = "analysis_profiles"

const schema = `
CREATE TABLE IF NOT EXISTS analysis_profiles (
	article_id   TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	effective_at INTEGER NOT NULL,
	published_at INTEGER NOT NULL DEFAULT 0,
	analyzed_at  INTEGER NOT NULL,
	degraded     INTEGER NOT NULL DEFAULT 0,
	insights     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_effective ON analysis_profiles(effective_at);
`

// SQLiteArchive keeps every validated profile so that aggregation can run
// over history as well as the current batch.
type SQLiteArchive struct {
	db *sql.DB
}

var _ ports.ProfileArchive = (*SQLiteArchive)(nil)

// OpenSQLiteArchive opens (and migrates) the archive at path.
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &SQLiteArchive{db: db}, nil
}

// Close releases the database handle.
func (a *SQLiteArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// SaveProfiles upserts the profiles of one run in a single transaction.
func (a *SQLiteArchive) SaveProfiles(ctx context.Context, runID string, profiles []domain.AnalysisProfile) error {
	if a.db == nil || len(profiles) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range profiles {
		effective := p.EffectiveDate()
		if effective.IsZero() {
			continue
		}
		payload, err := json.Marshal(p.Insights())
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", p.ArticleID, err)
		}

		query, args, err := sq.Insert(profilesTable).
			Columns("article_id", "run_id", "effective_at", "published_at", "analyzed_at", "degraded", "insights").
			Values(string(p.ArticleID), runID, effective.Unix(), unixNano(p.PublishedAt), unixNano(p.AnalyzedAt), p.Degraded, string(payload)).
			Suffix(`ON CONFLICT(article_id) DO UPDATE SET
				run_id = excluded.run_id,
				effective_at = excluded.effective_at,
				published_at = excluded.published_at,
				analyzed_at = excluded.analyzed_at,
				degraded = excluded.degraded,
				insights = excluded.insights`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert profile %s: %w", p.ArticleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// LoadProfiles returns archived profiles whose effective date is at or after
// since. A zero since loads everything.
func (a *SQLiteArchive) LoadProfiles(ctx context.Context, since time.Time) ([]domain.AnalysisProfile, error) {
	if a.db == nil {
		return nil, nil
	}

	builder := sq.Select("article_id", "published_at", "analyzed_at", "insights").
		From(profilesTable).
		OrderBy("article_id")
	if !since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"effective_at": since.Unix()})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AnalysisProfile
	for rows.Next() {
		var (
			id                  string
			published, analyzed int64
			payload             string
		)
		if err := rows.Scan(&id, &published, &analyzed, &payload); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		var in domain.Insights
		if err := json.Unmarshal([]byte(payload), &in); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", id, err)
		}
		out = append(out, in.Profile(domain.Fingerprint(id), fromUnixNano(published), fromUnixNano(analyzed)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
