package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// Artifact file names inside the data directory.
const (
	DigestFile   = "latest_digest.json"
	MomentumFile = "momentum_data.json"
	MatrixFile   = "source_target_matrix.json"
	HistoryFile  = "historical_intelligence.json"
)

// ArtifactWriter publishes run artifacts into the data directory.
type ArtifactWriter struct {
	dir    string
	logger *slog.Logger
}

var _ ports.ArtifactWriter = (*ArtifactWriter)(nil)

// NewArtifactWriter writes under dir.
func NewArtifactWriter(dir string, log *slog.Logger) *ArtifactWriter {
	return &ArtifactWriter{dir: dir, logger: log}
}

// Path resolves an artifact name inside the data directory.
func (w *ArtifactWriter) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteDigest publishes latest_digest.json.
func (w *ArtifactWriter) WriteDigest(d domain.Digest) error {
	if d.Articles == nil {
		d.Articles = []domain.DigestArticle{}
	}
	return w.publish(DigestFile, d)
}

// WriteMomentum publishes the momentum records array.
func (w *ArtifactWriter) WriteMomentum(records []domain.MomentumRecord) error {
	if records == nil {
		records = []domain.MomentumRecord{}
	}
	return w.publish(MomentumFile, records)
}

// WriteMatrix publishes the dense influence matrix.
func (w *ArtifactWriter) WriteMatrix(m domain.InfluenceMatrix) error {
	if m == nil {
		m = domain.NewInfluenceMatrix()
	}
	return w.publish(MatrixFile, m)
}

// LoadHistory reads the snapshot history; a missing file is empty.
func (w *ArtifactWriter) LoadHistory() ([]domain.Snapshot, error) {
	var history []domain.Snapshot
	if _, err := readJSON(w.Path(HistoryFile), &history); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// AppendSnapshot adds s to the history. An unreadable history is never
// overwritten.
func (w *ArtifactWriter) AppendSnapshot(s domain.Snapshot) error {
	history, err := w.LoadHistory()
	if err != nil {
		return err
	}
	if s.RegionalTotals == nil {
		s.RegionalTotals = map[domain.Region]int{}
	}
	if s.Momentum == nil {
		s.Momentum = []domain.MomentumRecord{}
	}
	history = append(history, s)
	return w.publish(HistoryFile, history)
}

func (w *ArtifactWriter) publish(name string, v any) error {
	if err := WriteJSON(w.Path(name), v); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	if w.logger != nil {
		w.logger.Debug("artifact published", "file", name)
	}
	return nil
}
