package storage

import (
	"encoding/hex"
	"fmt"
	"slices"
	"sync"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// SeenStoreFile is the artifact name of the dedup fingerprint set.
const SeenStoreFile = "seen_articles.json"

// FileSeenStore is the cross-run fingerprint set. Marks only accumulate;
// Reset is the sole way to forget.
type FileSeenStore struct {
	path  string
	mu    sync.RWMutex
	set   map[domain.Fingerprint]struct{}
	dirty bool
}

var _ ports.SeenStore = (*FileSeenStore)(nil)

// LoadSeenStore reads the fingerprint array at path. Entries that are not
// fingerprints are treated as links from older stores and hashed.
func LoadSeenStore(path string) (*FileSeenStore, error) {
	s := &FileSeenStore{path: path, set: map[domain.Fingerprint]struct{}{}}

	var entries []string
	if _, err := readJSON(path, &entries); err != nil {
		return nil, fmt.Errorf("load seen store: %w", err)
	}
	for _, e := range entries {
		fp := domain.Fingerprint(e)
		if !isFingerprint(e) {
			fp = domain.FingerprintOf(e)
			s.dirty = true
		}
		s.set[fp] = struct{}{}
	}
	return s, nil
}

func isFingerprint(v string) bool {
	if len(v) != 64 {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}

// Seen reports whether the fingerprint was marked in this or an earlier run.
func (s *FileSeenStore) Seen(fp domain.Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[fp]
	return ok
}

// Mark records a fingerprint.
func (s *FileSeenStore) Mark(fp domain.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[fp]; ok {
		return
	}
	s.set[fp] = struct{}{}
	s.dirty = true
}

// Len is the number of remembered fingerprints.
func (s *FileSeenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// Reset forgets every fingerprint.
func (s *FileSeenStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = map[domain.Fingerprint]struct{}{}
	s.dirty = true
}

// Save writes the sorted fingerprint array atomically when it changed.
func (s *FileSeenStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	out := make([]string, 0, len(s.set))
	for fp := range s.set {
		out = append(out, string(fp))
	}
	slices.Sort(out)
	if err := WriteJSON(s.path, out); err != nil {
		return fmt.Errorf("save seen store: %w", err)
	}
	s.dirty = false
	return nil
}
