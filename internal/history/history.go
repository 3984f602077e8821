// Package history remembers which job URLs earlier runs already scraped.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	FileName = "seen_jobs.json"
	Expiry   = 30 * 24 * time.Hour
)

type seenEntry struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Store is a JSON file of URL -> first scraped time. Entries older than Expiry are dropped on load.
type Store struct {
	mu       sync.Mutex
	filePath string
	seen     map[string]int64
	now      func() time.Time
	logger   *zap.Logger
}

func Open(dir string, log *zap.Logger) *Store {
	return open(dir, log, time.Now)
}

func open(dir string, log *zap.Logger, now func() time.Time) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("failed to create history directory", zap.Error(err))
	}
	s := &Store{
		filePath: filepath.Join(dir, FileName),
		seen:     make(map[string]int64),
		now:      now,
		logger:   log.With(zap.String("component", "history")),
	}
	s.load()
	return s
}

// Seen returns the subset of urls scraped by an earlier run, in input order.
func (s *Store) Seen(urls []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, u := range urls {
		if _, ok := s.seen[u]; ok {
			out = append(out, u)
		}
	}
	return out
}

// Record marks urls as scraped now. Known URLs keep their first timestamp.
func (s *Store) Record(urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	changed := false
	for _, u := range urls {
		if _, ok := s.seen[u]; !ok {
			s.seen[u] = now
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

// Len is the number of remembered URLs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *Store) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read history file", zap.String("path", s.filePath), zap.Error(err))
		}
		return
	}

	var entries []seenEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("failed to parse history file", zap.String("path", s.filePath), zap.Error(err))
		return
	}

	cutoff := s.now().Add(-Expiry).UnixMilli()
	loaded := 0
	for _, e := range entries {
		if e.Timestamp > cutoff {
			s.seen[e.URL] = e.Timestamp
			loaded++
		}
	}
	s.logger.Info("history loaded", zap.Int("entries", loaded), zap.Int("expired", len(entries)-loaded))
}

func (s *Store) save() error {
	entries := make([]seenEntry, 0, len(s.seen))
	for u, ts := range s.seen {
		entries = append(entries, seenEntry{URL: u, Timestamp: ts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return err
	}
	s.logger.Debug("history saved", zap.Int("entries", len(entries)))
	return nil
}
