// Package csvstore writes scraped records to timestamped CSV files.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "go-seek-scraper/internal/errors"
	"go-seek-scraper/internal/scraper"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	filePrefix   = "seek_jobs"
	stampLayout  = "20060102_150405.000"
	maxCollision = 100
)

type Store struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Store)

// WithClock replaces time.Now for file naming.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(dir string, log *zap.Logger, opts ...Option) *Store {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{dir: dir, now: time.Now, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Filename returns the base file name for q at t, without collision suffix.
func Filename(q scraper.JobQuery, t time.Time) string {
	stamp := strings.Replace(t.Format(stampLayout), ".", "_", 1)
	return fmt.Sprintf("%s_%s_%s_%s.csv", filePrefix,
		scraper.Slugify(q.Title, "_"), scraper.Slugify(q.Location, "_"), stamp)
}

// Save writes records to a new file and returns its path. Nothing is written
// for an empty list. An existing file is never overwritten.
func (s *Store) Save(records []scraper.JobRecord, q scraper.JobQuery) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", apperrors.Persistence("creating output directory", err)
	}

	f, path, err := s.create(Filename(q, s.now()))
	if err != nil {
		return "", apperrors.Persistence("creating csv file", err)
	}

	if err := writeRecords(f, records); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", apperrors.Persistence("writing "+path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", apperrors.Persistence("closing "+path, err)
	}

	s.logger.Info("records saved", zap.String("path", path), zap.Int("records", len(records)))
	return path, nil
}

func (s *Store) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxCollision; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free file name for %s after %d attempts", name, maxCollision)
}

func writeRecords(f *os.File, records []scraper.JobRecord) error {
	w := csv.NewWriter(f)
	if err := w.Write(scraper.Header()); err != nil {
		return err
	}
	for _, rec := range records {
		row := rec.Row()
		for i, v := range row {
			row[i] = Sanitize(v)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Sanitize drops NUL bytes and ill-formed UTF-8 and returns NFC text.
func Sanitize(v string) string {
	t := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r == 0 || r == utf8.RuneError
		})),
		norm.NFC,
	)
	out, _, err := transform.String(t, v)
	if err != nil {
		return strings.ToValidUTF8(strings.ReplaceAll(v, "\x00", ""), "")
	}
	return out
}
