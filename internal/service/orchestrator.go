package service

import (
	"context"
	"fmt"
	"time"

	apperrors "go-seek-scraper/internal/errors"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper"
	"go-seek-scraper/internal/scraper/seek"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is a browser session the Orchestrator owns for one run.
type Session interface {
	seek.Page
	Close() error
}

// Launcher starts a new browser session.
type Launcher func(ctx context.Context) (Session, error)

type Harvester interface {
	Harvest(ctx context.Context, page seek.Page, q scraper.JobQuery) ([]string, error)
}

type Extractor interface {
	Extract(ctx context.Context, page seek.Page, url string) (scraper.JobRecord, error)
}

type Persister interface {
	Save(records []scraper.JobRecord, q scraper.JobQuery) (string, error)
}

// History is the cross-run record of scraped URLs. It never filters links.
type History interface {
	Seen(urls []string) []string
	Record(urls []string) error
}

type State string

const (
	StateIdle        State = "idle"
	StateSessionOpen State = "session_open"
	StateHarvesting  State = "harvesting"
	StateDetailLoop  State = "detail_loop"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// PaceFor returns the pause after the detail fetch at index i.
func PaceFor(i int) time.Duration {
	return time.Duration(2+i%3) * time.Second
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Orchestrator struct {
	launch    Launcher
	harvester Harvester
	extractor Extractor
	store     Persister
	history   History
	sleep     func(ctx context.Context, d time.Duration) error
	newRunID  func() string
	logger    *zap.Logger
}

type Option func(*Orchestrator)

func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithSleep replaces the pacing sleep, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func WithRunID(newRunID func() string) Option {
	return func(o *Orchestrator) { o.newRunID = newRunID }
}

func NewOrchestrator(launch Launcher, h Harvester, e Extractor, store Persister, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		launch:    launch,
		harvester: h,
		extractor: e,
		store:     store,
		sleep:     Sleep,
		newRunID:  func() string { return uuid.New().String() },
		logger:    log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScrapeRun accumulates the outcome of one run. Only the Orchestrator mutates it.
type ScrapeRun struct {
	ID      string
	Query   scraper.JobQuery
	State   State
	Records []scraper.JobRecord
	Path    string
	Err     error

	StartedAt  time.Time
	FinishedAt time.Time

	logger *zap.Logger
}

func (r *ScrapeRun) enter(s State, fields ...zap.Field) {
	from := r.State
	r.State = s
	fields = append([]zap.Field{zap.String("from", string(from))}, fields...)
	logger.ForStep(r.logger, string(s)).Info("run state changed", fields...)
}

// Run executes one scrape. It always returns a well-formed Result.
func (o *Orchestrator) Run(ctx context.Context, q scraper.JobQuery) (res Result) {
	run := &ScrapeRun{ID: o.newRunID(), Query: q, State: StateIdle, StartedAt: time.Now()}
	run.logger = o.logger.With(zap.String(logger.KeyRunID, run.ID))
	run.logger.Info("run started",
		zap.String("title", q.Title),
		zap.String("location", q.Location),
		zap.Int("limit", q.Limit))

	run.enter(StateSessionOpen)
	session, err := o.launch(ctx)
	if err != nil {
		run.Err = err
		run.enter(StateFailed, zap.Error(err))
		return FatalFailure{RunID: run.ID, Err: err}
	}
	defer o.closeSession(run, session)

	defer func() {
		if p := recover(); p != nil {
			run.Err = apperrors.RunFault("unexpected fault", fmt.Errorf("%v", p))
			run.logger.Error("recovered from panic", zap.Any("panic", p), zap.Stack("stack"))
			if run.State != StatePersisting && run.State != StateDone {
				o.persist(run)
			}
			res = o.finish(run)
		}
	}()

	run.enter(StateHarvesting)
	links, err := o.harvester.Harvest(ctx, session, q)
	if err != nil {
		run.Err = err
		run.logger.Error("harvest aborted", zap.Error(err))
	} else {
		o.noteHistory(run, links)
		if len(links) > 0 {
			o.detailLoop(ctx, run, session, links)
		}
	}

	o.persist(run)
	o.recordHistory(run)
	return o.finish(run)
}

func (o *Orchestrator) detailLoop(ctx context.Context, run *ScrapeRun, page seek.Page, links []string) {
	run.enter(StateDetailLoop, zap.Int("links", len(links)))
	for i, link := range links {
		rec, err := o.extractor.Extract(ctx, page, link)
		run.Records = append(run.Records, rec)
		if err != nil {
			run.Err = err
			run.logger.Error("detail loop stopped",
				zap.String(logger.KeyURL, link),
				zap.Int("collected", len(run.Records)),
				zap.Error(err))
			return
		}
		if i == len(links)-1 {
			break
		}
		pause := PaceFor(i)
		run.logger.Debug("pacing", zap.Duration("pause", pause))
		if err := o.sleep(ctx, pause); err != nil {
			run.Err = apperrors.RunFault("run interrupted", err)
			run.logger.Warn("run interrupted during pacing", zap.Int("collected", len(run.Records)))
			return
		}
	}
}

func (o *Orchestrator) persist(run *ScrapeRun) {
	run.enter(StatePersisting, zap.Int("records", len(run.Records)))
	path, err := o.store.Save(run.Records, run.Query)
	if err != nil {
		run.logger.Error("failed to persist records", zap.Error(err))
		return
	}
	run.Path = path
}

func (o *Orchestrator) finish(run *ScrapeRun) Result {
	run.FinishedAt = time.Now()
	elapsed := zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt))
	if run.Err != nil {
		run.enter(StateDone, zap.String("outcome", "partial"), elapsed, zap.Error(run.Err))
		return PartialFailure{RunID: run.ID, Records: run.Records, Path: run.Path, Err: run.Err}
	}
	run.enter(StateDone, zap.String("outcome", "success"), elapsed, zap.Int("records", len(run.Records)))
	return Success{RunID: run.ID, Records: run.Records, Path: run.Path}
}

func (o *Orchestrator) closeSession(run *ScrapeRun, session Session) {
	defer func() {
		if p := recover(); p != nil {
			run.logger.Warn("panic while closing session", zap.Any("panic", p))
		}
	}()
	if err := session.Close(); err != nil {
		run.logger.Warn("session closed with errors", zap.Error(err))
		return
	}
	run.logger.Debug("session closed")
}

func (o *Orchestrator) noteHistory(run *ScrapeRun, links []string) {
	if o.history == nil || len(links) == 0 {
		return
	}
	if seen := o.history.Seen(links); len(seen) > 0 {
		run.logger.Info("links already scraped by an earlier run",
			zap.Int("seen", len(seen)), zap.Strings("urls", seen))
	}
}

func (o *Orchestrator) recordHistory(run *ScrapeRun) {
	if o.history == nil {
		return
	}
	var urls []string
	for _, rec := range run.Records {
		if !rec.IsError() {
			urls = append(urls, rec.URL())
		}
	}
	if len(urls) == 0 {
		return
	}
	if err := o.history.Record(urls); err != nil {
		run.logger.Warn("failed to update history", zap.Error(err))
	}
}
