package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	apperrors "go-seek-scraper/internal/errors"
	"go-seek-scraper/internal/history"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper"
	"go-seek-scraper/internal/scraper/seek"
	"go-seek-scraper/internal/storage/csvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSession struct {
	pages    map[string]string
	timeouts map[string]bool
	lostAt   string
	lost     bool
	current  string
	visited  []string
	closed   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{pages: map[string]string{}, timeouts: map[string]bool{}}
}

func (s *fakeSession) NavigateAndWait(ctx context.Context, url string, _ []string, _ time.Duration) error {
	s.visited = append(s.visited, url)
	if err := ctx.Err(); err != nil {
		return apperrors.RunFault("run cancelled", err)
	}
	if url == s.lostAt {
		s.lost = true
	}
	if s.lost {
		return apperrors.SessionLost("browser disconnected", nil)
	}
	if s.timeouts[url] {
		return apperrors.NavigationTimeout("waiting for "+url, errors.New("timeout 15000ms exceeded"))
	}
	if _, ok := s.pages[url]; !ok {
		return apperrors.NavigationFailed("goto "+url, errors.New("net::ERR_FAILED"))
	}
	s.current = url
	return nil
}

func (s *fakeSession) Content() (string, error) {
	return s.pages[s.current], nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func launcherFor(s *fakeSession) Launcher {
	return func(context.Context) (Session, error) { return s, nil }
}

type recordedSleep struct {
	pauses []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return nil
}

func searchHTML(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<article data-card-type="JobCard"><h3><a data-automation="job-title" href="/job/%d?type=standard">Job %d</a></h3></article>`, id, id)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func detailHTML(title, company string) string {
	return `<html><body>
<h1 data-automation="job-detail-title">` + title + `</h1>
<span data-automation="advertiser-name">` + company + `</span>
<div data-automation="jobAdDetails"><p>Apply to careers@` + strings.ToLower(company) + `.com</p></div>
</body></html>`
}

func jobURL(id int) string {
	return fmt.Sprintf("https://www.seek.com.au/job/%d", id)
}

type fixture struct {
	session *fakeSession
	sleeper *recordedSleep
	dir     string
	query   scraper.JobQuery
	orch    *Orchestrator
}

func newFixture(t *testing.T, limit string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{session: newFakeSession(), sleeper: &recordedSleep{}, dir: t.TempDir()}
	f.query, _ = scraper.NewJobQuery("AI Engineer", "Melbourne VIC", limit)

	log := zap.NewNop()
	h := seek.NewHarvester("", time.Second, log)
	opts = append([]Option{WithSleep(f.sleeper.sleep), WithRunID(func() string { return "run-1" })}, opts...)
	f.orch = NewOrchestrator(
		launcherFor(f.session),
		h,
		seek.NewExtractor(time.Second, log),
		csvstore.New(f.dir, log),
		log,
		opts...,
	)
	f.session.pages[h.SearchURL(f.query)] = searchHTML(101, 102, 103, 104)
	return f
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestPaceFor(t *testing.T) {
	want := []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second, 2 * time.Second}
	for i, d := range want {
		assert.Equal(t, d, PaceFor(i))
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestOrchestrator_Run_EndToEnd(t *testing.T) {
	f := newFixture(t, "3")
	f.session.pages[jobURL(101)] = detailHTML("AI Engineer", "Acme")
	f.session.timeouts[jobURL(102)] = true
	f.session.pages[jobURL(103)] = detailHTML("ML Engineer", "Globex")

	res := f.orch.Run(context.Background(), f.query)

	success, ok := res.(Success)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, "run-1", success.RunID)
	assert.True(t, strings.HasSuffix(f.session.visited[0], "ai-engineer-jobs/in-melbourne-vic"))

	require.Len(t, success.Records, 3)
	assert.Equal(t, jobURL(101), success.Records[0].URL())
	assert.Equal(t, jobURL(102), success.Records[1].URL())
	assert.Equal(t, jobURL(103), success.Records[2].URL())

	errorRecords := 0
	for _, rec := range success.Records {
		if rec.IsError() {
			errorRecords++
		}
	}
	assert.Equal(t, 1, errorRecords)
	assert.Equal(t, "AI Engineer", success.Records[0].Get(scraper.FieldTitle))
	assert.Equal(t, "Acme", success.Records[0].Get(scraper.FieldCompany))
	assert.Equal(t, "careers@acme.com", success.Records[0].Get(scraper.FieldEmail))
	assert.Equal(t, "ML Engineer", success.Records[2].Get(scraper.FieldTitle))
	assert.Equal(t, "Globex", success.Records[2].Get(scraper.FieldCompany))
	assert.Equal(t, "careers@globex.com", success.Records[2].Get(scraper.FieldEmail))
	assert.Equal(t, scraper.SeeDescription, success.Records[2].Get(scraper.FieldSkills))

	rows := readRows(t, success.Path)
	assert.Len(t, rows, 4)
	assert.Equal(t, scraper.Header(), rows[0])

	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, f.sleeper.pauses)
	assert.Equal(t, 1, f.session.closed)
	assert.Equal(t, 0, ExitCode(res))
}

func TestOrchestrator_Run_EmptyHarvest(t *testing.T) {
	f := newFixture(t, "5")
	f.session.pages = map[string]string{}
	f.session.timeouts[seek.NewHarvester("", 0, nil).SearchURL(f.query)] = true

	res := f.orch.Run(context.Background(), f.query)

	success, ok := res.(Success)
	require.True(t, ok, "got %T", res)
	assert.Empty(t, success.Records)
	assert.Empty(t, success.Path)
	assert.Nil(t, Err(res))
	assert.Empty(t, f.sleeper.pauses)
	assert.Equal(t, 1, f.session.closed)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrchestrator_Run_LaunchFailure(t *testing.T) {
	o := NewOrchestrator(
		func(context.Context) (Session, error) {
			return nil, apperrors.SessionLaunch("could not launch chromium", errors.New("executable not found"))
		},
		seek.NewHarvester("", 0, nil),
		seek.NewExtractor(0, nil),
		csvstore.New(t.TempDir(), nil),
		nil,
		WithRunID(func() string { return "run-fatal" }),
	)

	res := o.Run(context.Background(), scraper.JobQuery{Title: "AI Engineer", Location: "Melbourne", Limit: 3})

	fatal, ok := res.(FatalFailure)
	require.True(t, ok, "got %T", res)
	assert.True(t, apperrors.IsType(fatal.Err, apperrors.ErrTypeSessionLaunch))
	assert.Equal(t, 1, ExitCode(res))

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "failed",
		"run_id": "run-fatal",
		"error": "SESSION_LAUNCH: could not launch chromium: executable not found",
		"partial_results": [],
		"file": null
	}`, string(data))
}

func TestOrchestrator_Run_SessionLostMidLoop(t *testing.T) {
	f := newFixture(t, "4")
	f.session.pages[jobURL(101)] = detailHTML("AI Engineer", "Acme")
	f.session.lostAt = jobURL(102)

	res := f.orch.Run(context.Background(), f.query)

	partial, ok := res.(PartialFailure)
	require.True(t, ok, "got %T", res)
	assert.True(t, apperrors.IsType(partial.Err, apperrors.ErrTypeSessionLost))
	require.Len(t, partial.Records, 2)
	assert.False(t, partial.Records[0].IsError())
	assert.True(t, partial.Records[1].IsError())
	assert.Equal(t, jobURL(102), partial.Records[1].URL())

	require.NotEmpty(t, partial.Path)
	assert.Len(t, readRows(t, partial.Path), 3)
	assert.Equal(t, 1, f.session.closed)
	assert.Equal(t, 2, ExitCode(res))
	assert.NotContains(t, f.session.visited, jobURL(103))
}

func TestOrchestrator_Run_CancelledDuringPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, "3", WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	f.session.pages[jobURL(101)] = detailHTML("AI Engineer", "Acme")

	res := f.orch.Run(ctx, f.query)

	partial, ok := res.(PartialFailure)
	require.True(t, ok, "got %T", res)
	assert.True(t, apperrors.IsType(partial.Err, apperrors.ErrTypeRunFault))
	assert.Len(t, partial.Records, 1)
	assert.NotEmpty(t, partial.Path)
	assert.Equal(t, 1, f.session.closed)
}

type panickingExtractor struct{ calls int }

func (p *panickingExtractor) Extract(_ context.Context, _ seek.Page, url string) (scraper.JobRecord, error) {
	p.calls++
	if p.calls > 1 {
		panic("unexpected nil selection")
	}
	return scraper.NewJobRecord(url), nil
}

func TestOrchestrator_Run_PanicPersistsCollected(t *testing.T) {
	session := newFakeSession()
	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne VIC", "3")
	h := seek.NewHarvester("", 0, nil)
	session.pages[h.SearchURL(q)] = searchHTML(1, 2, 3)
	dir := t.TempDir()

	o := NewOrchestrator(launcherFor(session), h, &panickingExtractor{}, csvstore.New(dir, nil), nil,
		WithSleep(func(context.Context, time.Duration) error { return nil }))

	res := o.Run(context.Background(), q)

	partial, ok := res.(PartialFailure)
	require.True(t, ok, "got %T", res)
	assert.True(t, apperrors.IsType(partial.Err, apperrors.ErrTypeRunFault))
	assert.Len(t, partial.Records, 1)
	assert.NotEmpty(t, partial.Path)
	assert.Equal(t, 1, session.closed)
}

type failingStore struct{}

func (failingStore) Save([]scraper.JobRecord, scraper.JobQuery) (string, error) {
	return "", apperrors.Persistence("disk full", errors.New("no space left on device"))
}

func TestOrchestrator_Run_PersistenceFailureKeepsRecords(t *testing.T) {
	session := newFakeSession()
	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne VIC", "1")
	h := seek.NewHarvester("", 0, nil)
	session.pages[h.SearchURL(q)] = searchHTML(7)
	session.pages[jobURL(7)] = detailHTML("AI Engineer", "Acme")

	o := NewOrchestrator(launcherFor(session), h, seek.NewExtractor(0, nil), failingStore{}, nil)
	res := o.Run(context.Background(), q)

	success, ok := res.(Success)
	require.True(t, ok, "got %T", res)
	assert.Len(t, success.Records, 1)
	assert.Empty(t, success.Path)
	assert.Equal(t, 1, session.closed)
}

func TestOrchestrator_Run_RecordsHistory(t *testing.T) {
	hist := history.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, hist.Record([]string{jobURL(101)}))

	f := newFixture(t, "3", WithHistory(hist))
	f.session.pages[jobURL(101)] = detailHTML("AI Engineer", "Acme")
	f.session.timeouts[jobURL(102)] = true
	f.session.pages[jobURL(103)] = detailHTML("ML Engineer", "Globex")
	require.Empty(t, hist.Seen([]string{jobURL(103)}))

	res := f.orch.Run(context.Background(), f.query)
	require.IsType(t, Success{}, res)

	// the timed out link is not remembered and the known one is still scraped
	assert.Len(t, Records(res), 3)
	assert.Equal(t, []string{jobURL(101), jobURL(103)},
		hist.Seen([]string{jobURL(101), jobURL(102), jobURL(103)}))
}

func TestOrchestrator_Run_EmptyHarvestSkipsDetailLoop(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	session := newFakeSession()
	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne VIC", "5")
	h := seek.NewHarvester("", 0, nil)
	session.pages[h.SearchURL(q)] = searchHTML()

	o := NewOrchestrator(launcherFor(session), h, seek.NewExtractor(0, nil), csvstore.New(t.TempDir(), nil), zap.New(core))
	res := o.Run(context.Background(), q)
	require.IsType(t, Success{}, res)

	var states []string
	for _, entry := range logs.FilterMessage("run state changed").All() {
		states = append(states, entry.ContextMap()[logger.KeyStep].(string))
	}
	assert.Equal(t, []string{"session_open", "harvesting", "persisting", "done"}, states)
}

func TestResult_JSON(t *testing.T) {
	rec := scraper.NewJobRecord(jobURL(1))
	rec.Set(scraper.FieldTitle, "AI Engineer")

	data, err := json.Marshal(Success{RunID: "r", Records: []scraper.JobRecord{rec}, Path: "out.csv"})
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, "out.csv", got["file"])
	assert.NotContains(t, got, "error")
	jobs := got["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.Equal(t, "AI Engineer", jobs[0].(map[string]any)["Job Title"])

	data, err = json.Marshal(PartialFailure{RunID: "r", Err: errors.New("browser crashed")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"partial","run_id":"r","jobs":[],"error":"browser crashed","file":null}`, string(data))
}
