package seek

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "go-seek-scraper/internal/errors"
	"go-seek-scraper/internal/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePage serves canned HTML per URL. URLs in timeouts fail with a
// navigation timeout; once lost is set every call reports a lost session.
type fakePage struct {
	pages    map[string]string
	timeouts map[string]bool
	lostAt   string
	lost     bool
	current  string
	visited  []string
	settled  int
	captured []string
}

func newFakePage() *fakePage {
	return &fakePage{pages: map[string]string{}, timeouts: map[string]bool{}}
}

func (p *fakePage) NavigateAndWait(ctx context.Context, url string, _ []string, _ time.Duration) error {
	p.visited = append(p.visited, url)
	if err := ctx.Err(); err != nil {
		return apperrors.RunFault("run cancelled", err)
	}
	if url == p.lostAt {
		p.lost = true
	}
	if p.lost {
		return apperrors.SessionLost("page closed", nil)
	}
	if p.timeouts[url] {
		return apperrors.NavigationTimeout("waiting for "+url, fmt.Errorf("timeout 15000ms exceeded"))
	}
	if _, ok := p.pages[url]; !ok {
		return apperrors.NavigationFailed("goto "+url, fmt.Errorf("net::ERR_NAME_NOT_RESOLVED"))
	}
	p.current = url
	return nil
}

func (p *fakePage) Content() (string, error) {
	if p.lost {
		return "", apperrors.SessionLost("page closed", nil)
	}
	return p.pages[p.current], nil
}

func (p *fakePage) Settle() { p.settled++ }

func (p *fakePage) CaptureDebug(name, _ string) { p.captured = append(p.captured, name) }

func card(inner string) string {
	return `<article data-card-type="JobCard">` + inner + `</article>`
}

func searchPage(cards ...string) string {
	return `<html><body><div id="results">` + strings.Join(cards, "") + `</div></body></html>`
}

func TestHarvester_SearchURL(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())

	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne VIC", "3")
	assert.Equal(t, "https://www.seek.com.au/ai-engineer-jobs/in-melbourne-vic", h.SearchURL(q))

	q, _ = scraper.NewJobQuery("Data Scientist", "", "3")
	assert.Equal(t, "https://www.seek.com.au/data-scientist-jobs", h.SearchURL(q))

	custom := NewHarvester("http://localhost:8080/", time.Second, nil)
	q, _ = scraper.NewJobQuery("Café Manager", "Sydney", "1")
	assert.Equal(t, "http://localhost:8080/cafe-manager-jobs/in-sydney", custom.SearchURL(q))
}

func TestHarvester_ParseLinks(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())

	tests := []struct {
		name      string
		html      string
		limit     int
		wantLinks []string
		wantCards int
	}{
		{
			name: "structural link with query stripped",
			html: searchPage(
				card(`<h3><a data-automation="job-title" href="/job/81234567?type=standard&ref=search#sol">AI Engineer</a></h3>`),
			),
			limit:     5,
			wantLinks: []string{"https://www.seek.com.au/job/81234567"},
			wantCards: 1,
		},
		{
			name: "attribute and generic fallbacks",
			html: searchPage(
				card(`<a data-automation="jobTitle" href="/job/1?x=1">One</a>`),
				card(`<div><a href="https://www.seek.com.au/job/2?tracking=abc">Two</a></div>`),
			),
			limit:     5,
			wantLinks: []string{"https://www.seek.com.au/job/1", "https://www.seek.com.au/job/2"},
			wantCards: 2,
		},
		{
			name: "non job links are skipped",
			html: searchPage(
				card(`<a data-automation="jobTitle" href="/companies/acme">Acme</a>`),
				card(`<a href="/job/3">Three</a>`),
			),
			limit:     5,
			wantLinks: []string{"https://www.seek.com.au/job/3"},
			wantCards: 2,
		},
		{
			name: "duplicates collapse and limit applies in page order",
			html: searchPage(
				card(`<a href="/job/1?a">1</a>`),
				card(`<a href="/job/1?b">1 again</a>`),
				card(`<a href="/job/2">2</a>`),
				card(`<a href="/job/3">3</a>`),
				card(`<a href="/job/4">4</a>`),
			),
			limit:     3,
			wantLinks: []string{"https://www.seek.com.au/job/1", "https://www.seek.com.au/job/2", "https://www.seek.com.au/job/3"},
			wantCards: 5,
		},
		{
			name: "off-site job paths are skipped",
			html: searchPage(
				card(`<a data-automation="jobTitle" href="https://click.example.com/job/1">Tracked</a>`),
				card(`<a href="https://www.seek.com.au/companies/acme/job/2">Nested</a>`),
				card(`<a href="https://WWW.SEEK.COM.AU/job/5">Five</a>`),
			),
			limit:     5,
			wantLinks: []string{"https://www.seek.com.au/job/5"},
			wantCards: 3,
		},
		{
			name:      "links outside cards are ignored",
			html:      `<html><body><a href="/job/9">Featured</a></body></html>`,
			limit:     5,
			wantLinks: []string{},
			wantCards: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links, cards, err := h.ParseLinks(tt.html, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLinks, links)
			assert.Equal(t, tt.wantCards, cards)
		})
	}
}

func TestHarvester_ParseLinks_NonPositiveLimit(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())
	links, _, err := h.ParseLinks(searchPage(card(`<a href="/job/1">1</a>`)), 0)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestHarvester_Harvest(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())
	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne VIC", "2")

	page := newFakePage()
	page.pages[h.SearchURL(q)] = searchPage(
		card(`<h3><a data-automation="job-title" href="/job/10?ref=1">A</a></h3>`),
		card(`<h3><a data-automation="job-title" href="/job/11">B</a></h3>`),
		card(`<h3><a data-automation="job-title" href="/job/12">C</a></h3>`),
	)

	links, err := h.Harvest(context.Background(), page, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.seek.com.au/job/10", "https://www.seek.com.au/job/11"}, links)
	assert.Equal(t, 1, page.settled)
}

func TestHarvester_Harvest_TimeoutIsEmpty(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())
	q, _ := scraper.NewJobQuery("Underwater Basket Weaver", "Alice Springs", "5")

	page := newFakePage()
	page.timeouts[h.SearchURL(q)] = true

	links, err := h.Harvest(context.Background(), page, q)
	assert.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, []string{"seek-harvest-timeout"}, page.captured)
}

func TestHarvester_Harvest_SessionLost(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())
	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne", "5")

	page := newFakePage()
	page.lost = true

	links, err := h.Harvest(context.Background(), page, q)
	assert.Empty(t, links)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSessionLost), "got %v", err)
}

func TestHarvester_Harvest_Cancelled(t *testing.T) {
	h := NewHarvester("", 0, zap.NewNop())
	q, _ := scraper.NewJobQuery("AI Engineer", "Melbourne", "5")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Harvest(ctx, newFakePage(), q)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeRunFault), "got %v", err)
}
