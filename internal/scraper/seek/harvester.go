// Seek search and detail page scraping.
// Both stages parse the rendered HTML with goquery so selector chains stay testable offline.

package seek

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "go-seek-scraper/internal/errors"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	BaseURL        = "https://www.seek.com.au"
	DefaultTimeout = 15 * time.Second

	cardSelector = `article[data-card-type="JobCard"]`
)

// Page is the part of a browser session the scrapers drive.
type Page interface {
	NavigateAndWait(ctx context.Context, url string, readySelectors []string, timeout time.Duration) error
	Content() (string, error)
}

// settler and debugCapturer are optional extras of a live browser session.
type settler interface {
	Settle()
}

type debugCapturer interface {
	CaptureDebug(name, message string)
}

type linkStrategy struct {
	name     string
	selector string
}

// linkStrategies locate the detail link inside one card, most specific first.
var linkStrategies = []linkStrategy{
	{name: "structural", selector: `h3 a[data-automation="job-title"]`},
	{name: "attribute", selector: `a[data-automation="jobTitle"]`},
	{name: "generic", selector: `a[href*="/job/"]`},
}

type Harvester struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

func NewHarvester(baseURL string, timeout time.Duration, log *zap.Logger) *Harvester {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Harvester{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.ForStep(log, "harvest"),
	}
}

// SearchURL builds the canonical search URL, e.g. /ai-engineer-jobs/in-melbourne-vic.
func (h *Harvester) SearchURL(q scraper.JobQuery) string {
	u := fmt.Sprintf("%s/%s-jobs", h.baseURL, scraper.Slugify(q.Title, "-"))
	if loc := scraper.Slugify(q.Location, "-"); loc != "" {
		u += "/in-" + loc
	}
	return u
}

// Harvest returns up to q.Limit unique detail URLs in page order. A page that
// never shows listing cards yields no links and no error; only a lost session
// is reported.
func (h *Harvester) Harvest(ctx context.Context, page Page, q scraper.JobQuery) ([]string, error) {
	searchURL := h.SearchURL(q)
	log := h.logger.With(zap.String(logger.KeyURL, searchURL))
	log.Info("loading search results", zap.Int("limit", q.Limit))

	if err := page.NavigateAndWait(ctx, searchURL, []string{cardSelector}, h.timeout); err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeSessionLost) || apperrors.IsType(err, apperrors.ErrTypeRunFault) {
			return nil, err
		}
		log.Warn("no job cards before timeout, treating as empty result", zap.Error(err))
		h.dumpPage(page, log)
		return nil, nil
	}

	if s, ok := page.(settler); ok {
		s.Settle()
	}

	html, err := page.Content()
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeSessionLost) {
			return nil, err
		}
		log.Warn("could not read search page", zap.Error(err))
		return nil, nil
	}

	links, cards, err := h.ParseLinks(html, q.Limit)
	if err != nil {
		log.Warn("could not parse search page", zap.Error(err))
		return nil, nil
	}
	log.Info("links harvested", zap.Int("cards", cards), zap.Int("links", len(links)))
	return links, nil
}

// ParseLinks extracts up to limit unique detail links from a search page.
// It also reports how many cards were seen.
func (h *Harvester) ParseLinks(html string, limit int) ([]string, int, error) {
	if limit <= 0 {
		return nil, 0, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}
	base, err := url.Parse(h.baseURL)
	if err != nil {
		return nil, 0, err
	}

	cards := doc.Find(cardSelector)
	links := make([]string, 0, limit)
	seen := make(map[string]bool)

	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(links) >= limit {
			return false
		}
		link, strategy := cardLink(card, base)
		if link == "" {
			h.logger.Debug("card without a usable job link", zap.Int("card", i))
			return true
		}
		if seen[link] {
			return true
		}
		seen[link] = true
		links = append(links, link)
		h.logger.Debug("link found", zap.String(logger.KeyURL, link), zap.String("strategy", strategy))
		return true
	})
	return links, cards.Length(), nil
}

func cardLink(card *goquery.Selection, base *url.URL) (link, strategy string) {
	for _, s := range linkStrategies {
		href, ok := card.Find(s.selector).First().Attr("href")
		if !ok {
			continue
		}
		if link := normalizeLink(base, href); link != "" {
			return link, s.name
		}
	}
	return "", ""
}

// normalizeLink resolves href against base and drops query and fragment.
// Only job detail paths on the base host are kept.
func normalizeLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if !strings.EqualFold(u.Host, base.Host) || !strings.HasPrefix(u.Path, "/job/") {
		return ""
	}
	u.Host = base.Host
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (h *Harvester) dumpPage(page Page, log *zap.Logger) {
	if d, ok := page.(debugCapturer); ok {
		d.CaptureDebug("seek-harvest-timeout", "search results did not render job cards")
	}
	if !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	html, err := page.Content()
	if err != nil {
		return
	}
	if len(html) > 2000 {
		html = html[:2000]
	}
	log.Debug("search page snippet", zap.String("html", html))
}
