package seek

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-seek-scraper/internal/contact"
	apperrors "go-seek-scraper/internal/errors"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// detailMarkers differ between listing templates; any one means the page rendered.
var detailMarkers = []string{
	`[data-automation="jobAdDetails"]`,
	`[data-automation="jobDescription"]`,
	`div[class*="job-description"]`,
	`h1[data-automation="job-detail-title"]`,
}

var (
	salaryPattern  = regexp.MustCompile(`(?i)\$\s?\d[\d,.]*[kK]?.*?(per \w+|p\.a\.?|annum|an hour|/hr)`)
	jobTypePattern = regexp.MustCompile(`(?i)\b(full[ -]time|part[ -]time|contract/temp|contract|casual/vacation|casual|temporary)\b`)
)

type fieldChain struct {
	field scraper.Field
	chain scraper.Chain
}

// fieldChains resolve every field independently; description is handled separately.
var fieldChains = []fieldChain{
	{scraper.FieldTitle, scraper.Chain{
		scraper.BySelector(`h1[data-automation="job-detail-title"]`),
		scraper.BySelector(`h1[data-automation="jobTitle"]`),
		scraper.BySelector(`h1[class*="JobTitle"]`),
		scraper.BySelector(`h1`),
	}},
	{scraper.FieldCompany, scraper.Chain{
		scraper.BySelector(`span[data-automation="advertiser-name"]`),
		scraper.BySelector(`a[data-automation="job-header-company-name"]`),
		scraper.BySelector(`a[data-automation="jobCompany"]`),
		scraper.BySelector(`span[class*="AdvertiserName"]`),
	}},
	{scraper.FieldLocation, scraper.Chain{
		scraper.BySelector(`span[data-automation="job-detail-location"]`),
		scraper.ByLabel(`strong`, "Location"),
		scraper.BySelector(`span[class*="Location"] a`),
		scraper.BySelector(`span[class*="Location"]`),
	}},
	{scraper.FieldSalary, scraper.Chain{
		scraper.BySelector(`span[data-automation="job-detail-salary"]`),
		scraper.BySelector(`span[class*="Salary"]`),
		scraper.ByPattern(salaryPattern),
	}},
	{scraper.FieldDatePosted, scraper.Chain{
		scraper.BySelector(`span[data-automation="job-detail-date"]`),
		scraper.BySelector(`span[class*="ListedDate"]`),
	}},
	{scraper.FieldJobType, scraper.Chain{
		scraper.BySelector(`span[data-automation="job-detail-work-type"]`),
		scraper.ByLabel(`strong, dt`, "Classification"),
		scraper.ByPattern(jobTypePattern),
	}},
}

var descriptionChain = scraper.Chain{
	scraper.ByBlock(`div[data-automation="jobAdDetails"]`),
	scraper.ByBlock(`div[data-automation="jobDescription"]`),
	scraper.ByBlock(`div[class*="job-description"]`),
}

type Extractor struct {
	timeout time.Duration
	logger  *zap.Logger
}

func NewExtractor(timeout time.Duration, log *zap.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		timeout: timeout,
		logger:  logger.ForStep(log, "detail"),
	}
}

// Extract builds the record for one detail page. Page failures are recorded in
// the returned record; the error is non-nil only when the session itself is
// gone, and the record is still error-marked in that case.
func (e *Extractor) Extract(ctx context.Context, page Page, jobURL string) (rec scraper.JobRecord, err error) {
	log := e.logger.With(zap.String(logger.KeyURL, jobURL))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while extracting job details", zap.Any("panic", r))
			rec, err = scraper.NewErrorRecord(jobURL, fmt.Errorf("unexpected fault: %v", r)), nil
		}
	}()

	if err := page.NavigateAndWait(ctx, jobURL, detailMarkers, e.timeout); err != nil {
		return e.fail(log, jobURL, err)
	}

	html, err := page.Content()
	if err != nil {
		return e.fail(log, jobURL, err)
	}

	rec, err = e.Parse(jobURL, html)
	if err != nil {
		return e.fail(log, jobURL, err)
	}
	log.Info("job details extracted",
		zap.String("title", rec.Get(scraper.FieldTitle)),
		zap.String("company", rec.Get(scraper.FieldCompany)),
		zap.String("location", rec.Get(scraper.FieldLocation)))
	return rec, nil
}

// Parse fills a record from a rendered detail page.
func (e *Extractor) Parse(jobURL, html string) (scraper.JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return scraper.JobRecord{}, fmt.Errorf("parsing detail page: %w", err)
	}

	rec := scraper.NewJobRecord(jobURL)
	for _, fc := range fieldChains {
		rec.Set(fc.field, fc.chain.Resolve(doc.Selection))
	}

	description := descriptionChain.Resolve(doc.Selection)
	rec.Set(scraper.FieldDescription, description)
	if description == scraper.Placeholder {
		return rec, nil
	}

	rec.Set(scraper.FieldResponsibilities, scraper.SeeDescription)
	rec.Set(scraper.FieldSkills, scraper.SeeDescription)

	phone, email := contact.Extract(description)
	rec.Set(scraper.FieldPhone, phone)
	rec.Set(scraper.FieldEmail, email)
	return rec, nil
}

func (e *Extractor) fail(log *zap.Logger, jobURL string, cause error) (scraper.JobRecord, error) {
	rec := scraper.NewErrorRecord(jobURL, cause)
	if apperrors.IsType(cause, apperrors.ErrTypeSessionLost) || apperrors.IsType(cause, apperrors.ErrTypeRunFault) {
		log.Error("session unusable during detail extraction", zap.Error(cause))
		return rec, cause
	}
	log.Warn("detail page unreadable, record marked as error", zap.Error(cause))
	return rec, nil
}
