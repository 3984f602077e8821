package models

import (
	"path"
	"strings"
	"time"

	"go-seek-scraper/internal/scraper"
)

type ScrapeStatus string

const (
	StatusScraped ScrapeStatus = "SCRAPED"
	StatusFailed  ScrapeStatus = "FAILED"
)

// ScrapedJob is one row of the scraped_jobs table.
type ScrapedJob struct {
	RunID            string       `json:"run_id"`
	JobURL           string       `json:"job_url"`
	ExternalID       string       `json:"external_id"`
	Status           ScrapeStatus `json:"status"`
	Title            string       `json:"title"`
	Company          string       `json:"company"`
	Location         string       `json:"location"`
	Salary           string       `json:"salary"`
	Responsibilities string       `json:"responsibilities"`
	Skills           string       `json:"skills"`
	DatePosted       string       `json:"date_posted"`
	JobType          string       `json:"job_type"`
	Phone            string       `json:"phone"`
	Email            string       `json:"email"`
	Description      string       `json:"description"`
	ScrapedAt        time.Time    `json:"scraped_at"`
}

// FromRecord maps a record to a row. Placeholder values are kept as stored in the CSV.
func FromRecord(runID string, rec scraper.JobRecord, at time.Time) ScrapedJob {
	status := StatusScraped
	if rec.IsError() {
		status = StatusFailed
	}
	return ScrapedJob{
		RunID:            runID,
		JobURL:           rec.URL(),
		ExternalID:       ExternalID(rec.URL()),
		Status:           status,
		Title:            rec.Get(scraper.FieldTitle),
		Company:          rec.Get(scraper.FieldCompany),
		Location:         rec.Get(scraper.FieldLocation),
		Salary:           rec.Get(scraper.FieldSalary),
		Responsibilities: rec.Get(scraper.FieldResponsibilities),
		Skills:           rec.Get(scraper.FieldSkills),
		DatePosted:       rec.Get(scraper.FieldDatePosted),
		JobType:          rec.Get(scraper.FieldJobType),
		Phone:            rec.Get(scraper.FieldPhone),
		Email:            rec.Get(scraper.FieldEmail),
		Description:      rec.Get(scraper.FieldDescription),
		ScrapedAt:        at,
	}
}

// ExternalID is the listing number in a /job/<id> URL, or "" when there is none.
func ExternalID(jobURL string) string {
	p := jobURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.Contains(p, "/job/") {
		return ""
	}
	return path.Base(strings.TrimRight(p, "/"))
}
