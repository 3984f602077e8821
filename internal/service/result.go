package service

import (
	"encoding/json"

	"go-seek-scraper/internal/scraper"
)

// Result is the outcome of one run: Success, PartialFailure or FatalFailure.
type Result interface {
	json.Marshaler
	result()
}

// Success means every link was visited. Individual records may still be error-marked.
type Success struct {
	RunID   string
	Records []scraper.JobRecord
	Path    string
}

// PartialFailure means a run-level fault stopped the loop after some records were collected.
type PartialFailure struct {
	RunID   string
	Records []scraper.JobRecord
	Path    string
	Err     error
}

// FatalFailure means nothing could be scraped, usually because the browser did not start.
type FatalFailure struct {
	RunID string
	Err   error
}

func (Success) result()        {}
func (PartialFailure) result() {}
func (FatalFailure) result()   {}

// Every shape carries status, the Outcome of the result.
type runJSON struct {
	Status string              `json:"status"`
	RunID  string              `json:"run_id"`
	Jobs   []scraper.JobRecord `json:"jobs"`
	Error  string              `json:"error,omitempty"`
	File   *string             `json:"file"`
}

type fatalJSON struct {
	Status         string              `json:"status"`
	RunID          string              `json:"run_id"`
	Error          string              `json:"error"`
	PartialResults []scraper.JobRecord `json:"partial_results"`
	File           *string             `json:"file"`
}

func (r Success) MarshalJSON() ([]byte, error) {
	return json.Marshal(runJSON{Status: Outcome(r), RunID: r.RunID, Jobs: nonNil(r.Records), File: optional(r.Path)})
}

func (r PartialFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(runJSON{Status: Outcome(r), RunID: r.RunID, Jobs: nonNil(r.Records), Error: errText(r.Err), File: optional(r.Path)})
}

func (r FatalFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(fatalJSON{Status: Outcome(r), RunID: r.RunID, Error: errText(r.Err), PartialResults: []scraper.JobRecord{}})
}

// Records returns the records carried by r; nil for a fatal failure.
func Records(r Result) []scraper.JobRecord {
	switch v := r.(type) {
	case Success:
		return v.Records
	case PartialFailure:
		return v.Records
	}
	return nil
}

// RunID returns the identifier of the run that produced r.
func RunID(r Result) string {
	switch v := r.(type) {
	case Success:
		return v.RunID
	case PartialFailure:
		return v.RunID
	case FatalFailure:
		return v.RunID
	}
	return ""
}

// Err returns the run-level error of r, nil on success.
func Err(r Result) error {
	switch v := r.(type) {
	case PartialFailure:
		return v.Err
	case FatalFailure:
		return v.Err
	}
	return nil
}

// Path returns the persisted file of r, empty when nothing was written.
func Path(r Result) string {
	switch v := r.(type) {
	case Success:
		return v.Path
	case PartialFailure:
		return v.Path
	}
	return ""
}

// ExitCode maps r to the CLI exit status.
func ExitCode(r Result) int {
	switch r.(type) {
	case Success:
		return 0
	case PartialFailure:
		return 2
	}
	return 1
}

// Outcome is a short label for logs and notifications.
func Outcome(r Result) string {
	switch r.(type) {
	case Success:
		return "success"
	case PartialFailure:
		return "partial"
	}
	return "failed"
}

func nonNil(records []scraper.JobRecord) []scraper.JobRecord {
	if records == nil {
		return []scraper.JobRecord{}
	}
	return records
}

func optional(path string) *string {
	if path == "" {
		return nil
	}
	return &path
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
