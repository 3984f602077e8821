// Shared types for the scraping pipeline.

package scraper

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// Placeholder marks a field that could not be extracted.
	Placeholder = "-"
	// ErrorSentinel is the Job Title of a record whose detail page could not be read.
	ErrorSentinel = "Error scraping"
	// SeeDescription stands in for sections that are only available inside the description.
	SeeDescription = "See Full Description"

	DefaultLimit = 5
)

type Field int

const (
	FieldTitle Field = iota
	FieldCompany
	FieldLocation
	FieldSalary
	FieldResponsibilities
	FieldSkills
	FieldDatePosted
	FieldJobType
	FieldPhone
	FieldEmail
	FieldDescription
	FieldURL

	fieldCount
)

// FieldNames is the fixed column order of a JobRecord.
var FieldNames = [fieldCount]string{
	"Job Title",
	"Company Name",
	"Location",
	"Salary/Pay Range",
	"Key Responsibilities",
	"Required Skills/Qualifications",
	"Date Posted",
	"Job Type",
	"Phone Number",
	"Email",
	"Full Job Description",
	"Job URL",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "Field(" + strconv.Itoa(int(f)) + ")"
	}
	return FieldNames[f]
}

// JobQuery is the immutable input of one run.
type JobQuery struct {
	Title    string
	Location string
	Limit    int
}

// NewJobQuery parses rawLimit as a positive integer. ok is false when the
// limit fell back to DefaultLimit.
func NewJobQuery(title, location, rawLimit string) (q JobQuery, ok bool) {
	q = JobQuery{
		Title:    strings.TrimSpace(title),
		Location: strings.TrimSpace(location),
		Limit:    DefaultLimit,
	}
	n, err := strconv.Atoi(strings.TrimSpace(rawLimit))
	if err != nil || n <= 0 {
		return q, false
	}
	q.Limit = n
	return q, true
}

// JobRecord holds one posting. Values are always set, either extracted text or Placeholder.
type JobRecord struct {
	values [fieldCount]string
}

func NewJobRecord(url string) JobRecord {
	var r JobRecord
	for i := range r.values {
		r.values[i] = Placeholder
	}
	r.values[FieldURL] = url
	return r
}

// NewErrorRecord marks a record as unreadable while keeping its URL.
func NewErrorRecord(url string, cause error) JobRecord {
	r := NewJobRecord(url)
	r.values[FieldTitle] = ErrorSentinel
	if cause != nil {
		r.values[FieldDescription] = ErrorSentinel + ": " + cause.Error()
	}
	return r
}

func (r JobRecord) Get(f Field) string {
	return r.values[f]
}

// Set ignores the URL field and treats blank values as Placeholder.
func (r *JobRecord) Set(f Field, value string) {
	if f == FieldURL {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		value = Placeholder
	}
	r.values[f] = value
}

func (r JobRecord) URL() string   { return r.values[FieldURL] }
func (r JobRecord) Title() string { return r.values[FieldTitle] }

func (r JobRecord) IsError() bool {
	return r.values[FieldTitle] == ErrorSentinel
}

// Row returns the values in FieldNames order.
func (r JobRecord) Row() []string {
	row := make([]string, fieldCount)
	copy(row, r.values[:])
	return row
}

// MarshalJSON writes the fields as an object in FieldNames order.
func (r JobRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range FieldNames {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Header returns a fresh copy of FieldNames.
func Header() []string {
	h := make([]string, fieldCount)
	copy(h, FieldNames[:])
	return h
}

// Slugify lower-cases text, folds accents and joins words with sep.
func Slugify(text string, sep string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, sep)
}
