package contact

import (
	"regexp"
	"strings"

	"go-seek-scraper/internal/scraper"
)

// MinPhoneDigits rejects short numeric ids that look like phone numbers.
const MinPhoneDigits = 8

var (
	phoneRegex    = regexp.MustCompile(`\(?\+?\d{1,3}\)?[\s.-]?\d{1,4}[\s.-]?\d{3,4}[\s.-]?\d{3,4}`)
	emailRegex    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	nonDigitRegex = regexp.MustCompile(`\D`)
)

// Extract returns the phone numbers and email addresses found in text, each
// joined with ", ", or the placeholder when none are found.
func Extract(text string) (phone, email string) {
	return join(Phones(text)), join(Emails(text))
}

func Phones(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range phoneRegex.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if len(nonDigitRegex.ReplaceAllString(m, "")) < MinPhoneDigits {
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func Emails(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range emailRegex.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".")
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func join(values []string) string {
	if len(values) == 0 {
		return scraper.Placeholder
	}
	return strings.Join(values, ", ")
}
