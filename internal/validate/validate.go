package validate

import (
	"regexp"
	"strings"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reLogis = regexp.MustCompile(`^(drop_off_courier|company_pickup|meetup)$`)
)

// ID validates a simple resource identifier (listing/user ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Reason validates a rejection/revision explanation: must carry
// non-whitespace content. Clamped to keep log lines and rows sane.
func Reason(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) > 500 {
		s = s[:500]
	}
	return s, true
}

// LogisticsMethod validates the sample shipping method enum.
func LogisticsMethod(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reLogis.MatchString(s)
}

// Title validates a listing title with a reasonable max length.
func Title(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 120 {
		return "", false
	}
	return s, true
}

// Price rejects negative or absurd listing prices.
func Price(p float64) bool { return p >= 0 && p < 1e7 }

// Password enforces a simple complexity window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 20 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
