package http

import (
	"strings"
	"time"

	"networth/internal/core"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

// parseDate accepts a calendar date (YYYY-MM-DD, midnight UTC) or a full
// RFC 3339 timestamp. field names the input in the validation error.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, core.NewValidationError(field, "must be YYYY-MM-DD or RFC 3339")
}

// parseOptionalDate returns the zero time for empty input.
func parseOptionalDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseDate(field, s)
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(result)
}

// sanitizePtr sanitizes an optional string in place.
func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateTimeLayout)
	return &s
}
