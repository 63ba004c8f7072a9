package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// CanonicalDateLayout is the output layout of the date-normalize pipe
const CanonicalDateLayout = "2006-01-02 15:04:05"

var relativePattern = regexp.MustCompile(`(?i)^(\d+|an?|one)\s+(second|sec|minute|min|hour|day|week|month|year)s?\s+ago$`)

// DateNormalizer parses free-form and relative dates into CanonicalDateLayout
type DateNormalizer struct {
	Location *time.Location
	Now      func() time.Time
}

// NewDateNormalizer creates a normalizer in the local time zone
func NewDateNormalizer() *DateNormalizer {
	return &DateNormalizer{
		Location: time.Local,
		Now:      time.Now,
	}
}

// Normalize returns the canonical form of s. Strings ending in Z are read
// and written in UTC, everything else in the normalizer's location.
func (n *DateNormalizer) Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	if strings.HasSuffix(s, "Z") {
		loc = time.UTC
	}

	if t, ok := n.relative(s, loc); ok {
		return t.Format(CanonicalDateLayout), true
	}

	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return "", false
	}
	return t.In(loc).Format(CanonicalDateLayout), true
}

func (n *DateNormalizer) relative(s string, loc *time.Location) (time.Time, bool) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	current := now().In(loc)
	lower := strings.ToLower(s)

	switch lower {
	case "now", "just now":
		return current, true
	case "today":
		return startOfDay(current), true
	case "yesterday":
		return startOfDay(current.AddDate(0, 0, -1)), true
	}

	m := relativePattern.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}

	amount := 1
	if v, err := strconv.Atoi(m[1]); err == nil {
		amount = v
	}

	switch m[2] {
	case "second", "sec":
		return current.Add(-time.Duration(amount) * time.Second), true
	case "minute", "min":
		return current.Add(-time.Duration(amount) * time.Minute), true
	case "hour":
		return current.Add(-time.Duration(amount) * time.Hour), true
	case "day":
		return current.AddDate(0, 0, -amount), true
	case "week":
		return current.AddDate(0, 0, -7*amount), true
	case "month":
		return current.AddDate(0, -amount, 0), true
	case "year":
		return current.AddDate(-amount, 0, 0), true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
