package service

import (
	"regexp"
	"strconv"
	"time"
)

// No example repo in the corpus carries a natural-language date resolver; this
// is a stdlib-only implementation (regexp + time), justified in DESIGN.md.

var (
	reRelativeUnit = regexp.MustCompile(`(?i)\b(last|past|previous)\s+(\d+)?\s*(day|week|month|year)s?\b`)
	reYesterday    = regexp.MustCompile(`(?i)\byesterday\b`)
	reToday        = regexp.MustCompile(`(?i)\btoday\b`)
	reThisWeek     = regexp.MustCompile(`(?i)\bthis\s+week\b`)
	reThisMonth    = regexp.MustCompile(`(?i)\bthis\s+month\b`)
)

// resolveTemporal extracts a relative-date reference from query and returns
// the [after, before] window it implies; before is now, except for
// "yesterday", whose window ends at the start of today. ok is false when no temporal phrase
// was recognized, in which case the caller leaves the filter's After/Before
// untouched.
func (s *Service) resolveTemporal(query string) (after, before time.Time, ok bool) {
	now := s.now()

	if m := reRelativeUnit.FindStringSubmatch(query); m != nil {
		n := 1
		if m[2] != "" {
			if parsed, err := strconv.Atoi(m[2]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		var unit time.Duration
		switch m[3] {
		case "day":
			unit = 24 * time.Hour
		case "week":
			unit = 7 * 24 * time.Hour
		case "month":
			unit = 30 * 24 * time.Hour
		case "year":
			unit = 365 * 24 * time.Hour
		}
		return now.Add(-time.Duration(n) * unit), now, true
	}

	if reYesterday.MatchString(query) {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(-24 * time.Hour)
		return dayStart, dayStart.Add(24 * time.Hour), true
	}
	if reToday.MatchString(query) {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return dayStart, now, true
	}
	if reThisWeek.MatchString(query) {
		return now.Add(-7 * 24 * time.Hour), now, true
	}
	if reThisMonth.MatchString(query) {
		return now.Add(-30 * 24 * time.Hour), now, true
	}

	return time.Time{}, time.Time{}, false
}
