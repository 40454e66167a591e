package timefmt

import (
	"regexp"
	"strings"
	"time"
)

// Canonical published-time format. All stored timestamps use a numeric zero
// offset so downstream consumers can sort and compare without re-parsing
// vendor variants.
const Layout = "Mon, 02 Jan 2006 15:04:05 -0700"

const wallLayout = "Mon, 02 Jan 2006 15:04:05"

var (
	canonicalPattern = regexp.MustCompile(`^[A-Za-z]{3}, \d{1,2} [A-Za-z]{3} \d{4} \d{2}:\d{2}:\d{2}`)
	numericOffset    = regexp.MustCompile(` [+-]\d{2}:?\d{2}$`)
	namedZoneSuffix  = regexp.MustCompile(` (GMT|UTC)$`)
)

// Normalize converts a feed item's published time into the canonical textual
// form. A pre-parsed time from the feed library wins over the raw string.
// Returns "" when nothing can be parsed; the caller decides the fallback.
func Normalize(parsed *time.Time, raw string) string {
	if parsed != nil {
		return parsed.UTC().Format(Layout)
	}
	return NormalizeString(raw)
}

// NormalizeString normalizes a free-text timestamp.
//
// Already-canonical strings only get their trailing timezone token fixed up:
// GMT/UTC become the numeric zero offset, an explicit numeric offset is kept
// verbatim and a missing offset gets zero appended. ISO 8601 input is
// reformatted with its offset stripped. Anything else yields "".
func NormalizeString(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if canonicalPattern.MatchString(raw) {
		return normalizeZoneToken(raw)
	}

	// RFC 2822 variants the pattern missed, with named zones mapped to zero.
	if t, err := time.Parse("Mon, 2 Jan 2006 15:04:05 -0700", namedZoneSuffix.ReplaceAllString(raw, " +0000")); err == nil {
		return t.Format(wallLayout) + " +0000"
	}

	if strings.Contains(raw, "T") {
		if out := normalizeISO(raw); out != "" {
			return out
		}
	}

	return ""
}

// Parse reads a canonical (or near-canonical) timestamp back into a
// time.Time, used for ordering stored articles. ok is false when the string
// cannot be interpreted.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, ",") {
		normalized := namedZoneSuffix.ReplaceAllString(s, " +0000")
		if t, err := time.Parse("Mon, 2 Jan 2006 15:04:05 -0700", normalized); err == nil {
			return t, true
		}
		if t, err := time.Parse(wallLayout, normalized); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02T15:04:05", strippedISO(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeZoneToken(s string) string {
	if namedZoneSuffix.MatchString(s) {
		return namedZoneSuffix.ReplaceAllString(s, " +0000")
	}
	if numericOffset.MatchString(s) {
		return s
	}
	return s + " +0000"
}

func normalizeISO(raw string) string {
	stripped := strippedISO(raw)
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, stripped); err == nil {
			return t.Format(wallLayout) + " +0000"
		}
	}
	return ""
}

// strippedISO removes a trailing Z or numeric offset, keeping wall-clock
// date and time only.
func strippedISO(raw string) string {
	s := raw
	if i := strings.Index(s, "+"); i != -1 {
		s = s[:i]
	}
	if i := strings.Index(s, "Z"); i != -1 {
		s = s[:i]
	}
	// A '-' after the date part is a negative offset, e.g. ...T20:16:24-04:00.
	if strings.Count(s, "-") > 2 {
		s = s[:strings.LastIndex(s, "-")]
	}
	return s
}
