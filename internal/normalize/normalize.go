// Package normalize canonicalizes free-text fields from brochures, reviews,
// and user profiles into the closed vocabularies the retrieval pipeline
// filters on. All functions are pure; empty input yields empty output.
package normalize

import (
	"regexp"
	"strings"
)

// Canonical intensity values.
const (
	IntensityLow      = "low"
	IntensityModerate = "moderate"
	IntensityHigh     = "high"
)

// Canonical age buckets. "all" short-circuits the rest.
const (
	AgeKids        = "kids"
	AgeTeens       = "teens"
	AgeYoungAdults = "young_adults"
	AgeAdults      = "adults"
	AgeSeniors     = "seniors"
	AgeAll         = "all"
)

var (
	wsRe          = regexp.MustCompile(`\s+`)
	headingCharRe = regexp.MustCompile(`[^A-Z0-9 /&\-+]`)
)

// City lower-cases and trims a city name. Cities are compared, not geocoded.
func City(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// State lower-cases and trims a state name.
func State(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EventType upper-cases, strips trademark glyphs, collapses whitespace, and
// drops every character outside [A-Z0-9 /&+-]. Returns "" when nothing
// survives. Idempotent.
func EventType(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("®", "", "™", "").Replace(s)
	s = wsRe.ReplaceAllString(s, " ")
	s = headingCharRe.ReplaceAllString(s, "")
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// ActivityHeading canonicalizes an activity section heading for matching.
// Same rules as EventType; event types and headings share one key space.
func ActivityHeading(s string) string {
	return EventType(s)
}

// Intensity maps text like "Low-Moderate" or "Level 2/3" to low/moderate/high.
// Rules are checked in declared order, so a string containing both "low" and
// "high" resolves to low. Returns "" when nothing matches.
func Intensity(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	switch {
	case strings.Contains(t, "low"), strings.Contains(t, "gentle"):
		return IntensityLow
	case strings.Contains(t, "high"), strings.Contains(t, "challenging"):
		return IntensityHigh
	case strings.Contains(t, "moderate"), strings.Contains(t, "medium"),
		strings.Contains(t, "level 2"):
		return IntensityModerate
	case strings.Contains(t, "level 1"):
		return IntensityLow
	case strings.Contains(t, "level 3"):
		return IntensityHigh
	}
	return ""
}

// AgeFocus canonicalizes a free-text age focus into the comma-joined bucket
// form used on profile queries ("kids,teens" - no space). Event records
// persist the ", " form; SplitAgeGroups accepts both.
func AgeFocus(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.Join(ExtractAgeGroups(s), ",")
}

// SplitAgeGroups parses either separator convention ("kids,teens" or
// "kids, teens") into a trimmed, lower-cased slice. Empty elements dropped.
func SplitAgeGroups(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinAgeGroups renders buckets in the persisted record form: ", " separator.
func JoinAgeGroups(groups []string) string {
	return strings.Join(groups, ", ")
}
