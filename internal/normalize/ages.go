package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// AgeRange is a numeric age span extracted from text. Open means no upper
// bound ("Ages: 18+"); Max is meaningless while Open is true.
type AgeRange struct {
	Min  int
	Max  int
	Open bool
}

var (
	agesRangeRe = regexp.MustCompile(`(?i)\bages?\s*[:–-]?\s*(\d{1,2})\s*[–—-]\s*(\d{1,2})\b`)
	agesPlusRe  = regexp.MustCompile(`(?i)\bages?\s*[:–-]?\s*(\d{1,2})\s*\+`)
	barePlusRe  = regexp.MustCompile(`\b(\d{2})\s*\+`)
)

// ExtractAgeRange pulls a numeric age range out of patterns like
// "Ages: 6–10", "Age 8-12", "Ages: 18+", or a standalone "55+".
// Patterns are tried in that order; the first match wins.
func ExtractAgeRange(text string) (AgeRange, bool) {
	if m := agesRangeRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return AgeRange{Min: lo, Max: hi}, true
	}
	if m := agesPlusRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		return AgeRange{Min: lo, Open: true}, true
	}
	if m := barePlusRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		return AgeRange{Min: lo, Open: true}, true
	}
	return AgeRange{}, false
}

// ageBand is a canonical bucket with its inclusive numeric span.
type ageBand struct {
	name     string
	lo, hi   int
	openEnds bool // band itself is open-ended (seniors)
}

var ageBands = []ageBand{
	{name: AgeKids, lo: 0, hi: 12},
	{name: AgeTeens, lo: 13, hi: 17},
	{name: AgeYoungAdults, lo: 18, hi: 25},
	{name: AgeAdults, lo: 26, hi: 59},
	{name: AgeSeniors, lo: 60, hi: 200, openEnds: true},
}

// ageKeywords maps buckets to substrings that imply them.
var ageKeywords = map[string][]string{
	AgeKids:        {"kids", "children", "youth"},
	AgeTeens:       {"teen", "teens"},
	AgeYoungAdults: {"young adult", "college"},
	AgeAdults:      {"adult", "adults"},
	AgeSeniors:     {"senior", "older adult", "55+", "60+", "65+"},
	AgeAll:         {"all ages", "family"},
}

// bucketsFromRange converts a numeric span into bucket names using
// inclusive-overlap rules. An open range spans every band at or above Min.
func bucketsFromRange(r AgeRange) []string {
	max := r.Max
	if r.Open {
		max = 200
	}
	var out []string
	for _, b := range ageBands {
		if max >= b.lo && r.Min <= b.hi {
			out = append(out, b.name)
		}
	}
	return out
}

// ExtractAgeGroups derives canonical buckets from text: numeric range
// extraction unioned with keyword hits. "all ages"/"family" collapses the
// result to {all}. Nothing found defaults to {adults} - a deliberate
// fallback, not an error. Result is sorted.
func ExtractAgeGroups(text string) []string {
	lower := strings.ToLower(text)
	groups := map[string]struct{}{}

	if r, ok := ExtractAgeRange(text); ok {
		for _, g := range bucketsFromRange(r) {
			groups[g] = struct{}{}
		}
	}
	for name, kws := range ageKeywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				groups[name] = struct{}{}
				break
			}
		}
	}

	if _, ok := groups[AgeAll]; ok {
		return []string{AgeAll}
	}
	if len(groups) == 0 {
		return []string{AgeAdults}
	}
	out := make([]string, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// InferIntensity is a heuristic fallback for event blocks that carry
// intensity cues in prose. Activity-type definitions are the preferred
// source; this only runs when the definition map has no entry.
func InferIntensity(text string) string {
	t := strings.ToLower(text)
	for _, cue := range []string{"low impact", "gentle", "restorative", "beginner", "chair", "arthritis"} {
		if strings.Contains(t, cue) {
			return IntensityLow
		}
	}
	for _, cue := range []string{"high intensity", "interval", "boot camp", "fast-paced", "challenging"} {
		if strings.Contains(t, cue) {
			return IntensityHigh
		}
	}
	for _, cue := range []string{"moderate", "all levels", "level 2"} {
		if strings.Contains(t, cue) {
			return IntensityModerate
		}
	}
	return ""
}
