// Package profile holds the cumulative user profile extracted from chat
// turns and the non-destructive merge that keeps it inside the extraction
// schema no matter what an upstream model returns.
package profile

import (
	"sort"
	"strings"
)

// Profile is the running user profile for one chat session. Zero values mean
// "unknown"; fields only change through Merge.
type Profile struct {
	Location          string   `json:"location"`
	AgeFocus          string   `json:"age_focus"`
	Interests         []string `json:"interests"`
	TimePrefs         []string `json:"time_prefs"`
	City              string   `json:"city"`
	State             string   `json:"state"`
	BudgetSensitivity string   `json:"budget_sensitivity"`
}

// Closed vocabularies for the enum-valued fields. Anything outside these is
// dropped during merge validation.
var (
	AllowedAgeFocus = map[string]struct{}{
		"kids": {}, "teens": {}, "young_adults": {}, "adults": {}, "seniors": {},
	}
	AllowedInterests = map[string]struct{}{
		"aquatics": {}, "athletics": {}, "dancing": {}, "cooking": {}, "drawing": {},
	}
	AllowedTimePrefs = map[string]struct{}{
		"mornings": {}, "afternoons": {}, "evenings": {}, "weekends": {},
	}
	AllowedBudget = map[string]struct{}{
		"low": {}, "medium": {}, "high": {},
	}
)

// Merge folds an incoming update into an existing profile without destroying
// anything the update does not confidently replace:
//   - empty incoming strings are ignored, non-empty (after trim) overwrite;
//   - list fields union with existing, sort lexicographically, and are
//     filtered to the allowed vocabulary;
//   - a final whitelist pass resets out-of-vocabulary age_focus and
//     budget_sensitivity to empty, so a hallucinated field can never stick.
//
// Merge(p, Profile{}) == p for any valid p.
func Merge(existing, incoming Profile) Profile {
	merged := existing

	if v := strings.TrimSpace(incoming.Location); v != "" {
		merged.Location = v
	}
	if v := strings.TrimSpace(incoming.AgeFocus); v != "" {
		merged.AgeFocus = v
	}
	if v := strings.TrimSpace(incoming.City); v != "" {
		merged.City = v
	}
	if v := strings.TrimSpace(incoming.State); v != "" {
		merged.State = v
	}
	if v := strings.TrimSpace(incoming.BudgetSensitivity); v != "" {
		merged.BudgetSensitivity = v
	}
	merged.Interests = mergeList(existing.Interests, incoming.Interests, AllowedInterests)
	merged.TimePrefs = mergeList(existing.TimePrefs, incoming.TimePrefs, AllowedTimePrefs)

	if _, ok := AllowedAgeFocus[merged.AgeFocus]; !ok {
		merged.AgeFocus = ""
	}
	if _, ok := AllowedBudget[merged.BudgetSensitivity]; !ok {
		merged.BudgetSensitivity = ""
	}
	merged.City = strings.TrimSpace(merged.City)
	merged.State = strings.TrimSpace(merged.State)
	return merged
}

func mergeList(existing, incoming []string, allowed map[string]struct{}) []string {
	seen := map[string]struct{}{}
	for _, v := range existing {
		if v = strings.TrimSpace(v); v != "" {
			seen[v] = struct{}{}
		}
	}
	for _, v := range incoming {
		if v = strings.TrimSpace(v); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		if _, ok := allowed[v]; ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// RecentUserMessages returns the last n non-empty user messages from a
// (user, assistant) turn history, oldest first.
func RecentUserMessages(history [][2]string, n int) []string {
	var users []string
	for _, turn := range history {
		if u := strings.TrimSpace(turn[0]); u != "" {
			users = append(users, u)
		}
	}
	if len(users) > n {
		users = users[len(users)-n:]
	}
	return users
}

// BuildRetrievalQuery assembles a compact stage-1 query from the new message,
// the known profile, and recent conversational context.
func BuildRetrievalQuery(message string, p Profile, history [][2]string) string {
	parts := []string{strings.TrimSpace(message)}
	if p.Location != "" {
		parts = append(parts, "Location: "+p.Location)
	}
	if p.AgeFocus != "" {
		parts = append(parts, "Age: "+p.AgeFocus)
	}
	if len(p.Interests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(p.Interests, ", "))
	}
	if len(p.TimePrefs) > 0 {
		parts = append(parts, "Time prefs: "+strings.Join(p.TimePrefs, ", "))
	}
	if p.BudgetSensitivity != "" {
		parts = append(parts, "Budget: "+p.BudgetSensitivity)
	}
	if recent := RecentUserMessages(history, 3); len(recent) > 0 {
		clipped := make([]string, 0, len(recent))
		for _, u := range recent {
			if len(u) > 120 {
				u = u[:120]
			}
			clipped = append(clipped, u)
		}
		parts = append(parts, "Recent user context: "+strings.Join(clipped, " | "))
	}
	return strings.Join(parts, "\n")
}
