// Package retrieval implements the two-stage retriever: user intent is
// resolved to activity-type headings first, then events are fetched for
// those headings, deduplicated, post-filtered, reranked by review scores,
// and assembled into a grounded context block.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joelkehle/activity-concierge/internal/normalize"
	"github.com/joelkehle/activity-concierge/internal/profile"
	"github.com/joelkehle/activity-concierge/internal/store"
)

// SemanticSearch ranks activity-type definitions against free text.
type SemanticSearch interface {
	Search(ctx context.Context, query string, k int) ([]store.ActivityHit, error)
}

// StructuredQuery fetches events by predicate. Capabilities reports which
// filters run natively; the retriever post-filters the rest.
type StructuredQuery interface {
	Query(ctx context.Context, f store.EventFilter) ([]store.EventRecord, error)
	Capabilities() store.QueryCapabilities
}

// ScoreSource provides mean review ratings per activity type and venue.
type ScoreSource interface {
	Scores(ctx context.Context, eventTypes, locations []string) (store.ReviewScores, error)
}

var (
	_ SemanticSearch  = (*store.ActivityStore)(nil)
	_ StructuredQuery = (*store.EventStore)(nil)
	_ ScoreSource     = (*store.ReviewStore)(nil)
)

// Config holds the retriever's tuning constants.
type Config struct {
	K                    int     // stage-1 results kept after dedup
	Oversample           int     // stage-1 over-fetch multiplier
	OversampleFloor      int     // stage-1 over-fetch minimum
	MaxHeadings          int     // distinct headings carried into stage 2
	PostFilterOversample int     // stage-2 over-fetch multiplier when post-filtering
	TopN                 int     // final event cap
	VenueWeight          float64 // composite weight for venue score
	ActivityWeight       float64 // composite weight for activity score
	PreferReviews        bool    // widen recall past city, partition after rerank
}

func DefaultConfig() Config {
	return Config{
		K:                    5,
		Oversample:           8,
		OversampleFloor:      20,
		MaxHeadings:          3,
		PostFilterOversample: 3,
		TopN:                 20,
		VenueWeight:          0.6,
		ActivityWeight:       0.4,
	}
}

// Query is one retrieval request. Intensity is an optional exact preference
// on top of the profile.
type Query struct {
	Question  string
	Profile   profile.Profile
	Intensity string
}

// Result is what a turn retrieves: the final event list, the definitions of
// the chosen activity types, and the formatted context block.
type Result struct {
	Events         []store.EventRecord
	ActivityDefs   []store.ActivityRecord
	ChosenHeadings []string
	Context        string
}

// StageError wraps a store failure with the pipeline stage that hit it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Retriever runs the two-stage pipeline. Reviews may be nil, which disables
// the rerank step.
type Retriever struct {
	activities SemanticSearch
	events     StructuredQuery
	reviews    ScoreSource
	cfg        Config
}

func NewRetriever(activities SemanticSearch, events StructuredQuery, reviews ScoreSource, cfg Config) *Retriever {
	if cfg.K <= 0 {
		cfg = DefaultConfig()
	}
	return &Retriever{activities: activities, events: events, reviews: reviews, cfg: cfg}
}

// Retrieve runs one turn of the pipeline.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (Result, error) {
	intensity := normalize.Intensity(q.Intensity)

	activityDocs, err := r.searchActivityTypes(ctx, q, intensity)
	if err != nil {
		return Result{}, err
	}
	chosen := chooseHeadings(activityDocs, r.cfg.MaxHeadings)
	log.Printf("retrieval stage1_done headings=%d chosen=%q", len(activityDocs), chosen)

	events, err := r.searchEvents(ctx, q, chosen, intensity)
	if err != nil {
		return Result{}, err
	}
	events = dedupEvents(events)
	events = r.postFilter(events, q, chosen, intensity)
	log.Printf("retrieval stage2_done candidates=%d", len(events))

	if r.reviews != nil {
		events, err = r.rerank(ctx, events)
		if err != nil {
			return Result{}, err
		}
	}
	if r.cfg.PreferReviews {
		events = partitionByCity(events, normalize.City(q.Profile.City))
	}
	if len(events) > r.cfg.TopN {
		events = events[:r.cfg.TopN]
	}

	defs := matchingDefs(activityDocs, chosen)
	return Result{
		Events:         events,
		ActivityDefs:   defs,
		ChosenHeadings: chosen,
		Context:        BuildContextBlock(events, defs),
	}, nil
}

// searchActivityTypes is stage 1: over-fetch, apply the intensity preference,
// dedup by case-folded normalized heading keeping first-seen order, keep K.
func (r *Retriever) searchActivityTypes(ctx context.Context, q Query, intensity string) ([]store.ActivityRecord, error) {
	searchText := q.Question
	if len(q.Profile.Interests) > 0 {
		searchText += " " + strings.Join(q.Profile.Interests, " ")
	}
	rawK := r.cfg.K * r.cfg.Oversample
	if rawK < r.cfg.OversampleFloor {
		rawK = r.cfg.OversampleFloor
	}
	hits, err := r.activities.Search(ctx, searchText, rawK)
	if err != nil {
		return nil, &StageError{Stage: "activity_search", Err: err}
	}

	seen := map[string]struct{}{}
	var out []store.ActivityRecord
	for _, h := range hits {
		if intensity != "" && h.Doc.Intensity != intensity {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(h.Doc.HeadingNorm))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h.Doc)
		if len(out) >= r.cfg.K {
			break
		}
	}
	return out, nil
}

func chooseHeadings(docs []store.ActivityRecord, max int) []string {
	var out []string
	for _, d := range docs {
		h := strings.TrimSpace(d.HeadingNorm)
		if h == "" {
			continue
		}
		dup := false
		for _, prev := range out {
			if prev == h {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, h)
		if len(out) >= max {
			break
		}
	}
	return out
}

// searchEvents is stage 2. Filters the store handles natively go into the
// query; everything else widens the limit and is enforced afterwards. In
// prefer-reviews mode the city is deliberately left out of the query so
// rerank sees out-of-city candidates too.
func (r *Retriever) searchEvents(ctx context.Context, q Query, chosen []string, intensity string) ([]store.EventRecord, error) {
	caps := r.events.Capabilities()
	requested := normalize.SplitAgeGroups(q.Profile.AgeFocus)

	f := store.EventFilter{}
	if caps.City && !r.cfg.PreferReviews {
		f.City = normalize.City(q.Profile.City)
	}
	if caps.State {
		f.State = normalize.State(q.Profile.State)
	}
	if caps.EventType && len(chosen) > 0 {
		f.EventTypes = chosen
	}
	if caps.AgeGroups && len(requested) > 0 {
		f.AgeGroups = requested
	}
	if caps.Intensity {
		f.Intensity = intensity
	}

	needsPost := (!caps.EventType && len(chosen) > 0) ||
		(!caps.AgeGroups && len(requested) > 0) ||
		(!caps.Intensity && intensity != "") ||
		(r.cfg.PreferReviews && q.Profile.City != "")
	f.Limit = r.cfg.TopN
	if needsPost {
		f.Limit = r.cfg.TopN * r.cfg.PostFilterOversample
	}

	events, err := r.events.Query(ctx, f)
	if err != nil {
		return nil, &StageError{Stage: "event_search", Err: err}
	}
	return events, nil
}

// dedupEvents drops repeats of the same (source, name, type, city, state)
// case-folded key, keeping the first occurrence. Idempotent.
func dedupEvents(events []store.EventRecord) []store.EventRecord {
	seen := map[string]struct{}{}
	out := make([]store.EventRecord, 0, len(events))
	for _, e := range events {
		key := strings.ToLower(strings.Join([]string{
			strings.TrimSpace(e.Source),
			strings.TrimSpace(e.EventName),
			strings.TrimSpace(e.EventType),
			strings.TrimSpace(e.City),
			strings.TrimSpace(e.State),
		}, "\x1f"))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// postFilter enforces whatever the store did not filter natively: heading
// membership, age-bucket overlap, and intensity. Events without age metadata
// pass the age check rather than being dropped.
func (r *Retriever) postFilter(events []store.EventRecord, q Query, chosen []string, intensity string) []store.EventRecord {
	caps := r.events.Capabilities()

	if !caps.EventType && len(chosen) > 0 {
		allowed := map[string]struct{}{}
		for _, h := range chosen {
			allowed[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
		}
		var kept []store.EventRecord
		for _, e := range events {
			et := strings.ToLower(strings.TrimSpace(e.EventType))
			if et == "" {
				continue
			}
			if _, ok := allowed[et]; ok {
				kept = append(kept, e)
			}
		}
		events = kept
	}

	requested := normalize.SplitAgeGroups(q.Profile.AgeFocus)
	if !caps.AgeGroups && len(requested) > 0 {
		var kept []store.EventRecord
		for _, e := range events {
			stored := normalize.SplitAgeGroups(e.AgeContains)
			if len(stored) == 0 {
				kept = append(kept, e)
				continue
			}
			if overlaps(requested, stored) {
				kept = append(kept, e)
			}
		}
		events = kept
	}

	if !caps.Intensity && intensity != "" {
		var kept []store.EventRecord
		for _, e := range events {
			if e.Intensity == intensity {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	return events
}

func overlaps(a, b []string) bool {
	set := map[string]struct{}{}
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// partitionByCity moves city-matching events ahead of the rest, preserving
// order inside each partition.
func partitionByCity(events []store.EventRecord, city string) []store.EventRecord {
	if city == "" {
		return events
	}
	matching := make([]store.EventRecord, 0, len(events))
	var rest []store.EventRecord
	for _, e := range events {
		if normalize.City(e.City) == city {
			matching = append(matching, e)
		} else {
			rest = append(rest, e)
		}
	}
	return append(matching, rest...)
}

func matchingDefs(docs []store.ActivityRecord, chosen []string) []store.ActivityRecord {
	set := map[string]struct{}{}
	for _, h := range chosen {
		set[h] = struct{}{}
	}
	var out []store.ActivityRecord
	for _, d := range docs {
		if _, ok := set[strings.TrimSpace(d.HeadingNorm)]; ok {
			out = append(out, d)
		}
	}
	return out
}
