package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/joelkehle/activity-concierge/internal/store"
)

// rerank orders candidates by a composite of mean review scores. The venue
// carries more weight than the activity category. An event with only one of
// the two scores uses it directly; with neither it scores 0 and sinks to the
// bottom without being dropped. The sort is stable, so equal scores keep
// their prior relative order.
func (r *Retriever) rerank(ctx context.Context, events []store.EventRecord) ([]store.EventRecord, error) {
	if len(events) == 0 {
		return events, nil
	}

	var types, venues []string
	seenType := map[string]struct{}{}
	seenVenue := map[string]struct{}{}
	for _, e := range events {
		if et := strings.TrimSpace(e.EventType); et != "" {
			if _, ok := seenType[strings.ToLower(et)]; !ok {
				seenType[strings.ToLower(et)] = struct{}{}
				types = append(types, et)
			}
		}
		if v := venueOf(e); v != "" {
			if _, ok := seenVenue[strings.ToLower(v)]; !ok {
				seenVenue[strings.ToLower(v)] = struct{}{}
				venues = append(venues, v)
			}
		}
	}

	scores, err := r.reviews.Scores(ctx, types, venues)
	if err != nil {
		return nil, &StageError{Stage: "review_scores", Err: err}
	}
	activity := foldKeys(scores.Activity)
	venue := foldKeys(scores.Venue)

	composite := make([]float64, len(events))
	for i, e := range events {
		vScore, hasVenue := venue[strings.ToLower(venueOf(e))]
		aScore, hasActivity := activity[strings.ToLower(strings.TrimSpace(e.EventType))]
		switch {
		case hasVenue && hasActivity:
			composite[i] = r.cfg.VenueWeight*vScore + r.cfg.ActivityWeight*aScore
		case hasVenue:
			composite[i] = vScore
		case hasActivity:
			composite[i] = aScore
		}
	}

	order := make([]int, len(events))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return composite[order[i]] > composite[order[j]]
	})
	out := make([]store.EventRecord, len(events))
	for i, idx := range order {
		out[i] = events[idx]
	}
	return out, nil
}

// venueOf is the venue identity used for review scoring: the center name
// when the brochure gave one, else the city.
func venueOf(e store.EventRecord) string {
	if v := strings.TrimSpace(e.CenterName); v != "" {
		return v
	}
	return strings.TrimSpace(e.City)
}

func foldKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
