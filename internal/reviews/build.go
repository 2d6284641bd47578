package reviews

import (
	"context"
	"fmt"
	"log"

	"github.com/joelkehle/activity-concierge/internal/store"
)

// Build fills the review store from the CSV. A store that already holds
// reviews is reused untouched; otherwise the table is cleared and reloaded.
// With a nil extractor the regex fallback supplies metadata.
func Build(ctx context.Context, csvPath string, st *store.ReviewStore, extractor *Extractor) (int, error) {
	existing, err := st.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	if existing > 0 {
		log.Printf("reviews reuse_existing count=%d", existing)
		return existing, nil
	}

	revs, err := LoadCSV(csvPath)
	if err != nil {
		return 0, err
	}
	log.Printf("reviews loaded count=%d path=%s", len(revs), csvPath)

	var metas []Metadata
	if extractor != nil {
		metas, err = extractor.ExtractAll(ctx, revs)
		if err != nil {
			return 0, fmt.Errorf("extract review metadata: %w", err)
		}
	} else {
		metas = make([]Metadata, len(revs))
		for i, r := range revs {
			metas[i] = ExtractMetadataRegex(r.Text)
		}
	}

	source := SourceName(csvPath)
	records := make([]store.ReviewRecord, len(revs))
	for i, r := range revs {
		records[i] = store.ReviewRecord{
			ReviewText: r.Text,
			Rating:     r.Rating,
			CreatedAt:  r.CreatedAt,
			EventType:  metas[i].EventType,
			Location:   metas[i].Location,
			Sentiment:  metas[i].Sentiment,
			Source:     source,
		}
	}

	if err := st.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear reviews: %w", err)
	}
	if err := st.Insert(ctx, records); err != nil {
		return 0, err
	}
	log.Printf("reviews stored count=%d", len(records))
	return len(records), nil
}
