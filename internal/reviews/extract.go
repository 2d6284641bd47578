package reviews

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joelkehle/activity-concierge/internal/llm"
)

const metadataSystemPrompt = `You are a metadata extraction assistant for activity reviews.

Your task:
- Extract structured metadata from review text.
- Output ONLY valid JSON.
- Do NOT guess or invent information.
- If information is not present, return null.

Extract the following fields:
- event_type: string | null
  The specific activity, class, or event type mentioned (e.g., "BEGINNER COOKING", "SWIMMING", "YOGA", "SENIOR CIRCUITS")
  Use the exact name as mentioned in the review, or a normalized version if clear.
  If no specific event type is mentioned, return null.

- location: string | null
  The venue, facility, or location name (e.g., "Pinecrest YMCA", "Summit Reach YMCA", "Boston Library")
  Include the full name if available (e.g., "Pinecrest YMCA" not just "Pinecrest")
  If no location is mentioned, return null.

- sentiment: string | null
  The sentiment of the review, either "positive", "negative", or "neutral".
  If the review is clearly positive (praise, satisfaction, recommendation), return "positive".
  If the review is clearly negative (complaints, dissatisfaction, warnings), return "negative".
  If the review is neutral or mixed, return "neutral".
  If sentiment cannot be determined, return null.

Rules:
- Extract only information explicitly stated in the review text.
- Preserve capitalization and formatting of event types and locations.
- If the review mentions multiple events or locations, extract the primary one mentioned.`

// Extractor runs batched metadata extraction over review texts.
type Extractor struct {
	exec      *llm.Executor
	batchSize int
}

func NewExtractor(exec *llm.Executor, batchSize int) *Extractor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Extractor{exec: exec, batchSize: batchSize}
}

// ExtractAll returns one Metadata per review, in order. Batches that fail
// on content after retries degrade to empty metadata for their reviews;
// transport failures abort the run.
func (e *Extractor) ExtractAll(ctx context.Context, revs []Review) ([]Metadata, error) {
	out := make([]Metadata, 0, len(revs))
	for start := 0; start < len(revs); start += e.batchSize {
		end := start + e.batchSize
		if end > len(revs) {
			end = len(revs)
		}
		batch, err := e.extractBatch(ctx, revs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *Extractor) extractBatch(ctx context.Context, batch []Review) ([]Metadata, error) {
	var sb strings.Builder
	for i, r := range batch {
		fmt.Fprintf(&sb, "Review %d:\n%s\n\n", i+1, r.Text)
	}
	prompt := fmt.Sprintf(`Extract metadata from these reviews:

%s
Return a JSON array with one object per review, each with event_type, location, and sentiment fields.
Example: [{"event_type": "BEGINNER COOKING", "location": "Pinecrest YMCA", "sentiment": "positive"}, {"event_type": null, "location": "Boston", "sentiment": "negative"}]
If a field cannot be determined, use null.`, sb.String())

	var parsed []Metadata
	if _, err := e.exec.Run(ctx, "review_metadata", metadataSystemPrompt, prompt, &parsed, nil); err != nil {
		if llm.IsContentError(err) {
			log.Printf("reviews batch_unusable size=%d err=%q", len(batch), err.Error())
			return make([]Metadata, len(batch)), nil
		}
		return nil, err
	}

	// The model may return too few or too many entries; pad or truncate to
	// keep review/metadata alignment.
	for len(parsed) < len(batch) {
		parsed = append(parsed, Metadata{})
	}
	return parsed[:len(batch)], nil
}
