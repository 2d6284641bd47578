// Package reviews ingests the activity-review CSV into the review store,
// extracting event type, venue, and sentiment metadata either with an LLM
// (batched) or with regex heuristics when no model is available.
package reviews

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// "BEGINNER COOKING at Pinecrest YMCA": uppercase run before "at".
	eventTypeRe = regexp.MustCompile(`([A-Z][A-Z\s/]+?)\s+at\s+`)
	// Capitalized venue name after "at".
	locationRe = regexp.MustCompile(`at\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
)

// Review is one CSV row worth keeping, before metadata extraction.
type Review struct {
	Text      string
	CreatedAt string
	Rating    string
}

// Metadata is what extraction adds to a review. Empty fields mean the
// information was not present or could not be determined.
type Metadata struct {
	EventType string `json:"event_type"`
	Location  string `json:"location"`
	Sentiment string `json:"sentiment"`
}

// LoadCSV reads the reviews file. Rows are keyed by header name; rows with
// an empty review_text are skipped.
func LoadCSV(path string) ([]Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reviews csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Review
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		text := field(row, "review_text")
		if text == "" {
			continue
		}
		out = append(out, Review{
			Text:      text,
			CreatedAt: field(row, "created_at"),
			Rating:    field(row, "rating"),
		})
	}
	return out, nil
}

// ExtractMetadataRegex pulls event type and venue out of "TYPE at Venue"
// phrasing. Sentiment is left empty; the regex path does not judge tone.
func ExtractMetadataRegex(text string) Metadata {
	var m Metadata
	if match := eventTypeRe.FindStringSubmatch(text); match != nil {
		m.EventType = strings.TrimSpace(match[1])
	}
	if match := locationRe.FindStringSubmatch(text); match != nil {
		m.Location = strings.TrimSpace(match[1])
	}
	return m
}

// SourceName is the source label stored with each review.
func SourceName(csvPath string) string {
	return filepath.Base(csvPath)
}
