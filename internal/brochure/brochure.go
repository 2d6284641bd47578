// Package brochure parses community-center markdown brochures into event
// records and activity-type definition documents. Brochures carry one center
// per file ("## Center Name" plus **Location:** / **Type:** lines) and one
// event per "### " block; activity-type files define one activity per heading
// with an optional **Intensity:** line.
package brochure

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/joelkehle/activity-concierge/internal/normalize"
)

var (
	eventHeadingRe = regexp.MustCompile(`(?m)^###\s+(.+?)\s*$`)
	centerRe       = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)
	locationRe     = regexp.MustCompile(`(?m)^\*\*Location:\*\*\s*(.+?)\s*$`)
	centerTypeRe   = regexp.MustCompile(`(?m)^\*\*Type:\*\*\s*(.+?)\s*$`)
	intensityRe    = regexp.MustCompile(`(?mi)^\s*\*\*Intensity:\*\*\s*(.+?)\s*$`)

	fieldRes = map[string]*regexp.Regexp{
		"event_type": regexp.MustCompile(`(?mi)^\s*-\s*Event Type:\s*(.+?)\s*$`),
		"category":   regexp.MustCompile(`(?mi)^\s*-\s*Category:\s*(.+?)\s*$`),
		"age_tags":   regexp.MustCompile(`(?mi)^\s*-\s*Age Tags:\s*(.+?)\s*$`),
		"instructor": regexp.MustCompile(`(?mi)^\s*-\s*(?:Instructor|Facilitator):\s*(.+?)\s*$`),
		"date_range": regexp.MustCompile(`(?mi)^\s*-\s*Date Range:\s*(.+?)\s*$`),
		"time_slots": regexp.MustCompile(`(?mi)^\s*-\s*Time Slots:\s*(.+?)\s*$`),
		"duration":   regexp.MustCompile(`(?mi)^\s*-\s*Duration:\s*(.+?)\s*$`),
		"spots":      regexp.MustCompile(`(?mi)^\s*-\s*Spots:\s*(.+?)\s*$`),
	}
)

// CenterMeta is the file-level metadata of one brochure.
type CenterMeta struct {
	Source     string
	CenterName string
	CenterType string
	City       string
	State      string
}

// EventFields are the bullet-list fields of one event block. Missing fields
// stay empty.
type EventFields struct {
	EventType  string
	AgeTags    string
	Instructor string
	DateRange  string
	TimeSlots  string
	Duration   string
	Spots      string
}

// EventDoc is one event ready for indexing: the raw block plus derived
// filter metadata. AgeMin/AgeMax are nil when no numeric range was found.
type EventDoc struct {
	Source       string
	EventName    string
	EventType    string
	EventTypeRaw string
	AgeMin       *int
	AgeMax       *int
	AgeContains  []string
	City         string
	State        string
	Intensity    string
	Content      string
}

// ActivityDoc is one activity-type definition chunk.
type ActivityDoc struct {
	Source      string
	Heading     string
	HeadingNorm string
	Intensity   string
	Content     string
}

func safeFind(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ParseCenter extracts the brochure-level metadata. The location line is
// "City, State"; anything without a comma leaves city/state empty.
func ParseCenter(mdText, source string) CenterMeta {
	meta := CenterMeta{
		Source:     source,
		CenterName: safeFind(centerRe, mdText),
		CenterType: safeFind(centerTypeRe, mdText),
	}
	if loc := safeFind(locationRe, mdText); loc != "" {
		parts := strings.SplitN(loc, ",", 2)
		if len(parts) == 2 {
			meta.City = strings.TrimSpace(parts[0])
			meta.State = strings.TrimSpace(parts[1])
		}
	}
	return meta
}

// SplitEventBlocks returns (title, block) pairs. A block runs from its
// "### " heading to the next one or end of file, heading line included.
func SplitEventBlocks(mdText string) [][2]string {
	locs := eventHeadingRe.FindAllStringSubmatchIndex(mdText, -1)
	blocks := make([][2]string, 0, len(locs))
	for i, loc := range locs {
		title := strings.TrimSpace(mdText[loc[2]:loc[3]])
		end := len(mdText)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, [2]string{title, strings.TrimSpace(mdText[loc[0]:end])})
	}
	return blocks
}

// ParseEventFields reads the bullet-list fields of one event block. Event
// type falls back to the "Category:" spelling some files use.
func ParseEventFields(block string) EventFields {
	f := EventFields{
		EventType:  safeFind(fieldRes["event_type"], block),
		AgeTags:    safeFind(fieldRes["age_tags"], block),
		Instructor: safeFind(fieldRes["instructor"], block),
		DateRange:  safeFind(fieldRes["date_range"], block),
		TimeSlots:  safeFind(fieldRes["time_slots"], block),
		Duration:   safeFind(fieldRes["duration"], block),
		Spots:      safeFind(fieldRes["spots"], block),
	}
	if f.EventType == "" {
		f.EventType = safeFind(fieldRes["category"], block)
	}
	return f
}

// BuildActivityDocs splits an activity-type file on its ## and ### headings
// and returns one doc per heading chunk plus an intensity map keyed by
// normalized heading. Chunks whose normalized heading is empty or a brochure
// page marker are skipped; the first intensity seen for a heading wins.
func BuildActivityDocs(mdText, source string) ([]ActivityDoc, map[string]string) {
	var docs []ActivityDoc
	intensityMap := map[string]string{}

	for _, chunk := range splitHeadingChunks(mdText) {
		headingNorm := normalize.ActivityHeading(chunk.heading)
		if headingNorm == "" || strings.HasPrefix(headingNorm, "PAGE ") {
			continue
		}
		intensity := ""
		if m := intensityRe.FindStringSubmatch(chunk.content); m != nil {
			intensity = normalize.Intensity(m[1])
		}
		if intensity != "" {
			if _, ok := intensityMap[headingNorm]; !ok {
				intensityMap[headingNorm] = intensity
			}
		}
		docs = append(docs, ActivityDoc{
			Source:      source,
			Heading:     chunk.heading,
			HeadingNorm: headingNorm,
			Intensity:   intensity,
			Content:     strings.TrimSpace(chunk.content),
		})
	}
	return docs, intensityMap
}

type headingChunk struct {
	heading string
	content string
}

// splitHeadingChunks walks the goldmark AST and cuts the source at every
// level-2 or level-3 heading. Each chunk keeps its heading line so the
// indexed text reads like the file.
func splitHeadingChunks(mdText string) []headingChunk {
	src := []byte(mdText)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	type mark struct {
		heading string
		start   int
	}
	var marks []mark
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || (h.Level != 2 && h.Level != 3) || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := h.Lines().At(0)
		start := seg.Start
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		marks = append(marks, mark{heading: headingText(h, src), start: start})
		return ast.WalkSkipChildren, nil
	})

	chunks := make([]headingChunk, 0, len(marks))
	for i, m := range marks {
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		chunks = append(chunks, headingChunk{heading: m.heading, content: string(src[m.start:end])})
	}
	return chunks
}

func headingText(h *ast.Heading, src []byte) string {
	var sb strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
		}
	}
	return strings.TrimSpace(sb.String())
}

// BuildEventDocs splits a brochure into one doc per event block with derived
// filter metadata. Intensity prefers the activity-definition map keyed by
// normalized event type, falling back to prose cues in the block.
func BuildEventDocs(mdText, source string, intensityMap map[string]string, city, state string) []EventDoc {
	blocks := SplitEventBlocks(mdText)
	docs := make([]EventDoc, 0, len(blocks))
	for _, b := range blocks {
		title, block := b[0], b[1]
		fields := ParseEventFields(block)
		eventType := normalize.EventType(fields.EventType)

		doc := EventDoc{
			Source:       source,
			EventName:    title,
			EventType:    eventType,
			EventTypeRaw: fields.EventType,
			AgeContains:  normalize.ExtractAgeGroups(block),
			City:         city,
			State:        state,
			Content:      block,
		}
		if r, ok := normalize.ExtractAgeRange(block); ok {
			lo := r.Min
			doc.AgeMin = &lo
			if !r.Open {
				hi := r.Max
				doc.AgeMax = &hi
			}
		}
		if eventType != "" {
			doc.Intensity = intensityMap[eventType]
		}
		if doc.Intensity == "" {
			doc.Intensity = normalize.InferIntensity(block)
		}
		docs = append(docs, doc)
	}
	return docs
}

// LoadDir finds markdown files under documentsPath, sorted into event
// brochures (Events/ folder) and activity-type definitions (activityType/
// folder). Other folders are ignored.
func LoadDir(documentsPath string) (eventFiles, activityFiles []string, err error) {
	entries, err := os.ReadDir(documentsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read documents dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(documentsPath, e.Name(), "*.md"))
		if err != nil {
			return nil, nil, err
		}
		switch e.Name() {
		case "Events":
			eventFiles = append(eventFiles, matches...)
		case "activityType":
			activityFiles = append(activityFiles, matches...)
		}
	}
	return eventFiles, activityFiles, nil
}
