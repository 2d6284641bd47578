package brochure

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joelkehle/activity-concierge/internal/normalize"
	"github.com/joelkehle/activity-concierge/internal/store"
)

// Counts reports what an ingest run loaded.
type Counts struct {
	ActivityDocs int
	Events       int
}

// BuildStores ingests every markdown file under documentsPath into the
// activity index and the event store. Activity-type files go first so their
// intensity map can label the events. Both tables are replaced whole.
func BuildStores(ctx context.Context, documentsPath string, activities *store.ActivityStore, events *store.EventStore) (Counts, error) {
	eventFiles, activityFiles, err := LoadDir(documentsPath)
	if err != nil {
		return Counts{}, err
	}
	log.Printf("ingest discovered event_files=%d activity_files=%d", len(eventFiles), len(activityFiles))

	var activityRecords []store.ActivityRecord
	intensityMap := map[string]string{}
	for _, path := range activityFiles {
		text, err := os.ReadFile(path)
		if err != nil {
			return Counts{}, fmt.Errorf("read %s: %w", path, err)
		}
		docs, fileIntensity := BuildActivityDocs(string(text), filepath.Base(path))
		for heading, intensity := range fileIntensity {
			if _, ok := intensityMap[heading]; !ok {
				intensityMap[heading] = intensity
			}
		}
		for _, d := range docs {
			activityRecords = append(activityRecords, store.ActivityRecord{
				Source:      d.Source,
				Heading:     d.Heading,
				HeadingNorm: d.HeadingNorm,
				Intensity:   d.Intensity,
				Content:     d.Content,
			})
		}
	}

	var eventRecords []store.EventRecord
	for _, path := range eventFiles {
		text, err := os.ReadFile(path)
		if err != nil {
			return Counts{}, fmt.Errorf("read %s: %w", path, err)
		}
		md := string(text)
		center := ParseCenter(md, filepath.Base(path))
		city := normalize.City(center.City)
		state := normalize.State(center.State)
		for _, doc := range BuildEventDocs(md, center.Source, intensityMap, city, state) {
			eventRecords = append(eventRecords, toEventRecord(doc, center))
		}
	}

	if err := activities.Clear(ctx); err != nil {
		return Counts{}, fmt.Errorf("clear activity types: %w", err)
	}
	if err := activities.Insert(ctx, activityRecords); err != nil {
		return Counts{}, err
	}
	if err := events.Clear(ctx); err != nil {
		return Counts{}, fmt.Errorf("clear events: %w", err)
	}
	if err := events.Insert(ctx, eventRecords); err != nil {
		return Counts{}, err
	}
	log.Printf("ingest stored activity_docs=%d events=%d", len(activityRecords), len(eventRecords))
	return Counts{ActivityDocs: len(activityRecords), Events: len(eventRecords)}, nil
}

func toEventRecord(doc EventDoc, center CenterMeta) store.EventRecord {
	fields := ParseEventFields(doc.Content)
	return store.EventRecord{
		EventName:    doc.EventName,
		EventType:    doc.EventType,
		EventTypeRaw: doc.EventTypeRaw,
		Source:       doc.Source,
		City:         doc.City,
		State:        doc.State,
		AgeMin:       doc.AgeMin,
		AgeMax:       doc.AgeMax,
		AgeContains:  normalize.JoinAgeGroups(doc.AgeContains),
		Intensity:    doc.Intensity,
		Instructor:   fields.Instructor,
		DateRange:    fields.DateRange,
		TimeSlots:    fields.TimeSlots,
		Duration:     fields.Duration,
		Spots:        fields.Spots,
		CenterName:   center.CenterName,
		CenterType:   center.CenterType,
		PageContent:  doc.Content,
	}
}
