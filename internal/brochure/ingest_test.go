package brochure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joelkehle/activity-concierge/internal/store"
)

func TestBuildStores(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	for path, content := range map[string]string{
		filepath.Join(docs, "Events", "salem.md"):      sampleBrochure,
		filepath.Join(docs, "activityType", "aqua.md"): sampleActivityFile,
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	activities, err := store.NewActivityStore(db)
	if err != nil {
		t.Fatal(err)
	}
	events, err := store.NewEventStore(db)
	if err != nil {
		t.Fatal(err)
	}

	counts, err := BuildStores(ctx, docs, activities, events)
	if err != nil {
		t.Fatal(err)
	}
	if counts.ActivityDocs != 2 || counts.Events != 2 {
		t.Fatalf("counts = %+v", counts)
	}

	got, err := events.Query(ctx, store.EventFilter{EventTypes: []string{"AQUA ZUMBA"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events", len(got))
	}
	e := got[0]
	if e.City != "salem" || e.State != "massachusetts" {
		t.Errorf("city/state = %q/%q, want normalized", e.City, e.State)
	}
	if e.CenterName != "Salem Community Center" || e.Instructor != "Maria Lopez" {
		t.Errorf("center/instructor = %q/%q", e.CenterName, e.Instructor)
	}
	if e.AgeContains != "seniors" {
		t.Errorf("age_contains = %q", e.AgeContains)
	}
	if e.Intensity != "low" {
		t.Errorf("intensity = %q, want low from the activity definition", e.Intensity)
	}

	// Rebuild replaces rather than appends.
	counts, err = BuildStores(ctx, docs, activities, events)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := events.Count(ctx); n != 2 {
		t.Fatalf("Count after rebuild = %d, want 2", n)
	}
	if counts.Events != 2 {
		t.Fatalf("rebuild counts = %+v", counts)
	}
}
