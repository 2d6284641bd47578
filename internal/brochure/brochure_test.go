package brochure

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleBrochure = `# PAGE 3 — Fall Programs

## Salem Community Center
**Location:** Salem, Massachusetts
**Type:** Recreation Center

### Aqua Zumba for Seniors
- Event Type: Aqua Zumba®
- Age Tags: Seniors
- Instructor: Maria Lopez
- Date Range: Sep 8 - Nov 20
- Time Slots: Mon/Wed 9:00 AM
- Duration: 45 minutes
- Spots: 20

A gentle water dance class. Ages: 60+.

### Family Swim Night
- Category: Open Swim
- Facilitator: Front Desk
- Time Slots: Fri 6:00 PM

Fun for all ages in the main pool.
`

const sampleActivityFile = `## AQUA ZUMBA

**Intensity:** Low

Water-based dance fitness set to Latin music.

### AQUA CARDIO

**Intensity:** Moderate

Cardio conditioning in the shallow pool.

## PAGE 2 — ignore me
`

func TestParseCenter(t *testing.T) {
	got := ParseCenter(sampleBrochure, "salem.md")
	want := CenterMeta{
		Source:     "salem.md",
		CenterName: "Salem Community Center",
		CenterType: "Recreation Center",
		City:       "Salem",
		State:      "Massachusetts",
	}
	if got != want {
		t.Fatalf("ParseCenter = %+v, want %+v", got, want)
	}
}

func TestParseCenterNoComma(t *testing.T) {
	got := ParseCenter("## X\n**Location:** Somewhere\n", "x.md")
	if got.City != "" || got.State != "" {
		t.Fatalf("location without comma must leave city/state empty: %+v", got)
	}
}

func TestSplitEventBlocks(t *testing.T) {
	blocks := SplitEventBlocks(sampleBrochure)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0][0] != "Aqua Zumba for Seniors" || blocks[1][0] != "Family Swim Night" {
		t.Fatalf("titles = %q, %q", blocks[0][0], blocks[1][0])
	}
}

func TestParseEventFields(t *testing.T) {
	blocks := SplitEventBlocks(sampleBrochure)
	f := ParseEventFields(blocks[0][1])
	if f.EventType != "Aqua Zumba®" || f.Instructor != "Maria Lopez" || f.Spots != "20" {
		t.Fatalf("fields = %+v", f)
	}
	// Category and Facilitator spellings.
	f2 := ParseEventFields(blocks[1][1])
	if f2.EventType != "Open Swim" || f2.Instructor != "Front Desk" {
		t.Fatalf("fields = %+v", f2)
	}
}

func TestBuildActivityDocs(t *testing.T) {
	docs, intensity := BuildActivityDocs(sampleActivityFile, "aqua.md")
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 (page marker skipped): %+v", len(docs), docs)
	}
	if docs[0].HeadingNorm != "AQUA ZUMBA" || docs[1].HeadingNorm != "AQUA CARDIO" {
		t.Fatalf("headings = %q, %q", docs[0].HeadingNorm, docs[1].HeadingNorm)
	}
	want := map[string]string{"AQUA ZUMBA": "low", "AQUA CARDIO": "moderate"}
	if !reflect.DeepEqual(intensity, want) {
		t.Fatalf("intensity map = %v, want %v", intensity, want)
	}
}

func TestBuildEventDocs(t *testing.T) {
	intensityMap := map[string]string{"AQUA ZUMBA": "low"}
	docs := BuildEventDocs(sampleBrochure, "salem.md", intensityMap, "salem", "massachusetts")
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}

	zumba := docs[0]
	if zumba.EventType != "AQUA ZUMBA" || zumba.EventTypeRaw != "Aqua Zumba®" {
		t.Errorf("event type = %q raw %q", zumba.EventType, zumba.EventTypeRaw)
	}
	if zumba.Intensity != "low" {
		t.Errorf("intensity = %q, want low (from activity map)", zumba.Intensity)
	}
	if zumba.AgeMin == nil || *zumba.AgeMin != 60 || zumba.AgeMax != nil {
		t.Errorf("ages = %v/%v, want open 60+", zumba.AgeMin, zumba.AgeMax)
	}
	if want := []string{"seniors"}; !reflect.DeepEqual(zumba.AgeContains, want) {
		t.Errorf("age groups = %v, want %v", zumba.AgeContains, want)
	}
	if zumba.City != "salem" || zumba.State != "massachusetts" {
		t.Errorf("city/state = %q/%q", zumba.City, zumba.State)
	}

	swim := docs[1]
	if want := []string{"all"}; !reflect.DeepEqual(swim.AgeContains, want) {
		t.Errorf("family event age groups = %v, want %v", swim.AgeContains, want)
	}
	if swim.AgeMin != nil {
		t.Errorf("no numeric ages expected, got %v", *swim.AgeMin)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{
		filepath.Join(dir, "Events", "salem.md"),
		filepath.Join(dir, "Events", "plymouth.md"),
		filepath.Join(dir, "activityType", "aqua.md"),
		filepath.Join(dir, "misc", "notes.md"),
	} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("# x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	events, activities, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || len(activities) != 1 {
		t.Fatalf("events=%v activities=%v", events, activities)
	}
}
