package reviews

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joelkehle/activity-concierge/internal/llm"
	"github.com/joelkehle/activity-concierge/internal/store"
)

const sampleCSV = `review_text,rating,created_at
"Loved BEGINNER COOKING at Pinecrest YMCA, great instructor",5,2024-01-02
"",3,2024-01-03
"Pool was too cold",2,2024-01-04
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSVSkipsEmptyText(t *testing.T) {
	revs, err := LoadCSV(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 {
		t.Fatalf("got %d reviews, want 2", len(revs))
	}
	if revs[0].Rating != "5" || revs[0].CreatedAt != "2024-01-02" {
		t.Fatalf("first review = %+v", revs[0])
	}
	if revs[1].Text != "Pool was too cold" {
		t.Fatalf("second review = %+v", revs[1])
	}
}

func TestExtractMetadataRegex(t *testing.T) {
	m := ExtractMetadataRegex("Loved BEGINNER COOKING at Pinecrest YMCA, great instructor")
	if m.EventType != "BEGINNER COOKING" {
		t.Errorf("event type = %q", m.EventType)
	}
	if m.Location != "Pinecrest" {
		t.Errorf("location = %q", m.Location)
	}
	if m.Sentiment != "" {
		t.Errorf("regex path must not set sentiment, got %q", m.Sentiment)
	}

	m = ExtractMetadataRegex("Pool was too cold")
	if m.EventType != "" || m.Location != "" {
		t.Errorf("no patterns should match, got %+v", m)
	}
}

type fakeCaller struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeCaller) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (f *fakeCaller) ModelName() string { return "fake-model" }

func TestExtractAllBatchesAndPads(t *testing.T) {
	// Three reviews, batch size 2: first batch returns too few entries and
	// must be padded; second returns exactly one.
	caller := &fakeCaller{responses: []string{
		`[{"event_type": "YOGA", "location": "Salem Rec", "sentiment": "positive"}]`,
		`[{"event_type": null, "location": null, "sentiment": "negative"}]`,
	}}
	ex := NewExtractor(llm.NewExecutor(caller), 2)
	revs := []Review{{Text: "a"}, {Text: "b"}, {Text: "c"}}

	metas, err := ex.ExtractAll(context.Background(), revs)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 3 {
		t.Fatalf("got %d metas", len(metas))
	}
	if metas[0].EventType != "YOGA" || metas[1] != (Metadata{}) {
		t.Fatalf("first batch = %+v", metas[:2])
	}
	if metas[2].Sentiment != "negative" {
		t.Fatalf("second batch = %+v", metas[2])
	}
}

func TestExtractAllContentFailureDegrades(t *testing.T) {
	caller := &fakeCaller{responses: []string{"junk", "junk", "junk"}}
	ex := NewExtractor(llm.NewExecutor(caller), 5)
	metas, err := ex.ExtractAll(context.Background(), []Review{{Text: "a"}, {Text: "b"}})
	if err != nil {
		t.Fatalf("content failure must degrade, not fail: %v", err)
	}
	for _, m := range metas {
		if m != (Metadata{}) {
			t.Fatalf("degraded batch must carry empty metadata: %+v", m)
		}
	}
}

func TestExtractAllTransportFailureAborts(t *testing.T) {
	caller := &fakeCaller{errs: []error{errors.New("status 401 unauthorized")}}
	ex := NewExtractor(llm.NewExecutor(caller), 5)
	if _, err := ex.ExtractAll(context.Background(), []Review{{Text: "a"}}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestBuildRegexPathAndReuse(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "reviews.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	st, err := store.NewReviewStore(db)
	if err != nil {
		t.Fatal(err)
	}

	path := writeCSV(t, sampleCSV)
	n, err := Build(ctx, path, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("stored %d reviews, want 2", n)
	}

	got, err := st.Query(ctx, store.ReviewFilter{EventTypes: []string{"beginner cooking"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Location != "Pinecrest" || got[0].Source != "reviews.csv" {
		t.Fatalf("stored record = %+v", got)
	}

	// A populated store is reused, not rebuilt.
	n, err = Build(ctx, filepath.Join(t.TempDir(), "missing.csv"), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("reuse count = %d, want 2", n)
	}
}
