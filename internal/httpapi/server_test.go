package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joelkehle/activity-concierge/internal/profile"
	"github.com/joelkehle/activity-concierge/internal/retrieval"
	"github.com/joelkehle/activity-concierge/internal/store"
)

type fakeExtractor struct {
	out profile.Profile
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, existing profile.Profile, message string, history [][2]string) (profile.Profile, error) {
	if f.err != nil {
		return existing, f.err
	}
	return profile.Merge(existing, f.out), nil
}

type fakeRetriever struct {
	res   retrieval.Result
	err   error
	gotQ  retrieval.Query
	calls int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q retrieval.Query) (retrieval.Result, error) {
	f.calls++
	f.gotQ = q
	return f.res, f.err
}

func postChat(t *testing.T, h http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	blob, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(blob))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChatTurn(t *testing.T) {
	ret := &fakeRetriever{res: retrieval.Result{
		Events:         []store.EventRecord{{EventName: "Swim Class"}},
		ChosenHeadings: []string{"AQUA CARDIO"},
		Context:        "## Retrieved Events\n- **Swim Class**",
	}}
	ex := &fakeExtractor{out: profile.Profile{City: "Salem", AgeFocus: "kids"}}
	h := NewServer(ex, ret)

	w := postChat(t, h, map[string]any{"message": "pool classes for my kids"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body)
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Error("server must mint a session id")
	}
	if resp.Profile.City != "Salem" || resp.EventCount != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if ret.gotQ.Profile.AgeFocus != "kids" {
		t.Errorf("retriever got profile %+v", ret.gotQ.Profile)
	}
}

func TestChatSessionAccumulates(t *testing.T) {
	ret := &fakeRetriever{res: retrieval.Result{Context: "ctx"}}
	ex := &fakeExtractor{out: profile.Profile{Interests: []string{"aquatics"}}}
	h := NewServer(ex, ret)

	w := postChat(t, h, map[string]any{"message": "first"})
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	w = postChat(t, h, map[string]any{"session_id": resp.SessionID, "message": "second"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/profile?session_id="+resp.SessionID, nil)
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, req)
	if pw.Code != http.StatusOK {
		t.Fatalf("profile status = %d", pw.Code)
	}
	var pr struct {
		Profile profile.Profile `json:"profile"`
	}
	if err := json.Unmarshal(pw.Body.Bytes(), &pr); err != nil {
		t.Fatal(err)
	}
	if len(pr.Profile.Interests) != 1 || pr.Profile.Interests[0] != "aquatics" {
		t.Fatalf("profile = %+v", pr.Profile)
	}
}

func TestChatValidation(t *testing.T) {
	h := NewServer(nil, &fakeRetriever{})
	if w := postChat(t, h, map[string]any{"message": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/chat", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET chat status = %d", w.Code)
	}
}

func TestChatExtractorFailure(t *testing.T) {
	ret := &fakeRetriever{}
	h := NewServer(&fakeExtractor{err: errors.New("transport down")}, ret)
	w := postChat(t, h, map[string]any{"message": "hello"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if ret.calls != 0 {
		t.Error("retrieval must not run when the turn fails")
	}
}

func TestChatRetrievalFailure(t *testing.T) {
	ret := &fakeRetriever{err: &retrieval.StageError{Stage: "event_search", Err: errors.New("db gone")}}
	h := NewServer(nil, ret)
	w := postChat(t, h, map[string]any{"message": "hello"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProfileUnknownSession(t *testing.T) {
	h := NewServer(nil, &fakeRetriever{})
	req := httptest.NewRequest(http.MethodGet, "/v1/profile?session_id=nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	h := NewServer(nil, &fakeRetriever{})
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
