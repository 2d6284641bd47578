package llm

import (
	"context"
	"errors"
	"testing"
)

type fakeCaller struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeCaller) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (f *fakeCaller) ModelName() string { return "fake-model" }

func TestRunParsesFencedJSON(t *testing.T) {
	caller := &fakeCaller{responses: []string{"```json\n{\"city\":\"salem\"}\n```"}}
	exec := NewExecutor(caller)
	var out struct {
		City string `json:"city"`
	}
	m, err := exec.Run(context.Background(), "profile", "sys", "prompt", &out, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.City != "salem" || m.Attempts != 1 {
		t.Fatalf("got %+v metrics %+v", out, m)
	}
}

func TestRunReprompotsOnInvalidJSON(t *testing.T) {
	caller := &fakeCaller{responses: []string{"not json", `{"city":"salem"}`}}
	exec := NewExecutor(caller)
	var out struct {
		City string `json:"city"`
	}
	m, err := exec.Run(context.Background(), "profile", "sys", "prompt", &out, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.ContentRetries != 1 || out.City != "salem" {
		t.Fatalf("metrics %+v out %+v", m, out)
	}
	if len(caller.prompts) != 2 || caller.prompts[1] == caller.prompts[0] {
		t.Fatal("expected feedback appended to second prompt")
	}
}

func TestRunContentErrorAfterBudget(t *testing.T) {
	caller := &fakeCaller{responses: []string{"x", "y", "z"}}
	exec := NewExecutor(caller)
	var out map[string]any
	_, err := exec.Run(context.Background(), "profile", "sys", "prompt", &out, nil)
	var ce *ContentError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ContentError, got %v", err)
	}
	if ce.Stage != "profile" {
		t.Fatalf("stage = %q", ce.Stage)
	}
}

func TestRunValidationFeedback(t *testing.T) {
	caller := &fakeCaller{responses: []string{`{"city":""}`, `{"city":"salem"}`}}
	exec := NewExecutor(caller)
	var out struct {
		City string `json:"city"`
	}
	validate := func() error {
		if out.City == "" {
			return errors.New("city required")
		}
		return nil
	}
	if _, err := exec.Run(context.Background(), "profile", "sys", "prompt", &out, validate); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.City != "salem" {
		t.Fatalf("out %+v", out)
	}
}

func TestRunNonRetryableTransportError(t *testing.T) {
	caller := &fakeCaller{errs: []error{errors.New("status 400 bad request")}}
	exec := NewExecutor(caller)
	var out map[string]any
	_, err := exec.Run(context.Background(), "profile", "sys", "prompt", &out, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *ContentError
	if errors.As(err, &ce) {
		t.Fatal("transport failure must not be a ContentError")
	}
	if caller.calls != 1 {
		t.Fatalf("client errors must not retry, calls=%d", caller.calls)
	}
}

func TestClassifyTransportError(t *testing.T) {
	cases := []struct {
		err  error
		want failureClass
	}{
		{context.DeadlineExceeded, failureTimeout},
		{errors.New("status 429 too many requests"), failureRateLimit},
		{errors.New("rate limit exceeded"), failureRateLimit},
		{errors.New("status 503 unavailable"), failureServer},
		{errors.New("status 404 not found"), failureClient},
		{errors.New("connection reset"), failureServer},
	}
	for _, c := range cases {
		if got := classifyTransportError(c.err); got != c.want {
			t.Errorf("classifyTransportError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, c := range cases {
		if got := StripCodeFences(c.in); got != c.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
