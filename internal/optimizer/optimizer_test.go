package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/privacypilot/internal/llm"
)

// mockProvider records calls and returns a canned response.
type mockProvider struct {
	mu       sync.Mutex
	calls    []llm.CompletionRequest
	response *llm.CompletionResponse
	err      error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func answer(content string) *mockProvider {
	return &mockProvider{response: &llm.CompletionResponse{Content: content, Model: "mock-model"}}
}

var validRequest = Request{
	ConsentData: "70% decline all cookies",
	WebsiteType: "blog",
}

func TestOptimizeMissingFields(t *testing.T) {
	o := New(answer(`{}`))
	for _, req := range []Request{{}, {ConsentData: "x"}, {WebsiteType: "blog"}, {ConsentData: " ", WebsiteType: "blog"}} {
		if _, err := o.Optimize(context.Background(), req); !errors.Is(err, ErrMissingFields) {
			t.Errorf("Optimize(%+v) err = %v, want ErrMissingFields", req, err)
		}
	}
}

func TestOptimizeModelAnswer(t *testing.T) {
	mock := answer(`{"suggestions":"## Ideas\n\n- Explain **analytics**","rationale":"Trust matters."}`)
	o := New(mock)

	resp, err := o.Optimize(context.Background(), validRequest)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if resp.Fallback {
		t.Error("expected model answer, got fallback")
	}
	if !strings.Contains(resp.SuggestionsHTML, "<strong>analytics</strong>") {
		t.Errorf("SuggestionsHTML = %q", resp.SuggestionsHTML)
	}
	if !strings.Contains(resp.SuggestionsHTML, `<h2 id="ideas">`) {
		t.Errorf("SuggestionsHTML missing heading id: %q", resp.SuggestionsHTML)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(mock.calls))
	}
	call := mock.calls[0]
	if !call.JSONMode {
		t.Error("expected JSON mode")
	}
	if !strings.Contains(call.Messages[1].Content, "Website Type: blog") {
		t.Errorf("user message = %q", call.Messages[1].Content)
	}
}

func TestOptimizeEstimatesMissingUsage(t *testing.T) {
	mock := answer(`{"suggestions":"Shorter banner","rationale":"Less friction."}`)
	o := New(mock)

	if _, err := o.Optimize(context.Background(), validRequest); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if mock.response.InputTokens == 0 || mock.response.OutputTokens == 0 {
		t.Errorf("usage = %d/%d, want estimates for unreported tokens",
			mock.response.InputTokens, mock.response.OutputTokens)
	}
}

func TestOptimizeFencedAnswer(t *testing.T) {
	o := New(answer("```json\n{\"suggestions\":\"a\",\"rationale\":\"b\"}\n```"))
	resp, err := o.Optimize(context.Background(), validRequest)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if resp.Fallback || resp.Suggestions != "a" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOptimizeFallback(t *testing.T) {
	tests := map[string]llm.Provider{
		"nil provider":   nil,
		"provider error": &mockProvider{err: errors.New("quota exceeded")},
		"bad json":       answer("not json"),
		"empty fields":   answer(`{"suggestions":""}`),
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := New(p).Optimize(context.Background(), validRequest)
			if err != nil {
				t.Fatalf("Optimize: %v", err)
			}
			if !resp.Fallback {
				t.Error("expected fallback")
			}
			if !strings.HasPrefix(resp.Suggestions, "## Test Suggestions") {
				t.Errorf("Suggestions = %q", resp.Suggestions)
			}
			if !strings.HasPrefix(resp.Rationale, "## Test Rationale") {
				t.Errorf("Rationale = %q", resp.Rationale)
			}
		})
	}
}

func TestRenderEscapesRawHTML(t *testing.T) {
	o := New(answer(`{"suggestions":"<script>alert(1)</script>","rationale":"ok"}`))
	resp, err := o.Optimize(context.Background(), validRequest)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if strings.Contains(resp.SuggestionsHTML, "<script>") {
		t.Errorf("raw HTML passed through: %q", resp.SuggestionsHTML)
	}
}

func TestHTTPOptimize(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r, New(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/optimize", strings.NewReader(`{"consentData":"x"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ai/optimize", strings.NewReader(`{"consentData":"x","websiteType":"shop"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Fallback || resp.SuggestionsHTML == "" {
		t.Errorf("resp = %+v", resp)
	}
}
