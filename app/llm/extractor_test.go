package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, reply string) (*Client, *[]map[string]any) {
	t.Helper()

	var requests []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		requests = append(requests, req)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return NewClient(server.URL, "test-model", "test-key"), &requests
}

func TestExtractArticle_ParsesFencedJSON(t *testing.T) {
	reply := "Here you go:\n```json\n{\"title\": \"The Rise of Local Models\", " +
		"\"summary\": \"Local inference is getting cheap.\", " +
		"\"key_points\": [\"costs dropped\", \"tooling matured\"], " +
		"\"topics\": [\"ai-tooling\"]}\n```"

	client, _ := newTestClient(t, reply)

	extraction, err := client.ExtractArticle(context.Background(),
		"Issue #12", "lenny@substack.com", "body text", []string{"ai-tooling", "product-strategy"})
	if err != nil {
		t.Fatalf("ExtractArticle failed: %v", err)
	}

	if extraction.Title != "The Rise of Local Models" {
		t.Errorf("Unexpected title: %q", extraction.Title)
	}
	if len(extraction.KeyPoints) != 2 {
		t.Errorf("Expected 2 key points, got %v", extraction.KeyPoints)
	}
	if len(extraction.Topics) != 1 || extraction.Topics[0] != "ai-tooling" {
		t.Errorf("Unexpected topics: %v", extraction.Topics)
	}
}

func TestExtractArticle_TitleFallsBackToSubject(t *testing.T) {
	client, _ := newTestClient(t, `{"summary": "s", "key_points": [], "topics": []}`)

	extraction, err := client.ExtractArticle(context.Background(), "Issue #9", "a@b.com", "body", nil)
	if err != nil {
		t.Fatalf("ExtractArticle failed: %v", err)
	}
	if extraction.Title != "Issue #9" {
		t.Errorf("Expected subject fallback, got %q", extraction.Title)
	}
}

func TestExtractArticle_NoJSONInResponse(t *testing.T) {
	client, _ := newTestClient(t, "Sorry, I can't help with that.")

	if _, err := client.ExtractArticle(context.Background(), "s", "f", "b", nil); err == nil {
		t.Error("Expected error when response has no JSON")
	}
}

func TestGenerateDraft_KnownFormat(t *testing.T) {
	client, requests := newTestClient(t, "  [HOOK] You are wasting your mornings.  ")

	draft, err := client.GenerateDraft(context.Background(),
		"video_script", "Morning Routines", "A summary", "Full content")
	if err != nil {
		t.Fatalf("GenerateDraft failed: %v", err)
	}

	if draft != "[HOOK] You are wasting your mornings." {
		t.Errorf("Expected trimmed draft, got %q", draft)
	}
	if len(*requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(*requests))
	}
	if (*requests)[0]["model"] != "test-model" {
		t.Errorf("Expected configured model in request, got %v", (*requests)[0]["model"])
	}
}

func TestGenerateDraft_UnknownFormat(t *testing.T) {
	client, _ := newTestClient(t, "irrelevant")

	if _, err := client.GenerateDraft(context.Background(), "tiktok_script", "t", "s", "c"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestComplete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "m", "k")
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Error("Expected error on non-2xx status")
	}
}

func TestComplete_Misconfigured(t *testing.T) {
	client := NewClient("", "", "")
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Error("Expected error when client is not configured")
	}
}

func TestFirstJSONObject_BracesInStrings(t *testing.T) {
	payload, err := firstJSONObject([]byte(`noise {"a": "with { brace"} tail`))
	if err != nil {
		t.Fatalf("firstJSONObject failed: %v", err)
	}
	if string(payload) != `{"a": "with { brace"}` {
		t.Errorf("Unexpected payload: %s", payload)
	}
}
