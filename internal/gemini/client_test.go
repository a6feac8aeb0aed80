package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// generateJSON builds a generateContent response carrying the given text.
func generateJSON(text string) []byte {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestGenerateContent(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key query param = %q", r.URL.Query().Get("key"))
		}
		w.Write(generateJSON("rewritten requirement"))
	}))
	defer srv.Close()

	c := NewWithBaseURL("test-key", srv.URL)
	got, err := c.GenerateContent(context.Background(), "make it bigger", "[button]#cta", "Rewrite this.")
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if got != "rewritten requirement" {
		t.Errorf("got %q", got)
	}

	body := string(gotBody)
	for _, want := range []string{"Rewrite this.", "make it bigger", "[button]#cta"} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestGenerateContentEmptyLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "(none)") {
			t.Error("empty location not rendered as (none)")
		}
		w.Write(generateJSON("ok"))
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	if _, err := c.GenerateContent(context.Background(), "input", "", "prompt"); err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
}

func TestGenerateContentMissingKey(t *testing.T) {
	c := New("")
	if _, err := c.GenerateContent(context.Background(), "x", "", "p"); err == nil {
		t.Error("expected error with no API key configured")
	}
}

func TestGenerateContentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("bad", srv.URL)
	_, err := c.GenerateContent(context.Background(), "x", "", "p")
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("err = %v, want upstream message surfaced", err)
	}
}

func TestGenerateContentNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	if _, err := c.GenerateContent(context.Background(), "x", "", "p"); err == nil {
		t.Error("expected error for empty candidates")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"embedded in prose", "Sure! Here you go:\n{\"shouldRecord\": true}\nHope that helps.", `{"shouldRecord": true}`, true},
		{"code fence", "```json\n{\"a\": \"b\"}\n```", `{"a": "b"}`, true},
		{"brace inside string", `noise {"text": "uses { and }"} tail`, `{"text": "uses { and }"}`, true},
		{"skips broken object", `{oops} then {"fine": 1}`, `{"fine": 1}`, true},
		{"no object", "plain prose only", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := ExtractJSON(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && string(raw) != tt.want {
				t.Errorf("raw = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestAnalyzeForHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateJSON(`Here is my verdict:
{"shouldRecord": true, "category": "function", "summary": "add search", "location": "[nav]", "priority": "P1"}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	a, err := c.AnalyzeForHistory(context.Background(), "User: please add search")
	if err != nil {
		t.Fatalf("AnalyzeForHistory: %v", err)
	}
	if !a.ShouldRecord || a.Category != "function" || a.Priority != "P1" {
		t.Errorf("analysis = %+v", a)
	}
}

func TestAnalyzeForHistoryUnparseableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateJSON("I could not decide, sorry."))
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	a, err := c.AnalyzeForHistory(context.Background(), "chat")
	if err != nil {
		t.Fatalf("unparseable reply must not be an error, got %v", err)
	}
	if a.ShouldRecord {
		t.Error("unparseable reply must fall back to shouldRecord=false")
	}
}
