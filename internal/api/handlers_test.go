package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yjkwon/devpin/internal/session"
	"github.com/yjkwon/devpin/internal/storage"
)

const testToken = "test-token"

func newTestApp(t *testing.T, cfg session.Config) (http.Handler, *session.Session) {
	t.Helper()
	kv, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	sess := session.New(kv, cfg)
	return NewAppHandler(AppDeps{Session: sess, Token: testToken}), sess
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func TestHealthNoAuth(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health = %d, want 200 without auth", w.Code)
	}
}

func TestBearerAuthRequired(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, w, &resp)
	if resp.Error.Type != "authentication_error" {
		t.Errorf("error type = %q", resp.Error.Type)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})

	w := doRequest(t, h, http.MethodPatch, "/settings", `{"theme":"dark","geminiApiKey":"secret-key"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, h, http.MethodGet, "/settings", "")
	var snap struct {
		Theme        string `json:"theme"`
		FontSize     string `json:"fontSize"`
		GeminiAPIKey string `json:"geminiApiKey"`
	}
	decodeBody(t, w, &snap)
	if snap.Theme != "dark" {
		t.Errorf("theme = %q", snap.Theme)
	}
	if snap.FontSize != "small" {
		t.Errorf("fontSize = %q, want default", snap.FontSize)
	}
	if snap.GeminiAPIKey != "secret-key" {
		t.Errorf("geminiApiKey = %q", snap.GeminiAPIKey)
	}
}

func TestPostChatWithoutKey(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})
	w := doRequest(t, h, http.MethodPost, "/chat", `{"text":"hello"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("chat without key = %d, want 400", w.Code)
	}
}

func TestChatFlow(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Rewritten"}]}}]}`)
	}))
	defer upstream.Close()

	h, sess := newTestApp(t, session.Config{GeminiBaseURL: upstream.URL})
	sess.Settings.SaveGeminiAPIKey("key")

	w := doRequest(t, h, http.MethodPost, "/chat", `{"text":"make it blue"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("post chat = %d: %s", w.Code, w.Body.String())
	}
	var msg struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	decodeBody(t, w, &msg)
	if msg.Type != "assistant" || msg.Text != "Rewritten" {
		t.Errorf("reply = %+v", msg)
	}

	w = doRequest(t, h, http.MethodGet, "/chat", "")
	var msgs []struct {
		Type string `json:"type"`
	}
	decodeBody(t, w, &msgs)
	if len(msgs) != 2 || msgs[0].Type != "user" || msgs[1].Type != "assistant" {
		t.Errorf("transcript = %+v", msgs)
	}

	w = doRequest(t, h, http.MethodGet, "/chat?last=1", "")
	decodeBody(t, w, &msgs)
	if len(msgs) != 1 || msgs[0].Type != "assistant" {
		t.Errorf("last=1 = %+v", msgs)
	}

	w = doRequest(t, h, http.MethodDelete, "/chat", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear chat = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/chat", "")
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("cleared chat = %s, want []", body)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})

	for _, body := range []string{
		`{"category":"design","location":"header","text":"Enlarge logo","priority":"P1"}`,
		`{"category":"bug","location":"footer","text":"Fix broken link","priority":"P0"}`,
	} {
		if w := doRequest(t, h, http.MethodPost, "/history", body); w.Code != http.StatusOK {
			t.Fatalf("post history = %d: %s", w.Code, w.Body.String())
		}
	}

	w := doRequest(t, h, http.MethodPost, "/history", `{"category":"bug"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("post without text = %d, want 400", w.Code)
	}

	var items []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Text     string `json:"text"`
	}

	w = doRequest(t, h, http.MethodGet, "/history", "")
	decodeBody(t, w, &items)
	if len(items) != 2 {
		t.Fatalf("history = %+v", items)
	}

	w = doRequest(t, h, http.MethodGet, "/history?category=bug", "")
	decodeBody(t, w, &items)
	if len(items) != 1 || items[0].Category != "bug" {
		t.Errorf("category filter = %+v", items)
	}

	w = doRequest(t, h, http.MethodGet, "/history?q=logo", "")
	decodeBody(t, w, &items)
	if len(items) != 1 || items[0].Text != "Enlarge logo" {
		t.Errorf("search = %+v", items)
	}

	w = doRequest(t, h, http.MethodGet, "/history?q=broken&category=bug", "")
	decodeBody(t, w, &items)
	if len(items) != 1 || items[0].Category != "bug" {
		t.Errorf("combined filter = %+v", items)
	}

	w = doRequest(t, h, http.MethodGet, "/history", "")
	decodeBody(t, w, &items)
	id := items[0].ID
	w = doRequest(t, h, http.MethodDelete, "/history/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/history", "")
	decodeBody(t, w, &items)
	if len(items) != 1 {
		t.Errorf("after delete = %+v", items)
	}

	w = doRequest(t, h, http.MethodGet, "/history/export", "")
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/markdown") {
		t.Errorf("export content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "# Requirements") {
		t.Errorf("export body = %q", w.Body.String())
	}

	w = doRequest(t, h, http.MethodDelete, "/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/history", "")
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("cleared history = %s", body)
	}
}

func TestSelectionAndEvents(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})

	events := `[{"kind":"click","x":1,"y":2,"target":{"tag":"button","id":"go","classes":["primary"]}}]`
	w := doRequest(t, h, http.MethodPost, "/session/events", events)
	if w.Code != http.StatusOK {
		t.Fatalf("events = %d: %s", w.Code, w.Body.String())
	}

	var selections []string
	w = doRequest(t, h, http.MethodGet, "/selection", "")
	decodeBody(t, w, &selections)
	if len(selections) != 1 || selections[0] != "[button]#go" {
		t.Errorf("selections = %v", selections)
	}

	w = doRequest(t, h, http.MethodDelete, "/selection/0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete selection = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/selection", "")
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("selections after delete = %s", body)
	}

	w = doRequest(t, h, http.MethodDelete, "/selection/nope", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad index = %d, want 400", w.Code)
	}
}

func TestSessionMode(t *testing.T) {
	h, sess := newTestApp(t, session.Config{})

	w := doRequest(t, h, http.MethodPut, "/session/mode", `{"mode":"screen"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set mode = %d: %s", w.Code, w.Body.String())
	}
	if sess.Machine.Mode() != "screen" {
		t.Errorf("mode = %q", sess.Machine.Mode())
	}

	w = doRequest(t, h, http.MethodPut, "/session/mode", `{"mode":"laser"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad mode = %d, want 400", w.Code)
	}
}

func TestSessionStatus(t *testing.T) {
	h, sess := newTestApp(t, session.Config{})

	w := doRequest(t, h, http.MethodGet, "/session/status", "")
	var status struct {
		ID                string `json:"id"`
		Mode              string `json:"mode"`
		SurfaceAccessible bool   `json:"surfaceAccessible"`
	}
	decodeBody(t, w, &status)
	if status.ID != sess.ID {
		t.Errorf("id = %q, want %q", status.ID, sess.ID)
	}
	if status.Mode != "click" {
		t.Errorf("mode = %q, want click default", status.Mode)
	}
	if !status.SurfaceAccessible {
		t.Error("surface should start accessible")
	}

	w = doRequest(t, h, http.MethodPut, "/session/surface", `{"accessible":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("surface = %d", w.Code)
	}
	if sess.SurfaceAccessible() {
		t.Error("surface flag not applied")
	}
}

func TestPreviewEndpoints(t *testing.T) {
	h, _ := newTestApp(t, session.Config{})

	w := doRequest(t, h, http.MethodPut, "/preview", `{"url":"https://preview.test/"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put preview = %d", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/preview", "")
	var resp struct {
		URL string `json:"url"`
	}
	decodeBody(t, w, &resp)
	if resp.URL != "https://preview.test/" {
		t.Errorf("url = %q", resp.URL)
	}
}

func TestRepoEndpoints(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name":"octocat/site","default_branch":"main"}`)
	}))
	defer upstream.Close()

	h, sess := newTestApp(t, session.Config{GithubBaseURL: upstream.URL})

	// Unconfigured: every repo route refuses.
	w := doRequest(t, h, http.MethodGet, "/repo/info", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unconfigured repo = %d, want 400", w.Code)
	}

	sess.Settings.SaveGithubToken("tok")
	sess.Settings.SaveGithubRepoURL("https://github.com/octocat/site")

	w = doRequest(t, h, http.MethodGet, "/repo/info", "")
	if w.Code != http.StatusOK {
		t.Fatalf("repo info = %d: %s", w.Code, w.Body.String())
	}
	var info struct {
		FullName string `json:"full_name"`
	}
	decodeBody(t, w, &info)
	if info.FullName != "octocat/site" {
		t.Errorf("info = %+v", info)
	}

	w = doRequest(t, h, http.MethodGet, "/repo/pages-url", "")
	var pages struct {
		URL string `json:"url"`
	}
	decodeBody(t, w, &pages)
	if pages.URL != "https://octocat.github.io/site/" {
		t.Errorf("pages url = %q", pages.URL)
	}

	w = doRequest(t, h, http.MethodGet, "/repo/info?which=weird", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown which = %d, want 400", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/repo/file", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("file without path = %d, want 400", w.Code)
	}
}
