// Package api exposes the assistant over a local HTTP surface: settings,
// chat, requirement history, selections, interaction events and repository
// context. The UI is the only intended client; everything except /health
// requires the local bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yjkwon/devpin/internal/github"
	"github.com/yjkwon/devpin/internal/history"
	"github.com/yjkwon/devpin/internal/interaction"
	"github.com/yjkwon/devpin/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Session *session.Session
	Token   string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/settings", handleGetSettings(deps))
		r.Patch("/settings", handlePatchSettings(deps))

		r.Get("/chat", handleGetChat(deps))
		r.Post("/chat", handlePostChat(deps))
		r.Delete("/chat", handleClearChat(deps))
		r.Get("/chat/transcript", handleTranscript(deps))
		r.Post("/chat/analyze", handleAnalyze(deps))

		r.Get("/history", handleGetHistory(deps))
		r.Post("/history", handlePostHistory(deps))
		r.Delete("/history", handleClearHistory(deps))
		r.Delete("/history/{id}", handleDeleteHistory(deps))
		r.Get("/history/export", handleExportHistory(deps))

		r.Get("/selection", handleGetSelection(deps))
		r.Delete("/selection", handleResetSelection(deps))
		r.Delete("/selection/{index}", handleDeleteSelection(deps))

		r.Get("/session/status", handleStatus(deps))
		r.Put("/session/mode", handleSetMode(deps))
		r.Post("/session/events", handleEvents(deps))
		r.Get("/session/overlay", handleOverlay(deps))
		r.Post("/session/connections", handleConnections(deps))
		r.Put("/session/surface", handleSurface(deps))

		r.Get("/preview", handleGetPreview(deps))
		r.Put("/preview", handlePutPreview(deps))

		r.Get("/repo/info", handleRepoInfo(deps))
		r.Get("/repo/tree", handleRepoTree(deps))
		r.Get("/repo/file", handleRepoFile(deps))
		r.Get("/repo/commits", handleRepoCommits(deps))
		r.Get("/repo/pages-url", handleRepoPagesURL(deps))
		r.Get("/repo/components", handleRepoComponents(deps))
		r.Get("/repo/shared-memory", handleRepoSharedMemory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Session.Settings.LoadAll())
	}
}

// settingsUpdate carries a partial settings write; only present fields are
// applied.
type settingsUpdate struct {
	GeminiAPIKey        *string `json:"geminiApiKey"`
	GithubToken         *string `json:"githubToken"`
	GithubRepoURL       *string `json:"githubRepoUrl"`
	CollabGithubToken   *string `json:"collabGithubToken"`
	CollabGithubRepoURL *string `json:"collabGithubRepoUrl"`
	Prompt              *string `json:"prompt"`
	PromptFile          *string `json:"promptFile"`
	Theme               *string `json:"theme"`
	FontSize            *string `json:"fontSize"`
}

func handlePatchSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var upd settingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s := deps.Session.Settings
		if upd.GeminiAPIKey != nil {
			s.SaveGeminiAPIKey(*upd.GeminiAPIKey)
		}
		if upd.GithubToken != nil {
			s.SaveGithubToken(*upd.GithubToken)
		}
		if upd.GithubRepoURL != nil {
			s.SaveGithubRepoURL(*upd.GithubRepoURL)
		}
		if upd.CollabGithubToken != nil {
			s.SaveCollabGithubToken(*upd.CollabGithubToken)
		}
		if upd.CollabGithubRepoURL != nil {
			s.SaveCollabGithubRepoURL(*upd.CollabGithubRepoURL)
		}
		if upd.Prompt != nil {
			s.SavePrompt(*upd.Prompt)
		}
		if upd.PromptFile != nil {
			s.SavePromptFile(*upd.PromptFile)
		}
		if upd.Theme != nil {
			s.SaveTheme(*upd.Theme)
		}
		if upd.FontSize != nil {
			s.SaveFontSize(*upd.FontSize)
		}

		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleGetChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msgs any
		if last := r.URL.Query().Get("last"); last != "" {
			n, err := strconv.Atoi(last)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid last parameter: %q", last)
				return
			}
			msgs = deps.Session.Chat.GetLastN(n)
		} else {
			msgs = deps.Session.Chat.LoadAll()
		}
		writeJSONList(w, msgs)
	}
}

func handlePostChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		msg, err := deps.Session.SendMessage(r.Context(), req.Text)
		if errors.Is(err, session.ErrEmptyMessage) || errors.Is(err, session.ErrNoAPIKey) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSON(w, msg)
	}
}

func handleClearChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.Chat.Clear()
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

func handleTranscript(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := parseIntParam(r, "last", 2, 0)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, deps.Session.Transcript(n))
	}
}

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, recorded := deps.Session.AnalyzeTranscript(r.Context())
		resp := map[string]any{"recorded": recorded}
		if recorded {
			resp["item"] = item
		}
		writeJSON(w, resp)
	}
}

func handleGetHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := deps.Session.History.Search(r.URL.Query().Get("q"))

		if category := r.URL.Query().Get("category"); category != "" && category != "all" {
			filtered := items[:0]
			for _, item := range items {
				if item.Category == category {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}

		writeJSONList(w, items)
	}
}

func handlePostHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var item history.Item
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(item.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		if _, ok := deps.Session.History.SaveItem(item); !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save history item")
			return
		}
		writeJSON(w, map[string]string{"status": "saved"})
	}
}

func handleClearHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.History.Clear()
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

func handleDeleteHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.History.DeleteItem(chi.URLParam(r, "id"))
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleExportHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, deps.Session.History.ExportToMarkdown())
	}
}

func handleGetSelection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSONList(w, deps.Session.Selections())
	}
}

func handleResetSelection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.ResetInput()
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

func handleDeleteSelection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid selection index")
			return
		}
		deps.Session.RemoveSelection(index)
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Session
		writeJSON(w, map[string]any{
			"id":                s.ID,
			"mode":              s.Machine.Mode(),
			"connections":       s.Connections(),
			"selections":        len(s.Selections()),
			"surfaceAccessible": s.SurfaceAccessible(),
			"previewUrl":        s.PreviewURL(),
		})
	}
}

func handleSetMode(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Mode interaction.Mode `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.Session.Machine.SetMode(req.Mode); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var events []interaction.PointerEvent
		if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		for _, ev := range events {
			deps.Session.HandleEvent(ev)
		}
		writeJSON(w, map[string]any{"status": "handled", "count": len(events)})
	}
}

func handleOverlay(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"visible": deps.Session.Overlay.Visible(),
			"rect":    deps.Session.Overlay.Rect(),
		})
	}
}

func handleConnections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Session.CheckConnections(r.Context()))
	}
}

func handleSurface(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Accessible bool `json:"accessible"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		deps.Session.SetSurfaceAccessible(req.Accessible)
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleGetPreview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"url": deps.Session.PreviewURL()})
	}
}

func handlePutPreview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		deps.Session.Settings.SavePreviewURL(req.URL)
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleRepoInfo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		info, err := client.GetRepoInfo(r.Context(), repoURL)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSON(w, info)
	}
}

func handleRepoTree(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		tree, err := client.GetTree(r.Context(), repoURL, r.URL.Query().Get("ref"))
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSONList(w, tree)
	}
}

func handleRepoFile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required")
			return
		}
		client, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		content, err := client.GetFileContent(r.Context(), repoURL, path)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSON(w, map[string]string{"path": path, "content": content})
	}
}

func handleRepoCommits(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		commits, err := client.GetLatestCommits(r.Context(), repoURL, parseIntParam(r, "count", 10, 100))
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		writeJSONList(w, commits)
	}
}

func handleRepoPagesURL(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		pages, err := github.PagesURL(repoURL)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, map[string]string{"url": pages})
	}
}

// componentScan pairs a repository HTML file with its component markers.
type componentScan struct {
	Path    string                   `json:"path"`
	Markers []github.ComponentMarker `json:"markers"`
}

func handleRepoComponents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		files, err := client.HTMLFiles(r.Context(), repoURL)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}

		scans := make([]componentScan, 0, len(files))
		for _, f := range files {
			markers, err := github.ExtractDataAttributes(f.Content)
			if err != nil {
				continue
			}
			scans = append(scans, componentScan{Path: f.Path, Markers: markers})
		}
		writeJSONList(w, scans)
	}
}

func handleRepoSharedMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, repoURL, err := deps.Session.GithubFor(r.URL.Query().Get("which"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		memory, _ := client.GetSharedMemory(r.Context(), repoURL)
		writeJSON(w, map[string]any{"memory": memory})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeJSONList encodes v, normalizing a nil slice to [].
func writeJSONList(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	b, err := json.Marshal(v)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "encoding response: %v", err)
		return
	}
	if string(b) == "null" {
		b = []byte("[]")
	}
	w.Write(b)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
