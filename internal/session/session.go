// Package session owns the application state for one running assistant:
// the stores, the interaction machine, the in-memory selection list and the
// connection status. It replaces what would otherwise be ambient globals;
// the server creates one at startup and tears it down at shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yjkwon/devpin/internal/chat"
	"github.com/yjkwon/devpin/internal/gemini"
	"github.com/yjkwon/devpin/internal/github"
	"github.com/yjkwon/devpin/internal/history"
	"github.com/yjkwon/devpin/internal/interaction"
	"github.com/yjkwon/devpin/internal/selection"
	"github.com/yjkwon/devpin/internal/settings"
	"github.com/yjkwon/devpin/internal/storage"
)

// Config points the session's API clients somewhere other than the real
// upstreams; empty values mean the defaults.
type Config struct {
	GeminiBaseURL string
	GeminiModel   string
	GithubBaseURL string
}

var (
	// ErrEmptyMessage is returned for a blank feedback message.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoAPIKey is returned when no generative API key has been saved.
	ErrNoAPIKey = errors.New("gemini API key is not configured")
)

// Connections is the connectivity snapshot for the status bar.
type Connections struct {
	Gemini bool `json:"gemini"`
	Github bool `json:"github"`
	Collab bool `json:"collab"`
}

type Session struct {
	ID        string
	Settings  *settings.Store
	Chat      *chat.Store
	History   *history.Store
	Selection *selection.Store
	Machine   *interaction.Machine
	Overlay   *interaction.BoxOverlay

	cfg Config

	mu             sync.Mutex
	selected       []string
	conns          Connections
	surfaceOK      bool
	surfaceNoticed bool
}

// New builds a session over the shared persistence layer and restores the
// in-memory selection list from it.
func New(kv *storage.Store, cfg Config) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Settings:  settings.New(kv),
		Chat:      chat.New(kv),
		History:   history.New(kv),
		Selection: selection.New(kv),
		Overlay:   interaction.NewBoxOverlay(),
		cfg:       cfg,
		surfaceOK: true,
	}
	s.Machine = interaction.New(interaction.RecorderFunc(s.recordSelection), s.Overlay)
	s.selected = s.Selection.Load()
	return s
}

func (s *Session) geminiClient() *gemini.Client {
	key := s.Settings.LoadGeminiAPIKey()
	var c *gemini.Client
	if s.cfg.GeminiBaseURL != "" {
		c = gemini.NewWithBaseURL(key, s.cfg.GeminiBaseURL)
	} else {
		c = gemini.New(key)
	}
	c.SetModel(s.cfg.GeminiModel)
	return c
}

func (s *Session) githubClient(token string) *github.Client {
	if s.cfg.GithubBaseURL != "" {
		return github.NewWithBaseURL(token, s.cfg.GithubBaseURL)
	}
	return github.New(token)
}

// recordSelection is the machine's sink: the in-memory list and the
// persisted list are appended together so indices stay aligned.
func (s *Session) recordSelection(descriptor string) {
	s.mu.Lock()
	s.selected = append(s.selected, descriptor)
	s.mu.Unlock()
	s.Selection.Add(descriptor)
}

// Selections returns the current location tags.
func (s *Session) Selections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// RemoveSelection drops the tag at index from both lists; indices after it
// shift down by one.
func (s *Session) RemoveSelection(index int) {
	s.mu.Lock()
	if index >= 0 && index < len(s.selected) {
		s.selected = append(s.selected[:index], s.selected[index+1:]...)
	}
	s.mu.Unlock()
	s.Selection.Remove(index)
}

// ResetInput clears the selection list, in memory and persisted.
func (s *Session) ResetInput() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.Selection.Clear()
}

// HandleEvent feeds one pointer event to the interaction machine.
func (s *Session) HandleEvent(ev interaction.PointerEvent) {
	s.Machine.Handle(ev)
}

// SetSurfaceAccessible records whether the preview surface could be
// instrumented. Losing the surface is a non-fatal condition reported once;
// the machine simply stops receiving events.
func (s *Session) SetSurfaceAccessible(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaceOK = ok
	if !ok && !s.surfaceNoticed {
		s.surfaceNoticed = true
		slog.Warn("preview surface not accessible; element selection disabled", "session", s.ID)
	}
}

// SurfaceAccessible reports the last known surface state.
func (s *Session) SurfaceAccessible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surfaceOK
}

// SendMessage runs the main feedback flow: record the user message with its
// location context, ask the model to rewrite it, record and return the
// assistant reply. Upstream failures are surfaced; nothing is retried.
func (s *Session) SendMessage(ctx context.Context, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	if s.Settings.LoadGeminiAPIKey() == "" {
		return chat.Message{}, ErrNoAPIKey
	}

	location := strings.Join(s.Selections(), "\n")

	userMsg := chat.Message{Type: "user", Name: "User", Text: text}
	if location != "" {
		userMsg.Info = "Location: " + location
	}
	s.Chat.SaveMessage(userMsg)

	reply, err := s.geminiClient().GenerateContent(ctx, text, location, s.Settings.LoadPrompt())
	if err != nil {
		return chat.Message{}, fmt.Errorf("generating requirement: %w", err)
	}

	msg := chat.Message{Type: "assistant", Name: "Gemini", Text: reply}
	s.Chat.SaveMessage(msg)
	return msg, nil
}

// Transcript renders the trailing n chat messages as plain text, the form
// handed to the clipboard and to the history analysis.
func (s *Session) Transcript(n int) string {
	var b strings.Builder
	for _, msg := range s.Chat.GetLastN(n) {
		fmt.Fprintf(&b, "%s:\n%s\n", msg.Name, msg.Text)
		if msg.Info != "" {
			fmt.Fprintf(&b, "%s\n", msg.Info)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// AnalyzeTranscript asks the model whether the last exchange should be
// recorded and, when it should, appends a history item. Failures here are
// deliberately quiet: the copy flow must never surface an analysis error.
func (s *Session) AnalyzeTranscript(ctx context.Context) (history.Item, bool) {
	content := s.Transcript(2)
	if content == "" {
		return history.Item{}, false
	}

	analysis, err := s.geminiClient().AnalyzeForHistory(ctx, content)
	if err != nil {
		slog.Debug("history analysis failed", "error", err)
		return history.Item{}, false
	}
	if !analysis.ShouldRecord {
		return history.Item{}, false
	}

	location := analysis.Location
	if location == "" {
		location = strings.Join(s.Selections(), ", ")
	}
	if location == "" {
		location = "(no location)"
	}
	priority := analysis.Priority
	if priority == "" {
		priority = "P1"
	}

	saved, ok := s.History.SaveItem(history.Item{
		Category: analysis.Category,
		Location: location,
		Text:     analysis.Summary,
		Priority: priority,
	})
	if !ok {
		slog.Warn("recording analyzed requirement failed", "session", s.ID)
		return history.Item{}, false
	}
	return saved, true
}

// CheckConnections probes the configured upstreams. The generative API is
// considered connected when a key is present; the repository connections
// are probed over HTTP, concurrently. Probe failures mark the connection
// down, they never fail the check itself.
func (s *Session) CheckConnections(ctx context.Context) Connections {
	snap := s.Settings.LoadAll()

	var conns Connections
	conns.Gemini = snap.GeminiAPIKey != ""

	g, ctx := errgroup.WithContext(ctx)
	if snap.GithubToken != "" && snap.GithubRepoURL != "" {
		g.Go(func() error {
			conns.Github = s.githubClient(snap.GithubToken).TestConnection(ctx, snap.GithubRepoURL) == nil
			return nil
		})
	}
	if snap.CollabGithubToken != "" && snap.CollabGithubRepoURL != "" {
		g.Go(func() error {
			conns.Collab = s.githubClient(snap.CollabGithubToken).TestConnection(ctx, snap.CollabGithubRepoURL) == nil
			return nil
		})
	}
	g.Wait()

	s.mu.Lock()
	s.conns = conns
	s.mu.Unlock()
	return conns
}

// Connections returns the last probed connectivity snapshot.
func (s *Session) Connections() Connections {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// GithubFor resolves the repository client and URL for the named
// connection, "primary" or "collab".
func (s *Session) GithubFor(which string) (*github.Client, string, error) {
	var token, repoURL string
	switch which {
	case "", "primary":
		token = s.Settings.LoadGithubToken()
		repoURL = s.Settings.LoadGithubRepoURL()
	case "collab":
		token = s.Settings.LoadCollabGithubToken()
		repoURL = s.Settings.LoadCollabGithubRepoURL()
	default:
		return nil, "", fmt.Errorf("unknown repository connection %q", which)
	}
	if repoURL == "" {
		return nil, "", fmt.Errorf("no repository URL configured for %s connection", orPrimary(which))
	}
	return s.githubClient(token), repoURL, nil
}

func orPrimary(which string) string {
	if which == "" {
		return "primary"
	}
	return which
}

// PreviewURL resolves the preview address: the last saved URL, falling back
// to the GitHub Pages URL derived from the configured repository.
func (s *Session) PreviewURL() string {
	if url := s.Settings.LoadPreviewURL(); url != "" {
		return url
	}
	if repoURL := s.Settings.LoadGithubRepoURL(); repoURL != "" {
		if pages, err := github.PagesURL(repoURL); err == nil {
			return pages
		}
	}
	return ""
}
