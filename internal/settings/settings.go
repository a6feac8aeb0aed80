// Package settings provides typed accessors for user configuration kept in
// the persistence layer. Every field is independently optional; readers get
// a defined default when nothing has been saved, so a partially configured
// install is always valid.
package settings

import "github.com/yjkwon/devpin/internal/storage"

// Persisted keys. Token-bearing values are obscured before storage.
const (
	keyGeminiAPIKey        = "gemini_api_key"
	keyGithubToken         = "github_token"
	keyGithubRepoURL       = "github_repo_url"
	keyCollabGithubToken   = "collab_github_token"
	keyCollabGithubRepoURL = "collab_github_repo_url"
	keyPrompt              = "prompt"
	keyPromptFile          = "prompt_file"
	keyTheme               = "theme"
	keyFontSize            = "font_size"
	keyPreviewURL          = "preview_url"
)

const (
	DefaultTheme    = "light"
	DefaultFontSize = "small"
)

// DefaultPrompt is the built-in rewrite template used until the user saves
// their own.
const DefaultPrompt = `Rewrite the following feedback so an AI development agent can act on it:

1. State the location clearly
2. Compare the before and after state
3. Describe the concrete change
4. Mark the priority (P0, P1, P2)

Format:
[Location] > [Component]
Change: [specific description]
Reason: [why the change is needed]
Priority: P0 (required) / P1 (important) / P2 (optional)`

// Store exposes named save/load pairs over the key/value layer.
type Store struct {
	kv *storage.Store
}

func New(kv *storage.Store) *Store {
	return &Store{kv: kv}
}

// Snapshot is the result of LoadAll: every field defaulted independently.
type Snapshot struct {
	GeminiAPIKey        string `json:"geminiApiKey"`
	GithubToken         string `json:"githubToken"`
	GithubRepoURL       string `json:"githubRepoUrl"`
	CollabGithubToken   string `json:"collabGithubToken"`
	CollabGithubRepoURL string `json:"collabGithubRepoUrl"`
	Prompt              string `json:"prompt"`
	PromptFile          string `json:"promptFile"`
	Theme               string `json:"theme"`
	FontSize            string `json:"fontSize"`
}

func (s *Store) SaveGeminiAPIKey(key string) bool { return s.kv.Save(keyGeminiAPIKey, key, true) }

func (s *Store) LoadGeminiAPIKey() string {
	v, _ := s.kv.Load(keyGeminiAPIKey, true)
	return v
}

func (s *Store) SaveGithubToken(token string) bool { return s.kv.Save(keyGithubToken, token, true) }

func (s *Store) LoadGithubToken() string {
	v, _ := s.kv.Load(keyGithubToken, true)
	return v
}

func (s *Store) SaveGithubRepoURL(url string) bool { return s.kv.Save(keyGithubRepoURL, url, false) }

func (s *Store) LoadGithubRepoURL() string {
	v, _ := s.kv.Load(keyGithubRepoURL, false)
	return v
}

func (s *Store) SaveCollabGithubToken(token string) bool {
	return s.kv.Save(keyCollabGithubToken, token, true)
}

func (s *Store) LoadCollabGithubToken() string {
	v, _ := s.kv.Load(keyCollabGithubToken, true)
	return v
}

func (s *Store) SaveCollabGithubRepoURL(url string) bool {
	return s.kv.Save(keyCollabGithubRepoURL, url, false)
}

func (s *Store) LoadCollabGithubRepoURL() string {
	v, _ := s.kv.Load(keyCollabGithubRepoURL, false)
	return v
}

func (s *Store) SavePrompt(prompt string) bool { return s.kv.Save(keyPrompt, prompt, false) }

// LoadPrompt returns the saved prompt template, or DefaultPrompt verbatim
// when none has ever been saved.
func (s *Store) LoadPrompt() string {
	if v, ok := s.kv.Load(keyPrompt, false); ok && v != "" {
		return v
	}
	return DefaultPrompt
}

func (s *Store) SavePromptFile(name string) bool { return s.kv.Save(keyPromptFile, name, false) }

func (s *Store) LoadPromptFile() string {
	v, _ := s.kv.Load(keyPromptFile, false)
	return v
}

func (s *Store) SaveTheme(theme string) bool { return s.kv.Save(keyTheme, theme, false) }

func (s *Store) LoadTheme() string {
	if v, ok := s.kv.Load(keyTheme, false); ok && v != "" {
		return v
	}
	return DefaultTheme
}

func (s *Store) SaveFontSize(size string) bool { return s.kv.Save(keyFontSize, size, false) }

func (s *Store) LoadFontSize() string {
	if v, ok := s.kv.Load(keyFontSize, false); ok && v != "" {
		return v
	}
	return DefaultFontSize
}

// SavePreviewURL remembers the last loaded preview URL. It is not part of
// the LoadAll snapshot; the preview surface reads it directly.
func (s *Store) SavePreviewURL(url string) bool { return s.kv.Save(keyPreviewURL, url, false) }

func (s *Store) LoadPreviewURL() string {
	v, _ := s.kv.Load(keyPreviewURL, false)
	return v
}

// LoadAll returns a snapshot across all settings, each entry independently
// defaulted.
func (s *Store) LoadAll() Snapshot {
	return Snapshot{
		GeminiAPIKey:        s.LoadGeminiAPIKey(),
		GithubToken:         s.LoadGithubToken(),
		GithubRepoURL:       s.LoadGithubRepoURL(),
		CollabGithubToken:   s.LoadCollabGithubToken(),
		CollabGithubRepoURL: s.LoadCollabGithubRepoURL(),
		Prompt:              s.LoadPrompt(),
		PromptFile:          s.LoadPromptFile(),
		Theme:               s.LoadTheme(),
		FontSize:            s.LoadFontSize(),
	}
}
